package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"graphreview/api/internal/auth"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	issuer     *auth.Issuer
	corsOrigin string
	logger     zerolog.Logger
}

func NewHTTPServer(service *Service, issuer *auth.Issuer, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, issuer: issuer, corsOrigin: corsOrigin, logger: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.issuer.Verifier())

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)

	r.Get("/api/session", s.handleSession)
	r.Post("/api/session/login", s.handleLogin)
	r.Get("/api/profiles", s.handleProfiles)
	r.Get("/api/reviews/{reviewID}/comments", s.handleListComments)
	r.Get("/api/reviews/{reviewID}/comments/search", s.handleSearchComments)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/api/reviews/{reviewID}/comments", s.handleCreateComment)
		r.Delete("/api/comments/{commentID}", s.handleDeleteComment)
		r.Put("/api/comments/{commentID}/vote", s.handleCastVote)
		r.Delete("/api/comments/{commentID}/vote", s.handleRemoveVote)
		r.Post("/api/notifications/mentions", s.handleNotifyMentions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body.Email, body.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt.Unix(),
		"user":      session.User,
	})
}

func (s *HTTPServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListProfiles(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": users})
}

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserFromContext(r.Context())
	comments, err := s.service.ListComments(r.Context(), chi.URLParam(r, "reviewID"), viewer.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *HTTPServer) handleSearchComments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	resp, err := s.service.SearchComments(r.Context(), search.Query{
		Text:     query.Get("q"),
		ReviewID: chi.URLParam(r, "reviewID"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var body CreateCommentInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	body.ReviewID = chi.URLParam(r, "reviewID")
	created, err := s.service.CreateComment(r.Context(), currentUser(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": created})
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteComment(r.Context(), currentUser(r), chi.URLParam(r, "commentID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		VoteType string `json:"voteType"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	actor := currentUser(r)
	if body.UserID != "" && body.UserID != actor.ID {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot vote as another user", nil)
		return
	}
	state, err := s.service.CastVote(r.Context(), actor, chi.URLParam(r, "commentID"), body.VoteType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleRemoveVote(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.RemoveVote(r.Context(), currentUser(r), chi.URLParam(r, "commentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleNotifyMentions(w http.ResponseWriter, r *http.Request) {
	var payload notify.Payload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	queued, err := s.service.NotifyMentions(r.Context(), currentUser(r), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": len(queued.MentionedUsers)})
}

// fail maps err to the error envelope and logs anything unexpected.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

// requireUser rejects requests without a verified session token.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) mention.UserIdentity {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}
