package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"graphreview/api/internal/auth"
	"graphreview/api/internal/comment"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/rbac"
	"graphreview/api/internal/search"
	"graphreview/api/internal/store"
	"graphreview/api/internal/util"
	"graphreview/api/internal/vote"
)

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      mention.UserIdentity
}

type CreateCommentInput struct {
	ReviewID string `json:"reviewId"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
	ParentID string `json:"parentId"`
}

type dataStore interface {
	ListProfiles(context.Context) ([]store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	EnsureUser(context.Context, store.User) (store.User, error)
	ListComments(context.Context, string, string) ([]store.Comment, error)
	GetComment(context.Context, string, string) (store.Comment, error)
	InsertComment(context.Context, store.Comment) (store.Comment, error)
	DeleteComment(context.Context, string) (bool, error)
	UpsertVote(context.Context, store.Vote) error
	DeleteVote(context.Context, string, string) (bool, error)
	ListCommentRecords(context.Context) ([]store.CommentRecord, error)
	Ping(context.Context) error
}

// profileDirectory is the cached user directory.
type profileDirectory interface {
	mention.Directory
	Invalidate(context.Context) error
}

type commentSearch interface {
	Search(context.Context, search.Query) search.Response
	IndexComment(search.CommentRecord)
	DeleteComments([]string)
	ReindexAll([]search.CommentRecord)
}

type Service struct {
	store      dataStore
	profiles   profileDirectory
	dispatcher notify.Dispatcher
	search     commentSearch
	issuer     *auth.Issuer
	logger     zerolog.Logger
}

type Options struct {
	Store      dataStore
	Profiles   profileDirectory
	Dispatcher notify.Dispatcher
	Search     commentSearch
	Issuer     *auth.Issuer
	Logger     zerolog.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		store:      opts.Store,
		profiles:   opts.Profiles,
		dispatcher: opts.Dispatcher,
		search:     opts.Search,
		issuer:     opts.Issuer,
		logger:     opts.Logger,
	}
}

// ProfileSource exposes the users table as a mention directory, the source
// behind the profile cache.
func ProfileSource(st interface {
	ListProfiles(context.Context) ([]store.User, error)
}) mention.Directory {
	return mention.DirectoryFunc(func(ctx context.Context) ([]mention.UserIdentity, error) {
		users, err := st.ListProfiles(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]mention.UserIdentity, 0, len(users))
		for _, u := range users {
			out = append(out, toIdentity(u))
		}
		return out, nil
	})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) ListProfiles(ctx context.Context) ([]mention.UserIdentity, error) {
	users, err := s.profiles.ListUserProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	if users == nil {
		users = []mention.UserIdentity{}
	}
	return users, nil
}

// Login signs a user in by email. When the email is unknown and a name is
// given the user is created.
func (s *Service) Login(ctx context.Context, email, name string) (Session, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return Session{}, validationError(criterio.NewFieldErrors("email", errors.New("is required")))
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows) && name != "":
		user, err = s.store.EnsureUser(ctx, store.User{ID: util.NewID("usr"), DisplayName: name, Email: email})
		if err != nil {
			return Session{}, err
		}
		if err := s.profiles.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("profile cache invalidation failed")
		}
	case errors.Is(err, sql.ErrNoRows):
		return Session{}, domainError(http.StatusNotFound, "USER_NOT_FOUND", "No user with that email", nil)
	case err != nil:
		return Session{}, err
	}

	identity := toIdentity(user)
	token, expires, err := s.issuer.Issue(identity)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: identity}, nil
}

// ListComments returns the review's comments nested one level deep, with
// votes as seen by viewerID.
func (s *Service) ListComments(ctx context.Context, reviewID, viewerID string) ([]comment.Comment, error) {
	rows, err := s.store.ListComments(ctx, reviewID, viewerID)
	if err != nil {
		return nil, err
	}
	flat := make([]comment.Comment, 0, len(rows))
	for _, row := range rows {
		flat = append(flat, toComment(row))
	}
	return comment.Nest(flat), nil
}

func (s *Service) CreateComment(ctx context.Context, actor mention.UserIdentity, input CreateCommentInput) (comment.Comment, error) {
	input.Content = strings.TrimSpace(input.Content)
	input.ParentID = strings.TrimSpace(input.ParentID)
	if err := criterio.ValidateStruct(
		criterio.Run("reviewId", input.ReviewID, required),
		criterio.Run("content", input.Content, required),
	); err != nil {
		return comment.Comment{}, validationError(err)
	}
	if input.AuthorID != "" && input.AuthorID != actor.ID {
		return comment.Comment{}, domainError(http.StatusForbidden, "FORBIDDEN", "Cannot comment as another user", nil)
	}

	var parentID *string
	if input.ParentID != "" {
		parent, err := s.store.GetComment(ctx, input.ParentID, "")
		if errors.Is(err, sql.ErrNoRows) {
			return comment.Comment{}, domainError(http.StatusNotFound, "PARENT_NOT_FOUND", "Parent comment not found", nil)
		}
		if err != nil {
			return comment.Comment{}, err
		}
		if parent.ParentID != nil {
			return comment.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Replies cannot be nested", nil)
		}
		if parent.ReviewID != input.ReviewID {
			return comment.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Parent comment belongs to another review", nil)
		}
		parentID = &input.ParentID
	}

	created, err := s.store.InsertComment(ctx, store.Comment{
		ID:       util.NewID("cmt"),
		ReviewID: input.ReviewID,
		ParentID: parentID,
		AuthorID: actor.ID,
		Content:  input.Content,
	})
	if err != nil {
		return comment.Comment{}, err
	}

	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:         created.ID,
			ReviewID:   created.ReviewID,
			ParentID:   input.ParentID,
			AuthorID:   created.AuthorID,
			AuthorName: created.AuthorName,
			Content:    created.Content,
			CreatedAt:  created.CreatedAt.Unix(),
		})
	}
	return toComment(created), nil
}

// DeleteComment removes a comment and its replies. Only the author may.
func (s *Service) DeleteComment(ctx context.Context, actor mention.UserIdentity, commentID string) error {
	existing, err := s.store.GetComment(ctx, commentID, "")
	if err != nil {
		return err
	}
	if !rbac.Can(actor.ID, existing.AuthorID, rbac.ActionDelete) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can delete this comment", nil)
	}

	removed := []string{existing.ID}
	if existing.ParentID == nil {
		rows, err := s.store.ListComments(ctx, existing.ReviewID, "")
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.ParentID != nil && *row.ParentID == existing.ID {
				removed = append(removed, row.ID)
			}
		}
	}

	deleted, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		return sql.ErrNoRows
	}
	if s.search != nil {
		s.search.DeleteComments(removed)
	}
	return nil
}

// CastVote records actor's vote and returns the comment's new vote state.
func (s *Service) CastVote(ctx context.Context, actor mention.UserIdentity, commentID, rawType string) (vote.State, error) {
	voteType, err := vote.ParseType(rawType)
	if err != nil {
		return vote.State{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "voteType must be up or down", nil)
	}
	target, err := s.store.GetComment(ctx, commentID, actor.ID)
	if err != nil {
		return vote.State{}, err
	}
	if !rbac.Can(actor.ID, target.AuthorID, rbac.ActionVote) {
		return vote.State{}, domainError(http.StatusForbidden, "FORBIDDEN", "You cannot vote on your own comment", nil)
	}
	if err := s.store.UpsertVote(ctx, store.Vote{
		ID:        util.VoteID(commentID, actor.ID),
		CommentID: commentID,
		UserID:    actor.ID,
		VoteType:  string(voteType),
	}); err != nil {
		return vote.State{}, err
	}
	return s.voteState(ctx, commentID, actor.ID)
}

func (s *Service) RemoveVote(ctx context.Context, actor mention.UserIdentity, commentID string) (vote.State, error) {
	if _, err := s.store.GetComment(ctx, commentID, actor.ID); err != nil {
		return vote.State{}, err
	}
	if _, err := s.store.DeleteVote(ctx, commentID, actor.ID); err != nil {
		return vote.State{}, err
	}
	return s.voteState(ctx, commentID, actor.ID)
}

func (s *Service) voteState(ctx context.Context, commentID, viewerID string) (vote.State, error) {
	row, err := s.store.GetComment(ctx, commentID, viewerID)
	if err != nil {
		return vote.State{}, err
	}
	return toComment(row).VoteState(), nil
}

// NotifyMentions queues a mention notification for a comment the actor
// wrote. Recipients are resolved from the profile directory by id and the
// commenter and content come from the stored comment, so nothing addressed
// or written by the caller reaches an outgoing message.
func (s *Service) NotifyMentions(ctx context.Context, actor mention.UserIdentity, payload notify.Payload) (notify.Payload, error) {
	if err := payload.Validate(); err != nil {
		return notify.Payload{}, validationError(err)
	}
	if s.dispatcher == nil {
		return notify.Payload{}, domainError(http.StatusServiceUnavailable, "NOTIFICATIONS_UNAVAILABLE", "Notifications are not configured", nil)
	}

	comment, err := s.store.GetComment(ctx, payload.CommentID, "")
	if err != nil {
		return notify.Payload{}, err
	}
	if comment.AuthorID != actor.ID {
		return notify.Payload{}, domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can send mentions for this comment", nil)
	}
	if comment.ReviewID != payload.ReviewID {
		return notify.Payload{}, validationError(criterio.NewFieldErrors("reviewId", errors.New("does not match the comment")))
	}

	profiles, err := s.profiles.ListUserProfiles(ctx)
	if err != nil {
		return notify.Payload{}, fmt.Errorf("list profiles: %w", err)
	}
	byID := make(map[string]mention.UserIdentity, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	seen := make(map[string]bool, len(payload.MentionedUsers))
	recipients := make([]mention.UserIdentity, 0, len(payload.MentionedUsers))
	for _, u := range payload.MentionedUsers {
		profile, ok := byID[u.ID]
		if !ok || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		recipients = append(recipients, profile)
	}
	if len(recipients) == 0 {
		return notify.Payload{}, validationError(criterio.NewFieldErrors("mentionedUsers", errors.New("no known users")))
	}

	queued := notify.Payload{
		MentionedUsers: recipients,
		CommenterName:  actor.Name,
		ReviewID:       comment.ReviewID,
		CommentID:      comment.ID,
		CommentContent: comment.Content,
	}
	if queued.CommenterName == "" {
		queued.CommenterName = comment.AuthorName
	}
	if err := s.dispatcher.Dispatch(ctx, queued); err != nil {
		return notify.Payload{}, fmt.Errorf("dispatch mention notification: %w", err)
	}
	return queued, nil
}

func (s *Service) SearchComments(ctx context.Context, q search.Query) (search.Response, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return search.Response{}, validationError(criterio.NewFieldErrors("q", errors.New("is required")))
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	return s.search.Search(ctx, q), nil
}

// ReindexSearch pushes every stored comment to the search engine.
func (s *Service) ReindexSearch(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}
	rows, err := s.store.ListCommentRecords(ctx)
	if err != nil {
		return 0, err
	}
	records := make([]search.CommentRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, search.CommentRecord{
			ID:         r.ID,
			ReviewID:   r.ReviewID,
			ParentID:   r.ParentID,
			AuthorID:   r.AuthorID,
			AuthorName: r.AuthorName,
			Content:    r.Content,
			CreatedAt:  r.CreatedAt.Unix(),
		})
	}
	s.search.ReindexAll(records)
	return len(records), nil
}

func required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("is required")
	}
	return nil
}

func toIdentity(u store.User) mention.UserIdentity {
	return mention.UserIdentity{ID: u.ID, Name: u.DisplayName, Email: u.Email}
}

func toComment(row store.Comment) comment.Comment {
	out := comment.Comment{
		ID:              row.ID,
		ReviewID:        row.ReviewID,
		AuthorID:        row.AuthorID,
		AuthorName:      row.AuthorName,
		Content:         row.Content,
		CreatedAt:       row.CreatedAt,
		VoteCount:       row.VoteCount,
		CurrentUserVote: vote.Type(row.ViewerVote),
	}
	if row.ParentID != nil {
		out.ParentID = *row.ParentID
	}
	return out
}
