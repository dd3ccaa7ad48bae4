package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphreview/api/internal/mention"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/store"
)

type testServer struct {
	handler  http.Handler
	svc      *Service
	profiles *fakeProfiles
	search   *fakeSearch
}

func newHTTPTestServer(fs *fakeStore) testServer {
	svc, profiles, idx := newTestService(fs)
	return testServer{
		handler:  NewHTTPServer(svc, svc.issuer, "*", zerolog.Nop()).Handler(),
		svc:      svc,
		profiles: profiles,
		search:   idx,
	}
}

func (ts testServer) do(t *testing.T, method, path string, user *mention.UserIdentity, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, _, err := ts.svc.issuer.Issue(*user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestSessionEndpoint(t *testing.T) {
	ts := newHTTPTestServer(&fakeStore{})

	rr := ts.do(t, http.MethodGet, "/api/session", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeJSON(t, rr)["authenticated"])

	rr = ts.do(t, http.MethodGet, "/api/session", &alice, nil)
	body := decodeJSON(t, rr)
	assert.Equal(t, true, body["authenticated"])
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, alice.ID, user["id"])
}

func TestLoginEndpoint(t *testing.T) {
	fs := &fakeStore{
		getUserByEmailFn: func(context.Context, string) (store.User, error) {
			return store.User{ID: alice.ID, DisplayName: alice.Name, Email: alice.Email}, nil
		},
	}
	ts := newHTTPTestServer(fs)

	rr := ts.do(t, http.MethodPost, "/api/session/login", nil, map[string]string{"email": alice.Email})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	user, err := ts.svc.issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, alice, user)
}

func TestMutationsRequireSession(t *testing.T) {
	ts := newHTTPTestServer(&fakeStore{})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/reviews/rev-1/comments"},
		{http.MethodDelete, "/api/comments/c1"},
		{http.MethodPut, "/api/comments/c1/vote"},
		{http.MethodDelete, "/api/comments/c1/vote"},
		{http.MethodPost, "/api/notifications/mentions"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := ts.do(t, tc.method, tc.path, nil, map[string]string{})
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeJSON(t, rr)["code"])
		})
	}
}

func TestCreateAndListCommentsOverHTTP(t *testing.T) {
	var stored []store.Comment
	fs := &fakeStore{
		insertCommentFn: func(_ context.Context, item store.Comment) (store.Comment, error) {
			item.AuthorName = alice.Name
			item.CreatedAt = time.Now()
			stored = append([]store.Comment{item}, stored...)
			return item, nil
		},
		listCommentsFn: func(context.Context, string, string) ([]store.Comment, error) {
			return stored, nil
		},
	}
	ts := newHTTPTestServer(fs)

	rr := ts.do(t, http.MethodPost, "/api/reviews/rev-1/comments", &alice, map[string]string{"content": "first pass"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created, _ := decodeJSON(t, rr)["comment"].(map[string]any)
	assert.Equal(t, "rev-1", created["reviewId"])
	assert.Equal(t, alice.ID, created["authorId"])
	assert.EqualValues(t, 0, created["voteCount"])

	rr = ts.do(t, http.MethodGet, "/api/reviews/rev-1/comments", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	comments, _ := decodeJSON(t, rr)["comments"].([]any)
	assert.Len(t, comments, 1)

	rr = ts.do(t, http.MethodPost, "/api/reviews/rev-1/comments", &alice, map[string]string{"content": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeJSON(t, rr)["code"])
}

func TestDeleteCommentOverHTTP(t *testing.T) {
	fs := &fakeStore{
		getCommentFn: func(context.Context, string, string) (store.Comment, error) {
			return store.Comment{ID: "c1", ReviewID: "rev-1", ParentID: strPtr("c0"), AuthorID: alice.ID}, nil
		},
	}
	ts := newHTTPTestServer(fs)

	rr := ts.do(t, http.MethodDelete, "/api/comments/c1", &bob, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", decodeJSON(t, rr)["code"])

	rr = ts.do(t, http.MethodDelete, "/api/comments/c1", &alice, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"c1"}, ts.search.deleted)
}

func TestVoteOverHTTP(t *testing.T) {
	current := ""
	fs := &fakeStore{
		getCommentFn: func(_ context.Context, id, _ string) (store.Comment, error) {
			count := 0
			if current != "" {
				count = 1
			}
			return store.Comment{ID: id, AuthorID: alice.ID, VoteCount: count, ViewerVote: current}, nil
		},
		upsertVoteFn: func(_ context.Context, v store.Vote) error {
			current = v.VoteType
			return nil
		},
		deleteVoteFn: func(context.Context, string, string) (bool, error) {
			current = ""
			return true, nil
		},
	}
	ts := newHTTPTestServer(fs)

	rr := ts.do(t, http.MethodPut, "/api/comments/c1/vote", &bob, map[string]string{"userId": bob.ID, "voteType": "up"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeJSON(t, rr)
	assert.EqualValues(t, 1, body["voteCount"])
	assert.Equal(t, "up", body["currentUserVote"])

	rr = ts.do(t, http.MethodPut, "/api/comments/c1/vote", &bob, map[string]string{"userId": alice.ID, "voteType": "up"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPut, "/api/comments/c1/vote", &alice, map[string]string{"voteType": "up"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "You cannot vote on your own comment", decodeJSON(t, rr)["error"])

	rr = ts.do(t, http.MethodDelete, "/api/comments/c1/vote", &bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 0, decodeJSON(t, rr)["voteCount"])
}

func TestNotifyMentionsOverHTTP(t *testing.T) {
	ts := newHTTPTestServer(&fakeStore{
		getCommentFn: func(context.Context, string, string) (store.Comment, error) {
			return store.Comment{ID: "c1", ReviewID: "rev-1", AuthorID: alice.ID, Content: "@Bob Lee see this"}, nil
		},
	})
	var got notify.Payload
	ts.svc.dispatcher = notify.DispatcherFunc(func(_ context.Context, p notify.Payload) error {
		got = p
		return nil
	})

	rr := ts.do(t, http.MethodPost, "/api/notifications/mentions", &alice, notify.Payload{
		MentionedUsers: []mention.UserIdentity{bob},
		CommenterName:  alice.Name,
		ReviewID:       "rev-1",
		CommentID:      "c1",
		CommentContent: "@Bob Lee see this",
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, decodeJSON(t, rr)["queued"])
	assert.Equal(t, "c1", got.CommentID)
	assert.Equal(t, bob.Email, got.MentionedUsers[0].Email)

	rr = ts.do(t, http.MethodPost, "/api/notifications/mentions", &bob, notify.Payload{
		MentionedUsers: []mention.UserIdentity{alice},
		ReviewID:       "rev-1",
		CommentID:      "c1",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ts.do(t, http.MethodPost, "/api/notifications/mentions", &alice, notify.Payload{ReviewID: "rev-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	details, _ := decodeJSON(t, rr)["details"].(map[string]any)
	assert.Contains(t, details, "commentId")
}

func TestProfilesAndSearchOverHTTP(t *testing.T) {
	ts := newHTTPTestServer(&fakeStore{})

	rr := ts.do(t, http.MethodGet, "/api/profiles", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profiles, _ := decodeJSON(t, rr)["profiles"].([]any)
	assert.Len(t, profiles, 2)

	rr = ts.do(t, http.MethodGet, "/api/reviews/rev-1/comments/search?q=graph&limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rev-1", ts.search.lastQuery.ReviewID)
	assert.Equal(t, 5, ts.search.lastQuery.Limit)

	rr = ts.do(t, http.MethodGet, "/api/reviews/rev-1/comments/search", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	ts := newHTTPTestServer(&fakeStore{})

	rr := ts.do(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON(t, rr)["code"])
}
