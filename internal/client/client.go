// Package client talks to the Graph Review API. It provides the collaborators
// the comment section controller needs when it runs outside the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"graphreview/api/internal/comment"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/search"
	"graphreview/api/internal/section"
	"graphreview/api/internal/vote"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) StatusCode() int { return e.Status }

type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	token   string
	session *mention.UserIdentity
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ section.Backend       = (*Client)(nil)
	_ section.Authenticator = (*Client)(nil)
	_ mention.Directory     = (*Client)(nil)
	_ notify.Dispatcher     = (*Client)(nil)
)

// Token returns the bearer token in use, if any.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login signs in by email and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, name string) (mention.UserIdentity, error) {
	var out struct {
		Token string               `json:"token"`
		User  mention.UserIdentity `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/session/login", map[string]string{"email": email, "name": name}, &out); err != nil {
		return mention.UserIdentity{}, err
	}
	c.mu.Lock()
	c.token = out.Token
	user := out.User
	c.session = &user
	c.mu.Unlock()
	return out.User, nil
}

// CurrentUser returns the signed-in user, or nil when there is no valid
// session. A successful lookup is cached.
func (c *Client) CurrentUser(ctx context.Context) (*mention.UserIdentity, error) {
	c.mu.Lock()
	token, cached := c.token, c.session
	c.mu.Unlock()
	if cached != nil {
		u := *cached
		return &u, nil
	}
	if token == "" {
		return nil, nil
	}

	var out struct {
		Authenticated bool                  `json:"authenticated"`
		User          *mention.UserIdentity `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &out); err != nil {
		return nil, err
	}
	if !out.Authenticated || out.User == nil {
		return nil, nil
	}
	c.mu.Lock()
	c.session = out.User
	c.mu.Unlock()
	u := *out.User
	return &u, nil
}

func (c *Client) ListUserProfiles(ctx context.Context) ([]mention.UserIdentity, error) {
	var out struct {
		Profiles []mention.UserIdentity `json:"profiles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/profiles", nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

func (c *Client) FetchComments(ctx context.Context, reviewID string) ([]comment.Comment, error) {
	var out struct {
		Comments []comment.Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/reviews/"+url.PathEscape(reviewID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

func (c *Client) CreateComment(ctx context.Context, in section.NewComment) (comment.Comment, error) {
	var out struct {
		Comment comment.Comment `json:"comment"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/reviews/"+url.PathEscape(in.ReviewID)+"/comments", in, &out); err != nil {
		return comment.Comment{}, err
	}
	return out.Comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(commentID), nil, nil)
}

func (c *Client) CastVote(ctx context.Context, commentID, userID string, voteType vote.Type) error {
	body := map[string]string{"userId": userID, "voteType": string(voteType)}
	return c.do(ctx, http.MethodPut, "/api/comments/"+url.PathEscape(commentID)+"/vote", body, nil)
}

func (c *Client) RemoveVote(ctx context.Context, commentID, _ string) error {
	return c.do(ctx, http.MethodDelete, "/api/comments/"+url.PathEscape(commentID)+"/vote", nil, nil)
}

func (c *Client) Dispatch(ctx context.Context, payload notify.Payload) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/mentions", payload, nil)
}

func (c *Client) SearchComments(ctx context.Context, reviewID, text string, limit int) (search.Response, error) {
	q := url.Values{}
	q.Set("q", text)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out search.Response
	path := "/api/reviews/" + url.PathEscape(reviewID) + "/comments/search?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return search.Response{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Code
		apiErr.Message = envelope.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
