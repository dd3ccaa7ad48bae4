// Package section drives one comment section: it loads the thread and the
// mention index, runs the add, reply, vote and delete actions against the
// backend, and applies each result to the local tree only after the backend
// acknowledged it.
package section

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"graphreview/api/internal/comment"
	"graphreview/api/internal/mention"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/rbac"
	"graphreview/api/internal/vote"
)

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Errored
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NewComment is the createComment request. ParentID is empty for top-level
// comments.
type NewComment struct {
	ReviewID string `json:"reviewId"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
	ParentID string `json:"parentId,omitempty"`
}

// Backend persists comments and votes.
type Backend interface {
	FetchComments(ctx context.Context, reviewID string) ([]comment.Comment, error)
	CreateComment(ctx context.Context, in NewComment) (comment.Comment, error)
	DeleteComment(ctx context.Context, commentID string) error
	CastVote(ctx context.Context, commentID, userID string, voteType vote.Type) error
	RemoveVote(ctx context.Context, commentID, userID string) error
}

// Authenticator reports who is acting. A nil user with a nil error means
// nobody is signed in.
type Authenticator interface {
	CurrentUser(ctx context.Context) (*mention.UserIdentity, error)
}

type Options struct {
	ReviewID   string
	Backend    Backend
	Auth       Authenticator
	Directory  mention.Directory
	Dispatcher notify.Dispatcher
	Notices    NoticeSink
	Logger     zerolog.Logger
}

// Controller is safe for concurrent use. Backend calls never run under the
// lock, so independent actions overlap freely.
type Controller struct {
	reviewID   string
	backend    Backend
	auth       Authenticator
	directory  mention.Directory
	dispatcher notify.Dispatcher
	notices    NoticeSink
	logger     zerolog.Logger

	mu       sync.Mutex
	state    State
	closed   bool
	tree     *comment.Tree
	index    *mention.Index
	renderer *mention.Renderer
	viewer   *mention.UserIdentity
	inflight map[string]struct{}

	dispatches sync.WaitGroup
}

func New(opts Options) *Controller {
	notices := opts.Notices
	if notices == nil {
		notices = discardNotices{}
	}
	return &Controller{
		reviewID:   opts.ReviewID,
		backend:    opts.Backend,
		auth:       opts.Auth,
		directory:  opts.Directory,
		dispatcher: opts.Dispatcher,
		notices:    notices,
		logger:     opts.Logger.With().Str("component", "section").Str("review_id", opts.ReviewID).Logger(),
		tree:       comment.NewTree(nil),
		index:      mention.NewIndex(nil),
		renderer:   mention.NewRenderer(nil),
		inflight:   make(map[string]struct{}),
	}
}

// Load fetches the thread, the mention index and the viewer concurrently.
// Only the thread fetch can fail the load; a missing index disables
// suggestions and a failed viewer lookup reads as signed out.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Loading {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.state = Loading
	c.mu.Unlock()

	var (
		roots  []comment.Comment
		index  *mention.Index
		viewer *mention.UserIdentity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roots, err = c.backend.FetchComments(gctx, c.reviewID)
		return err
	})
	g.Go(func() error {
		index = mention.LoadIndex(gctx, c.directory, c.logger)
		return nil
	})
	g.Go(func() error {
		viewer = c.currentUser(gctx)
		return nil
	})
	err := g.Wait()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.state = Errored
		c.tree = comment.NewTree(nil)
		c.mu.Unlock()
		return c.fail("load", "Failed to load comments", err)
	}
	defer c.mu.Unlock()

	c.tree = comment.NewTree(roots)
	c.index = index
	c.renderer = mention.NewRenderer(index.Users())
	c.viewer = viewer
	c.state = Ready
	c.logger.Debug().Int("comments", c.tree.Len()).Int("users", index.Len()).Msg("comment section loaded")
	return nil
}

// Submit posts a new top-level comment and prepends it once saved.
func (c *Controller) Submit(ctx context.Context, content string) (comment.Comment, error) {
	return c.create(ctx, "submit", "", content)
}

// Reply posts a reply under a top-level comment and appends it once saved.
func (c *Controller) Reply(ctx context.Context, parentID, content string) (comment.Comment, error) {
	return c.create(ctx, "reply", parentID, content)
}

func (c *Controller) create(ctx context.Context, op, parentID, content string) (comment.Comment, error) {
	key := op
	if parentID != "" {
		key = op + ":" + parentID
	}
	if err := c.ready(); err != nil {
		return comment.Comment{}, err
	}

	text := strings.TrimSpace(content)
	if text == "" {
		return comment.Comment{}, c.fail(op, "Comment cannot be empty", ErrEmptyContent)
	}
	if parentID != "" {
		c.mu.Lock()
		parent, ok := c.tree.Find(parentID)
		c.mu.Unlock()
		if !ok {
			return comment.Comment{}, c.fail(op, "That comment no longer exists", comment.ErrNotFound)
		}
		if !parent.IsTopLevel() {
			return comment.Comment{}, c.fail(op, "Replies can only be added to top-level comments", comment.ErrNestedReply)
		}
	}

	if !c.begin(key) {
		return comment.Comment{}, ErrInFlight
	}
	defer c.end(key)

	user := c.currentUser(ctx)
	if user == nil {
		return comment.Comment{}, c.fail(op, "Please sign in to comment", ErrSignInRequired)
	}

	created, err := c.backend.CreateComment(ctx, NewComment{
		ReviewID: c.reviewID,
		Content:  text,
		AuthorID: user.ID,
		ParentID: parentID,
	})
	if err != nil {
		return comment.Comment{}, c.fail(op, "Failed to post comment", err)
	}
	if created.AuthorName == "" {
		created.AuthorName = user.Name
	}

	// The comment is saved either way, so mentions go out even after Close.
	c.mu.Lock()
	closed := c.closed
	if !closed {
		if parentID == "" {
			err = c.tree.Prepend(created)
		} else {
			err = c.tree.AppendReply(created)
		}
	}
	candidates := c.index.Users()
	c.mu.Unlock()
	if err != nil {
		c.logger.Warn().Err(err).Str("comment_id", created.ID).Msg("saved comment does not fit the local thread")
	}

	c.notifyMentions(ctx, user.Name, created, candidates)
	if closed {
		return created, ErrClosed
	}
	return created, nil
}

// Vote presses the up or down button on a comment. Pressing the button the
// viewer already holds removes the vote.
func (c *Controller) Vote(ctx context.Context, commentID string, want vote.Type) (vote.State, error) {
	if err := c.ready(); err != nil {
		return vote.State{}, err
	}
	key := "vote:" + commentID
	if !c.begin(key) {
		return vote.State{}, ErrInFlight
	}
	defer c.end(key)

	c.mu.Lock()
	target, ok := c.tree.Find(commentID)
	c.mu.Unlock()
	if !ok {
		return vote.State{}, c.fail("vote", "That comment no longer exists", comment.ErrNotFound)
	}

	user := c.currentUser(ctx)
	if user == nil {
		return target.VoteState(), c.fail("vote", "Please sign in to vote", ErrSignInRequired)
	}

	tr, err := vote.Plan(target.VoteState(), user.ID, target.AuthorID, want)
	if err != nil {
		msg := "Failed to vote"
		if errors.Is(err, vote.ErrSelfVote) {
			msg = "You cannot vote on your own comment"
		}
		return target.VoteState(), c.fail("vote", msg, err)
	}

	switch tr.Action {
	case vote.Remove:
		err = c.backend.RemoveVote(ctx, commentID, user.ID)
	default:
		err = c.backend.CastVote(ctx, commentID, user.ID, tr.Type)
	}
	if err != nil {
		return target.VoteState(), c.fail("vote", "Failed to vote", err)
	}

	next := tr.Apply()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return next, ErrClosed
	}
	if err := c.tree.Update(commentID, func(cm *comment.Comment) { cm.SetVoteState(next) }); err != nil {
		c.logger.Debug().Str("comment_id", commentID).Msg("voted comment left the thread before the vote landed")
	}
	return next, nil
}

// Delete removes a comment, with its replies when it is top-level. The
// backend decides whether the viewer may delete it.
func (c *Controller) Delete(ctx context.Context, commentID string) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.mu.Lock()
	_, ok := c.tree.Find(commentID)
	c.mu.Unlock()
	if !ok {
		return c.fail("delete", "That comment no longer exists", comment.ErrNotFound)
	}

	key := "delete:" + commentID
	if !c.begin(key) {
		return ErrInFlight
	}
	defer c.end(key)

	if err := c.backend.DeleteComment(ctx, commentID); err != nil {
		return c.fail("delete", "Failed to delete comment", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.tree.Remove(commentID); err != nil {
		c.logger.Debug().Str("comment_id", commentID).Msg("deleted comment already gone locally")
	}
	c.mu.Unlock()
	c.notices.Notice(Notice{Level: LevelInfo, Message: "Comment deleted"})
	return nil
}

// CanDelete reports whether the loaded viewer authored commentID, for
// hiding the delete control.
func (c *Controller) CanDelete(commentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	target, ok := c.tree.Find(commentID)
	if !ok || c.viewer == nil {
		return false
	}
	return rbac.Can(c.viewer.ID, target.AuthorID, rbac.ActionDelete)
}

// Close marks the section unmounted. Results that arrive afterwards are
// dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Wait blocks until dispatched mention notifications have finished.
func (c *Controller) Wait() { c.dispatches.Wait() }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() []comment.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Snapshot()
}

func (c *Controller) Viewer() *mention.UserIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewer == nil {
		return nil
	}
	v := *c.viewer
	return &v
}

// Index is the mention index loaded with the thread.
func (c *Controller) Index() *mention.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Composer returns a fresh input bound to the section's mention index.
func (c *Controller) Composer() *mention.Composer {
	return mention.NewComposer(c.Index(), mention.DefaultSuggestionLimit)
}

// Render splits content into text and mention segments against the loaded
// users.
func (c *Controller) Render(content string) []mention.Segment {
	c.mu.Lock()
	r := c.renderer
	c.mu.Unlock()
	return r.Render(content)
}

func (c *Controller) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != Ready {
		return ErrNotReady
	}
	return nil
}

func (c *Controller) begin(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Controller) end(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Controller) currentUser(ctx context.Context) *mention.UserIdentity {
	if c.auth == nil {
		return nil
	}
	user, err := c.auth.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("current user lookup failed")
		return nil
	}
	if user == nil || user.ID == "" {
		return nil
	}
	return user
}

func (c *Controller) notifyMentions(ctx context.Context, commenterName string, created comment.Comment, candidates []mention.UserIdentity) {
	if c.dispatcher == nil {
		return
	}
	payload, ok := notify.Build(created.Content, commenterName, c.reviewID, created.ID, candidates)
	if !ok {
		return
	}

	dctx := context.WithoutCancel(ctx)
	c.dispatches.Add(1)
	go func() {
		defer c.dispatches.Done()
		if err := c.dispatcher.Dispatch(dctx, payload); err != nil {
			c.logger.Warn().Err(&Error{Kind: KindNotification, Op: "notify", Message: "mention notification failed", Err: err}).
				Str("comment_id", created.ID).
				Int("mentioned", len(payload.MentionedUsers)).
				Msg("mention notification failed")
		}
	}()
}

// fail records a notice and returns the classified error.
func (c *Controller) fail(op, message string, err error) error {
	kind := classify(err)
	c.notices.Notice(Notice{Level: LevelError, Message: message})
	ev := c.logger.Warn()
	if kind == KindServer {
		ev = c.logger.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", string(kind)).Msg(message)
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}
