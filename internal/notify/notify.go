// Package notify fans mention notifications out to mentioned users. The
// commenting side only dispatches; delivery happens out of band and its
// failures never affect the comment that triggered it.
package notify

import (
	"context"
	"fmt"

	"github.com/hay-kot/criterio"

	"graphreview/api/internal/mention"
)

// Payload is one mention notification.
type Payload struct {
	MentionedUsers []mention.UserIdentity `json:"mentionedUsers"`
	CommenterName  string                 `json:"commenterName"`
	ReviewID       string                 `json:"reviewId"`
	CommentID      string                 `json:"commentId"`
	CommentContent string                 `json:"commentContent"`
}

func (p Payload) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if len(p.MentionedUsers) == 0 {
		errs = errs.Append("mentionedUsers", fmt.Errorf("at least one user is required"))
	}
	for i, u := range p.MentionedUsers {
		if u.ID == "" {
			errs = errs.Append(fmt.Sprintf("mentionedUsers[%d].id", i), fmt.Errorf("is required"))
		}
	}
	return criterio.ValidateStruct(
		criterio.Run("reviewId", p.ReviewID, required),
		criterio.Run("commentId", p.CommentID, required),
		errs.ToError(),
	)
}

func required(v string) error {
	if v == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

// Dispatcher delivers a payload somewhere it will eventually be acted on.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload Payload) error
}

type DispatcherFunc func(ctx context.Context, payload Payload) error

func (f DispatcherFunc) Dispatch(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// Build returns the payload for content, or false when nobody in candidates
// is mentioned.
func Build(content, commenterName, reviewID, commentID string, candidates []mention.UserIdentity) (Payload, bool) {
	users := mention.Mentioned(content, candidates)
	if len(users) == 0 {
		return Payload{}, false
	}
	return Payload{
		MentionedUsers: users,
		CommenterName:  commenterName,
		ReviewID:       reviewID,
		CommentID:      commentID,
		CommentContent: content,
	}, true
}
