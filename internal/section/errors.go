package section

import (
	"errors"
	"net/http"

	"graphreview/api/internal/comment"
	"graphreview/api/internal/vote"
)

// Kind classifies a failed action for the user-facing notice.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuth         Kind = "auth"
	KindPermission   Kind = "permission"
	KindServer       Kind = "server"
	KindNotification Kind = "notification"
)

var (
	ErrEmptyContent   = errors.New("comment cannot be empty")
	ErrSignInRequired = errors.New("please sign in")
	ErrInFlight       = errors.New("action already in progress")
	ErrNotReady       = errors.New("comments are not loaded")
	ErrClosed         = errors.New("comment section closed")
)

// Error is returned by every failed controller action that produced a
// notice.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, vote.ErrSelfVote):
		return KindPermission
	case errors.Is(err, vote.ErrNoActor), errors.Is(err, ErrSignInRequired):
		return KindAuth
	case errors.Is(err, ErrEmptyContent), errors.Is(err, comment.ErrNestedReply),
		errors.Is(err, comment.ErrNotFound), errors.Is(err, vote.ErrInvalidType):
		return KindValidation
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusUnauthorized:
			return KindAuth
		case http.StatusForbidden:
			return KindPermission
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return KindValidation
		}
	}
	return KindServer
}
