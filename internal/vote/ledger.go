// Package vote holds the per-comment vote state rules. Count tracks how many
// users hold any vote, not a signed sum, so switching direction leaves it
// unchanged.
package vote

import (
	"errors"
	"fmt"

	"graphreview/api/internal/rbac"
)

type Type string

const (
	None Type = ""
	Up   Type = "up"
	Down Type = "down"
)

var (
	ErrSelfVote    = errors.New("you cannot vote on your own comment")
	ErrNoActor     = errors.New("sign in to vote")
	ErrInvalidType = errors.New("vote type must be up or down")
)

// ParseType accepts "up" and "down".
func ParseType(raw string) (Type, error) {
	switch Type(raw) {
	case Up, Down:
		return Type(raw), nil
	default:
		return None, fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
}

// State is what one viewer sees for one comment.
type State struct {
	Count   int  `json:"voteCount"`
	Current Type `json:"currentUserVote,omitempty"`
}

type Action int

const (
	// Cast sends castVote; it covers both a new vote and a replacement.
	Cast Action = iota + 1
	// Remove sends removeVote.
	Remove
)

func (a Action) String() string {
	switch a {
	case Cast:
		return "cast"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Transition is the server call to make and the state to apply once it
// succeeds.
type Transition struct {
	Action Action
	Type   Type
	Next   State
}

// Apply returns the state after the transition. Callers apply it only after
// the server acknowledged the call.
func (t Transition) Apply() State { return t.Next }

// Plan decides what pressing the want button does given the current state.
// Pressing the button already held removes the vote; otherwise the vote is
// cast, replacing any vote of the other type.
func Plan(state State, actorID, authorID string, want Type) (Transition, error) {
	if want != Up && want != Down {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidType, string(want))
	}
	if actorID == "" {
		return Transition{}, ErrNoActor
	}
	if !rbac.Can(actorID, authorID, rbac.ActionVote) {
		return Transition{}, ErrSelfVote
	}

	count := max(state.Count, 0)
	switch state.Current {
	case want:
		return Transition{
			Action: Remove,
			Next:   State{Count: max(count-1, 0), Current: None},
		}, nil
	case None:
		return Transition{
			Action: Cast,
			Type:   want,
			Next:   State{Count: count + 1, Current: want},
		}, nil
	default:
		return Transition{
			Action: Cast,
			Type:   want,
			Next:   State{Count: count, Current: want},
		}, nil
	}
}
