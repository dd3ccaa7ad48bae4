package rbac

type Action string

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionVote    Action = "vote"
	ActionDelete  Action = "delete"
)

// Can reports whether actorID may perform action on a comment written by
// authorID. An empty actorID is an anonymous viewer.
func Can(actorID, authorID string, action Action) bool {
	switch action {
	case ActionRead:
		return true
	case ActionComment:
		return actorID != ""
	case ActionVote:
		return actorID != "" && actorID != authorID
	case ActionDelete:
		return actorID != "" && actorID == authorID
	default:
		return false
	}
}
