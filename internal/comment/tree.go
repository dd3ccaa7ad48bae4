package comment

import "errors"

var (
	ErrNotFound      = errors.New("comment not found")
	ErrNestedReply   = errors.New("replies can only be added to top-level comments")
	ErrParentMissing = errors.New("reply parent is not in the tree")
)

// Tree is an ordered list of top-level comments, each holding one level of
// replies. It is not safe for concurrent use.
type Tree struct {
	roots []Comment
}

// NewTree builds a tree from already nested comments.
func NewTree(roots []Comment) *Tree {
	t := &Tree{roots: make([]Comment, 0, len(roots))}
	for _, c := range roots {
		if !c.IsTopLevel() {
			continue
		}
		t.roots = append(t.roots, c.Clone())
	}
	return t
}

// Prepend inserts a new top-level comment at the head.
func (t *Tree) Prepend(c Comment) error {
	if !c.IsTopLevel() {
		return ErrNestedReply
	}
	c.Replies = nil
	t.roots = append([]Comment{c}, t.roots...)
	return nil
}

// AppendReply adds c to the end of its parent's replies.
func (t *Tree) AppendReply(c Comment) error {
	if c.IsTopLevel() {
		return ErrParentMissing
	}
	for i := range t.roots {
		if t.roots[i].ID == c.ParentID {
			c.Replies = nil
			t.roots[i].Replies = append(t.roots[i].Replies, c)
			return nil
		}
	}
	if _, ok := t.Find(c.ParentID); ok {
		return ErrNestedReply
	}
	return ErrParentMissing
}

// Remove deletes the comment with id. A top-level comment goes with its
// replies; a reply leaves its parent and siblings in place.
func (t *Tree) Remove(id string) error {
	for i := range t.roots {
		if t.roots[i].ID == id {
			t.roots = append(t.roots[:i:i], t.roots[i+1:]...)
			return nil
		}
		replies := t.roots[i].Replies
		for j := range replies {
			if replies[j].ID == id {
				t.roots[i].Replies = append(replies[:j:j], replies[j+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

// Find returns a copy of the comment with id.
func (t *Tree) Find(id string) (Comment, bool) {
	if c := t.lookup(id); c != nil {
		return c.Clone(), true
	}
	return Comment{}, false
}

// Update applies fn to the comment with id in place. fn must not change the
// comment's ID, ParentID or Replies.
func (t *Tree) Update(id string, fn func(*Comment)) error {
	c := t.lookup(id)
	if c == nil {
		return ErrNotFound
	}
	keepID, keepParent, keepReplies := c.ID, c.ParentID, c.Replies
	fn(c)
	c.ID, c.ParentID, c.Replies = keepID, keepParent, keepReplies
	return nil
}

// Len counts every node, replies included.
func (t *Tree) Len() int {
	n := len(t.roots)
	for _, r := range t.roots {
		n += len(r.Replies)
	}
	return n
}

// Snapshot returns a deep copy safe to hand to renderers.
func (t *Tree) Snapshot() []Comment {
	out := make([]Comment, len(t.roots))
	for i, c := range t.roots {
		out[i] = c.Clone()
	}
	return out
}

func (t *Tree) lookup(id string) *Comment {
	for i := range t.roots {
		if t.roots[i].ID == id {
			return &t.roots[i]
		}
		for j := range t.roots[i].Replies {
			if t.roots[i].Replies[j].ID == id {
				return &t.roots[i].Replies[j]
			}
		}
	}
	return nil
}
