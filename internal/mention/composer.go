package mention

// Composer is the state of one comment or reply input: its text, caret and
// suggestion list. Each input owns its own Composer over a shared Index.
type Composer struct {
	index       *Index
	limit       int
	text        string
	caret       int
	suggestions Suggestions
}

func NewComposer(index *Index, limit int) *Composer {
	return &Composer{index: index, limit: limit}
}

// SetText records an edit and refreshes suggestions.
func (c *Composer) SetText(text string, caret int) {
	c.text = text
	c.caret = clamp(caret, 0, len([]rune(text)))
	c.suggestions.Update(c.index, c.text, c.caret, c.limit)
}

// Key feeds a keystroke. It returns true when the key was consumed by the
// suggestion list; Enter on a highlighted candidate rewrites the text.
func (c *Composer) Key(key Key) bool {
	detection := c.suggestions.Detection()
	result := c.suggestions.HandleKey(key)
	if result.Selected != nil {
		c.text, c.caret = Commit(c.text, detection, c.caret, *result.Selected)
	}
	return result.Handled
}

// Select commits a candidate picked with the pointer.
func (c *Composer) Select(candidate UserIdentity) {
	detection := c.suggestions.Detection()
	if !detection.Active {
		return
	}
	c.text, c.caret = Commit(c.text, detection, c.caret, candidate)
	c.suggestions.Dismiss()
}

func (c *Composer) Dismiss() { c.suggestions.Dismiss() }

// Reset clears the input after a successful submit.
func (c *Composer) Reset() {
	c.text = ""
	c.caret = 0
	c.suggestions.Dismiss()
}

func (c *Composer) Text() string { return c.text }

func (c *Composer) Caret() int { return c.caret }

func (c *Composer) Suggestions() *Suggestions { return &c.suggestions }

// Anchor returns where the dropdown should be drawn, and false when no list
// is showing.
func (c *Composer) Anchor(m Measurer, box Rect, scroll Point) (Point, bool) {
	if !c.suggestions.Active() {
		return Point{}, false
	}
	return AnchorPosition(m, c.text, c.suggestions.Detection().AnchorIndex, box, scroll), true
}
