package mention

// Key is a keystroke relevant to the suggestion list.
type Key int

const (
	KeyOther Key = iota
	KeyArrowDown
	KeyArrowUp
	KeyEnter
	KeyEscape
)

// DefaultSuggestionLimit caps how many candidates the dropdown shows.
const DefaultSuggestionLimit = 8

// Suggestions is the dropdown state for one input.
type Suggestions struct {
	items     []UserIdentity
	highlight int
	open      bool
	detection Detection
}

// Update re-runs detection for the current text and caret and refreshes the
// candidates from index. The highlight resets when the query changes.
func (s *Suggestions) Update(index *Index, text string, caret, limit int) {
	detection := Detect(text, caret)
	if !detection.Active {
		s.Dismiss()
		return
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	items := index.Filter(detection.Query)
	if len(items) > limit {
		items = items[:limit]
	}
	if !s.open || detection != s.detection {
		s.highlight = 0
	}
	s.items = items
	s.detection = detection
	s.open = true
	if s.highlight >= len(s.items) {
		s.highlight = 0
	}
}

func (s *Suggestions) IsOpen() bool { return s.open }

// Active reports whether navigation keys are intercepted.
func (s *Suggestions) Active() bool { return s.open && len(s.items) > 0 }

func (s *Suggestions) Items() []UserIdentity {
	return cloneUsers(s.items)
}

func (s *Suggestions) Highlighted() int { return s.highlight }

func (s *Suggestions) Detection() Detection { return s.detection }

// Dismiss closes the list without touching the text, as a click outside the
// dropdown does.
func (s *Suggestions) Dismiss() {
	s.items = nil
	s.highlight = 0
	s.open = false
	s.detection = Detection{}
}

// KeyResult reports what HandleKey did. Handled keys must not reach the
// input (no caret move, no form submit). Selected is set on Enter.
type KeyResult struct {
	Handled  bool
	Selected *UserIdentity
}

func (s *Suggestions) HandleKey(key Key) KeyResult {
	if !s.Active() {
		return KeyResult{}
	}
	n := len(s.items)
	switch key {
	case KeyArrowDown:
		s.highlight = (s.highlight + 1) % n
		return KeyResult{Handled: true}
	case KeyArrowUp:
		s.highlight = (s.highlight - 1 + n) % n
		return KeyResult{Handled: true}
	case KeyEnter:
		selected := s.items[s.highlight]
		s.Dismiss()
		return KeyResult{Handled: true, Selected: &selected}
	case KeyEscape:
		s.Dismiss()
		return KeyResult{Handled: true}
	default:
		return KeyResult{}
	}
}
