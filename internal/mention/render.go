package mention

import (
	"regexp"
	"sort"
	"strings"
)

type SegmentKind string

const (
	SegmentText    SegmentKind = "text"
	SegmentMention SegmentKind = "mention"
)

// Segment is a piece of rendered comment content. Mention segments carry the
// display name in Value and the resolved user in UserID.
type Segment struct {
	Kind   SegmentKind `json:"type"`
	Value  string      `json:"value"`
	UserID string      `json:"userId,omitempty"`
}

// Renderer splits comment content into text and mention segments for a
// fixed set of known users.
type Renderer struct {
	pattern *regexp.Regexp
	byName  map[string]string
}

func NewRenderer(known []UserIdentity) *Renderer {
	byName := make(map[string]string, len(known))
	names := make([]string, 0, len(known))
	for _, user := range known {
		if user.Name == "" {
			continue
		}
		if _, seen := byName[user.Name]; seen {
			continue
		}
		byName[user.Name] = user.ID
		names = append(names, user.Name)
	}
	if len(names) == 0 {
		return &Renderer{byName: byName}
	}

	// Longest first so "@Jane Doe" is not cut short by "@Jane".
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = regexp.QuoteMeta(name)
	}

	return &Renderer{
		pattern: regexp.MustCompile("@(" + strings.Join(quoted, "|") + ")"),
		byName:  byName,
	}
}

// Render is a convenience wrapper for one-off rendering.
func Render(content string, known []UserIdentity) []Segment {
	return NewRenderer(known).Render(content)
}

func (r *Renderer) Render(content string) []Segment {
	if content == "" {
		return nil
	}
	if r.pattern == nil {
		return []Segment{{Kind: SegmentText, Value: content}}
	}

	var segments []Segment
	last := 0
	for _, m := range r.pattern.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			segments = append(segments, Segment{Kind: SegmentText, Value: content[last:m[0]]})
		}
		name := content[m[2]:m[3]]
		segments = append(segments, Segment{Kind: SegmentMention, Value: name, UserID: r.byName[name]})
		last = m[1]
	}
	if last < len(content) {
		segments = append(segments, Segment{Kind: SegmentText, Value: content[last:]})
	}
	return segments
}
