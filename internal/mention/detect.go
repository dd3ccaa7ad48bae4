package mention

import (
	"strings"
	"unicode"
)

// Detection describes the @token being typed at the caret, if any.
type Detection struct {
	Active bool
	// Query is the lower-cased text between the @ and the caret.
	Query string
	// AnchorIndex is the rune offset of the @.
	AnchorIndex int
}

// Detect scans backward from caret for the nearest @ with no whitespace
// between it and the caret.
func Detect(text string, caret int) Detection {
	runes := []rune(text)
	caret = clamp(caret, 0, len(runes))

	for i := caret - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsSpace(r) {
			return Detection{}
		}
		if r == '@' {
			return Detection{
				Active:      true,
				Query:       strings.ToLower(string(runes[i+1 : caret])),
				AnchorIndex: i,
			}
		}
	}
	return Detection{}
}

// Commit replaces [AnchorIndex, caret) with "@Name " and returns the new
// text and the caret positioned right after the inserted space. An inactive
// detection leaves the text unchanged.
func Commit(text string, detection Detection, caret int, candidate UserIdentity) (string, int) {
	runes := []rune(text)
	caret = clamp(caret, 0, len(runes))
	if !detection.Active || detection.AnchorIndex < 0 || detection.AnchorIndex > caret {
		return text, caret
	}

	insert := []rune("@" + candidate.Name + " ")
	out := make([]rune, 0, len(runes)-(caret-detection.AnchorIndex)+len(insert))
	out = append(out, runes[:detection.AnchorIndex]...)
	out = append(out, insert...)
	out = append(out, runes[caret:]...)
	return string(out), detection.AnchorIndex + len(insert)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
