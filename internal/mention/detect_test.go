package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		caret int
		want  Detection
	}{
		{
			name:  "partial token at end",
			text:  "Hello @Jo",
			caret: 9,
			want:  Detection{Active: true, Query: "jo", AnchorIndex: 6},
		},
		{
			name:  "space breaks the token",
			text:  "Hello @Jo mate",
			caret: 14,
			want:  Detection{},
		},
		{
			name:  "bare at sign",
			text:  "ping @",
			caret: 6,
			want:  Detection{Active: true, Query: "", AnchorIndex: 5},
		},
		{
			name:  "caret inside the token",
			text:  "cc @Jane later",
			caret: 6,
			want:  Detection{Active: true, Query: "ja", AnchorIndex: 3},
		},
		{
			name:  "newline breaks the token",
			text:  "@Jo\nthanks",
			caret: 10,
			want:  Detection{},
		},
		{
			name:  "no at sign",
			text:  "looks good",
			caret: 10,
			want:  Detection{},
		},
		{
			name:  "rune offsets",
			text:  "héllo @Zoë",
			caret: 10,
			want:  Detection{Active: true, Query: "zoë", AnchorIndex: 6},
		},
		{
			name:  "caret past end is clamped",
			text:  "@al",
			caret: 99,
			want:  Detection{Active: true, Query: "al", AnchorIndex: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text, tt.caret))
		})
	}
}

func TestCommit(t *testing.T) {
	text := "Thanks @ja for this"
	caret := 10
	detection := Detect(text, caret)

	got, newCaret := Commit(text, detection, caret, UserIdentity{ID: "u1", Name: "Jane Doe"})

	assert.Equal(t, "Thanks @Jane Doe  for this", got)
	assert.Equal(t, 17, newCaret)
}

func TestCommitInactiveIsNoop(t *testing.T) {
	got, caret := Commit("plain", Detection{}, 5, UserIdentity{Name: "Jane"})
	assert.Equal(t, "plain", got)
	assert.Equal(t, 5, caret)
}
