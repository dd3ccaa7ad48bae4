package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonospaceMeasure(t *testing.T) {
	m := MonospaceMeasurer{CellWidth: 8, CellHeight: 16}

	tests := []struct {
		name  string
		text  string
		index int
		width float64
		want  Point
	}{
		{name: "first line", text: "Hello @Jo", index: 6, width: 800, want: Point{X: 48, Y: 0}},
		{name: "after newline", text: "ab\ncd @x", index: 6, width: 800, want: Point{X: 24, Y: 16}},
		{name: "soft wrap", text: "abcdefgh@x", index: 8, width: 32, want: Point{X: 0, Y: 32}},
		{name: "wide runes", text: "日本@x", index: 2, width: 800, want: Point{X: 32, Y: 0}},
		{name: "no width means no wrap", text: "abcdefgh@x", index: 8, width: 0, want: Point{X: 64, Y: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Measure(tt.text, tt.index, tt.width))
		})
	}
}

func TestAnchorPositionOffsetsByBoxAndScroll(t *testing.T) {
	m := MonospaceMeasurer{CellWidth: 8, CellHeight: 16}
	box := Rect{X: 100, Y: 200, Width: 800, Height: 64}

	got := AnchorPosition(m, "ab\ncd @x", 6, box, Point{X: 0, Y: 10})

	assert.Equal(t, Point{X: 124, Y: 222}, got)
}

func TestComposerAnchor(t *testing.T) {
	c := NewComposer(threeUserIndex(), 0)
	c.SetText("hey @ja", 7)

	got, ok := c.Anchor(MonospaceMeasurer{CellWidth: 1, CellHeight: 1}, Rect{Width: 80}, Point{})

	assert.True(t, ok)
	assert.Equal(t, Point{X: 4, Y: 1}, got)
}
