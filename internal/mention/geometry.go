package mention

import "github.com/mattn/go-runewidth"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Measurer lays out text the way the live input renders it. Measure returns
// the top-left of the glyph at index relative to the content origin when the
// text wraps at width.
type Measurer interface {
	Measure(text string, index int, width float64) Point
	LineHeight() float64
}

// AnchorPosition places the suggestion dropdown just below the line holding
// the @ at index, in the coordinate space of box.
func AnchorPosition(m Measurer, text string, index int, box Rect, scroll Point) Point {
	p := m.Measure(text, index, box.Width)
	return Point{
		X: box.X + p.X - scroll.X,
		Y: box.Y + p.Y + m.LineHeight() - scroll.Y,
	}
}

// MonospaceMeasurer measures text on a fixed cell grid, as a terminal
// renders it. East Asian wide runes take two cells; lines break at any rune
// once the row is full and at every newline.
type MonospaceMeasurer struct {
	CellWidth  float64
	CellHeight float64
}

func (m MonospaceMeasurer) Measure(text string, index int, width float64) Point {
	cellWidth := m.CellWidth
	if cellWidth <= 0 {
		cellWidth = 1
	}
	cols := 0
	if width > 0 {
		cols = int(width / cellWidth)
	}

	runes := []rune(text)
	index = clamp(index, 0, len(runes))

	col, row := 0, 0
	for _, r := range runes[:index] {
		if r == '\n' {
			row++
			col = 0
			continue
		}
		w := runewidth.RuneWidth(r)
		if cols > 0 && col+w > cols {
			row++
			col = 0
		}
		col += w
	}
	if cols > 0 && col >= cols && index < len(runes) && runes[index] != '\n' {
		row++
		col = 0
	}
	return Point{X: float64(col) * cellWidth, Y: float64(row) * m.LineHeight()}
}

func (m MonospaceMeasurer) LineHeight() float64 {
	if m.CellHeight <= 0 {
		return 1
	}
	return m.CellHeight
}
