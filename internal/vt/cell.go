package vt

import "fmt"

// ColorKind identifies how a Color is specified.
type ColorKind uint8

const (
	// ColorDefault is the terminal's default foreground or background.
	ColorDefault ColorKind = iota
	// ColorIndexed is one of the 256 palette entries.
	ColorIndexed
	// ColorRGB is a 24-bit color.
	ColorRGB
)

// Color represents a terminal color.
type Color struct {
	Kind    ColorKind
	Index   uint8
	R, G, B uint8
}

// DefaultColor is the zero Color.
var DefaultColor = Color{}

// Indexed returns a palette color (0-15 are the ANSI colors).
func Indexed(index uint8) Color {
	return Color{Kind: ColorIndexed, Index: index}
}

// RGB returns a 24-bit color.
func RGB(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c.Kind == ColorDefault
}

// String returns "" for the default color, the decimal palette index for
// indexed colors and #rrggbb for RGB colors.
func (c Color) String() string {
	switch c.Kind {
	case ColorIndexed:
		return fmt.Sprintf("%d", c.Index)
	case ColorRGB:
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	default:
		return ""
	}
}

// Attr is a set of text attributes.
type Attr uint16

const (
	AttrNone      Attr = 0
	AttrBold      Attr = 1 << 0
	AttrDim       Attr = 1 << 1
	AttrItalic    Attr = 1 << 2
	AttrUnderline Attr = 1 << 3
	AttrBlink     Attr = 1 << 4
	AttrReverse   Attr = 1 << 5
	AttrHidden    Attr = 1 << 6
	AttrStrike    Attr = 1 << 7
)

// Has returns true if all bits of attr are set.
func (a Attr) Has(attr Attr) bool {
	return a&attr == attr
}

// Style is the rendition applied to a cell. The zero Style is the reset
// state.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attr
}

// IsDefault reports whether s is the reset style.
func (s Style) IsDefault() bool {
	return s == Style{}
}

// Cell is a single character cell.
type Cell struct {
	Rune rune
	// Comb holds zero-width combining runes attached to Rune.
	Comb string
	// Width is 1 for normal cells, 2 for the leading half of a wide
	// character and 0 for the trailing half.
	Width uint8
	Style Style
}

// BlankCell returns an erased cell carrying only the background of s.
func BlankCell(s Style) Cell {
	return Cell{Rune: ' ', Width: 1, Style: Style{Bg: s.Bg}}
}

// IsBlank reports whether the cell is an unstyled space.
func (c Cell) IsBlank() bool {
	return c.Rune == ' ' && c.Comb == "" && c.Width == 1 && c.Style.IsDefault()
}

// String returns the text of the cell, including combining runes.
func (c Cell) String() string {
	if c.Width == 0 {
		return ""
	}
	return string(c.Rune) + c.Comb
}

func blankRow(cols int, s Style) []Cell {
	row := make([]Cell, cols)
	b := BlankCell(s)
	for i := range row {
		row[i] = b
	}
	return row
}
