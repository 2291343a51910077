// Package snapshot renders terminal grids into stable text and emits the
// results to sinks.
//
// Each grid row becomes one line. Style changes are written inline as
// markers of the form {codes}; {} returns to the default style. Codes
// appear in a fixed order:
//
//	b  bold        d  dim        i  italic     u  underline
//	k  blink       r  reverse    h  hidden     s  strike
//	fg=N or fg=#rrggbb           bg=N or bg=#rrggbb
//
// A literal '{' in cell text is doubled. Trailing unstyled blanks are
// trimmed and a row that ends in a non-default style is closed with {}.
package snapshot

import (
	"strings"

	"github.com/dshills/ptyscript/internal/vt"
)

// RenderOption configures Render.
type RenderOption func(*renderConfig)

type renderConfig struct {
	plain bool
}

// Plain renders cell text only, without style markers.
func Plain() RenderOption {
	return func(c *renderConfig) {
		c.plain = true
	}
}

// Render returns one line per grid row. The caller must hold whatever lock
// guards g against concurrent Feed calls.
func Render(g *vt.Grid, opts ...RenderOption) []string {
	var cfg renderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	lines := make([]string, g.Rows())
	for y := range lines {
		lines[y] = renderRow(g.Row(y), cfg.plain)
	}
	return lines
}

func renderRow(cells []vt.Cell, plain bool) string {
	end := len(cells)
	for end > 0 && trailingBlank(cells[end-1], plain) {
		end--
	}

	var sb strings.Builder
	var cur vt.Style
	for _, c := range cells[:end] {
		if c.Width == 0 {
			continue
		}
		if plain {
			sb.WriteString(c.String())
			continue
		}
		if c.Style != cur {
			sb.WriteString(Marker(c.Style))
			cur = c.Style
		}
		sb.WriteString(strings.ReplaceAll(c.String(), "{", "{{"))
	}
	if !plain && !cur.IsDefault() {
		sb.WriteString("{}")
	}
	return sb.String()
}

func trailingBlank(c vt.Cell, plain bool) bool {
	if plain {
		return c.Width == 1 && c.Rune == ' ' && c.Comb == ""
	}
	return c.IsBlank()
}

var attrCodes = []struct {
	attr vt.Attr
	code string
}{
	{vt.AttrBold, "b"},
	{vt.AttrDim, "d"},
	{vt.AttrItalic, "i"},
	{vt.AttrUnderline, "u"},
	{vt.AttrBlink, "k"},
	{vt.AttrReverse, "r"},
	{vt.AttrHidden, "h"},
	{vt.AttrStrike, "s"},
}

// Marker returns the inline marker that switches to style s.
func Marker(s vt.Style) string {
	return "{" + strings.Join(Codes(s), ",") + "}"
}

// Codes returns the marker codes for s in canonical order. The default
// style has no codes.
func Codes(s vt.Style) []string {
	var codes []string
	for _, ac := range attrCodes {
		if s.Attrs.Has(ac.attr) {
			codes = append(codes, ac.code)
		}
	}
	if !s.Fg.IsDefault() {
		codes = append(codes, "fg="+s.Fg.String())
	}
	if !s.Bg.IsDefault() {
		codes = append(codes, "bg="+s.Bg.String())
	}
	return codes
}
