package vt

import "testing"

func TestNewGrid(t *testing.T) {
	g := NewGrid(24, 80)

	if g.Rows() != 24 || g.Cols() != 80 {
		t.Errorf("expected 24x80, got %dx%d", g.Rows(), g.Cols())
	}
	if row, col := g.Cursor(); row != 0 || col != 0 {
		t.Errorf("expected cursor at origin, got (%d,%d)", row, col)
	}
	if !g.CursorVisible() {
		t.Error("expected cursor visible")
	}
	if g.AltScreen() {
		t.Error("expected primary screen")
	}
	for y := 0; y < g.Rows(); y++ {
		for x := 0; x < g.Cols(); x++ {
			if !g.Cell(y, x).IsBlank() {
				t.Fatalf("expected blank cell at (%d,%d)", y, x)
			}
		}
	}
}

func TestNewGridDefaults(t *testing.T) {
	g := NewGrid(0, -1)

	if g.Rows() != 24 || g.Cols() != 80 {
		t.Errorf("expected 24x80 fallback, got %dx%d", g.Rows(), g.Cols())
	}
}

func TestGridCellOutOfBounds(t *testing.T) {
	g := NewGrid(2, 2)

	for _, pos := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		if c := g.Cell(pos[0], pos[1]); !c.IsBlank() {
			t.Errorf("expected blank cell at %v, got %+v", pos, c)
		}
	}
	if g.Row(5) != nil {
		t.Error("expected nil row out of bounds")
	}
}

func TestGridRowIsCopy(t *testing.T) {
	g := NewGrid(2, 4)
	NewParser(g).FeedString("ab")

	row := g.Row(0)
	row[0].Rune = 'z'

	if g.Cell(0, 0).Rune != 'a' {
		t.Error("expected Row to return a copy")
	}
}

func TestGridTextTrimsTrailingBlanks(t *testing.T) {
	g := NewGrid(3, 10)
	NewParser(g).FeedString("a b   \r\n\r\n  c")

	if got := g.Text(); got != "a b\n\n  c" {
		t.Errorf("expected %q, got %q", "a b\n\n  c", got)
	}
}

func TestGridContains(t *testing.T) {
	g := NewGrid(3, 10)
	NewParser(g).FeedString("foo\r\nbar")

	if !g.Contains("bar") {
		t.Error("expected grid to contain 'bar'")
	}
	if g.Contains("baz") {
		t.Error("expected grid not to contain 'baz'")
	}
}

func TestGridScrollRegionRejectsInvalid(t *testing.T) {
	g := NewGrid(5, 5)

	g.setScrollRegion(3, 1)

	if g.top != 0 || g.bottom != 4 {
		t.Errorf("expected full-screen region, got %d-%d", g.top, g.bottom)
	}
}

func TestGridInsertCharsOnWideContinuation(t *testing.T) {
	g := NewGrid(1, 6)
	p := NewParser(g)
	p.FeedString("世ab\x1b[1;2H\x1b[1@")

	for x := 0; x < g.Cols(); x++ {
		if c := g.Cell(0, x); c.Width == 0 {
			t.Fatalf("unexpected continuation cell at column %d", x)
		}
	}
	if got := g.Text(); got != "   ab" {
		t.Errorf("expected %q, got %q", "   ab", got)
	}
}

func TestColorString(t *testing.T) {
	tests := []struct {
		c    Color
		want string
	}{
		{DefaultColor, ""},
		{Indexed(1), "1"},
		{Indexed(255), "255"},
		{RGB(0xff, 0x10, 0x00), "#ff1000"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestAttrHas(t *testing.T) {
	a := AttrBold | AttrUnderline

	if !a.Has(AttrBold) || !a.Has(AttrUnderline) {
		t.Error("expected bold and underline")
	}
	if a.Has(AttrItalic) {
		t.Error("expected no italic")
	}
}

func TestBlankCellKeepsBackgroundOnly(t *testing.T) {
	c := BlankCell(Style{Fg: Indexed(1), Bg: Indexed(2), Attrs: AttrBold})

	if c.Style != (Style{Bg: Indexed(2)}) {
		t.Errorf("expected background only, got %+v", c.Style)
	}
	if c.IsBlank() {
		t.Error("expected colored blank not to be IsBlank")
	}
}
