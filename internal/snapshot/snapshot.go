package snapshot

import (
	"strconv"
	"strings"

	"github.com/dshills/ptyscript/internal/vt"
)

// Snapshot is a rendering of a grid at one point of a script run. It holds
// no reference to the grid it was taken from.
type Snapshot struct {
	// Seq is the 1-based position of the snapshot among those taken in
	// the run.
	Seq  int
	Name string

	Rows int
	Cols int

	CursorRow     int
	CursorCol     int
	CursorVisible bool
	AltScreen     bool
	Title         string

	Lines []string
}

// Take renders g into a Snapshot.
func Take(seq int, name string, g *vt.Grid, opts ...RenderOption) Snapshot {
	row, col := g.Cursor()
	return Snapshot{
		Seq:           seq,
		Name:          name,
		Rows:          g.Rows(),
		Cols:          g.Cols(),
		CursorRow:     row,
		CursorCol:     col,
		CursorVisible: g.CursorVisible(),
		AltScreen:     g.AltScreen(),
		Title:         g.Title(),
		Lines:         Render(g, opts...),
	}
}

// Text returns the rendered lines joined by newlines, with a final newline.
func (s Snapshot) Text() string {
	if len(s.Lines) == 0 {
		return ""
	}
	return strings.Join(s.Lines, "\n") + "\n"
}

// Label returns "snapshot N" or "snapshot N: name".
func (s Snapshot) Label() string {
	label := "snapshot " + strconv.Itoa(s.Seq)
	if s.Name != "" {
		label += ": " + s.Name
	}
	return label
}
