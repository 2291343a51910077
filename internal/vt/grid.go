package vt

import "strings"

// maxComb bounds the combining bytes kept per cell.
const maxComb = 32

// CursorStyle represents the cursor appearance.
type CursorStyle int

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// Charset is the character set designated into G0.
type Charset uint8

const (
	CharsetASCII Charset = iota
	CharsetGraphics
)

type savedCursor struct {
	row, col   int
	style      Style
	wrapNext   bool
	originMode bool
	charset    Charset
}

// Grid represents the terminal screen buffer.
type Grid struct {
	rows int
	cols int

	lines     [][]Cell // active buffer
	primary   [][]Cell
	alternate [][]Cell
	altActive bool

	// Cursor position (0-indexed)
	row, col int
	// wrapNext is set when a character was written in the last column
	// with autowrap on; the next printable wraps first.
	wrapNext bool

	cursorVisible bool
	cursorStyle   CursorStyle

	// Scroll region, inclusive
	top, bottom int

	style   Style
	charset Charset
	saved   savedCursor

	originMode    bool
	autoWrap      bool
	appCursorKeys bool

	title string
}

// NewGrid creates a grid with the given dimensions. Non-positive
// dimensions fall back to 24x80.
func NewGrid(rows, cols int) *Grid {
	if rows < 1 {
		rows = 24
	}
	if cols < 1 {
		cols = 80
	}

	g := &Grid{rows: rows, cols: cols}
	g.primary = make([][]Cell, rows)
	g.alternate = make([][]Cell, rows)
	for y := 0; y < rows; y++ {
		g.primary[y] = blankRow(cols, Style{})
		g.alternate[y] = blankRow(cols, Style{})
	}
	g.lines = g.primary
	g.resetModes()
	return g
}

func (g *Grid) resetModes() {
	g.row, g.col = 0, 0
	g.wrapNext = false
	g.cursorVisible = true
	g.cursorStyle = CursorBlock
	g.top, g.bottom = 0, g.rows-1
	g.style = Style{}
	g.charset = CharsetASCII
	g.saved = savedCursor{}
	g.originMode = false
	g.autoWrap = true
	g.appCursorKeys = false
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Cursor returns the cursor position.
func (g *Grid) Cursor() (row, col int) { return g.row, g.col }

// CursorVisible returns whether the cursor is visible.
func (g *Grid) CursorVisible() bool { return g.cursorVisible }

// CursorStyle returns the cursor shape requested by the program.
func (g *Grid) CursorStyle() CursorStyle { return g.cursorStyle }

// AltScreen reports whether the alternate buffer is active.
func (g *Grid) AltScreen() bool { return g.altActive }

// AppCursorKeys reports whether DECCKM application cursor mode is set.
func (g *Grid) AppCursorKeys() bool { return g.appCursorKeys }

// Title returns the last title set with OSC 0 or 2.
func (g *Grid) Title() string { return g.title }

// Style returns the style applied to newly written characters.
func (g *Grid) Style() Style { return g.style }

// Cell returns the cell at the given position.
// Returns a blank cell if out of bounds.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return BlankCell(Style{})
	}
	return g.lines[row][col]
}

// Row returns a copy of the given row of the active buffer.
func (g *Grid) Row(row int) []Cell {
	if row < 0 || row >= g.rows {
		return nil
	}
	cells := make([]Cell, g.cols)
	copy(cells, g.lines[row])
	return cells
}

// Text returns the active buffer as plain text, one line per row with
// trailing spaces removed.
func (g *Grid) Text() string {
	var sb strings.Builder
	for y := 0; y < g.rows; y++ {
		var line strings.Builder
		for _, c := range g.lines[y] {
			line.WriteString(c.String())
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		if y < g.rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Contains reports whether any row of the active buffer contains s.
func (g *Grid) Contains(s string) bool {
	return strings.Contains(g.Text(), s)
}

func (g *Grid) put(r rune, width int) {
	if width > g.cols {
		width = 1
	}

	if g.wrapNext {
		g.wrapNext = false
		if g.autoWrap {
			g.col = 0
			g.lineFeed()
		}
	}

	if width == 2 && g.col == g.cols-1 {
		if !g.autoWrap {
			return
		}
		g.clearWide(g.row, g.col)
		g.lines[g.row][g.col] = BlankCell(g.style)
		g.col = 0
		g.lineFeed()
	}

	line := g.lines[g.row]
	g.clearWide(g.row, g.col)
	line[g.col] = Cell{Rune: r, Width: uint8(width), Style: g.style}
	if width == 2 {
		g.clearWide(g.row, g.col+1)
		line[g.col+1] = Cell{Width: 0, Style: g.style}
	}

	if g.col+width >= g.cols {
		g.col = g.cols - 1
		g.wrapNext = g.autoWrap
	} else {
		g.col += width
	}
}

// combine attaches a zero-width rune to the cell before the cursor.
func (g *Grid) combine(r rune) {
	col := g.col
	if !g.wrapNext {
		col--
	}
	if col < 0 {
		return
	}
	line := g.lines[g.row]
	if line[col].Width == 0 && col > 0 {
		col--
	}
	c := &line[col]
	if len(c.Comb)+len(string(r)) > maxComb {
		return
	}
	c.Comb += string(r)
}

// clearWide blanks the other half of a wide character overlapping col.
func (g *Grid) clearWide(row, col int) {
	if col < 0 || col >= g.cols {
		return
	}
	line := g.lines[row]
	switch line[col].Width {
	case 0:
		if col > 0 {
			line[col-1] = BlankCell(line[col-1].Style)
		}
	case 2:
		if col+1 < g.cols {
			line[col+1] = BlankCell(line[col+1].Style)
		}
	}
}

func (g *Grid) moveTo(row, col int) {
	g.wrapNext = false
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}

	top, bottom := 0, g.rows-1
	if g.originMode {
		top, bottom = g.top, g.bottom
		row += top
	}
	if row < top {
		row = top
	}
	if row > bottom {
		row = bottom
	}
	g.row, g.col = row, col
}

// moveRel moves the cursor, stopping at the scroll margins when starting
// inside them.
func (g *Grid) moveRel(dRow, dCol int) {
	g.wrapNext = false
	col := g.col + dCol
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}

	row := g.row + dRow
	top, bottom := 0, g.rows-1
	if g.row >= g.top && g.row <= g.bottom {
		top, bottom = g.top, g.bottom
	}
	if row < top {
		row = top
	}
	if row > bottom {
		row = bottom
	}
	g.row, g.col = row, col
}

// cursorRow returns the cursor row as seen by the program, relative to the
// scroll region in origin mode.
func (g *Grid) cursorRow() int {
	if g.originMode {
		return g.row - g.top
	}
	return g.row
}

func (g *Grid) carriageReturn() {
	g.wrapNext = false
	g.col = 0
}

func (g *Grid) backspace() {
	g.wrapNext = false
	if g.col > 0 {
		g.col--
	}
}

func (g *Grid) tab() {
	g.wrapNext = false
	next := (g.col/8 + 1) * 8
	if next >= g.cols {
		next = g.cols - 1
	}
	g.col = next
}

// lineFeed moves the cursor down one line, scrolling the region when the
// cursor is on its bottom margin.
func (g *Grid) lineFeed() {
	g.wrapNext = false
	switch {
	case g.row == g.bottom:
		g.scrollUp(1)
	case g.row < g.rows-1:
		g.row++
	}
}

func (g *Grid) reverseLineFeed() {
	g.wrapNext = false
	switch {
	case g.row == g.top:
		g.scrollDown(1)
	case g.row > 0:
		g.row--
	}
}

// scrollUp discards n rows at the top of the scroll region and appends
// blank rows at its bottom.
func (g *Grid) scrollUp(n int) {
	g.scrollRegionUp(g.top, g.bottom, n)
}

func (g *Grid) scrollRegionUp(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	if size := bottom - top + 1; n > size {
		n = size
	}
	for y := top; y <= bottom-n; y++ {
		g.lines[y] = g.lines[y+n]
	}
	for y := bottom - n + 1; y <= bottom; y++ {
		g.lines[y] = blankRow(g.cols, g.style)
	}
}

func (g *Grid) scrollDown(n int) {
	g.scrollRegionDown(g.top, g.bottom, n)
}

func (g *Grid) scrollRegionDown(top, bottom, n int) {
	if n <= 0 || top > bottom {
		return
	}
	if size := bottom - top + 1; n > size {
		n = size
	}
	for y := bottom; y >= top+n; y-- {
		g.lines[y] = g.lines[y-n]
	}
	for y := top; y < top+n; y++ {
		g.lines[y] = blankRow(g.cols, g.style)
	}
}

func (g *Grid) setScrollRegion(top, bottom int) {
	if top < 0 {
		top = 0
	}
	if bottom >= g.rows {
		bottom = g.rows - 1
	}
	if top >= bottom {
		return
	}
	g.top, g.bottom = top, bottom
	g.moveTo(0, 0)
}

// eraseCells blanks [from, to) on row.
func (g *Grid) eraseCells(row, from, to int) {
	if from < 0 {
		from = 0
	}
	if to > g.cols {
		to = g.cols
	}
	if from >= to {
		return
	}
	g.clearWide(row, from)
	g.clearWide(row, to-1)
	line := g.lines[row]
	b := BlankCell(g.style)
	for x := from; x < to; x++ {
		line[x] = b
	}
}

func (g *Grid) eraseDisplay(mode int) {
	g.wrapNext = false
	switch mode {
	case 0:
		g.eraseCells(g.row, g.col, g.cols)
		for y := g.row + 1; y < g.rows; y++ {
			g.eraseCells(y, 0, g.cols)
		}
	case 1:
		for y := 0; y < g.row; y++ {
			g.eraseCells(y, 0, g.cols)
		}
		g.eraseCells(g.row, 0, g.col+1)
	case 2:
		for y := 0; y < g.rows; y++ {
			g.eraseCells(y, 0, g.cols)
		}
	case 3:
		// Scrollback only, and the grid keeps none.
	}
}

func (g *Grid) eraseLine(mode int) {
	g.wrapNext = false
	switch mode {
	case 0:
		g.eraseCells(g.row, g.col, g.cols)
	case 1:
		g.eraseCells(g.row, 0, g.col+1)
	case 2:
		g.eraseCells(g.row, 0, g.cols)
	}
}

func (g *Grid) eraseChars(n int) {
	g.wrapNext = false
	g.eraseCells(g.row, g.col, g.col+n)
}

func (g *Grid) insertChars(n int) {
	g.wrapNext = false
	if n <= 0 {
		return
	}
	if room := g.cols - g.col; n > room {
		n = room
	}
	g.clearWide(g.row, g.col)
	line := g.lines[g.row]
	if line[g.col].Width == 0 {
		line[g.col] = BlankCell(line[g.col].Style)
	}
	copy(line[g.col+n:], line[g.col:g.cols-n])
	b := BlankCell(g.style)
	for x := g.col; x < g.col+n; x++ {
		line[x] = b
	}
	if line[g.cols-1].Width == 2 {
		line[g.cols-1] = b
	}
}

func (g *Grid) deleteChars(n int) {
	g.wrapNext = false
	if n <= 0 {
		return
	}
	if room := g.cols - g.col; n > room {
		n = room
	}
	g.clearWide(g.row, g.col)
	g.clearWide(g.row, g.col+n-1)
	line := g.lines[g.row]
	copy(line[g.col:], line[g.col+n:])
	b := BlankCell(g.style)
	for x := g.cols - n; x < g.cols; x++ {
		line[x] = b
	}
}

func (g *Grid) insertLines(n int) {
	if g.row < g.top || g.row > g.bottom {
		return
	}
	g.scrollRegionDown(g.row, g.bottom, n)
	g.carriageReturn()
}

func (g *Grid) deleteLines(n int) {
	if g.row < g.top || g.row > g.bottom {
		return
	}
	g.scrollRegionUp(g.row, g.bottom, n)
	g.carriageReturn()
}

func (g *Grid) saveCursor() {
	g.saved = savedCursor{
		row:        g.row,
		col:        g.col,
		style:      g.style,
		wrapNext:   g.wrapNext,
		originMode: g.originMode,
		charset:    g.charset,
	}
}

func (g *Grid) restoreCursor() {
	s := g.saved
	g.row, g.col = s.row, s.col
	g.style = s.style
	g.wrapNext = s.wrapNext
	g.originMode = s.originMode
	g.charset = s.charset
}

// useAlternate switches between the primary and alternate buffers.
func (g *Grid) useAlternate(on bool) {
	if on == g.altActive {
		return
	}
	g.altActive = on
	if on {
		g.lines = g.alternate
	} else {
		g.lines = g.primary
	}
}

func (g *Grid) clearAlternate() {
	for y := range g.alternate {
		g.alternate[y] = blankRow(g.cols, g.style)
	}
	if g.altActive {
		g.lines = g.alternate
	}
}

// alignmentTest fills the screen with 'E' (DECALN).
func (g *Grid) alignmentTest() {
	g.top, g.bottom = 0, g.rows-1
	for y := 0; y < g.rows; y++ {
		for x := 0; x < g.cols; x++ {
			g.lines[y][x] = Cell{Rune: 'E', Width: 1}
		}
	}
	g.row, g.col = 0, 0
	g.wrapNext = false
}

// reset performs a full reset (RIS).
func (g *Grid) reset() {
	g.useAlternate(false)
	for y := 0; y < g.rows; y++ {
		g.primary[y] = blankRow(g.cols, Style{})
		g.alternate[y] = blankRow(g.cols, Style{})
	}
	g.lines = g.primary
	g.resetModes()
	g.title = ""
}
