package vt

import "strconv"

// The recognised control functions. Each family is a closed table from
// opcode to effect; sequences that miss every table are consumed by the
// parser without touching the grid.

type escKey struct {
	inter byte
	final byte
}

type csiKey struct {
	prefix byte
	inter  byte
	final  byte
}

var c0Table = map[byte]func(g *Grid){
	0x07: func(*Grid) {},         // BEL
	0x08: (*Grid).backspace,      // BS
	0x09: (*Grid).tab,            // HT
	0x0A: (*Grid).lineFeed,       // LF
	0x0B: (*Grid).lineFeed,       // VT
	0x0C: (*Grid).lineFeed,       // FF
	0x0D: (*Grid).carriageReturn, // CR
	0x0E: func(*Grid) {},         // SO
	0x0F: func(*Grid) {},         // SI
}

var escTable = map[escKey]func(g *Grid){
	{final: '7'}: (*Grid).saveCursor,      // DECSC
	{final: '8'}: (*Grid).restoreCursor,   // DECRC
	{final: 'D'}: (*Grid).lineFeed,        // IND
	{final: 'M'}: (*Grid).reverseLineFeed, // RI
	{final: 'c'}: (*Grid).reset,           // RIS
	{final: 'E'}: func(g *Grid) { // NEL
		g.carriageReturn()
		g.lineFeed()
	},
	{final: '='}:             func(*Grid) {},        // DECKPAM
	{final: '>'}:             func(*Grid) {},        // DECKPNM
	{final: '\\'}:            func(*Grid) {},        // stray ST
	{inter: '#', final: '8'}: (*Grid).alignmentTest, // DECALN
	{inter: '(', final: '0'}: func(g *Grid) { g.charset = CharsetGraphics },
	{inter: '(', final: 'B'}: func(g *Grid) { g.charset = CharsetASCII },
}

var csiTable = map[csiKey]func(p *Parser){
	{final: 'A'}: func(p *Parser) { p.grid.moveRel(-p.param(0, 1), 0) }, // CUU
	{final: 'B'}: func(p *Parser) { p.grid.moveRel(p.param(0, 1), 0) },  // CUD
	{final: 'C'}: func(p *Parser) { p.grid.moveRel(0, p.param(0, 1)) },  // CUF
	{final: 'D'}: func(p *Parser) { p.grid.moveRel(0, -p.param(0, 1)) }, // CUB
	{final: 'E'}: func(p *Parser) { // CNL
		p.grid.moveRel(p.param(0, 1), 0)
		p.grid.carriageReturn()
	},
	{final: 'F'}: func(p *Parser) { // CPL
		p.grid.moveRel(-p.param(0, 1), 0)
		p.grid.carriageReturn()
	},
	{final: 'G'}: cursorColumn, // CHA
	{final: '`'}: cursorColumn, // HPA
	{final: 'H'}: cursorPosition,
	{final: 'f'}: cursorPosition,
	{final: 'd'}: func(p *Parser) { p.grid.moveTo(p.param(0, 1)-1, p.grid.col) }, // VPA
	{final: 'J'}: func(p *Parser) { p.grid.eraseDisplay(p.param(0, 0)) },
	{final: 'K'}: func(p *Parser) { p.grid.eraseLine(p.param(0, 0)) },
	{final: 'L'}: func(p *Parser) { p.grid.insertLines(p.param(0, 1)) },
	{final: 'M'}: func(p *Parser) { p.grid.deleteLines(p.param(0, 1)) },
	{final: 'P'}: func(p *Parser) { p.grid.deleteChars(p.param(0, 1)) },
	{final: '@'}: func(p *Parser) { p.grid.insertChars(p.param(0, 1)) },
	{final: 'X'}: func(p *Parser) { p.grid.eraseChars(p.param(0, 1)) },
	{final: 'S'}: func(p *Parser) { p.grid.scrollUp(p.param(0, 1)) },
	{final: 'T'}: func(p *Parser) { p.grid.scrollDown(p.param(0, 1)) },
	{final: 'm'}: selectGraphicRendition,
	{final: 'r'}: func(p *Parser) { // DECSTBM
		p.grid.setScrollRegion(p.param(0, 1)-1, p.param(1, p.grid.rows)-1)
	},
	{final: 's'}:              func(p *Parser) { p.grid.saveCursor() },
	{final: 'u'}:              func(p *Parser) { p.grid.restoreCursor() },
	{final: 'n'}:              deviceStatusReport,
	{final: 'c'}:              deviceAttributes,
	{prefix: '?', final: 'h'}: func(p *Parser) { p.setModes(true) },
	{prefix: '?', final: 'l'}: func(p *Parser) { p.setModes(false) },
	{inter: ' ', final: 'q'}:  setCursorStyle, // DECSCUSR
}

// modeTable holds the DEC private modes (CSI ? n h / l).
var modeTable = map[int]func(g *Grid, set bool){
	1: func(g *Grid, set bool) { g.appCursorKeys = set }, // DECCKM
	6: func(g *Grid, set bool) { // DECOM
		g.originMode = set
		g.moveTo(0, 0)
	},
	7: func(g *Grid, set bool) { // DECAWM
		g.autoWrap = set
		if !set {
			g.wrapNext = false
		}
	},
	25: func(g *Grid, set bool) { g.cursorVisible = set }, // DECTCEM
	47: func(g *Grid, set bool) { g.useAlternate(set) },
	1047: func(g *Grid, set bool) {
		if set {
			g.useAlternate(true)
			return
		}
		if g.altActive {
			g.clearAlternate()
		}
		g.useAlternate(false)
	},
	1049: func(g *Grid, set bool) {
		if set {
			if g.altActive {
				return
			}
			g.saveCursor()
			g.useAlternate(true)
			g.clearAlternate()
			return
		}
		if !g.altActive {
			return
		}
		g.useAlternate(false)
		g.restoreCursor()
	},
}

// sgrTable holds the single-parameter SGR codes. Extended colors (38, 48)
// consume further parameters and are handled in selectGraphicRendition.
var sgrTable = map[int]func(s *Style){
	0:  func(s *Style) { *s = Style{} },
	1:  func(s *Style) { s.Attrs |= AttrBold },
	2:  func(s *Style) { s.Attrs |= AttrDim },
	3:  func(s *Style) { s.Attrs |= AttrItalic },
	4:  func(s *Style) { s.Attrs |= AttrUnderline },
	5:  func(s *Style) { s.Attrs |= AttrBlink },
	7:  func(s *Style) { s.Attrs |= AttrReverse },
	8:  func(s *Style) { s.Attrs |= AttrHidden },
	9:  func(s *Style) { s.Attrs |= AttrStrike },
	21: func(s *Style) { s.Attrs |= AttrUnderline },
	22: func(s *Style) { s.Attrs &^= AttrBold | AttrDim },
	23: func(s *Style) { s.Attrs &^= AttrItalic },
	24: func(s *Style) { s.Attrs &^= AttrUnderline },
	25: func(s *Style) { s.Attrs &^= AttrBlink },
	27: func(s *Style) { s.Attrs &^= AttrReverse },
	28: func(s *Style) { s.Attrs &^= AttrHidden },
	29: func(s *Style) { s.Attrs &^= AttrStrike },
	39: func(s *Style) { s.Fg = DefaultColor },
	49: func(s *Style) { s.Bg = DefaultColor },
}

func init() {
	for i := 0; i < 8; i++ {
		c := Indexed(uint8(i))
		bright := Indexed(uint8(i + 8))
		sgrTable[30+i] = func(s *Style) { s.Fg = c }
		sgrTable[40+i] = func(s *Style) { s.Bg = c }
		sgrTable[90+i] = func(s *Style) { s.Fg = bright }
		sgrTable[100+i] = func(s *Style) { s.Bg = bright }
	}
}

// decGraphics maps ASCII to the DEC special graphics set.
var decGraphics = map[rune]rune{
	'_': ' ', '`': '◆', 'a': '▒', 'b': '␉', 'c': '␌', 'd': '␍', 'e': '␊',
	'f': '°', 'g': '±', 'h': '␤', 'i': '␋', 'j': '┘', 'k': '┐', 'l': '┌',
	'm': '└', 'n': '┼', 'o': '⎺', 'p': '⎻', 'q': '─', 'r': '⎼', 's': '⎽',
	't': '├', 'u': '┤', 'v': '┴', 'w': '┬', 'x': '│', 'y': '≤', 'z': '≥',
	'{': 'π', '|': '≠', '}': '£', '~': '·',
}

func cursorColumn(p *Parser) {
	p.grid.moveTo(p.grid.cursorRow(), p.param(0, 1)-1)
}

func cursorPosition(p *Parser) {
	p.grid.moveTo(p.param(0, 1)-1, p.param(1, 1)-1)
}

func (p *Parser) setModes(set bool) {
	for _, mode := range p.params {
		fn, ok := modeTable[mode]
		if !ok {
			p.unknown("DEC mode " + strconv.Itoa(mode))
			continue
		}
		fn(p.grid, set)
	}
}

func selectGraphicRendition(p *Parser) {
	s := &p.grid.style
	if len(p.params) == 0 {
		*s = Style{}
		return
	}

	for i := 0; i < len(p.params); i++ {
		code := p.params[i]
		if end := p.groupEnd(i); end > i+1 {
			p.colonRendition(s, code, p.params[i+1:end])
			i = end - 1
			continue
		}
		switch code {
		case 38, 48:
			c, next, ok := p.extendedColor(i)
			if ok {
				if code == 38 {
					s.Fg = c
				} else {
					s.Bg = c
				}
			}
			i = next
			continue
		}
		if fn, ok := sgrTable[code]; ok {
			fn(s)
		}
	}
}

// groupEnd returns the index just past params[i] and its colon
// sub-parameters.
func (p *Parser) groupEnd(i int) int {
	end := i + 1
	for end < len(p.params) && p.sub[end] {
		end++
	}
	return end
}

// colonRendition applies one colon group such as 4:3 or 38:2::r:g:b.
// A group that is not understood is dropped whole.
func (p *Parser) colonRendition(s *Style, code int, subs []int) {
	switch code {
	case 4:
		// 4:1 to 4:5 are underline styles; all render as underline.
		switch {
		case subs[0] == 0:
			s.Attrs &^= AttrUnderline
			return
		case subs[0] <= 5:
			s.Attrs |= AttrUnderline
			return
		}
	case 38, 48:
		if c, ok := colonColor(subs); ok {
			if code == 38 {
				s.Fg = c
			} else {
				s.Bg = c
			}
			return
		}
	}
	p.unknown("SGR " + strconv.Itoa(code) + " with sub-parameters")
}

// colonColor reads 5:n, 2:r:g:b and 2:cs:r:g:b.
func colonColor(subs []int) (Color, bool) {
	switch subs[0] {
	case 5:
		if len(subs) == 2 {
			return Indexed(clamp8(subs[1])), true
		}
	case 2:
		if n := len(subs); n == 4 || n == 5 {
			return RGB(clamp8(subs[n-3]), clamp8(subs[n-2]), clamp8(subs[n-1])), true
		}
	}
	return Color{}, false
}

// extendedColor parses 38/48 arguments starting at params[i]. It returns
// the index of the last parameter consumed.
func (p *Parser) extendedColor(i int) (Color, int, bool) {
	if i+1 >= len(p.params) {
		return Color{}, i, false
	}
	switch p.params[i+1] {
	case 5:
		if i+2 < len(p.params) {
			return Indexed(clamp8(p.params[i+2])), i + 2, true
		}
		return Color{}, len(p.params) - 1, false
	case 2:
		if i+4 < len(p.params) {
			return RGB(clamp8(p.params[i+2]), clamp8(p.params[i+3]), clamp8(p.params[i+4])), i + 4, true
		}
		return Color{}, len(p.params) - 1, false
	}
	return Color{}, i + 1, false
}

// clamp8 clamps an integer to valid color range (0-255).
func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func deviceStatusReport(p *Parser) {
	switch p.param(0, 0) {
	case 5:
		p.reply("\x1b[0n")
	case 6:
		row := p.grid.cursorRow() + 1
		col := p.grid.col + 1
		p.reply("\x1b[" + strconv.Itoa(row) + ";" + strconv.Itoa(col) + "R")
	}
}

func deviceAttributes(p *Parser) {
	if p.param(0, 0) == 0 {
		p.reply("\x1b[?1;2c")
	}
}

func setCursorStyle(p *Parser) {
	switch p.param(0, 0) {
	case 0, 1, 2:
		p.grid.cursorStyle = CursorBlock
	case 3, 4:
		p.grid.cursorStyle = CursorUnderline
	case 5, 6:
		p.grid.cursorStyle = CursorBar
	}
}
