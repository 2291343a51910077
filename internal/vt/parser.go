package vt

import (
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

const (
	maxParams    = 32
	maxParam     = 65535
	maxInter     = 2
	maxStringLen = 4096
)

type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateEscapeInter
	stateCSIEntry
	stateCSIParam
	stateCSIInter
	stateCSIIgnore
	stateString
	stateStringEscape
)

type stringKind uint8

const (
	stringOSC stringKind = iota
	stringOther
)

// Parser parses a terminal byte stream and applies it to a Grid.
type Parser struct {
	grid *Grid

	// Parser state
	state   parserState
	params  []int
	sub     []bool // sub[i]: params[i] followed a colon
	colon   bool   // the last separator was a colon
	pending bool   // a parameter is being accumulated
	prefix  byte // private marker: < = > ?
	inter   []byte
	overrun bool // too many intermediates; dispatch is dropped

	str      stringKind
	strIntro byte
	strBuf   []byte
	strLong  bool

	// UTF-8 decoding state
	utf8Buf   [4]byte
	utf8Len   int
	utf8Count int

	// Callbacks
	onReply   func([]byte)
	onUnknown func(seq string)
}

// NewParser creates a parser that applies its input to g.
func NewParser(g *Grid) *Parser {
	return &Parser{
		grid:   g,
		state:  stateGround,
		params: make([]int, 0, maxParams),
		sub:    make([]bool, 0, maxParams),
		inter:  make([]byte, 0, maxInter),
		strBuf: make([]byte, 0, 256),
	}
}

// Grid returns the grid the parser writes to.
func (p *Parser) Grid() *Grid {
	return p.grid
}

// SetReplyFunc sets the function receiving bytes the terminal sends back
// to the program (status and attribute reports).
func (p *Parser) SetReplyFunc(fn func([]byte)) {
	p.onReply = fn
}

// SetUnknownFunc sets the callback for sequences that were consumed
// without effect.
func (p *Parser) SetUnknownFunc(fn func(seq string)) {
	p.onUnknown = fn
}

// Feed parses data and updates the grid. Sequences may be split across
// calls at any byte.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.processByte(b)
	}
}

// FeedString is Feed for a string.
func (p *Parser) FeedString(s string) {
	p.Feed([]byte(s))
}

func (p *Parser) processByte(b byte) {
	// CAN and SUB abort any sequence; ESC always starts a new one except
	// inside strings where it may begin ST.
	switch b {
	case 0x18, 0x1A:
		p.abortUTF8()
		p.state = stateGround
		return
	case 0x1B:
		p.abortUTF8()
		if p.state == stateString {
			p.state = stateStringEscape
			return
		}
		p.enterEscape()
		return
	}

	switch p.state {
	case stateGround:
		p.processGround(b)
	case stateEscape:
		p.processEscape(b)
	case stateEscapeInter:
		p.processEscapeInter(b)
	case stateCSIEntry:
		p.processCSIEntry(b)
	case stateCSIParam:
		p.processCSIParam(b)
	case stateCSIInter:
		p.processCSIInter(b)
	case stateCSIIgnore:
		p.processCSIIgnore(b)
	case stateString:
		p.processString(b)
	case stateStringEscape:
		p.processStringEscape(b)
	}
}

func (p *Parser) enterEscape() {
	p.state = stateEscape
	p.params = p.params[:0]
	p.sub = p.sub[:0]
	p.colon = false
	p.pending = false
	p.prefix = 0
	p.inter = p.inter[:0]
	p.overrun = false
}

func (p *Parser) processGround(b byte) {
	if p.utf8Len > 0 {
		p.processUTF8Continuation(b)
		return
	}

	switch {
	case b < 0x20:
		p.execute(b)
	case b < 0x7F:
		p.print(rune(b))
	case b == 0x7F:
		// DEL is ignored
	case b >= 0xC2 && b < 0xE0:
		p.startUTF8(b, 2)
	case b >= 0xE0 && b < 0xF0:
		p.startUTF8(b, 3)
	case b >= 0xF0 && b < 0xF5:
		p.startUTF8(b, 4)
	default:
		p.print('\uFFFD')
	}
}

func (p *Parser) startUTF8(b byte, n int) {
	p.utf8Buf[0] = b
	p.utf8Len = n
	p.utf8Count = 1
}

// processUTF8Continuation handles continuation bytes of a multi-byte UTF-8 sequence.
func (p *Parser) processUTF8Continuation(b byte) {
	if b < 0x80 || b >= 0xC0 {
		p.utf8Len = 0
		p.utf8Count = 0
		p.print('\uFFFD')
		p.processGround(b)
		return
	}

	p.utf8Buf[p.utf8Count] = b
	p.utf8Count++
	if p.utf8Count == p.utf8Len {
		r := decodeUTF8(p.utf8Buf[:p.utf8Len])
		p.utf8Len = 0
		p.utf8Count = 0
		p.print(r)
	}
}

// abortUTF8 emits a replacement for an incomplete UTF-8 sequence.
func (p *Parser) abortUTF8() {
	if p.utf8Len > 0 {
		p.utf8Len = 0
		p.utf8Count = 0
		p.print('\uFFFD')
	}
}

func decodeUTF8(b []byte) rune {
	var r rune
	switch len(b) {
	case 2:
		r = rune(b[0]&0x1F)<<6 | rune(b[1]&0x3F)
		if r < 0x80 {
			return '\uFFFD'
		}
	case 3:
		r = rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
		if r < 0x800 || (r >= 0xD800 && r <= 0xDFFF) {
			return '\uFFFD'
		}
	case 4:
		r = rune(b[0]&0x07)<<18 | rune(b[1]&0x3F)<<12 | rune(b[2]&0x3F)<<6 | rune(b[3]&0x3F)
		if r < 0x10000 || r > 0x10FFFF {
			return '\uFFFD'
		}
	default:
		return '\uFFFD'
	}
	return r
}

func (p *Parser) print(r rune) {
	g := p.grid
	if g.charset == CharsetGraphics {
		if m, ok := decGraphics[r]; ok {
			r = m
		}
	}
	w := runeWidth(r)
	if w == 0 {
		g.combine(r)
		return
	}
	g.put(r, w)
}

func runeWidth(r rune) int {
	if r < 0x80 {
		return 1
	}
	w := uniseg.StringWidth(string(r))
	if w > 2 {
		w = 2
	}
	return w
}

// execute runs a C0 control function.
func (p *Parser) execute(b byte) {
	if fn, ok := c0Table[b]; ok {
		fn(p.grid)
	}
}

func (p *Parser) processEscape(b byte) {
	switch {
	case b < 0x20:
		p.execute(b)
	case b == '[':
		p.state = stateCSIEntry
	case b == ']':
		p.enterString(stringOSC)
	case b == 'P', b == 'X', b == '^', b == '_':
		p.enterString(stringOther)
		p.strIntro = b
	case b >= 0x20 && b <= 0x2F:
		p.collect(b)
		p.state = stateEscapeInter
	case b >= 0x30 && b <= 0x7E:
		p.dispatchEscape(b)
		p.state = stateGround
	case b == 0x7F:
	default:
		p.state = stateGround
	}
}

func (p *Parser) processEscapeInter(b byte) {
	switch {
	case b < 0x20:
		p.execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.collect(b)
	case b >= 0x30 && b <= 0x7E:
		p.dispatchEscape(b)
		p.state = stateGround
	case b == 0x7F:
	default:
		p.state = stateGround
	}
}

func (p *Parser) processCSIEntry(b byte) {
	switch {
	case b >= 0x3C && b <= 0x3F:
		p.prefix = b
		p.state = stateCSIParam
	default:
		p.state = stateCSIParam
		p.processCSIParam(b)
	}
}

func (p *Parser) processCSIParam(b byte) {
	switch {
	case b < 0x20:
		p.execute(b)
	case b >= '0' && b <= '9':
		p.digit(b)
	case b == ';', b == ':':
		p.separator(b == ':')
	case b >= 0x3C && b <= 0x3F:
		p.state = stateCSIIgnore
	case b >= 0x20 && b <= 0x2F:
		p.collect(b)
		p.state = stateCSIInter
	case b >= 0x40 && b <= 0x7E:
		p.dispatchCSI(b)
		p.state = stateGround
	case b == 0x7F:
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) processCSIInter(b byte) {
	switch {
	case b < 0x20:
		p.execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.collect(b)
	case b >= 0x30 && b <= 0x3F:
		p.state = stateCSIIgnore
	case b >= 0x40 && b <= 0x7E:
		p.dispatchCSI(b)
		p.state = stateGround
	case b == 0x7F:
	default:
		p.state = stateCSIIgnore
	}
}

func (p *Parser) processCSIIgnore(b byte) {
	switch {
	case b < 0x20:
		p.execute(b)
	case b >= 0x40 && b <= 0x7E:
		p.unknown("CSI (malformed) " + string(b))
		p.state = stateGround
	}
}

func (p *Parser) digit(b byte) {
	if !p.pending {
		if len(p.params) >= maxParams {
			return
		}
		p.params = append(p.params, 0)
		p.sub = append(p.sub, p.colon)
		p.pending = true
	}
	v := p.params[len(p.params)-1]*10 + int(b-'0')
	if v > maxParam {
		v = maxParam
	}
	p.params[len(p.params)-1] = v
}

func (p *Parser) separator(colon bool) {
	if !p.pending && len(p.params) < maxParams {
		p.params = append(p.params, 0)
		p.sub = append(p.sub, p.colon)
	}
	p.pending = false
	p.colon = colon
}

// hasSubParams reports whether any parameter was joined with a colon.
func (p *Parser) hasSubParams() bool {
	for _, s := range p.sub {
		if s {
			return true
		}
	}
	return false
}

func (p *Parser) collect(b byte) {
	if len(p.inter) >= maxInter {
		p.overrun = true
		return
	}
	p.inter = append(p.inter, b)
}

func (p *Parser) enterString(kind stringKind) {
	p.state = stateString
	p.str = kind
	p.strBuf = p.strBuf[:0]
	p.strLong = false
}

func (p *Parser) processString(b byte) {
	switch {
	case b == 0x07:
		if p.str == stringOSC {
			p.finishString()
			p.state = stateGround
		}
	case b < 0x20:
		// other controls inside strings are ignored
	default:
		if len(p.strBuf) >= maxStringLen {
			p.strLong = true
			return
		}
		p.strBuf = append(p.strBuf, b)
	}
}

func (p *Parser) processStringEscape(b byte) {
	p.finishString()
	if b == '\\' {
		p.state = stateGround
		return
	}
	p.enterEscape()
	p.processEscape(b)
}

func (p *Parser) finishString() {
	switch {
	case p.str != stringOSC:
		p.unknown("ESC " + string(p.strIntro) + " string")
	case p.strLong:
		p.unknown("OSC (overlong)")
	default:
		p.handleOSC(string(p.strBuf))
	}
}

func (p *Parser) handleOSC(data string) {
	num, value, _ := strings.Cut(data, ";")
	cmd, err := strconv.Atoi(num)
	if err != nil {
		p.unknown("OSC " + num)
		return
	}

	switch cmd {
	case 0, 2:
		p.grid.title = value
	case 1:
		// icon name
	default:
		p.unknown("OSC " + num)
	}
}

func (p *Parser) dispatchEscape(final byte) {
	if p.overrun || len(p.inter) > 1 {
		p.unknown("ESC " + string(p.inter) + string(final))
		return
	}
	var key escKey
	key.final = final
	if len(p.inter) == 1 {
		key.inter = p.inter[0]
	}
	fn, ok := escTable[key]
	if !ok {
		p.unknown("ESC " + string(p.inter) + string(final))
		return
	}
	fn(p.grid)
}

func (p *Parser) dispatchCSI(final byte) {
	key := csiKey{prefix: p.prefix, final: final}
	if len(p.inter) == 1 {
		key.inter = p.inter[0]
	}
	fn, ok := csiTable[key]
	// Only SGR understands colon sub-parameters.
	if ok && key != (csiKey{final: 'm'}) && p.hasSubParams() {
		ok = false
	}
	if p.overrun || len(p.inter) > 1 || !ok {
		p.unknown(p.describeCSI(final))
		return
	}
	fn(p)
}

func (p *Parser) describeCSI(final byte) string {
	var sb strings.Builder
	sb.WriteString("CSI ")
	if p.prefix != 0 {
		sb.WriteByte(p.prefix)
	}
	sb.WriteString(p.formatParams())
	sb.Write(p.inter)
	sb.WriteByte(final)
	return sb.String()
}

func (p *Parser) unknown(seq string) {
	if p.onUnknown != nil {
		p.onUnknown(seq)
	}
}

func (p *Parser) reply(s string) {
	if p.onReply != nil {
		p.onReply([]byte(s))
	}
}

// param returns parameter index, or def when it is absent or zero.
func (p *Parser) param(index, def int) int {
	if index < len(p.params) && p.params[index] > 0 {
		return p.params[index]
	}
	return def
}

func (p *Parser) formatParams() string {
	var sb strings.Builder
	for i, v := range p.params {
		if i > 0 {
			if p.sub[i] {
				sb.WriteByte(':')
			} else {
				sb.WriteByte(';')
			}
		}
		sb.WriteString(strconv.Itoa(v))
	}
	return sb.String()
}
