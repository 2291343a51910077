package script

import (
	"strings"
	"unicode/utf8"
)

// Key is a named key and the bytes it sends.
type Key struct {
	Name string
	Seq  string
}

// namedKeys is the closed key vocabulary in listing order. Lookup is
// case-insensitive. Cursor keys always use the normal (CSI) form.
var namedKeys = []Key{
	{"Enter", "\r"},
	{"Tab", "\t"},
	{"BackTab", "\x1b[Z"},
	{"Escape", "\x1b"},
	{"Esc", "\x1b"},
	{"Backspace", "\x7f"},
	{"Space", " "},
	{"Up", "\x1b[A"},
	{"Down", "\x1b[B"},
	{"Right", "\x1b[C"},
	{"Left", "\x1b[D"},
	{"Home", "\x1b[H"},
	{"End", "\x1b[F"},
	{"PageUp", "\x1b[5~"},
	{"PageDown", "\x1b[6~"},
	{"Insert", "\x1b[2~"},
	{"Delete", "\x1b[3~"},
	{"F1", "\x1bOP"},
	{"F2", "\x1bOQ"},
	{"F3", "\x1bOR"},
	{"F4", "\x1bOS"},
	{"F5", "\x1b[15~"},
	{"F6", "\x1b[17~"},
	{"F7", "\x1b[18~"},
	{"F8", "\x1b[19~"},
	{"F9", "\x1b[20~"},
	{"F10", "\x1b[21~"},
	{"F11", "\x1b[23~"},
	{"F12", "\x1b[24~"},
	{"Ctrl+Space", "\x00"},
}

var keyIndex = make(map[string]string)

func init() {
	for c := 'a'; c <= 'z'; c++ {
		namedKeys = append(namedKeys, Key{Name: "Ctrl+" + string(c), Seq: string(rune(c - 'a' + 1))})
	}
	for _, k := range namedKeys {
		keyIndex[strings.ToLower(k.Name)] = k.Seq
	}
}

const altPrefix = "alt+"

// Encode returns the bytes sent for a key token. A token of exactly one
// character is sent literally (UTF-8 encoded). Otherwise it must be a
// named key, or Alt+<c> for a printable ASCII character c, which sends
// ESC followed by c.
func Encode(token string) ([]byte, error) {
	if utf8.RuneCountInString(token) == 1 {
		r, _ := utf8.DecodeRuneInString(token)
		if r != utf8.RuneError || token == string(utf8.RuneError) {
			return []byte(token), nil
		}
	}

	lower := strings.ToLower(token)
	if seq, ok := keyIndex[lower]; ok {
		return []byte(seq), nil
	}

	if strings.HasPrefix(lower, altPrefix) {
		rest := token[len(altPrefix):]
		if len(rest) == 1 && rest[0] >= 0x20 && rest[0] < 0x7f {
			return []byte{0x1b, rest[0]}, nil
		}
	}

	return nil, &UnknownKeyError{Token: token}
}

// Keys returns the named key vocabulary in listing order. Alt+<c> and
// single-character literals are not listed.
func Keys() []Key {
	keys := make([]Key, len(namedKeys))
	copy(keys, namedKeys)
	return keys
}

// KeyNames returns the names of Keys().
func KeyNames() []string {
	names := make([]string, len(namedKeys))
	for i, k := range namedKeys {
		names[i] = k.Name
	}
	return names
}
