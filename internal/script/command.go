// Package script parses JSON Lines command scripts.
//
// Each non-blank line is one command object:
//
//	{"type":"sendKeys","keys":["a","Enter"]}
//	{"type":"sleep","millis":300}
//	{"type":"takeSnapshot","name":"after-enter"}
//	{"type":"waitFor","text":"ready","timeoutMillis":2000}
//
// Key tokens are resolved when the script is parsed, so a script with an
// unknown key fails before any program is started.
package script

import "time"

// Command type names as they appear in scripts.
const (
	TypeSendKeys     = "sendKeys"
	TypeSleep        = "sleep"
	TypeTakeSnapshot = "takeSnapshot"
	TypeWaitFor      = "waitFor"
)

// DefaultWaitTimeout is used by waitFor when timeoutMillis is absent.
const DefaultWaitTimeout = 5 * time.Second

// Command is one script step. The concrete types are SendKeys, Sleep,
// TakeSnapshot and WaitFor.
type Command interface {
	// Type returns the script type name.
	Type() string
	// Pos returns the 1-based script line, or 0 for commands built in code.
	Pos() int

	command()
}

// SendKeys writes key input to the program.
type SendKeys struct {
	Keys  []string
	Bytes []byte
	Line  int
}

// Sleep pauses the script.
type Sleep struct {
	Duration time.Duration
	Line     int
}

// TakeSnapshot records the screen.
type TakeSnapshot struct {
	Name string
	Line int
}

// WaitFor pauses the script until Text appears on screen or Timeout
// elapses.
type WaitFor struct {
	Text    string
	Timeout time.Duration
	Line    int
}

func (SendKeys) Type() string     { return TypeSendKeys }
func (Sleep) Type() string        { return TypeSleep }
func (TakeSnapshot) Type() string { return TypeTakeSnapshot }
func (WaitFor) Type() string      { return TypeWaitFor }

func (c SendKeys) Pos() int     { return c.Line }
func (c Sleep) Pos() int        { return c.Line }
func (c TakeSnapshot) Pos() int { return c.Line }
func (c WaitFor) Pos() int      { return c.Line }

func (SendKeys) command()     {}
func (Sleep) command()        {}
func (TakeSnapshot) command() {}
func (WaitFor) command()      {}

// NewSendKeys resolves tokens into a SendKeys command.
func NewSendKeys(tokens ...string) (SendKeys, error) {
	var b []byte
	for _, tok := range tokens {
		seq, err := Encode(tok)
		if err != nil {
			return SendKeys{}, err
		}
		b = append(b, seq...)
	}
	keys := make([]string, len(tokens))
	copy(keys, tokens)
	return SendKeys{Keys: keys, Bytes: b}, nil
}
