package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxLineSize = 1 << 20

// Parse reads a JSON Lines script from r.
func Parse(r io.Reader) ([]Command, error) {
	return parse(r, "")
}

// ParseFile reads a script file. A path of "-" reads standard input.
func ParseFile(path string) ([]Command, error) {
	if path == "-" {
		return parse(os.Stdin, "")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	return parse(f, path)
}

func parse(r io.Reader, path string) ([]Command, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var cmds []Command
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		cmd, err := parseLine(text, line)
		if err != nil {
			var pe *ParseError
			var uk *UnknownKeyError
			switch {
			case errors.As(err, &pe):
				pe.Path = path
			case errors.As(err, &uk):
				uk.Path = path
			}
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: path, Line: line + 1, Message: err.Error(), Err: err}
	}
	return cmds, nil
}

func parseLine(text string, line int) (Command, error) {
	fail := func(format string, args ...any) error {
		return &ParseError{Line: line, Message: fmt.Sprintf(format, args...)}
	}

	if !gjson.Valid(text) {
		return nil, fail("invalid JSON")
	}
	obj := gjson.Parse(text)
	if !obj.IsObject() {
		return nil, fail("expected a JSON object")
	}

	typ := obj.Get("type")
	if typ.Type != gjson.String {
		return nil, fail(`missing string field "type"`)
	}

	switch typ.Str {
	case TypeSendKeys:
		keys := obj.Get("keys")
		if !keys.IsArray() {
			return nil, fail(`sendKeys: "keys" must be an array of strings`)
		}
		var tokens []string
		for i, k := range keys.Array() {
			if k.Type != gjson.String {
				return nil, fail("sendKeys: key %d is not a string", i)
			}
			tokens = append(tokens, k.Str)
		}
		cmd, err := NewSendKeys(tokens...)
		if err != nil {
			var uk *UnknownKeyError
			if errors.As(err, &uk) {
				uk.Line = line
			}
			return nil, err
		}
		cmd.Line = line
		return cmd, nil

	case TypeSleep:
		d, err := millis(obj.Get("millis"), true, 0)
		if err != nil {
			return nil, fail("sleep: %v", err)
		}
		return Sleep{Duration: d, Line: line}, nil

	case TypeTakeSnapshot:
		name := obj.Get("name")
		if name.Exists() && name.Type != gjson.String {
			return nil, fail(`takeSnapshot: "name" must be a string`)
		}
		return TakeSnapshot{Name: name.Str, Line: line}, nil

	case TypeWaitFor:
		text := obj.Get("text")
		if text.Type != gjson.String || text.Str == "" {
			return nil, fail(`waitFor: "text" must be a non-empty string`)
		}
		d, err := millis(obj.Get("timeoutMillis"), false, DefaultWaitTimeout)
		if err != nil {
			return nil, fail("waitFor: %v", err)
		}
		return WaitFor{Text: text.Str, Timeout: d, Line: line}, nil
	}

	return nil, fail("unknown command type %q", typ.Str)
}

var maxMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// millis reads a non-negative integer millisecond count.
func millis(v gjson.Result, required bool, def time.Duration) (time.Duration, error) {
	if !v.Exists() {
		if required {
			return 0, errors.New(`missing "millis"`)
		}
		return def, nil
	}
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%s is not a number", v.Raw)
	}
	f := v.Num
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not a non-negative integer", v.Raw)
	}
	if f > maxMillis {
		return 0, fmt.Errorf("%s is out of range", v.Raw)
	}
	return time.Duration(v.Int()) * time.Millisecond, nil
}
