package script

import (
	"errors"
	"fmt"
)

// Errors returned by script operations.
var (
	// ErrUnknownKey indicates a key token outside the key table.
	ErrUnknownKey = errors.New("unknown key")

	// ErrInvalidScript indicates a line that is not a valid command.
	ErrInvalidScript = errors.New("invalid script")
)

// ParseError represents a malformed script line.
type ParseError struct {
	// Path is the script file, empty when reading from a stream.
	Path string
	// Line is the 1-based line number.
	Line int
	// Message describes the problem.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	where := "script"
	if e.Path != "" {
		where = e.Path
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d: %s", where, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidScript.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidScript
}

// UnknownKeyError is returned for a key token with no encoding.
type UnknownKeyError struct {
	Token string
	// Path is the script file, empty when reading from a stream.
	Path string
	// Line is the script line, 0 when the token did not come from a script.
	Line int
}

// Error implements the error interface.
func (e *UnknownKeyError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("unknown key %q", e.Token)
	}
	where := "script"
	if e.Path != "" {
		where = e.Path
	}
	return fmt.Sprintf("%s line %d: unknown key %q", where, e.Line, e.Token)
}

// Is reports whether target is ErrUnknownKey.
func (e *UnknownKeyError) Is(target error) bool {
	return target == ErrUnknownKey
}
