package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSetting is wrapped by errors for a key or path that names
	// no setting.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrValidationFailed matches every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUnsupportedFormat is returned for a file that is neither TOML nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// ParseError reports a config file that could not be decoded. Line and
// Column are 1-based and zero when the decoder did not report them.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.Path)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ":%d", e.Column)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects one setting. Path uses the dotted file key, for
// example "terminal.rows".
type ValidationError struct {
	Path    string
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s, got %v", e.Path, e.Message, e.Value)
}

// Is matches ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrorCode classifies a ValidationError.
type ValidationErrorCode uint8

const (
	// ErrCodeTypeMismatch is a value that does not parse as the setting's type.
	ErrCodeTypeMismatch ValidationErrorCode = iota
	ErrCodeOutOfRange
	ErrCodeInvalidEnum
	// ErrCodePatternMismatch is a value with the wrong shape, such as an
	// environment entry without "=".
	ErrCodePatternMismatch
	ErrCodeRequiredMissing
)

var codeNames = [...]string{
	ErrCodeTypeMismatch:    "type_mismatch",
	ErrCodeOutOfRange:      "out_of_range",
	ErrCodeInvalidEnum:     "invalid_enum",
	ErrCodePatternMismatch: "pattern_mismatch",
	ErrCodeRequiredMissing: "required_missing",
}

func (c ValidationErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}
