// Package config provides the ptyscript configuration.
//
// Settings are layered, each layer overriding the previous one:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. PTYSCRIPT_* environment variables
//  4. Command-line flags, applied by the caller
//
// Setting paths use the file's section.key form, for example
// "terminal.rows" or "run.gracePeriod".
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/ptyscript/internal/logging"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// Log formats.
const (
	LogFormatAuto    = logging.FormatAuto
	LogFormatConsole = logging.FormatConsole
	LogFormatJSON    = logging.FormatJSON
)

// Config is the complete ptyscript configuration.
type Config struct {
	Terminal Terminal `toml:"terminal" yaml:"terminal"`
	Run      Run      `toml:"run" yaml:"run"`
	Output   Output   `toml:"output" yaml:"output"`
	Logging  Logging  `toml:"logging" yaml:"logging"`
}

// Terminal configures the pseudo-terminal.
type Terminal struct {
	Rows int    `toml:"rows" yaml:"rows"`
	Cols int    `toml:"cols" yaml:"cols"`
	Term string `toml:"term" yaml:"term"`
}

// Run configures the child program and script execution.
type Run struct {
	// Script is the script path; "-" reads standard input.
	Script string `toml:"script" yaml:"script"`
	// Dir is the child's working directory.
	Dir string `toml:"dir" yaml:"dir"`
	// Env holds KEY=VALUE entries added to the child's environment.
	Env []string `toml:"env" yaml:"env"`
	// Timeout bounds the whole run. Zero means no limit.
	Timeout     Duration `toml:"timeout" yaml:"timeout"`
	GracePeriod Duration `toml:"gracePeriod" yaml:"gracePeriod"`
	Settle      Duration `toml:"settle" yaml:"settle"`
	SettleMax   Duration `toml:"settleMax" yaml:"settleMax"`
}

// Output configures snapshot emission.
type Output struct {
	Format string `toml:"format" yaml:"format"`
	// Dir, when set, also writes one file per snapshot into the directory.
	Dir   string `toml:"dir" yaml:"dir"`
	Plain bool   `toml:"plain" yaml:"plain"`
}

// Logging configures diagnostics on stderr.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Terminal: Terminal{
			Rows: 24,
			Cols: 80,
			Term: "xterm-256color",
		},
		Run: Run{
			GracePeriod: Duration(500 * time.Millisecond),
			Settle:      Duration(50 * time.Millisecond),
			SettleMax:   Duration(time.Second),
		},
		Output: Output{
			Format: FormatText,
		},
		Logging: Logging{
			Level:  "warn",
			Format: LogFormatAuto,
		},
	}
}

// Validate checks every setting and returns the first problem found as a
// *ValidationError.
func (c *Config) Validate() error {
	if c.Terminal.Rows < 1 || c.Terminal.Rows > 65535 {
		return outOfRange("terminal.rows", c.Terminal.Rows, "must be between 1 and 65535")
	}
	if c.Terminal.Cols < 1 || c.Terminal.Cols > 65535 {
		return outOfRange("terminal.cols", c.Terminal.Cols, "must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Terminal.Term) == "" {
		return &ValidationError{Path: "terminal.term", Message: "must not be empty", Value: c.Terminal.Term, Code: ErrCodeRequiredMissing}
	}

	for _, d := range []struct {
		path string
		val  Duration
	}{
		{"run.timeout", c.Run.Timeout},
		{"run.gracePeriod", c.Run.GracePeriod},
		{"run.settle", c.Run.Settle},
		{"run.settleMax", c.Run.SettleMax},
	} {
		if d.val < 0 {
			return outOfRange(d.path, d.val, "must not be negative")
		}
	}
	if c.Run.SettleMax < c.Run.Settle {
		return outOfRange("run.settleMax", c.Run.SettleMax, "must not be less than run.settle")
	}
	for _, kv := range c.Run.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return &ValidationError{Path: "run.env", Message: "entries must be KEY=VALUE", Value: kv, Code: ErrCodePatternMismatch}
		}
	}

	switch c.Output.Format {
	case FormatText, FormatJSONL:
	default:
		return invalidEnum("output.format", c.Output.Format, FormatText, FormatJSONL)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return invalidEnum("logging.level", c.Logging.Level, "trace", "debug", "info", "warn", "error", "off")
	}
	switch c.Logging.Format {
	case LogFormatAuto, LogFormatConsole, LogFormatJSON:
	default:
		return invalidEnum("logging.format", c.Logging.Format, LogFormatAuto, LogFormatConsole, LogFormatJSON)
	}
	return nil
}

func outOfRange(path string, v any, msg string) error {
	return &ValidationError{Path: path, Message: msg, Value: v, Code: ErrCodeOutOfRange}
}

func invalidEnum(path string, v any, allowed ...string) error {
	return &ValidationError{
		Path:    path,
		Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
		Value:   v,
		Code:    ErrCodeInvalidEnum,
	}
}
