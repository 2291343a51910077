package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Terminal.Rows != 24 || cfg.Terminal.Cols != 80 {
		t.Errorf("size = %dx%d, want 24x80", cfg.Terminal.Rows, cfg.Terminal.Cols)
	}
	if cfg.Run.GracePeriod.Std() != 500*time.Millisecond {
		t.Errorf("gracePeriod = %v, want 500ms", cfg.Run.GracePeriod)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "ptyscript.toml", `
[terminal]
rows = 40
cols = 120

[run]
script = "demo.jsonl"
env = ["FOO=bar"]
timeout = "30s"
gracePeriod = "250ms"

[output]
format = "jsonl"
plain = true
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Terminal.Rows != 40 || cfg.Terminal.Cols != 120 {
		t.Errorf("size = %dx%d, want 40x120", cfg.Terminal.Rows, cfg.Terminal.Cols)
	}
	if cfg.Terminal.Term != "xterm-256color" {
		t.Errorf("term = %q, want default kept", cfg.Terminal.Term)
	}
	if cfg.Run.Script != "demo.jsonl" {
		t.Errorf("script = %q, want 'demo.jsonl'", cfg.Run.Script)
	}
	if len(cfg.Run.Env) != 1 || cfg.Run.Env[0] != "FOO=bar" {
		t.Errorf("env = %v, want [FOO=bar]", cfg.Run.Env)
	}
	if cfg.Run.Timeout.Std() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Run.Timeout)
	}
	if cfg.Run.GracePeriod.Std() != 250*time.Millisecond {
		t.Errorf("gracePeriod = %v, want 250ms", cfg.Run.GracePeriod)
	}
	if cfg.Output.Format != FormatJSONL || !cfg.Output.Plain {
		t.Errorf("output = %+v, want jsonl plain", cfg.Output)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "ptyscript.yaml", `
terminal:
  rows: 30
run:
  settle: 100ms
  settleMax: 3s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Terminal.Rows != 30 || cfg.Terminal.Cols != 80 {
		t.Errorf("size = %dx%d, want 30x80", cfg.Terminal.Rows, cfg.Terminal.Cols)
	}
	if cfg.Run.Settle.Std() != 100*time.Millisecond || cfg.Run.SettleMax.Std() != 3*time.Second {
		t.Errorf("settle = %v/%v, want 100ms/3s", cfg.Run.Settle, cfg.Run.SettleMax)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != LogFormatJSON {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	path := writeFile(t, "empty.yml", "")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Terminal != Default().Terminal {
		t.Errorf("terminal = %+v, want defaults", cfg.Terminal)
	}
}

func TestLoadTOMLSyntaxError(t *testing.T) {
	path := writeFile(t, "bad.toml", "[terminal]\nrows = \n")

	_, err := Load(path, nil)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Path != path {
		t.Errorf("Path = %q, want %q", pe.Path, path)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
	if !strings.HasPrefix(pe.Error(), path+":2:") {
		t.Errorf("Error() = %q, want line number", pe.Error())
	}
}

func TestLoadTOMLUnknownSetting(t *testing.T) {
	path := writeFile(t, "typo.toml", "[terminal]\nrows = 10\nrosw = 20\n")

	_, err := Load(path, nil)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("error = %v, want ErrUnknownSetting", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
	if !strings.Contains(pe.Message, "terminal.rosw") {
		t.Errorf("Message = %q, want key name", pe.Message)
	}
}

func TestLoadYAMLUnknownSetting(t *testing.T) {
	path := writeFile(t, "typo.yaml", "terminal:\n  rows: 10\n  colz: 5\n")

	_, err := Load(path, nil)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("error = %v, want ErrUnknownSetting", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeFile(t, "bad.yaml", "run:\n  timeout: soon\n")

	_, err := Load(path, nil)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "ptyscript.ini", "rows=1")

	_, err := Load(path, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		path   string
		code   ValidationErrorCode
	}{
		{"zero rows", func(c *Config) { c.Terminal.Rows = 0 }, "terminal.rows", ErrCodeOutOfRange},
		{"huge cols", func(c *Config) { c.Terminal.Cols = 70000 }, "terminal.cols", ErrCodeOutOfRange},
		{"empty term", func(c *Config) { c.Terminal.Term = " " }, "terminal.term", ErrCodeRequiredMissing},
		{"negative timeout", func(c *Config) { c.Run.Timeout = -1 }, "run.timeout", ErrCodeOutOfRange},
		{"settle max below settle", func(c *Config) {
			c.Run.Settle = Duration(time.Second)
			c.Run.SettleMax = Duration(time.Millisecond)
		}, "run.settleMax", ErrCodeOutOfRange},
		{"bad env", func(c *Config) { c.Run.Env = []string{"NOEQUALS"} }, "run.env", ErrCodePatternMismatch},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format", ErrCodeInvalidEnum},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", ErrCodeInvalidEnum},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, "logging.level", ErrCodeInvalidEnum},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format", ErrCodeInvalidEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Path != tt.path {
				t.Errorf("Path = %q, want %q", ve.Path, tt.path)
			}
			if ve.Code != tt.code {
				t.Errorf("Code = %v, want %v", ve.Code, tt.code)
			}
			if !errors.Is(err, ErrValidationFailed) {
				t.Error("expected errors.Is(err, ErrValidationFailed)")
			}
		})
	}
}

func TestDurationText(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"500ms", 500 * time.Millisecond, true},
		{"2s", 2 * time.Second, true},
		{"1500", 1500 * time.Millisecond, true},
		{"0", 0, true},
		{"soon", 0, false},
	}

	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if (err == nil) != tt.ok {
			t.Errorf("UnmarshalText(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && d.Std() != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, d.Std(), tt.want)
		}
	}

	text, _ := Duration(1500 * time.Millisecond).MarshalText()
	if string(text) != "1.5s" {
		t.Errorf("MarshalText = %q, want '1.5s'", text)
	}
}
