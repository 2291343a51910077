package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix starts every environment variable read by ApplyEnv.
const EnvPrefix = "PTYSCRIPT_"

// defaultEnvMapping returns the short environment variable names.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"PTYSCRIPT_ROWS":       "terminal.rows",
		"PTYSCRIPT_COLS":       "terminal.cols",
		"PTYSCRIPT_TERM":       "terminal.term",
		"PTYSCRIPT_SCRIPT":     "run.script",
		"PTYSCRIPT_TIMEOUT":    "run.timeout",
		"PTYSCRIPT_GRACE":      "run.gracePeriod",
		"PTYSCRIPT_FORMAT":     "output.format",
		"PTYSCRIPT_OUT_DIR":    "output.dir",
		"PTYSCRIPT_PLAIN":      "output.plain",
		"PTYSCRIPT_LOG_LEVEL":  "logging.level",
		"PTYSCRIPT_LOG_FORMAT": "logging.format",
	}
}

// ApplyEnv overlays PTYSCRIPT_* entries from environ (os.Environ form)
// onto cfg. Besides the short names, PTYSCRIPT_SECTION_SETTING_NAME maps
// to section.settingName. Prefixed variables that name no setting are
// ignored.
func ApplyEnv(cfg *Config, environ []string) error {
	mapping := defaultEnvMapping()
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}

		path, mapped := mapping[name]
		if !mapped {
			path = envToPath(name)
		}
		err := cfg.Set(path, value)
		if err != nil && !mapped && errors.Is(err, ErrUnknownSetting) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// envToPath converts PTYSCRIPT_RUN_GRACE_PERIOD to run.gracePeriod.
func envToPath(env string) string {
	name := strings.TrimPrefix(env, EnvPrefix)
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return strings.ToLower(name)
	}

	setting := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			setting += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return strings.ToLower(parts[0]) + "." + setting
}

// Set assigns a setting from its string form.
func (c *Config) Set(path, value string) error {
	switch path {
	case "terminal.rows":
		return setInt(&c.Terminal.Rows, path, value)
	case "terminal.cols":
		return setInt(&c.Terminal.Cols, path, value)
	case "terminal.term":
		c.Terminal.Term = value
	case "run.script":
		c.Run.Script = value
	case "run.dir":
		c.Run.Dir = value
	case "run.timeout":
		return setDuration(&c.Run.Timeout, path, value)
	case "run.gracePeriod":
		return setDuration(&c.Run.GracePeriod, path, value)
	case "run.settle":
		return setDuration(&c.Run.Settle, path, value)
	case "run.settleMax":
		return setDuration(&c.Run.SettleMax, path, value)
	case "output.format":
		c.Output.Format = strings.ToLower(value)
	case "output.dir":
		c.Output.Dir = value
	case "output.plain":
		return setBool(&c.Output.Plain, path, value)
	case "logging.level":
		c.Logging.Level = strings.ToLower(value)
	case "logging.format":
		c.Logging.Format = strings.ToLower(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	return nil
}

func setInt(dst *int, path, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return typeMismatch(path, value, "an integer")
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, path, value string) error {
	d, err := parseDuration(strings.TrimSpace(value))
	if err != nil {
		return typeMismatch(path, value, "a duration")
	}
	*dst = d
	return nil
}

func setBool(dst *bool, path, value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0", "":
		*dst = false
	default:
		return typeMismatch(path, value, "a boolean")
	}
	return nil
}

func typeMismatch(path, value, want string) error {
	return &ValidationError{Path: path, Message: "must be " + want, Value: value, Code: ErrCodeTypeMismatch}
}
