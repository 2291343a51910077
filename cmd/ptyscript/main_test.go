package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/ptyscript/internal/ptytest"
)

func TestMain(m *testing.M) {
	ptytest.Main(m)
}

const typingScript = `{"type":"sendKeys","keys":["a","b","c"]}
{"type":"takeSnapshot","name":"typed"}
`

func execute(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func helperArgs(t *testing.T, mode string) []string {
	t.Helper()
	ptytest.SkipIfNoPTY(t)
	path, env := ptytest.Command(t, mode)
	args := []string{"--settle", "150ms", "--settle-max", "2s", "--grace", "100ms", "--log-level", "off"}
	for _, kv := range env {
		args = append(args, "--env", kv)
	}
	return append(args, "--", path)
}

func TestRunTextOutput(t *testing.T) {
	script := writeScript(t, typingScript)
	args := append([]string{"run", "-s", script, "--rows", "4", "--cols", "20"}, helperArgs(t, ptytest.ModeCat)...)

	code, stdout, stderr := execute(t, "", args...)

	require.Equal(t, 0, code, "stderr: %s", stderr)
	assert.True(t, strings.HasPrefix(stdout, "--- snapshot 1: typed ---\nabc"), "stdout %q", stdout)
}

func TestRunJSONLFromStdin(t *testing.T) {
	args := append([]string{"run", "-s", "-", "--format", "jsonl"}, helperArgs(t, ptytest.ModeCat)...)

	code, stdout, stderr := execute(t, typingScript, args...)

	require.Equal(t, 0, code, "stderr: %s", stderr)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	snap := gjson.Parse(lines[0])
	assert.Equal(t, int64(1), snap.Get("seq").Int())
	assert.Equal(t, "typed", snap.Get("name").String())
	assert.True(t, strings.HasPrefix(snap.Get("lines.0").String(), "abc"))
	assert.Equal(t, int64(24), snap.Get("rows").Int())
}

func TestRunWritesSnapshotDir(t *testing.T) {
	script := writeScript(t, typingScript)
	dir := filepath.Join(t.TempDir(), "snaps")
	args := append([]string{"run", "-s", script, "--out-dir", dir, "--plain"}, helperArgs(t, ptytest.ModeCat)...)

	code, _, stderr := execute(t, "", args...)

	require.Equal(t, 0, code, "stderr: %s", stderr)
	data, err := os.ReadFile(filepath.Join(dir, "001-typed.snap"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "abc"))
}

func TestRunUnknownKeyFails(t *testing.T) {
	script := writeScript(t, `{"type":"sendKeys","keys":["Hyper"]}`+"\n")

	code, _, stderr := execute(t, "", "run", "-s", script, "--", "/nonexistent/program")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "parse:")
	assert.Contains(t, stderr, script+` line 1: unknown key "Hyper"`)
}

func TestRunSpawnFailure(t *testing.T) {
	ptytest.SkipIfNoPTY(t)
	script := writeScript(t, typingScript)

	code, _, stderr := execute(t, "", "run", "-s", script, "--", "/nonexistent/program")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "spawn:")
}

func TestRunRequiresScript(t *testing.T) {
	code, _, stderr := execute(t, "", "run", "--", "/bin/true")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no script given")
}

func TestRunRequiresProgram(t *testing.T) {
	code, _, _ := execute(t, "", "run", "-s", "x.jsonl")

	assert.Equal(t, 1, code)
}

func TestRunInvalidFlagValue(t *testing.T) {
	script := writeScript(t, typingScript)

	code, _, stderr := execute(t, "", "run", "-s", script, "--format", "xml", "--", "/bin/true")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "output.format")
}

func TestConfigLayering(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "ptyscript.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[terminal]\nrows = 40\ncols = 100\n\n[run]\nscript = \"demo.jsonl\"\n"), 0o644))
	t.Setenv("PTYSCRIPT_COLS", "132")

	cmd := newRunCmd(nil, nil, nil)
	require.NoError(t, cmd.ParseFlags([]string{"-c", cfgPath, "--rows", "10", "--env", "A=1", "--timeout", "2s", "--settle", "0"}))
	opts := &runOptions{configPath: cfgPath, env: []string{"A=1"}}

	cfg, err := loadConfig(cmd, opts)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Terminal.Rows, "flag wins over file")
	assert.Equal(t, 132, cfg.Terminal.Cols, "environment wins over file")
	assert.Equal(t, "demo.jsonl", cfg.Run.Script)
	assert.Equal(t, []string{"A=1"}, cfg.Run.Env)
	assert.Equal(t, "2s", cfg.Run.Timeout.String())
	assert.Zero(t, cfg.Run.Settle.Std(), "explicit zero settle is kept")
}

func TestKeysCommand(t *testing.T) {
	code, stdout, _ := execute(t, "", "keys")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "KEY")
	assert.Regexp(t, `(?m)^Enter\s+\\r$`, stdout)
	assert.Regexp(t, `(?m)^Up\s+\\x1b\[A$`, stdout)
	assert.Regexp(t, `(?m)^Ctrl\+c\s+\\x03$`, stdout)
	assert.Contains(t, stdout, "Alt+<char>")
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := execute(t, "", "version")

	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "ptyscript dev")
}

func TestQuoteBytes(t *testing.T) {
	assert.Equal(t, `\x1b[A`, quoteBytes("\x1b[A"))
	assert.Equal(t, `\r`, quoteBytes("\r"))
	assert.Equal(t, `\x7f`, quoteBytes("\x7f"))
	assert.Equal(t, `\x00`, quoteBytes("\x00"))
}
