package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ptyscript/internal/ptytest"
	"github.com/dshills/ptyscript/internal/script"
	"github.com/dshills/ptyscript/internal/session"
	"github.com/dshills/ptyscript/internal/snapshot"
)

func TestMain(m *testing.M) {
	ptytest.Main(m)
}

func parseScript(t *testing.T, jsonl string) []script.Command {
	t.Helper()
	cmds, err := script.Parse(strings.NewReader(jsonl))
	require.NoError(t, err)
	return cmds
}

func runConfig(t *testing.T, mode string, cmds []script.Command) Config {
	t.Helper()
	ptytest.SkipIfNoPTY(t)
	path, env := ptytest.Command(t, mode)
	return Config{
		Commands:    cmds,
		Program:     session.Command{Path: path, Env: env},
		Rows:        24,
		Cols:        80,
		GracePeriod: 100 * time.Millisecond,
		Settle:      150 * time.Millisecond,
		SettleMax:   2 * time.Second,
		Timeout:     30 * time.Second,
		Logger:      zerolog.Nop(),
	}
}

func TestRunEchoedKeys(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeCat, parseScript(t, `
{"type":"sendKeys","keys":["a","b","c"]}
{"type":"takeSnapshot","name":"typed"}
`))

	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	require.Len(t, res.Snapshots, 1)
	snap := res.Snapshots[0]
	assert.True(t, strings.HasPrefix(snap.Lines[0], "abc"), "first row %q", snap.Lines[0])
	assert.Equal(t, "typed", snap.Name)
	assert.Equal(t, 24, snap.Rows)
	assert.Equal(t, 80, snap.Cols)
	assert.NotEmpty(t, res.SessionID)
	assert.Greater(t, res.PID, 0)
}

func TestRunDelayedOutput(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeDelayed+":200ms", parseScript(t, `
{"type":"sleep","millis":300}
{"type":"takeSnapshot"}
`))

	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	require.Len(t, res.Snapshots, 1)
	assert.Contains(t, res.Snapshots[0].Text(), "late output")
}

func TestRunZeroSettleDoesNotWait(t *testing.T) {
	cmds := parseScript(t, strings.Repeat(`{"type":"takeSnapshot"}`+"\n", 40))
	cfg := runConfig(t, ptytest.ModeCat, cmds)
	cfg.Settle = 0
	cfg.SettleMax = 5 * time.Second

	start := time.Now()
	res, err := Run(context.Background(), cfg)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 40)
	// A 50ms quiet window per snapshot would take at least 2s.
	assert.Less(t, elapsed, time.Second)
}

func TestRunEscapeIsSingleByte(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeHexEcho, parseScript(t, `
{"type":"waitFor","text":"ready"}
{"type":"sendKeys","keys":["Escape"]}
{"type":"waitFor","text":"1b"}
{"type":"takeSnapshot"}
`))

	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	lines := res.Snapshots[0].Lines
	assert.Equal(t, "ready", lines[0])
	assert.Equal(t, "1b", lines[1])
	assert.Equal(t, "", lines[2])
}

func TestRunAnswersCursorQuery(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeQuery, parseScript(t, `
{"type":"waitFor","text":"reply:"}
{"type":"takeSnapshot"}
`))

	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, `reply:"\x1b[3;5R"`, res.Snapshots[0].Lines[0])
}

func TestRunStyledScreen(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeScreen, parseScript(t, `
{"type":"waitFor","text":"plain"}
{"type":"takeSnapshot"}
`))

	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	lines := res.Snapshots[0].Lines
	assert.Equal(t, "{b}title{}", lines[0])
	assert.Equal(t, "{fg=1}red{} plain", lines[1])
}

func TestRunChildExitsEarly(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeExit+":4", parseScript(t, `
{"type":"waitFor","text":"bye","timeoutMillis":5000}
{"type":"sleep","millis":200}
{"type":"sendKeys","keys":["x","Enter"]}
{"type":"sleep","millis":10000}
{"type":"takeSnapshot"}
`))

	start := time.Now()
	res, err := Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, "bye", res.Snapshots[0].Lines[0])
	assert.Equal(t, 4, res.ExitCode)
}

func TestRunCancelCleansUp(t *testing.T) {
	if testing.Short() {
		t.Skip("slow")
	}
	cmds := parseScript(t, `
{"type":"waitFor","text":"ready"}
{"type":"sleep","millis":10000}
{"type":"takeSnapshot"}
`)
	warm := runConfig(t, ptytest.ModeCat, parseScript(t, `{"type":"takeSnapshot"}`))
	_, err := Run(context.Background(), warm)
	require.NoError(t, err)
	before := ptytest.OpenFDs(t)

	cfg := runConfig(t, ptytest.ModeStubborn, cmds)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(500*time.Millisecond, cancel)

	start := time.Now()
	res, err := Run(ctx, cfg)

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseRun, pe.Phase)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, res.Snapshots)
	require.Greater(t, res.PID, 0)
	assert.False(t, ptytest.Alive(res.PID))
	assert.Eventually(t, func() bool { return ptytest.OpenFDs(t) <= before }, 2*time.Second, 20*time.Millisecond)
}

func TestRunTimeout(t *testing.T) {
	cfg := runConfig(t, ptytest.ModeCat, parseScript(t, `{"type":"sleep","millis":10000}`))
	cfg.Timeout = 200 * time.Millisecond

	_, err := Run(context.Background(), cfg)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunUnknownKeyFailsBeforeSpawn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"sendKeys","keys":["Hyper+Q"]}`+"\n"), 0o644))

	res, err := Run(context.Background(), Config{
		ScriptPath: path,
		Program:    session.Command{Path: "/nonexistent/never-started"},
		Rows:       24,
		Cols:       80,
		Logger:     zerolog.Nop(),
	})

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseParse, pe.Phase)
	assert.ErrorIs(t, err, script.ErrUnknownKey)
	assert.Equal(t, -1, res.PID)
	assert.Empty(t, res.SessionID)
}

func TestRunSpawnFailure(t *testing.T) {
	ptytest.SkipIfNoPTY(t)

	res, err := Run(context.Background(), Config{
		Commands: parseScript(t, `{"type":"takeSnapshot"}`),
		Program:  session.Command{Path: "/nonexistent/ptyscript-binary"},
		Rows:     24,
		Cols:     80,
		Logger:   zerolog.Nop(),
	})

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseSpawn, pe.Phase)
	assert.ErrorIs(t, err, session.ErrSpawn)
	assert.NotEmpty(t, res.SessionID)
}

func TestRunInvalidSize(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Commands: parseScript(t, `{"type":"takeSnapshot"}`),
		Rows:     0,
		Cols:     80,
		Logger:   zerolog.Nop(),
	})

	var pe *PhaseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseAllocate, pe.Phase)
	assert.ErrorIs(t, err, session.ErrInvalidSize)
}

func TestRunEmitsToDirectory(t *testing.T) {
	dir := t.TempDir()
	sink, err := snapshot.NewDirSink(dir)
	require.NoError(t, err)
	defer sink.Close()

	cfg := runConfig(t, ptytest.ModeCat, parseScript(t, `
{"type":"sendKeys","keys":["h","i"]}
{"type":"takeSnapshot","name":"Greeting"}
`))
	cfg.Sink = sink
	cfg.Plain = true

	_, err = Run(context.Background(), cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "001-greeting.snap"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "hi"), "file %q", data)
}
