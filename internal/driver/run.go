package driver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/ptyscript/internal/script"
	"github.com/dshills/ptyscript/internal/session"
	"github.com/dshills/ptyscript/internal/snapshot"
)

// Config describes one scripted run.
type Config struct {
	// Commands is the script. When nil, ScriptPath is parsed.
	Commands   []script.Command
	ScriptPath string

	Program    session.Command
	Rows, Cols int

	// Timeout bounds the whole run; zero means no limit.
	Timeout     time.Duration
	GracePeriod time.Duration
	Term        string

	// Settle and SettleMax are passed to WithSettle as given. Zero
	// values snapshot whatever output is already queued.
	Settle    time.Duration
	SettleMax time.Duration

	Sink  snapshot.Sink
	Plain bool

	Logger zerolog.Logger
}

// Result is the outcome of a run.
type Result struct {
	SessionID string
	PID       int
	Snapshots []snapshot.Snapshot
	// ExitCode is the child's exit code, or -1 when it was still running
	// at the end of the script or was killed by a signal.
	ExitCode int
	Duration time.Duration
}

// Run parses the script, starts the program on a fresh terminal, executes
// the script and tears everything down. The returned error is a
// *PhaseError; the Result holds whatever was produced before it.
func Run(ctx context.Context, cfg Config) (res Result, err error) {
	start := time.Now()
	log := cfg.Logger
	res = Result{PID: -1, ExitCode: -1}

	cmds := cfg.Commands
	if cmds == nil {
		cmds, err = script.ParseFile(cfg.ScriptPath)
		if err != nil {
			return res, &PhaseError{Phase: PhaseParse, Err: err}
		}
	}
	log.Debug().Int("commands", len(cmds)).Msg("script loaded")

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	opts := []session.Option{session.WithLogger(log)}
	if cfg.GracePeriod > 0 {
		opts = append(opts, session.WithGracePeriod(cfg.GracePeriod))
	}
	if cfg.Term != "" {
		opts = append(opts, session.WithTerm(cfg.Term))
	}
	sess, err := session.Open(cfg.Rows, cfg.Cols, opts...)
	if err != nil {
		return res, &PhaseError{Phase: PhaseAllocate, Err: err}
	}
	res.SessionID = sess.ID()
	log = log.With().Str("session", sess.ID()).Logger()

	defer func() {
		if terr := sess.Terminate(); terr != nil {
			log.Warn().Err(terr).Msg("terminate session")
		}
		res.ExitCode = sess.ExitCode()
		res.Duration = time.Since(start)
		log.Info().
			Int("snapshots", len(res.Snapshots)).
			Int("exit_code", res.ExitCode).
			Dur("elapsed", res.Duration).
			Msg("run finished")
	}()

	if err := sess.Spawn(cfg.Program); err != nil {
		return res, &PhaseError{Phase: PhaseSpawn, Err: err}
	}
	res.PID = sess.PID()
	log.Info().Str("program", cfg.Program.Path).Int("pid", res.PID).Msg("program started")

	iopts := []Option{WithLogger(log)}
	if cfg.Sink != nil {
		iopts = append(iopts, WithSink(cfg.Sink))
	}
	iopts = append(iopts, WithSettle(cfg.Settle, cfg.SettleMax))
	if cfg.Plain {
		iopts = append(iopts, WithRenderOptions(snapshot.Plain()))
	}

	res.Snapshots, err = New(sess, iopts...).Run(ctx, cmds)
	if err != nil {
		var pe *PhaseError
		if errors.As(err, &pe) {
			return res, err
		}
		return res, &PhaseError{Phase: PhaseRun, Err: err}
	}
	return res, nil
}
