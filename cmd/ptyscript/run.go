package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/ptyscript/internal/config"
	"github.com/dshills/ptyscript/internal/driver"
	"github.com/dshills/ptyscript/internal/script"
	"github.com/dshills/ptyscript/internal/session"
	"github.com/dshills/ptyscript/internal/snapshot"
	"github.com/dshills/ptyscript/internal/watch"
)

func newRunCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &runOptions{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "run [flags] [--] program [args...]",
		Short: "Run a program under a script and print its snapshots",
		Long: `Run starts program on a fresh pseudo-terminal, executes the script against
it and writes every snapshot to standard output as it is taken.

The exit status is 0 when the program was started and the script ran to
completion, and 1 when any phase failed.

Examples:
  ptyscript run -s demo.jsonl -- vim -u NONE
  ptyscript run -s - --format jsonl -- ./myapp < demo.jsonl
  ptyscript run -c ptyscript.toml -- htop`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, opts.stderr)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, args, opts, log)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func newWatchCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := &runOptions{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "watch [flags] [--] program [args...]",
		Short: "Re-run whenever the script or config file changes",
		Long: `Watch performs a run like "ptyscript run" and then waits for the script
or the config file to change, re-running after each change until
interrupted. Failed runs are reported and do not stop the watch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchLoop(cmd, args, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// runOnce performs one scripted run and writes its snapshots.
func runOnce(ctx context.Context, cfg config.Config, program []string, opts *runOptions, log zerolog.Logger) error {
	var cmds []script.Command
	if cfg.Run.Script == "-" {
		var err error
		cmds, err = script.Parse(opts.stdin)
		if err != nil {
			return &driver.PhaseError{Phase: driver.PhaseParse, Err: err}
		}
	}

	sink, closeSink, err := newSink(cfg, opts.stdout)
	if err != nil {
		return &driver.PhaseError{Phase: driver.PhaseEmit, Err: err}
	}
	defer closeSink()

	res, err := driver.Run(ctx, driver.Config{
		Commands:    cmds,
		ScriptPath:  cfg.Run.Script,
		Program:     session.Command{Path: program[0], Args: program[1:], Env: cfg.Run.Env, Dir: cfg.Run.Dir},
		Rows:        cfg.Terminal.Rows,
		Cols:        cfg.Terminal.Cols,
		Term:        cfg.Terminal.Term,
		Timeout:     cfg.Run.Timeout.Std(),
		GracePeriod: cfg.Run.GracePeriod.Std(),
		Settle:      cfg.Run.Settle.Std(),
		SettleMax:   cfg.Run.SettleMax.Std(),
		Sink:        sink,
		Plain:       cfg.Output.Plain,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	log.Debug().Int("snapshots", len(res.Snapshots)).Int("exit_code", res.ExitCode).Msg("run complete")
	return nil
}

// newSink builds the snapshot sink for cfg: standard output in the chosen
// format, plus a snapshot directory when one is configured.
func newSink(cfg config.Config, stdout io.Writer) (snapshot.Sink, func(), error) {
	var out snapshot.Sink
	switch cfg.Output.Format {
	case config.FormatJSONL:
		out = snapshot.NewJSONLSink(stdout)
	default:
		out = snapshot.NewTextSink(stdout)
	}

	if cfg.Output.Dir == "" {
		return out, func() {}, nil
	}
	dir, err := snapshot.NewDirSink(cfg.Output.Dir)
	if err != nil {
		return nil, nil, err
	}
	return snapshot.Multi(out, dir), func() { dir.Close() }, nil
}

func watchLoop(cmd *cobra.Command, program []string, opts *runOptions) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if cfg.Run.Script == "-" {
		return errors.New("watch needs a script file, not standard input")
	}
	log, err := newLogger(cfg, opts.stderr)
	if err != nil {
		return err
	}

	files := []string{cfg.Run.Script}
	if opts.configPath != "" {
		files = append(files, opts.configPath)
	}
	w, err := watch.New(files, watch.WithLogger(log))
	if err != nil {
		return err
	}
	defer w.Close()

	for {
		if err := runOnce(ctx, cfg, program, opts, log); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(opts.stderr, "Error: %v\n", err)
		}
		fmt.Fprintf(opts.stderr, "watching %d file(s) for changes\n", len(files))

		for {
			if !waitForChange(ctx, w, log) {
				return nil
			}
			next, err := loadConfig(cmd, opts)
			if err == nil {
				cfg = next
				break
			}
			fmt.Fprintf(opts.stderr, "Error: %v\n", err)
		}
	}
}

// waitForChange blocks until a watched file changes. It returns false when
// ctx is done or the watcher has stopped.
func waitForChange(ctx context.Context, w *watch.Watcher, log zerolog.Logger) bool {
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return false
		case changed, ok := <-w.Changes():
			if !ok {
				return false
			}
			log.Info().Strs("files", changed).Msg("re-running")
			return true
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Err(err).Msg("watch")
		}
	}
}
