package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/ptyscript/internal/config"
	"github.com/dshills/ptyscript/internal/logging"
	"github.com/dshills/ptyscript/internal/script"
)

// runOptions holds the flags shared by run and watch.
type runOptions struct {
	configPath string
	env        []string

	stdin          io.Reader
	stdout, stderr io.Writer
}

// settingFlags maps command-line flags to config settings. Only flags
// given on the command line override the file and environment.
var settingFlags = []struct {
	flag string
	path string
}{
	{"rows", "terminal.rows"},
	{"cols", "terminal.cols"},
	{"term", "terminal.term"},
	{"script", "run.script"},
	{"dir", "run.dir"},
	{"timeout", "run.timeout"},
	{"grace", "run.gracePeriod"},
	{"settle", "run.settle"},
	{"settle-max", "run.settleMax"},
	{"format", "output.format"},
	{"out-dir", "output.dir"},
	{"plain", "output.plain"},
	{"log-level", "logging.level"},
	{"log-format", "logging.format"},
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "ptyscript",
		Short: "Drive a terminal program with a key script and capture its screen",
		Long: `ptyscript runs a program on a pseudo-terminal, feeds it keystrokes from a
JSON Lines script and records what the screen shows at each snapshot.

Script commands, one JSON object per line:
  {"type":"sendKeys","keys":["h","i","Enter"]}
  {"type":"sleep","millis":300}
  {"type":"waitFor","text":"ready","timeoutMillis":2000}
  {"type":"takeSnapshot","name":"greeting"}`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newRunCmd(stdin, stdout, stderr),
		newWatchCmd(stdin, stdout, stderr),
		newKeysCmd(stdout),
		newVersionCmd(stdout),
	)
	return root
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	def := config.Default()
	f := cmd.Flags()
	f.SetInterspersed(false)

	f.StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML or YAML configuration file")
	f.StringP("script", "s", "", `Script path, or "-" for standard input`)
	f.Int("rows", def.Terminal.Rows, "Terminal rows")
	f.Int("cols", def.Terminal.Cols, "Terminal columns")
	f.String("term", def.Terminal.Term, "TERM value for the program")
	f.String("dir", "", "Working directory for the program")
	f.StringArrayVar(&opts.env, "env", nil, "Extra KEY=VALUE environment entry for the program (repeatable)")
	f.Duration("timeout", def.Run.Timeout.Std(), "Limit for the whole run (0 for none)")
	f.Duration("grace", def.Run.GracePeriod.Std(), "Time between SIGTERM and SIGKILL on shutdown")
	f.Duration("settle", def.Run.Settle.Std(), "Quiet period required before a snapshot")
	f.Duration("settle-max", def.Run.SettleMax.Std(), "Longest wait for quiet output before a snapshot")
	f.String("format", def.Output.Format, "Snapshot output format: text or jsonl")
	f.String("out-dir", "", "Also write each snapshot to a file in this directory")
	f.Bool("plain", false, "Omit style markers from snapshots")
	f.String("log-level", def.Logging.Level, "Log level: trace, debug, info, warn, error or off")
	f.String("log-format", def.Logging.Format, "Log format: auto, console or json")
}

// loadConfig layers the config file, the environment and the flags given
// on the command line, then validates the result.
func loadConfig(cmd *cobra.Command, opts *runOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, os.Environ())
	if err != nil {
		return cfg, err
	}

	f := cmd.Flags()
	for _, sf := range settingFlags {
		if !f.Changed(sf.flag) {
			continue
		}
		if err := cfg.Set(sf.path, f.Lookup(sf.flag).Value.String()); err != nil {
			return cfg, fmt.Errorf("--%s: %w", sf.flag, err)
		}
	}
	cfg.Run.Env = append(cfg.Run.Env, opts.env...)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Run.Script == "" {
		return cfg, errors.New("no script given (use --script or run.script)")
	}
	return cfg, nil
}

func newLogger(cfg config.Config, stderr io.Writer) (zerolog.Logger, error) {
	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: stderr,
	})
	if err != nil {
		return log, err
	}
	return logging.WithComponent(log, "ptyscript"), nil
}

func newKeysCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the named keys a script can send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printKeys(stdout)
		},
	}
}

func printKeys(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tBYTES")
	for _, k := range script.Keys() {
		fmt.Fprintf(tw, "%s\t%s\n", k.Name, quoteBytes(k.Seq))
	}
	fmt.Fprintln(tw, "Alt+<char>\tESC followed by the character")
	fmt.Fprintln(tw, "<char>\tany single character, sent as UTF-8")
	return tw.Flush()
}

func quoteBytes(s string) string {
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "ptyscript %s\n", version)
			fmt.Fprintf(stdout, "Commit: %s\n", commit)
			fmt.Fprintf(stdout, "Built: %s\n", date)
		},
	}
}
