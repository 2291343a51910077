package driver

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/ptyscript/internal/snapshot"
)

const (
	// DefaultSettle is how long output must be quiet before a snapshot.
	DefaultSettle = 50 * time.Millisecond
	// DefaultSettleMax bounds the wait for quiet output.
	DefaultSettleMax = time.Second
	// DefaultPollInterval is how often waitFor checks the screen.
	DefaultPollInterval = 25 * time.Millisecond

	replyQueueLength = 64
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(in *Interpreter) {
		in.log = log
	}
}

// WithSink sets where snapshots are emitted as they are taken.
func WithSink(sink snapshot.Sink) Option {
	return func(in *Interpreter) {
		if sink != nil {
			in.sink = sink
		}
	}
}

// WithRenderOptions sets the options used to render snapshots.
func WithRenderOptions(opts ...snapshot.RenderOption) Option {
	return func(in *Interpreter) {
		in.render = opts
	}
}

// WithSettle sets the quiet window and its upper bound used before each
// snapshot. A zero quiet window takes whatever output is already queued.
func WithSettle(quiet, max time.Duration) Option {
	return func(in *Interpreter) {
		if quiet >= 0 {
			in.settle = quiet
		}
		if max >= quiet {
			in.settleMax = max
		}
	}
}

// WithPollInterval sets how often waitFor checks the screen.
func WithPollInterval(d time.Duration) Option {
	return func(in *Interpreter) {
		if d > 0 {
			in.poll = d
		}
	}
}
