package session

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultGracePeriod is how long Terminate waits after SIGTERM.
	DefaultGracePeriod = 500 * time.Millisecond

	// DefaultTerm is the TERM value given to the child.
	DefaultTerm = "xterm-256color"

	defaultReadBufferSize = 4096
	defaultQueueLength    = 256
	killWait              = 5 * time.Second
	readerWait            = 2 * time.Second
)

// Option configures a Session.
type Option func(*options)

type options struct {
	log         zerolog.Logger
	grace       time.Duration
	bufSize     int
	queueLength int
	term        string
}

func defaultOptions() options {
	return options{
		log:         zerolog.Nop(),
		grace:       DefaultGracePeriod,
		bufSize:     defaultReadBufferSize,
		queueLength: defaultQueueLength,
		term:        DefaultTerm,
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithGracePeriod sets the delay between SIGTERM and SIGKILL in Terminate.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.grace = d
		}
	}
}

// WithReadBufferSize sets the size of each read from the PTY master.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufSize = n
		}
	}
}

// WithQueueLength sets how many output chunks may be queued before the
// reader blocks.
func WithQueueLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueLength = n
		}
	}
}

// WithTerm sets the TERM value given to the child.
func WithTerm(term string) Option {
	return func(o *options) {
		if term != "" {
			o.term = term
		}
	}
}
