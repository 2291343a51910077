// Package driver runs a parsed script against a child process on a
// pseudo-terminal and produces the snapshots the script asks for.
//
// One goroutine drains child output into the emulator for the whole run,
// including while the script sleeps, so a chatty child never blocks on a
// full terminal buffer. Snapshots wait for output to settle and then
// render whatever the emulator holds at that point.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ptyscript/internal/script"
	"github.com/dshills/ptyscript/internal/snapshot"
	"github.com/dshills/ptyscript/internal/vt"
)

// Session is the part of a terminal session the interpreter drives.
type Session interface {
	WriteInput(p []byte) error
	Output() <-chan []byte
	Exited() <-chan struct{}
	Size() (rows, cols int)
	Terminate() error
}

// Interpreter executes commands against a session in order.
type Interpreter struct {
	sess   Session
	log    zerolog.Logger
	sink   snapshot.Sink
	render []snapshot.RenderOption

	settle    time.Duration
	settleMax time.Duration
	poll      time.Duration

	// mu guards grid and parser.
	mu     sync.Mutex
	grid   *vt.Grid
	parser *vt.Parser

	flushReq chan chan struct{}
	replies  chan []byte
	gone     atomic.Bool
	ran      atomic.Bool

	// out is owned by the drain goroutine; nil once the stream has ended.
	out <-chan []byte
}

// New returns an interpreter for sess with a screen of the session's size.
func New(sess Session, opts ...Option) *Interpreter {
	rows, cols := sess.Size()
	in := &Interpreter{
		sess:      sess,
		log:       zerolog.Nop(),
		sink:      snapshot.Discard,
		settle:    DefaultSettle,
		settleMax: DefaultSettleMax,
		poll:      DefaultPollInterval,
		grid:      vt.NewGrid(rows, cols),
		flushReq:  make(chan chan struct{}),
		replies:   make(chan []byte, replyQueueLength),
	}
	for _, opt := range opts {
		opt(in)
	}

	in.parser = vt.NewParser(in.grid)
	in.parser.SetReplyFunc(in.queueReply)
	in.parser.SetUnknownFunc(func(seq string) {
		in.log.Trace().Str("sequence", seq).Msg("ignored escape sequence")
	})
	return in
}

// Run executes cmds in order and returns the snapshots taken. Cancelling
// ctx terminates the session and returns the snapshots taken so far with
// the context's error. Run may be called once.
func (in *Interpreter) Run(ctx context.Context, cmds []script.Command) ([]snapshot.Snapshot, error) {
	if !in.ran.CompareAndSwap(false, true) {
		return nil, errors.New("interpreter already ran")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		if err := in.sess.Terminate(); err != nil {
			in.log.Warn().Err(err).Msg("terminate on cancel")
		}
	})
	defer stop()

	in.out = in.sess.Output()

	workers, stopWorkers := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(workers)
	g.Go(func() error {
		in.drain(gctx)
		return nil
	})
	g.Go(func() error {
		in.writeReplies(gctx)
		return nil
	})

	var snaps []snapshot.Snapshot
	g.Go(func() error {
		defer stopWorkers()
		var err error
		snaps, err = in.timeline(gctx, cmds)
		return err
	})

	err := g.Wait()
	return snaps, err
}

// Text returns the current screen as plain text rows.
func (in *Interpreter) Text() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return strings.Split(in.grid.Text(), "\n")
}

func (in *Interpreter) timeline(ctx context.Context, cmds []script.Command) ([]snapshot.Snapshot, error) {
	var snaps []snapshot.Snapshot
	for _, c := range cmds {
		if err := ctx.Err(); err != nil {
			return snaps, err
		}
		log := in.log.With().Str("command", c.Type()).Int("line", c.Pos()).Logger()

		switch c := c.(type) {
		case script.SendKeys:
			if in.exited() {
				log.Info().Msg("process has exited, keys not sent")
				continue
			}
			if err := in.sess.WriteInput(c.Bytes); err != nil {
				if ctx.Err() != nil {
					return snaps, ctx.Err()
				}
				log.Warn().Err(err).Msg("write failed, treating process as exited")
				in.gone.Store(true)
				continue
			}
			log.Debug().Strs("keys", c.Keys).Int("bytes", len(c.Bytes)).Msg("keys sent")

		case script.Sleep:
			if in.exited() {
				log.Info().Msg("process has exited, sleep skipped")
				continue
			}
			if err := sleep(ctx, c.Duration); err != nil {
				return snaps, err
			}

		case script.TakeSnapshot:
			if err := in.flush(ctx); err != nil {
				return snaps, err
			}
			s := in.take(len(snaps)+1, c.Name)
			snaps = append(snaps, s)
			log.Debug().Int("seq", s.Seq).Str("name", s.Name).Msg("snapshot taken")
			if err := in.sink.Emit(s); err != nil {
				return snaps, &PhaseError{Phase: PhaseEmit, Err: fmt.Errorf("%s: %w", s.Label(), err)}
			}

		case script.WaitFor:
			if err := in.waitFor(ctx, log, c); err != nil {
				return snaps, err
			}

		default:
			return snaps, fmt.Errorf("line %d: unsupported command %T", c.Pos(), c)
		}
	}
	return snaps, nil
}

// waitFor polls the screen until it shows the text. Running out of time is
// logged, not fatal.
func (in *Interpreter) waitFor(ctx context.Context, log zerolog.Logger, c script.WaitFor) error {
	start := time.Now()
	deadline := start.Add(c.Timeout)
	for {
		if in.contains(c.Text) {
			log.Debug().Str("text", c.Text).Dur("after", time.Since(start)).Msg("text appeared")
			return nil
		}
		if in.exited() {
			// Output may still be queued behind the exit.
			if err := in.flush(ctx); err != nil {
				return err
			}
			if in.contains(c.Text) {
				return nil
			}
			log.Info().Str("text", c.Text).Msg("process has exited, text never appeared")
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Warn().Str("text", c.Text).Dur("timeout", c.Timeout).Msg("timed out waiting for text")
			return nil
		}
		if err := sleep(ctx, min(in.poll, remaining)); err != nil {
			return err
		}
	}
}

func (in *Interpreter) contains(text string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.grid.Contains(text)
}

func (in *Interpreter) take(seq int, name string) snapshot.Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return snapshot.Take(seq, name, in.grid, in.render...)
}

// exited reports whether the child is gone, either reaped or no longer
// accepting input.
func (in *Interpreter) exited() bool {
	if in.gone.Load() {
		return true
	}
	select {
	case <-in.sess.Exited():
		in.gone.Store(true)
		return true
	default:
		return false
	}
}

// flush asks the drain goroutine to settle output and waits until it has.
func (in *Interpreter) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case in.flushReq <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
