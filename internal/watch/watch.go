// Package watch reports changes to a fixed set of files.
//
// The parent directories are watched rather than the files themselves so
// that editors which save by writing a temporary file and renaming it over
// the original are still seen. Changes arriving within the debounce delay
// are coalesced into one batch.
package watch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDelay is the debounce delay.
const DefaultDelay = 100 * time.Millisecond

// ErrPathNotExist is returned by New for a missing file.
var ErrPathNotExist = errors.New("path does not exist")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// Watcher watches files for changes.
type Watcher struct {
	fsw   *fsnotify.Watcher
	files map[string]bool
	delay time.Duration
	log   zerolog.Logger

	changes chan []string
	errors  chan error

	mu       sync.Mutex
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New starts watching files. Every file must exist.
func New(files []string, opts ...Option) (*Watcher, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		files:   make(map[string]bool, len(files)),
		delay:   DefaultDelay,
		log:     zerolog.Nop(),
		changes: make(chan []string, 1),
		errors:  make(chan error, 16),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		if _, err := os.Stat(abs); err != nil {
			fsw.Close()
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrPathNotExist, f)
			}
			return nil, err
		}
		w.files[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Changes returns the channel of debounced change batches. Each batch lists
// the changed files, sorted. The channel is closed by Close.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Errors returns the error channel.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.changes)
	close(w.errors)

	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !w.files[path] || !ev.Op.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			w.log.Trace().Str("path", path).Str("op", ev.Op.String()).Msg("file event")
			pending[path] = true
			timer.Reset(w.delay)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			clear(pending)
			w.log.Debug().Strs("files", batch).Msg("files changed")

			select {
			case w.changes <- batch:
			case <-w.closeCh:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.log.Warn().Err(err).Msg("watch error dropped")
			}
		}
	}
}
