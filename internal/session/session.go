package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Command describes the program to run on the terminal.
type Command struct {
	// Path is the executable, resolved through PATH when it has no slash.
	Path string
	Args []string
	// Env entries are appended to the inherited environment and win over
	// it.
	Env []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// Session is one pseudo-terminal with at most one child process.
type Session struct {
	id         string
	rows, cols int
	opts       options
	log        zerolog.Logger

	ptm *os.File
	pts *os.File

	mu      sync.Mutex
	cmd     *exec.Cmd
	closed  bool
	spawned bool

	out        chan []byte
	eof        atomic.Bool
	closing    chan struct{}
	readerDone chan struct{}

	exited   chan struct{}
	exitOnce sync.Once
	exitCode atomic.Int32

	termOnce sync.Once
	termErr  error
}

// Open allocates a pseudo-terminal of rows x cols.
func Open(rows, cols int, opts ...Option) (*Session, error) {
	if rows < 1 || cols < 1 || rows > 65535 || cols > 65535 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ptm, pts, err := pty.Open()
	if err != nil {
		return nil, &AllocationError{Err: err}
	}
	if err := pty.Setsize(ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		ptm.Close()
		pts.Close()
		return nil, &AllocationError{Err: fmt.Errorf("set size: %w", err)}
	}

	id := uuid.New().String()
	s := &Session{
		id:         id,
		rows:       rows,
		cols:       cols,
		opts:       o,
		log:        o.log.With().Str("session", id).Logger(),
		ptm:        ptm,
		pts:        pts,
		out:        make(chan []byte, o.queueLength),
		closing:    make(chan struct{}),
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	s.exitCode.Store(-1)

	s.log.Debug().Str("pts", pts.Name()).Int("rows", rows).Int("cols", cols).Msg("pty allocated")
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Size returns the terminal dimensions.
func (s *Session) Size() (rows, cols int) {
	return s.rows, s.cols
}

// PID returns the child's process ID, or -1 before Spawn.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return -1
	}
	return s.cmd.Process.Pid
}

// Exited returns a channel that is closed when the child has exited and
// been reaped, or when the session is terminated without a child.
func (s *Session) Exited() <-chan struct{} {
	return s.exited
}

// ExitCode returns the child's exit code. Returns -1 while it is running
// or when it was killed by a signal.
func (s *Session) ExitCode() int {
	return int(s.exitCode.Load())
}

// Spawn starts cmd with its standard streams on the terminal. The child
// leads a new session with the terminal as its controlling tty.
func (s *Session) Spawn(c Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.spawned {
		return ErrAlreadySpawned
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(),
		"TERM="+s.opts.term,
		"COLUMNS="+strconv.Itoa(s.cols),
		"LINES="+strconv.Itoa(s.rows),
	)
	cmd.Env = append(cmd.Env, c.Env...)
	cmd.Stdin = s.pts
	cmd.Stdout = s.pts
	cmd.Stderr = s.pts
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	if err := cmd.Start(); err != nil {
		return &SpawnError{Path: c.Path, Err: err}
	}

	// The child holds its own copies of the slave.
	if err := s.pts.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close pty slave")
	}
	s.pts = nil
	s.cmd = cmd
	s.spawned = true

	s.log = s.log.With().Int("pid", cmd.Process.Pid).Logger()
	s.log.Debug().Str("path", c.Path).Strs("args", c.Args).Str("dir", c.Dir).Msg("process started")

	go s.readLoop()
	go s.waitLoop(cmd)
	return nil
}

// WriteInput writes p to the child's terminal input.
func (s *Session) WriteInput(p []byte) error {
	s.mu.Lock()
	closed, spawned := s.closed, s.spawned
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !spawned {
		return ErrNotSpawned
	}
	if len(p) == 0 {
		return nil
	}

	if _, err := s.ptm.Write(p); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrClosed
		}
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// Output returns the channel of output chunks. It is closed when the
// output stream ends.
func (s *Session) Output() <-chan []byte {
	return s.out
}

// ReadAvailable returns all output queued since the last call, waiting up
// to wait for the first chunk. It returns an empty slice when nothing
// arrived and io.EOF once the stream has ended and been fully consumed.
func (s *Session) ReadAvailable(wait time.Duration) ([]byte, error) {
	if s.eof.Load() {
		return nil, io.EOF
	}

	s.mu.Lock()
	closed, spawned := s.closed, s.spawned
	s.mu.Unlock()
	if !spawned {
		if closed {
			return nil, ErrClosed
		}
		return nil, ErrNotSpawned
	}

	var buf []byte
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case chunk, ok := <-s.out:
			if !ok {
				s.eof.Store(true)
				return nil, io.EOF
			}
			buf = append(buf, chunk...)
		case <-timer.C:
			return []byte{}, nil
		}
	}

	for {
		select {
		case chunk, ok := <-s.out:
			if !ok {
				s.eof.Store(true)
				if len(buf) == 0 {
					return nil, io.EOF
				}
				return buf, nil
			}
			buf = append(buf, chunk...)
		default:
			if buf == nil {
				buf = []byte{}
			}
			return buf, nil
		}
	}
}

// Terminate stops the child and releases the terminal. It is idempotent;
// later calls return the result of the first.
func (s *Session) Terminate() error {
	s.termOnce.Do(func() {
		s.termErr = s.terminate()
	})
	return s.termErr
}

func (s *Session) terminate() error {
	s.mu.Lock()
	s.closed = true
	cmd := s.cmd
	pts := s.pts
	s.pts = nil
	s.mu.Unlock()

	close(s.closing)

	var errs []error
	if cmd != nil {
		s.stopProcess(cmd.Process.Pid)
	} else {
		s.markExited()
	}

	if err := s.ptm.Close(); err != nil {
		errs = append(errs, &IOError{Op: "close", Err: err})
	}
	if pts != nil {
		if err := pts.Close(); err != nil {
			errs = append(errs, &IOError{Op: "close", Err: err})
		}
	}

	if cmd != nil {
		select {
		case <-s.readerDone:
		case <-time.After(readerWait):
			errs = append(errs, &IOError{Op: "close", Err: errors.New("reader did not stop")})
		}
	}

	err := errors.Join(errs...)
	s.log.Debug().Err(err).Int("exit_code", s.ExitCode()).Msg("session terminated")
	return err
}

// stopProcess signals the child's process group, escalating from SIGTERM
// to SIGKILL, and waits for the child to be reaped.
func (s *Session) stopProcess(pid int) {
	select {
	case <-s.exited:
	default:
		s.signalGroup(pid, unix.SIGTERM)
		select {
		case <-s.exited:
		case <-time.After(s.opts.grace):
			s.log.Debug().Dur("grace", s.opts.grace).Msg("process ignored SIGTERM, killing")
			s.signalGroup(pid, unix.SIGKILL)
			select {
			case <-s.exited:
			case <-time.After(killWait):
				s.log.Warn().Msg("process not reaped after SIGKILL")
			}
		}
	}

	// Stragglers left in the group by the child.
	s.signalGroup(pid, unix.SIGKILL)
}

func (s *Session) signalGroup(pid int, sig unix.Signal) {
	if err := unix.Kill(-pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		s.log.Debug().Err(err).Str("signal", sig.String()).Msg("signal process group")
	}
}

func (s *Session) markExited() {
	s.exitOnce.Do(func() { close(s.exited) })
}

func (s *Session) waitLoop(cmd *exec.Cmd) {
	err := cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	s.exitCode.Store(int32(code))
	s.log.Debug().Err(err).Int("exit_code", code).Msg("process exited")
	s.markExited()
}

// readLoop queues output until the child side of the terminal closes or
// the session is terminated.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer close(s.out)

	for {
		buf := make([]byte, s.opts.bufSize)
		n, err := s.ptm.Read(buf)
		if n > 0 {
			select {
			case s.out <- buf[:n]:
			case <-s.closing:
				return
			}
		}
		if err != nil {
			if !isEOF(err) {
				s.log.Warn().Err(err).Msg("pty read")
			}
			return
		}
	}
}

// isEOF reports whether a read error ends the stream. Linux returns EIO
// from the master once every slave descriptor is closed.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
