package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for the session package.
var (
	// ErrAllocation is matched by every AllocationError.
	ErrAllocation = errors.New("pty allocation failed")

	// ErrSpawn is matched by every SpawnError.
	ErrSpawn = errors.New("spawn failed")

	// ErrIO is matched by every IOError.
	ErrIO = errors.New("pty i/o failed")

	// ErrClosed is returned when operations are attempted on a terminated session.
	ErrClosed = errors.New("session is closed")

	// ErrAlreadySpawned is returned when Spawn is called twice.
	ErrAlreadySpawned = errors.New("session already has a process")

	// ErrNotSpawned is returned by I/O before Spawn.
	ErrNotSpawned = errors.New("session has no process")

	// ErrInvalidSize is returned for rows or cols outside 1..65535.
	ErrInvalidSize = errors.New("invalid terminal size")
)

// AllocationError reports that no pseudo-terminal could be opened.
type AllocationError struct {
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate pty: %v", e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAllocation.
func (e *AllocationError) Is(target error) bool { return target == ErrAllocation }

// SpawnError reports that the program could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSpawn.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// IOError reports a failed read, write or close on the PTY master.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("pty %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }
