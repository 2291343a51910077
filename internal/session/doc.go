// Package session runs one program on a pseudo-terminal.
//
// A Session owns a PTY master/slave pair, the child process started on the
// slave side and a reader goroutine that queues everything the child
// writes.
//
// # Lifecycle
//
//	s, err := session.Open(24, 80, session.WithLogger(log))
//	if err != nil {
//	    return err // *session.AllocationError
//	}
//	defer s.Terminate()
//
//	if err := s.Spawn(session.Command{Path: "/bin/cat"}); err != nil {
//	    return err // *session.SpawnError
//	}
//
//	s.WriteInput([]byte("hello\r"))
//	out, err := s.ReadAvailable(100 * time.Millisecond)
//
// Output is consumed either through ReadAvailable or by ranging over
// Output, never both. The channel is closed once the child side of the
// terminal has gone away.
//
// Terminate is idempotent and safe to call from any goroutine. It signals
// the child's process group with SIGTERM, escalates to SIGKILL after the
// grace period, reaps the child and releases both descriptors.
//
// # Thread Safety
//
// WriteInput, Terminate and the accessors are safe for concurrent use.
// There must be a single output consumer.
package session
