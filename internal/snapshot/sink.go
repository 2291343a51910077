package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/tidwall/sjson"
)

// Sink receives snapshots in the order they are taken.
type Sink interface {
	Emit(s Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot) error

// Emit calls f(s).
func (f SinkFunc) Emit(s Snapshot) error {
	return f(s)
}

// Discard drops every snapshot.
var Discard Sink = SinkFunc(func(Snapshot) error { return nil })

type multiSink []Sink

// Multi returns a sink that emits to every sink in order, stopping at the
// first error.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Emit(s Snapshot) error {
	for _, sink := range m {
		if err := sink.Emit(s); err != nil {
			return err
		}
	}
	return nil
}

// TextSink writes each snapshot as a header line followed by its rows.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink creates a text sink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Emit writes s.
func (t *TextSink) Emit(s Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintf(t.w, "--- %s ---\n%s", s.Label(), s.Text()); err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	return nil
}

// JSONLSink writes one JSON object per snapshot.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink creates a JSON Lines sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Emit writes s as a single line.
func (j *JSONLSink) Emit(s Snapshot) error {
	doc, err := MarshalJSON(s)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := io.WriteString(j.w, doc+"\n"); err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	return nil
}

// MarshalJSON encodes s as a compact JSON object with a fixed key order.
func MarshalJSON(s Snapshot) (string, error) {
	lines := s.Lines
	if lines == nil {
		lines = []string{}
	}

	fields := []struct {
		path  string
		value any
		skip  bool
	}{
		{path: "seq", value: s.Seq},
		{path: "name", value: s.Name, skip: s.Name == ""},
		{path: "rows", value: s.Rows},
		{path: "cols", value: s.Cols},
		{path: "cursor.row", value: s.CursorRow},
		{path: "cursor.col", value: s.CursorCol},
		{path: "cursor.visible", value: s.CursorVisible},
		{path: "altScreen", value: s.AltScreen},
		{path: "title", value: s.Title, skip: s.Title == ""},
		{path: "lines", value: lines},
	}

	doc := "{}"
	for _, f := range fields {
		if f.skip {
			continue
		}
		var err error
		doc, err = sjson.Set(doc, f.path, f.value)
		if err != nil {
			return "", fmt.Errorf("encode snapshot %d %s: %w", s.Seq, f.path, err)
		}
	}
	return doc, nil
}

// LockFileName is the lock file DirSink holds while writing.
const LockFileName = ".ptyscript.lock"

// DirSink writes each snapshot to its own file, NNN-name.snap, in a
// directory. Writes are serialised across processes with a lock file.
type DirSink struct {
	dir  string
	lock *flock.Flock
}

// NewDirSink creates dir if needed and returns a sink writing into it.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &DirSink{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, LockFileName)),
	}, nil
}

// Dir returns the output directory.
func (d *DirSink) Dir() string {
	return d.dir
}

// Emit writes s to d.Dir()/FileName(s).
func (d *DirSink) Emit(s Snapshot) (err error) {
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot dir: %w", err)
	}
	defer func() {
		if uerr := d.lock.Unlock(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("unlock snapshot dir: %w", uerr))
		}
	}()

	path := filepath.Join(d.dir, FileName(s))
	tmp, err := os.CreateTemp(d.dir, ".snap-*")
	if err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(s.Text()); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write snapshot %d: %w", s.Seq, err)
	}
	return nil
}

// Close releases the lock file handle.
func (d *DirSink) Close() error {
	return d.lock.Close()
}

// FileName returns the file name DirSink uses for s.
func FileName(s Snapshot) string {
	name := slug(s.Name)
	if name == "" {
		name = "snapshot"
	}
	return fmt.Sprintf("%03d-%s.snap", s.Seq, name)
}

func slug(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, name)
	return strings.Trim(s, "-.")
}
