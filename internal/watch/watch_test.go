package watch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newWatcher(t *testing.T, files ...string) *Watcher {
	t.Helper()
	w, err := New(files, WithDelay(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func waitBatch(t *testing.T, w *Watcher) []string {
	t.Helper()
	select {
	case batch := <-w.Changes():
		return batch
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return nil
	}
}

func expectQuiet(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()
	select {
	case batch := <-w.Changes():
		t.Fatalf("unexpected change %v", batch)
	case <-time.After(d):
	}
}

func TestWriteIsReported(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "demo.jsonl")
	writeFile(t, script, "{}\n")
	w := newWatcher(t, script)

	writeFile(t, script, "{}\n{}\n")

	batch := waitBatch(t, w)
	if len(batch) != 1 || filepath.Base(batch[0]) != "demo.jsonl" {
		t.Errorf("batch = %v, want [demo.jsonl]", batch)
	}
}

func TestRapidWritesCoalesce(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "demo.jsonl")
	writeFile(t, script, "")
	w := newWatcher(t, script)

	for i := 0; i < 5; i++ {
		writeFile(t, script, "line\n")
		time.Sleep(5 * time.Millisecond)
	}

	waitBatch(t, w)
	expectQuiet(t, w, 300*time.Millisecond)
}

func TestSeveralFilesInOneBatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.toml")
	writeFile(t, a, "")
	writeFile(t, b, "")
	w := newWatcher(t, a, b)

	writeFile(t, b, "x")
	writeFile(t, a, "x")

	batch := waitBatch(t, w)
	if len(batch) != 2 || filepath.Base(batch[0]) != "a.jsonl" || filepath.Base(batch[1]) != "b.toml" {
		t.Errorf("batch = %v, want [a.jsonl b.toml]", batch)
	}
}

func TestOtherFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "demo.jsonl")
	writeFile(t, script, "")
	w := newWatcher(t, script)

	writeFile(t, filepath.Join(dir, "unrelated.txt"), "x")

	expectQuiet(t, w, 300*time.Millisecond)
}

func TestRenameOverIsReported(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "demo.jsonl")
	writeFile(t, script, "")
	w := newWatcher(t, script)

	tmp := filepath.Join(dir, ".demo.jsonl.swp")
	writeFile(t, tmp, "{}\n")
	if err := os.Rename(tmp, script); err != nil {
		t.Fatalf("rename: %v", err)
	}

	waitBatch(t, w)
}

func TestMissingFile(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "nope.jsonl")})
	if !errors.Is(err, ErrPathNotExist) {
		t.Errorf("error = %v, want ErrPathNotExist", err)
	}

	if _, err := New(nil); err == nil {
		t.Error("expected error for empty file list")
	}
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "demo.jsonl")
	writeFile(t, script, "")
	w, err := New([]string{script})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, ok := <-w.Changes(); ok {
		t.Error("expected Changes to be closed")
	}
}
