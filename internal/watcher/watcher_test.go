package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitHint(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.Hints():
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change hint")
	}
}

func drain(w *Watcher) {
	for {
		select {
		case <-w.Hints():
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}

func TestSessionWriteProducesHint(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "rollout.jsonl"), []byte(`{"type":"x"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitHint(t, w)
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	day := filepath.Join(root, "2026", "02")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatal(err)
	}
	waitHint(t, w)
	drain(w)

	// The nested dir may be created before its watch is registered, so
	// retry the write until a hint arrives.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(filepath.Join(day, "s.jsonl"), []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		select {
		case <-w.Hints():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
	t.Fatal("no hint for a file in a new subdirectory")
}

func TestIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	w, err := New([]string{root}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Hints():
		t.Fatal("unexpected hint for a non-session file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchedFileProducesHint(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfg, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := New([]string{filepath.Join(dir, "missing-root")}, []string{cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(cfg, []byte(`{"pricing":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitHint(t, w)
}

func TestBurstCoalesces(t *testing.T) {
	w := &Watcher{hints: make(chan struct{}, 1)}
	for i := 0; i < 10; i++ {
		w.notify()
	}
	if got := len(w.hints); got != 1 {
		t.Fatalf("pending hints = %d, want 1", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New([]string{t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
