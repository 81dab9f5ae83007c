package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	fired := make(chan struct{}, 10)

	w, err := New(root, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	w.debounce = 100 * time.Millisecond
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(root, "openclaw.json"), []byte(`{}`), 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("change never triggered a re-run")
	}

	// The burst should have collapsed into a single callback.
	select {
	case <-fired:
		t.Error("burst of writes triggered more than one re-run")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsClean(t *testing.T) {
	w, err := New(t.TempDir(), func() {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
}
