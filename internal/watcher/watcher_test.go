package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func expectChange(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if want != "" && got != want {
			t.Errorf("expected change of %s, got %s", want, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no change reported for %s", want)
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab.json")
	other := filepath.Join(dir, "other.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t)
	changes := make(chan string, 8)
	if err := w.WatchFile(path, func(p string) { changes <- p }); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	t.Run("sibling files are ignored", func(t *testing.T) {
		os.WriteFile(other, []byte("{}"), 0o644)
		select {
		case p := <-changes:
			t.Fatalf("unexpected change for %s", p)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("burst of writes reports once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			os.WriteFile(path, []byte(`{"n":1}`), 0o644)
		}
		abs, _ := filepath.Abs(path)
		expectChange(t, changes, abs)
		select {
		case p := <-changes:
			t.Errorf("expected a single callback, got another for %s", p)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("replace by rename is seen", func(t *testing.T) {
		tmp := path + ".tmp"
		os.WriteFile(tmp, []byte(`{"n":2}`), 0o644)
		if err := os.Rename(tmp, path); err != nil {
			t.Fatal(err)
		}
		expectChange(t, changes, "")
	})

	t.Run("unwatch stops callbacks", func(t *testing.T) {
		w.Unwatch(path)
		if len(w.Watched()) != 0 {
			t.Fatalf("expected nothing watched, got %v", w.Watched())
		}
		os.WriteFile(path, []byte(`{"n":3}`), 0o644)
		select {
		case p := <-changes:
			t.Fatalf("unexpected change for %s", p)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestWatchDir(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t)

	changes := make(chan string, 8)
	if err := w.WatchDir(dir, func(p string) { changes <- p }); err != nil {
		t.Fatalf("WatchDir: %v", err)
	}

	icon := filepath.Join(dir, "router.png")
	os.WriteFile(icon, []byte("png"), 0o644)
	abs, _ := filepath.Abs(icon)
	expectChange(t, changes, abs)

	os.Remove(icon)
	expectChange(t, changes, abs)
}
