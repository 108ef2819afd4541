// Package watcher reports changes to project files and the icon directory.
// Paths can be added and dropped while it runs, so the watched project can
// follow the file the editor has open.
package watcher

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of events, such as a save that writes a
// temp file and renames it into place
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches files and directories for changes
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	files  map[string]func(string) // absolute file path -> callback
	trees  map[string]func(string) // absolute directory -> callback for any entry
	dirs   map[string]int          // watched directory -> reference count
	timers map[string]*time.Timer
}

// New creates a watcher; call Run to start delivering callbacks
func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		files:    make(map[string]func(string)),
		trees:    make(map[string]func(string)),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WatchFile calls onChange after path is written or replaced. The parent
// directory is watched so editors that replace the file are seen too.
func (w *Watcher) WatchFile(path string, onChange func(path string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; ok {
		w.files[abs] = onChange
		return nil
	}
	if err := w.addDir(filepath.Dir(abs)); err != nil {
		return err
	}
	w.files[abs] = onChange
	log.Printf("Watching %s for changes", abs)
	return nil
}

// WatchDir calls onChange with the changed entry for any write, create,
// remove or rename inside dir
func (w *Watcher) WatchDir(dir string, onChange func(path string)) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.trees[abs]; ok {
		w.trees[abs] = onChange
		return nil
	}
	if err := w.addDir(abs); err != nil {
		return err
	}
	w.trees[abs] = onChange
	log.Printf("Watching %s for changes", abs)
	return nil
}

// Unwatch stops reporting a file or directory added earlier
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[abs]; ok {
		delete(w.files, abs)
		w.dropDir(filepath.Dir(abs))
	}
	if _, ok := w.trees[abs]; ok {
		delete(w.trees, abs)
		w.dropDir(abs)
	}
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}
}

// Watched lists the files currently watched
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

func (w *Watcher) addDir(dir string) error {
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	return nil
}

func (w *Watcher) dropDir(dir string) {
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return
	}
	delete(w.dirs, dir)
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		log.Printf("Watcher: could not stop watching %s: %v", dir, err)
	}
}

// Run delivers callbacks until ctx is cancelled, then closes the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			w.mu.Lock()
			for _, timer := range w.timers {
				timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if cb, ok := w.files[abs]; ok && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.schedule(abs, abs, cb)
	}
	dir := filepath.Dir(abs)
	if cb, ok := w.trees[dir]; ok && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.schedule(dir, abs, cb)
	}
}

// schedule debounces callbacks per key
func (w *Watcher) schedule(key, changed string, cb func(string)) {
	if timer, exists := w.timers[key]; exists {
		timer.Stop()
	}
	w.timers[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()
		log.Printf("File changed: %s", changed)
		cb(changed)
	})
}
