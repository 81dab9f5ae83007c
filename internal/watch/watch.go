// Package watch re-runs the audit when the inspected installation
// changes. Events are debounced so a burst of writes (an upgrade, a sync
// client catching up) triggers one re-audit, not dozens.
package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kcchien/clawpilot/internal/logger"
)

var log = logger.New("watch")

// watchedSubdirs are the parts of an installation whose changes can move
// the audit verdict.
var watchedSubdirs = []string{"skills", "credentials", "workspace"}

// Watcher debounces file events under an installation root and invokes
// a callback once the tree settles.
type Watcher struct {
	root     string
	onChange func()

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup

	debounce     time.Duration
	pendingTimer *time.Timer
	timerMu      sync.Mutex
}

// New builds a watcher over root. onChange runs on the watcher's
// goroutine after each debounce window.
func New(root string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:     root,
		onChange: onChange,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the root and its relevant subdirectories.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}
	for _, sub := range watchedSubdirs {
		dir := filepath.Join(w.root, sub)
		if _, err := os.Stat(dir); err != nil {
			continue // may appear later; the root watch catches its creation
		}
		if err := w.watcher.Add(dir); err != nil {
			log.Warn("cannot watch %s: %v", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run()

	log.Info("watching %s for changes", w.root)
	return nil
}

// Stop halts the watcher and waits for its goroutine.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.timerMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) == 0 {
		return
	}

	// A newly created subdirectory of interest joins the watch set.
	if event.Op&fsnotify.Create != 0 {
		for _, sub := range watchedSubdirs {
			if event.Name == filepath.Join(w.root, sub) {
				if err := w.watcher.Add(event.Name); err != nil {
					log.Warn("cannot watch %s: %v", event.Name, err)
				}
			}
		}
	}

	log.Debug("change: %s (%s)", filepath.Base(event.Name), event.Op)
	w.scheduleRerun()
}

func (w *Watcher) scheduleRerun() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.onChange)
}
