package main

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/lintstorm/internal/document"
)

// Editors tend to emit several write events per save; changes within this
// window collapse into one document save.
const writeDebounce = 100 * time.Millisecond

// workspaceWatcher maps filesystem events to document lifecycle events:
// a settled write becomes a change plus save, a new file with a known
// language is opened, a removal closes the document.
type workspaceWatcher struct {
	fsw     *fsnotify.Watcher
	tracker *document.Tracker
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func watchWorkspace(root string, tracker *document.Tracker, logger *slog.Logger) (*workspaceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &workspaceWatcher{
		fsw:     fsw,
		tracker: tracker,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *workspaceWatcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *workspaceWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watch error", "error", err)
		}
	}
}

func (w *workspaceWatcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if !strings.HasPrefix(filepath.Base(path), ".") {
				if err := w.fsw.Add(path); err != nil {
					w.logger.Warn("watching new directory failed", "path", path, "error", err)
				}
			}
			return
		}
		w.scheduleWrite(path)

	case ev.Op.Has(fsnotify.Write):
		w.scheduleWrite(path)

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.tracker.Close(document.IDForPath(path))
	}
}

// scheduleWrite arms (or re-arms) the per-path debounce timer.
func (w *workspaceWatcher) scheduleWrite(path string) {
	if document.LanguageForPath(path) == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(writeDebounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.fileWritten(path)
	})
}

// fileWritten re-reads a settled file and emits its lifecycle events: open
// for an untracked path, change plus save for a tracked one.
func (w *workspaceWatcher) fileWritten(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("reading changed file failed", "path", path, "error", err)
		return
	}

	id := document.IDForPath(path)
	if _, ok := w.tracker.Lookup(id); !ok {
		w.tracker.Open(path, document.LanguageForPath(path), string(content))
		return
	}
	w.tracker.Change(id, string(content))
	w.tracker.Save(id)
}
