// Package watcher implements FileWatcher with fsnotify. It watches the
// landing tree recursively and reports files that were created or written.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/claimaudit/internal/core/domain"
	"github.com/custodia-labs/claimaudit/internal/core/ports/driven"
	"github.com/custodia-labs/claimaudit/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.FileWatcher = (*Watcher)(nil)

// DefaultBuffer is the capacity of the event channel. Events that do not
// fit are dropped; the ingestion scan picks those files up.
const DefaultBuffer = 256

// ErrAlreadyWatching is returned when Watch is called twice.
var ErrAlreadyWatching = errors.New("watcher already running")

// Watcher reports landing files through a channel of paths.
type Watcher struct {
	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	roots   []string
	closed  bool
	done    chan struct{}
	buffer  int
	dropped int
}

// New creates a watcher. Call Watch to start it.
func New() *Watcher {
	return &Watcher{buffer: DefaultBuffer}
}

// Watch adds every non-ignored directory under roots and starts the
// event loop. Directories created later are added as they appear.
func (w *Watcher) Watch(ctx context.Context, roots ...string) (<-chan string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("watch: %w", fs.ErrClosed)
	}
	if w.fsw != nil {
		return nil, ErrAlreadyWatching
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	absRoots := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		if err := addTree(fsw, abs, abs); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch root %s: %w", root, err)
		}
		absRoots = append(absRoots, abs)
	}
	w.fsw = fsw
	w.roots = absRoots

	out := make(chan string, w.buffer)
	w.done = make(chan struct{})
	go w.loop(ctx, fsw, out, w.done)

	logger.Info("Watching %d landing root(s)", len(w.roots))
	return out, nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	return err
}

// Dropped returns how many events were discarded because the channel was full.
func (w *Watcher) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- string, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			_ = fsw.Close()
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			path, ok := w.handleEvent(event)
			if !ok {
				continue
			}
			select {
			case out <- path:
			default:
				w.mu.Lock()
				w.dropped++
				w.mu.Unlock()
				logger.Debug("Watcher buffer full, dropped %s", path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleEvent returns the path to report for event, if any.
// New directories are added to the watch set and not reported.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	root := w.rootFor(event.Name)
	if root == "" || domain.IsIgnoredLandingPath(root, event.Name) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			w.mu.Lock()
			if w.fsw != nil && !w.closed {
				if err := addTree(w.fsw, root, event.Name); err != nil {
					logger.Warn("Failed to watch %s: %v", event.Name, err)
				}
			}
			w.mu.Unlock()
		}
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

// addTree adds dir and its non-ignored subdirectories to fsw.
func addTree(fsw *fsnotify.Watcher, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && domain.IsIgnoredLandingPath(root, path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) rootFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}
