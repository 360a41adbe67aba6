// Package watch reports changes to the image files of a folder.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/scanner"
)

// DefaultDebounce groups bursts of events, e.g. a copy of many files,
// into one notification.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches one folder, non-recursively.
type Watcher struct {
	dir        string
	extensions []string
	debounce   time.Duration
	log        *zap.Logger
}

// New creates a Watcher for dir. Only files matching extensions (the
// scanner defaults when empty) trigger notifications.
func New(dir string, extensions []string, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{dir: dir, extensions: extensions, debounce: debounce, log: log}
}

// Run calls onChange after each quiet period following relevant events,
// until ctx is done. onChange runs on the watcher goroutine.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			w.log.Error("failed to close watcher", zap.Error(err))
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.log.Debug("watching folder", zap.String("dir", w.dir))

	// nil until an event arrives; re-armed by every later event.
	var quiet <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("folder changed", zap.String("op", event.Op.String()), zap.String("name", event.Name))
			quiet = time.After(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-quiet:
			quiet = nil
			onChange()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return scanner.Allowed(filepath.Base(event.Name), w.extensions)
}
