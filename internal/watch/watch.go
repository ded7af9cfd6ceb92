// Package watch re-runs a function whenever files in a set of directories
// change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period that ends a burst of changes.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches Paths (directories, not recursive).
//
// Output files, dot-files and anything under a dot-directory such as the
// .minisciath state dir never trigger a run.
type Watcher struct {
	Paths    []string
	Debounce time.Duration
	Logger   *zap.Logger

	// Ignore, if set, filters additional paths.
	Ignore func(path string) bool
}

// Run calls fn once, then again after each debounced burst of relevant
// changes. It returns nil when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context)) error {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	seen := make(map[string]bool)
	for _, p := range w.Paths {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		logger.Debug("watching", zap.String("path", p))
	}

	fn(ctx)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			if ctx.Err() != nil {
				return nil
			}
			fn(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if Ignored(event.Name) {
		return false
	}
	return w.Ignore == nil || !w.Ignore(event.Name)
}

// Ignored reports whether path is never a trigger: an output file, a
// dot-file, or a path inside a dot-directory.
func Ignored(path string) bool {
	if strings.HasSuffix(path, ".output") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
