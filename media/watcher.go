package media

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tunestream/logger"

	"github.com/fsnotify/fsnotify"
)

// Invalidator drops cached metadata for a storage key.
type Invalidator interface {
	InvalidateKey(ctx context.Context, storageKey string) error
}

// KeyMapper converts a filesystem path back to a storage key.
// *storage.LocalBackend implements it.
type KeyMapper interface {
	Key(path string) (string, bool)
}

// Watcher invalidates cached metadata when files under the media root
// change, so a replaced file is never served with stale metadata.
type Watcher struct {
	root        string
	keys        KeyMapper
	invalidator Invalidator
}

// NewWatcher watches root recursively.
func NewWatcher(root string, keys KeyMapper, invalidator Invalidator) *Watcher {
	return &Watcher{root: root, keys: keys, invalidator: invalidator}
}

// Run blocks until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	logger.Info("watching media directory", logger.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("media watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(watcher, event.Name); err != nil {
				logger.Warn("failed to watch new directory", logger.String("path", event.Name), logger.ErrorField(err))
			}
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	key, ok := w.keys.Key(event.Name)
	if !ok {
		return
	}
	if err := w.invalidator.InvalidateKey(ctx, key); err != nil {
		logger.Warn("failed to invalidate metadata",
			logger.String("storageKey", key),
			logger.ErrorField(err))
	}
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
