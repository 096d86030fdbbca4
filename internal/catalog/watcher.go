package catalog

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the overlay file whenever it changes on disk. It blocks
// until stop is closed, so callers run it in a goroutine. A catalog without
// an overlay path returns immediately.
func (c *Catalog) Watch(stop <-chan struct{}) error {
	if c.overlayPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory rather than the file: editors replace files on
	// save, which drops a file-level watch.
	dir := filepath.Dir(c.overlayPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(c.overlayPath)
	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := c.Reload(); err != nil {
				c.logger.Warn("Catalog overlay reload failed, keeping previous entries",
					zap.String("path", c.overlayPath),
					zap.Error(err),
				)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("Catalog watcher error", zap.Error(err))
		}
	}
}
