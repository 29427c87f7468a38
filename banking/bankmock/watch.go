package bankmock

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

type watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Watch reloads the fixture file whenever it changes on disk. Editors often
// replace rather than write in place, so the parent directory is watched and
// events are filtered by name.
func (b *Backend) Watch(path string, logger pslog.Logger) error {
	if b.watch != nil {
		return fmt.Errorf("fixture watcher already running")
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve fixtures path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start fixture watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &watcher{fsw: fsw, done: make(chan struct{})}
	b.watch = w
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := b.Load(abs); err != nil {
					logger.Warn("bankmock.fixtures.reload_failed", "path", abs, "error", err)
					continue
				}
				logger.Info("bankmock.fixtures.reloaded", "path", abs)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("bankmock.fixtures.watch_error", "error", err)
			}
		}
	}()
	return nil
}

func (w *watcher) close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
