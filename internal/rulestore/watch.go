package rulestore

import (
	"context"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/fsnotify/fsnotify"
)

// WatchReload watches path for writes and calls ReplaceFromFile whenever one
// is observed, in addition to whatever explicit reload trigger (e.g. SIGHUP)
// the caller also wires up.  Both paths call the same ReplaceFromFile, so
// they share its atomicity guarantee.
//
// WatchReload blocks until ctx is canceled or the watcher fails to start; it
// is meant to be run in its own goroutine. Grounded on
// internal/aghos/fswatcher.go's fsnotify.Watcher wrapper.
func (s *Store) WatchReload(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := s.ReplaceFromFile(path); err != nil {
				s.logger.Info("automatic rule reload failed", slogutil.KeyError, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			s.logger.Info("rule file watcher error", slogutil.KeyError, err)
		}
	}
}
