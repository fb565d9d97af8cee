// Package watch notices changes to the local store made by other
// processes, such as the CLI writing while the daemon runs.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Target describes what to watch: a directory and the file names inside it
// that count as store changes.
type Target struct {
	Dir   string
	Match func(name string) bool
}

// SQLiteTarget matches a database file and its journal files.
func SQLiteTarget(dbPath string) Target {
	base := filepath.Base(dbPath)
	return Target{
		Dir: filepath.Dir(dbPath),
		Match: func(name string) bool {
			return name == base || name == base+"-wal" || name == base+"-journal"
		},
	}
}

// FileTarget matches the JSON value files of a file-backed store.
func FileTarget(dir string) Target {
	return Target{
		Dir: dir,
		Match: func(name string) bool {
			return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
		},
	}
}

// Watch calls onChange once per burst of matching events, after debounce
// of quiet, until ctx is cancelled.
func Watch(ctx context.Context, target Target, debounce time.Duration, logger *slog.Logger, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(target.Dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", target.Dir))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			logger.Debug("watcher: store changed")
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !target.Match(filepath.Base(ev.Name)) {
				continue
			}
			schedule()

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}
