package source

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"herbolive/internal/logging"
)

// CSVWatcher reloads a CSVSource when its file changes on disk.
// The parent directory is watched so editors that replace the file by rename
// are still seen.
type CSVWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	src      *CSVSource
	file     string
	debounce time.Duration
	pending  time.Time
	onReload func(rows int)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewCSVWatcher creates a watcher for src. onReload, if set, is called after
// each successful reload with the new row count.
func NewCSVWatcher(src *CSVSource, onReload func(rows int)) (*CSVWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	file, err := filepath.Abs(src.Path())
	if err != nil {
		file = filepath.Clean(src.Path())
	}
	return &CSVWatcher{
		watcher:  w,
		src:      src,
		file:     file,
		debounce: 300 * time.Millisecond,
		onReload: onReload,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (cw *CSVWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	dir := filepath.Dir(cw.file)
	if err := cw.watcher.Add(dir); err != nil {
		logging.WatchWarn("CSV watcher: cannot watch %s: %v", dir, err)
	} else {
		logging.Watch("CSV watcher: watching %s", cw.file)
	}

	go cw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine.
func (cw *CSVWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		_ = cw.watcher.Close()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh
	if err := cw.watcher.Close(); err != nil {
		logging.WatchWarn("CSV watcher: close: %v", err)
	}
	logging.Watch("CSV watcher: stopped")
}

func (cw *CSVWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(ev)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("CSV watcher error: %v", err)
		case <-tick.C:
			cw.flush(ctx)
		}
	}
}

func (cw *CSVWatcher) handle(ev fsnotify.Event) {
	name, err := filepath.Abs(ev.Name)
	if err != nil || name != cw.file {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	cw.mu.Lock()
	cw.pending = time.Now()
	cw.mu.Unlock()
}

// flush reloads once writes have been quiet for the debounce period.
func (cw *CSVWatcher) flush(ctx context.Context) {
	cw.mu.Lock()
	due := !cw.pending.IsZero() && time.Since(cw.pending) >= cw.debounce
	if due {
		cw.pending = time.Time{}
	}
	cw.mu.Unlock()
	if !due {
		return
	}

	if err := cw.src.Reload(ctx); err != nil {
		logging.WatchWarn("CSV reload failed: %v", err)
		return
	}
	rows, _ := cw.src.All(ctx)
	logging.Watch("CSV reloaded: %d rows", len(rows))
	if cw.onReload != nil {
		cw.onReload(len(rows))
	}
}
