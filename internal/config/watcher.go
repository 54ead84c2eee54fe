package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/virtend/virtend/internal/observability"
)

// FixtureCallback receives every successfully loaded fixture set: the
// initial load in Start and each reload after it.
type FixtureCallback func(*FixtureFile)

// ErrorCallback receives reload and watch failures.
type ErrorCallback func(error)

// Watcher keeps a fixture file loaded, reloading it whenever the file
// changes on disk.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onReload FixtureCallback
	onError  ErrorCallback
	logger   observability.Logger
	debounce time.Duration

	last atomic.Pointer[FixtureFile]

	mu      sync.Mutex
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// WatcherOption adjusts a Watcher at construction.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets how long the watcher lets file events settle
// before reloading. The default is 100ms.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger routes watcher logging somewhere other than the nop
// default.
func WithLogger(l observability.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithErrorCallback registers a sink for reload and watch failures.
func WithErrorCallback(cb ErrorCallback) WatcherOption {
	return func(w *Watcher) { w.onError = cb }
}

// NewWatcher prepares a watcher for the fixture file at path. Nothing
// is loaded or watched until Start.
func NewWatcher(path string, callback FixtureCallback, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fs:       fs,
		onReload: callback,
		logger:   observability.NopLogger(),
		debounce: 100 * time.Millisecond,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start loads the fixture file, hands the initial content to the
// callback, and begins watching for changes. A failed Start releases
// the file system watcher; the Watcher is not reusable after that.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	fixtures, err := LoadFixtures(w.path)
	if err == nil {
		// Editors replace files on save, which would drop a watch held
		// on the file itself, so watch the directory.
		err = w.fs.Add(filepath.Dir(w.path))
	}
	if err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		_ = w.fs.Close()
		return err
	}

	w.last.Store(fixtures)
	w.logger.Info("started watching fixture file", observability.String("path", w.path))
	if w.onReload != nil {
		w.onReload(fixtures)
	}

	go w.run(ctx)
	return nil
}

// Stop ends watching. Safe to call more than once, and before Start.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	w.mu.Unlock()

	close(w.quit)
	<-w.done
	return w.fs.Close()
}

// LastFixtures returns the most recently loaded fixture set, or nil
// before the first successful load.
func (w *Watcher) LastFixtures() *FixtureFile {
	return w.last.Load()
}

// ForceReload reloads the fixture file immediately, outside the watch
// loop. A failed reload leaves the last good fixture set in place.
func (w *Watcher) ForceReload() error {
	fixtures, err := LoadFixtures(w.path)
	if err != nil {
		return err
	}
	w.last.Store(fixtures)
	if w.onReload != nil {
		w.onReload(fixtures)
	}
	return nil
}

// run drains file system events until the context or Stop ends it.
// Rapid event bursts (editors tend to emit several per save) collapse
// into one reload via the settle timer.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	settle := time.NewTimer(w.debounce)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("fixture watcher stopped due to context cancellation")
			return

		case <-w.quit:
			w.logger.Info("fixture watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("fixture file changed",
				observability.String("path", event.Name),
				observability.String("op", event.Op.String()))
			if !settle.Stop() {
				select {
				case <-settle.C:
				default:
				}
			}
			settle.Reset(w.debounce)

		case <-settle.C:
			w.reload()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("fixture watcher error", observability.Error(err))
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) reload() {
	fixtures, err := LoadFixtures(w.path)
	if err != nil {
		w.logger.Error("failed to load fixtures", observability.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.last.Store(fixtures)
	w.logger.Info("fixtures reloaded",
		observability.String("path", w.path),
		observability.Int("endpoints", len(fixtures.Endpoints)))
	if w.onReload != nil {
		w.onReload(fixtures)
	}
}
