package stackedfs

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultWatchDebounce = 100 * time.Millisecond

// Watcher turns disk changes under a root directory into notifications on a
// listener registry. It only watches what the registry's listeners observe;
// call Sync after their interest changes, or enable periodic resync.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	target   *Listeners
	debounce time.Duration
	resync   time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	watched map[string]struct{} // absolute directories
	pending map[string]*pendingChange
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce coalesces bursts of events for the same path. Zero disables debouncing.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithResyncInterval makes the watcher call Sync periodically
func WithResyncInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.resync = d
	}
}

// WithWatcherLogger sets the watcher's logger
func WithWatcherLogger(logger zerolog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.log = logger
	}
}

// NewWatcher starts watching root on behalf of target and performs an initial Sync
func NewWatcher(root string, target *Listeners, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		root:     abs,
		target:   target,
		debounce: defaultWatchDebounce,
		log:      log.Logger.With().Str("component", "watcher").Logger(),
		watched:  make(map[string]struct{}),
		pending:  make(map[string]*pendingChange),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.Sync(); err != nil {
		w.log.Warn().Err(err).Str("root", abs).Msg("watcher: initial sync incomplete")
	}

	w.wg.Add(1)
	go w.run()
	if w.resync > 0 {
		w.wg.Add(1)
		go w.resyncLoop()
	}
	return w, nil
}

// Root returns the absolute directory being watched
func (w *Watcher) Root() string {
	return w.root
}

// Watched returns the absolute directories currently watched
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.watched))
	for dir := range w.watched {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Sync reconciles the directories watched with the paths currently observed.
// Each observed path is covered by watching the path itself when it is a
// directory, or its parent otherwise. Observed paths that do not exist yet
// are covered once their directory appears and Sync runs again.
func (w *Watcher) Sync() error {
	want := make(map[string]struct{})
	for _, p := range w.target.ObservedPaths() {
		if dir, ok := w.watchDirFor(p); ok {
			want[dir] = struct{}{}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	var errs []error
	for dir := range w.watched {
		if _, ok := want[dir]; ok {
			continue
		}
		if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			errs = append(errs, err)
		}
		delete(w.watched, dir)
	}
	for dir := range want {
		if _, ok := w.watched[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		w.watched[dir] = struct{}{}
	}

	w.log.Debug().Int("watched", len(w.watched)).Msg("watcher: synced")
	return errors.Join(errs...)
}

// watchDirFor returns the absolute directory to watch for an observed path
func (w *Watcher) watchDirFor(observed string) (string, bool) {
	abs := filepath.Join(w.root, filepath.FromSlash(relPath(observed)))
	info, err := os.Stat(abs)
	if err == nil && info.IsDir() {
		return abs, true
	}
	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

// Close stops watching and waits for pending work to finish
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for p, change := range w.pending {
		change.timer.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Str("root", w.root).Msg("watcher: backend error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) resyncLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.resync)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.Sync(); err != nil && !errors.Is(err, ErrClosed) {
				w.log.Warn().Err(err).Msg("watcher: resync incomplete")
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, ok := w.relative(event.Name)
	if !ok || !w.observes(rel) {
		return
	}

	w.log.Trace().Str("path", rel).Stringer("op", event.Op).Msg("watcher: change")

	if w.debounce <= 0 {
		w.deliver(rel)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	// A timer that already fired is left to its flush, which finds the
	// newer entry in place and stands down
	if change, ok := w.pending[rel]; ok && change.timer.Stop() {
		change.timer.Reset(w.debounce)
		return
	}
	change := &pendingChange{}
	change.timer = time.AfterFunc(w.debounce, func() {
		w.flush(rel, change)
	})
	w.pending[rel] = change
}

// pendingChange is a debounced notification waiting for its timer
type pendingChange struct {
	timer *time.Timer
}

// flush delivers rel if change is still the pending entry for it
func (w *Watcher) flush(rel string, change *pendingChange) {
	w.mu.Lock()
	if w.closed || w.pending[rel] != change {
		w.mu.Unlock()
		return
	}
	delete(w.pending, rel)
	w.mu.Unlock()

	w.deliver(rel)
}

func (w *Watcher) deliver(rel string) {
	w.target.Notify(rel, ChangeInfo{Virtual: false})
}

// relative maps an absolute event path to the root-relative form
func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return relPath(rel), true
}

// observes reports whether rel or its directory is observed
func (w *Watcher) observes(rel string) bool {
	dir := relPath(path.Dir(rel))
	for _, p := range w.target.ObservedPaths() {
		p = relPath(p)
		if p == rel || p == dir {
			return true
		}
	}
	return false
}
