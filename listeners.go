package stackedfs

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Listener is notified of changes and declares which paths it wants watched.
// Listeners are registered and removed by identity, so implementations should
// be pointer types.
type Listener interface {
	ObservedPaths() []string
	OnChange(path string, info ChangeInfo)
}

// FuncListener adapts two functions to the Listener interface
type FuncListener struct {
	observed func() []string
	onChange func(path string, info ChangeInfo)
}

// NewListener returns a Listener backed by the given functions. Either may be nil.
func NewListener(observed func() []string, onChange func(path string, info ChangeInfo)) *FuncListener {
	return &FuncListener{observed: observed, onChange: onChange}
}

// ObservedPaths implements Listener
func (f *FuncListener) ObservedPaths() []string {
	if f.observed == nil {
		return nil
	}
	return f.observed()
}

// OnChange implements Listener
func (f *FuncListener) OnChange(path string, info ChangeInfo) {
	if f.onChange != nil {
		f.onChange(path, info)
	}
}

// Listeners tracks registered listeners and fans out change notifications.
// The zero value is ready to use and safe for concurrent use.
//
// No lock is held while calling into a listener, so a listener may add,
// remove or notify from inside OnChange or ObservedPaths.
type Listeners struct {
	mu   sync.RWMutex
	list []Listener
	log  *zerolog.Logger
}

// NewListeners creates an empty registry that logs through the given logger
func NewListeners(logger zerolog.Logger) *Listeners {
	return &Listeners{log: &logger}
}

// Add registers a listener. It returns false if the listener was already
// registered, or if its dynamic type cannot be compared for identity (a
// non-pointer struct holding a func, map or slice). Use pointer listeners.
func (l *Listeners) Add(listener Listener) bool {
	if !isComparable(listener) {
		logger := l.logger()
		logger.Error().
			Str("listener", fmt.Sprintf("%T", listener)).
			Msg("listeners: listener type is not comparable, use a pointer")
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, existing := range l.list {
		if existing == listener {
			return false
		}
	}
	l.list = append(l.list, listener)
	return true
}

// Remove unregisters a listener. It returns false if the listener was not registered.
func (l *Listeners) Remove(listener Listener) bool {
	if !isComparable(listener) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, existing := range l.list {
		if existing == listener {
			// Copy so that snapshots handed out earlier are not disturbed
			next := make([]Listener, 0, len(l.list)-1)
			next = append(next, l.list[:i]...)
			l.list = append(next, l.list[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.list)
}

// ObservedPaths returns the sorted, deduplicated union of the paths every
// registered listener observes. It is recomputed on every call.
func (l *Listeners) ObservedPaths() []string {
	return unionPaths(l.snapshot(), func(listener Listener) []string {
		return listener.ObservedPaths()
	})
}

// Notify calls OnChange on every registered listener in registration order.
// A panicking listener is logged and does not stop delivery to the others.
func (l *Listeners) Notify(path string, info ChangeInfo) {
	for _, listener := range l.snapshot() {
		l.dispatch(listener, path, info)
	}
}

func (l *Listeners) dispatch(listener Listener, path string, info ChangeInfo) {
	defer func() {
		if r := recover(); r != nil {
			logger := l.logger()
			logger.Error().
				Interface("panic", r).
				Str("path", path).
				Bool("virtual", info.Virtual).
				Msg("listeners: change handler panicked")
		}
	}()
	listener.OnChange(path, info)
}

func (l *Listeners) snapshot() []Listener {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.list
}

func (l *Listeners) logger() zerolog.Logger {
	if l.log != nil {
		return *l.log
	}
	return log.Logger
}

// isComparable reports whether listener can be compared with == without panicking
func isComparable(listener Listener) bool {
	if listener == nil {
		return false
	}
	return reflect.TypeOf(listener).Comparable()
}

// unionPaths collects paths from every item, deduplicated and sorted
func unionPaths[T any](items []T, paths func(T) []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, item := range items {
		for _, p := range paths(item) {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			result = append(result, p)
		}
	}
	sort.Strings(result)
	return result
}
