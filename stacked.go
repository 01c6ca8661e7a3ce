package stackedfs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// StackedReader composes an ordered list of readers into a single Reader.
// Readers earlier in the list take precedence.
type StackedReader struct {
	readers   []Reader // ordered from highest to lowest priority
	listeners *Listeners
	relay     *relayListener
	log       zerolog.Logger
	closeOnce sync.Once
}

// Option is a functional option for configuring a StackedReader
type Option func(*StackedReader)

// WithReader adds a reader below the readers added so far
func WithReader(r Reader) Option {
	return func(s *StackedReader) {
		s.readers = append(s.readers, r)
	}
}

// WithReaders adds readers in order below the readers added so far
func WithReaders(readers ...Reader) Option {
	return func(s *StackedReader) {
		s.readers = append(s.readers, readers...)
	}
}

// WithLogger sets the logger used by the reader and its listener registry
func WithLogger(logger zerolog.Logger) Option {
	return func(s *StackedReader) {
		s.log = logger
	}
}

// New creates a StackedReader and subscribes it to change notifications of
// every backing reader. Call Close to unsubscribe.
func New(opts ...Option) *StackedReader {
	s := &StackedReader{
		log: log.Logger.With().Str("component", "stacked-reader").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.listeners = NewListeners(s.log)
	s.relay = &relayListener{target: s.listeners}

	for _, r := range s.readers {
		r.Listeners().Add(s.relay)
	}

	s.log.Debug().Int("readers", len(s.readers)).Msg("stacked: created")
	return s
}

// Listeners returns the registry notified of changes in any backing reader
func (s *StackedReader) Listeners() *Listeners {
	return s.listeners
}

// Readers returns the backing readers in priority order
func (s *StackedReader) Readers() []Reader {
	readers := make([]Reader, len(s.readers))
	copy(readers, s.readers)
	return readers
}

// ObservedPaths returns the union of the paths observed on every backing
// reader, regardless of which reader serves a given path. A backing reader
// that reports its own ObservedPaths, such as a nested StackedReader, is
// asked directly so the union covers the readers beneath it.
func (s *StackedReader) ObservedPaths() []string {
	return unionPaths(s.readers, observedPaths)
}

// observedPaths returns the paths observed on r, through r's own
// ObservedPaths when it has one
func observedPaths(r Reader) []string {
	if o, ok := r.(interface{ ObservedPaths() []string }); ok {
		return o.ObservedPaths()
	}
	return r.Listeners().ObservedPaths()
}

// Read queries every backing reader concurrently and merges the results.
// All readers are queried even when a higher priority one would suffice.
// The first failure is returned as is once every query has finished.
func (s *StackedReader) Read(ctx context.Context, path string) (Entry, error) {
	found := make([]Entry, len(s.readers))

	var g errgroup.Group
	for i, r := range s.readers {
		i, r := i, r
		g.Go(func() error {
			entry, err := r.Read(ctx, path)
			if err != nil {
				return err
			}
			found[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(found)
}

// ReadSync queries backing readers one at a time in priority order. It stops
// at the first file found or the first failure.
func (s *StackedReader) ReadSync(path string) (EntrySync, error) {
	var dirs []DirectorySync
	for _, r := range s.readers {
		entry, err := r.ReadSync(path)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		switch e := entry.(type) {
		case FileSync:
			return e, nil
		case DirectorySync:
			dirs = append(dirs, e)
		default:
			return nil, unknownEntry(entry)
		}
	}
	return mergeDirsSync(dirs), nil
}

// Close unsubscribes from every backing reader. Reads keep working after
// Close but changes are no longer relayed. Close is idempotent.
func (s *StackedReader) Close() error {
	s.closeOnce.Do(func() {
		for _, r := range s.readers {
			r.Listeners().Remove(s.relay)
		}
		s.log.Debug().Int("readers", len(s.readers)).Msg("stacked: closed")
	})
	return nil
}

// relayListener is registered with every backing reader and forwards their
// notifications to the stacked reader's own listeners
type relayListener struct {
	target *Listeners
}

// ObservedPaths implements Listener
func (r *relayListener) ObservedPaths() []string {
	return r.target.ObservedPaths()
}

// OnChange implements Listener
func (r *relayListener) OnChange(path string, info ChangeInfo) {
	r.target.Notify(path, info)
}
