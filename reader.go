package stackedfs

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrUnknownEntry is returned when a reader produces an entry that is neither a file nor a directory
	ErrUnknownEntry = errors.New("entry is neither a file nor a directory")
	// ErrNotDirectory is returned when a directory operation is attempted on a file
	ErrNotDirectory = errors.New("not a directory")
	// ErrClosed is returned by operations on a closed watcher
	ErrClosed = errors.New("closed")
)

// Reader resolves paths to entries and exposes a registry for change listeners.
//
// Read and ReadSync return (nil, nil) when nothing exists at the path. Any
// other failure is returned as an error.
type Reader interface {
	Read(ctx context.Context, path string) (Entry, error)
	ReadSync(path string) (EntrySync, error)
	Listeners() *Listeners
}

// ChangeInfo describes a change notification.
type ChangeInfo struct {
	// Virtual is set when the change did not originate from the real disk
	Virtual bool
}

// cleanPath normalizes a path to the rooted form used by storage backends
func cleanPath(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return cleaned
}

// relPath normalizes a path to the root-relative form used in notifications
func relPath(p string) string {
	return strings.TrimPrefix(cleanPath(p), "/")
}
