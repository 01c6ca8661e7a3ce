package stackedfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
)

// storage is the subset of file system access an FSReader needs
type storage interface {
	Stat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

// FSReader is a Reader over a single file tree
type FSReader struct {
	storage   storage
	root      string
	listeners *Listeners
}

func newFSReader(s storage, root, kind string) *FSReader {
	logger := log.Logger.With().Str("component", "fs-reader").Str("kind", kind).Logger()
	return &FSReader{
		storage:   s,
		root:      root,
		listeners: NewListeners(logger),
	}
}

// Root returns the directory on disk the reader is rooted at, or "" when the
// reader is not backed by the local disk
func (r *FSReader) Root() string {
	return r.root
}

// Listeners returns the reader's listener registry
func (r *FSReader) Listeners() *Listeners {
	return r.listeners
}

// Read resolves path to a file or directory entry
func (r *FSReader) Read(ctx context.Context, path string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := r.lookup(path)
	if entry == nil || err != nil {
		return nil, err
	}
	return entry, nil
}

// ReadSync resolves path to a file or directory entry
func (r *FSReader) ReadSync(path string) (EntrySync, error) {
	entry, err := r.lookup(path)
	if entry == nil || err != nil {
		return nil, err
	}
	return entry, nil
}

// lookup returns an entry implementing both the async and sync flavors,
// or nil when nothing exists at name
func (r *FSReader) lookup(name string) (fsEntry, error) {
	name = cleanPath(name)
	info, err := r.storage.Stat(name)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, err
	}
	return r.entryFor(name, info), nil
}

func (r *FSReader) entryFor(name string, info os.FileInfo) fsEntry {
	if info.IsDir() {
		return &fsDir{reader: r, path: name}
	}
	return &fsFile{reader: r, path: name}
}

// isAbsent reports whether err only means nothing exists at the path
func isAbsent(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

type fsEntry interface {
	Name() string
}

// fsFile is a file entry read lazily from storage
type fsFile struct {
	reader *FSReader
	path   string
}

// Name returns the last path segment
func (f *fsFile) Name() string {
	return path.Base(f.path)
}

// Read implements File
func (f *fsFile) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.ReadSync()
}

// ReadSync implements FileSync
func (f *fsFile) ReadSync() ([]byte, error) {
	return f.reader.storage.ReadFile(f.path)
}

// fsDir is a directory entry listed lazily from storage
type fsDir struct {
	reader *FSReader
	path   string
}

// Name returns the last path segment
func (d *fsDir) Name() string {
	return path.Base(d.path)
}

// Entries implements Directory
func (d *fsDir) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	children, err := d.children()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(children))
	for i, child := range children {
		entries[i] = child
	}
	return entries, nil
}

// EntriesSync implements DirectorySync
func (d *fsDir) EntriesSync() ([]EntrySync, error) {
	children, err := d.children()
	if err != nil {
		return nil, err
	}
	entries := make([]EntrySync, len(children))
	for i, child := range children {
		entries[i] = child
	}
	return entries, nil
}

func (d *fsDir) children() ([]fsEntry, error) {
	infos, err := d.reader.storage.ReadDir(d.path)
	if err != nil {
		if isAbsent(err) {
			// Removed since it was resolved
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].Name()) < strings.ToLower(infos[j].Name())
	})

	children := make([]fsEntry, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		children = append(children, d.reader.entryFor(path.Join(d.path, info.Name()), info))
	}
	return children, nil
}
