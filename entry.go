package stackedfs

import "context"

// Entry is what a path resolves to when read through the concurrent path.
// Concrete entries are either a File or a Directory; callers tell them apart
// with a type switch.
type Entry interface {
	Name() string
}

// File is an Entry for a regular file. Content is owned by the reader that
// produced the entry.
type File interface {
	Entry
	Read(ctx context.Context) ([]byte, error)
}

// Directory is an Entry whose children are listed lazily. Every call to
// Entries lists again, nothing is cached.
type Directory interface {
	Entry
	Entries(ctx context.Context) ([]Entry, error)
}

// EntrySync is the synchronous twin of Entry.
type EntrySync interface {
	Name() string
}

// FileSync is the synchronous twin of File.
type FileSync interface {
	EntrySync
	ReadSync() ([]byte, error)
}

// DirectorySync is the synchronous twin of Directory.
type DirectorySync interface {
	EntrySync
	EntriesSync() ([]EntrySync, error)
}
