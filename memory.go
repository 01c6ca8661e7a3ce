package stackedfs

import (
	"os"
	"path"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

// MemoryReader is an in-memory overlay, typically stacked above the disk to
// provide test fixtures or generated files. Every mutation notifies its
// listeners with a virtual change.
type MemoryReader struct {
	*FSReader
	fs absfs.FileSystem
}

// NewMemoryReader creates an empty in-memory reader
func NewMemoryReader() (*MemoryReader, error) {
	mfs, err := memfs.NewFS()
	if err != nil {
		return nil, err
	}
	r := NewAbsFSReader(mfs)
	return &MemoryReader{FSReader: r, fs: mfs}, nil
}

// WriteFile creates or replaces a file, creating parent directories as needed
func (m *MemoryReader) WriteFile(name string, data []byte) error {
	name = cleanPath(name)

	if dir := path.Dir(name); dir != "/" {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := m.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	m.notify(name)
	return nil
}

// Mkdir creates a directory and any missing parents
func (m *MemoryReader) Mkdir(name string) error {
	name = cleanPath(name)
	if err := m.fs.MkdirAll(name, 0755); err != nil {
		return err
	}
	m.notify(name)
	return nil
}

// Remove deletes a file or a directory tree. Removing a missing path is not an error.
func (m *MemoryReader) Remove(name string) error {
	name = cleanPath(name)
	if _, err := m.fs.Stat(name); err != nil {
		if isAbsent(err) {
			return nil
		}
		return err
	}
	if err := m.fs.RemoveAll(name); err != nil {
		return err
	}
	m.notify(name)
	return nil
}

func (m *MemoryReader) notify(name string) {
	m.listeners.Notify(relPath(name), ChangeInfo{Virtual: true})
}
