package stackedfs

import (
	"io"
	"os"

	"github.com/absfs/absfs"
)

// absFSStorage adapts an absfs.FileSystem to the storage an FSReader reads from
type absFSStorage struct {
	fs absfs.FileSystem
}

// Ensure absFSStorage implements storage at compile time
var _ storage = (*absFSStorage)(nil)

// NewAbsFSReader returns a Reader over an absfs.FileSystem.
//
// Example:
//
//	mfs, _ := memfs.NewFS()
//	r := stackedfs.NewAbsFSReader(mfs)
//	entry, err := r.ReadSync("src/App.tsx")
func NewAbsFSReader(fs absfs.FileSystem) *FSReader {
	return newFSReader(&absFSStorage{fs: fs}, "", "absfs")
}

// Stat implements storage
func (a *absFSStorage) Stat(name string) (os.FileInfo, error) {
	return a.fs.Stat(name)
}

// ReadDir implements storage
func (a *absFSStorage) ReadDir(name string) ([]os.FileInfo, error) {
	dir, err := a.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	info, err := dir.Stat()
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}

	return dir.Readdir(-1)
}

// ReadFile implements storage
func (a *absFSStorage) ReadFile(name string) ([]byte, error) {
	// Use ReadFile if the file system provides it
	if reader, ok := a.fs.(interface{ ReadFile(string) ([]byte, error) }); ok {
		return reader.ReadFile(name)
	}

	file, err := a.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
