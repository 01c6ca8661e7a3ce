package stackedfs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// aferoStorage adapts an afero.Fs to the storage an FSReader reads from
type aferoStorage struct {
	fs afero.Fs
}

var _ storage = (*aferoStorage)(nil)

// NewAferoReader returns a Reader over an afero.Fs
func NewAferoReader(fs afero.Fs) *FSReader {
	return newFSReader(&aferoStorage{fs: fs}, "", "afero")
}

// NewDiskReader returns a Reader over the directory root on the local disk.
// Paths read through it are resolved relative to root.
func NewDiskReader(root string) (*FSReader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fs := afero.NewBasePathFs(afero.NewOsFs(), abs)
	return newFSReader(&aferoStorage{fs: fs}, abs, "disk"), nil
}

// Stat implements storage
func (a *aferoStorage) Stat(name string) (os.FileInfo, error) {
	return a.fs.Stat(name)
}

// ReadDir implements storage
func (a *aferoStorage) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(a.fs, name)
}

// ReadFile implements storage
func (a *aferoStorage) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(a.fs, name)
}
