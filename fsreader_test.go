package stackedfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// mustNewMemFS creates a new memfs or fails the test
func mustNewMemFS(t testing.TB) absfs.FileSystem {
	t.Helper()
	mfs, err := memfs.NewFS()
	require.NoError(t, err)
	return mfs
}

// writeFile writes data to a file in an absfs file system, creating parents
func writeFile(t testing.TB, fs absfs.FileSystem, name string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.ToSlash(filepath.Dir(name)), 0755))
	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestAbsFSReader(t *testing.T) {
	mfs := mustNewMemFS(t)
	writeFile(t, mfs, "/src/App.tsx", []byte("app"))
	writeFile(t, mfs, "/src/b.ts", []byte("b"))
	writeFile(t, mfs, "/src/A.ts", []byte("a"))

	r := NewAbsFSReader(mfs)
	require.Empty(t, r.Root())

	entry, err := r.Read(context.Background(), "src/App.tsx")
	require.NoError(t, err)
	require.Equal(t, "App.tsx", entry.Name())
	require.Equal(t, "app", readContent(t, entry))

	dir, err := r.ReadSync("/src/")
	require.NoError(t, err)
	require.Equal(t, "src", dir.Name())
	require.Equal(t, []string{"A.ts", "App.tsx", "b.ts"}, childNamesSync(t, dir))

	missing, err := r.ReadSync("src/missing.ts")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestAferoReader(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/lib/util.ts", []byte("util"), 0644))
	require.NoError(t, fs.MkdirAll("/lib/nested", 0755))

	r := NewAferoReader(fs)

	entry, err := r.Read(context.Background(), "lib")
	require.NoError(t, err)
	require.Equal(t, []string{"nested", "util.ts"}, childNames(t, entry))

	children, err := entry.(Directory).Entries(context.Background())
	require.NoError(t, err)
	_, isDir := children[0].(Directory)
	require.True(t, isDir)
	require.Equal(t, "util", readContent(t, children[1]))

	missing, err := r.Read(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDiskReader(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "App.tsx"), []byte("on disk"), 0644))

	r, err := NewDiskReader(root)
	require.NoError(t, err)
	require.Equal(t, root, r.Root())

	entry, err := r.ReadSync("src/App.tsx")
	require.NoError(t, err)
	require.Equal(t, "on disk", readContentSync(t, entry))

	// A path through a file is absent, not an error
	through, err := r.ReadSync("src/App.tsx/child")
	require.NoError(t, err)
	require.Nil(t, through)

	// Paths cannot escape the root
	outside, err := r.ReadSync("../../etc/passwd")
	require.NoError(t, err)
	require.Nil(t, outside)
}

func TestFSReaderDirectoryRemovedAfterLookup(t *testing.T) {
	m := memoryWith(t, map[string]string{"d/x": "1"})

	entry, err := m.ReadSync("d")
	require.NoError(t, err)
	require.NoError(t, m.Remove("d"))

	require.Empty(t, childNamesSync(t, entry))
}

func TestFSReaderCancelledContext(t *testing.T) {
	m := memoryWith(t, map[string]string{"x": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Read(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
}

// brokenStorage fails every operation
type brokenStorage struct {
	err error
}

func (b *brokenStorage) Stat(string) (os.FileInfo, error)      { return nil, b.err }
func (b *brokenStorage) ReadDir(string) ([]os.FileInfo, error) { return nil, b.err }
func (b *brokenStorage) ReadFile(string) ([]byte, error)       { return nil, b.err }

func TestFSReaderPropagatesFailures(t *testing.T) {
	errDenied := errors.New("permission denied")
	r := newFSReader(&brokenStorage{err: errDenied}, "", "test")

	_, err := r.ReadSync("x")
	require.Equal(t, errDenied, err)

	_, err = r.Read(context.Background(), "x")
	require.Equal(t, errDenied, err)

	absent := newFSReader(&brokenStorage{err: os.ErrNotExist}, "", "test")
	entry, err := absent.ReadSync("x")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in, clean, rel string
	}{
		{"", "/", ""},
		{"/", "/", ""},
		{".", "/", ""},
		{"src/App.tsx", "/src/App.tsx", "src/App.tsx"},
		{"/src//App.tsx", "/src/App.tsx", "src/App.tsx"},
		{"src/../lib/", "/lib", "lib"},
		{"../../x", "/x", "x"},
		{`src\App.tsx`, "/src/App.tsx", "src/App.tsx"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.clean, cleanPath(tt.in), tt.in)
		require.Equal(t, tt.rel, relPath(tt.in), tt.in)
	}
}
