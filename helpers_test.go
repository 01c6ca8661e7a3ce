package stackedfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// mustNewMemoryReader creates a memory reader or fails the test
func mustNewMemoryReader(t testing.TB) *MemoryReader {
	t.Helper()
	m, err := NewMemoryReader()
	require.NoError(t, err)
	return m
}

// memoryWith creates a memory reader holding the given files
func memoryWith(t testing.TB, files map[string]string) *MemoryReader {
	t.Helper()
	m := mustNewMemoryReader(t)
	for name, content := range files {
		require.NoError(t, m.WriteFile(name, []byte(content)))
	}
	return m
}

// readContent reads a file entry through the concurrent path
func readContent(t testing.TB, entry Entry) string {
	t.Helper()
	f, ok := entry.(File)
	require.Truef(t, ok, "expected a file, got %T", entry)
	data, err := f.Read(context.Background())
	require.NoError(t, err)
	return string(data)
}

// readContentSync reads a file entry through the synchronous path
func readContentSync(t testing.TB, entry EntrySync) string {
	t.Helper()
	f, ok := entry.(FileSync)
	require.Truef(t, ok, "expected a file, got %T", entry)
	data, err := f.ReadSync()
	require.NoError(t, err)
	return string(data)
}

// childNames lists a directory entry through the concurrent path
func childNames(t testing.TB, entry Entry) []string {
	t.Helper()
	d, ok := entry.(Directory)
	require.Truef(t, ok, "expected a directory, got %T", entry)
	children, err := d.Entries(context.Background())
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	return names
}

// childNamesSync lists a directory entry through the synchronous path
func childNamesSync(t testing.TB, entry EntrySync) []string {
	t.Helper()
	d, ok := entry.(DirectorySync)
	require.Truef(t, ok, "expected a directory, got %T", entry)
	children, err := d.EntriesSync()
	require.NoError(t, err)
	names := make([]string, len(children))
	for i, child := range children {
		names[i] = child.Name()
	}
	return names
}

// describeTree renders an entry and everything below it
func describeTree(t testing.TB, entry Entry) string {
	t.Helper()
	var b strings.Builder
	var walk func(e Entry, indent string)
	walk = func(e Entry, indent string) {
		switch e := e.(type) {
		case nil:
			b.WriteString(indent + "<absent>\n")
		case File:
			fmt.Fprintf(&b, "%sfile %s %q\n", indent, e.Name(), readContent(t, e))
		case Directory:
			fmt.Fprintf(&b, "%sdir %s\n", indent, e.Name())
			children, err := e.Entries(context.Background())
			require.NoError(t, err)
			for _, child := range children {
				walk(child, indent+"  ")
			}
		}
	}
	walk(entry, "")
	return b.String()
}

// describeTreeSync renders an entry and everything below it
func describeTreeSync(t testing.TB, entry EntrySync) string {
	t.Helper()
	var b strings.Builder
	var walk func(e EntrySync, indent string)
	walk = func(e EntrySync, indent string) {
		switch e := e.(type) {
		case nil:
			b.WriteString(indent + "<absent>\n")
		case FileSync:
			fmt.Fprintf(&b, "%sfile %s %q\n", indent, e.Name(), readContentSync(t, e))
		case DirectorySync:
			fmt.Fprintf(&b, "%sdir %s\n", indent, e.Name())
			children, err := e.EntriesSync()
			require.NoError(t, err)
			for _, child := range children {
				walk(child, indent+"  ")
			}
		}
	}
	walk(entry, "")
	return b.String()
}

// countingReader wraps a reader and counts calls per flavor
type countingReader struct {
	Reader
	reads     atomic.Int32
	readSyncs atomic.Int32
}

func (c *countingReader) Read(ctx context.Context, path string) (Entry, error) {
	c.reads.Add(1)
	return c.Reader.Read(ctx, path)
}

func (c *countingReader) ReadSync(path string) (EntrySync, error) {
	c.readSyncs.Add(1)
	return c.Reader.ReadSync(path)
}

// failingReader fails every read with err
type failingReader struct {
	err       error
	listeners Listeners
}

func (f *failingReader) Read(ctx context.Context, path string) (Entry, error) {
	return nil, f.err
}

func (f *failingReader) ReadSync(path string) (EntrySync, error) {
	return nil, f.err
}

func (f *failingReader) Listeners() *Listeners {
	return &f.listeners
}

// oddEntry is neither a file nor a directory
type oddEntry struct{}

func (oddEntry) Name() string { return "odd" }

// oddReader returns an oddEntry for every path
type oddReader struct {
	listeners Listeners
}

func (o *oddReader) Read(ctx context.Context, path string) (Entry, error) {
	return oddEntry{}, nil
}

func (o *oddReader) ReadSync(path string) (EntrySync, error) {
	return oddEntry{}, nil
}

func (o *oddReader) Listeners() *Listeners {
	return &o.listeners
}

// notification is a change received by a recorder
type notification struct {
	path string
	info ChangeInfo
}

// recorder is a Listener that records notifications
type recorder struct {
	paths  []string
	events chan notification
}

func newRecorder(paths ...string) *recorder {
	return &recorder{paths: paths, events: make(chan notification, 64)}
}

func (r *recorder) ObservedPaths() []string {
	return r.paths
}

func (r *recorder) OnChange(path string, info ChangeInfo) {
	r.events <- notification{path: path, info: info}
}

// drain returns every notification received so far
func (r *recorder) drain() []notification {
	var got []notification
	for {
		select {
		case n := <-r.events:
			got = append(got, n)
		default:
			return got
		}
	}
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
