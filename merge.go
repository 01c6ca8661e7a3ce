package stackedfs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// merge walks per-reader results in priority order. A file anywhere wins
// outright, otherwise every directory found is merged into one view.
func merge(found []Entry) (Entry, error) {
	var dirs []Directory
	for _, entry := range found {
		if entry == nil {
			continue
		}
		switch e := entry.(type) {
		case File:
			return e, nil
		case Directory:
			dirs = append(dirs, e)
		default:
			return nil, unknownEntry(entry)
		}
	}
	if len(dirs) == 0 {
		return nil, nil
	}
	return &mergedDir{dirs: dirs}, nil
}

// mergeDirsSync builds the synchronous merged view, nil when dirs is empty
func mergeDirsSync(dirs []DirectorySync) EntrySync {
	if len(dirs) == 0 {
		return nil
	}
	return &mergedDirSync{dirs: dirs}
}

func unknownEntry(entry EntrySync) error {
	return fmt.Errorf("%w: %T", ErrUnknownEntry, entry)
}

// mergedDir is a Directory combining directories from several readers
type mergedDir struct {
	dirs []Directory // highest priority first
}

// Name returns the name of the highest priority directory
func (d *mergedDir) Name() string {
	return d.dirs[0].Name()
}

// Entries lists every merged directory concurrently, then keeps the first
// child seen for each name in priority order
func (d *mergedDir) Entries(ctx context.Context) ([]Entry, error) {
	listings := make([][]Entry, len(d.dirs))

	var g errgroup.Group
	for i, dir := range d.dirs {
		i, dir := i, dir
		g.Go(func() error {
			entries, err := dir.Entries(ctx)
			if err != nil {
				return err
			}
			listings[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []Entry
	for _, listing := range listings {
		for _, entry := range listing {
			name := entry.Name()
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// mergedDirSync is the synchronous twin of mergedDir
type mergedDirSync struct {
	dirs []DirectorySync
}

// Name returns the name of the highest priority directory
func (d *mergedDirSync) Name() string {
	return d.dirs[0].Name()
}

// EntriesSync lists every merged directory in priority order, keeping the
// first child seen for each name
func (d *mergedDirSync) EntriesSync() ([]EntrySync, error) {
	seen := make(map[string]bool)
	var entries []EntrySync
	for _, dir := range d.dirs {
		listing, err := dir.EntriesSync()
		if err != nil {
			return nil, err
		}
		for _, entry := range listing {
			name := entry.Name()
			if seen[name] {
				continue
			}
			seen[name] = true
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
