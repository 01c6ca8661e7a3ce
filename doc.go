/*
Package stackedfs composes independent file readers into one logical, read-only
view of a project, with priority-based conflict resolution, directory merging,
and change notification relay.

# Overview

A Reader resolves a path to an Entry, which is either a File or a Directory,
and exposes a Listeners registry for change notifications. Readers come in
several kinds: the real project directory on disk, in-memory overlays for test
fixtures, generated wrapper files. A StackedReader holds an ordered list of
them and is itself a Reader, so stacks can be nested.

Every read has two flavors:

  - Read(ctx, path) queries every backing reader concurrently, waits for all
    of them, then merges.
  - ReadSync(path) queries backing readers one at a time in priority order and
    stops as soon as a file is found.

Both return (nil, nil) when nothing exists at the path.

# Basic Usage

	package main

	import (
	    "fmt"

	    "github.com/absfs/stackedfs"
	)

	func main() {
	    disk, _ := stackedfs.NewDiskReader("./project")

	    overlay, _ := stackedfs.NewMemoryReader()
	    overlay.WriteFile("src/__wrapper__.tsx", []byte("export default ..."))

	    r := stackedfs.New(
	        stackedfs.WithReader(overlay), // highest priority
	        stackedfs.WithReader(disk),
	    )
	    defer r.Close()

	    entry, err := r.ReadSync("src/App.tsx")
	    if err != nil || entry == nil {
	        return
	    }
	    if f, ok := entry.(stackedfs.FileSync); ok {
	        data, _ := f.ReadSync()
	        fmt.Println(string(data))
	    }
	}

# Merge Rules

Results are walked in priority order, first reader first:

  - A file is returned immediately. A file found in a lower priority reader
    therefore wins over directories found at the same path in higher priority
    readers.
  - Directories are collected. When no file is found they are merged: the
    merged directory takes the name of the first one, and its children are the
    children of every collected directory in priority order, keeping only the
    first child seen for each name.
  - When no reader has anything at the path the result is absent.

Children of a merged directory are not merged recursively; reading a child's
path through the stacked reader gives the merged view of that child.

# Change Notifications

Each StackedReader registers a single relay listener with every backing
reader on construction. Notifications from any backing reader are forwarded
unmodified to the stacked reader's listeners; two readers reporting the same
path produce two notifications. The relay reports the stacked reader's
observed paths to each backing reader, so a disk watcher attached to a
backing reader learns what consumers of the stack care about. Close removes
the relay from every backing reader.

# Watching the Disk

A Watcher uses fsnotify to watch the directories containing the paths a
registry observes, and reports changes through that registry:

	w, err := stackedfs.NewWatcher(disk.Root(), disk.Listeners())
	...
	r.Listeners().Add(myListener) // declares paths through ObservedPaths
	w.Sync()                      // start watching them

# Thread Safety

Listener registries are safe for concurrent use and never hold their lock
while calling a listener. A StackedReader's reader list is fixed at
construction; merged entries are built fresh on every call and never cached.
*/
package stackedfs
