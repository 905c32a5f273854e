package vdfs

import (
	"maps"
	"slices"
)

// Tree is one directory level: named child subtrees and named file entries.
//
// A name is either a directory or a file within one level, never both.
type Tree struct {
	Dirs  map[string]*Tree
	Files map[string]*Entry
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{
		Dirs:  make(map[string]*Tree),
		Files: make(map[string]*Entry),
	}
}

// Subdir returns the child subtree called name, creating it if needed.
func (t *Tree) Subdir(name string) *Tree {
	sub, ok := t.Dirs[name]
	if !ok {
		sub = NewTree()
		t.Dirs[name] = sub
	}
	return sub
}

// Descend follows segments through existing subtrees.
func (t *Tree) Descend(segments []string) (*Tree, bool) {
	cur := t
	for _, seg := range segments {
		sub, ok := cur.Dirs[seg]
		if !ok {
			return nil, false
		}
		cur = sub
	}
	return cur, true
}

// Len returns the number of entries directly in this level.
func (t *Tree) Len() int {
	return len(t.Dirs) + len(t.Files)
}

// Count returns the number of directories and files below t, t excluded.
func (t *Tree) Count() uint32 {
	n := uint32(t.Len())
	for _, sub := range t.Dirs {
		n += sub.Count()
	}
	return n
}

// FileCount returns the number of files below t.
func (t *Tree) FileCount() uint32 {
	n := uint32(len(t.Files))
	for _, sub := range t.Dirs {
		n += sub.FileCount()
	}
	return n
}

// DirNames returns the child directory names in sorted order.
func (t *Tree) DirNames() []string {
	return slices.Sorted(maps.Keys(t.Dirs))
}

// FileNames returns the file names of this level in sorted order.
func (t *Tree) FileNames() []string {
	return slices.Sorted(maps.Keys(t.Files))
}

// Prune removes every subtree that holds no files, at any depth, and
// returns how many directories were removed.
func (t *Tree) Prune() int {
	removed := 0
	for name, sub := range t.Dirs {
		removed += sub.Prune()
		if sub.Len() == 0 {
			delete(t.Dirs, name)
			removed++
		}
	}
	return removed
}

// Walk calls fn for every file below t, depth-first, directories before
// files, each group in sorted order. path holds the directory segments
// leading to the file, the file name included.
func (t *Tree) Walk(fn func(path []string, e *Entry) error) error {
	return t.walk(nil, fn)
}

func (t *Tree) walk(prefix []string, fn func([]string, *Entry) error) error {
	for _, name := range t.DirNames() {
		if err := t.Dirs[name].walk(append(slices.Clip(prefix), name), fn); err != nil {
			return err
		}
	}
	for _, name := range t.FileNames() {
		if err := fn(append(slices.Clip(prefix), name), t.Files[name]); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns every file entry below t in Walk order.
func (t *Tree) Entries() []*Entry {
	var entries []*Entry
	_ = t.Walk(func(_ []string, e *Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries
}
