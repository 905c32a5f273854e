package codec

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ossyrian/vdfs/internal/vdfs"
)

// ReadIndexTree reads h.EntryCount entries starting at h.RootOffset into tree.
//
// The count is global across all levels. Entries of one level follow each
// other until one carries the LAST flag; the reader then descends, in the
// order they were declared, into every subtree that level declared.
//
// It returns the number of entries fully processed. On a read failure that
// count is returned together with the error, so callers can tell a truncated
// index from a complete one by comparing it against h.EntryCount.
func (c *Codec) ReadIndexTree(h vdfs.Header, tree *vdfs.Tree) (int, error) {
	if err := c.file.SetPosition(int64(h.RootOffset)); err != nil {
		return 0, err
	}

	r := &indexReader{
		codec:     c,
		total:     int(h.EntryCount),
		nameWidth: h.NameWidth(),
	}
	err := r.readLevel(tree, nil)

	c.logger.Debug("read index",
		"entry_count", h.EntryCount,
		"entries_read", r.n,
	)

	return r.n, err
}

type indexReader struct {
	codec     *Codec
	total     int
	nameWidth int
	n         int
}

func (r *indexReader) readLevel(t *vdfs.Tree, path []string) error {
	var declared []string

	for r.n < r.total {
		e, err := r.codec.readEntry(r.nameWidth)
		if err != nil {
			return fmt.Errorf("failed to read entry %d: %w", r.n, err)
		}
		r.n++

		r.codec.logger.Debug("read index entry",
			"index", r.n-1,
			"name", e.Name,
			"dir", path,
			"offset", e.Offset,
			"size", e.Size,
			"type", fmt.Sprintf("0x%08X", uint32(e.Type)),
		)

		last := e.Type.IsLast()
		if e.Type.IsDir() {
			if _, dup := t.Dirs[e.Name]; dup {
				r.codec.logger.Warn("duplicate directory in index", "name", e.Name, "dir", path)
			} else {
				declared = append(declared, e.Name)
			}
			t.Subdir(e.Name)
		} else {
			if _, dup := t.Files[e.Name]; dup {
				r.codec.logger.Warn("duplicate file in index", "name", e.Name, "dir", path)
			}
			e.Type = 0
			t.Files[e.Name] = e
		}

		if last {
			for _, name := range declared {
				if err := r.readLevel(t.Dirs[name], append(slices.Clip(path), name)); err != nil {
					return err
				}
			}
			return nil
		}
	}

	return nil
}

// WriteIndexTree serializes tree starting at h.RootOffset.
//
// Every level is written as its directories followed by its files, each
// group sorted by name, with LAST set on the final entry. The subtrees of
// the level follow in the same order, depth-first. A directory entry's
// Offset holds the byte offset of its first child and its Size the ordinal
// of that child.
//
// It returns the number of entries written.
func (c *Codec) WriteIndexTree(h vdfs.Header, tree *vdfs.Tree) (int, error) {
	if h.NameWidth() <= 0 {
		return 0, fmt.Errorf("%w: invalid entry size %d", vdfs.ErrCorruptHeader, h.EntrySize)
	}
	if err := c.file.SetPosition(int64(h.RootOffset)); err != nil {
		return 0, err
	}

	w := &indexWriter{
		codec:      c,
		rootOffset: h.RootOffset,
		entrySize:  uint32(h.EntrySize),
		nameWidth:  h.NameWidth(),
	}
	err := w.writeLevel(tree, 0, nil)

	c.logger.Debug("wrote index", "entries_written", w.n)

	return w.n, err
}

type indexWriter struct {
	codec      *Codec
	rootOffset uint32
	entrySize  uint32
	nameWidth  int
	n          int
}

// writeLevel writes the level t whose first entry has ordinal first.
func (w *indexWriter) writeLevel(t *vdfs.Tree, first uint32, path []string) error {
	dirs, files := t.DirNames(), t.FileNames()
	last := t.Len() - 1
	i := 0

	next := first + uint32(t.Len())
	starts := make([]uint32, len(dirs))

	for j, name := range dirs {
		sub := t.Dirs[name]
		if sub.Len() == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyDirectory, strings.Join(append(slices.Clip(path), name), "/"))
		}

		starts[j] = next
		e := &vdfs.Entry{
			Name:      name,
			Offset:    w.rootOffset + next*w.entrySize,
			Size:      next,
			Type:      vdfs.TypeDirectory,
			Attribute: vdfs.AttributeNormal,
		}
		if i == last {
			e.Type |= vdfs.TypeLast
		}
		if err := w.codec.writeEntry(e, w.nameWidth); err != nil {
			return err
		}
		w.n++
		i++
		next += sub.Count()
	}

	for _, name := range files {
		e := *t.Files[name]
		e.Name = name
		e.Type = 0
		if i == last {
			e.Type |= vdfs.TypeLast
		}
		if err := w.codec.writeEntry(&e, w.nameWidth); err != nil {
			return err
		}
		w.n++
		i++
	}

	for j, name := range dirs {
		if err := w.writeLevel(t.Dirs[name], starts[j], append(slices.Clip(path), name)); err != nil {
			return err
		}
	}

	return nil
}
