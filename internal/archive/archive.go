// Package archive implements VDFS archives: many files inside one container
// file, indexed by a directory tree stored right after the header.
//
// An Archive keeps the whole tree in memory. Creating, writing and removing
// files only change that tree; Finalize (or Close) makes room for the index,
// places new payload and writes index and header back in one pass.
//
// An Archive is not safe for concurrent use, and only one Archive may have
// a given file open at a time.
package archive

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ossyrian/vdfs/internal/alloc"
	"github.com/ossyrian/vdfs/internal/bytefile"
	"github.com/ossyrian/vdfs/internal/codec"
	"github.com/ossyrian/vdfs/internal/listing"
	"github.com/ossyrian/vdfs/internal/vdfs"
)

// Archive is an open VDFS archive.
type Archive struct {
	basePath string
	file     *bytefile.File
	codec    *codec.Codec
	logger   *slog.Logger

	header vdfs.Header
	tree   *vdfs.Tree

	// staged holds payload written since the last finalize, keyed by the
	// entry it belongs to.
	staged map[*vdfs.Entry][]byte

	modified   bool
	storedSize uint32 // index bytes on disk
	poisoned   error

	// settings for Create
	comment   string
	signature string
	now       func() time.Time
}

func newArchive(path string, opts []Option) *Archive {
	a := &Archive{
		basePath:  path,
		logger:    slog.Default(),
		tree:      vdfs.NewTree(),
		staged:    make(map[*vdfs.Entry][]byte),
		signature: vdfs.Signature,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("archive", path)
	return a
}

func (a *Archive) attach(f *bytefile.File) {
	a.file = f
	a.codec = codec.New(f, a.logger)
}

// Open opens an existing archive for reading and writing and loads its index.
//
// It fails with ErrCorruptHeader if the header cannot be read and with
// ErrCorruptIndex if fewer entries than declared could be read.
func Open(fs afero.Fs, path string, opts ...Option) (*Archive, error) {
	a := newArchive(path, opts)

	f, err := bytefile.Open(fs, path)
	if err != nil {
		a.logger.Error("failed to open archive", "error", err)
		return nil, err
	}
	a.attach(f)

	if err := a.load(); err != nil {
		a.logger.Error("failed to load archive", "error", err)
		f.Close()
		return nil, err
	}

	a.logger.Info("opened archive",
		"entries", a.header.EntryCount,
		"files", a.header.FileCount,
		"content_size", a.header.ContentSize,
	)

	return a, nil
}

func (a *Archive) load() error {
	h, err := a.codec.ReadHeader()
	if err != nil {
		return err
	}
	a.header = h

	n, err := a.codec.ReadIndexTree(h, a.tree)
	a.storedSize = uint32(n) * uint32(h.EntrySize)
	if n != int(h.EntryCount) {
		if err != nil {
			return fmt.Errorf("%w: read %d of %d entries: %w", vdfs.ErrCorruptIndex, n, h.EntryCount, err)
		}
		return fmt.Errorf("%w: read %d of %d entries", vdfs.ErrCorruptIndex, n, h.EntryCount)
	}

	return nil
}

// Create creates a new, empty archive at path, truncating any existing file.
// The archive starts out modified, so closing it writes a valid empty
// archive.
func Create(fs afero.Fs, path string, opts ...Option) (*Archive, error) {
	a := newArchive(path, opts)

	f, err := bytefile.Create(fs, path)
	if err != nil {
		a.logger.Error("failed to create archive", "error", err)
		return nil, err
	}
	a.attach(f)

	a.header = vdfs.NewHeader(a.comment, a.now())
	a.header.Signature = a.signature
	a.modified = true

	a.logger.Info("created archive")

	return a, nil
}

// Path returns the path of the container file.
func (a *Archive) Path() string { return a.basePath }

// Header returns the header as of the last Open or Finalize.
func (a *Archive) Header() vdfs.Header { return a.header }

// Modified reports whether there are changes not yet finalized.
func (a *Archive) Modified() bool { return a.modified }

// IndexSize returns the number of index bytes on disk.
func (a *Archive) IndexSize() uint32 { return a.storedSize }

// SetComment changes the comment written by the next Finalize.
func (a *Archive) SetComment(comment string) {
	a.header.Comment = comment
	a.modified = true
}

// Listing returns a snapshot of the directory tree.
func (a *Archive) Listing() *listing.Node {
	return listing.FromTree(a.basePath, a.tree, func(e *vdfs.Entry) bool {
		_, ok := a.staged[e]
		return ok
	})
}

// Finalize persists all changes: it moves payload out of the way of the
// grown index, writes staged payload behind it, then writes the index and
// the header.
//
// If Finalize fails the archive is poisoned: the file on disk is only as good
// as the last successful finalize, and later calls return ErrPoisoned.
func (a *Archive) Finalize() error {
	if a.file == nil {
		return ErrClosed
	}
	if a.poisoned != nil {
		return fmt.Errorf("%w: %w", ErrPoisoned, a.poisoned)
	}

	if err := a.finalize(); err != nil {
		a.poisoned = err
		a.logger.Error("failed to finalize archive", "error", err)
		return err
	}

	return nil
}

func (a *Archive) finalize() error {
	if pruned := a.tree.Prune(); pruned > 0 {
		a.logger.Debug("pruned empty directories", "count", pruned)
	}

	count := a.tree.Count()
	required := a.header.IndexSize(count)
	entries := a.tree.Entries()
	stored := lo.Filter(entries, func(e *vdfs.Entry, _ int) bool {
		_, ok := a.staged[e]
		return !ok
	})

	al := alloc.New(a.file, a.logger, a.header.RootOffset, required)
	moved, err := al.AllocIndexMemory(stored)
	if err != nil {
		return fmt.Errorf("failed to make room for the index: %w", err)
	}

	placed := 0
	err = a.tree.Walk(func(_ []string, e *vdfs.Entry) error {
		data, ok := a.staged[e]
		if !ok {
			return nil
		}

		off, err := al.FreeOffset(uint32(len(data)))
		if err != nil {
			return err
		}
		if err := a.file.WriteAt(data, int64(off)); err != nil {
			return fmt.Errorf("failed to write payload of %s: %w", e.Name, err)
		}

		e.Offset = off
		e.Size = uint32(len(data))
		delete(a.staged, e)
		placed++
		return nil
	})
	if err != nil {
		return err
	}

	a.header.EntryCount = count
	a.header.FileCount = a.tree.FileCount()
	a.header.ContentSize = lo.SumBy(entries, func(e *vdfs.Entry) uint32 { return e.Size })

	n, err := a.codec.WriteIndexTree(a.header, a.tree)
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if n != int(count) {
		return fmt.Errorf("%w: wrote %d of %d entries", vdfs.ErrCorruptIndex, n, count)
	}

	if err := a.codec.WriteHeader(a.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		return err
	}

	a.storedSize = required
	a.modified = false

	a.logger.Info("finalized archive",
		"entries", count,
		"files", a.header.FileCount,
		"content_size", a.header.ContentSize,
		"moved", moved,
		"placed", placed,
	)

	return nil
}

// Close finalizes the archive if it was modified and releases the file.
// The file is released even if finalizing fails.
func (a *Archive) Close() error {
	if a.file == nil {
		return ErrClosed
	}

	var err error
	switch {
	case a.poisoned != nil:
		err = fmt.Errorf("%w: %w", ErrPoisoned, a.poisoned)
	case a.modified:
		err = a.Finalize()
	}

	return errors.Join(err, a.release())
}

// Discard releases the file without persisting pending changes.
func (a *Archive) Discard() error {
	if a.file == nil {
		return ErrClosed
	}
	if a.modified {
		a.logger.Info("discarding changes")
	}
	return a.release()
}

func (a *Archive) release() error {
	err := a.file.Close()
	a.file = nil
	a.codec = nil
	clear(a.staged)
	return err
}
