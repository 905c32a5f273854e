// Package alloc decides where payload data lives in a VDFS archive.
//
// The index must stay one contiguous region starting at the root offset.
// When it grows into the first stored payload block, that block is moved to
// the end of the file, and so on until the index fits.
package alloc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ossyrian/vdfs/internal/bytefile"
	"github.com/ossyrian/vdfs/internal/vdfs"
)

// ErrArchiveFull is returned when payload would extend past the 32-bit
// offset range of the format.
var ErrArchiveFull = errors.New("alloc: archive exceeds 4 GiB")

// Allocator places payload for one finalize pass.
type Allocator struct {
	file   *bytefile.File
	logger *slog.Logger

	rootOffset uint32
	required   uint32 // bytes the index needs from rootOffset on
}

// New returns an Allocator for an index of required bytes starting at
// rootOffset. A nil logger means slog.Default().
func New(file *bytefile.File, logger *slog.Logger, rootOffset, required uint32) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{
		file:       file,
		logger:     logger,
		rootOffset: rootOffset,
		required:   required,
	}
}

// IndexEnd returns the first byte after the index region.
func (a *Allocator) IndexEnd() uint64 {
	return uint64(a.rootOffset) + uint64(a.required)
}

// FirstStoredEntry returns the entry whose payload starts at the smallest
// offset, or nil if none of entries holds payload. Zero-size entries occupy
// no bytes and are skipped.
func FirstStoredEntry(entries []*vdfs.Entry) *vdfs.Entry {
	var first *vdfs.Entry
	for _, e := range entries {
		if e.Size == 0 {
			continue
		}
		if first == nil || e.Offset < first.Offset {
			first = e
		}
	}
	return first
}

// Available returns how many bytes lie between the root offset and the
// first stored payload; it is negative if that payload starts before the
// root offset. ok is false when no entry holds payload.
func (a *Allocator) Available(entries []*vdfs.Entry) (avail int64, ok bool) {
	first := FirstStoredEntry(entries)
	if first == nil {
		return 0, false
	}
	return int64(first.Offset) - int64(a.rootOffset), true
}

// AllocIndexMemory makes sure the index has its required space by moving
// the payload of entries that are in the way to the end of the file.
// entries must hold every entry whose payload is live on disk.
//
// Each move sends the block with the smallest offset past the index region,
// so the smallest live offset strictly grows and the loop ends once no block
// starts inside the region. It returns the number of blocks moved. On error
// the entries moved so far point at their new copies; the old copies are
// left untouched.
func (a *Allocator) AllocIndexMemory(entries []*vdfs.Entry) (int, error) {
	moved := 0
	for {
		avail, ok := a.Available(entries)
		if !ok || avail >= int64(a.required) {
			a.logger.Debug("index space available",
				"available", avail,
				"required", a.required,
				"moved", moved,
			)
			return moved, nil
		}

		if err := a.MoveEntryDataToTheEnd(FirstStoredEntry(entries)); err != nil {
			return moved, err
		}
		moved++
	}
}

// MoveEntryDataToTheEnd copies the payload of e to FreeOffset and points e
// at the copy. e is only updated once the copy is written.
func (a *Allocator) MoveEntryDataToTheEnd(e *vdfs.Entry) error {
	buf := make([]byte, e.Size)
	if err := a.file.ReadAt(buf, int64(e.Offset)); err != nil {
		return fmt.Errorf("failed to read payload of %s: %w", e.Name, err)
	}

	off, err := a.FreeOffset(e.Size)
	if err != nil {
		return fmt.Errorf("failed to move payload of %s: %w", e.Name, err)
	}

	if err := a.file.WriteAt(buf, int64(off)); err != nil {
		return fmt.Errorf("failed to write payload of %s: %w", e.Name, err)
	}

	a.logger.Debug("moved payload",
		"name", e.Name,
		"size", e.Size,
		"from", e.Offset,
		"to", off,
	)

	e.Offset = off
	return nil
}

// FreeOffset returns where size bytes of new payload can be written: the end
// of the file, but never inside the index region.
func (a *Allocator) FreeOffset(size uint32) (uint32, error) {
	end, err := a.file.Size()
	if err != nil {
		return 0, err
	}

	off := max(uint64(end), a.IndexEnd())
	if off+uint64(size) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d bytes at %d", ErrArchiveFull, size, off)
	}

	return uint32(off), nil
}
