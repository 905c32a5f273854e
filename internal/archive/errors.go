package archive

import (
	"errors"

	"github.com/ossyrian/vdfs/internal/alloc"
	"github.com/ossyrian/vdfs/internal/bytefile"
	"github.com/ossyrian/vdfs/internal/vdfs"
)

var (
	// ErrForeignEntry is returned when a FileEntry that was not produced by
	// this archive is passed to it.
	ErrForeignEntry = errors.New("archive: entry does not belong to this archive")

	// ErrNotFound is returned when reading, writing or removing an entry
	// that does not exist (any more). Lookups never return it; they return
	// an entry whose Found method reports false.
	ErrNotFound = errors.New("archive: file not found")

	// ErrInvalidPath is returned for paths without any name segment.
	ErrInvalidPath = errors.New("archive: invalid path")

	// ErrPathConflict is returned when a path needs a name to be a file and a
	// directory at the same time.
	ErrPathConflict = errors.New("archive: path conflicts with an existing entry")

	// ErrPoisoned is returned by Finalize and Close after a finalize failed
	// part way. The file is only as good as the last successful finalize;
	// reopen it instead of retrying.
	ErrPoisoned = errors.New("archive: previous finalize failed")

	// ErrClosed is returned when using an archive after Close.
	ErrClosed = errors.New("archive: closed")
)

// Errors re-exported from the packages below archive.
var (
	// ErrIO marks failures of the underlying file.
	ErrIO = bytefile.ErrIO

	// ErrCorruptHeader is returned by Open when the header is unreadable.
	ErrCorruptHeader = vdfs.ErrCorruptHeader

	// ErrCorruptIndex is returned by Open when the index holds fewer entries
	// than the header declares.
	ErrCorruptIndex = vdfs.ErrCorruptIndex

	// ErrNameTooLong is returned by CreateFile for names wider than the
	// on-disk name field.
	ErrNameTooLong = vdfs.ErrNameTooLong

	// ErrInvalidName is returned by CreateFile for names that cannot be
	// stored.
	ErrInvalidName = vdfs.ErrInvalidName

	// ErrArchiveFull is returned when payload would not be addressable with
	// 32-bit offsets.
	ErrArchiveFull = alloc.ErrArchiveFull
)
