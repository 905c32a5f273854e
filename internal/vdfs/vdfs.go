// Package vdfs describes the on-disk layout of VDFS archives: the fixed header,
// the fixed-width index entries and the in-memory directory tree they decode to.
package vdfs

import "errors"

// Signature is the default signature written to new archives ("PSVDSC_V2.00\r\n\r\n").
var Signature = "PSVDSC_V2.00\r\n\r\n"

// Header layout.
const (
	// CommentSize is the width of the comment field in bytes.
	CommentSize = 256
	// SignatureSize is the width of the signature field in bytes.
	SignatureSize = 16
	// HeaderSize is the total size of the header: comment, signature and six
	// 32-bit scalars.
	HeaderSize = CommentSize + SignatureSize + 6*4

	// CommentFill pads the comment field up to CommentSize.
	CommentFill = 0x1A
	// SignatureFill pads the signature field up to SignatureSize.
	SignatureFill = ' '
)

// Entry layout.
const (
	// NameSize is the default width of an entry name in bytes.
	NameSize = 64
	// NameFill pads entry names up to the name width.
	NameFill = ' '
	// EntryFieldsSize is the size of the scalar part of an entry
	// (offset, size, type, attribute).
	EntryFieldsSize = 4 * 4
	// EntrySize is the default width of one serialized entry.
	EntrySize = NameSize + EntryFieldsSize
	// MaxEntrySize bounds the entry width accepted from a header.
	MaxEntrySize = 4096
)

var (
	// ErrCorruptHeader is returned when the header cannot be read or holds
	// values no valid archive can have.
	ErrCorruptHeader = errors.New("vdfs: corrupt header")

	// ErrCorruptIndex is returned when the index does not hold as many
	// entries as the header declares.
	ErrCorruptIndex = errors.New("vdfs: corrupt index")

	// ErrNameTooLong is returned when an entry name does not fit the on-disk
	// name width.
	ErrNameTooLong = errors.New("vdfs: name too long")

	// ErrInvalidName is returned for names that cannot be stored, e.g. empty
	// names or names with characters outside Windows-1252.
	ErrInvalidName = errors.New("vdfs: invalid name")
)
