package vdfs

import "time"

// Header is the fixed preamble of a VDFS archive.
type Header struct {
	Comment   string // trimmed at the first CommentFill byte
	Signature string // trailing SignatureFill trimmed

	EntryCount   uint32 // directories + files, root excluded
	FileCount    uint32
	CreationTime uint32 // packed DOS date, see PackTime
	ContentSize  uint32 // sum of all file sizes
	RootOffset   uint32 // first byte of the index
	EntrySize    int32  // width of one serialized entry
}

// NewHeader returns the header of an empty archive created at t.
func NewHeader(comment string, t time.Time) Header {
	return Header{
		Comment:      comment,
		Signature:    Signature,
		CreationTime: PackTime(t),
		RootOffset:   HeaderSize,
		EntrySize:    EntrySize,
	}
}

// NameWidth returns the width of the name field implied by EntrySize.
func (h Header) NameWidth() int {
	return int(h.EntrySize) - EntryFieldsSize
}

// Created returns the unpacked creation time.
func (h Header) Created() time.Time {
	return UnpackTime(h.CreationTime)
}

// IndexSize returns the number of bytes the index occupies for entryCount entries.
func (h Header) IndexSize(entryCount uint32) uint32 {
	return uint32(h.EntrySize) * entryCount
}

// EntryType holds the type bit flags of an entry.
type EntryType uint32

const (
	// TypeDirectory marks an entry that opens a subtree.
	TypeDirectory EntryType = 0x80000000
	// TypeLast marks the final entry of a directory level.
	TypeLast EntryType = 0x40000000
)

// IsDir reports whether the DIRECTORY bit is set.
func (t EntryType) IsDir() bool { return t&TypeDirectory != 0 }

// IsLast reports whether the LAST bit is set.
func (t EntryType) IsLast() bool { return t&TypeLast != 0 }

// Attribute holds the DOS-style attribute flags of an entry.
type Attribute uint32

const (
	AttributeNormal   Attribute = 0
	AttributeReadOnly Attribute = 1
	AttributeHidden   Attribute = 2
	AttributeSystem   Attribute = 4
	AttributeArchive  Attribute = 32
)

func (a Attribute) String() string {
	switch a {
	case AttributeNormal:
		return "normal"
	case AttributeReadOnly:
		return "readonly"
	case AttributeHidden:
		return "hidden"
	case AttributeSystem:
		return "system"
	case AttributeArchive:
		return "archive"
	default:
		return "mixed"
	}
}

// Entry is one node of the index.
//
// For files Offset and Size locate the payload. For directories the on-disk
// Offset is the byte offset of the first child entry and Size its ordinal;
// both are recomputed on every write.
type Entry struct {
	Name      string
	Offset    uint32
	Size      uint32
	Type      EntryType
	Attribute Attribute
}

// IsDir reports whether e describes a directory.
func (e *Entry) IsDir() bool { return e.Type.IsDir() }

// End returns the offset one past the last payload byte.
func (e *Entry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}
