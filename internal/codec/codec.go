// Package codec converts between the on-disk VDFS header and index and their
// in-memory forms.
package codec

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ossyrian/vdfs/internal/bytefile"
	"github.com/ossyrian/vdfs/internal/vdfs"
)

// ErrEmptyDirectory is returned when asked to serialize a directory without
// entries. The sequential index layout cannot represent one; prune the tree
// before writing it.
var ErrEmptyDirectory = errors.New("codec: empty directory")

// headerFields are the scalars following comment and signature.
type headerFields struct {
	EntryCount   uint32
	FileCount    uint32
	CreationTime uint32
	ContentSize  uint32
	RootOffset   uint32
	EntrySize    int32
}

// entryFields are the scalars following an entry name.
type entryFields struct {
	Offset    uint32
	Size      uint32
	Type      vdfs.EntryType
	Attribute vdfs.Attribute
}

// Codec reads and writes the header and index of one archive file.
type Codec struct {
	file   *bytefile.File
	logger *slog.Logger
}

// New returns a Codec working on file. A nil logger means slog.Default().
func New(file *bytefile.File, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{file: file, logger: logger}
}

// ReadHeader reads the header at the start of the file.
//
// The comment is cut at its first fill byte and the signature loses its
// trailing padding. Any underrun, or scalar values that no valid archive can
// hold, fail with vdfs.ErrCorruptHeader.
func (c *Codec) ReadHeader() (vdfs.Header, error) {
	var h vdfs.Header

	if err := c.file.SetPosition(0); err != nil {
		return h, err
	}

	comment, err := c.file.ReadBytes(vdfs.CommentSize)
	if err != nil {
		return h, fmt.Errorf("%w: failed to read comment: %w", vdfs.ErrCorruptHeader, err)
	}
	h.Comment = vdfs.DecodeComment(comment)

	signature, err := c.file.ReadBytes(vdfs.SignatureSize)
	if err != nil {
		return h, fmt.Errorf("%w: failed to read signature: %w", vdfs.ErrCorruptHeader, err)
	}
	h.Signature = vdfs.DecodeSignature(signature)

	var f headerFields
	if err := c.file.Read(&f); err != nil {
		return h, fmt.Errorf("%w: failed to read header fields: %w", vdfs.ErrCorruptHeader, err)
	}

	h.EntryCount = f.EntryCount
	h.FileCount = f.FileCount
	h.CreationTime = f.CreationTime
	h.ContentSize = f.ContentSize
	h.RootOffset = f.RootOffset
	h.EntrySize = f.EntrySize

	if h.NameWidth() <= 0 || h.EntrySize > vdfs.MaxEntrySize {
		return h, fmt.Errorf("%w: invalid entry size %d", vdfs.ErrCorruptHeader, h.EntrySize)
	}
	if h.RootOffset < vdfs.HeaderSize {
		return h, fmt.Errorf("%w: root offset %d overlaps the header", vdfs.ErrCorruptHeader, h.RootOffset)
	}

	c.logger.Debug("read header",
		"signature", h.Signature,
		"entry_count", h.EntryCount,
		"file_count", h.FileCount,
		"content_size", h.ContentSize,
		"root_offset", h.RootOffset,
		"entry_size", h.EntrySize,
		"created", h.Created(),
	)

	return h, nil
}

// WriteHeader writes h at the start of the file.
//
// A comment or signature longer than its field is truncated with a warning.
func (c *Codec) WriteHeader(h vdfs.Header) error {
	if err := c.file.SetPosition(0); err != nil {
		return err
	}

	comment, truncated := vdfs.EncodeText(h.Comment, vdfs.CommentSize, vdfs.CommentFill)
	if truncated {
		c.logger.Warn("comment truncated",
			"length", len(h.Comment),
			"limit", vdfs.CommentSize,
		)
	}
	if err := c.file.WriteBytes(comment); err != nil {
		return fmt.Errorf("failed to write comment: %w", err)
	}

	signature, truncated := vdfs.EncodeText(h.Signature, vdfs.SignatureSize, vdfs.SignatureFill)
	if truncated {
		c.logger.Warn("signature truncated",
			"signature", h.Signature,
			"limit", vdfs.SignatureSize,
		)
	}
	if err := c.file.WriteBytes(signature); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}

	f := headerFields{
		EntryCount:   h.EntryCount,
		FileCount:    h.FileCount,
		CreationTime: h.CreationTime,
		ContentSize:  h.ContentSize,
		RootOffset:   h.RootOffset,
		EntrySize:    h.EntrySize,
	}
	if err := c.file.Write(&f); err != nil {
		return fmt.Errorf("failed to write header fields: %w", err)
	}

	c.logger.Debug("wrote header",
		"entry_count", h.EntryCount,
		"file_count", h.FileCount,
		"root_offset", h.RootOffset,
	)

	return nil
}

// readEntry reads one entry at the cursor.
func (c *Codec) readEntry(nameWidth int) (*vdfs.Entry, error) {
	name, err := c.file.ReadBytes(nameWidth)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry name: %w", err)
	}

	var f entryFields
	if err := c.file.Read(&f); err != nil {
		return nil, fmt.Errorf("failed to read entry fields: %w", err)
	}

	return &vdfs.Entry{
		Name:      vdfs.DecodeName(name),
		Offset:    f.Offset,
		Size:      f.Size,
		Type:      f.Type,
		Attribute: f.Attribute,
	}, nil
}

// writeEntry writes e at the cursor.
func (c *Codec) writeEntry(e *vdfs.Entry, nameWidth int) error {
	name, err := vdfs.EncodeName(e.Name, nameWidth)
	if err != nil {
		return err
	}
	if err := c.file.WriteBytes(name); err != nil {
		return fmt.Errorf("failed to write entry name %s: %w", e.Name, err)
	}

	f := entryFields{
		Offset:    e.Offset,
		Size:      e.Size,
		Type:      e.Type,
		Attribute: e.Attribute,
	}
	if err := c.file.Write(&f); err != nil {
		return fmt.Errorf("failed to write entry fields for %s: %w", e.Name, err)
	}

	return nil
}
