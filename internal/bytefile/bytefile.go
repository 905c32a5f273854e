// Package bytefile provides a random-access binary file with a cursor, used
// by the archive engine for fixed-width reads and writes.
package bytefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// ErrIO marks every failure reported by a File.
var ErrIO = errors.New("bytefile: i/o error")

// ByteOrder is the byte order of all fixed-width values.
var ByteOrder = binary.LittleEndian

// File is a random-access file over an afero filesystem.
// It is not safe for concurrent use.
type File struct {
	f    afero.File
	path string
}

// Open opens an existing file for reading and writing.
func Open(fs afero.Fs, path string) (*File, error) {
	f, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, wrap("open", path, err)
	}
	return &File{f: f, path: path}, nil
}

// Create creates path for reading and writing, truncating it if it exists.
func Create(fs afero.Fs, path string) (*File, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrap("create", path, err)
	}
	return &File{f: f, path: path}, nil
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// SetPosition moves the cursor to off bytes from the start of the file.
func (f *File) SetPosition(off int64) error {
	if _, err := f.f.Seek(off, io.SeekStart); err != nil {
		return f.wrap(fmt.Sprintf("seek to %d", off), err)
	}
	return nil
}

// Position returns the cursor.
func (f *File) Position() (int64, error) {
	pos, err := f.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, f.wrap("tell", err)
	}
	return pos, nil
}

// SeekEnd moves the cursor to the end of the file and returns its offset.
func (f *File) SeekEnd() (int64, error) {
	pos, err := f.f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, f.wrap("seek to end", err)
	}
	return pos, nil
}

// Read reads a fixed-width value at the cursor into v, which must be a
// pointer accepted by binary.Read.
func (f *File) Read(v any) error {
	if err := binary.Read(f.f, ByteOrder, v); err != nil {
		return f.wrap(fmt.Sprintf("read %T", v), err)
	}
	return nil
}

// Write writes the fixed-width value v at the cursor.
func (f *File) Write(v any) error {
	if err := binary.Write(f.f, ByteOrder, v); err != nil {
		return f.wrap(fmt.Sprintf("write %T", v), err)
	}
	return nil
}

// ReadValue reads one fixed-width value of type T at the cursor.
func ReadValue[T any](f *File) (T, error) {
	var v T
	err := f.Read(&v)
	return v, err
}

// ReadBytes reads exactly n bytes at the cursor.
func (f *File) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.f, buf); err != nil {
		return nil, f.wrap(fmt.Sprintf("read %d bytes", n), err)
	}
	return buf, nil
}

// WriteBytes writes b at the cursor.
func (f *File) WriteBytes(b []byte) error {
	if _, err := f.f.Write(b); err != nil {
		return f.wrap(fmt.Sprintf("write %d bytes", len(b)), err)
	}
	return nil
}

// ReadAt reads exactly len(b) bytes at off without using the cursor. A read
// that ends past the end of the file fails with io.ErrUnexpectedEOF.
func (f *File) ReadAt(b []byte, off int64) error {
	n, err := f.f.ReadAt(b, off)
	if n == len(b) {
		// ReaderAt may report io.EOF together with a full read
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return f.wrap(fmt.Sprintf("read %d bytes at %d", len(b), off), err)
}

// WriteAt writes b at off without using the cursor. Writing past the end
// grows the file; the gap reads back as zeros.
func (f *File) WriteAt(b []byte, off int64) error {
	if _, err := f.f.WriteAt(b, off); err != nil {
		return f.wrap(fmt.Sprintf("write %d bytes at %d", len(b), off), err)
	}
	return nil
}

// Size returns the current size of the file.
func (f *File) Size() (int64, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return 0, f.wrap("stat", err)
	}
	return fi.Size(), nil
}

// Sync commits the file to stable storage.
func (f *File) Sync() error {
	if err := f.f.Sync(); err != nil {
		return f.wrap("sync", err)
	}
	return nil
}

// Close releases the file handle.
func (f *File) Close() error {
	if err := f.f.Close(); err != nil {
		return f.wrap("close", err)
	}
	return nil
}

func (f *File) wrap(op string, err error) error {
	return wrap(op, f.path, err)
}

func wrap(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
