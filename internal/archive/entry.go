package archive

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ossyrian/vdfs/internal/vdfs"
)

// Kind tells which archive implementation produced a FileEntry.
type Kind uint8

const (
	// KindNone is the kind of the zero FileEntry.
	KindNone Kind = iota
	// KindVDFS marks entries produced by an Archive.
	KindVDFS
)

// FileEntry is a handle to a file inside an archive.
//
// Lookups that miss return a FileEntry whose Found method reports false
// and whose Size is 0; that is a valid negative result, not an error.
type FileEntry struct {
	kind  Kind
	owner *Archive
	dir   []string
	name  string
	entry *vdfs.Entry
}

// Found reports whether the handle refers to an existing file.
func (fe FileEntry) Found() bool { return fe.entry != nil }

// Kind returns the kind of archive that produced the handle.
func (fe FileEntry) Kind() Kind { return fe.kind }

// Name returns the file name.
func (fe FileEntry) Name() string { return fe.name }

// Path returns the full path of the file, segments separated by '/'.
func (fe FileEntry) Path() string {
	if len(fe.dir) == 0 {
		return fe.name
	}
	return strings.Join(fe.dir, "/") + "/" + fe.name
}

// Size returns the payload size in bytes, including staged payload.
func (fe FileEntry) Size() uint32 {
	if fe.entry == nil {
		return 0
	}
	return fe.entry.Size
}

// Offset returns where the payload starts in the container file. It is
// only meaningful after the payload was finalized.
func (fe FileEntry) Offset() uint32 {
	if fe.entry == nil {
		return 0
	}
	return fe.entry.Offset
}

// Attribute returns the attribute flags of the file.
func (fe FileEntry) Attribute() vdfs.Attribute {
	if fe.entry == nil {
		return vdfs.AttributeNormal
	}
	return fe.entry.Attribute
}

// splitPath splits p at '/' and '\', dropping empty segments.
func splitPath(p string) ([]string, error) {
	segs := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return segs, nil
}

func (a *Archive) handle(dir []string, e *vdfs.Entry) FileEntry {
	return FileEntry{kind: KindVDFS, owner: a, dir: dir, name: e.Name, entry: e}
}

func (a *Archive) notFound(dir []string, name string) FileEntry {
	return FileEntry{kind: KindVDFS, owner: a, dir: dir, name: name}
}

// GetFile looks up the file at path. Directories along the path are matched
// exactly. If any of them or the file itself is missing, the returned entry
// is not Found.
func (a *Archive) GetFile(path string) FileEntry {
	segs, err := splitPath(path)
	if err != nil {
		return a.notFound(nil, path)
	}

	dir, name := segs[:len(segs)-1], segs[len(segs)-1]
	t, ok := a.tree.Descend(dir)
	if !ok {
		return a.notFound(dir, name)
	}
	e, ok := t.Files[name]
	if !ok {
		return a.notFound(dir, name)
	}

	return a.handle(dir, e)
}

var errStopWalk = errors.New("stop walk")

// SearchFile looks up path like GetFile and, on a miss, searches the whole
// tree for a file named like the last segment of path, ignoring case. The
// first match in Walk order wins.
func (a *Archive) SearchFile(path string) FileEntry {
	if fe := a.GetFile(path); fe.Found() {
		return fe
	}

	segs, err := splitPath(path)
	if err != nil {
		return a.notFound(nil, path)
	}
	name := segs[len(segs)-1]

	found := a.notFound(nil, name)
	_ = a.tree.Walk(func(p []string, e *vdfs.Entry) error {
		if !strings.EqualFold(e.Name, name) {
			return nil
		}
		found = a.handle(p[:len(p)-1], e)
		return errStopWalk
	})

	return found
}

// Walk calls fn for every file in the archive, depth-first, directories
// before files, each sorted by name.
func (a *Archive) Walk(fn func(FileEntry) error) error {
	return a.tree.Walk(func(p []string, e *vdfs.Entry) error {
		return fn(a.handle(p[:len(p)-1], e))
	})
}

// CreateFile returns the file at path, creating it and any missing parent
// directories if needed. New files are empty until WriteFile.
func (a *Archive) CreateFile(path string) (FileEntry, error) {
	if a.file == nil {
		return FileEntry{}, ErrClosed
	}

	segs, err := splitPath(path)
	if err != nil {
		return FileEntry{}, err
	}
	width := a.header.NameWidth()
	for _, seg := range segs {
		if _, err := vdfs.EncodeName(seg, width); err != nil {
			return FileEntry{}, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}

	dir, name := segs[:len(segs)-1], segs[len(segs)-1]
	if err := a.checkConflicts(dir, name); err != nil {
		return FileEntry{}, fmt.Errorf("failed to create %s: %w", path, err)
	}

	t := a.tree
	for _, seg := range dir {
		t = t.Subdir(seg)
	}

	e, ok := t.Files[name]
	if !ok {
		e = &vdfs.Entry{Name: name, Attribute: vdfs.AttributeArchive}
		t.Files[name] = e
		a.logger.Debug("created file", "path", path)
	}
	a.modified = true

	return a.handle(dir, e), nil
}

// checkConflicts reports whether creating dir/name would need an existing
// file to be a directory or the other way around.
func (a *Archive) checkConflicts(dir []string, name string) error {
	t := a.tree
	for i, seg := range dir {
		if _, ok := t.Files[seg]; ok {
			return fmt.Errorf("%w: %s is a file", ErrPathConflict, strings.Join(dir[:i+1], "/"))
		}
		sub, ok := t.Dirs[seg]
		if !ok {
			return nil
		}
		t = sub
	}
	if _, ok := t.Dirs[name]; ok {
		return fmt.Errorf("%w: %s is a directory", ErrPathConflict, name)
	}
	return nil
}

// validate checks that fe was produced by a and still refers to a live file.
func (a *Archive) validate(fe FileEntry) error {
	if fe.kind != KindVDFS || fe.owner != a {
		return ErrForeignEntry
	}
	if a.file == nil {
		return ErrClosed
	}
	if fe.entry == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, fe.Path())
	}
	t, ok := a.tree.Descend(fe.dir)
	if !ok || t.Files[fe.name] != fe.entry {
		return fmt.Errorf("%w: %s", ErrNotFound, fe.Path())
	}
	return nil
}

// ReadFile reads the payload of fe into dst, which must hold at least
// fe.Size() bytes.
func (a *Archive) ReadFile(fe FileEntry, dst []byte) error {
	if err := a.validate(fe); err != nil {
		return err
	}

	e := fe.entry
	if len(dst) < int(e.Size) {
		return fmt.Errorf("failed to read %s: %w", fe.Path(), io.ErrShortBuffer)
	}
	if data, ok := a.staged[e]; ok {
		copy(dst, data)
		return nil
	}
	if e.Size == 0 {
		return nil
	}

	if err := a.file.ReadAt(dst[:e.Size], int64(e.Offset)); err != nil {
		a.logger.Error("failed to read payload", "path", fe.Path(), "error", err)
		return err
	}
	return nil
}

// ReadAll returns the payload of fe.
func (a *Archive) ReadAll(fe FileEntry) ([]byte, error) {
	if err := a.validate(fe); err != nil {
		return nil, err
	}

	buf := make([]byte, fe.entry.Size)
	if err := a.ReadFile(fe, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteFile replaces the payload of fe with a copy of data. The payload is
// placed in the container file by the next Finalize; the old payload bytes
// are left behind as unused space.
func (a *Archive) WriteFile(fe FileEntry, data []byte) error {
	if err := a.validate(fe); err != nil {
		return err
	}
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("failed to write %s: %w", fe.Path(), ErrArchiveFull)
	}

	e := fe.entry
	a.staged[e] = append([]byte(nil), data...)
	e.Size = uint32(len(data))
	a.modified = true

	a.logger.Debug("staged payload", "path", fe.Path(), "size", len(data))

	return nil
}

// RemoveFile removes fe from the archive. Directories left empty are
// removed as well. The payload bytes stay in the container file as unused
// space.
func (a *Archive) RemoveFile(fe FileEntry) error {
	if err := a.validate(fe); err != nil {
		return err
	}

	t, _ := a.tree.Descend(fe.dir)
	delete(t.Files, fe.name)
	delete(a.staged, fe.entry)
	a.tree.Prune()
	a.modified = true

	a.logger.Debug("removed file", "path", fe.Path())

	return nil
}
