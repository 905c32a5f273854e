package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/vdfs/internal/bytefile"
	"github.com/ossyrian/vdfs/internal/vdfs"
)

const testPath = "/test.vdf"

type fixture struct {
	fs    afero.Fs
	file  *bytefile.File
	codec *Codec
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := bytefile.Create(fs, testPath)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	logs := new(bytes.Buffer)
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return &fixture{fs: fs, file: f, codec: New(f, logger), logs: logs}
}

func (fx *fixture) bytes(t *testing.T) []byte {
	t.Helper()
	data, err := afero.ReadFile(fx.fs, testPath)
	require.NoError(t, err)
	return data
}

func TestHeaderRoundTrip(t *testing.T) {
	fx := newFixture(t)

	want := vdfs.NewHeader("Gothic archive", time.Date(2002, time.March, 15, 12, 0, 0, 0, time.UTC))
	want.EntryCount = 7
	want.FileCount = 4
	want.ContentSize = 1234

	require.NoError(t, fx.codec.WriteHeader(want))
	assert.Len(t, fx.bytes(t), vdfs.HeaderSize)

	got, err := fx.codec.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, time.Date(2002, time.March, 15, 12, 0, 0, 0, time.UTC), got.Created())
}

func TestHeaderLayout(t *testing.T) {
	fx := newFixture(t)

	h := vdfs.NewHeader("hi", time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC))
	h.EntryCount = 1
	h.FileCount = 2
	h.ContentSize = 3
	require.NoError(t, fx.codec.WriteHeader(h))

	data := fx.bytes(t)
	assert.Equal(t, []byte("hi\x1a\x1a"), data[:4])
	assert.Equal(t, byte(vdfs.CommentFill), data[vdfs.CommentSize-1])
	assert.Equal(t, []byte(vdfs.Signature), data[vdfs.CommentSize:vdfs.CommentSize+vdfs.SignatureSize])

	fields := data[vdfs.CommentSize+vdfs.SignatureSize:]
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(fields[0:]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(fields[4:]))
	assert.Equal(t, h.CreationTime, binary.LittleEndian.Uint32(fields[8:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(fields[12:]))
	assert.Equal(t, uint32(vdfs.HeaderSize), binary.LittleEndian.Uint32(fields[16:]))
	assert.Equal(t, uint32(vdfs.EntrySize), binary.LittleEndian.Uint32(fields[20:]))
}

func TestHeaderTruncation(t *testing.T) {
	fx := newFixture(t)

	long := strings.Repeat("c", vdfs.CommentSize+44)
	h := vdfs.NewHeader(long, time.Now())
	h.Signature = "A SIGNATURE THAT IS TOO LONG"

	require.NoError(t, fx.codec.WriteHeader(h))
	assert.Contains(t, fx.logs.String(), "comment truncated")
	assert.Contains(t, fx.logs.String(), "signature truncated")

	got, err := fx.codec.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, long[:vdfs.CommentSize], got.Comment)
	assert.Equal(t, h.Signature[:vdfs.SignatureSize], got.Signature)
}

func TestReadHeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *vdfs.Header)
		cut    int
		errMsg string
	}{
		{name: "empty file", cut: vdfs.HeaderSize, errMsg: "failed to read comment"},
		{name: "short signature", cut: vdfs.HeaderSize - vdfs.CommentSize - 1, errMsg: "failed to read signature"},
		{name: "short fields", cut: 2, errMsg: "failed to read header fields"},
		{
			name:   "entry size too small",
			mutate: func(h *vdfs.Header) { h.EntrySize = vdfs.EntryFieldsSize },
			errMsg: "invalid entry size",
		},
		{
			name:   "entry size too large",
			mutate: func(h *vdfs.Header) { h.EntrySize = 1<<31 - 1 },
			errMsg: "invalid entry size 2147483647",
		},
		{
			name:   "root offset inside header",
			mutate: func(h *vdfs.Header) { h.RootOffset = 100 },
			errMsg: "overlaps the header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			h := vdfs.NewHeader("", time.Now())
			if tt.mutate != nil {
				tt.mutate(&h)
			}
			require.NoError(t, fx.codec.WriteHeader(h))

			data := fx.bytes(t)
			require.NoError(t, afero.WriteFile(fx.fs, "/cut.vdf", data[:len(data)-tt.cut], 0o644))
			f, err := bytefile.Open(fx.fs, "/cut.vdf")
			require.NoError(t, err)
			defer f.Close()

			_, err = New(f, nil).ReadHeader()
			require.ErrorIs(t, err, vdfs.ErrCorruptHeader)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func file(name string, off, size uint32) *vdfs.Entry {
	return &vdfs.Entry{Name: name, Offset: off, Size: size, Attribute: vdfs.AttributeArchive}
}

// rawEntry decodes the i-th serialized entry of the index.
func rawEntry(t *testing.T, data []byte, h vdfs.Header, i int) (string, entryFields) {
	t.Helper()
	start := int(h.RootOffset) + i*int(h.EntrySize)
	require.LessOrEqual(t, start+int(h.EntrySize), len(data))

	raw := data[start : start+int(h.EntrySize)]
	var f entryFields
	require.NoError(t, binary.Read(bytes.NewReader(raw[h.NameWidth():]), binary.LittleEndian, &f))
	return vdfs.DecodeName(raw[:h.NameWidth()]), f
}

func TestWriteIndexTreeLayout(t *testing.T) {
	fx := newFixture(t)

	tree := vdfs.NewTree()
	tree.Subdir("A").Files["X"] = file("X", 1000, 1)
	b := tree.Subdir("B")
	b.Files["Y"] = file("Y", 1001, 2)
	b.Files["Z"] = file("Z", 1003, 3)
	tree.Files["R"] = file("R", 1006, 4)

	h := vdfs.NewHeader("", time.Now())
	h.EntryCount = tree.Count()

	n, err := fx.codec.WriteIndexTree(h, tree)
	require.NoError(t, err)
	require.Equal(t, 6, n)

	data := fx.bytes(t)
	root := h.RootOffset
	size := uint32(h.EntrySize)

	type row struct {
		name string
		f    entryFields
	}
	want := []row{
		{"A", entryFields{Offset: root + 3*size, Size: 3, Type: vdfs.TypeDirectory}},
		{"B", entryFields{Offset: root + 4*size, Size: 4, Type: vdfs.TypeDirectory}},
		{"R", entryFields{Offset: 1006, Size: 4, Type: vdfs.TypeLast, Attribute: vdfs.AttributeArchive}},
		{"X", entryFields{Offset: 1000, Size: 1, Type: vdfs.TypeLast, Attribute: vdfs.AttributeArchive}},
		{"Y", entryFields{Offset: 1001, Size: 2, Attribute: vdfs.AttributeArchive}},
		{"Z", entryFields{Offset: 1003, Size: 3, Type: vdfs.TypeLast, Attribute: vdfs.AttributeArchive}},
	}
	for i, w := range want {
		name, f := rawEntry(t, data, h, i)
		assert.Equal(t, w.name, name, "entry %d", i)
		assert.Equal(t, w.f, f, "entry %d (%s)", i, name)
	}
}

func TestIndexLastFlagRoundTrip(t *testing.T) {
	tests := []struct {
		files, dirs int
	}{
		{files: 1, dirs: 0},
		{files: 0, dirs: 1},
		{files: 5, dirs: 3},
		{files: 0, dirs: 4},
		{files: 12, dirs: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d files %d dirs", tt.files, tt.dirs), func(t *testing.T) {
			fx := newFixture(t)

			tree := vdfs.NewTree()
			for i := 0; i < tt.files; i++ {
				name := fmt.Sprintf("FILE%02d.DAT", i)
				tree.Files[name] = file(name, uint32(5000+i), uint32(i+1))
			}
			for i := 0; i < tt.dirs; i++ {
				sub := tree.Subdir(fmt.Sprintf("DIR%02d", i))
				sub.Files["INNER.DAT"] = file("INNER.DAT", uint32(9000+i), 7)
			}

			h := vdfs.NewHeader("", time.Now())
			h.EntryCount = tree.Count()
			n, err := fx.codec.WriteIndexTree(h, tree)
			require.NoError(t, err)
			require.Equal(t, int(h.EntryCount), n)

			data := fx.bytes(t)
			level := tt.files + tt.dirs
			lasts := 0
			for i := 0; i < level; i++ {
				_, f := rawEntry(t, data, h, i)
				if f.Type.IsLast() {
					lasts++
					assert.Equal(t, level-1, i, "LAST must be the final entry of the level")
				}
			}
			assert.Equal(t, 1, lasts)

			got := vdfs.NewTree()
			read, err := fx.codec.ReadIndexTree(h, got)
			require.NoError(t, err)
			assert.Equal(t, n, read)
			assert.Equal(t, level, got.Len())
			assert.Equal(t, tree.FileNames(), got.FileNames())
			assert.Equal(t, tree.DirNames(), got.DirNames())
			assert.Equal(t, tree, got)
		})
	}
}

func TestIndexDeepRoundTrip(t *testing.T) {
	fx := newFixture(t)

	tree := vdfs.NewTree()
	tree.Files["TOP.TXT"] = file("TOP.TXT", 10000, 1)
	deep := tree
	for _, name := range []string{"_WORK", "DATA", "ANIMS", "_COMPILED"} {
		deep = deep.Subdir(name)
		deep.Files[name+".BIN"] = file(name+".BIN", 20000, 2)
	}
	tree.Subdir("_WORK").Subdir("SOUND").Files["SFX.WAV"] = file("SFX.WAV", 30000, 3)
	tree.Subdir("MUSIC").Files["THEME.SGT"] = file("THEME.SGT", 40000, 4)

	h := vdfs.NewHeader("", time.Now())
	h.EntryCount = tree.Count()
	n, err := fx.codec.WriteIndexTree(h, tree)
	require.NoError(t, err)
	require.Equal(t, int(h.EntryCount), n)

	got := vdfs.NewTree()
	read, err := fx.codec.ReadIndexTree(h, got)
	require.NoError(t, err)
	assert.Equal(t, n, read)
	assert.Equal(t, tree, got)
}

func TestReadIndexTreePartial(t *testing.T) {
	fx := newFixture(t)

	tree := vdfs.NewTree()
	tree.Files["A"] = file("A", 1, 1)
	tree.Files["B"] = file("B", 2, 2)
	tree.Subdir("D").Files["C"] = file("C", 3, 3)

	h := vdfs.NewHeader("", time.Now())
	h.EntryCount = tree.Count()
	_, err := fx.codec.WriteIndexTree(h, tree)
	require.NoError(t, err)

	// cut the file in the middle of the fourth entry
	data := fx.bytes(t)
	cut := int(h.RootOffset) + 3*int(h.EntrySize) + 10
	require.NoError(t, afero.WriteFile(fx.fs, "/cut.vdf", data[:cut], 0o644))
	f, err := bytefile.Open(fx.fs, "/cut.vdf")
	require.NoError(t, err)
	defer f.Close()

	read, err := New(f, nil).ReadIndexTree(h, vdfs.NewTree())
	require.Error(t, err)
	assert.ErrorIs(t, err, bytefile.ErrIO)
	assert.Equal(t, 3, read)
}

func TestWriteIndexTreeRejects(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		fx := newFixture(t)
		tree := vdfs.NewTree()
		tree.Subdir("A").Subdir("EMPTY")

		_, err := fx.codec.WriteIndexTree(vdfs.NewHeader("", time.Now()), tree)
		require.ErrorIs(t, err, ErrEmptyDirectory)
		assert.Contains(t, err.Error(), "A/EMPTY")
	})

	t.Run("name too long", func(t *testing.T) {
		fx := newFixture(t)
		tree := vdfs.NewTree()
		long := strings.Repeat("N", vdfs.NameSize+1)
		tree.Files[long] = file(long, 0, 0)

		_, err := fx.codec.WriteIndexTree(vdfs.NewHeader("", time.Now()), tree)
		require.ErrorIs(t, err, vdfs.ErrNameTooLong)
	})
}
