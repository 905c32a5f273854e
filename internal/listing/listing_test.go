package listing

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/vdfs/internal/vdfs"
)

func TestFromTree(t *testing.T) {
	tree := vdfs.NewTree()
	tree.Files["A.TXT"] = &vdfs.Entry{Name: "A.TXT", Offset: 500, Size: 10, Attribute: vdfs.AttributeArchive}
	staged := &vdfs.Entry{Name: "B.TXT", Offset: 999, Size: 20}
	tree.Subdir("DIR").Files["B.TXT"] = staged

	n := FromTree("test.vdf", tree, func(e *vdfs.Entry) bool { return e == staged })

	assert.Equal(t, "test.vdf", n.Name)
	assert.Equal(t, uint64(30), n.Size)
	assert.Equal(t, 2, n.Files())
	require.Len(t, n.Children, 2)

	dir := n.Children[0]
	assert.Equal(t, KindDirectory, dir.Kind)
	require.Len(t, dir.Children, 1)
	assert.Equal(t, KindStaged, dir.Children[0].Kind)
	assert.Zero(t, dir.Children[0].Offset)

	var out bytes.Buffer
	require.NoError(t, n.Print(&out))
	assert.Equal(t, "test.vdf/\n  DIR/\n    B.TXT\t20\t(staged)\n  A.TXT\t10\t@500\n", out.String())
}

func TestNodeJSON(t *testing.T) {
	tree := vdfs.NewTree()
	tree.Files["A.TXT"] = &vdfs.Entry{Name: "A.TXT", Offset: 500, Size: 10, Attribute: vdfs.AttributeArchive}

	data, err := json.Marshal(FromTree("root", tree, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "root",
		"kind": "Directory",
		"size": 10,
		"children": [
			{"name": "A.TXT", "kind": "File", "size": 10, "offset": 500, "attribute": "archive"}
		]
	}`, string(data))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Directory", KindDirectory.String())
	assert.Equal(t, "File", KindFile.String())
	assert.Equal(t, "Staged", KindStaged.String())
	assert.Equal(t, "Unknown", Kind(42).String())
}
