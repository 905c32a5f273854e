// Package listing turns an archive's directory tree into a printable and
// JSON-encodable snapshot.
package listing

import (
	"fmt"
	"io"
	"strings"

	"github.com/ossyrian/vdfs/internal/vdfs"
)

// Kind is the kind of a listed node.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	// KindStaged is a file whose payload is not finalized yet.
	KindStaged
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "Directory"
	case KindFile:
		return "File"
	case KindStaged:
		return "Staged"
	default:
		return "Unknown"
	}
}

// MarshalText encodes k as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Node is one directory or file of a listing.
type Node struct {
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Size      uint64  `json:"size"`             // payload bytes, summed for directories
	Offset    uint32  `json:"offset,omitempty"` // files only
	Attribute string  `json:"attribute,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// FromTree builds the listing of t under a root node called name. staged
// reports entries whose payload is not finalized; it may be nil.
func FromTree(name string, t *vdfs.Tree, staged func(*vdfs.Entry) bool) *Node {
	n := &Node{Name: name, Kind: KindDirectory}

	for _, dir := range t.DirNames() {
		child := FromTree(dir, t.Dirs[dir], staged)
		n.Size += child.Size
		n.Children = append(n.Children, child)
	}

	for _, file := range t.FileNames() {
		e := t.Files[file]
		child := &Node{
			Name:      file,
			Kind:      KindFile,
			Size:      uint64(e.Size),
			Offset:    e.Offset,
			Attribute: e.Attribute.String(),
		}
		if staged != nil && staged(e) {
			child.Kind = KindStaged
			child.Offset = 0
		}
		n.Size += child.Size
		n.Children = append(n.Children, child)
	}

	return n
}

// Files returns the number of files below n.
func (n *Node) Files() int {
	if n.Kind != KindDirectory {
		return 1
	}
	count := 0
	for _, c := range n.Children {
		count += c.Files()
	}
	return count
}

// Print writes n as an indented tree, one node per line.
func (n *Node) Print(w io.Writer) error {
	return n.print(w, 0)
}

func (n *Node) print(w io.Writer, depth int) error {
	indent := strings.Repeat("  ", depth)

	var err error
	switch n.Kind {
	case KindDirectory:
		_, err = fmt.Fprintf(w, "%s%s/\n", indent, n.Name)
	case KindStaged:
		_, err = fmt.Fprintf(w, "%s%s\t%d\t(staged)\n", indent, n.Name, n.Size)
	default:
		_, err = fmt.Fprintf(w, "%s%s\t%d\t@%d\n", indent, n.Name, n.Size, n.Offset)
	}
	if err != nil {
		return err
	}

	for _, c := range n.Children {
		if err := c.print(w, depth+1); err != nil {
			return err
		}
	}
	return nil
}
