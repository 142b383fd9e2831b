// Package tree projects typed message instances into the generic editable
// node tree the console displays, and hosts the array context actions.
//
// A tree is a snapshot: it is discarded and rebuilt wholesale whenever the
// active service changes, and paths are unique per node within one snapshot.
package tree

import (
	"errors"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/msgpath"
)

// ErrRemoveUnsupported is returned by RemoveArrayChild.  Element removal is
// a declared affordance that is not implemented; callers must surface it,
// never swallow it.
var ErrRemoveUnsupported = errors.New("removing array elements is not supported")

// Node is one field or one array element of a projected message.
type Node struct {
	// Name is the last path segment, except for the root which shows the
	// full service name.
	Name string
	// TypeName is the schema type string; arrays carry a trailing "[]".
	TypeName string
	// Path is the full addressing key joining this node to the expression map.
	Path string
	// Expression is the leaf display text: initialized to the value's
	// default textual representation, overwritten as the user edits.  Never
	// written back into the expression map by projection itself.
	Expression string
	// Editable is false for response trees.
	Editable bool
	// Desc is the descriptor this node was projected from; array nodes use
	// it to construct new elements.
	Desc *describe.Descriptor

	Children []*Node
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// IsArray reports whether the node represents an array-of-records slot.
func (n *Node) IsArray() bool { return n.Desc != nil && n.Desc.IsArrayOfRecords() }

// Project recursively builds nodes for a value.  When parent is non-nil the
// new node is appended to its children.  Decision order per call:
// record fields in declared order, then non-empty arrays of records one node
// per element, then leaf with the value's textual representation.
func Project(parent *Node, path string, desc *describe.Descriptor, value any, editable bool) *Node {
	n := &Node{
		Name:     msgpath.DisplayName(path),
		TypeName: desc.Name,
		Path:     path,
		Editable: editable,
		Desc:     desc,
	}
	if parent == nil {
		// Show the full service name, namespace included, on the root.
		n.Name = path
	} else {
		parent.Children = append(parent.Children, n)
	}

	switch v := value.(type) {
	case *message.Message:
		for i := 0; i < v.Len(); i++ {
			name, fd, fv := v.FieldAt(i)
			Project(n, msgpath.ChildField(path, name), fd, fv, editable)
		}
	case []*message.Message:
		if len(v) > 0 && desc.Elem != nil {
			// Children carry the base type name, marker stripped; the array
			// node itself keeps the trailing "[]".
			for i, elem := range v {
				Project(n, msgpath.ChildIndex(path, i), desc.Elem, elem, editable)
			}
			break
		}
		n.Expression = message.FormatLeaf(v)
	default:
		n.Expression = message.FormatLeaf(v)
	}
	return n
}

// ProjectRoot projects a whole message under its service name.
func ProjectRoot(serviceName string, msg *message.Message, editable bool) *Node {
	return Project(nil, serviceName, msg.Descriptor(), msg, editable)
}

// ErrorTree renders a failed remote call in the same node shape used for
// successful responses, so callers have one uniform place to look.
func ErrorTree(typeName, detail string) *Node {
	return &Node{Name: "ERROR", TypeName: typeName, Expression: detail}
}

// AddArrayChild default-constructs a new element for an array node, projects
// it as an editable child at the next index, and returns it.  The expression
// map is untouched: entries appear only when the user edits a leaf.
func AddArrayChild(n *Node) (*Node, error) {
	if !n.IsArray() {
		return nil, errors.New("node is not an array of records")
	}
	idx := len(n.Children)
	elem := message.New(n.Desc.Elem)
	child := Project(n, msgpath.ChildIndex(n.Path, idx), n.Desc.Elem, elem, true)
	return child, nil
}

// RemoveArrayChild is declared for symmetry with AddArrayChild but element
// removal (and the path renumbering it would imply for siblings) is not
// supported.
func RemoveArrayChild(n *Node, index int) error {
	return ErrRemoveUnsupported
}

// Find walks the tree for the node with the given path.
func (n *Node) Find(path string) *Node {
	if n.Path == path {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(path); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits the tree depth-first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Leaves returns the leaf nodes in display order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.Walk(func(c *Node) {
		if c.IsLeaf() {
			out = append(out, c)
		}
	})
	return out
}
