package tree

import (
	"errors"
	"testing"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

func pairDesc() *describe.Descriptor {
	return describe.NewRecord("Pair",
		describe.Field{Name: "a", Desc: describe.NewPrimitive(describe.Int64)},
		describe.Field{Name: "b", Desc: describe.NewPrimitive(describe.Int64)},
	)
}

func trackDesc() *describe.Descriptor {
	point := describe.NewRecord("Point",
		describe.Field{Name: "x", Desc: describe.NewPrimitive(describe.Float64)},
		describe.Field{Name: "y", Desc: describe.NewPrimitive(describe.Float64)},
	)
	return describe.NewRecord("Track",
		describe.Field{Name: "name", Desc: describe.NewPrimitive(describe.String)},
		describe.Field{Name: "points", Desc: describe.NewArray(point)},
	)
}

func TestProjectRoot_PathsAndNames(t *testing.T) {
	root := ProjectRoot("/add_two_ints", message.New(pairDesc()), true)

	if root.Name != "/add_two_ints" {
		t.Errorf("root name = %q", root.Name)
	}
	if root.Path != "/add_two_ints" {
		t.Errorf("root path = %q", root.Path)
	}
	if len(root.Children) != 2 {
		t.Fatalf("children = %d", len(root.Children))
	}
	a, b := root.Children[0], root.Children[1]
	if a.Path != "/add_two_ints/a" || b.Path != "/add_two_ints/b" {
		t.Errorf("paths = %q, %q", a.Path, b.Path)
	}
	if a.Name != "a" || b.Name != "b" {
		t.Errorf("names = %q, %q", a.Name, b.Name)
	}
	if a.TypeName != "int64" {
		t.Errorf("type = %q", a.TypeName)
	}
	if a.Expression != "0" {
		t.Errorf("leaf display = %q", a.Expression)
	}
	if !a.Editable {
		t.Error("request leaves should be editable")
	}
}

func TestProject_EmptyArrayIsLeaf(t *testing.T) {
	root := ProjectRoot("/track", message.New(trackDesc()), true)
	points := root.Find("/track/points")
	if points == nil {
		t.Fatal("no points node")
	}
	if !points.IsLeaf() {
		t.Error("empty array should project as a leaf")
	}
	if points.TypeName != "Point[]" {
		t.Errorf("type = %q", points.TypeName)
	}
	if points.Expression != "[]" {
		t.Errorf("display = %q", points.Expression)
	}
}

func TestProject_ArrayElements(t *testing.T) {
	desc := trackDesc()
	m := message.New(desc)
	elemDesc := desc.FieldNamed("points").Elem
	for i := 0; i < 2; i++ {
		m.Append("points", message.New(elemDesc))
	}

	root := ProjectRoot("/track", m, false)
	points := root.Find("/track/points")
	if len(points.Children) != 2 {
		t.Fatalf("element count = %d", len(points.Children))
	}
	first := points.Children[0]
	if first.Path != "/track/points[0]" {
		t.Errorf("element path = %q", first.Path)
	}
	if first.Name != "points[0]" {
		t.Errorf("element name = %q", first.Name)
	}
	if first.TypeName != "Point" {
		t.Errorf("element type = %q (marker should be stripped)", first.TypeName)
	}
	x := root.Find("/track/points[1]/x")
	if x == nil {
		t.Fatal("no x leaf under points[1]")
	}
	if x.Editable {
		t.Error("response tree nodes must not be editable")
	}
}

func TestAddArrayChild(t *testing.T) {
	root := ProjectRoot("/track", message.New(trackDesc()), true)
	points := root.Find("/track/points")

	child, err := AddArrayChild(points)
	if err != nil {
		t.Fatal(err)
	}
	if child.Path != "/track/points[0]" {
		t.Errorf("child path = %q", child.Path)
	}
	if len(points.Children) != 1 {
		t.Fatalf("children = %d", len(points.Children))
	}
	if !child.Editable {
		t.Error("new element should be editable")
	}

	second, err := AddArrayChild(points)
	if err != nil {
		t.Fatal(err)
	}
	if second.Path != "/track/points[1]" {
		t.Errorf("second child path = %q", second.Path)
	}

	if _, err := AddArrayChild(root.Find("/track/name")); err == nil {
		t.Error("adding a child to a non-array node should fail")
	}
}

func TestRemoveArrayChild_Unsupported(t *testing.T) {
	root := ProjectRoot("/track", message.New(trackDesc()), true)
	points := root.Find("/track/points")
	AddArrayChild(points)

	err := RemoveArrayChild(points, 0)
	if !errors.Is(err, ErrRemoveUnsupported) {
		t.Errorf("err = %v, want ErrRemoveUnsupported", err)
	}
	if len(points.Children) != 1 {
		t.Error("remove must not mutate the tree")
	}
}

func TestErrorTree(t *testing.T) {
	n := ErrorTree("registry.RemoteError", "connection refused")
	if n.Name != "ERROR" || n.Editable {
		t.Errorf("error tree = %+v", n)
	}
	if n.Expression != "connection refused" {
		t.Errorf("detail = %q", n.Expression)
	}
}

func TestLeaves(t *testing.T) {
	root := ProjectRoot("/add_two_ints", message.New(pairDesc()), true)
	leaves := root.Leaves()
	if len(leaves) != 2 {
		t.Fatalf("leaves = %d", len(leaves))
	}
	if leaves[0].Path != "/add_two_ints/a" {
		t.Errorf("first leaf = %q", leaves[0].Path)
	}
}
