package message

import (
	"testing"

	"github.com/opscall/opscall/pkg/describe"
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

func TestNew_Defaults(t *testing.T) {
	m := New(trackDesc())
	name, _ := m.Field("name")
	if name != "" {
		t.Errorf("name default = %v", name)
	}
	points, _ := m.Field("points")
	if arr, ok := points.([]*Message); !ok || len(arr) != 0 {
		t.Errorf("points default = %v", points)
	}
}

func TestSetField_Unknown(t *testing.T) {
	m := New(pairDesc())
	if err := m.SetField("c", int64(1)); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestAppend(t *testing.T) {
	track := trackDesc()
	m := New(track)
	elem := New(track.FieldNamed("points").Elem)
	elem.SetField("x", 1.5)
	if err := m.Append("points", elem); err != nil {
		t.Fatal(err)
	}
	points, _ := m.Field("points")
	arr := points.([]*Message)
	if len(arr) != 1 {
		t.Fatalf("len = %d", len(arr))
	}
	if x, _ := arr[0].Field("x"); x != 1.5 {
		t.Errorf("x = %v", x)
	}

	if err := m.Append("name", elem); err == nil {
		t.Error("append to a string field should fail")
	}
}

func TestToMap_FromMap(t *testing.T) {
	track := trackDesc()
	m := New(track)
	m.SetField("name", "loop")
	elem := New(track.FieldNamed("points").Elem)
	elem.SetField("x", 3.0)
	elem.SetField("y", 4.0)
	m.Append("points", elem)

	data := m.ToMap()
	if data["name"] != "loop" {
		t.Errorf("name = %v", data["name"])
	}
	points := data["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("points = %v", points)
	}

	back := FromMap(track, data)
	if name, _ := back.Field("name"); name != "loop" {
		t.Errorf("round-trip name = %v", name)
	}
	pv, _ := back.Field("points")
	arr := pv.([]*Message)
	if len(arr) != 1 {
		t.Fatalf("round-trip points len = %d", len(arr))
	}
	if y, _ := arr[0].Field("y"); y != 4.0 {
		t.Errorf("round-trip y = %v", y)
	}
}

func TestFromMap_NarrowsScalars(t *testing.T) {
	d := describe.NewRecord("N",
		describe.Field{Name: "n", Desc: describe.NewPrimitive(describe.Int32)},
		describe.Field{Name: "u", Desc: describe.NewPrimitive(describe.Uint8)},
	)
	// JSON decoding hands numbers back as float64
	m := FromMap(d, map[string]any{"n": float64(7), "u": float64(3)})
	if n, _ := m.Field("n"); n != int32(7) {
		t.Errorf("n = %#v", n)
	}
	if u, _ := m.Field("u"); u != uint8(3) {
		t.Errorf("u = %#v", u)
	}
	// mismatched scalar shape keeps the default
	m = FromMap(d, map[string]any{"n": "seven"})
	if n, _ := m.Field("n"); n != int32(0) {
		t.Errorf("n = %#v", n)
	}
}

func TestFormatLeaf(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{"", `""`},
		{"hi", `"hi"`},
		{int64(42), "42"},
		{uint32(7), "7"},
		{3.5, "3.5"},
		{false, "false"},
		{[]*Message(nil), "[]"},
	}
	for _, tt := range tests {
		if got := FormatLeaf(tt.v); got != tt.want {
			t.Errorf("FormatLeaf(%#v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
