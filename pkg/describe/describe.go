// Package describe is the type descriptor bridge: the one seam between the
// schema world and the tree/reconstruction engines.  A Descriptor answers
// exactly three questions — is this a record with named sub-fields, an
// array of records, or a primitive — so nothing downstream ever
// special-cases a schema system.
//
// Descriptors are compiled from JSON Schema Draft 2020-12 documents
// (see compile.go) or reflected from Go structs (see reflect.go).
package describe

// Kind classifies a descriptor.
type Kind int

const (
	KindPrimitive Kind = iota
	KindRecord
	KindArray
)

// Primitive enumerates the leaf field kinds the coercion policy knows.
type Primitive int

const (
	String Primitive = iota
	Bool
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
)

var primitiveNames = map[Primitive]string{
	String:  "string",
	Bool:    "bool",
	Float32: "float32",
	Float64: "float64",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
}

// String returns the primitive's type name as shown in tree type columns.
func (p Primitive) String() string {
	if n, ok := primitiveNames[p]; ok {
		return n
	}
	return "unknown"
}

// Unsigned reports whether the kind is an unsigned integer.
func (p Primitive) Unsigned() bool {
	return p >= Uint8 && p <= Uint64
}

// Signed reports whether the kind is a signed integer.
func (p Primitive) Signed() bool {
	return p >= Int8 && p <= Int64
}

// Field is one named sub-field of a record, in declared order.
type Field struct {
	Name string
	Desc *Descriptor
}

// Descriptor describes a message type.  Exactly one of the kind-specific
// field sets is meaningful: Fields for records, Elem for arrays, Primitive
// for leaves.  Array descriptors carry the trailing "[]" marker in Name.
type Descriptor struct {
	Name      string
	Kind      Kind
	Primitive Primitive
	Fields    []Field
	Elem      *Descriptor
}

// IsRecord reports whether the type has named sub-fields.
func (d *Descriptor) IsRecord() bool { return d.Kind == KindRecord }

// IsArrayOfRecords reports whether the type is a variable-length array
// whose elements are records.
func (d *Descriptor) IsArrayOfRecords() bool {
	return d.Kind == KindArray && d.Elem != nil && d.Elem.IsRecord()
}

// IsPrimitive reports whether the type is a leaf primitive.
func (d *Descriptor) IsPrimitive() bool { return d.Kind == KindPrimitive }

// ElemName returns the array's base type name with the trailing array
// marker stripped.
func (d *Descriptor) ElemName() string {
	if d.Elem != nil {
		return d.Elem.Name
	}
	n := d.Name
	for len(n) >= 2 && n[len(n)-2:] == "[]" {
		n = n[:len(n)-2]
	}
	return n
}

// FieldNamed returns the sub-field descriptor for name, or nil.
func (d *Descriptor) FieldNamed(name string) *Descriptor {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Desc
		}
	}
	return nil
}

// NewPrimitive returns a descriptor for a primitive kind.
func NewPrimitive(p Primitive) *Descriptor {
	return &Descriptor{Name: p.String(), Kind: KindPrimitive, Primitive: p}
}

// NewRecord returns a record descriptor with the given declared field order.
func NewRecord(name string, fields ...Field) *Descriptor {
	return &Descriptor{Name: name, Kind: KindRecord, Fields: fields}
}

// NewArray returns an array descriptor over elem.
func NewArray(elem *Descriptor) *Descriptor {
	return &Descriptor{Name: elem.Name + "[]", Kind: KindArray, Elem: elem}
}
