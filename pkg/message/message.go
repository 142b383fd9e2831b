// Package message implements dynamic typed message instances driven by
// descriptors.  A Message is an ordered set of named fields whose values are
// primitives, nested Messages, or slices of Messages; it is what the
// projection engine reads and the reconstruction engine mutates in place.
package message

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/opscall/opscall/pkg/describe"
)

// Message is one record instance.  Field order follows the descriptor's
// declared order.
type Message struct {
	desc   *describe.Descriptor
	values []any
}

// New default-constructs an instance of a record type: primitives at their
// zero value, nested records constructed recursively, arrays empty.  This is
// the bridge's construct operation.
func New(desc *describe.Descriptor) *Message {
	m := &Message{desc: desc, values: make([]any, len(desc.Fields))}
	for i, f := range desc.Fields {
		m.values[i] = defaultValue(f.Desc)
	}
	return m
}

func defaultValue(d *describe.Descriptor) any {
	switch d.Kind {
	case describe.KindRecord:
		return New(d)
	case describe.KindArray:
		return []*Message(nil)
	default:
		return ZeroPrimitive(d.Primitive)
	}
}

// ZeroPrimitive returns the default-valued instance of a primitive kind.
func ZeroPrimitive(p describe.Primitive) any {
	switch p {
	case describe.String:
		return ""
	case describe.Bool:
		return false
	case describe.Float32:
		return float32(0)
	case describe.Float64:
		return float64(0)
	case describe.Int8:
		return int8(0)
	case describe.Int16:
		return int16(0)
	case describe.Int32:
		return int32(0)
	case describe.Int64:
		return int64(0)
	case describe.Uint8:
		return uint8(0)
	case describe.Uint16:
		return uint16(0)
	case describe.Uint32:
		return uint32(0)
	default:
		return uint64(0)
	}
}

// Descriptor returns the record type of this instance.
func (m *Message) Descriptor() *describe.Descriptor { return m.desc }

// TypeName returns the declared type string of this instance.
func (m *Message) TypeName() string { return m.desc.Name }

// Len returns the number of declared fields.
func (m *Message) Len() int { return len(m.desc.Fields) }

// FieldAt returns the i-th field's name, descriptor, and current value in
// declared order.
func (m *Message) FieldAt(i int) (string, *describe.Descriptor, any) {
	f := m.desc.Fields[i]
	return f.Name, f.Desc, m.values[i]
}

// Field returns the current value of a named field.
func (m *Message) Field(name string) (any, bool) {
	for i, f := range m.desc.Fields {
		if f.Name == name {
			return m.values[i], true
		}
	}
	return nil, false
}

// SetField assigns a named field.  The caller is responsible for handing in
// a value of the field's kind (the coercion policy lives in pkg/eval).
func (m *Message) SetField(name string, value any) error {
	for i, f := range m.desc.Fields {
		if f.Name == name {
			m.values[i] = value
			return nil
		}
	}
	return fmt.Errorf("message %s: no field %q", m.desc.Name, name)
}

// Append grows a named array field by one element.
func (m *Message) Append(name string, elem *Message) error {
	for i, f := range m.desc.Fields {
		if f.Name != name {
			continue
		}
		if !f.Desc.IsArrayOfRecords() {
			return fmt.Errorf("message %s: field %q is not an array of records", m.desc.Name, name)
		}
		arr, _ := m.values[i].([]*Message)
		m.values[i] = append(arr, elem)
		return nil
	}
	return fmt.Errorf("message %s: no field %q", m.desc.Name, name)
}

// ToMap converts the message to plain map form for transports.
func (m *Message) ToMap() map[string]any {
	out := make(map[string]any, len(m.values))
	for i, f := range m.desc.Fields {
		switch v := m.values[i].(type) {
		case *Message:
			out[f.Name] = v.ToMap()
		case []*Message:
			elems := make([]any, len(v))
			for j, e := range v {
				elems[j] = e.ToMap()
			}
			out[f.Name] = elems
		default:
			out[f.Name] = v
		}
	}
	return out
}

// FromMap constructs an instance of desc and fills it, best-effort, from
// plain map form (the shape transports hand back).  Unknown keys are
// ignored; missing keys keep their defaults; scalar values that do not fit
// the declared kind are skipped rather than failing the whole message.
func FromMap(desc *describe.Descriptor, data map[string]any) *Message {
	m := New(desc)
	if data == nil {
		return m
	}
	for i, f := range desc.Fields {
		raw, ok := data[f.Name]
		if !ok {
			continue
		}
		switch f.Desc.Kind {
		case describe.KindRecord:
			if sub, ok := raw.(map[string]any); ok {
				m.values[i] = FromMap(f.Desc, sub)
			}
		case describe.KindArray:
			if f.Desc.Elem == nil || !f.Desc.Elem.IsRecord() {
				continue
			}
			items, ok := raw.([]any)
			if !ok {
				continue
			}
			var arr []*Message
			for _, it := range items {
				if sub, ok := it.(map[string]any); ok {
					arr = append(arr, FromMap(f.Desc.Elem, sub))
				}
			}
			m.values[i] = arr
		default:
			if v, ok := convertScalar(f.Desc.Primitive, raw); ok {
				m.values[i] = v
			}
		}
	}
	return m
}

// convertScalar narrows a transport scalar (string, bool, float64 from JSON
// decoding) to the declared primitive kind.
func convertScalar(p describe.Primitive, raw any) (any, bool) {
	switch p {
	case describe.String:
		s, ok := raw.(string)
		return s, ok
	case describe.Bool:
		b, ok := raw.(bool)
		return b, ok
	}
	f, ok := asFloat(raw)
	if !ok {
		return nil, false
	}
	switch p {
	case describe.Float32:
		return float32(f), true
	case describe.Float64:
		return f, true
	case describe.Int8:
		return int8(f), true
	case describe.Int16:
		return int16(f), true
	case describe.Int32:
		return int32(f), true
	case describe.Int64:
		return int64(f), true
	case describe.Uint8:
		return uint8(f), true
	case describe.Uint16:
		return uint16(f), true
	case describe.Uint32:
		return uint32(f), true
	default:
		return uint64(f), true
	}
}

func asFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatLeaf renders a leaf value as its default textual representation for
// tree display.  Strings are quoted so an empty string is visibly distinct
// from an empty cell; the display text is never fed back into the
// expression map.
func FormatLeaf(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case []*Message:
		if len(x) == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d elements]", len(x))
	default:
		return fmt.Sprint(x)
	}
}
