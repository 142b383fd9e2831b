// Package rebuild reconstructs a typed message from the sparse per-path
// expression map.  It recurses over the fields the descriptor declares, not
// over any previously projected tree, because arrays may need to grow beyond
// what the last snapshot contained.
package rebuild

import (
	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/eval"
	"github.com/opscall/opscall/pkg/message"
	"github.com/opscall/opscall/pkg/msgpath"
)

// Reconstruct mutates msg in place from the expression map and returns the
// per-field diagnostics accumulated along the way.  Failures degrade
// locally: an unevaluable or uncoercible expression leaves its field at the
// constructed default and never aborts the walk.
//
// The counter is threaded unchanged through every recursive call — it is a
// single session-wide loop variable, not a per-element index.  Only
// expressions that reference `i` explicitly vary, and all elements at all
// depths see the same value.
func Reconstruct(msg *message.Message, path string, exprs map[string]string, counter int) []eval.Diagnostic {
	ctx := eval.NewContext(counter)
	return reconstruct(msg, path, exprs, ctx)
}

func reconstruct(msg *message.Message, path string, exprs map[string]string, ctx eval.Context) []eval.Diagnostic {
	var diags []eval.Diagnostic

	for i := 0; i < msg.Len(); i++ {
		name, desc, value := msg.FieldAt(i)
		slotKey := msgpath.ChildField(path, name)

		// Array growth: the element count is inferred purely from the
		// expression map.  Grow to the highest index any key references;
		// indices nothing references stay at their bridge defaults.
		if desc.IsArrayOfRecords() {
			if n, ok := arrayLen(slotKey, exprs); ok {
				for idx := 0; idx < n; idx++ {
					elem := message.New(desc.Elem)
					diags = append(diags, reconstruct(elem, msgpath.ChildIndex(slotKey, idx), exprs, ctx)...)
					msg.Append(name, elem)
				}
			}
		}

		text, present := exprs[slotKey]
		if !present {
			// Nested records may still hold expressions deeper down.
			if sub, ok := value.(*message.Message); ok {
				diags = append(diags, reconstruct(sub, slotKey, exprs, ctx)...)
			}
			continue
		}
		if text == "" {
			// Empty expression: the field keeps its constructed value,
			// no diagnostic.
			continue
		}
		if !desc.IsPrimitive() {
			continue
		}

		v, ok, fieldDiags := eval.Evaluate(text, desc.Primitive, ctx)
		for _, d := range fieldDiags {
			d.Path = slotKey
			diags = append(diags, d)
		}
		if ok {
			msg.SetField(name, v)
		}
	}
	return diags
}

// arrayLen scans the expression map for keys addressing elements under slot
// and returns the element count implied by the highest index seen.
func arrayLen(slot string, exprs map[string]string) (int, bool) {
	maxIdx, found := -1, false
	for key := range exprs {
		if idx, ok := msgpath.ElementIndex(slot, key); ok {
			found = true
			if idx > maxIdx {
				maxIdx = idx
			}
		}
	}
	return maxIdx + 1, found
}

// FromExpressions is the one-shot pipeline: construct a default request of
// the given type and reconstruct it from the map.
func FromExpressions(desc *describe.Descriptor, serviceName string, exprs map[string]string, counter int) (*message.Message, []eval.Diagnostic) {
	msg := message.New(desc)
	diags := Reconstruct(msg, serviceName, exprs, counter)
	return msg, diags
}
