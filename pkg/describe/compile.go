package describe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaError reports a schema document that could not be turned into a
// descriptor.  Registries surface it as a schema-unavailable condition.
type SchemaError struct {
	Name    string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %q: %s", e.Name, e.Message)
}

// Compile turns a JSON Schema Draft 2020-12 document into a Descriptor.
//
// The document is first compiled with santhosh-tekuri/jsonschema so malformed
// schemas are rejected up front, then walked with jsonparser so that record
// fields keep their declaration order (encoding/json maps would lose it —
// reconstruction relies on positional field order).
//
// Supported shape: objects with properties (records), arrays with items
// (arrays), and string/boolean/integer/number leaves.  Integer and number
// widths come from "format" (int8…uint64, float32); a bare integer is int64,
// a bare number float64.  "$ref" into "$defs" or "definitions" is resolved.
func Compile(name string, doc []byte) (*Descriptor, error) {
	if err := checkSchema(name, doc); err != nil {
		return nil, err
	}
	d, err := compileNode(doc, doc, name, make(map[string]bool))
	if err != nil {
		return nil, &SchemaError{Name: name, Message: err.Error()}
	}
	return d, nil
}

// checkSchema compiles the document with the validator to reject schemas
// that are not valid Draft 2020-12.
func checkSchema(name string, doc []byte) error {
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return &SchemaError{Name: name, Message: fmt.Sprintf("parse: %v", err)}
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("schema.json", parsed); err != nil {
		return &SchemaError{Name: name, Message: fmt.Sprintf("add resource: %v", err)}
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return &SchemaError{Name: name, Message: fmt.Sprintf("compile: %v", err)}
	}
	return nil
}

// compileNode compiles one schema node.  root is the whole document (for
// $ref resolution); seen guards against reference cycles, which the upstream
// message system cannot produce but a hostile schema document could.
func compileNode(root, node []byte, name string, seen map[string]bool) (*Descriptor, error) {
	if ref, err := jsonparser.GetString(node, "$ref"); err == nil {
		return compileRef(root, ref, seen)
	}

	typ, err := jsonparser.GetString(node, "type")
	if err != nil {
		return nil, fmt.Errorf("%s: missing type", name)
	}

	switch typ {
	case "object":
		return compileRecord(root, node, name, seen)
	case "array":
		items, _, _, err := jsonparser.Get(node, "items")
		if err != nil {
			return nil, fmt.Errorf("%s: array without items", name)
		}
		elem, err := compileNode(root, items, name, seen)
		if err != nil {
			return nil, err
		}
		return NewArray(elem), nil
	case "string":
		return NewPrimitive(String), nil
	case "boolean":
		return NewPrimitive(Bool), nil
	case "integer":
		return NewPrimitive(integerKind(node)), nil
	case "number":
		if f, _ := jsonparser.GetString(node, "format"); f == "float" || f == "float32" {
			return NewPrimitive(Float32), nil
		}
		return NewPrimitive(Float64), nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %q", name, typ)
	}
}

func compileRecord(root, node []byte, name string, seen map[string]bool) (*Descriptor, error) {
	if title, err := jsonparser.GetString(node, "title"); err == nil && title != "" {
		name = title
	}
	if name == "" {
		name = "object"
	}

	rec := &Descriptor{Name: name, Kind: KindRecord}
	props, _, _, err := jsonparser.Get(node, "properties")
	if err != nil {
		// Record with no declared fields — legal, projects as a childless node.
		return rec, nil
	}

	// ObjectEach visits properties in document order, which is the declared
	// field order the projection and reconstruction engines both rely on.
	var walkErr error
	err = jsonparser.ObjectEach(props, func(key, value []byte, vt jsonparser.ValueType, _ int) error {
		fd, err := compileNode(root, value, string(key), seen)
		if err != nil {
			walkErr = err
			return err
		}
		rec.Fields = append(rec.Fields, Field{Name: string(key), Desc: fd})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if err != nil {
		return nil, fmt.Errorf("%s: properties: %w", name, err)
	}
	return rec, nil
}

func compileRef(root []byte, ref string, seen map[string]bool) (*Descriptor, error) {
	var keys []string
	switch {
	case strings.HasPrefix(ref, "#/$defs/"):
		keys = []string{"$defs", strings.TrimPrefix(ref, "#/$defs/")}
	case strings.HasPrefix(ref, "#/definitions/"):
		keys = []string{"definitions", strings.TrimPrefix(ref, "#/definitions/")}
	default:
		return nil, fmt.Errorf("unsupported $ref %q", ref)
	}
	if seen[ref] {
		return nil, fmt.Errorf("cyclic $ref %q", ref)
	}
	seen[ref] = true
	defer delete(seen, ref)

	target, _, _, err := jsonparser.Get(root, keys...)
	if err != nil {
		return nil, fmt.Errorf("resolve $ref %q: %w", ref, err)
	}
	return compileNode(root, target, keys[1], seen)
}

func integerKind(node []byte) Primitive {
	format, _ := jsonparser.GetString(node, "format")
	switch format {
	case "int8":
		return Int8
	case "int16":
		return Int16
	case "int32":
		return Int32
	case "uint8":
		return Uint8
	case "uint16":
		return Uint16
	case "uint32":
		return Uint32
	case "uint64":
		return Uint64
	default:
		return Int64
	}
}
