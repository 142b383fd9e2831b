package describe

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Reflect derives a descriptor from a Go struct by generating its JSON
// Schema with invopop/jsonschema and compiling the result.  In-process
// registries and tests use this so their request/response types are plain Go
// structs rather than hand-written schema documents.
//
// invopop preserves struct field order through its ordered property map, so
// the compiled record fields match the Go declaration order.
func Reflect(v any) (*Descriptor, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal reflected schema: %w", err)
	}
	return Compile(fmt.Sprintf("%T", v), data)
}

// SchemaJSON returns the indented JSON Schema document for a Go struct, for
// the CLI's schema export command.
func SchemaJSON(v any, id, title string) ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(v)
	s.ID = jsonschema.ID(id)
	s.Title = title

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
