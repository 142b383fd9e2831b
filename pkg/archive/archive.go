// Package archive persists labeled messages in a YAML container file, and
// loads them back with a declared-type check.  The console only ever writes
// or reads the currently selected message; the container format is a plain
// sequence of entries so files stay inspectable and appendable.
package archive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

// Entry is one archived message.
type Entry struct {
	Label   string         `yaml:"label"`
	Type    string         `yaml:"type"`
	SavedAt time.Time      `yaml:"saved_at"`
	Data    map[string]any `yaml:"data"`
}

// TypeMismatchError reports a load whose declared type string differs from
// the target's.  The target is left untouched.
type TypeMismatchError struct {
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("types do not match: should be %s but is %s", e.Want, e.Got)
}

// container is the on-disk document.
type container struct {
	Entries []Entry `yaml:"entries"`
}

// Write appends a labeled message to the container at path, creating the
// file when absent.
func Write(path, label string, msg *message.Message) error {
	c, err := readContainer(path)
	if err != nil {
		return err
	}
	c.Entries = append(c.Entries, Entry{
		Label:   label,
		Type:    msg.TypeName(),
		SavedAt: time.Now().UTC(),
		Data:    msg.ToMap(),
	})

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}

// Read returns every entry in the container at path.
func Read(path string) ([]Entry, error) {
	c, err := readContainer(path)
	if err != nil {
		return nil, err
	}
	return c.Entries, nil
}

func readContainer(path string) (*container, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &container{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	var c container
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse archive %s: %w", path, err)
	}
	return &c, nil
}

// Materialize turns an entry back into a message of the target type,
// rejecting entries whose declared type string does not match.
func Materialize(e Entry, target *describe.Descriptor) (*message.Message, error) {
	if e.Type != target.Name {
		return nil, &TypeMismatchError{Want: target.Name, Got: e.Type}
	}
	return message.FromMap(target, normalizeKeys(e.Data)), nil
}

// normalizeKeys converts yaml's map[string]any values recursively so that
// nested maps decoded as map[any]any (older yaml documents) still load.
func normalizeKeys(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalizeKeys(x)
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeValue(x[i])
		}
		return x
	case int:
		// yaml decodes integers as int; transports hand back float64/int64
		return int64(x)
	default:
		return v
	}
}
