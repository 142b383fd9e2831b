// Package msgpath builds and splits the string keys that identify field
// locations inside a message tree.  Paths are the sole join key between tree
// nodes and the expression map: a child field is addressed as
// "parent/field", an array element as "parent[3]".
//
// Field and service names come from a trusted schema and are assumed to
// contain no path-delimiter characters; no escaping is performed.
package msgpath

import (
	"strconv"
	"strings"
)

// ChildField returns the path of a named sub-field.  For the root, parent is
// the service name itself (no leading separator is added).
func ChildField(parent, field string) string {
	return parent + "/" + field
}

// ChildIndex returns the path of an array element.
func ChildIndex(parent string, index int) string {
	return parent + "[" + strconv.Itoa(index) + "]"
}

// DisplayName returns the last /-delimited segment of a path.  The root path
// (a bare service name such as "/add_two_ints") yields the name after its
// namespace separator, which is what tree roots want anyway.
func DisplayName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ElementIndex parses the element index out of a key that continues an array
// slot, e.g. ElementIndex("svc/items", "svc/items[2]/x") = (2, true).
// Returns false when key does not address an element under slot.
func ElementIndex(slot, key string) (int, bool) {
	if !strings.HasPrefix(key, slot) {
		return 0, false
	}
	rest := key[len(slot):]
	if len(rest) < 3 || rest[0] != '[' {
		return 0, false
	}
	end := strings.IndexByte(rest, ']')
	if end <= 1 {
		return 0, false
	}
	idx, err := strconv.Atoi(rest[1:end])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
