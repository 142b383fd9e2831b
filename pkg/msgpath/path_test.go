package msgpath

import "testing"

func TestChildField(t *testing.T) {
	if got := ChildField("/add_two_ints", "a"); got != "/add_two_ints/a" {
		t.Errorf("got %q", got)
	}
	if got := ChildField("/add_two_ints/pose", "x"); got != "/add_two_ints/pose/x" {
		t.Errorf("got %q", got)
	}
}

func TestChildIndex(t *testing.T) {
	if got := ChildIndex("/svc/items", 0); got != "/svc/items[0]" {
		t.Errorf("got %q", got)
	}
	if got := ChildIndex("/svc/items", 12); got != "/svc/items[12]" {
		t.Errorf("got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/add_two_ints/a", "a"},
		{"/add_two_ints/items[2]/x", "x"},
		{"/add_two_ints", "add_two_ints"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.path); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestElementIndex(t *testing.T) {
	tests := []struct {
		slot, key string
		idx       int
		ok        bool
	}{
		{"svc/items", "svc/items[0]/x", 0, true},
		{"svc/items", "svc/items[2]/x", 2, true},
		{"svc/items", "svc/items[12]", 12, true},
		{"svc/items", "svc/other[0]", 0, false},
		{"svc/items", "svc/items/x", 0, false},
		{"svc/items", "svc/items[]", 0, false},
		{"svc/items", "svc/items[-1]/x", 0, false},
		// an index key for a longer slot name must not match the shorter one
		{"svc/item", "svc/items[0]/x", 0, false},
	}
	for _, tt := range tests {
		idx, ok := ElementIndex(tt.slot, tt.key)
		if ok != tt.ok || (ok && idx != tt.idx) {
			t.Errorf("ElementIndex(%q, %q) = (%d, %v), want (%d, %v)",
				tt.slot, tt.key, idx, ok, tt.idx, tt.ok)
		}
	}
}
