package eval

import (
	"testing"

	"github.com/opscall/opscall/pkg/describe"
	"github.com/opscall/opscall/pkg/message"
)

func TestEvaluate_CounterVariable(t *testing.T) {
	ctx := NewContext(4)
	v, ok, diags := Evaluate("i * 2", describe.Int64, ctx)
	if !ok {
		t.Fatalf("not ok, diags = %v", diags)
	}
	if len(diags) != 0 {
		t.Errorf("diags = %v", diags)
	}
	if v != int64(8) {
		t.Errorf("v = %#v, want int64(8)", v)
	}
}

func TestEvaluate_InvalidExpressionFallsBackToLiteral(t *testing.T) {
	ctx := NewContext(0)

	// As a string target the literal survives.
	v, ok, diags := Evaluate("][", describe.String, ctx)
	if !ok {
		t.Fatal("literal fallback should coerce to string")
	}
	if v != "][" {
		t.Errorf("v = %#v", v)
	}
	if len(diags) != 1 || diags[0].Kind != FailureEval {
		t.Errorf("diags = %v, want one evaluation failure", diags)
	}

	// As an integer target the coercion then fails and no value is produced.
	v, ok, diags = Evaluate("][", describe.Int32, ctx)
	if ok || v != nil {
		t.Errorf("v = %#v, ok = %v; field must stay unchanged", v, ok)
	}
	kinds := map[FailureKind]bool{}
	for _, d := range diags {
		kinds[d.Kind] = true
	}
	if !kinds[FailureEval] || !kinds[FailureCoerce] {
		t.Errorf("diags = %v, want both failure kinds", diags)
	}
}

func TestEvaluate_EmptyIsNoOp(t *testing.T) {
	v, ok, diags := Evaluate("", describe.Int64, NewContext(0))
	if v != nil || ok || diags != nil {
		t.Errorf("empty expression must be a silent no-op, got %#v %v %v", v, ok, diags)
	}
}

func TestEvaluate_MathEnvironment(t *testing.T) {
	ctx := NewContext(0)
	tests := []struct {
		expr string
		kind describe.Primitive
		want any
	}{
		{"sqrt(16)", describe.Float64, 4.0},
		{"pow(2, 10)", describe.Float64, 1024.0},
		{"pi", describe.Float32, float32(3.1415927)},
		{"1 + 2 * 3", describe.Int32, int32(7)},
		{"sin(0)", describe.Float64, 0.0},
	}
	for _, tt := range tests {
		v, ok, diags := Evaluate(tt.expr, tt.kind, ctx)
		if !ok {
			t.Fatalf("%s: diags = %v", tt.expr, diags)
		}
		if v != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.expr, v, tt.want)
		}
	}
}

func TestEvaluate_BuildNamespace(t *testing.T) {
	v, ok, _ := Evaluate(`build.Object("x", 1, "y", 2)`, describe.String, NewContext(0))
	if !ok {
		t.Fatal("build.Object should evaluate")
	}
	if s := v.(string); s == "" {
		t.Error("formatted object should not be empty")
	}
}

func TestEvaluate_RandomInRange(t *testing.T) {
	for range 20 {
		v, ok, diags := Evaluate("randint(1, 6)", describe.Int64, NewContext(0))
		if !ok {
			t.Fatalf("diags = %v", diags)
		}
		n := v.(int64)
		if n < 1 || n > 6 {
			t.Fatalf("randint out of range: %d", n)
		}
	}
}

func TestCoerce_UnsignedClamp(t *testing.T) {
	v, err := Coerce("-5", describe.Uint32)
	if err != nil {
		t.Fatalf("clamp must not fail: %v", err)
	}
	if v != uint32(0) {
		t.Errorf("v = %#v, want uint32(0)", v)
	}

	// The clamp applies to evaluated negatives too.
	v, ok, _ := Evaluate("1 - 10", describe.Uint8, NewContext(0))
	if !ok || v != uint8(0) {
		t.Errorf("v = %#v, ok = %v", v, ok)
	}
}

func TestCoerce_SignedWidthRejected(t *testing.T) {
	if _, err := Coerce("300", describe.Int8); err == nil {
		t.Error("300 must not fit int8")
	}
	if _, err := Coerce("70000", describe.Int16); err == nil {
		t.Error("70000 must not fit int16")
	}
	if v, err := Coerce("-300", describe.Int16); err != nil || v != int16(-300) {
		t.Errorf("v = %#v, err = %v", v, err)
	}
	if _, err := Coerce("5000000000", describe.Uint32); err == nil {
		t.Error("5000000000 must not fit uint32")
	}
}

func TestCoerce_RoundTripPrimitives(t *testing.T) {
	// coerce(textOf(v), kind) == v for every primitive kind.
	tests := []struct {
		v    any
		kind describe.Primitive
	}{
		{int64(-42), describe.Int64},
		{int32(7), describe.Int32},
		{int16(-3), describe.Int16},
		{int8(5), describe.Int8},
		{uint64(18446744073709551615), describe.Uint64},
		{uint32(4294967295), describe.Uint32},
		{uint16(65535), describe.Uint16},
		{uint8(255), describe.Uint8},
		{3.25, describe.Float64},
		{float32(1.5), describe.Float32},
		{true, describe.Bool},
		{false, describe.Bool},
	}
	for _, tt := range tests {
		text := message.FormatLeaf(tt.v)
		got, err := Coerce(text, tt.kind)
		if err != nil {
			t.Fatalf("Coerce(%q, %v): %v", text, tt.kind, err)
		}
		if got != tt.v {
			t.Errorf("Coerce(%q, %v) = %#v, want %#v", text, tt.kind, got, tt.v)
		}
	}

	// Strings pass through untouched.
	if got, err := Coerce("hello", describe.String); err != nil || got != "hello" {
		t.Errorf("string passthrough = %#v, %v", got, err)
	}
}

func TestCoerce_BoolParse(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{true, true},
		{int64(3), true},
		{int64(0), false},
	}
	for _, tt := range tests {
		got, err := Coerce(tt.in, describe.Bool)
		if err != nil {
			t.Fatalf("Coerce(%#v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Coerce(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := Coerce("maybe", describe.Bool); err == nil {
		t.Error("expected bool parse failure")
	}
}

func TestCoerce_FloatTruncationToInt(t *testing.T) {
	v, err := Coerce(3.9, describe.Int32)
	if err != nil {
		t.Fatal(err)
	}
	if v != int32(3) {
		t.Errorf("v = %#v", v)
	}
}

func TestContext_RebuiltPerCounter(t *testing.T) {
	for _, counter := range []int{0, 1, 17} {
		v, ok, _ := Evaluate("i", describe.Int64, NewContext(counter))
		if !ok || v != int64(counter) {
			t.Errorf("counter %d: v = %#v, ok = %v", counter, v, ok)
		}
	}
}
