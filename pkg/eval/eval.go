// Package eval turns user-supplied expression text into typed field values.
//
// Evaluation is a two-stage contract.  Stage one compiles and runs the text
// with expr-lang against a fixed environment (math, pseudo-random helpers,
// clocks, a value-building namespace, and the session counter as `i`); if
// that fails, the literal text itself becomes the value and an evaluation
// diagnostic is recorded.  Stage two coerces the result to the target
// primitive kind; a failed coercion leaves the field untouched and records a
// coercion diagnostic.  Neither failure aborts the pipeline.
package eval

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/opscall/opscall/pkg/describe"
)

// FailureKind classifies a diagnostic.
type FailureKind int

const (
	// FailureEval: the text could not be evaluated as an expression; the
	// literal text was used as the value instead.
	FailureEval FailureKind = iota
	// FailureCoerce: the evaluated (or literal) value could not be converted
	// to the target kind; the field keeps its previous value.
	FailureCoerce
)

// Diagnostic reports a recoverable per-field failure.
type Diagnostic struct {
	Kind       FailureKind
	Path       string
	Expression string
	Detail     string
}

func (d Diagnostic) String() string {
	kind := "evaluation"
	if d.Kind == FailureCoerce {
		kind = "coercion"
	}
	if d.Path != "" {
		return fmt.Sprintf("%s failed at %s: %q: %s", kind, d.Path, d.Expression, d.Detail)
	}
	return fmt.Sprintf("%s failed: %q: %s", kind, d.Expression, d.Detail)
}

// Context is the immutable evaluation environment for one counter value.
// Sessions rebuild it only when the counter changes.
type Context struct {
	Counter int
	env     map[string]any
}

// NewContext builds the fixed expression environment.  Expressions see
// nothing of the surrounding program: no tree nodes, no session state —
// just this namespace and the counter under the name "i".
func NewContext(counter int) Context {
	return Context{Counter: counter, env: environment(counter)}
}

var processStart = time.Now()

// buildNS constructs generic structured values inside expressions, e.g.
// build.Object("x", 1, "y", 2) or build.List(1, 2, 3).
type buildNS struct{}

func (buildNS) Object(pairs ...any) map[string]any {
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	return out
}

func (buildNS) List(items ...any) []any { return items }

func environment(counter int) map[string]any {
	return map[string]any{
		"i": counter,

		// constants
		"pi":  math.Pi,
		"e":   math.E,
		"tau": 2 * math.Pi,
		"inf": math.Inf(1),
		"nan": math.NaN(),

		// math beyond the expr builtins
		"sqrt":  math.Sqrt,
		"pow":   math.Pow,
		"exp":   math.Exp,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"atan2": math.Atan2,
		"hypot": math.Hypot,
		"fmod":  math.Mod,

		// pseudo-random
		"random": rand.Float64,
		"randint": func(lo, hi int) int {
			if hi <= lo {
				return lo
			}
			return lo + rand.Intn(hi-lo+1)
		},
		"uniform": func(lo, hi float64) float64 { return lo + rand.Float64()*(hi-lo) },
		"gauss":   func(mu, sigma float64) float64 { return mu + rand.NormFloat64()*sigma },

		// time: wall-clock seconds and a monotonic clock
		"time":  func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
		"clock": func() float64 { return time.Since(processStart).Seconds() },

		"build": buildNS{},
	}
}

// Evaluate runs the two-stage contract for one leaf.
//
// The returned ok is true when a typed value of the target kind is available
// for assignment; on false the caller leaves the field at its current value.
// Empty expression text is a no-op: no value, no diagnostics.
func Evaluate(text string, kind describe.Primitive, ctx Context) (value any, ok bool, diags []Diagnostic) {
	if text == "" {
		return nil, false, nil
	}

	evaluated, evalErr := run(text, ctx)
	if evalErr != nil {
		// Fall back to the literal text as the value.
		evaluated = text
		diags = append(diags, Diagnostic{
			Kind:       FailureEval,
			Expression: text,
			Detail:     evalErr.Error(),
		})
	}

	coerced, err := Coerce(evaluated, kind)
	if err != nil {
		diags = append(diags, Diagnostic{
			Kind:       FailureCoerce,
			Expression: text,
			Detail:     err.Error(),
		})
		return nil, false, diags
	}
	return coerced, true, diags
}

func run(text string, ctx Context) (any, error) {
	program, err := expr.Compile(text, expr.Env(ctx.env))
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	out, err := expr.Run(program, ctx.env)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return out, nil
}

// Coerce converts a value to the target primitive kind and returns it with
// the exact Go type of that kind.
//
// Policy: string passthrough (non-strings format as text); float parse;
// integer parse where unsigned targets clamp negatives to zero and any
// target rejects values outside its bit width; bool parse.
func Coerce(v any, kind describe.Primitive) (any, error) {
	switch kind {
	case describe.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case describe.Bool:
		return coerceBool(v)
	case describe.Float32:
		f, err := coerceFloat(v)
		if err != nil {
			return nil, err
		}
		return float32(f), nil
	case describe.Float64:
		return coerceFloat(v)
	default:
		return coerceInt(v, kind)
	}
}

func coerceBool(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("cannot parse %q as bool", x)
		}
		return b, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as float", x)
		}
		return f, nil
	case bool:
		return 0, fmt.Errorf("cannot convert bool to float")
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// intRange holds the inclusive bounds of each integer kind.
var intRange = map[describe.Primitive][2]int64{
	describe.Int8:   {math.MinInt8, math.MaxInt8},
	describe.Int16:  {math.MinInt16, math.MaxInt16},
	describe.Int32:  {math.MinInt32, math.MaxInt32},
	describe.Int64:  {math.MinInt64, math.MaxInt64},
	describe.Uint8:  {0, math.MaxUint8},
	describe.Uint16: {0, math.MaxUint16},
	describe.Uint32: {0, math.MaxUint32},
	describe.Uint64: {0, 0}, // upper bound handled separately
}

func coerceInt(v any, kind describe.Primitive) (any, error) {
	var (
		n   int64
		u   uint64
		big bool // value only representable as uint64
	)
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt64 {
			u, big = x, true
		} else {
			n = int64(x)
		}
	case float64:
		// Truncate toward zero, matching integer construction from a float.
		if math.IsNaN(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x <= math.MinInt64 {
			return nil, fmt.Errorf("cannot convert %v to integer", x)
		}
		n = int64(x)
	case float32:
		return coerceInt(float64(x), kind)
	case string:
		s := strings.TrimSpace(x)
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Large unsigned literals overflow ParseInt but are still valid.
			up, uerr := strconv.ParseUint(s, 10, 64)
			if uerr != nil {
				return nil, fmt.Errorf("cannot parse %q as integer", x)
			}
			u, big = up, true
		} else {
			n = parsed
		}
	case bool:
		return nil, fmt.Errorf("cannot convert bool to integer")
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", v)
	}

	if kind.Unsigned() {
		// Negative values clamp to zero rather than failing or wrapping.
		if !big && n < 0 {
			n = 0
		}
		if !big {
			u = uint64(n)
		}
		if kind != describe.Uint64 && u > uint64(intRange[kind][1]) {
			return nil, fmt.Errorf("value %d out of range for %s", u, kind)
		}
		switch kind {
		case describe.Uint8:
			return uint8(u), nil
		case describe.Uint16:
			return uint16(u), nil
		case describe.Uint32:
			return uint32(u), nil
		default:
			return u, nil
		}
	}

	if big {
		return nil, fmt.Errorf("value %d out of range for %s", u, kind)
	}
	r := intRange[kind]
	if n < r[0] || n > r[1] {
		// Reject rather than truncate: silent narrowing hides operator
		// mistakes in exactly the fields where they matter.
		return nil, fmt.Errorf("value %d out of range for %s", n, kind)
	}
	switch kind {
	case describe.Int8:
		return int8(n), nil
	case describe.Int16:
		return int16(n), nil
	case describe.Int32:
		return int32(n), nil
	default:
		return n, nil
	}
}
