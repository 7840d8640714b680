package convert_test

import (
	"math"
	"testing"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/convert"
	"github.com/wippyai/js-runtime/engine"
	"github.com/wippyai/js-runtime/enginetest"
)

func newTestContext(t *testing.T) (*enginetest.Backend, *engine.Context) {
	t.Helper()
	b := enginetest.New()
	if err := b.InitProcess(); err != nil {
		t.Fatalf("InitProcess: %v", err)
	}
	cx, err := engine.NewContext(b, 0, 1<<20)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(cx.Destroy)
	return b, cx
}

func TestToBoolean(t *testing.T) {
	b, cx := newTestContext(t)

	tests := []struct {
		name  string
		value jsruntime.Value
		want  bool
	}{
		{"true", jsruntime.BooleanValue(true), true},
		{"false", jsruntime.BooleanValue(false), false},
		{"undefined", jsruntime.UndefinedValue(), false},
		{"null", jsruntime.NullValue(), false},
		{"zero int", jsruntime.Int32Value(0), false},
		{"nonzero int", jsruntime.Int32Value(-1), true},
		{"zero double", jsruntime.DoubleValue(0), false},
		{"negative zero", jsruntime.DoubleValue(math.Copysign(0, -1)), false},
		{"NaN", jsruntime.DoubleValue(math.NaN()), false},
		{"nonzero double", jsruntime.DoubleValue(0.5), true},
		{"empty string", b.StringValue(""), false},
		{"nonempty string", b.StringValue("x"), true},
		{"symbol", jsruntime.SymbolValue(b.NewSymbol("s")), true},
		{"object", jsruntime.ObjectValue(b.NewObject(0)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert.ToBoolean(cx, tt.value)
			if err != nil {
				t.Fatalf("ToBoolean(%v): %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("ToBoolean(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	b, cx := newTestContext(t)

	tests := []struct {
		name  string
		value jsruntime.Value
		want  float64
	}{
		{"int32", jsruntime.Int32Value(42), 42},
		{"double", jsruntime.DoubleValue(1.5), 1.5},
		{"null", jsruntime.NullValue(), 0},
		{"true", jsruntime.BooleanValue(true), 1},
		{"numeric string", b.StringValue("3.5"), 3.5},
		{"empty string", b.StringValue(""), 0},
		{"hex string", b.StringValue("0x10"), 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert.ToNumber(cx, tt.value)
			if err != nil {
				t.Fatalf("ToNumber: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToNumber(%v) = %g, want %g", tt.value, got, tt.want)
			}
		})
	}

	t.Run("undefined is NaN", func(t *testing.T) {
		got, err := convert.ToNumber(cx, jsruntime.UndefinedValue())
		if err != nil {
			t.Fatalf("ToNumber: %v", err)
		}
		if !math.IsNaN(got) {
			t.Errorf("ToNumber(undefined) = %g, want NaN", got)
		}
	})
}

func TestCoercionFailureIsRecoverable(t *testing.T) {
	b, cx := newTestContext(t)

	if _, err := convert.ToInt32(cx, b.StringValue("abc")); err == nil {
		t.Fatal("expected error converting 'abc' to int32")
	}
	if _, err := convert.ToNumber(cx, b.StringValue("abc")); err == nil {
		t.Fatal("expected error converting 'abc' to number")
	}
	// The failure must be recoverable: the context still works.
	got, err := convert.ToInt32(cx, jsruntime.Int32Value(5))
	if err != nil || got != 5 {
		t.Fatalf("context unusable after failed coercion: %v, %v", got, err)
	}
}

func TestIntegerConversions(t *testing.T) {
	b, cx := newTestContext(t)

	t.Run("int32 fast path is identity", func(t *testing.T) {
		for _, i := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
			got, err := convert.ToInt32(cx, jsruntime.Int32Value(i))
			if err != nil || got != i {
				t.Errorf("ToInt32(%d) = %d, %v", i, got, err)
			}
		}
	})

	t.Run("unsigned views wrap", func(t *testing.T) {
		v := jsruntime.Int32Value(-1)

		u32, err := convert.ToUint32(cx, v)
		if err != nil || u32 != math.MaxUint32 {
			t.Errorf("ToUint32(-1) = %d, %v, want %d", u32, err, uint32(math.MaxUint32))
		}
		u16, err := convert.ToUint16(cx, v)
		if err != nil || u16 != math.MaxUint16 {
			t.Errorf("ToUint16(-1) = %d, %v, want %d", u16, err, uint16(math.MaxUint16))
		}
		// The wide conversions sign extend instead of wrapping.
		i64, err := convert.ToInt64(cx, v)
		if err != nil || i64 != -1 {
			t.Errorf("ToInt64(-1) = %d, %v, want -1", i64, err)
		}
		u64, err := convert.ToUint64(cx, v)
		if err != nil || u64 != math.MaxUint64 {
			t.Errorf("ToUint64(-1) = %d, %v", u64, err)
		}
	})

	t.Run("doubles truncate modularly", func(t *testing.T) {
		got, err := convert.ToInt32(cx, jsruntime.DoubleValue(math.Pow(2, 32)+5))
		if err != nil || got != 5 {
			t.Errorf("ToInt32(2^32+5) = %d, %v, want 5", got, err)
		}
		u, err := convert.ToUint32(cx, jsruntime.DoubleValue(-1))
		if err != nil || u != math.MaxUint32 {
			t.Errorf("ToUint32(-1.0) = %d, %v", u, err)
		}
		z, err := convert.ToInt32(cx, jsruntime.DoubleValue(math.NaN()))
		if err != nil || z != 0 {
			t.Errorf("ToInt32(NaN) = %d, %v, want 0", z, err)
		}
	})

	t.Run("string slow path", func(t *testing.T) {
		got, err := convert.ToInt32(cx, b.StringValue("41"))
		if err != nil || got != 41 {
			t.Errorf("ToInt32(\"41\") = %d, %v", got, err)
		}
	})
}

func TestToString(t *testing.T) {
	b, cx := newTestContext(t)

	t.Run("string fast path", func(t *testing.T) {
		ref := b.InternString("hi")
		got, err := convert.ToString(cx, jsruntime.StringValue(ref))
		if err != nil || got != ref {
			t.Fatalf("ToString = %v, %v, want %v", got, err, ref)
		}
	})

	tests := []struct {
		name  string
		value jsruntime.Value
		want  string
	}{
		{"undefined", jsruntime.UndefinedValue(), "undefined"},
		{"null", jsruntime.NullValue(), "null"},
		{"boolean", jsruntime.BooleanValue(true), "true"},
		{"int32", jsruntime.Int32Value(-7), "-7"},
		{"double", jsruntime.DoubleValue(1.5), "1.5"},
		{"integral double", jsruntime.DoubleValue(3), "3"},
		{"NaN", jsruntime.DoubleValue(math.NaN()), "NaN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := convert.ToString(cx, tt.value)
			if err != nil {
				t.Fatalf("ToString: %v", err)
			}
			got, ok := b.StringContent(ref)
			if !ok || got != tt.want {
				t.Errorf("ToString(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}

	t.Run("symbol refuses", func(t *testing.T) {
		if _, err := convert.ToString(cx, jsruntime.SymbolValue(b.NewSymbol("s"))); err == nil {
			t.Fatal("expected error converting symbol to string")
		}
	})
}
