package jsruntime

import (
	"fmt"
	"math"
)

// Value is the engine's tagged value representation: 64 bits, NaN-boxed.
// Doubles are stored as raw IEEE-754 bits with NaN canonicalized; every
// other type places a tag in the top 17 bits and its payload in the low 47.
// The encoding matches the engine's in-heap layout, so a Value round-trips
// through a rooted slot unchanged.
type Value struct {
	bits uint64
}

const (
	tagShift = 47

	typeDouble    = 0x00
	typeInt32     = 0x01
	typeBoolean   = 0x02
	typeUndefined = 0x03
	typeNull      = 0x04
	typeMagic     = 0x05
	typeString    = 0x06
	typeSymbol    = 0x07
	typeBigInt    = 0x09
	typeObject    = 0x0C

	tagMaxDouble = uint64(0x1FFF0)

	payloadMask = (uint64(1) << tagShift) - 1

	// All NaN doubles are stored as this single canonical pattern so that
	// no double's bit pattern collides with a tagged value.
	canonicalNaN = uint64(0x7FF8000000000000)
)

func boxed(typ uint64, payload uint64) Value {
	return Value{bits: (tagMaxDouble|typ)<<tagShift | (payload & payloadMask)}
}

func (v Value) tag() uint64 { return v.bits >> tagShift }

func (v Value) payload() uint64 { return v.bits & payloadMask }

// Bits returns the raw slot encoding of the value.
func (v Value) Bits() uint64 { return v.bits }

// ValueFromBits reconstructs a value from its raw slot encoding.
func ValueFromBits(bits uint64) Value { return Value{bits: bits} }

// RootKind returns the root list tagged values link into.
func (Value) RootKind() RootKind { return KindValue }

// UndefinedValue returns the undefined value.
func UndefinedValue() Value { return boxed(typeUndefined, 0) }

// NullValue returns the null value.
func NullValue() Value { return boxed(typeNull, 0) }

// BooleanValue returns a boolean value.
func BooleanValue(b bool) Value {
	if b {
		return boxed(typeBoolean, 1)
	}
	return boxed(typeBoolean, 0)
}

// Int32Value returns an int32-typed numeric value.
func Int32Value(i int32) Value { return boxed(typeInt32, uint64(uint32(i))) }

// DoubleValue returns a double-typed numeric value. NaN is canonicalized.
func DoubleValue(d float64) Value {
	if math.IsNaN(d) {
		return Value{bits: canonicalNaN}
	}
	return Value{bits: math.Float64bits(d)}
}

// StringValue returns a value referencing an engine-heap string.
func StringValue(s StringRef) Value { return boxed(typeString, uint64(uint32(s))) }

// SymbolValue returns a value referencing an engine-heap symbol.
func SymbolValue(s SymbolRef) Value { return boxed(typeSymbol, uint64(uint32(s))) }

// ObjectValue returns a value referencing an engine-heap object.
func ObjectValue(o ObjectRef) Value { return boxed(typeObject, uint64(uint32(o))) }

// IsUndefined reports whether the value is undefined.
func (v Value) IsUndefined() bool { return v.tag() == tagMaxDouble|typeUndefined }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.tag() == tagMaxDouble|typeNull }

// IsNullOrUndefined reports whether the value is null or undefined.
func (v Value) IsNullOrUndefined() bool { return v.IsNull() || v.IsUndefined() }

// IsBoolean reports whether the value is a boolean.
func (v Value) IsBoolean() bool { return v.tag() == tagMaxDouble|typeBoolean }

// IsInt32 reports whether the value is an int32-typed number.
func (v Value) IsInt32() bool { return v.tag() == tagMaxDouble|typeInt32 }

// IsDouble reports whether the value is a double-typed number.
func (v Value) IsDouble() bool { return v.tag() <= tagMaxDouble }

// IsNumber reports whether the value is numeric (int32 or double).
func (v Value) IsNumber() bool { return v.IsInt32() || v.IsDouble() }

// IsString reports whether the value references a string.
func (v Value) IsString() bool { return v.tag() == tagMaxDouble|typeString }

// IsSymbol reports whether the value references a symbol.
func (v Value) IsSymbol() bool { return v.tag() == tagMaxDouble|typeSymbol }

// IsBigInt reports whether the value references a bigint.
func (v Value) IsBigInt() bool { return v.tag() == tagMaxDouble|typeBigInt }

// IsObject reports whether the value references an object.
func (v Value) IsObject() bool { return v.tag() == tagMaxDouble|typeObject }

// Boolean returns the boolean payload. Caller must check IsBoolean.
func (v Value) Boolean() bool { return v.payload() != 0 }

// Int32 returns the int32 payload. Caller must check IsInt32.
func (v Value) Int32() int32 { return int32(uint32(v.payload())) }

// Double returns the double payload. Caller must check IsDouble.
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }

// Number returns the numeric payload as a float64 for either numeric
// representation. Caller must check IsNumber.
func (v Value) Number() float64 {
	if v.IsInt32() {
		return float64(v.Int32())
	}
	return v.Double()
}

// StringRef returns the referenced string. Caller must check IsString.
func (v Value) StringRef() StringRef { return StringRef(uint32(v.payload())) }

// SymbolRef returns the referenced symbol. Caller must check IsSymbol.
func (v Value) SymbolRef() SymbolRef { return SymbolRef(uint32(v.payload())) }

// ObjectRef returns the referenced object. Caller must check IsObject.
func (v Value) ObjectRef() ObjectRef { return ObjectRef(uint32(v.payload())) }

func (v Value) String() string {
	switch {
	case v.IsUndefined():
		return "undefined"
	case v.IsNull():
		return "null"
	case v.IsBoolean():
		return fmt.Sprintf("%t", v.Boolean())
	case v.IsInt32():
		return fmt.Sprintf("%d", v.Int32())
	case v.IsDouble():
		return fmt.Sprintf("%g", v.Double())
	case v.IsString():
		return v.StringRef().String()
	case v.IsSymbol():
		return v.SymbolRef().String()
	case v.IsObject():
		return v.ObjectRef().String()
	}
	return fmt.Sprintf("Value(0x%016x)", v.bits)
}
