// Package convert implements JavaScript value coercions with inline fast
// paths for already-numeric inputs. Anything the fast path cannot decide
// goes to the engine's canonical conversion, which may run user script and
// fail with a pending exception.
//
// The caller must keep the value rooted across any call here: the slow
// paths can allocate and trigger a collection.
package convert

import (
	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/engine"
)

// ToBoolean converts v to a boolean. Most tags are decided inline;
// strings, objects and bigints need the engine.
func ToBoolean(cx *engine.Context, v jsruntime.Value) (bool, error) {
	switch {
	case v.IsBoolean():
		return v.Boolean(), nil
	case v.IsInt32():
		return v.Int32() != 0, nil
	case v.IsNullOrUndefined():
		return false, nil
	case v.IsDouble():
		d := v.Double()
		return d == d && d != 0, nil
	case v.IsSymbol():
		return true, nil
	}
	return cx.Backend().ToBooleanSlow(cx.Ref(), v)
}

// ToNumber converts v to a double.
func ToNumber(cx *engine.Context, v jsruntime.Value) (float64, error) {
	if v.IsNumber() {
		return v.Number(), nil
	}
	return cx.Backend().ToNumberSlow(cx.Ref(), v)
}

// signExtend widens an int32 payload so the truncating conversions below
// see the same two's-complement bit pattern on every target width.
func signExtend(v jsruntime.Value) int64 {
	return int64(v.Int32())
}

// ToInt32 converts v to a signed 32-bit integer with modular wrapping.
func ToInt32(cx *engine.Context, v jsruntime.Value) (int32, error) {
	if v.IsInt32() {
		return int32(signExtend(v)), nil
	}
	return cx.Backend().ToInt32Slow(cx.Ref(), v)
}

// ToUint32 converts v to an unsigned 32-bit integer with modular wrapping.
func ToUint32(cx *engine.Context, v jsruntime.Value) (uint32, error) {
	if v.IsInt32() {
		return uint32(signExtend(v)), nil
	}
	return cx.Backend().ToUint32Slow(cx.Ref(), v)
}

// ToUint16 converts v to an unsigned 16-bit integer with modular wrapping.
func ToUint16(cx *engine.Context, v jsruntime.Value) (uint16, error) {
	if v.IsInt32() {
		return uint16(signExtend(v)), nil
	}
	return cx.Backend().ToUint16Slow(cx.Ref(), v)
}

// ToInt64 converts v to a signed 64-bit integer.
func ToInt64(cx *engine.Context, v jsruntime.Value) (int64, error) {
	if v.IsInt32() {
		return signExtend(v), nil
	}
	return cx.Backend().ToInt64Slow(cx.Ref(), v)
}

// ToUint64 converts v to an unsigned 64-bit integer.
func ToUint64(cx *engine.Context, v jsruntime.Value) (uint64, error) {
	if v.IsInt32() {
		return uint64(signExtend(v)), nil
	}
	return cx.Backend().ToUint64Slow(cx.Ref(), v)
}

// ToString converts v to an engine string. The result is unrooted; the
// caller must root it before the next engine call.
func ToString(cx *engine.Context, v jsruntime.Value) (jsruntime.StringRef, error) {
	if v.IsString() {
		return v.StringRef(), nil
	}
	return cx.Backend().ToStringSlow(cx.Ref(), v)
}
