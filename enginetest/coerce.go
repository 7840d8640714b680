package enginetest

import (
	"math"
	"strconv"
	"strings"

	jsruntime "github.com/wippyai/js-runtime"
	"github.com/wippyai/js-runtime/errors"
)

// Slow coercions follow the language's abstract operations closely enough
// for the conversion layer's tests: ToPrimitive on objects is not
// modeled, so objects fail number coercion the way a throwing valueOf
// would.

func (b *Backend) ToBooleanSlow(cx jsruntime.ContextRef, v jsruntime.Value) (bool, error) {
	switch {
	case v.IsString():
		s, ok := b.StringContent(v.StringRef())
		if !ok {
			return false, errors.InvalidInput(errors.PhaseConvert, "unknown string ref")
		}
		return len(s) > 0, nil
	case v.IsObject():
		return true, nil
	case v.IsBoolean():
		return v.Boolean(), nil
	case v.IsNullOrUndefined():
		return false, nil
	case v.IsNumber():
		n := v.Number()
		return n == n && n != 0, nil
	case v.IsSymbol():
		return true, nil
	}
	return false, errors.Coercion("boolean", v)
}

// toNumber implements string and primitive number conversion. Objects and
// symbols fail with a pending exception.
func (b *Backend) toNumber(v jsruntime.Value) (float64, error) {
	switch {
	case v.IsNumber():
		return v.Number(), nil
	case v.IsUndefined():
		return math.NaN(), nil
	case v.IsNull():
		return 0, nil
	case v.IsBoolean():
		if v.Boolean() {
			return 1, nil
		}
		return 0, nil
	case v.IsString():
		s, ok := b.StringContent(v.StringRef())
		if !ok {
			return 0, errors.InvalidInput(errors.PhaseConvert, "unknown string ref")
		}
		return parseNumberLiteral(s)
	}
	return 0, errors.PendingException(errors.PhaseConvert, "cannot convert to number")
}

func parseNumberLiteral(s string) (float64, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, nil
	}
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		n, err := strconv.ParseUint(t[2:], 16, 64)
		if err != nil {
			return 0, errors.PendingException(errors.PhaseConvert, "invalid number literal")
		}
		return float64(n), nil
	}
	switch t {
	case "Infinity", "+Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	n, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, errors.PendingException(errors.PhaseConvert, "invalid number literal")
	}
	return n, nil
}

func (b *Backend) ToNumberSlow(cx jsruntime.ContextRef, v jsruntime.Value) (float64, error) {
	return b.toNumber(v)
}

// modular32 truncates a double toward zero and wraps it modulo 2^32.
// NaN and the infinities map to zero. Truncated doubles are integral, so
// the float remainder here is exact.
func modular32(d float64) uint32 {
	if d != d || math.IsInf(d, 0) {
		return 0
	}
	d = math.Mod(math.Trunc(d), 4294967296)
	if d < 0 {
		d += 4294967296
	}
	return uint32(d)
}

// modular64 wraps modulo 2^64. Magnitudes below 2^63 go through int64 so
// negatives keep their two's-complement pattern exactly.
func modular64(d float64) uint64 {
	if d != d || math.IsInf(d, 0) {
		return 0
	}
	d = math.Trunc(d)
	if d >= -math.Ldexp(1, 63) && d < math.Ldexp(1, 63) {
		return uint64(int64(d))
	}
	two64 := math.Ldexp(1, 64)
	d = math.Mod(d, two64)
	if d < 0 {
		d += two64
	}
	if d >= math.Ldexp(1, 63) {
		return uint64(d-math.Ldexp(1, 63)) + 1<<63
	}
	return uint64(d)
}

func (b *Backend) ToInt32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int32, error) {
	n, err := b.toNumber(v)
	if err != nil {
		return 0, err
	}
	return int32(modular32(n)), nil
}

func (b *Backend) ToUint32Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint32, error) {
	n, err := b.toNumber(v)
	if err != nil {
		return 0, err
	}
	return modular32(n), nil
}

func (b *Backend) ToUint16Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint16, error) {
	n, err := b.toNumber(v)
	if err != nil {
		return 0, err
	}
	return uint16(modular32(n)), nil
}

func (b *Backend) ToInt64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (int64, error) {
	n, err := b.toNumber(v)
	if err != nil {
		return 0, err
	}
	return int64(modular64(n)), nil
}

func (b *Backend) ToUint64Slow(cx jsruntime.ContextRef, v jsruntime.Value) (uint64, error) {
	n, err := b.toNumber(v)
	if err != nil {
		return 0, err
	}
	return modular64(n), nil
}

func (b *Backend) ToStringSlow(cx jsruntime.ContextRef, v jsruntime.Value) (jsruntime.StringRef, error) {
	var s string
	switch {
	case v.IsString():
		return v.StringRef(), nil
	case v.IsUndefined():
		s = "undefined"
	case v.IsNull():
		s = "null"
	case v.IsBoolean():
		s = strconv.FormatBool(v.Boolean())
	case v.IsInt32():
		s = strconv.FormatInt(int64(v.Int32()), 10)
	case v.IsDouble():
		s = formatDouble(v.Double())
	case v.IsObject():
		s = "[object Object]"
	case v.IsSymbol():
		// Symbols refuse implicit string conversion.
		return 0, errors.PendingException(errors.PhaseConvert, "cannot convert symbol to string")
	default:
		return 0, errors.Coercion("string", v)
	}
	return b.InternString(s), nil
}

func formatDouble(d float64) string {
	switch {
	case d != d:
		return "NaN"
	case math.IsInf(d, 1):
		return "Infinity"
	case math.IsInf(d, -1):
		return "-Infinity"
	case d == math.Trunc(d) && math.Abs(d) < 1e21:
		return strconv.FormatFloat(d, 'f', -1, 64)
	}
	return strconv.FormatFloat(d, 'g', -1, 64)
}
