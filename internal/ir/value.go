package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a concrete value of an IR type: a bool or a fixed-width
// two's-complement integer. The bit pattern is held in the low Width bits
// of bits; higher bits are always zero. All arithmetic truncates back to
// the declared width, so overflow wraps exactly as the catalog's
// representation dictates.
type Value struct {
	Typ  Type   `json:"type"`
	bits uint64 // low Typ.Width bits, upper bits zero
}

// BoolValue constructs a boolean value.
func BoolValue(b bool) Value {
	v := Value{Typ: BoolType()}
	if b {
		v.bits = 1
	}
	return v
}

// IntValue constructs an integer value, truncating n to the type's width.
func IntValue(typ Type, n int64) Value {
	return Value{Typ: typ, bits: truncate(uint64(n), typ.Width)}
}

// ZeroValue returns the all-zero value of a type. Used for injection
// points never reached on a counterexample trace, where any type-correct
// value is acceptable.
func ZeroValue(typ Type) Value {
	return Value{Typ: typ}
}

func truncate(bits uint64, width uint32) uint64 {
	if width >= 64 {
		return bits
	}
	return bits & ((1 << width) - 1)
}

// Bool interprets the value as a boolean. Integers are truthy when nonzero.
func (v Value) Bool() bool {
	return v.bits != 0
}

// Uint64 returns the raw bit pattern zero-extended.
func (v Value) Uint64() uint64 {
	return v.bits
}

// Int64 returns the value sign-extended when the type is signed.
func (v Value) Int64() int64 {
	if v.Typ.Signed && v.Typ.Width < 64 {
		sign := uint64(1) << (v.Typ.Width - 1)
		if v.bits&sign != 0 {
			return int64(v.bits | ^((sign << 1) - 1))
		}
	}
	return int64(v.bits)
}

// IsZero reports whether every bit is zero.
func (v Value) IsZero() bool {
	return v.bits == 0
}

// Equal reports bit-for-bit equality of same-typed values.
func (v Value) Equal(o Value) bool {
	return v.Typ.Equal(o.Typ) && v.bits == o.bits
}

// Binary renders the bit pattern as a width-length binary string, most
// significant bit first. This is the form the oracle reports in traces.
func (v Value) Binary() string {
	s := strconv.FormatUint(v.bits, 2)
	if pad := int(v.Typ.Width) - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// String renders the interpreted value.
func (v Value) String() string {
	if v.Typ.Kind == KindBool {
		return strconv.FormatBool(v.Bool())
	}
	if v.Typ.Signed {
		return strconv.FormatInt(v.Int64(), 10)
	}
	return strconv.FormatUint(v.bits, 10)
}

// ParseBinary reconstructs a value from the oracle's binary rendering.
// The string length must equal the declared width exactly - a mismatch
// indicates a builder/interpreter contract violation and is returned as
// an error, never clamped.
func ParseBinary(typ Type, binary string) (Value, error) {
	if err := typ.Validate(); err != nil {
		return Value{}, err
	}
	if uint32(len(binary)) != typ.Width {
		return Value{}, fmt.Errorf("binary value has %d bits, type %s declares %d", len(binary), typ, typ.Width)
	}
	bits, err := strconv.ParseUint(binary, 2, 64)
	if err != nil {
		return Value{}, fmt.Errorf("parse binary %q: %w", binary, err)
	}
	return Value{Typ: typ, bits: bits}, nil
}

// Convert reinterprets v as typ, bit-exactly: truncation drops high bits,
// extension is sign- or zero- according to the SOURCE type's signedness.
func Convert(v Value, typ Type) Value {
	var bits uint64
	if v.Typ.Signed {
		bits = uint64(v.Int64())
	} else {
		bits = v.bits
	}
	return Value{Typ: typ, bits: truncate(bits, typ.Width)}
}

// MarshalJSON renders a value as {"type": ..., "binary": ..., "data": ...},
// which matches the trace value shape the oracle emits.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"type":%s,"binary":%q,"data":%q}`, mustJSON(v.Typ), v.Binary(), v.String())), nil
}

// UnmarshalJSON decodes the shape produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw struct {
		Typ    Type   `json:"type"`
		Binary string `json:"binary"`
		Data   string `json:"data"`
	}
	if err := unmarshalStrict(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseBinary(raw.Typ, raw.Binary)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
