package ir

import "fmt"

// UnOp is a unary operator.
type UnOp string

const (
	UnNeg    UnOp = "neg"
	UnNot    UnOp = "not"    // logical not
	UnBitNot UnOp = "bitnot" // bitwise complement
)

// BinOp is a binary operator.
type BinOp string

const (
	BinAdd BinOp = "add"
	BinSub BinOp = "sub"
	BinMul BinOp = "mul"
	BinDiv BinOp = "div"
	BinRem BinOp = "rem"
	BinAnd BinOp = "and"
	BinOr  BinOp = "or"
	BinXor BinOp = "xor"
	BinShl BinOp = "shl"
	BinShr BinOp = "shr"
	BinEq  BinOp = "eq"
	BinNe  BinOp = "ne"
	BinLt  BinOp = "lt"
	BinLe  BinOp = "le"
	BinGt  BinOp = "gt"
	BinGe  BinOp = "ge"
	// Logical connectives. Lowering already decides evaluation order, so
	// these are strict over already-evaluated operands.
	BinLAnd BinOp = "land"
	BinLOr  BinOp = "lor"
)

// ErrDivisionByZero is returned by ApplyBin for div/rem with a zero divisor.
// Concrete execution turns it into a property violation rather than an
// execution error.
var ErrDivisionByZero = fmt.Errorf("division by zero")

// ApplyUn applies a unary operator, truncating the result to the operand
// width.
func ApplyUn(op UnOp, v Value) (Value, error) {
	switch op {
	case UnNeg:
		return Value{Typ: v.Typ, bits: truncate(-v.bits, v.Typ.Width)}, nil
	case UnNot:
		return BoolValue(!v.Bool()), nil
	case UnBitNot:
		return Value{Typ: v.Typ, bits: truncate(^v.bits, v.Typ.Width)}, nil
	default:
		return Value{}, fmt.Errorf("unknown unary operator %q", op)
	}
}

// ApplyBin applies a binary operator with wraparound semantics at the
// left operand's declared width. Comparisons and logical connectives
// produce bool. Signed comparison and division follow the operand type's
// signedness bit-exactly.
func ApplyBin(op BinOp, a, b Value) (Value, error) {
	typ := a.Typ
	switch op {
	case BinAdd:
		return Value{Typ: typ, bits: truncate(a.bits+b.bits, typ.Width)}, nil
	case BinSub:
		return Value{Typ: typ, bits: truncate(a.bits-b.bits, typ.Width)}, nil
	case BinMul:
		return Value{Typ: typ, bits: truncate(a.bits*b.bits, typ.Width)}, nil
	case BinDiv:
		if b.IsZero() {
			return Value{}, ErrDivisionByZero
		}
		if typ.Signed {
			return IntValue(typ, a.Int64()/b.Int64()), nil
		}
		return Value{Typ: typ, bits: truncate(a.bits/b.bits, typ.Width)}, nil
	case BinRem:
		if b.IsZero() {
			return Value{}, ErrDivisionByZero
		}
		if typ.Signed {
			return IntValue(typ, a.Int64()%b.Int64()), nil
		}
		return Value{Typ: typ, bits: truncate(a.bits%b.bits, typ.Width)}, nil
	case BinAnd:
		return Value{Typ: typ, bits: a.bits & b.bits}, nil
	case BinOr:
		return Value{Typ: typ, bits: a.bits | b.bits}, nil
	case BinXor:
		return Value{Typ: typ, bits: a.bits ^ b.bits}, nil
	case BinShl:
		if b.bits >= uint64(typ.Width) {
			return Value{Typ: typ}, nil
		}
		return Value{Typ: typ, bits: truncate(a.bits<<b.bits, typ.Width)}, nil
	case BinShr:
		if b.bits >= uint64(typ.Width) {
			return Value{Typ: typ}, nil
		}
		if typ.Signed {
			return IntValue(typ, a.Int64()>>b.bits), nil
		}
		return Value{Typ: typ, bits: a.bits >> b.bits}, nil
	case BinEq:
		return BoolValue(a.bits == b.bits), nil
	case BinNe:
		return BoolValue(a.bits != b.bits), nil
	case BinLt, BinLe, BinGt, BinGe:
		return compare(op, a, b), nil
	case BinLAnd:
		return BoolValue(a.Bool() && b.Bool()), nil
	case BinLOr:
		return BoolValue(a.Bool() || b.Bool()), nil
	default:
		return Value{}, fmt.Errorf("unknown binary operator %q", op)
	}
}

func compare(op BinOp, a, b Value) Value {
	var lt, eq bool
	if a.Typ.Signed {
		lt = a.Int64() < b.Int64()
		eq = a.Int64() == b.Int64()
	} else {
		lt = a.bits < b.bits
		eq = a.bits == b.bits
	}
	switch op {
	case BinLt:
		return BoolValue(lt)
	case BinLe:
		return BoolValue(lt || eq)
	case BinGt:
		return BoolValue(!lt && !eq)
	default: // BinGe
		return BoolValue(!lt)
	}
}
