package compiler

import (
	"fmt"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// Scope maps the symbol names visible to an expression to their IR
// types. Contract expressions see the target's parameters (ensures
// clauses additionally see "result"); body expressions see whatever the
// lowering has declared so far.
type Scope map[string]ir.Type

// LowerExpr translates a catalog expression into an IR expression,
// resolving type ids through the catalog and symbol types through the
// scope. Catalog operator and kind spellings match the IR's, so the
// translation is structural; all errors are front-end inconsistencies.
func LowerExpr(cat *catalog.Catalog, scope Scope, e *catalog.Expr) (*ir.Expr, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	typ, ok := cat.TypeByID(e.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type id %q", e.Type)
	}

	switch e.Kind {
	case "lit":
		switch {
		case e.Bool != nil:
			if typ.Kind != ir.KindBool {
				return nil, fmt.Errorf("bool literal typed %s", typ)
			}
			return ir.Lit(ir.BoolValue(*e.Bool)), nil
		case e.Int != nil:
			if typ.Kind != ir.KindInt {
				return nil, fmt.Errorf("int literal typed %s", typ)
			}
			return ir.Lit(ir.IntValue(typ, *e.Int)), nil
		default:
			return nil, fmt.Errorf("literal without value")
		}

	case "sym":
		st, ok := scope[e.Sym]
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", e.Sym)
		}
		if !st.Equal(typ) {
			return nil, fmt.Errorf("symbol %q typed %s, referenced as %s", e.Sym, st, typ)
		}
		return ir.Sym(e.Sym, st), nil

	case "unary":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("unary %q wants 1 operand, has %d", e.Op, len(e.Args))
		}
		arg, err := LowerExpr(cat, scope, e.Args[0])
		if err != nil {
			return nil, err
		}
		switch op := ir.UnOp(e.Op); op {
		case ir.UnNeg, ir.UnNot, ir.UnBitNot:
			return ir.Unary(op, arg), nil
		default:
			return nil, fmt.Errorf("unknown unary operator %q", e.Op)
		}

	case "binary":
		if len(e.Args) != 2 {
			return nil, fmt.Errorf("binary %q wants 2 operands, has %d", e.Op, len(e.Args))
		}
		left, err := LowerExpr(cat, scope, e.Args[0])
		if err != nil {
			return nil, err
		}
		right, err := LowerExpr(cat, scope, e.Args[1])
		if err != nil {
			return nil, err
		}
		switch op := ir.BinOp(e.Op); op {
		case ir.BinAdd, ir.BinSub, ir.BinMul, ir.BinDiv, ir.BinRem,
			ir.BinAnd, ir.BinOr, ir.BinXor, ir.BinShl, ir.BinShr,
			ir.BinEq, ir.BinNe, ir.BinLt, ir.BinLe, ir.BinGt, ir.BinGe,
			ir.BinLAnd, ir.BinLOr:
			return ir.Binary(op, left, right), nil
		default:
			return nil, fmt.Errorf("unknown binary operator %q", e.Op)
		}

	case "cast":
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("cast wants 1 operand, has %d", len(e.Args))
		}
		arg, err := LowerExpr(cat, scope, e.Args[0])
		if err != nil {
			return nil, err
		}
		return ir.Cast(arg, typ), nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", e.Kind)
	}
}
