package ir

import "fmt"

// ExprKind discriminates expression nodes.
type ExprKind string

const (
	ExprLit    ExprKind = "lit"
	ExprSym    ExprKind = "sym"
	ExprUnary  ExprKind = "unary"
	ExprBinary ExprKind = "binary"
	ExprCast   ExprKind = "cast"
)

// Expr is a side-effect-free expression tree over symbols and literals.
// The builder lowers all side effects (calls, nondeterministic values)
// into separate instructions before expressions are formed, so an Expr
// can always be evaluated by straight recursion.
type Expr struct {
	Kind ExprKind `json:"kind"`
	Typ  Type     `json:"type"`

	Lit *Value `json:"lit,omitempty"` // ExprLit
	Sym string `json:"sym,omitempty"` // ExprSym

	Un  UnOp    `json:"un,omitempty"`   // ExprUnary
	Bin BinOp   `json:"bin,omitempty"`  // ExprBinary
	Args []*Expr `json:"args,omitempty"` // operands; cast has exactly one
}

// Lit builds a literal node.
func Lit(v Value) *Expr {
	return &Expr{Kind: ExprLit, Typ: v.Typ, Lit: &v}
}

// Sym builds a symbol reference.
func Sym(name string, typ Type) *Expr {
	return &Expr{Kind: ExprSym, Typ: typ, Sym: name}
}

// Unary builds a unary operation node.
func Unary(op UnOp, arg *Expr) *Expr {
	typ := arg.Typ
	if op == UnNot {
		typ = BoolType()
	}
	return &Expr{Kind: ExprUnary, Typ: typ, Un: op, Args: []*Expr{arg}}
}

// Binary builds a binary operation node. Comparison and logical operators
// produce bool; arithmetic keeps the left operand's type.
func Binary(op BinOp, left, right *Expr) *Expr {
	typ := left.Typ
	switch op {
	case BinEq, BinNe, BinLt, BinLe, BinGt, BinGe, BinLAnd, BinLOr:
		typ = BoolType()
	}
	return &Expr{Kind: ExprBinary, Typ: typ, Bin: op, Args: []*Expr{left, right}}
}

// Cast builds an explicit conversion node.
func Cast(arg *Expr, typ Type) *Expr {
	return &Expr{Kind: ExprCast, Typ: typ, Args: []*Expr{arg}}
}

// Rename returns a copy of the expression with every symbol reference
// passed through f. Used when inlining renames callee locals.
func (e *Expr) Rename(f func(string) string) *Expr {
	if e == nil {
		return nil
	}
	out := *e
	if e.Kind == ExprSym {
		out.Sym = f(e.Sym)
	}
	if len(e.Args) > 0 {
		out.Args = make([]*Expr, len(e.Args))
		for i, a := range e.Args {
			out.Args[i] = a.Rename(f)
		}
	}
	return &out
}

// Validate checks structural well-formedness.
func (e *Expr) Validate() error {
	if e == nil {
		return fmt.Errorf("nil expression")
	}
	switch e.Kind {
	case ExprLit:
		if e.Lit == nil {
			return fmt.Errorf("literal node without value")
		}
	case ExprSym:
		if e.Sym == "" {
			return fmt.Errorf("symbol node without name")
		}
	case ExprUnary:
		if len(e.Args) != 1 {
			return fmt.Errorf("unary node wants 1 operand, has %d", len(e.Args))
		}
	case ExprBinary:
		if len(e.Args) != 2 {
			return fmt.Errorf("binary node wants 2 operands, has %d", len(e.Args))
		}
	case ExprCast:
		if len(e.Args) != 1 {
			return fmt.Errorf("cast node wants 1 operand, has %d", len(e.Args))
		}
	default:
		return fmt.Errorf("unknown expression kind %q", e.Kind)
	}
	for _, a := range e.Args {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
