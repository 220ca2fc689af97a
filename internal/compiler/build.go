package compiler

import (
	"fmt"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// Build translates the harness's target into one verification unit.
// Pure and deterministic: no I/O, no randomness, and stable instruction
// and injection ordering for identical inputs.
func Build(h ir.Harness, cat *catalog.Catalog) (*ir.Unit, error) {
	target, ok := cat.FunctionByName(h.Target)
	if !ok {
		return nil, buildErr(h.Name, ErrUnknownTarget, "", "target %q not in catalog", h.Target)
	}

	b := &builder{
		cat:       cat,
		h:         h,
		symIndex:  make(map[string]int),
		propCount: make(map[string]int),
		globals:   make(map[string]bool),
	}

	for _, g := range cat.Globals {
		typ, ok := cat.TypeByID(g.Type)
		if !ok {
			return nil, buildErr(h.Name, ErrBadStatement, "globals", "unknown type id %q", g.Type)
		}
		b.globals[g.Name] = true
		if err := b.declare(g.Name, typ, ir.StorageGlobal); err != nil {
			return nil, err
		}
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: g.Name, Expr: ir.Lit(ir.ZeroValue(typ))})
	}

	top := b.newFrame(target, "")

	// Every target parameter becomes an unconstrained input and with it
	// an injection point, in declaration order.
	for _, p := range target.Params {
		typ, ok := cat.TypeByID(p.Type)
		if !ok {
			return nil, buildErr(h.Name, ErrBadStatement, target.Name, "param %s: unknown type id %q", p.Name, p.Type)
		}
		span := ir.SourceSpan{File: target.File, Function: target.Name}
		if err := b.havoc(top, p.Name, typ, ir.StorageParam, span); err != nil {
			return nil, err
		}
	}
	if target.Returns != "" {
		typ, ok := cat.TypeByID(target.Returns)
		if !ok {
			return nil, buildErr(h.Name, ErrBadStatement, target.Name, "unknown return type id %q", target.Returns)
		}
		top.retSym = "result"
		top.scope["result"] = typ
		if err := b.declare("result", typ, ir.StorageLocal); err != nil {
			return nil, err
		}
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: "result", Expr: ir.Lit(ir.ZeroValue(typ))})
	}

	for _, c := range h.Clauses {
		if c.Site != ir.SiteEntry {
			continue
		}
		switch c.Kind {
		case ir.ClauseAssumption:
			b.emit(ir.Instr{Op: ir.OpAssume, Expr: c.Expr})
		case ir.ClauseAssertion:
			b.emit(ir.Instr{Op: ir.OpAssert, Expr: c.Expr,
				Property: b.propRef(ir.ClassPrecond, "precondition of "+h.Target)})
		}
	}

	if err := b.lowerStmts(top, target.Body); err != nil {
		return nil, err
	}

	// Epilogue: every return in the top frame lands here.
	epilogue := len(b.instrs)
	for _, c := range h.Clauses {
		if c.Site != ir.SiteReturn {
			continue
		}
		switch c.Kind {
		case ir.ClauseAssumption:
			b.emit(ir.Instr{Op: ir.OpAssume, Expr: c.Expr})
		case ir.ClauseAssertion:
			b.emit(ir.Instr{Op: ir.OpAssert, Expr: c.Expr,
				Property: b.propRef(ir.ClassPostcond, "postcondition of "+h.Target)})
		}
	}
	b.emit(ir.Instr{Op: ir.OpEnd})
	for _, pc := range top.retPatch {
		b.instrs[pc].Target = epilogue
	}

	unit := &ir.Unit{
		Harness:     h.Name,
		Entry:       h.Target,
		Instrs:      b.instrs,
		Symbols:     b.symbols,
		Injections:  b.injections,
		Unsupported: b.unsupported,
	}
	if err := unit.Validate(); err != nil {
		return nil, buildErr(h.Name, ErrInternal, "", "built unit invalid: %v", err)
	}
	return unit, nil
}

type builder struct {
	cat *catalog.Catalog
	h   ir.Harness

	instrs      []ir.Instr
	symbols     []ir.Symbol
	symIndex    map[string]int
	injections  []ir.InjectionPoint
	unsupported []ir.UnsupportedNote
	propCount   map[string]int
	frameCount  int
	callStack   []string
	globals     map[string]bool
}

// frame is one function activation during lowering. The top frame has
// no prefix; inlined callees mangle their locals so names stay unique
// in the flat symbol table.
type frame struct {
	fn       *catalog.Function
	prefix   string
	scope    Scope    // original name -> type
	retSym   string   // mangled name holding the return value
	retPatch []int    // pcs of gotos to this frame's epilogue
}

func (b *builder) newFrame(fn *catalog.Function, prefix string) *frame {
	return &frame{fn: fn, prefix: prefix, scope: Scope{}}
}

// mangle maps an original symbol name to its flat table name. Globals
// are shared across frames and never prefixed.
func (f *frame) mangle(b *builder, name string) string {
	if b.globals[name] {
		return name
	}
	return f.prefix + name
}

func (b *builder) emit(in ir.Instr) int {
	b.instrs = append(b.instrs, in)
	return len(b.instrs) - 1
}

func (b *builder) declare(name string, typ ir.Type, storage ir.StorageClass) error {
	if i, ok := b.symIndex[name]; ok {
		if !b.symbols[i].Typ.Equal(typ) {
			return buildErr(b.h.Name, ErrBadStatement, name,
				"redeclared as %s, previously %s", typ, b.symbols[i].Typ)
		}
		return nil
	}
	b.symIndex[name] = len(b.symbols)
	b.symbols = append(b.symbols, ir.Symbol{Name: name, Typ: typ, Storage: storage})
	return nil
}

// havoc declares a symbol, registers an injection point for it, and
// emits the havoc instruction. Ordinals follow emission order, which is
// the deterministic traversal order required for stable ids.
func (b *builder) havoc(f *frame, orig string, typ ir.Type, storage ir.StorageClass, span ir.SourceSpan) error {
	name := f.mangle(b, orig)
	if err := b.declare(name, typ, storage); err != nil {
		return err
	}
	f.scope[orig] = typ

	ordinal := len(b.injections)
	id, err := ir.InjectionPointID(b.h.Name, ordinal, typ)
	if err != nil {
		return buildErr(b.h.Name, ErrInternal, name, "injection id: %v", err)
	}
	pc := b.emit(ir.Instr{Op: ir.OpHavoc, Dst: name, Injection: id, Span: span})
	b.injections = append(b.injections, ir.InjectionPoint{
		ID:      id,
		Ordinal: ordinal,
		PC:      pc,
		Symbol:  name,
		Typ:     typ,
	})
	return nil
}

// propRef mints the next property reference of a class. Ids follow the
// "<function>.<class>.<counter>" convention the oracle echoes back.
func (b *builder) propRef(class, desc string) *ir.PropertyRef {
	n := b.propCount[class] + 1
	b.propCount[class] = n
	return &ir.PropertyRef{
		ID:          fmt.Sprintf("%s.%s.%d", b.h.Target, class, n),
		Class:       class,
		Description: desc,
	}
}

// lowerExpr lowers a catalog expression in the frame's scope and
// renames symbols into the flat table.
func (b *builder) lowerExpr(f *frame, e *catalog.Expr, where string) (*ir.Expr, error) {
	low, err := LowerExpr(b.cat, f.scope, e)
	if err != nil {
		return nil, buildErr(b.h.Name, ErrBadExpression, where, "%v", err)
	}
	return low.Rename(func(name string) string { return f.mangle(b, name) }), nil
}

// emitDivGuards walks a lowered expression and asserts a nonzero
// divisor ahead of every division or remainder, innermost first.
func (b *builder) emitDivGuards(e *ir.Expr, span ir.SourceSpan) {
	if e == nil {
		return
	}
	for _, a := range e.Args {
		b.emitDivGuards(a, span)
	}
	if e.Kind == ir.ExprBinary && (e.Bin == ir.BinDiv || e.Bin == ir.BinRem) {
		divisor := e.Args[1]
		cond := ir.Binary(ir.BinNe, divisor, ir.Lit(ir.ZeroValue(divisor.Typ)))
		b.emit(ir.Instr{
			Op:       ir.OpAssert,
			Expr:     cond,
			Property: b.propRef(ir.ClassDivByZero, "divisor is nonzero"),
			Span:     span,
		})
	}
}

func (b *builder) span(f *frame, s catalog.Stmt) ir.SourceSpan {
	if s.Line == 0 {
		return ir.SourceSpan{}
	}
	end := s.EndLine
	if end == 0 {
		end = s.Line
	}
	return ir.SourceSpan{
		File:      f.fn.File,
		Function:  f.fn.Name,
		StartLine: s.Line,
		EndLine:   end,
	}
}
