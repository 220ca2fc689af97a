package compiler

import (
	"fmt"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// lowerCall resolves a call through stubs, then either inlines the
// callee, applies an external callee's contract, or marks the site
// unsupported. Recursion inlines up to the harness's unwind bound; one
// past the bound an unwinding assertion fires so a too-small bound can
// never report silent success.
func (b *builder) lowerCall(f *frame, s catalog.Stmt, span ir.SourceSpan, where string) error {
	name := s.Callee
	if stub, ok := b.h.Config.Stubs[name]; ok {
		name = stub
	}

	callee, ok := b.cat.FunctionByName(name)
	if !ok {
		b.markUnsupported(span, fmt.Sprintf("call to unknown function %s", name), f.fn.Name)
		return b.declareCallDst(f, s, span, where)
	}

	if callee.External || len(callee.Body) == 0 {
		if callee.Contract != nil {
			return b.applyContractStub(f, s, callee, span, where)
		}
		b.markUnsupported(span, fmt.Sprintf("call to external function %s", name), f.fn.Name)
		return b.declareCallDst(f, s, span, where)
	}

	if len(s.Args) != len(callee.Params) {
		return buildErr(b.h.Name, ErrArityMismatch, where,
			"call to %s with %d args, wants %d", name, len(s.Args), len(callee.Params))
	}

	if b.occurrences(name) >= int(b.h.Config.Unwind) {
		b.emit(ir.Instr{
			Op:       ir.OpAssert,
			Expr:     ir.Lit(ir.BoolValue(false)),
			Property: b.propRef(ir.ClassUnwind, "recursion bound reached for "+name),
			Span:     span,
		})
		return b.declareCallDst(f, s, span, where)
	}

	return b.inlineCall(f, s, callee, span, where)
}

func (b *builder) occurrences(name string) int {
	n := 0
	for _, frame := range b.callStack {
		if frame == name {
			n++
		}
	}
	return n
}

// inlineCall splices the callee body in place. Callee locals are
// prefixed with a per-activation mangle so repeated or recursive
// inlining never collides in the flat symbol table.
func (b *builder) inlineCall(f *frame, s catalog.Stmt, callee *catalog.Function, span ir.SourceSpan, where string) error {
	b.frameCount++
	prefix := fmt.Sprintf("%s$%d::", callee.Name, b.frameCount)
	cf := b.newFrame(callee, prefix)

	// Bind arguments: evaluated in the caller's frame, stored into the
	// callee's mangled parameters.
	for i, p := range callee.Params {
		typ, ok := b.cat.TypeByID(p.Type)
		if !ok {
			return buildErr(b.h.Name, ErrBadStatement, callee.Name, "param %s: unknown type id %q", p.Name, p.Type)
		}
		arg, err := b.lowerExpr(f, s.Args[i], where)
		if err != nil {
			return err
		}
		if !arg.Typ.Equal(typ) {
			return buildErr(b.h.Name, ErrBadExpression, where,
				"argument %d of %s typed %s, wants %s", i, callee.Name, arg.Typ, typ)
		}
		mangled := cf.mangle(b, p.Name)
		if err := b.declare(mangled, typ, ir.StorageParam); err != nil {
			return err
		}
		cf.scope[p.Name] = typ
		b.emitDivGuards(arg, span)
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: mangled, Expr: arg, Span: span})
	}

	if callee.Returns != "" {
		typ, ok := b.cat.TypeByID(callee.Returns)
		if !ok {
			return buildErr(b.h.Name, ErrBadStatement, callee.Name, "unknown return type id %q", callee.Returns)
		}
		cf.retSym = prefix + "result"
		cf.scope["result"] = typ
		if err := b.declare(cf.retSym, typ, ir.StorageTemp); err != nil {
			return err
		}
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: cf.retSym, Expr: ir.Lit(ir.ZeroValue(typ))})
	}

	b.callStack = append(b.callStack, callee.Name)
	err := b.lowerStmts(cf, callee.Body)
	b.callStack = b.callStack[:len(b.callStack)-1]
	if err != nil {
		return err
	}

	// Callee epilogue: returns land on the next instruction.
	epilogue := b.emit(ir.Instr{Op: ir.OpNop})
	for _, pc := range cf.retPatch {
		b.instrs[pc].Target = epilogue
	}

	return b.bindCallResult(f, s, cf.retSym, span, where)
}

// applyContractStub models an external callee by its contract: assert
// the requires clauses over the arguments, produce an unconstrained
// result, and assume the ensures clauses over it.
func (b *builder) applyContractStub(f *frame, s catalog.Stmt, callee *catalog.Function, span ir.SourceSpan, where string) error {
	if len(s.Args) != len(callee.Params) {
		return buildErr(b.h.Name, ErrArityMismatch, where,
			"call to %s with %d args, wants %d", callee.Name, len(s.Args), len(callee.Params))
	}

	// Contract expressions speak in the callee's parameter names; bind
	// the arguments to fresh temporaries carrying those names.
	b.frameCount++
	prefix := fmt.Sprintf("%s$%d::", callee.Name, b.frameCount)
	cf := b.newFrame(callee, prefix)
	for i, p := range callee.Params {
		typ, ok := b.cat.TypeByID(p.Type)
		if !ok {
			return buildErr(b.h.Name, ErrBadStatement, callee.Name, "param %s: unknown type id %q", p.Name, p.Type)
		}
		arg, err := b.lowerExpr(f, s.Args[i], where)
		if err != nil {
			return err
		}
		mangled := cf.mangle(b, p.Name)
		if err := b.declare(mangled, typ, ir.StorageTemp); err != nil {
			return err
		}
		cf.scope[p.Name] = typ
		b.emitDivGuards(arg, span)
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: mangled, Expr: arg, Span: span})
	}

	for i, e := range callee.Contract.Requires {
		expr, err := b.lowerExpr(cf, e, callee.Name)
		if err != nil {
			return err
		}
		b.emit(ir.Instr{
			Op:       ir.OpAssert,
			Expr:     expr,
			Property: b.propRef(ir.ClassPrecond, fmt.Sprintf("precondition %d of %s", i+1, callee.Name)),
			Span:     span,
		})
	}

	if callee.Returns != "" {
		typ, ok := b.cat.TypeByID(callee.Returns)
		if !ok {
			return buildErr(b.h.Name, ErrBadStatement, callee.Name, "unknown return type id %q", callee.Returns)
		}
		cf.retSym = prefix + "result"
		if err := b.havoc(cf, "result", typ, ir.StorageTemp, span); err != nil {
			return err
		}
	}

	for _, e := range callee.Contract.Ensures {
		expr, err := b.lowerExpr(cf, e, callee.Name)
		if err != nil {
			return err
		}
		b.emit(ir.Instr{Op: ir.OpAssume, Expr: expr, Span: span})
	}

	return b.bindCallResult(f, s, cf.retSym, span, where)
}

// bindCallResult assigns the callee's result symbol into the caller's
// destination, declaring it on first use.
func (b *builder) bindCallResult(f *frame, s catalog.Stmt, retSym string, span ir.SourceSpan, where string) error {
	if s.Dst == "" {
		return nil
	}
	if retSym == "" {
		return buildErr(b.h.Name, ErrBadStatement, where,
			"call result bound from %s, which returns nothing", s.Callee)
	}
	i, ok := b.symIndex[retSym]
	if !ok {
		return buildErr(b.h.Name, ErrInternal, where, "missing result symbol %s", retSym)
	}
	typ := b.symbols[i].Typ
	dst := f.mangle(b, s.Dst)
	if err := b.declare(dst, typ, ir.StorageLocal); err != nil {
		return err
	}
	f.scope[s.Dst] = typ
	b.emit(ir.Instr{Op: ir.OpAssign, Dst: dst, Expr: ir.Sym(retSym, typ), Span: span})
	return nil
}

// declareCallDst keeps later uses of a call destination well-typed when
// the call site itself could not be translated. The declared type comes
// from the statement when present, otherwise the destination is left
// undeclared and later uses report it.
func (b *builder) declareCallDst(f *frame, s catalog.Stmt, span ir.SourceSpan, where string) error {
	if s.Dst == "" || s.Type == "" {
		return nil
	}
	typ, ok := b.cat.TypeByID(s.Type)
	if !ok {
		return buildErr(b.h.Name, ErrBadStatement, where, "unknown type id %q", s.Type)
	}
	dst := f.mangle(b, s.Dst)
	if err := b.declare(dst, typ, ir.StorageLocal); err != nil {
		return err
	}
	f.scope[s.Dst] = typ
	b.emit(ir.Instr{Op: ir.OpAssign, Dst: dst, Expr: ir.Lit(ir.ZeroValue(typ)), Span: span})
	return nil
}
