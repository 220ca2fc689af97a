package compiler

import (
	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// lowerStmts translates a statement list into flat instructions.
func (b *builder) lowerStmts(f *frame, body []catalog.Stmt) error {
	for i := range body {
		if err := b.lowerStmt(f, body[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) lowerStmt(f *frame, s catalog.Stmt) error {
	span := b.span(f, s)
	where := f.fn.Name

	switch s.Kind {
	case catalog.StmtNop:
		b.emit(ir.Instr{Op: ir.OpNop, Span: span})
		return nil

	case catalog.StmtAssign:
		if s.Dst == "" || s.Expr == nil {
			return buildErr(b.h.Name, ErrBadStatement, where, "assign needs dst and expr")
		}
		if s.Type != "" {
			typ, ok := b.cat.TypeByID(s.Type)
			if !ok {
				return buildErr(b.h.Name, ErrBadStatement, where, "unknown type id %q", s.Type)
			}
			if err := b.declare(f.mangle(b, s.Dst), typ, ir.StorageLocal); err != nil {
				return err
			}
			f.scope[s.Dst] = typ
		}
		if _, ok := f.scope[s.Dst]; !ok && !b.globals[s.Dst] {
			return buildErr(b.h.Name, ErrUnknownSymbol, where, "assignment to undeclared %q", s.Dst)
		}
		expr, err := b.lowerExpr(f, s.Expr, where)
		if err != nil {
			return err
		}
		b.emitDivGuards(expr, span)
		b.emit(ir.Instr{Op: ir.OpAssign, Dst: f.mangle(b, s.Dst), Expr: expr, Span: span})
		return nil

	case catalog.StmtHavoc:
		if s.Dst == "" || s.Type == "" {
			return buildErr(b.h.Name, ErrBadStatement, where, "havoc needs dst and type")
		}
		typ, ok := b.cat.TypeByID(s.Type)
		if !ok {
			return buildErr(b.h.Name, ErrBadStatement, where, "unknown type id %q", s.Type)
		}
		return b.havoc(f, s.Dst, typ, ir.StorageLocal, span)

	case catalog.StmtAssume:
		if s.Expr == nil {
			return buildErr(b.h.Name, ErrBadStatement, where, "assume needs a condition")
		}
		expr, err := b.lowerExpr(f, s.Expr, where)
		if err != nil {
			return err
		}
		b.emitDivGuards(expr, span)
		b.emit(ir.Instr{Op: ir.OpAssume, Expr: expr, Span: span})
		return nil

	case catalog.StmtAssert:
		if s.Expr == nil {
			return buildErr(b.h.Name, ErrBadStatement, where, "assert needs a condition")
		}
		expr, err := b.lowerExpr(f, s.Expr, where)
		if err != nil {
			return err
		}
		b.emitDivGuards(expr, span)
		desc := s.Msg
		if desc == "" {
			desc = "assertion in " + f.fn.Name
		}
		b.emit(ir.Instr{
			Op:       ir.OpAssert,
			Expr:     expr,
			Property: b.propRef(ir.ClassAssertion, desc),
			Span:     span,
		})
		return nil

	case catalog.StmtIf:
		return b.lowerIf(f, s, span, where)

	case catalog.StmtWhile:
		return b.lowerWhile(f, s, span, where)

	case catalog.StmtCall:
		return b.lowerCall(f, s, span, where)

	case catalog.StmtReturn:
		if s.Expr != nil {
			if f.retSym == "" {
				return buildErr(b.h.Name, ErrBadStatement, where, "value returned from a function without a return type")
			}
			expr, err := b.lowerExpr(f, s.Expr, where)
			if err != nil {
				return err
			}
			b.emitDivGuards(expr, span)
			b.emit(ir.Instr{Op: ir.OpAssign, Dst: f.retSym, Expr: expr, Span: span})
		}
		// Jump to the frame epilogue; target patched when the frame
		// finishes.
		pc := b.emit(ir.Instr{Op: ir.OpGoto, Span: span})
		f.retPatch = append(f.retPatch, pc)
		return nil

	default:
		b.markUnsupported(span, string(s.Kind), f.fn.Name)
		return nil
	}
}

// lowerIf emits:
//
//	branch cond -> THEN
//	  else...
//	  goto END
//	THEN: then...
//	END: nop
func (b *builder) lowerIf(f *frame, s catalog.Stmt, span ir.SourceSpan, where string) error {
	if s.Expr == nil {
		return buildErr(b.h.Name, ErrBadStatement, where, "if needs a condition")
	}
	cond, err := b.lowerExpr(f, s.Expr, where)
	if err != nil {
		return err
	}
	b.emitDivGuards(cond, span)

	branch := b.emit(ir.Instr{Op: ir.OpBranch, Expr: cond, Span: span})
	if err := b.lowerStmts(f, s.Else); err != nil {
		return err
	}
	skip := b.emit(ir.Instr{Op: ir.OpGoto})

	b.instrs[branch].Target = len(b.instrs)
	if err := b.lowerStmts(f, s.Then); err != nil {
		return err
	}

	end := b.emit(ir.Instr{Op: ir.OpNop})
	b.instrs[skip].Target = end
	return nil
}

// lowerWhile keeps the loop as a backward goto; the oracle bounds it by
// the harness's unwind setting. Invariant clauses for this loop attach
// here: assumptions at the head, assertions at the head for the base
// phase and on the back edge for the step phase.
//
//	HEAD: [head clauses]
//	  branch !cond -> END
//	  body...
//	  [back-edge clauses]
//	  goto HEAD
//	END: nop
func (b *builder) lowerWhile(f *frame, s catalog.Stmt, span ir.SourceSpan, where string) error {
	if s.Expr == nil {
		return buildErr(b.h.Name, ErrBadStatement, where, "while needs a condition")
	}

	head, backEdge := b.loopClauses(f, s.LoopID)

	headPC := len(b.instrs)
	for _, in := range head {
		b.emit(in)
	}

	cond, err := b.lowerExpr(f, s.Expr, where)
	if err != nil {
		return err
	}
	b.emitDivGuards(cond, span)
	exit := b.emit(ir.Instr{Op: ir.OpBranch, Expr: ir.Unary(ir.UnNot, cond), Span: span})

	if err := b.lowerStmts(f, s.Body); err != nil {
		return err
	}
	for _, in := range backEdge {
		b.emit(in)
	}
	b.emit(ir.Instr{Op: ir.OpGoto, Target: headPC, Span: span})

	end := b.emit(ir.Instr{Op: ir.OpNop})
	b.instrs[exit].Target = end
	return nil
}

// loopClauses assembles the instructions a loop's invariant clauses
// contribute. Clauses only apply in the top frame: an inlined callee's
// loops are not the harness's loops.
func (b *builder) loopClauses(f *frame, loopID string) (head, backEdge []ir.Instr) {
	if f.prefix != "" || loopID == "" {
		return nil, nil
	}
	for _, c := range b.h.Clauses {
		if c.Site != ir.SiteLoopHead || c.LoopID != loopID {
			continue
		}
		switch c.Kind {
		case ir.ClauseAssumption:
			head = append(head, ir.Instr{Op: ir.OpAssume, Expr: c.Expr})
		case ir.ClauseAssertion:
			in := ir.Instr{
				Op:       ir.OpAssert,
				Expr:     c.Expr,
				Property: b.propRef(ir.ClassLoopInv, "loop invariant "+loopID),
			}
			if b.h.LoopPhase == "step" {
				backEdge = append(backEdge, in)
			} else {
				head = append(head, in)
			}
		}
	}
	return head, backEdge
}

func (b *builder) markUnsupported(span ir.SourceSpan, construct, function string) {
	pc := b.emit(ir.Instr{
		Op:     ir.OpUnsupported,
		Reason: construct,
		Span:   span,
	})
	b.unsupported = append(b.unsupported, ir.UnsupportedNote{
		PC:        pc,
		Construct: construct,
		Function:  function,
	})
}
