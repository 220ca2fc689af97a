package registry

import (
	"fmt"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/compiler"
	"github.com/roach88/vex/internal/ir"
)

// lowerContract turns one function contract into contract-check
// harnesses. Requires clauses become assumptions at entry; ensures
// clauses become assertions at every return site. Each loop invariant
// yields two harnesses over the same target: a base harness asserting
// the invariant on first entry to the loop head, and a step harness
// that assumes it at the head and asserts it is re-established.
func lowerContract(cat *catalog.Catalog, fn *catalog.Function, opts Options, ov *Overrides) ([]ir.Harness, error) {
	scope := compiler.Scope{}
	for _, p := range fn.Params {
		typ, ok := cat.TypeByID(p.Type)
		if !ok {
			return nil, fmt.Errorf("param %s: unknown type id %q", p.Name, p.Type)
		}
		scope[p.Name] = typ
	}
	retScope := compiler.Scope{}
	for k, v := range scope {
		retScope[k] = v
	}
	if fn.Returns != "" {
		typ, ok := cat.TypeByID(fn.Returns)
		if !ok {
			return nil, fmt.Errorf("unknown return type id %q", fn.Returns)
		}
		retScope["result"] = typ
	}

	var pre, post []ir.ContractClause
	for i, e := range fn.Contract.Requires {
		expr, err := compiler.LowerExpr(cat, scope, e)
		if err != nil {
			return nil, fmt.Errorf("requires[%d]: %w", i, err)
		}
		pre = append(pre, ir.ContractClause{Kind: ir.ClauseAssumption, Site: ir.SiteEntry, Expr: expr})
	}
	for i, e := range fn.Contract.Ensures {
		expr, err := compiler.LowerExpr(cat, retScope, e)
		if err != nil {
			return nil, fmt.Errorf("ensures[%d]: %w", i, err)
		}
		post = append(post, ir.ContractClause{Kind: ir.ClauseAssertion, Site: ir.SiteReturn, Expr: expr})
	}

	var out []ir.Harness
	if len(pre)+len(post) > 0 {
		clauses := append(append([]ir.ContractClause(nil), pre...), post...)
		out = append(out, ir.Harness{
			Name:    fn.Name + ".contract",
			Kind:    ir.KindContractCheck,
			Target:  fn.Name,
			Config:  resolveConfig(fn.Name+".contract", fn.HarnessConfig, opts, ov),
			Clauses: clauses,
		})
	}

	// Loop invariants may reference body-declared locals (counters,
	// accumulators), not only parameters.
	loopScope := compiler.Scope{}
	for k, v := range scope {
		loopScope[k] = v
	}
	collectDeclared(cat, fn.Body, loopScope)

	for i, li := range fn.Contract.LoopInvariants {
		inv, err := compiler.LowerExpr(cat, loopScope, li.Invariant)
		if err != nil {
			return nil, fmt.Errorf("loop_invariants[%d]: %w", i, err)
		}

		base := ir.Harness{
			Name:      fmt.Sprintf("%s.%s.base", fn.Name, li.Loop),
			Kind:      ir.KindContractCheck,
			Target:    fn.Name,
			Config:    resolveConfig(fmt.Sprintf("%s.%s.base", fn.Name, li.Loop), fn.HarnessConfig, opts, ov),
			LoopPhase: "base",
			Clauses: append(append([]ir.ContractClause(nil), pre...), ir.ContractClause{
				Kind:   ir.ClauseAssertion,
				Site:   ir.SiteLoopHead,
				LoopID: li.Loop,
				Expr:   inv,
			}),
		}
		step := ir.Harness{
			Name:      fmt.Sprintf("%s.%s.step", fn.Name, li.Loop),
			Kind:      ir.KindContractCheck,
			Target:    fn.Name,
			Config:    resolveConfig(fmt.Sprintf("%s.%s.step", fn.Name, li.Loop), fn.HarnessConfig, opts, ov),
			LoopPhase: "step",
			Clauses: append(append([]ir.ContractClause(nil), pre...),
				ir.ContractClause{
					Kind:   ir.ClauseAssumption,
					Site:   ir.SiteLoopHead,
					LoopID: li.Loop,
					Expr:   inv,
				},
				ir.ContractClause{
					Kind:   ir.ClauseAssertion,
					Site:   ir.SiteLoopHead,
					LoopID: li.Loop,
					Expr:   inv,
				}),
		}
		out = append(out, base, step)
	}
	return out, nil
}

// collectDeclared records the type of every symbol a statement tree
// declares (assign or havoc with a declared type id). Unknown type ids
// are left out; expression lowering reports them as unknown symbols.
func collectDeclared(cat *catalog.Catalog, body []catalog.Stmt, scope compiler.Scope) {
	for _, s := range body {
		if s.Dst != "" && s.Type != "" {
			if typ, ok := cat.TypeByID(s.Type); ok {
				scope[s.Dst] = typ
			}
		}
		collectDeclared(cat, s.Then, scope)
		collectDeclared(cat, s.Else, scope)
		collectDeclared(cat, s.Body, scope)
	}
}
