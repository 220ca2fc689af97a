package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

func i64(n int64) *int64 { return &n }

func sym(typ, name string) *catalog.Expr {
	return &catalog.Expr{Kind: "sym", Type: typ, Sym: name}
}

func lit(typ string, n int64) *catalog.Expr {
	return &catalog.Expr{Kind: "lit", Type: typ, Int: i64(n)}
}

func bin(typ, op string, a, b *catalog.Expr) *catalog.Expr {
	return &catalog.Expr{Kind: "binary", Type: typ, Op: op, Args: []*catalog.Expr{a, b}}
}

// testCatalog builds the divide example: a function whose division is
// guarded only by its contract, plus an explicit harness over it.
func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		FormatVersion: "1",
		Types: map[string]ir.Type{
			"bool": ir.BoolType(),
			"i32":  ir.IntType(true, 32, "i32"),
		},
		Functions: map[string]*catalog.Function{
			"divide": {
				Name: "divide",
				Params: []catalog.Param{
					{Name: "a", Type: "i32"},
					{Name: "b", Type: "i32"},
				},
				Returns: "i32",
				File:    "src/math.x",
				Body: []catalog.Stmt{
					{Kind: catalog.StmtReturn, Expr: bin("i32", "div", sym("i32", "a"), sym("i32", "b")), Line: 4},
				},
			},
			"check_divide": {
				Name: "check_divide",
				File: "src/math.x",
				Body: []catalog.Stmt{
					{Kind: catalog.StmtHavoc, Dst: "x", Type: "i32", Line: 10},
					{Kind: catalog.StmtHavoc, Dst: "y", Type: "i32", Line: 11},
					{Kind: catalog.StmtCall, Dst: "q", Callee: "divide",
						Args: []*catalog.Expr{sym("i32", "x"), sym("i32", "y")}, Line: 12},
				},
			},
		},
	}
}

func harness(name, target string, kind ir.HarnessKind) ir.Harness {
	return ir.Harness{
		Name:   name,
		Kind:   kind,
		Target: target,
		Config: ir.HarnessConfig{Unwind: 4, Expected: ir.ExpectSuccess},
	}
}

func opSequence(u *ir.Unit) []ir.Opcode {
	ops := make([]ir.Opcode, len(u.Instrs))
	for i, in := range u.Instrs {
		ops[i] = in.Op
	}
	return ops
}

func TestBuildSynthesizedHarness(t *testing.T) {
	cat := testCatalog()
	h := harness("divide.autoharness", "divide", ir.KindSynthesized)

	unit, err := Build(h, cat)
	require.NoError(t, err)
	require.NoError(t, unit.Validate())

	assert.Equal(t, "divide.autoharness", unit.Harness)
	assert.Equal(t, "divide", unit.Entry)

	// Both parameters become unconstrained inputs, in declaration order.
	require.Len(t, unit.Injections, 2)
	assert.Equal(t, "a", unit.Injections[0].Symbol)
	assert.Equal(t, "b", unit.Injections[1].Symbol)
	assert.Equal(t, 0, unit.Injections[0].Ordinal)
	assert.Equal(t, 1, unit.Injections[1].Ordinal)

	// The division gets a nonzero-divisor assertion.
	var guard *ir.Instr
	for i := range unit.Instrs {
		if unit.Instrs[i].Op == ir.OpAssert {
			guard = &unit.Instrs[i]
		}
	}
	require.NotNil(t, guard)
	assert.Equal(t, ir.ClassDivByZero, guard.Property.Class)
	assert.Equal(t, "divide.division-by-zero.1", guard.Property.ID)

	assert.Equal(t, ir.OpEnd, unit.Instrs[len(unit.Instrs)-1].Op)
	assert.Empty(t, unit.Unsupported)
}

func TestBuildIsDeterministic(t *testing.T) {
	cat := testCatalog()
	h := harness("divide.autoharness", "divide", ir.KindSynthesized)

	first, err := Build(h, cat)
	require.NoError(t, err)
	second, err := Build(h, cat)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildExplicitHarnessInlinesCallee(t *testing.T) {
	cat := testCatalog()
	h := harness("check_divide", "check_divide", ir.KindExplicit)

	unit, err := Build(h, cat)
	require.NoError(t, err)

	// Two explicit havocs in the harness body; divide's params are bound
	// from them, not havocked again.
	require.Len(t, unit.Injections, 2)
	assert.Equal(t, "x", unit.Injections[0].Symbol)
	assert.Equal(t, "y", unit.Injections[1].Symbol)

	// The inlined division carries its guard into the harness unit.
	found := false
	for _, in := range unit.Instrs {
		if in.Op == ir.OpAssert && in.Property.Class == ir.ClassDivByZero {
			found = true
		}
	}
	assert.True(t, found, "inlined body must keep its division guard")

	// Inlined locals are mangled, so the caller's names survive.
	_, ok := unit.Lookup("q")
	assert.True(t, ok)
}

func TestBuildContractHarness(t *testing.T) {
	cat := testCatalog()
	i32 := ir.IntType(true, 32, "i32")
	h := harness("divide.contract", "divide", ir.KindContractCheck)
	h.Clauses = []ir.ContractClause{
		{
			Kind: ir.ClauseAssumption,
			Site: ir.SiteEntry,
			Expr: ir.Binary(ir.BinNe, ir.Sym("b", i32), ir.Lit(ir.IntValue(i32, 0))),
		},
		{
			Kind: ir.ClauseAssertion,
			Site: ir.SiteReturn,
			Expr: ir.Binary(ir.BinEq, ir.Sym("result", i32), ir.Sym("result", i32)),
		},
	}

	unit, err := Build(h, cat)
	require.NoError(t, err)

	ops := opSequence(unit)
	assert.Contains(t, ops, ir.OpAssume)

	var post *ir.Instr
	for i := range unit.Instrs {
		in := &unit.Instrs[i]
		if in.Op == ir.OpAssert && in.Property.Class == ir.ClassPostcond {
			post = in
		}
	}
	require.NotNil(t, post, "ensures clause must become a return-site assertion")

	// The assumption precedes the body; the postcondition follows it.
	assumeAt, postAt := -1, -1
	for i, in := range unit.Instrs {
		if in.Op == ir.OpAssume {
			assumeAt = i
		}
		if in.Op == ir.OpAssert && in.Property != nil && in.Property.Class == ir.ClassPostcond {
			postAt = i
		}
	}
	assert.Less(t, assumeAt, postAt)
}

func TestBuildRecursionHitsUnwindAssertion(t *testing.T) {
	cat := testCatalog()
	cat.Functions["countdown"] = &catalog.Function{
		Name:    "countdown",
		Params:  []catalog.Param{{Name: "n", Type: "i32"}},
		Returns: "i32",
		Body: []catalog.Stmt{
			{
				Kind: catalog.StmtIf,
				Expr: bin("bool", "le", sym("i32", "n"), lit("i32", 0)),
				Then: []catalog.Stmt{{Kind: catalog.StmtReturn, Expr: lit("i32", 0)}},
			},
			{
				Kind: catalog.StmtCall, Dst: "r", Callee: "countdown",
				Args: []*catalog.Expr{bin("i32", "sub", sym("i32", "n"), lit("i32", 1))},
			},
			{Kind: catalog.StmtReturn, Expr: sym("i32", "r")},
		},
	}
	h := harness("countdown.autoharness", "countdown", ir.KindSynthesized)
	h.Config.Unwind = 2

	unit, err := Build(h, cat)
	require.NoError(t, err)

	count := 0
	for _, in := range unit.Instrs {
		if in.Op == ir.OpAssert && in.Property.Class == ir.ClassUnwind {
			count++
			require.NotNil(t, in.Expr.Lit)
			assert.True(t, in.Expr.Lit.IsZero(), "unwinding assertion is assert(false)")
		}
	}
	assert.Equal(t, 1, count, "exactly one unwinding assertion past the bound")
}

func TestBuildUnknownCalleeIsUnsupportedNotFatal(t *testing.T) {
	cat := testCatalog()
	cat.Functions["caller"] = &catalog.Function{
		Name: "caller",
		Body: []catalog.Stmt{
			{Kind: catalog.StmtCall, Callee: "missing", Line: 3},
			{Kind: catalog.StmtAssert, Expr: &catalog.Expr{Kind: "lit", Type: "bool", Bool: boolPtr(true)}, Line: 4},
		},
		File: "src/ext.x",
	}
	h := harness("caller.autoharness", "caller", ir.KindSynthesized)

	unit, err := Build(h, cat)
	require.NoError(t, err)

	require.Len(t, unit.Unsupported, 1)
	note := unit.Unsupported[0]
	assert.Equal(t, "caller", note.Function)
	assert.Contains(t, note.Construct, "missing")
	assert.Equal(t, ir.OpUnsupported, unit.Instrs[note.PC].Op)
}

func TestBuildExternalContractActsAsStub(t *testing.T) {
	cat := testCatalog()
	cat.Functions["clamp"] = &catalog.Function{
		Name:     "clamp",
		External: true,
		Params:   []catalog.Param{{Name: "v", Type: "i32"}},
		Returns:  "i32",
		Contract: &catalog.Contract{
			Requires: []*catalog.Expr{bin("bool", "ge", sym("i32", "v"), lit("i32", 0))},
			Ensures:  []*catalog.Expr{bin("bool", "ge", sym("i32", "result"), lit("i32", 0))},
		},
	}
	cat.Functions["use_clamp"] = &catalog.Function{
		Name:   "use_clamp",
		Params: []catalog.Param{{Name: "x", Type: "i32"}},
		Body: []catalog.Stmt{
			{Kind: catalog.StmtCall, Dst: "c", Callee: "clamp", Args: []*catalog.Expr{sym("i32", "x")}},
		},
	}
	h := harness("use_clamp.autoharness", "use_clamp", ir.KindSynthesized)

	unit, err := Build(h, cat)
	require.NoError(t, err)
	assert.Empty(t, unit.Unsupported)

	var precond bool
	var assumes int
	for _, in := range unit.Instrs {
		if in.Op == ir.OpAssert && in.Property.Class == ir.ClassPrecond {
			precond = true
		}
		if in.Op == ir.OpAssume {
			assumes++
		}
	}
	assert.True(t, precond, "requires becomes an assertion at the call site")
	assert.Equal(t, 1, assumes, "ensures becomes an assumption over the havocked result")

	// The havocked result is an injection point alongside the parameter.
	assert.Len(t, unit.Injections, 2)
}

func TestBuildStubRedirectsCall(t *testing.T) {
	cat := testCatalog()
	cat.Functions["fake_divide"] = &catalog.Function{
		Name: "fake_divide",
		Params: []catalog.Param{
			{Name: "a", Type: "i32"},
			{Name: "b", Type: "i32"},
		},
		Returns: "i32",
		Body: []catalog.Stmt{
			{Kind: catalog.StmtReturn, Expr: lit("i32", 1)},
		},
	}
	h := harness("check_divide", "check_divide", ir.KindExplicit)
	h.Config.Stubs = map[string]string{"divide": "fake_divide"}

	unit, err := Build(h, cat)
	require.NoError(t, err)

	// The stub body has no division, so no guard shows up.
	for _, in := range unit.Instrs {
		if in.Op == ir.OpAssert {
			assert.NotEqual(t, ir.ClassDivByZero, in.Property.Class)
		}
	}
}

func TestBuildUnknownTargetFails(t *testing.T) {
	cat := testCatalog()
	h := harness("ghost", "ghost", ir.KindExplicit)

	_, err := Build(h, cat)
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrUnknownTarget, be.Code)
}

// testLoopFunction sums 0..n with a while loop.
func testLoopFunction() *catalog.Function {
	return &catalog.Function{
		Name:    "sum",
		Params:  []catalog.Param{{Name: "n", Type: "i32"}},
		Returns: "i32",
		File:    "src/sum.x",
		Body: []catalog.Stmt{
			{Kind: catalog.StmtAssign, Dst: "i", Type: "i32", Expr: lit("i32", 0), Line: 2},
			{Kind: catalog.StmtAssign, Dst: "acc", Type: "i32", Expr: lit("i32", 0), Line: 3},
			{
				Kind: catalog.StmtWhile, LoopID: "loop_0", Line: 4,
				Expr: bin("bool", "lt", sym("i32", "i"), sym("i32", "n")),
				Body: []catalog.Stmt{
					{Kind: catalog.StmtAssign, Dst: "acc",
						Expr: bin("i32", "add", sym("i32", "acc"), sym("i32", "i")), Line: 5},
					{Kind: catalog.StmtAssign, Dst: "i",
						Expr: bin("i32", "add", sym("i32", "i"), lit("i32", 1)), Line: 6},
				},
			},
			{Kind: catalog.StmtReturn, Expr: sym("i32", "acc"), Line: 8},
		},
	}
}

func TestBuildLoopStaysBounded(t *testing.T) {
	cat := testCatalog()
	cat.Functions["sum"] = testLoopFunction()
	h := harness("sum.autoharness", "sum", ir.KindSynthesized)

	unit, err := Build(h, cat)
	require.NoError(t, err)

	// The loop survives as a backward goto for the oracle to bound.
	backward := false
	for pc, in := range unit.Instrs {
		if in.Op == ir.OpGoto && in.Target < pc {
			backward = true
		}
	}
	assert.True(t, backward)
}

func boolPtr(b bool) *bool { return &b }
