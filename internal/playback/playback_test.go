package playback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/compiler"
	"github.com/roach88/vex/internal/eval"
	"github.com/roach88/vex/internal/ir"
)

func i32() ir.Type { return ir.IntType(true, 32, "i32") }

func divideCatalog() *catalog.Catalog {
	t := "i32"
	return &catalog.Catalog{
		FormatVersion: "1",
		Types: map[string]ir.Type{
			"bool": ir.BoolType(),
			"i32":  i32(),
		},
		Functions: map[string]*catalog.Function{
			"divide": {
				Name: "divide",
				Params: []catalog.Param{
					{Name: "a", Type: t},
					{Name: "b", Type: t},
				},
				Returns: t,
				File:    "src/math.x",
				Body: []catalog.Stmt{
					{Kind: catalog.StmtReturn, Line: 4, Expr: &catalog.Expr{
						Kind: "binary", Type: t, Op: "div",
						Args: []*catalog.Expr{
							{Kind: "sym", Type: t, Sym: "a"},
							{Kind: "sym", Type: t, Sym: "b"},
						},
					}},
				},
			},
		},
	}
}

func buildDivide(t *testing.T, name string) *ir.Unit {
	t.Helper()
	h := ir.Harness{
		Name:   name,
		Kind:   ir.KindSynthesized,
		Target: "divide",
		Config: ir.HarnessConfig{Unwind: 4, Expected: ir.ExpectAny},
	}
	unit, err := compiler.Build(h, divideCatalog())
	require.NoError(t, err)
	return unit
}

// divideByZeroCex runs the unit concretely to obtain a genuine
// counterexample for the division guard.
func divideByZeroCex(t *testing.T, unit *ir.Unit) (*ir.Counterexample, *ir.PropertyRef) {
	t.Helper()
	inputs := eval.Inputs{
		unit.Injections[0].ID: ir.IntValue(i32(), 7),
		unit.Injections[1].ID: ir.IntValue(i32(), 0),
	}
	trace, err := eval.Run(unit, inputs, 0)
	require.NoError(t, err)
	require.Equal(t, eval.StopViolation, trace.Stop)

	cex := &ir.Counterexample{Assignments: []ir.Assignment{
		{Injection: unit.Injections[0].ID, Value: ir.IntValue(i32(), 7)},
		{Injection: unit.Injections[1].ID, Value: ir.IntValue(i32(), 0)},
	}}
	prop := trace.Violation.Property
	return cex, &prop
}

func TestSynthesizeReplaysSameViolation(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, prop := divideByZeroCex(t, unit)

	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	assert.Equal(t, "check_divide", pt.Harness)
	assert.Equal(t, "divide", pt.Target)
	require.Len(t, pt.Substitutions, 2)

	require.NoError(t, pt.Verify(unit))
}

func TestSynthesizeFillsUnreachedPointsWithZero(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	_, prop := divideByZeroCex(t, unit)

	// Only b recorded; a stays unconstrained and gets the zero value.
	cex := &ir.Counterexample{Assignments: []ir.Assignment{
		{Injection: unit.Injections[1].ID, Value: ir.IntValue(i32(), 0)},
	}}

	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	require.Len(t, pt.Substitutions, 2)
	assert.True(t, pt.Substitutions[0].Value.IsZero())

	require.NoError(t, pt.Verify(unit))
}

func TestSynthesizeNameIsValueSensitive(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, prop := divideByZeroCex(t, unit)

	a, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	b, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	assert.Equal(t, a.Name, b.Name, "same values, same name")

	other := &ir.Counterexample{Assignments: []ir.Assignment{
		{Injection: unit.Injections[0].ID, Value: ir.IntValue(i32(), 8)},
		{Injection: unit.Injections[1].ID, Value: ir.IntValue(i32(), 0)},
	}}
	c, err := Synthesize(unit, other, prop)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, c.Name, "different values, different name")
}

func TestSynthesizeRejectsForeignInjection(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	_, prop := divideByZeroCex(t, unit)

	cex := &ir.Counterexample{Assignments: []ir.Assignment{
		{Injection: "nope", Value: ir.IntValue(i32(), 0)},
	}}
	_, err := Synthesize(unit, cex, prop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown injection point")
}

func TestSynthesizeZeroInjectionBoundary(t *testing.T) {
	// A violation needing no nondeterministic input: assert(false)
	// directly. The substitution table is empty and the reproduction
	// still re-triggers.
	unit := &ir.Unit{
		Harness: "check_trivial",
		Entry:   "trivial",
		Instrs: []ir.Instr{
			{Op: ir.OpAssert, Expr: ir.Lit(ir.BoolValue(false)),
				Property: &ir.PropertyRef{ID: "trivial.assertion.1", Class: ir.ClassAssertion, Description: "always fails"}},
			{Op: ir.OpEnd},
		},
	}
	require.NoError(t, unit.Validate())

	pt, err := Synthesize(unit, &ir.Counterexample{}, &ir.PropertyRef{
		ID: "trivial.assertion.1", Class: ir.ClassAssertion,
	})
	require.NoError(t, err)
	assert.Empty(t, pt.Substitutions)
	require.NoError(t, pt.Verify(unit))
}

func TestVerifyDetectsWrongProperty(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, _ := divideByZeroCex(t, unit)

	pt, err := Synthesize(unit, cex, &ir.PropertyRef{ID: "divide.assertion.9", Class: ir.ClassAssertion})
	require.NoError(t, err)
	err = pt.Verify(unit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "divide.assertion.9")
}

func TestVerifyDetectsNonViolatingRun(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	_, prop := divideByZeroCex(t, unit)

	// b = 2 divides cleanly; the replay runs to the end.
	cex := &ir.Counterexample{Assignments: []ir.Assignment{
		{Injection: unit.Injections[0].ID, Value: ir.IntValue(i32(), 7)},
		{Injection: unit.Injections[1].ID, Value: ir.IntValue(i32(), 2)},
	}}
	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	err = pt.Verify(unit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a violation")
}

func TestSourceEmission(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, prop := divideByZeroCex(t, unit)

	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	src, err := pt.Source("playback")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "divide_playback_source", src)
}

func TestEmitBundlesUnitAndSource(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, prop := divideByZeroCex(t, unit)

	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	art, err := pt.Emit(unit, "playback")
	require.NoError(t, err)

	assert.Equal(t, pt.Name+"_test.go", art.SourcePath)
	assert.Equal(t, "testdata/"+pt.Name+".json", art.UnitPath)
	assert.Contains(t, string(art.Source), pt.Name)
	assert.Contains(t, string(art.Unit), unit.Injections[0].ID)
}

func TestReplayRoundTrip(t *testing.T) {
	unit := buildDivide(t, "check_divide")
	cex, prop := divideByZeroCex(t, unit)

	pt, err := Synthesize(unit, cex, prop)
	require.NoError(t, err)
	art, err := pt.Emit(unit, "playback")
	require.NoError(t, err)

	unitPath := filepath.Join(t.TempDir(), pt.Name+".json")
	require.NoError(t, os.WriteFile(unitPath, art.Unit, 0o644))

	subs := make(map[string]string, len(pt.Substitutions))
	for _, s := range pt.Substitutions {
		subs[s.Injection] = s.Value.Binary()
	}
	Replay(t, unitPath, subs, prop.ID)
}
