package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/vex/internal/eval"
	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/oracle"
)

// DefaultCandidates is the integer domain the exhaustive oracle tries
// per injection point. Small on purpose: enough to hit zero divisors,
// sign boundaries, and a couple of ordinary values.
var DefaultCandidates = []int64{-2, -1, 0, 1, 2, 7}

const defaultMaxCombos = 4096

// ExhaustiveOracle decides properties by enumerating every combination
// of candidate values over the unit's injection points and running each
// through the concrete evaluator. A property that fails under some
// combination is FAILURE with that combination as its trace; one that
// never fails is SUCCESS over the explored domain. Coverage checks are
// emitted per marker, and reached unsupported constructs become failing
// unsupported-class properties, the same shapes a real engine reports.
type ExhaustiveOracle struct {
	// Candidates is the per-point integer domain; DefaultCandidates
	// when empty. Booleans always enumerate both values.
	Candidates []int64

	// MaxCombos caps the enumeration; exceeding it is an error rather
	// than a silent partial search.
	MaxCombos int
}

func (o *ExhaustiveOracle) Verify(ctx context.Context, unit *ir.Unit, cfg ir.HarnessConfig) (*oracle.RawResult, error) {
	candidates := o.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	maxCombos := o.MaxCombos
	if maxCombos <= 0 {
		maxCombos = defaultMaxCombos
	}

	domains := make([][]ir.Value, len(unit.Injections))
	total := 1
	for i, p := range unit.Injections {
		domains[i] = pointDomain(p.Typ, candidates)
		total *= len(domains[i])
		if total > maxCombos {
			return nil, fmt.Errorf("exhaustive oracle: %s: domain exceeds %d combinations", unit.Harness, maxCombos)
		}
	}

	violated := make(map[string][]ir.Value) // property id -> first violating combo
	hitMarkers := make(map[string]bool)
	unsupported := make(map[string]bool)

	combo := make([]ir.Value, len(domains))
	var walk func(i int) error
	walk = func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == len(domains) {
			return o.runOnce(unit, combo, violated, hitMarkers, unsupported)
		}
		for _, v := range domains[i] {
			combo[i] = v
			if err := walk(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}

	return o.collect(unit, violated, hitMarkers, unsupported)
}

func (o *ExhaustiveOracle) runOnce(unit *ir.Unit, combo []ir.Value, violated map[string][]ir.Value, hitMarkers, unsupported map[string]bool) error {
	inputs := make(eval.Inputs, len(combo))
	for i, v := range combo {
		inputs[unit.Injections[i].ID] = v
	}
	trace, err := eval.Run(unit, inputs, 0)
	if err != nil {
		return fmt.Errorf("exhaustive oracle: %s: %w", unit.Harness, err)
	}
	for _, m := range trace.Markers {
		hitMarkers[m] = true
	}
	switch trace.Stop {
	case eval.StopViolation:
		id := trace.Violation.Property.ID
		if _, seen := violated[id]; !seen {
			violated[id] = append([]ir.Value(nil), combo...)
		}
	case eval.StopUnsupported:
		unsupported[trace.Unsupported.Construct] = true
	}
	return nil
}

func (o *ExhaustiveOracle) collect(unit *ir.Unit, violated map[string][]ir.Value, hitMarkers, unsupported map[string]bool) (*oracle.RawResult, error) {
	raw := &oracle.RawResult{
		Program:    "exhaustive oracle over " + unit.Harness,
		Properties: []oracle.Property{},
	}

	anyFailed := false
	seen := make(map[string]bool)
	for _, in := range unit.Instrs {
		if in.Property == nil || seen[in.Property.ID] {
			continue
		}
		seen[in.Property.ID] = true
		pid, err := oracle.ParsePropertyID(in.Property.ID)
		if err != nil {
			return nil, fmt.Errorf("exhaustive oracle: %s: %w", unit.Harness, err)
		}
		p := oracle.Property{ID: pid, Status: oracle.StatusSuccess, Description: in.Property.Description}
		if combo, ok := violated[in.Property.ID]; ok {
			anyFailed = true
			p.Status = oracle.StatusFailure
			p.Trace = comboTrace(unit, combo)
		}
		raw.Properties = append(raw.Properties, p)
	}

	constructs := make([]string, 0, len(unsupported))
	for c := range unsupported {
		constructs = append(constructs, c)
	}
	sort.Strings(constructs)
	for i, construct := range constructs {
		anyFailed = true
		raw.Properties = append(raw.Properties, oracle.Property{
			ID:          oracle.PropertyID{Function: unit.Entry, Class: ir.ClassUnsupported, Counter: i + 1},
			Status:      oracle.StatusFailure,
			Description: construct,
		})
	}

	for i, m := range unit.Markers {
		status := oracle.StatusUncovered
		if hitMarkers[m.ID] {
			status = oracle.StatusCovered
		}
		raw.Properties = append(raw.Properties, oracle.Property{
			ID:          oracle.PropertyID{Function: unit.Entry, Class: ir.ClassCoverage, Counter: i + 1},
			Status:      status,
			Description: m.ID,
		})
	}

	raw.ProverStatus = "SUCCESS"
	if anyFailed {
		raw.ProverStatus = "FAILURE"
	}
	return raw, nil
}

// comboTrace renders one input combination as assignment steps, in
// execution (ordinal) order.
func comboTrace(unit *ir.Unit, combo []ir.Value) []oracle.TraceItem {
	items := make([]oracle.TraceItem, 0, len(combo))
	for i, v := range combo {
		p := unit.Injections[i]
		items = append(items, oracle.TraceItem{
			StepType:  "assignment",
			Lhs:       p.Symbol,
			Injection: p.ID,
			Value: &oracle.TraceValue{
				Binary: v.Binary(),
				Data:   v.String(),
				Width:  p.Typ.Width,
			},
		})
	}
	return items
}

func pointDomain(typ ir.Type, candidates []int64) []ir.Value {
	if typ.Kind == ir.KindBool {
		return []ir.Value{ir.BoolValue(false), ir.BoolValue(true)}
	}
	vals := make([]ir.Value, 0, len(candidates))
	seen := make(map[uint64]bool)
	for _, c := range candidates {
		v := ir.IntValue(typ, c)
		if seen[v.Uint64()] {
			continue
		}
		seen[v.Uint64()] = true
		vals = append(vals, v)
	}
	return vals
}
