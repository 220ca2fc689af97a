package playback

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/vex/internal/eval"
	"github.com/roach88/vex/internal/ir"
)

// Test is one synthesized reproduction: a harness, the property it
// re-triggers, and a complete substitution table covering every
// injection point of the unit.
type Test struct {
	Name          string          `json:"name"`
	Harness       string          `json:"harness"`
	Target        string          `json:"target"`
	Property      ir.PropertyRef  `json:"property"`
	Substitutions []ir.Assignment `json:"substitutions"`

	// Symbols holds, per substitution, the name of the symbol the
	// injection point havocs. Cosmetic: used for emitted comments only.
	Symbols []string `json:"symbols,omitempty"`
}

// Synthesize builds the reproduction for one failing run. The
// counterexample may be nil or empty (a violation with no
// nondeterministic input); unreached injection points get the zero
// value of their declared type. Every recorded assignment must name an
// injection point of the unit with a matching type.
func Synthesize(unit *ir.Unit, cex *ir.Counterexample, violated *ir.PropertyRef) (*Test, error) {
	if violated == nil {
		return nil, fmt.Errorf("playback: harness %s: no violated property", unit.Harness)
	}

	recorded := make(map[string]ir.Value)
	if cex != nil {
		for _, a := range cex.Assignments {
			point, ok := unit.InjectionByID(a.Injection)
			if !ok {
				return nil, fmt.Errorf("playback: harness %s: counterexample names unknown injection point %s",
					unit.Harness, a.Injection)
			}
			if !a.Value.Typ.Equal(point.Typ) {
				return nil, fmt.Errorf("playback: harness %s: injection %s: value type %s does not match declared %s",
					unit.Harness, a.Injection, a.Value.Typ, point.Typ)
			}
			if _, dup := recorded[a.Injection]; dup {
				return nil, fmt.Errorf("playback: harness %s: injection %s recorded twice", unit.Harness, a.Injection)
			}
			recorded[a.Injection] = a.Value
		}
	}

	points := append([]ir.InjectionPoint(nil), unit.Injections...)
	sort.Slice(points, func(i, j int) bool { return points[i].Ordinal < points[j].Ordinal })

	subs := make([]ir.Assignment, 0, len(points))
	symbols := make([]string, 0, len(points))
	for _, p := range points {
		v, ok := recorded[p.ID]
		if !ok {
			v = ir.ZeroValue(p.Typ)
		}
		subs = append(subs, ir.Assignment{Injection: p.ID, Value: v})
		symbols = append(symbols, p.Symbol)
	}

	hash, err := ir.PlaybackHash(unit.Harness, subs)
	if err != nil {
		return nil, fmt.Errorf("playback: harness %s: %w", unit.Harness, err)
	}

	return &Test{
		Name:          "playback_" + identifier(unit.Harness) + "_" + hash,
		Harness:       unit.Harness,
		Target:        unit.Entry,
		Property:      *violated,
		Substitutions: subs,
		Symbols:       symbols,
	}, nil
}

// Inputs renders the substitution table for the evaluator.
func (t *Test) Inputs() eval.Inputs {
	in := make(eval.Inputs, len(t.Substitutions))
	for _, s := range t.Substitutions {
		in[s.Injection] = s.Value
	}
	return in
}

// Verify replays the reproduction through the concrete evaluator and
// reports an error unless it violates exactly the recorded property.
// This is the correctness law of the synthesizer.
func (t *Test) Verify(unit *ir.Unit) error {
	trace, err := eval.Run(unit, t.Inputs(), 0)
	if err != nil {
		return fmt.Errorf("playback %s: %w", t.Name, err)
	}
	if trace.Stop != eval.StopViolation {
		return fmt.Errorf("playback %s: run stopped with %s, expected a violation of %s",
			t.Name, trace.Stop, t.Property.ID)
	}
	if trace.Violation.Property.ID != t.Property.ID {
		return fmt.Errorf("playback %s: violated %s, expected %s",
			t.Name, trace.Violation.Property.ID, t.Property.ID)
	}
	return nil
}

// identifier folds a qualified harness name into a Go identifier
// fragment.
func identifier(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
