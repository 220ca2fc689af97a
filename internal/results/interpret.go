package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/oracle"
)

// ReconstructionError means a violation trace could not be mapped back
// onto the unit's injection table: an interpreter/builder contract
// mismatch, always surfaced to the user.
type ReconstructionError struct {
	Harness  string
	Property string
	Detail   string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("counterexample reconstruction failed for %s (%s): %s",
		e.Harness, e.Property, e.Detail)
}

// Interpret classifies one raw engine capture. Pure: no I/O, and the
// inputs are not mutated. The error return is non-nil exactly for
// reconstruction failures; the accompanying result is still valid (a
// Failure without a counterexample, diagnostics explaining why).
func Interpret(raw *oracle.RawResult, unit *ir.Unit, runtime time.Duration) (ir.VerificationResult, error) {
	res := ir.VerificationResult{
		Harness: unit.Harness,
		Runtime: runtime,
	}

	if raw.TimedOut {
		res.Outcome = ir.OutcomeTimeout
		res.Diagnostics = strings.TrimSpace(raw.Stderr)
		return res, nil
	}
	if !raw.HasResult() {
		res.Outcome = ir.OutcomeOracleError
		res.Diagnostics = "no result item in engine output"
		return res, nil
	}

	var (
		failed       *oracle.Property
		undetermined []string
	)
	for i := range raw.Properties {
		p := &raw.Properties[i]
		if p.ID.Class == ir.ClassCoverage {
			// Coverage checks are reachability data, not verdicts.
			continue
		}
		if p.ID.Class == ir.ClassUnsupported && !p.Status.Holds() {
			res.Unsupported = append(res.Unsupported, unsupportedDetail(p))
			continue
		}
		switch {
		case p.Status.Failed():
			if failed == nil {
				failed = p
			}
		case p.Status.Inconclusive():
			undetermined = append(undetermined, p.ID.String())
		}
	}

	if failed != nil {
		res.Outcome = ir.OutcomeFailure
		res.Violated = violatedRef(failed, unit)
		cex, err := reconstruct(failed, unit)
		if err != nil {
			res.Diagnostics = err.Error()
			return res, err
		}
		res.Counterexample = cex
		return res, nil
	}

	if len(undetermined) > 0 {
		res.Outcome = ir.OutcomeOracleError
		res.Diagnostics = "undetermined properties: " + strings.Join(undetermined, ", ")
		return res, nil
	}

	res.Outcome = ir.OutcomeSuccess
	return res, nil
}

func unsupportedDetail(p *oracle.Property) string {
	if p.Description != "" {
		return p.Description
	}
	return p.ID.String()
}

// violatedRef prefers the unit's own property reference; checks the
// engine introduced itself (its own unwinding assertions) are
// synthesized from the reported id.
func violatedRef(p *oracle.Property, unit *ir.Unit) *ir.PropertyRef {
	id := p.ID.String()
	for i := range unit.Instrs {
		if prop := unit.Instrs[i].Property; prop != nil && prop.ID == id {
			ref := *prop
			return &ref
		}
	}
	return &ir.PropertyRef{ID: id, Class: p.ID.Class, Description: p.Description}
}

// reconstruct replays the violation trace against the injection table.
// Assignment steps bound to an injection id yield one counterexample
// entry each, in execution order; a point havocked repeatedly (loops)
// keeps its first value, matching the replay semantics of a single
// substitution per point. Unknown ids and width mismatches abort with a
// ReconstructionError; values are never clamped to fit.
func reconstruct(p *oracle.Property, unit *ir.Unit) (*ir.Counterexample, error) {
	if len(p.Trace) == 0 {
		return nil, nil
	}
	cex := &ir.Counterexample{}
	seen := make(map[string]bool)
	for _, step := range p.Trace {
		if step.StepType != "assignment" || step.Injection == "" {
			continue
		}
		if seen[step.Injection] {
			continue
		}
		point, ok := unit.InjectionByID(step.Injection)
		if !ok {
			return nil, &ReconstructionError{
				Harness:  unit.Harness,
				Property: p.ID.String(),
				Detail:   fmt.Sprintf("trace names unknown injection point %s", step.Injection),
			}
		}
		if step.Value == nil {
			return nil, &ReconstructionError{
				Harness:  unit.Harness,
				Property: p.ID.String(),
				Detail:   fmt.Sprintf("assignment to %s carries no value", step.Injection),
			}
		}
		if step.Value.Width != 0 && step.Value.Width != point.Typ.Width {
			return nil, &ReconstructionError{
				Harness:  unit.Harness,
				Property: p.ID.String(),
				Detail: fmt.Sprintf("value width %d does not fit %s (declared %s)",
					step.Value.Width, point.ID, point.Typ),
			}
		}
		v, err := ir.ParseBinary(point.Typ, step.Value.Binary)
		if err != nil {
			return nil, &ReconstructionError{
				Harness:  unit.Harness,
				Property: p.ID.String(),
				Detail:   err.Error(),
			}
		}
		seen[step.Injection] = true
		cex.Assignments = append(cex.Assignments, ir.Assignment{
			Injection: step.Injection,
			Value:     v,
		})
	}
	if len(cex.Assignments) == 0 {
		return nil, nil
	}
	return cex, nil
}

// CoveredRegions extracts reachability hints from a capture: the source
// regions of coverage checks the engine reported reached. Valid even
// for Failure or partial Timeout captures, up to the cutoff.
func CoveredRegions(raw *oracle.RawResult, unit *ir.Unit) []string {
	markerRegion := make(map[string]string, len(unit.Markers))
	for _, m := range unit.Markers {
		markerRegion[m.ID] = m.Region
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range raw.Properties {
		if p.ID.Class != ir.ClassCoverage || p.Status != oracle.StatusCovered {
			continue
		}
		// Coverage check descriptions carry the marker id.
		region, ok := markerRegion[p.Description]
		if !ok || seen[region] {
			continue
		}
		seen[region] = true
		out = append(out, region)
	}
	return out
}
