package ir

import (
	"fmt"
	"time"
)

// Outcome classifies one completed harness run. Exactly one per
// completed run. Timeout and OracleError are inconclusive: the summary
// must render them distinctly so "inconclusive" is never mistaken for
// "proved".
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeOracleError Outcome = "oracle-error"
)

// Conclusive reports whether the outcome is an actual verdict.
func (o Outcome) Conclusive() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// Assignment is one (injection point, concrete value) pair of a
// counterexample.
type Assignment struct {
	Injection string `json:"injection"`
	Value     Value  `json:"value"`
}

// Counterexample is the concrete value assignment reproducing a property
// violation, ordered by execution order. Every injection point reached
// on the violating trace has exactly one entry; points not reached are
// absent.
type Counterexample struct {
	Assignments []Assignment `json:"assignments"`
}

// ValueFor returns the recorded value for an injection point.
func (c *Counterexample) ValueFor(injection string) (Value, bool) {
	for _, a := range c.Assignments {
		if a.Injection == injection {
			return a.Value, true
		}
	}
	return Value{}, false
}

// VerificationResult is the per-harness outcome of one pipeline run.
type VerificationResult struct {
	Harness string  `json:"harness"`
	Outcome Outcome `json:"outcome"`

	// Counterexample is present only for Failure, and only when the
	// violated property carried a trace.
	Counterexample *Counterexample `json:"counterexample,omitempty"`

	// Violated names the first violated property on Failure.
	Violated *PropertyRef `json:"violated,omitempty"`

	// Unsupported lists untranslatable constructs that the run reached.
	// Presence makes the result inconclusive regardless of Outcome and is
	// never silently dropped.
	Unsupported []string `json:"unsupported,omitempty"`

	// Diagnostics carries the oracle's stderr (OracleError) or other
	// captured detail. Verbatim; the driver never rewrites it.
	Diagnostics string `json:"diagnostics,omitempty"`

	Runtime time.Duration `json:"runtime"`
}

// Conclusive reports whether this result proves or refutes anything:
// inconclusive outcomes and reached unsupported constructs both disqualify.
func (r *VerificationResult) Conclusive() bool {
	return r.Outcome.Conclusive() && len(r.Unsupported) == 0
}

// Matches reports whether the result satisfies an expected outcome.
// Inconclusive results match nothing, including ExpectAny.
func (r *VerificationResult) Matches(want ExpectedOutcome) bool {
	if !r.Conclusive() {
		return false
	}
	switch want {
	case ExpectAny:
		return true
	case ExpectSuccess:
		return r.Outcome == OutcomeSuccess
	case ExpectFailure:
		return r.Outcome == OutcomeFailure
	default:
		return false
	}
}

// Validate enforces the outcome invariants.
func (r *VerificationResult) Validate() error {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeFailure, OutcomeTimeout, OutcomeOracleError:
	default:
		return fmt.Errorf("result %s: unknown outcome %q", r.Harness, r.Outcome)
	}
	if r.Counterexample != nil && r.Outcome != OutcomeFailure {
		return fmt.Errorf("result %s: counterexample on %s outcome", r.Harness, r.Outcome)
	}
	return nil
}
