package session

import (
	"time"

	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/registry"
)

// HarnessReport is one harness's outcome within a run. Err is non-nil
// for reconstruction failures; the result is still valid (the verdict
// stands without its counterexample).
type HarnessReport struct {
	Harness ir.Harness
	Result  ir.VerificationResult
	Err     error
}

// Matched reports whether the outcome satisfies the harness's declared
// expectation. Inconclusive results never match.
func (r HarnessReport) Matched() bool {
	return r.Result.Matches(r.Harness.Config.Expected)
}

// Summary is the batch result of one run: every scheduled harness with
// its outcome, every function skipped before scheduling, and the
// aggregated coverage report.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Reports  []HarnessReport
	Skips    []registry.Skip
	Coverage *coverage.Report
}

// Count returns how many harnesses ended with the given outcome.
func (s *Summary) Count(outcome ir.Outcome) int {
	n := 0
	for _, r := range s.Reports {
		if r.Result.Outcome == outcome {
			n++
		}
	}
	return n
}

// Inconclusive returns how many harnesses produced no usable verdict:
// timeouts, engine errors, and runs that reached unsupported
// constructs. Rendered distinctly from Success/Failure so "inconclusive"
// can never read as "proved".
func (s *Summary) Inconclusive() int {
	n := 0
	for _, r := range s.Reports {
		if !r.Result.Conclusive() {
			n++
		}
	}
	return n
}

// Mismatched returns the harnesses whose conclusive outcome contradicts
// their declared expectation.
func (s *Summary) Mismatched() []HarnessReport {
	var out []HarnessReport
	for _, r := range s.Reports {
		if r.Result.Conclusive() && !r.Matched() {
			out = append(out, r)
		}
	}
	return out
}

// Ok reports whether the run as a whole is clean: every harness
// conclusive and matching its expectation, and no reconstruction
// errors.
func (s *Summary) Ok() bool {
	for _, r := range s.Reports {
		if r.Err != nil || !r.Matched() {
			return false
		}
	}
	return true
}
