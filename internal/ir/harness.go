package ir

import (
	"fmt"
	"time"
)

// HarnessKind discriminates how a harness came to exist. Downstream
// components operate on the shared fields and branch on the kind only
// where policy differs (synthesized harnesses are best-effort and never
// fail a batch).
type HarnessKind string

const (
	// KindExplicit harnesses come from front-end annotations.
	KindExplicit HarnessKind = "explicit"

	// KindContractCheck harnesses check a function contract or loop
	// invariant lowered into assumptions and assertions.
	KindContractCheck HarnessKind = "contract-check"

	// KindSynthesized harnesses are proposed by autoharness mode, one per
	// eligible function.
	KindSynthesized HarnessKind = "synthesized"
)

// ExpectedOutcome lets a harness declare what verdict counts as "ok" in
// the batch summary. Inconclusive outcomes never match any expectation.
type ExpectedOutcome string

const (
	ExpectSuccess ExpectedOutcome = "success"
	ExpectFailure ExpectedOutcome = "failure"
	ExpectAny     ExpectedOutcome = "any"
)

// HarnessConfig is the per-harness verification configuration. Resolved
// once at registry-population time; immutable thereafter.
type HarnessConfig struct {
	// Unwind bounds loop/recursion depth explored by the oracle and the
	// builder's recursion inlining.
	Unwind uint32 `json:"unwind" yaml:"unwind"`

	// Stubs substitutes callee references before inlining decisions:
	// calls to a key are redirected to its value.
	Stubs map[string]string `json:"stubs,omitempty" yaml:"stubs,omitempty"`

	// SolverFlags are passed to the oracle verbatim.
	SolverFlags []string `json:"solver_flags,omitempty" yaml:"solver_flags,omitempty"`

	// Timeout bounds the oracle subprocess. Expiry is a hard kill.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Expected is the outcome this harness is supposed to produce.
	Expected ExpectedOutcome `json:"expected" yaml:"expected"`
}

// ClauseKind tags a lowered contract clause.
type ClauseKind string

const (
	ClauseAssumption ClauseKind = "assumption"
	ClauseAssertion  ClauseKind = "assertion"
)

// ClauseSite says where in the synthesized harness a clause attaches.
type ClauseSite string

const (
	SiteEntry    ClauseSite = "entry"
	SiteReturn   ClauseSite = "return"
	SiteLoopHead ClauseSite = "loop-head"
)

// ContractClause is one lowered pre/post-condition or loop invariant:
// a tagged {assumption, assertion} variant attached to an IR site. The
// builder injects clauses mechanically; what became an assumption versus
// an assertion is registry policy.
type ContractClause struct {
	Kind   ClauseKind `json:"kind"`
	Site   ClauseSite `json:"site"`
	LoopID string     `json:"loop_id,omitempty"` // SiteLoopHead only
	Expr   *Expr      `json:"expr"`
}

// Harness is a designated verification entry point. Created at
// registry-population time; immutable thereafter; lives for one pipeline
// run.
type Harness struct {
	// Name is the qualified harness name. Synthesized and contract
	// harnesses derive names from their target, e.g.
	// "acme::div.autoharness" or "acme::sum.loop_1.base".
	Name string `json:"name"`

	Kind HarnessKind `json:"kind"`

	// Target is the function the harness exercises.
	Target string `json:"target"`

	Config HarnessConfig `json:"config"`

	// Clauses are the lowered contract parts, empty for plain explicit
	// harnesses.
	Clauses []ContractClause `json:"clauses,omitempty"`

	// LoopPhase distinguishes the base-case and inductive-step harnesses
	// a loop invariant lowers to: "base", "step", or empty.
	LoopPhase string `json:"loop_phase,omitempty"`
}

// Validate checks harness well-formedness.
func (h Harness) Validate() error {
	if h.Name == "" || h.Target == "" {
		return fmt.Errorf("harness needs name and target")
	}
	switch h.Kind {
	case KindExplicit, KindContractCheck, KindSynthesized:
	default:
		return fmt.Errorf("harness %s: unknown kind %q", h.Name, h.Kind)
	}
	switch h.Config.Expected {
	case ExpectSuccess, ExpectFailure, ExpectAny:
	default:
		return fmt.Errorf("harness %s: unknown expected outcome %q", h.Name, h.Config.Expected)
	}
	for i, c := range h.Clauses {
		if c.Expr == nil {
			return fmt.Errorf("harness %s: clause %d without expression", h.Name, i)
		}
		if c.Site == SiteLoopHead && c.LoopID == "" {
			return fmt.Errorf("harness %s: clause %d at loop head without loop id", h.Name, i)
		}
	}
	return nil
}
