package ir

import "fmt"

// Opcode discriminates IR instructions. The instruction set is
// deliberately primitive: explicit jumps over a flat program-counter
// model, with all structured control flow lowered away by the builder.
type Opcode string

const (
	// OpAssign stores Expr into Dst.
	OpAssign Opcode = "assign"

	// OpAssume constrains execution: paths where Expr is false are
	// discarded by the oracle (and stop a concrete replay benignly).
	OpAssume Opcode = "assume"

	// OpAssert checks a property. Property carries class and description.
	OpAssert Opcode = "assert"

	// OpGoto jumps unconditionally to Target.
	OpGoto Opcode = "goto"

	// OpBranch jumps to Target when Expr is true, else falls through.
	OpBranch Opcode = "branch"

	// OpHavoc stores an unconstrained value of Dst's type into Dst.
	// Injection names the injection point this site is bound to.
	OpHavoc Opcode = "havoc"

	// OpMark is a coverage marker: a no-op that records reachability of
	// the source region named by Marker. Never alters semantics.
	OpMark Opcode = "mark"

	// OpNop does nothing. Used as a patch target during lowering.
	OpNop Opcode = "nop"

	// OpUnsupported marks a construct the builder could not translate.
	// Reaching it must surface as an UnsupportedConstruct outcome, never
	// be silently dropped.
	OpUnsupported Opcode = "unsupported"

	// OpEnd terminates the program. Exactly one per unit, at the tail.
	OpEnd Opcode = "end"
)

// PropertyRef identifies what an assertion checks. The serialized
// property id the oracle reports back is "<function>.<class>.<counter>",
// assigned stably at build time.
type PropertyRef struct {
	ID          string `json:"id"`
	Class       string `json:"class"`
	Description string `json:"description"`
}

// Property classes the builder emits. The oracle may add its own (e.g.
// unwinding assertions for loops it bounds itself).
const (
	ClassAssertion   = "assertion"
	ClassDivByZero   = "division-by-zero"
	ClassOverflow    = "overflow"
	ClassPrecond     = "precondition"
	ClassPostcond    = "postcondition"
	ClassLoopInv     = "loop-invariant"
	ClassUnwind      = "unwind"
	ClassUnsupported = "unsupported"
	ClassCoverage    = "code_coverage"
)

// SourceSpan locates an instruction in the front-end's source model.
type SourceSpan struct {
	File      string `json:"file,omitempty"`
	Function  string `json:"function,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// RegionID returns the stable identifier of the source region this span
// belongs to. Regions are keyed by file and line range within a function.
func (s SourceSpan) RegionID() string {
	return fmt.Sprintf("%s:%d-%d@%s", s.File, s.StartLine, s.EndLine, s.Function)
}

// IsZero reports a completely absent location.
func (s SourceSpan) IsZero() bool {
	return s == SourceSpan{}
}

// Instr is one IR instruction. Which fields are meaningful depends on Op;
// see the Opcode constants.
type Instr struct {
	Op        Opcode       `json:"op"`
	Dst       string       `json:"dst,omitempty"`
	Expr      *Expr        `json:"expr,omitempty"`
	Target    int          `json:"target,omitempty"`
	Property  *PropertyRef `json:"property,omitempty"`
	Injection string       `json:"injection,omitempty"`
	Marker    string       `json:"marker,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Span      SourceSpan   `json:"span,omitzero"`
}

// Validate checks per-opcode field requirements and jump target bounds.
func (in Instr) Validate(programLen int) error {
	switch in.Op {
	case OpAssign:
		if in.Dst == "" || in.Expr == nil {
			return fmt.Errorf("assign needs dst and expr")
		}
	case OpAssume, OpAssert:
		if in.Expr == nil {
			return fmt.Errorf("%s needs a condition", in.Op)
		}
		if in.Op == OpAssert && in.Property == nil {
			return fmt.Errorf("assert needs a property reference")
		}
	case OpGoto, OpBranch:
		if in.Target < 0 || in.Target >= programLen {
			return fmt.Errorf("%s target %d out of range [0,%d)", in.Op, in.Target, programLen)
		}
		if in.Op == OpBranch && in.Expr == nil {
			return fmt.Errorf("branch needs a condition")
		}
	case OpHavoc:
		if in.Dst == "" || in.Injection == "" {
			return fmt.Errorf("havoc needs dst and injection id")
		}
	case OpMark:
		if in.Marker == "" {
			return fmt.Errorf("mark needs a marker id")
		}
	case OpUnsupported:
		if in.Reason == "" {
			return fmt.Errorf("unsupported marker needs a reason")
		}
	case OpNop, OpEnd:
	default:
		return fmt.Errorf("unknown opcode %q", in.Op)
	}
	if in.Expr != nil {
		if err := in.Expr.Validate(); err != nil {
			return fmt.Errorf("%s: %w", in.Op, err)
		}
	}
	return nil
}
