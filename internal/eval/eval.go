package eval

import (
	"errors"
	"fmt"

	"github.com/roach88/vex/internal/ir"
)

// DefaultMaxSteps bounds a single run. Concrete inputs make loop counts
// finite but potentially huge; a replay that runs this long is treated
// as divergent rather than left spinning.
const DefaultMaxSteps = 1 << 20

// ErrDiverged reports a run that exhausted its step budget.
var ErrDiverged = errors.New("eval: step budget exhausted")

// Inputs substitutes concrete values for injection points, keyed by
// injection id. Missing entries read as the zero value of the point's
// type.
type Inputs map[string]ir.Value

// StopReason says how a run ended.
type StopReason string

const (
	// StopEnd: the program ran to its end instruction.
	StopEnd StopReason = "end"

	// StopAssume: an assumption evaluated false; the path is vacuous,
	// not wrong.
	StopAssume StopReason = "assume"

	// StopViolation: an assertion evaluated false.
	StopViolation StopReason = "violation"

	// StopUnsupported: execution reached a construct the builder could
	// not translate.
	StopUnsupported StopReason = "unsupported"
)

// Violation identifies the failed assertion of a StopViolation run.
type Violation struct {
	PC       int
	Property ir.PropertyRef
}

// Trace is the observable outcome of one concrete run.
type Trace struct {
	Stop        StopReason
	Violation   *Violation
	Unsupported *ir.UnsupportedNote
	Markers     []string // marker ids in first-hit order
	Steps       int
	Final       map[string]ir.Value
}

// HitRegions maps the trace's markers back to their source regions.
func (t *Trace) HitRegions(u *ir.Unit) []string {
	byID := make(map[string]string, len(u.Markers))
	for _, m := range u.Markers {
		byID[m.ID] = m.Region
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range t.Markers {
		region := byID[id]
		if region == "" || seen[region] {
			continue
		}
		seen[region] = true
		out = append(out, region)
	}
	return out
}

// Run executes the unit with the given inputs. maxSteps <= 0 selects
// DefaultMaxSteps. Errors mean the unit or the inputs are malformed
// (unknown symbols, type mismatches, divergence); a failing assertion
// is a normal StopViolation trace, not an error.
func Run(u *ir.Unit, inputs Inputs, maxSteps int) (*Trace, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	state := make(map[string]ir.Value, len(u.Symbols))
	trace := &Trace{Final: state}
	markerSeen := make(map[string]bool)

	pc := 0
	for trace.Steps = 0; trace.Steps < maxSteps; trace.Steps++ {
		if pc < 0 || pc >= len(u.Instrs) {
			return nil, fmt.Errorf("eval: pc %d out of range in %s", pc, u.Harness)
		}
		in := u.Instrs[pc]

		switch in.Op {
		case ir.OpNop, ir.OpMark:
			if in.Op == ir.OpMark && !markerSeen[in.Marker] {
				markerSeen[in.Marker] = true
				trace.Markers = append(trace.Markers, in.Marker)
			}

		case ir.OpAssign:
			v, err := evalExpr(state, in.Expr)
			if err != nil {
				return nil, fmt.Errorf("eval: pc %d: %w", pc, err)
			}
			state[in.Dst] = v

		case ir.OpHavoc:
			sym, ok := u.Lookup(in.Dst)
			if !ok {
				return nil, fmt.Errorf("eval: pc %d: unknown symbol %q", pc, in.Dst)
			}
			v, ok := inputs[in.Injection]
			if !ok {
				v = ir.ZeroValue(sym.Typ)
			}
			if !v.Typ.Equal(sym.Typ) {
				return nil, fmt.Errorf("eval: pc %d: input for %s typed %s, symbol is %s",
					pc, in.Injection, v.Typ, sym.Typ)
			}
			state[in.Dst] = v

		case ir.OpAssume:
			v, err := evalExpr(state, in.Expr)
			if err != nil {
				return nil, fmt.Errorf("eval: pc %d: %w", pc, err)
			}
			if v.IsZero() {
				trace.Stop = StopAssume
				return trace, nil
			}

		case ir.OpAssert:
			v, err := evalExpr(state, in.Expr)
			if err != nil {
				return nil, fmt.Errorf("eval: pc %d: %w", pc, err)
			}
			if v.IsZero() {
				trace.Stop = StopViolation
				trace.Violation = &Violation{PC: pc, Property: *in.Property}
				return trace, nil
			}

		case ir.OpGoto:
			pc = in.Target
			continue

		case ir.OpBranch:
			v, err := evalExpr(state, in.Expr)
			if err != nil {
				return nil, fmt.Errorf("eval: pc %d: %w", pc, err)
			}
			if !v.IsZero() {
				pc = in.Target
				continue
			}

		case ir.OpUnsupported:
			trace.Stop = StopUnsupported
			note := findNote(u, pc)
			trace.Unsupported = &note
			return trace, nil

		case ir.OpEnd:
			trace.Stop = StopEnd
			return trace, nil

		default:
			return nil, fmt.Errorf("eval: pc %d: unknown opcode %q", pc, in.Op)
		}
		pc++
	}
	return nil, fmt.Errorf("%w: %s after %d steps", ErrDiverged, u.Harness, maxSteps)
}

func findNote(u *ir.Unit, pc int) ir.UnsupportedNote {
	for _, n := range u.Unsupported {
		if n.PC == pc {
			return n
		}
	}
	return ir.UnsupportedNote{PC: pc, Construct: u.Instrs[pc].Reason}
}

// evalExpr evaluates an expression over the current state by straight
// recursion; the builder guarantees expressions are side-effect free.
func evalExpr(state map[string]ir.Value, e *ir.Expr) (ir.Value, error) {
	switch e.Kind {
	case ir.ExprLit:
		return *e.Lit, nil

	case ir.ExprSym:
		v, ok := state[e.Sym]
		if !ok {
			return ir.Value{}, fmt.Errorf("read of unset symbol %q", e.Sym)
		}
		return v, nil

	case ir.ExprUnary:
		a, err := evalExpr(state, e.Args[0])
		if err != nil {
			return ir.Value{}, err
		}
		return ir.ApplyUn(e.Un, a)

	case ir.ExprBinary:
		a, err := evalExpr(state, e.Args[0])
		if err != nil {
			return ir.Value{}, err
		}
		// Logical operators short-circuit.
		switch e.Bin {
		case ir.BinLAnd:
			if a.IsZero() {
				return ir.BoolValue(false), nil
			}
		case ir.BinLOr:
			if !a.IsZero() {
				return ir.BoolValue(true), nil
			}
		}
		b, err := evalExpr(state, e.Args[1])
		if err != nil {
			return ir.Value{}, err
		}
		return ir.ApplyBin(e.Bin, a, b)

	case ir.ExprCast:
		a, err := evalExpr(state, e.Args[0])
		if err != nil {
			return ir.Value{}, err
		}
		return ir.Convert(a, e.Typ), nil

	default:
		return ir.Value{}, fmt.Errorf("unknown expression kind %q", e.Kind)
	}
}
