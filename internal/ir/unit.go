package ir

import "fmt"

// InjectionPoint is an IR location producing an unconstrained value of a
// given type. IDs are content-addressed over (harness, ordinal, type) so
// rebuilding the same harness yields the same identifiers - see hash.go.
type InjectionPoint struct {
	ID      string `json:"id"`
	Ordinal int    `json:"ordinal"` // deterministic traversal order
	PC      int    `json:"pc"`
	Symbol  string `json:"symbol"`
	Typ     Type   `json:"type"`
}

// CoverageMarker ties a source region to one IR location. A region may
// own several markers (inlining duplicates bodies); the invariant is that
// every reachable source statement maps to at least one marker.
type CoverageMarker struct {
	ID     string `json:"id"`
	Region string `json:"region"`
	PC     int    `json:"pc"`
}

// UnsupportedNote records a construct the builder could not translate.
type UnsupportedNote struct {
	PC        int    `json:"pc"`
	Construct string `json:"construct"`
	Function  string `json:"function"`
}

// Unit is one translated program per harness: a flat instruction sequence
// with explicit jump targets, the symbol table, and the injection point
// table. A Unit is owned by the builder until handed over and must be
// treated as immutable afterwards; the instrumentor returns a new Unit
// rather than mutating in place.
type Unit struct {
	Harness     string            `json:"harness"`
	Entry       string            `json:"entry"` // target function qualified name
	Instrs      []Instr           `json:"instructions"`
	Symbols     []Symbol          `json:"symbols"` // ordered; Lookup for access
	Injections  []InjectionPoint  `json:"injections"`
	Markers     []CoverageMarker  `json:"markers,omitempty"` // set by instrumentation
	Unsupported []UnsupportedNote `json:"unsupported,omitempty"`
}

// Lookup finds a symbol by name.
func (u *Unit) Lookup(name string) (Symbol, bool) {
	for _, s := range u.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// InjectionByID finds an injection point by identifier.
func (u *Unit) InjectionByID(id string) (InjectionPoint, bool) {
	for _, p := range u.Injections {
		if p.ID == id {
			return p, true
		}
	}
	return InjectionPoint{}, false
}

// InjectionAt finds the injection point bound to the instruction at pc.
func (u *Unit) InjectionAt(pc int) (InjectionPoint, bool) {
	for _, p := range u.Injections {
		if p.PC == pc {
			return p, true
		}
	}
	return InjectionPoint{}, false
}

// Validate checks internal consistency: instruction well-formedness,
// terminal OpEnd, and that every injection point references a havoc
// instruction of its own type.
func (u *Unit) Validate() error {
	if len(u.Instrs) == 0 {
		return fmt.Errorf("unit %s: empty program", u.Harness)
	}
	if u.Instrs[len(u.Instrs)-1].Op != OpEnd {
		return fmt.Errorf("unit %s: program must end with %s", u.Harness, OpEnd)
	}
	for pc, in := range u.Instrs {
		if err := in.Validate(len(u.Instrs)); err != nil {
			return fmt.Errorf("unit %s: pc %d: %w", u.Harness, pc, err)
		}
	}
	for _, p := range u.Injections {
		if p.PC < 0 || p.PC >= len(u.Instrs) {
			return fmt.Errorf("unit %s: injection %s: pc %d out of range", u.Harness, p.ID, p.PC)
		}
		in := u.Instrs[p.PC]
		if in.Op != OpHavoc || in.Injection != p.ID {
			return fmt.Errorf("unit %s: injection %s does not match instruction at pc %d", u.Harness, p.ID, p.PC)
		}
		sym, ok := u.Lookup(in.Dst)
		if !ok {
			return fmt.Errorf("unit %s: injection %s: unknown symbol %q", u.Harness, p.ID, in.Dst)
		}
		if !sym.Typ.Equal(p.Typ) {
			return fmt.Errorf("unit %s: injection %s: type %s does not match symbol type %s", u.Harness, p.ID, p.Typ, sym.Typ)
		}
	}
	for _, m := range u.Markers {
		if m.PC < 0 || m.PC >= len(u.Instrs) || u.Instrs[m.PC].Op != OpMark {
			return fmt.Errorf("unit %s: marker %s does not reference a mark instruction", u.Harness, m.ID)
		}
	}
	return nil
}

// Clone returns a deep-enough copy for instrumentation: slices are
// copied, expressions are shared (they are never mutated after build).
func (u *Unit) Clone() *Unit {
	out := *u
	out.Instrs = append([]Instr(nil), u.Instrs...)
	out.Symbols = append([]Symbol(nil), u.Symbols...)
	out.Injections = append([]InjectionPoint(nil), u.Injections...)
	out.Markers = append([]CoverageMarker(nil), u.Markers...)
	out.Unsupported = append([]UnsupportedNote(nil), u.Unsupported...)
	return &out
}
