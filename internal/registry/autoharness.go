package registry

import (
	"fmt"
	"strings"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// SkipReason says why autoharness did not synthesize a harness for a
// function.
type SkipReason string

const (
	// SkipNoBody: external declaration, nothing to verify.
	SkipNoBody SkipReason = "no-body"

	// SkipGeneric: unbound type parameters cannot be made concrete.
	SkipGeneric SkipReason = "generic"

	// SkipConvention: calling convention the builder cannot translate.
	SkipConvention SkipReason = "calling-convention"

	// SkipParamType: a parameter type cannot be given an unconstrained
	// value.
	SkipParamType SkipReason = "param-type"

	// SkipFiltered: excluded by the user's include/exclude patterns.
	SkipFiltered SkipReason = "filtered"
)

// Skip records one function autoharness considered and rejected.
type Skip struct {
	Function string     `json:"function"`
	Reason   SkipReason `json:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%s (%s)", s.Function, s.Reason)
}

// eligible is the autoharness predicate: pure, no side effects. The
// reason is meaningful only when ok is false.
func eligible(cat *catalog.Catalog, fn *catalog.Function, opts Options) (SkipReason, bool) {
	if !matchesFilters(fn.Name, opts) {
		return SkipFiltered, false
	}
	if fn.External || len(fn.Body) == 0 {
		return SkipNoBody, false
	}
	if fn.Generic {
		return SkipGeneric, false
	}
	switch fn.CallingConvention {
	case "", "default":
	default:
		return SkipConvention, false
	}
	for _, p := range fn.Params {
		typ, ok := cat.TypeByID(p.Type)
		if !ok || typ.Validate() != nil {
			return SkipParamType, false
		}
	}
	return "", true
}

func matchesFilters(name string, opts Options) bool {
	for _, pat := range opts.Exclude {
		if strings.Contains(name, pat) {
			return false
		}
	}
	if len(opts.Include) == 0 {
		return true
	}
	for _, pat := range opts.Include {
		if strings.Contains(name, pat) {
			return true
		}
	}
	return false
}

// Summary partitions a harness slice by kind for reporting.
func Summary(harnesses []ir.Harness) (explicit, contract, synthesized int) {
	for _, h := range harnesses {
		switch h.Kind {
		case ir.KindExplicit:
			explicit++
		case ir.KindContractCheck:
			contract++
		case ir.KindSynthesized:
			synthesized++
		}
	}
	return
}
