package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// Options carries the command-line inputs that shape discovery.
type Options struct {
	// Autoharness enables synthesized harnesses for eligible non-harness
	// functions.
	Autoharness bool

	// Include restricts autoharness targets to functions whose qualified
	// name contains one of the patterns; empty means all.
	Include []string

	// Exclude drops autoharness targets whose qualified name contains
	// one of the patterns. Exclude wins over Include.
	Exclude []string

	// Unwind, when nonzero, overrides every harness's unwind bound.
	Unwind uint32

	// Timeout, when nonzero, overrides every harness's oracle timeout.
	Timeout time.Duration
}

// Discover populates the harness set from a validated catalog. The
// returned slice is ordered deterministically (explicit, then contract,
// then synthesized, each sorted by name); skips record every function
// autoharness considered and rejected. Discovery never fails on an
// ineligible function, only on internal inconsistencies such as a
// contract expression that does not lower.
func Discover(cat *catalog.Catalog, opts Options, ov *Overrides) ([]ir.Harness, []Skip, error) {
	names := make([]string, 0, len(cat.Functions))
	for name := range cat.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	var explicit, contract, synthesized []ir.Harness
	var skips []Skip

	for _, name := range names {
		fn := cat.Functions[name]

		if fn.Harness {
			explicit = append(explicit, ir.Harness{
				Name:   fn.Name,
				Kind:   ir.KindExplicit,
				Target: fn.Name,
				Config: resolveConfig(fn.Name, fn.HarnessConfig, opts, ov),
			})
			continue
		}

		if fn.Contract != nil && !fn.External {
			hs, err := lowerContract(cat, fn, opts, ov)
			if err != nil {
				return nil, nil, fmt.Errorf("lowering contract of %s: %w", fn.Name, err)
			}
			contract = append(contract, hs...)
		}

		if opts.Autoharness {
			if reason, ok := eligible(cat, fn, opts); !ok {
				skips = append(skips, Skip{Function: fn.Name, Reason: reason})
			} else {
				synthesized = append(synthesized, ir.Harness{
					Name:   fn.Name + ".autoharness",
					Kind:   ir.KindSynthesized,
					Target: fn.Name,
					Config: synthesizedConfig(fn, opts, ov),
				})
			}
		}
	}

	out := make([]ir.Harness, 0, len(explicit)+len(contract)+len(synthesized))
	out = append(out, explicit...)
	out = append(out, contract...)
	out = append(out, synthesized...)
	for _, h := range out {
		if err := h.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return out, skips, nil
}

// synthesizedConfig resolves configuration for an autoharness. The
// target has no harness annotation, and a synthesized harness is
// best-effort: unless an override says otherwise, any conclusive
// verdict is acceptable.
func synthesizedConfig(fn *catalog.Function, opts Options, ov *Overrides) ir.HarnessConfig {
	cfg := resolveConfig(fn.Name+".autoharness", nil, opts, ov)
	if ov.entryFor(fn.Name+".autoharness").Expected == "" && ov.defaults().Expected == "" {
		cfg.Expected = ir.ExpectAny
	}
	return cfg
}
