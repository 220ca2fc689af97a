package compiler

import (
	"fmt"

	"github.com/roach88/vex/internal/ir"
)

// Instrument inserts a no-op coverage marker at the head of every basic
// block that maps to a source region, and returns an augmented copy of
// the unit. Jump targets land on the marker, so executing into a block
// always records its region. Blocks with no source spans (builder glue)
// get no marker. Semantics are unchanged: markers evaluate nothing.
func Instrument(u *ir.Unit) (*ir.Unit, error) {
	leaders := map[int]bool{0: true}
	for pc, in := range u.Instrs {
		switch in.Op {
		case ir.OpGoto, ir.OpBranch:
			leaders[in.Target] = true
			if pc+1 < len(u.Instrs) {
				leaders[pc+1] = true
			}
		}
	}

	var (
		out        []ir.Instr
		markers    []ir.CoverageMarker
		blockStart = make([]int, len(u.Instrs)) // jump target remapping
		instrPos   = make([]int, len(u.Instrs)) // per-instruction remapping
		occurrence = map[string]int{}
	)
	for pc := range u.Instrs {
		blockStart[pc] = len(out)
		if leaders[pc] {
			if region := blockRegion(u, pc, leaders); region != "" {
				id, err := ir.MarkerID(u.Harness, region, occurrence[region])
				if err != nil {
					return nil, fmt.Errorf("instrumenting %s: %w", u.Harness, err)
				}
				occurrence[region]++
				markers = append(markers, ir.CoverageMarker{ID: id, Region: region, PC: len(out)})
				out = append(out, ir.Instr{Op: ir.OpMark, Marker: id})
			}
		}
		instrPos[pc] = len(out)
		out = append(out, u.Instrs[pc])
	}

	for i := range out {
		switch out[i].Op {
		case ir.OpGoto, ir.OpBranch:
			out[i].Target = blockStart[out[i].Target]
		}
	}

	augmented := u.Clone()
	augmented.Instrs = out
	augmented.Markers = markers
	augmented.Injections = append([]ir.InjectionPoint(nil), u.Injections...)
	for i := range augmented.Injections {
		augmented.Injections[i].PC = instrPos[augmented.Injections[i].PC]
	}
	augmented.Unsupported = append([]ir.UnsupportedNote(nil), u.Unsupported...)
	for i := range augmented.Unsupported {
		augmented.Unsupported[i].PC = instrPos[augmented.Unsupported[i].PC]
	}

	if err := augmented.Validate(); err != nil {
		return nil, fmt.Errorf("instrumenting %s: %w", u.Harness, err)
	}
	return augmented, nil
}

// blockRegion finds the source region a basic block belongs to: the
// first located instruction from the leader to the next leader.
func blockRegion(u *ir.Unit, leader int, leaders map[int]bool) string {
	for pc := leader; pc < len(u.Instrs); pc++ {
		if pc > leader && leaders[pc] {
			break
		}
		if !u.Instrs[pc].Span.IsZero() {
			return u.Instrs[pc].Span.RegionID()
		}
	}
	return ""
}
