// Package coverage aggregates per-harness marker reachability into a
// region-level report. The aggregator is the single cross-harness
// mutable structure of a run: merges are serialized internally, and the
// merge itself is commutative and associative, so the order in which
// harness runs complete never changes the final report.
package coverage

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/roach88/vex/internal/ir"
)

// Status classifies a source region across the harness runs whose
// instrumented unit contains it.
type Status string

const (
	// StatusCovered: every in-scope harness run reached the region.
	StatusCovered Status = "COVERED"
	// StatusPartial: reached in some in-scope runs but not all.
	StatusPartial Status = "PARTIAL"
	// StatusUncovered: reached in no run.
	StatusUncovered Status = "UNCOVERED"
)

// RegionCoverage is one row of the report: hit count and status for a
// single source region, plus the names of the harnesses that reached it.
type RegionCoverage struct {
	Region    string   `json:"region"`
	Hits      int      `json:"hits"`
	Scope     int      `json:"scope"`
	Status    Status   `json:"status"`
	Harnesses []string `json:"harnesses,omitempty"`
}

// Report is the structured export of one aggregation: every region known
// to any recorded unit, sorted by region id.
type Report struct {
	FormatVersion string           `json:"format_version"`
	Regions       []RegionCoverage `json:"regions"`
}

// Encode writes the report as indented JSON.
func (r *Report) Encode(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode coverage report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

type regionState struct {
	scope map[string]bool // harness -> reached
}

// Aggregator accumulates reachability from completed harness runs.
// Safe for concurrent Record calls; Report may be taken at any point
// and reflects the runs recorded so far.
type Aggregator struct {
	mu      sync.Mutex
	regions map[string]*regionState
}

func NewAggregator() *Aggregator {
	return &Aggregator{regions: make(map[string]*regionState)}
}

// Record merges one harness run. The unit's markers define which regions
// are in scope for the harness; covered lists the regions the run
// reported reachable. Covered regions outside the unit's own marker
// table are ignored. Recording the same harness twice ORs its
// reachability rather than double-counting.
func (a *Aggregator) Record(harness string, unit *ir.Unit, covered []string) {
	inScope := make(map[string]bool, len(unit.Markers))
	for _, m := range unit.Markers {
		inScope[m.Region] = true
	}
	hit := make(map[string]bool, len(covered))
	for _, region := range covered {
		if inScope[region] {
			hit[region] = true
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for region := range inScope {
		st := a.regions[region]
		if st == nil {
			st = &regionState{scope: make(map[string]bool)}
			a.regions[region] = st
		}
		st.scope[harness] = st.scope[harness] || hit[region]
	}
}

// Report snapshots the aggregation. A region is Covered when every
// harness whose unit contains it reached it, Partial when only some
// did, and Uncovered when none did.
func (a *Aggregator) Report() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep := &Report{
		FormatVersion: ir.FormatVersion,
		Regions:       make([]RegionCoverage, 0, len(a.regions)),
	}
	for region, st := range a.regions {
		row := RegionCoverage{Region: region, Scope: len(st.scope)}
		for h, reached := range st.scope {
			if reached {
				row.Hits++
				row.Harnesses = append(row.Harnesses, h)
			}
		}
		sort.Strings(row.Harnesses)
		switch {
		case row.Hits == 0:
			row.Status = StatusUncovered
		case row.Hits == row.Scope:
			row.Status = StatusCovered
		default:
			row.Status = StatusPartial
		}
		rep.Regions = append(rep.Regions, row)
	}
	sort.Slice(rep.Regions, func(i, j int) bool {
		return rep.Regions[i].Region < rep.Regions[j].Region
	})
	return rep
}
