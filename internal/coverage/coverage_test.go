package coverage

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/ir"
)

// markedUnit builds a minimal valid unit whose markers cover the given
// regions, one marker per region.
func markedUnit(t *testing.T, harness string, regions ...string) *ir.Unit {
	t.Helper()
	u := &ir.Unit{Harness: harness, Entry: harness}
	for _, region := range regions {
		u.Markers = append(u.Markers, ir.CoverageMarker{
			ID:     "m" + region,
			Region: region,
			PC:     len(u.Instrs),
		})
		u.Instrs = append(u.Instrs, ir.Instr{Op: ir.OpMark, Marker: "m" + region})
	}
	u.Instrs = append(u.Instrs, ir.Instr{Op: ir.OpEnd})
	require.NoError(t, u.Validate())
	return u
}

func TestAggregatorRegionStatus(t *testing.T) {
	agg := NewAggregator()
	// Both harnesses contain "shared"; only check_a reaches it.
	agg.Record("check_a", markedUnit(t, "check_a", "shared", "only_a"), []string{"shared", "only_a"})
	agg.Record("check_b", markedUnit(t, "check_b", "shared", "only_b"), []string{"only_b"})

	rep := agg.Report()
	require.Len(t, rep.Regions, 3)

	byRegion := make(map[string]RegionCoverage)
	for _, row := range rep.Regions {
		byRegion[row.Region] = row
	}

	shared := byRegion["shared"]
	assert.Equal(t, StatusPartial, shared.Status)
	assert.Equal(t, 1, shared.Hits)
	assert.Equal(t, 2, shared.Scope)
	assert.Equal(t, []string{"check_a"}, shared.Harnesses)

	assert.Equal(t, StatusCovered, byRegion["only_a"].Status)
	assert.Equal(t, StatusCovered, byRegion["only_b"].Status)
}

func TestAggregatorUncoveredRegion(t *testing.T) {
	agg := NewAggregator()
	agg.Record("check_a", markedUnit(t, "check_a", "dead"), nil)

	rep := agg.Report()
	require.Len(t, rep.Regions, 1)
	assert.Equal(t, StatusUncovered, rep.Regions[0].Status)
	assert.Equal(t, 0, rep.Regions[0].Hits)
	assert.Empty(t, rep.Regions[0].Harnesses)
}

func TestAggregatorMergeIsOrderIndependent(t *testing.T) {
	unitA := markedUnit(t, "check_a", "shared", "only_a")
	unitB := markedUnit(t, "check_b", "shared")

	forward := NewAggregator()
	forward.Record("check_a", unitA, []string{"shared"})
	forward.Record("check_b", unitB, []string{"shared"})

	reverse := NewAggregator()
	reverse.Record("check_b", unitB, []string{"shared"})
	reverse.Record("check_a", unitA, []string{"shared"})

	assert.Equal(t, forward.Report(), reverse.Report())
}

func TestAggregatorIgnoresOutOfScopeRegions(t *testing.T) {
	agg := NewAggregator()
	agg.Record("check_a", markedUnit(t, "check_a", "r1"), []string{"r1", "not-in-unit"})

	rep := agg.Report()
	require.Len(t, rep.Regions, 1)
	assert.Equal(t, "r1", rep.Regions[0].Region)
}

func TestAggregatorRerecordDoesNotDoubleCount(t *testing.T) {
	unit := markedUnit(t, "check_a", "r1")
	agg := NewAggregator()
	agg.Record("check_a", unit, []string{"r1"})
	agg.Record("check_a", unit, []string{"r1"})

	rep := agg.Report()
	require.Len(t, rep.Regions, 1)
	assert.Equal(t, 1, rep.Regions[0].Hits)
	assert.Equal(t, 1, rep.Regions[0].Scope)
	assert.Equal(t, StatusCovered, rep.Regions[0].Status)
}

func TestAggregatorConcurrentRecord(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	names := []string{"check_a", "check_b", "check_c", "check_d"}
	units := make(map[string]*ir.Unit, len(names))
	for _, name := range names {
		units[name] = markedUnit(t, name, "shared")
	}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			agg.Record(name, units[name], []string{"shared"})
		}(name)
	}
	wg.Wait()

	rep := agg.Report()
	require.Len(t, rep.Regions, 1)
	assert.Equal(t, len(names), rep.Regions[0].Hits)
	assert.Equal(t, StatusCovered, rep.Regions[0].Status)
}

func TestReportEncode(t *testing.T) {
	agg := NewAggregator()
	agg.Record("check_a", markedUnit(t, "check_a", "src/math.x:4-4@divide"), []string{"src/math.x:4-4@divide"})

	var buf bytes.Buffer
	require.NoError(t, agg.Report().Encode(&buf))
	assert.Contains(t, buf.String(), `"format_version": "1"`)
	assert.Contains(t, buf.String(), `"status": "COVERED"`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}
