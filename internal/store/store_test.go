package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vex.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun() RunRecord {
	return RunRecord{
		ID:          "0192aa00-0000-7000-8000-000000000001",
		CreatedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		CatalogPath: "testdata/divide.json",
	}
}

func failureResult(harness string) ir.VerificationResult {
	i32 := ir.IntType(true, 32, "i32")
	return ir.VerificationResult{
		Harness: harness,
		Outcome: ir.OutcomeFailure,
		Violated: &ir.PropertyRef{
			ID:          "divide.division-by-zero.1",
			Class:       ir.ClassDivByZero,
			Description: "divisor is nonzero",
		},
		Counterexample: &ir.Counterexample{Assignments: []ir.Assignment{
			{Injection: "inj-a", Value: ir.IntValue(i32, 7)},
			{Injection: "inj-b", Value: ir.IntValue(i32, 0)},
		}},
		Runtime: 1500 * time.Millisecond,
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vex.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()

	require.NoError(t, s.BeginRun(ctx, run))
	// Duplicate inserts are silent no-ops.
	require.NoError(t, s.BeginRun(ctx, run))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, run.CatalogPath, got.CatalogPath)
	assert.Equal(t, ir.PipelineVersion, got.PipelineVersion)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestReadRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResultRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	res := failureResult("check_divide")
	require.NoError(t, s.WriteResult(ctx, run.ID, ir.KindExplicit, ir.ExpectFailure, res))

	rows, err := s.ReadResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, ir.KindExplicit, row.Kind)
	assert.Equal(t, ir.ExpectFailure, row.Expected)
	assert.True(t, row.Matched, "an expected failure matches")
	assert.Equal(t, ir.OutcomeFailure, row.Result.Outcome)
	require.NotNil(t, row.Result.Counterexample)
	require.Len(t, row.Result.Counterexample.Assignments, 2)
	assert.Equal(t, int64(7), row.Result.Counterexample.Assignments[0].Value.Int64())
	assert.Equal(t, res.Runtime, row.Result.Runtime)
}

func TestResultWriteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	res := failureResult("check_divide")
	require.NoError(t, s.WriteResult(ctx, run.ID, ir.KindExplicit, ir.ExpectAny, res))
	require.NoError(t, s.WriteResult(ctx, run.ID, ir.KindExplicit, ir.ExpectAny, res))

	rows, err := s.ReadResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCounterexampleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))
	require.NoError(t, s.WriteResult(ctx, run.ID, ir.KindExplicit, ir.ExpectAny, failureResult("check_divide")))

	property, cex, err := s.ReadCounterexample(ctx, run.ID, "check_divide")
	require.NoError(t, err)
	assert.Equal(t, "divide.division-by-zero.1", property)
	require.Len(t, cex.Assignments, 2)
	assert.Equal(t, "inj-b", cex.Assignments[1].Injection)
	assert.True(t, cex.Assignments[1].Value.IsZero())

	_, _, err = s.ReadCounterexample(ctx, run.ID, "check_other")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSuccessResultHasNoCounterexampleRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	res := ir.VerificationResult{Harness: "check_ok", Outcome: ir.OutcomeSuccess, Runtime: time.Second}
	require.NoError(t, s.WriteResult(ctx, run.ID, ir.KindSynthesized, ir.ExpectAny, res))

	_, _, err := s.ReadCounterexample(ctx, run.ID, "check_ok")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCoverageRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	report := &coverage.Report{
		FormatVersion: ir.FormatVersion,
		Regions: []coverage.RegionCoverage{
			{Region: "src/math.x:4-4@divide", Hits: 2, Scope: 2, Status: coverage.StatusCovered},
			{Region: "src/math.x:9-9@modulo", Hits: 0, Scope: 1, Status: coverage.StatusUncovered},
		},
	}
	require.NoError(t, s.WriteCoverage(ctx, run.ID, report))

	got, err := s.ReadCoverage(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Regions, 2)
	assert.Equal(t, "src/math.x:4-4@divide", got.Regions[0].Region)
	assert.Equal(t, coverage.StatusCovered, got.Regions[0].Status)
	assert.Equal(t, 2, got.Regions[0].Hits)
	assert.Equal(t, coverage.StatusUncovered, got.Regions[1].Status)
}

func TestSkipRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	require.NoError(t, s.WriteSkip(ctx, run.ID, "memcpy", "no-body"))
	require.NoError(t, s.WriteSkip(ctx, run.ID, "map_pair", "generic"))

	skips, err := s.ReadSkips(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, skips, 2)
	assert.Equal(t, "map_pair", skips[0].Function)
	assert.Equal(t, "generic", skips[0].Reason)
	assert.Equal(t, "memcpy", skips[1].Function)
}
