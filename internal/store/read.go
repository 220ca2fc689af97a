package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/ir"
)

// ResultRow is one stored harness result with its run-scoped metadata.
type ResultRow struct {
	Kind     ir.HarnessKind
	Expected ir.ExpectedOutcome
	Matched  bool
	Result   ir.VerificationResult
}

// SkipRow is one function skipped before scheduling.
type SkipRow struct {
	Function string
	Reason   string
}

// ReadRun returns the run record, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	var run RunRecord
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, catalog_path, pipeline_version, format_version
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &created, &run.CatalogPath, &run.PipelineVersion, &run.FormatVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run: %w", err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run: parse created_at: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first, id as tiebreaker.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, catalog_path, pipeline_version, format_version
		FROM runs
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var run RunRecord
		var created string
		if err := rows.Scan(&run.ID, &created, &run.CatalogPath, &run.PipelineVersion, &run.FormatVersion); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("list runs: parse created_at: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadResults returns every harness result of a run, ordered by harness
// name for determinism. The full VerificationResult round-trips from
// the stored JSON payload.
func (s *Store) ReadResults(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, expected, matched, result
		FROM harness_results
		WHERE run_id = ?
		ORDER BY harness COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	defer rows.Close()

	results := []ResultRow{}
	for rows.Next() {
		var row ResultRow
		var kind, expected, payload string
		var matched int
		if err := rows.Scan(&kind, &expected, &matched, &payload); err != nil {
			return nil, fmt.Errorf("read results: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &row.Result); err != nil {
			return nil, fmt.Errorf("read results: decode payload: %w", err)
		}
		row.Kind = ir.HarnessKind(kind)
		row.Expected = ir.ExpectedOutcome(expected)
		row.Matched = matched != 0
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return results, nil
}

// ReadCounterexample returns the stored counterexample for one harness
// of a run, or ErrNotFound.
func (s *Store) ReadCounterexample(ctx context.Context, runID, harness string) (string, *ir.Counterexample, error) {
	var property, payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT property, assignments
		FROM counterexamples
		WHERE run_id = ? AND harness = ?
	`, runID, harness).Scan(&property, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("counterexample for %s in run %s: %w", harness, runID, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read counterexample: %w", err)
	}

	var assignments []ir.Assignment
	if err := json.Unmarshal([]byte(payload), &assignments); err != nil {
		return "", nil, fmt.Errorf("read counterexample: decode assignments: %w", err)
	}
	return property, &ir.Counterexample{Assignments: assignments}, nil
}

// ReadCoverage reconstructs the stored report of a run, sorted by
// region id like the aggregator's own export.
func (s *Store) ReadCoverage(ctx context.Context, runID string) (*coverage.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region, hits, scope, status
		FROM coverage
		WHERE run_id = ?
		ORDER BY region COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read coverage: %w", err)
	}
	defer rows.Close()

	report := &coverage.Report{FormatVersion: ir.FormatVersion, Regions: []coverage.RegionCoverage{}}
	for rows.Next() {
		var row coverage.RegionCoverage
		var status string
		if err := rows.Scan(&row.Region, &row.Hits, &row.Scope, &status); err != nil {
			return nil, fmt.Errorf("read coverage: %w", err)
		}
		row.Status = coverage.Status(status)
		report.Regions = append(report.Regions, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read coverage: %w", err)
	}
	return report, nil
}

// ReadSkips returns the functions skipped before scheduling in a run.
func (s *Store) ReadSkips(ctx context.Context, runID string) ([]SkipRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT function, reason
		FROM skips
		WHERE run_id = ?
		ORDER BY function COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read skips: %w", err)
	}
	defer rows.Close()

	skips := []SkipRow{}
	for rows.Next() {
		var row SkipRow
		if err := rows.Scan(&row.Function, &row.Reason); err != nil {
			return nil, fmt.Errorf("read skips: %w", err)
		}
		skips = append(skips, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read skips: %w", err)
	}
	return skips, nil
}
