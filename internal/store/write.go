package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/ir"
)

// RunRecord identifies one pipeline run.
type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	CatalogPath     string
	PipelineVersion string
	FormatVersion   string
}

// BeginRun inserts the run row. Uses ON CONFLICT(id) DO NOTHING for
// idempotency - duplicate IDs are silently ignored. Empty version
// fields default to the pipeline's current versions.
func (s *Store) BeginRun(ctx context.Context, run RunRecord) error {
	if run.PipelineVersion == "" {
		run.PipelineVersion = ir.PipelineVersion
	}
	if run.FormatVersion == "" {
		run.FormatVersion = ir.FormatVersion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, catalog_path, pipeline_version, format_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.CatalogPath,
		run.PipelineVersion,
		run.FormatVersion,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteResult inserts one harness result and, when the result carries a
// counterexample, its counterexample row. Uses ON CONFLICT DO NOTHING
// for idempotency - a harness is written at most once per run.
//
// The full VerificationResult is serialized to JSON alongside the
// indexed columns, so readers can reconstruct it without joining.
func (s *Store) WriteResult(ctx context.Context, runID string, kind ir.HarnessKind, expected ir.ExpectedOutcome, res ir.VerificationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("write result: encode %s: %w", res.Harness, err)
	}

	matched := 0
	if res.Matches(expected) {
		matched = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO harness_results
		(run_id, harness, kind, expected, outcome, matched, runtime_ms, diagnostics, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		res.Harness,
		string(kind),
		string(expected),
		string(res.Outcome),
		matched,
		res.Runtime.Milliseconds(),
		res.Diagnostics,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if res.Counterexample == nil || res.Violated == nil {
		return nil
	}

	assignments, err := json.Marshal(res.Counterexample.Assignments)
	if err != nil {
		return fmt.Errorf("write result: encode counterexample for %s: %w", res.Harness, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO counterexamples (run_id, harness, property, assignments)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		res.Harness,
		res.Violated.ID,
		string(assignments),
	)
	if err != nil {
		return fmt.Errorf("write result: counterexample: %w", err)
	}
	return nil
}

// WriteSkip records a function skipped before scheduling.
func (s *Store) WriteSkip(ctx context.Context, runID, function, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skips (run_id, function, reason)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, function, reason)
	if err != nil {
		return fmt.Errorf("write skip: %w", err)
	}
	return nil
}

// WriteCoverage persists the aggregated report, one row per region.
func (s *Store) WriteCoverage(ctx context.Context, runID string, report *coverage.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write coverage: %w", err)
	}
	defer tx.Rollback()

	for _, row := range report.Regions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO coverage (run_id, region, hits, scope, status)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, row.Region, row.Hits, row.Scope, string(row.Status))
		if err != nil {
			return fmt.Errorf("write coverage: region %s: %w", row.Region, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write coverage: %w", err)
	}
	return nil
}
