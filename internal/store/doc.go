// Package store provides SQLite-backed persistence for verification
// runs.
//
// One row per run, one row per scheduled harness, plus derived
// counterexample, coverage, and skip rows. All writes use
// ON CONFLICT DO NOTHING so re-recording a run is idempotent, and all
// reads order by an explicit COLLATE BINARY key so results are
// deterministic across SQLite versions.
//
// The full VerificationResult is stored as a JSON payload alongside the
// indexed columns; readers round-trip it without joins.
package store
