// Package session orchestrates one pipeline run: harness discovery,
// per-harness build/verify/interpret with a bounded worker pool, the
// run-scoped coverage accumulator, optional persistence, and the batch
// summary.
//
// Harness runs are independent; each owns its unit and oracle
// invocation. Per-harness failures (timeout, engine error, unsupported
// constructs, reconstruction errors) are recorded in that harness's
// result and never abort the batch. The only fatal-before-scheduling
// condition is a catalog-level inconsistency surfaced by discovery.
package session
