// Package testutil provides test doubles for the pipeline: a scripted
// oracle that returns canned raw results, an exhaustive oracle that
// decides properties by enumerating a small concrete input domain
// through the evaluator, and a fixed run-id generator for deterministic
// session output.
package testutil
