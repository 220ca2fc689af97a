// Package registry populates the harness set for one verification run.
//
// Three sources feed the registry: explicit harnesses annotated by the
// front end, contract-check harnesses lowered from function contracts
// (requires clauses become entry assumptions, ensures clauses become
// return-site assertions, each loop invariant yields a base and a step
// harness), and synthesized harnesses proposed for every eligible
// function when autoharness mode is on. Ineligible functions are never
// an error: each one is recorded as a Skip with a reason and reported
// alongside the batch summary.
//
// Per-harness configuration is resolved here, once, before anything is
// scheduled. Precedence for the unwind bound: command-line flag, then
// YAML override file, then source annotation, then the default of 20.
// Timeouts resolve the same way with a default of 60 seconds. Harnesses
// are immutable after discovery.
package registry
