// Package compiler translates catalog functions into verification IR,
// one unit per harness.
//
// Build is deterministic and pure: the same harness and catalog always
// produce the same unit, instruction for instruction, which keeps
// injection point ids stable across rebuilds. Structured control flow
// lowers to explicit jumps; calls inline bodies up to the harness's
// unwind bound, beyond which an unwinding assertion fires rather than
// letting the bound silently truncate behavior. Constructs the builder
// cannot translate become explicit unsupported markers in the unit,
// never build failures.
//
// Instrument adds no-op coverage markers at basic block boundaries and
// returns an augmented copy; it never changes program semantics.
package compiler
