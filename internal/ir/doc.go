// Package ir provides the intermediate representation shared by every
// stage of the vex verification pipeline.
//
// This package contains type definitions plus the canonical serialization
// and hashing primitives built on them. All other internal packages import
// ir; ir imports nothing internal. This ensures IR remains the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - values are bools and fixed-width
//     two's-complement integers, matching the catalog's declared widths
//     bit-exactly
//   - A built Unit is immutable; instrumentation returns an augmented copy
//   - All JSON tags use snake_case
//   - Injection point identifiers are content-addressed and stable across
//     rebuilds of the same harness
package ir
