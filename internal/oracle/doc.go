// Package oracle drives the external bounded model checker.
//
// The engine is opaque: the driver serializes a unit to the input
// format, runs the binary under a hard deadline, and parses its item
// stream back. It never judges correctness — a nonzero exit with a
// parseable result item is a valid result (engines signal verification
// failure through exit codes), and classification belongs to the
// results package. Timeout kills the process group and returns whatever
// items arrived before the cutoff, marked partial, for coverage hints
// only.
//
// The Oracle interface is the seam tests substitute: testutil provides
// a scripted implementation and an exhaustive concrete-enumeration one.
package oracle
