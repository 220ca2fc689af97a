// Package eval executes verification IR concretely and
// deterministically: every injection point reads its value from a
// supplied substitution table instead of being unconstrained.
//
// This is what playback re-execution runs a counterexample through, and
// what the exhaustive test oracle enumerates inputs with. The evaluator
// mirrors the IR's bit-exact semantics (wraparound arithmetic, declared
// widths, signed and unsigned division) so a violation the oracle found
// symbolically re-triggers on the same concrete values.
package eval
