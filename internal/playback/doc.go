// Package playback turns counterexamples into deterministic regression
// tests. Each reproduction is a pair of artifacts: the unit serialized
// to JSON and a generated Go test that replays the recorded injection
// values through the concrete evaluator, failing unless the exact
// property the oracle reported is violated again.
//
// Injection points never reached on the violating trace are filled with
// the zero value of their type; reproduction only requires the recorded
// control path, so any type-correct value serves for unreached points.
package playback
