// Package results turns raw engine output into verification results.
//
// Interpret is pure: it reads the captured item stream and the unit,
// and computes exactly one outcome. All properties holding is Success;
// any failed property is Failure with a counterexample reconstructed
// against the unit's injection table. A trace value that does not map
// to a known injection point, or does not fit its declared width, is a
// ReconstructionError — surfaced on the result, never clamped and never
// downgraded. Unsupported constructs the run reached make any outcome
// inconclusive.
package results
