// Package catalog loads the symbol & type catalog the front-end hands
// to the pipeline: a normalized table of types, global symbols, and
// structured function bodies, serialized as JSON.
//
// The catalog is strictly read-only input. This package offers indexed
// lookup by qualified function name and by type id, plus schema
// validation against the embedded CUE schema before anything downstream
// touches the data. Catalog-level inconsistency (dangling type id,
// missing callee body that is not declared external) is the only class
// of error that is fatal for a whole pipeline run, and it is detected
// here, before harness scheduling.
package catalog
