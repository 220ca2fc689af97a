package ir

// Version constants for the IR schema and pipeline.
const (
	// FormatVersion is the oracle input format version.
	FormatVersion = "1"

	// PipelineVersion is the vex pipeline version.
	PipelineVersion = "0.1.0"
)
