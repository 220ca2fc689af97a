package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/vex/internal/ir"
)

// InputDocument is the versioned program description handed to the
// engine. Stable and round-trippable: Decode(Encode(d)) reproduces the
// document exactly, which the driver relies on when staging input
// files.
type InputDocument struct {
	FormatVersion   string   `json:"format_version"`
	PipelineVersion string   `json:"pipeline_version"`
	Unwind          uint32   `json:"unwind"`
	SolverFlags     []string `json:"solver_flags,omitempty"`
	Unit            *ir.Unit `json:"unit"`
}

// EncodeInput serializes a unit and its harness configuration.
func EncodeInput(u *ir.Unit, cfg ir.HarnessConfig) ([]byte, error) {
	doc := InputDocument{
		FormatVersion:   ir.FormatVersion,
		PipelineVersion: ir.PipelineVersion,
		Unwind:          cfg.Unwind,
		SolverFlags:     cfg.SolverFlags,
		Unit:            u,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding input for %s: %w", u.Harness, err)
	}
	return append(data, '\n'), nil
}

// DecodeInput parses an input document, rejecting unknown fields and
// foreign format versions.
func DecodeInput(data []byte) (*InputDocument, error) {
	var doc InputDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding input document: %w", err)
	}
	if doc.FormatVersion != ir.FormatVersion {
		return nil, fmt.Errorf("input document format version %q, this build reads %q",
			doc.FormatVersion, ir.FormatVersion)
	}
	if doc.Unit == nil {
		return nil, fmt.Errorf("input document has no unit")
	}
	if err := doc.Unit.Validate(); err != nil {
		return nil, fmt.Errorf("decoding input document: %w", err)
	}
	return &doc, nil
}
