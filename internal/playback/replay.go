package playback

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/roach88/vex/internal/eval"
	"github.com/roach88/vex/internal/ir"
)

// Replay is the runtime entry point of generated reproduction tests: it
// loads the serialized unit, parses each substitution against the
// declared type of its injection point, runs the unit concretely, and
// fails the test unless exactly the named property is violated.
func Replay(t *testing.T, unitPath string, substitutions map[string]string, property string) {
	t.Helper()

	data, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	var unit ir.Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		t.Fatalf("decode unit: %v", err)
	}
	if err := unit.Validate(); err != nil {
		t.Fatalf("invalid unit: %v", err)
	}

	inputs := make(eval.Inputs, len(substitutions))
	for id, binary := range substitutions {
		point, ok := unit.InjectionByID(id)
		if !ok {
			t.Fatalf("unknown injection point %s", id)
		}
		v, err := ir.ParseBinary(point.Typ, binary)
		if err != nil {
			t.Fatalf("injection %s: %v", id, err)
		}
		inputs[id] = v
	}

	trace, err := eval.Run(&unit, inputs, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if trace.Stop != eval.StopViolation {
		t.Fatalf("replay stopped with %s, expected a violation of %s", trace.Stop, property)
	}
	if got := trace.Violation.Property.ID; got != property {
		t.Fatalf("replay violated %s, expected %s", got, property)
	}
}
