package playback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/vex/internal/ir"
)

// UnitFile is the path, relative to the generated test's package
// directory, where the serialized unit accompanying the test lives.
func (t *Test) UnitFile() string {
	return "testdata/" + t.Name + ".json"
}

// UnitJSON serializes the unit the reproduction replays against.
func (t *Test) UnitJSON(unit *ir.Unit) ([]byte, error) {
	data, err := json.MarshalIndent(unit, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("playback %s: encode unit: %w", t.Name, err)
	}
	return append(data, '\n'), nil
}

// Source emits the generated Go test. The file is written next to the
// Replay helper, so the emitted test declares the given package and
// calls Replay directly.
func (t *Test) Source(pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = "playback"
	}

	var b strings.Builder
	b.WriteString("// Code generated by vex playback; DO NOT EDIT.\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "package %s\n", pkg)
	b.WriteString("\n")
	b.WriteString("import \"testing\"\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "// %s reproduces %s found by harness %s.\n", t.Name, t.Property.ID, t.Harness)
	fmt.Fprintf(&b, "func Test_%s(t *testing.T) {\n", t.Name)
	fmt.Fprintf(&b, "\tReplay(t, %q, map[string]string{\n", t.UnitFile())
	for i, s := range t.Substitutions {
		fmt.Fprintf(&b, "\t\t%q: %q, // %s = %s\n", s.Injection, s.Value.Binary(), t.symbolFor(i), s.Value)
	}
	fmt.Fprintf(&b, "\t}, %q)\n", t.Property.ID)
	b.WriteString("}\n")
	return []byte(b.String()), nil
}

// symbolFor labels the i-th substitution with the symbol its injection
// point havocs.
func (t *Test) symbolFor(i int) string {
	if i < len(t.Symbols) && t.Symbols[i] != "" {
		return t.Symbols[i]
	}
	return fmt.Sprintf("input %d", i)
}

// Artifacts bundles everything the CLI writes for one reproduction.
type Artifacts struct {
	SourcePath string
	Source     []byte
	UnitPath   string
	Unit       []byte
}

// Emit produces both artifacts of a reproduction.
func (t *Test) Emit(unit *ir.Unit, pkg string) (*Artifacts, error) {
	src, err := t.Source(pkg)
	if err != nil {
		return nil, err
	}
	uj, err := t.UnitJSON(unit)
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		SourcePath: t.Name + "_test.go",
		Source:     src,
		UnitPath:   t.UnitFile(),
		Unit:       uj,
	}, nil
}
