package registry

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/ir"
)

// Built-in fallbacks, used when neither flags, overrides, nor source
// annotations say otherwise.
const (
	DefaultUnwind  = 20
	DefaultTimeout = 60 * time.Second
)

// OverrideEntry is one block of a YAML override file. Pointer fields
// distinguish "not set" from an explicit zero.
type OverrideEntry struct {
	Unwind      *uint32           `yaml:"unwind,omitempty"`
	TimeoutSecs *uint32           `yaml:"timeout_secs,omitempty"`
	Stubs       map[string]string `yaml:"stubs,omitempty"`
	SolverFlags []string          `yaml:"solver_flags,omitempty"`
	Expected    string            `yaml:"expected,omitempty"`
}

// Overrides is a parsed YAML override file: run-wide defaults plus
// per-harness entries keyed by harness name.
type Overrides struct {
	Defaults  OverrideEntry            `yaml:"defaults"`
	Harnesses map[string]OverrideEntry `yaml:"harnesses"`
}

// LoadOverrides reads and strictly decodes a YAML override file. A
// missing path is not an error here; callers pass nil when no file was
// given.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides: %w", err)
	}
	var ov Overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ov); err != nil {
		return nil, fmt.Errorf("parsing overrides %s: %w", path, err)
	}
	if err := ov.validate(); err != nil {
		return nil, fmt.Errorf("overrides %s: %w", path, err)
	}
	return &ov, nil
}

func (ov *Overrides) validate() error {
	if err := validateExpected(ov.Defaults.Expected); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name, e := range ov.Harnesses {
		if err := validateExpected(e.Expected); err != nil {
			return fmt.Errorf("harness %q: %w", name, err)
		}
	}
	return nil
}

func validateExpected(s string) error {
	switch ir.ExpectedOutcome(s) {
	case "", ir.ExpectSuccess, ir.ExpectFailure, ir.ExpectAny:
		return nil
	default:
		return fmt.Errorf("unknown expected outcome %q", s)
	}
}

// entryFor returns the per-harness override block, zero when absent.
func (ov *Overrides) entryFor(name string) OverrideEntry {
	if ov == nil {
		return OverrideEntry{}
	}
	return ov.Harnesses[name]
}

func (ov *Overrides) defaults() OverrideEntry {
	if ov == nil {
		return OverrideEntry{}
	}
	return ov.Defaults
}

// resolveConfig merges the configuration sources for one harness. The
// annotation comes from the catalog and may be nil.
func resolveConfig(name string, ann *catalog.HarnessAnnotation, opts Options, ov *Overrides) ir.HarnessConfig {
	entry := ov.entryFor(name)
	defs := ov.defaults()

	cfg := ir.HarnessConfig{
		Unwind:   DefaultUnwind,
		Timeout:  DefaultTimeout,
		Expected: ir.ExpectSuccess,
	}

	// Lowest to highest precedence; later writers win.
	applyOverride(&cfg, defs)
	applyAnnotation(&cfg, ann)
	applyOverride(&cfg, entry)
	if opts.Unwind > 0 {
		cfg.Unwind = opts.Unwind
	}
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	return cfg
}

func applyOverride(cfg *ir.HarnessConfig, e OverrideEntry) {
	if e.Unwind != nil {
		cfg.Unwind = *e.Unwind
	}
	if e.TimeoutSecs != nil {
		cfg.Timeout = time.Duration(*e.TimeoutSecs) * time.Second
	}
	if len(e.SolverFlags) > 0 {
		cfg.SolverFlags = append([]string(nil), e.SolverFlags...)
	}
	if e.Expected != "" {
		cfg.Expected = ir.ExpectedOutcome(e.Expected)
	}
	mergeStubs(cfg, e.Stubs)
}

func applyAnnotation(cfg *ir.HarnessConfig, ann *catalog.HarnessAnnotation) {
	if ann == nil {
		return
	}
	if ann.Unwind > 0 {
		cfg.Unwind = ann.Unwind
	}
	if ann.TimeoutSecs > 0 {
		cfg.Timeout = time.Duration(ann.TimeoutSecs) * time.Second
	}
	if len(ann.SolverFlags) > 0 {
		cfg.SolverFlags = append([]string(nil), ann.SolverFlags...)
	}
	if ann.Expected != "" {
		cfg.Expected = ir.ExpectedOutcome(ann.Expected)
	}
	mergeStubs(cfg, ann.Stubs)
}

func mergeStubs(cfg *ir.HarnessConfig, stubs map[string]string) {
	if len(stubs) == 0 {
		return
	}
	if cfg.Stubs == nil {
		cfg.Stubs = make(map[string]string, len(stubs))
	}
	for k, v := range stubs {
		cfg.Stubs[k] = v
	}
}
