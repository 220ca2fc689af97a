package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/oracle"
)

// ScriptedOracle returns canned results keyed by harness name.
// Thread-safe: safe for parallel harness runs.
type ScriptedOracle struct {
	mu      sync.Mutex
	results map[string]*oracle.RawResult
	errs    map[string]error
	calls   []string
}

func NewScriptedOracle() *ScriptedOracle {
	return &ScriptedOracle{
		results: make(map[string]*oracle.RawResult),
		errs:    make(map[string]error),
	}
}

// Script sets the raw result returned for a harness.
func (o *ScriptedOracle) Script(harness string, raw *oracle.RawResult) *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[harness] = raw
	return o
}

// Fail makes Verify return an error for a harness.
func (o *ScriptedOracle) Fail(harness string, err error) *ScriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[harness] = err
	return o
}

// Calls returns the harness names verified so far, in call order.
func (o *ScriptedOracle) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func (o *ScriptedOracle) Verify(ctx context.Context, unit *ir.Unit, cfg ir.HarnessConfig) (*oracle.RawResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, unit.Harness)
	if err, ok := o.errs[unit.Harness]; ok {
		return nil, err
	}
	raw, ok := o.results[unit.Harness]
	if !ok {
		return nil, fmt.Errorf("scripted oracle: no script for harness %s", unit.Harness)
	}
	return raw, nil
}
