package oracle

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CheckStatus is the engine's per-property verdict token.
type CheckStatus string

const (
	StatusFailure       CheckStatus = "FAILURE"
	StatusSuccess       CheckStatus = "SUCCESS"
	StatusSatisfied     CheckStatus = "SATISFIED"
	StatusCovered       CheckStatus = "COVERED"
	StatusUndetermined  CheckStatus = "UNDETERMINED"
	StatusUnknown       CheckStatus = "UNKNOWN"
	StatusUnreachable   CheckStatus = "UNREACHABLE"
	StatusUncovered     CheckStatus = "UNCOVERED"
	StatusUnsatisfiable CheckStatus = "UNSATISFIABLE"
)

// Failed reports a definite property violation.
func (s CheckStatus) Failed() bool { return s == StatusFailure }

// Holds reports statuses that count as the property holding within the
// bound. Unreachable and unsatisfiable checks hold vacuously.
func (s CheckStatus) Holds() bool {
	switch s {
	case StatusSuccess, StatusSatisfied, StatusUnreachable, StatusUnsatisfiable:
		return true
	}
	return false
}

// Inconclusive reports verdicts the engine could not settle.
func (s CheckStatus) Inconclusive() bool {
	return s == StatusUndetermined || s == StatusUnknown
}

// PropertyID is the structured form of "<function>.<class>.<counter>".
// Engine-introduced checks (unwinding assertions it adds itself) leave
// the function out, so two attributes are tolerated with an empty
// function.
type PropertyID struct {
	Function string
	Class    string
	Counter  int
}

func (p PropertyID) String() string {
	if p.Function == "" {
		return fmt.Sprintf("%s.%d", p.Class, p.Counter)
	}
	return fmt.Sprintf("%s.%s.%d", p.Function, p.Class, p.Counter)
}

// MarshalJSON renders the serialized dotted form.
func (p PropertyID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses the dotted form. The counter is the last dot
// component, the class the second to last, and everything before that
// the function (which may itself contain dots from qualified names).
func (p *PropertyID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePropertyID(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePropertyID parses a dotted property id with the 2-vs-3 attribute
// fallback.
func ParsePropertyID(s string) (PropertyID, error) {
	i := strings.LastIndex(s, ".")
	if i < 0 {
		return PropertyID{}, fmt.Errorf("property id %q has no counter", s)
	}
	counter, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return PropertyID{}, fmt.Errorf("property id %q: counter: %w", s, err)
	}
	rest := s[:i]
	j := strings.LastIndex(rest, ".")
	if j < 0 {
		// Two attributes: engine-introduced check without a function.
		return PropertyID{Class: rest, Counter: counter}, nil
	}
	return PropertyID{Function: rest[:j], Class: rest[j+1:], Counter: counter}, nil
}

// TraceValue is a concrete value on a violation trace, reported in the
// engine's binary form plus a display rendering.
type TraceValue struct {
	Binary string `json:"binary"`
	Data   string `json:"data,omitempty"`
	Width  uint32 `json:"width,omitempty"`
}

// Location points a trace step at the input program.
type Location struct {
	File     string `json:"file,omitempty"`
	Function string `json:"function,omitempty"`
	Line     int    `json:"line,omitempty"`
	PC       int    `json:"pc,omitempty"` // instruction index in the unit
}

// TraceItem is one step of a violation trace. Only assignment steps
// carry values; the interpreter matches assignment steps against the
// unit's injection table.
type TraceItem struct {
	StepType  string      `json:"stepType"`
	Lhs       string      `json:"lhs,omitempty"`
	Location  *Location   `json:"sourceLocation,omitempty"`
	Value     *TraceValue `json:"value,omitempty"`
	Injection string      `json:"injection,omitempty"` // injection id when the step binds one
}

// Property is one per-property verdict from the result item.
type Property struct {
	ID          PropertyID  `json:"property"`
	Status      CheckStatus `json:"status"`
	Description string      `json:"description,omitempty"`
	Trace       []TraceItem `json:"trace,omitempty"`
}

// item is one line of the engine's output stream. Exactly one of the
// fields is set per line.
type item struct {
	Program      string     `json:"program,omitempty"`
	MessageText  string     `json:"messageText,omitempty"`
	MessageType  string     `json:"messageType,omitempty"`
	Result       []Property `json:"result,omitempty"`
	ProverStatus string     `json:"proverStatus,omitempty"`
}

// RawResult is the driver's verbatim capture of one engine run.
type RawResult struct {
	Program      string
	Messages     []string
	Properties   []Property
	ProverStatus string

	// TimedOut marks a run killed at the deadline. Partial accompanies
	// it when some items were parsed before the cutoff; such properties
	// feed coverage hints only, never verdicts.
	TimedOut bool
	Partial  bool

	Stderr   string
	ExitCode int
}

// HasResult reports whether a result item arrived. Absence of results
// is never a success.
func (r *RawResult) HasResult() bool {
	return r.Properties != nil
}

// ParseStream reads the line-oriented item stream: one JSON object per
// line, blank lines ignored. Items arriving after the result item are
// tolerated (engines flush the prover status last). A malformed line
// fails the parse; the driver then reports an engine error with the
// captured stream.
func ParseStream(r io.Reader) (*RawResult, error) {
	out := &RawResult{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var it item
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&it); err != nil {
			return nil, fmt.Errorf("output line %d: %w", line, err)
		}
		switch {
		case it.Program != "":
			out.Program = it.Program
		case it.MessageText != "":
			out.Messages = append(out.Messages, it.MessageText)
		case it.Result != nil:
			out.Properties = it.Result
		case it.ProverStatus != "":
			out.ProverStatus = it.ProverStatus
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading output stream: %w", err)
	}
	return out, nil
}
