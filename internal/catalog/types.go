package catalog

import "github.com/roach88/vex/internal/ir"

// Catalog is the front-end's output: types by id, globals, and function
// bodies by qualified name. Read-only after Load.
type Catalog struct {
	FormatVersion string               `json:"format_version"`
	Types         map[string]ir.Type   `json:"types"`
	Globals       []Global             `json:"globals,omitempty"`
	Functions     map[string]*Function `json:"functions"`
}

// Global is a module-level symbol.
type Global struct {
	Name string `json:"name"`
	Type string `json:"type"` // type id
}

// Param is a named, typed function parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"` // type id
}

// Contract carries the front-end's contract expressions for a function.
// Expressions may reference parameters by name and, in ensures clauses,
// the reserved symbol "result".
type Contract struct {
	Requires       []*Expr         `json:"requires,omitempty"`
	Ensures        []*Expr         `json:"ensures,omitempty"`
	LoopInvariants []LoopInvariant `json:"loop_invariants,omitempty"`
}

// LoopInvariant attaches an invariant expression to a loop by id.
type LoopInvariant struct {
	Loop      string `json:"loop"`
	Invariant *Expr  `json:"invariant"`
}

// Function is one catalog entry. Bodies are structured statements that
// the IR builder lowers; external declarations have no body.
type Function struct {
	Name    string  `json:"name"`
	Params  []Param `json:"params,omitempty"`
	Returns string  `json:"returns,omitempty"` // type id, "" = no value
	File    string  `json:"file,omitempty"`

	// Generic marks signatures with unbound type parameters; such
	// functions are never eligible for autoharness synthesis.
	Generic bool `json:"generic,omitempty"`

	// External marks declarations resolved outside the catalog. Calls to
	// external functions without a stub become unsupported markers.
	External bool `json:"external,omitempty"`

	// CallingConvention is "default" (or empty) for anything the builder
	// can translate; any other value makes the signature ineligible.
	CallingConvention string `json:"calling_convention,omitempty"`

	// Harness marks front-end-annotated explicit harnesses.
	Harness bool `json:"harness,omitempty"`

	// HarnessConfig carries per-harness annotation values (e.g. an
	// unwind bound); zero fields fall back to registry defaults.
	HarnessConfig *HarnessAnnotation `json:"harness_config,omitempty"`

	Contract *Contract `json:"contract,omitempty"`

	Body []Stmt `json:"body,omitempty"`
}

// HarnessAnnotation mirrors the subset of harness configuration the
// front-end can annotate at the source level.
type HarnessAnnotation struct {
	Unwind      uint32            `json:"unwind,omitempty"`
	Stubs       map[string]string `json:"stubs,omitempty"`
	SolverFlags []string          `json:"solver_flags,omitempty"`
	TimeoutSecs uint32            `json:"timeout_secs,omitempty"`
	Expected    string            `json:"expected,omitempty"` // success|failure|any
}

// StmtKind discriminates structured statements.
type StmtKind string

const (
	StmtAssign StmtKind = "assign"
	StmtIf     StmtKind = "if"
	StmtWhile  StmtKind = "while"
	StmtCall   StmtKind = "call"
	StmtReturn StmtKind = "return"
	StmtAssert StmtKind = "assert"
	StmtAssume StmtKind = "assume"
	StmtHavoc  StmtKind = "havoc" // produce an unconstrained value of Type
	StmtNop    StmtKind = "nop"
)

// Stmt is one structured statement of a function body. Which fields are
// meaningful depends on Kind.
type Stmt struct {
	Kind StmtKind `json:"kind"`

	Dst  string `json:"dst,omitempty"`  // assign, call result, havoc target
	Expr *Expr  `json:"expr,omitempty"` // assign rhs, if/while cond, return value, assert/assume cond

	Then []Stmt `json:"then,omitempty"` // if
	Else []Stmt `json:"else,omitempty"` // if

	Body   []Stmt `json:"body,omitempty"`    // while
	LoopID string `json:"loop_id,omitempty"` // while

	Callee string  `json:"callee,omitempty"` // call
	Args   []*Expr `json:"args,omitempty"`   // call

	Type string `json:"type,omitempty"` // havoc, assign declaration: type id
	Msg  string `json:"msg,omitempty"`  // assert description

	Line    int `json:"line,omitempty"`
	EndLine int `json:"end_line,omitempty"`
}

// Expr is a source-level expression; types are catalog type ids that the
// IR builder resolves.
type Expr struct {
	Kind string `json:"kind"` // lit | sym | unary | binary | cast
	Type string `json:"type"` // type id

	Int  *int64 `json:"int,omitempty"`
	Bool *bool  `json:"bool,omitempty"`
	Sym  string `json:"sym,omitempty"`
	Op   string `json:"op,omitempty"`

	Args []*Expr `json:"args,omitempty"`
}

// FunctionByName looks up a function by qualified name.
func (c *Catalog) FunctionByName(name string) (*Function, bool) {
	f, ok := c.Functions[name]
	return f, ok
}

// TypeByID resolves a type id.
func (c *Catalog) TypeByID(id string) (ir.Type, bool) {
	t, ok := c.Types[id]
	return t, ok
}
