package catalog

import "fmt"

// Integrity error codes (E210-E229).
const (
	ErrDanglingType     = "E210" // reference to a type id not in the types map
	ErrBadTypeShape     = "E211" // type entry fails ir.Type validation
	ErrMissingBody      = "E212" // non-external function without a body
	ErrExternalBody     = "E213" // external declaration carries a body
	ErrDanglingLoop     = "E214" // loop invariant names an unknown loop id
	ErrDuplicateLoopID  = "E215" // loop id reused within one function
	ErrMalformedExpr    = "E216" // expression missing required fields
	ErrGenericHarness   = "E217" // generic function annotated as harness
	ErrDuplicateGlobal  = "E218" // global name declared twice
	ErrDanglingContract = "E219" // contract on a function with no body
)

// ValidationError is one catalog integrity failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks referential integrity across the catalog: every type
// reference resolves, every loop invariant names a declared loop, and
// bodies are present exactly where required. Returns all errors found.
func Validate(cat *Catalog) []ValidationError {
	var errs []ValidationError

	for id, typ := range cat.Types {
		if err := typ.Validate(); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types[%s]", id),
				Message: err.Error(),
				Code:    ErrBadTypeShape,
			})
		}
	}

	globalNames := make(map[string]bool)
	for i, g := range cat.Globals {
		if globalNames[g.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("globals[%d]", i),
				Message: fmt.Sprintf("duplicate global %q", g.Name),
				Code:    ErrDuplicateGlobal,
			})
		}
		globalNames[g.Name] = true
		errs = append(errs, checkTypeRef(cat, fmt.Sprintf("globals[%d].type", i), g.Type)...)
	}

	for name, fn := range cat.Functions {
		errs = append(errs, validateFunction(cat, name, fn)...)
	}
	return errs
}

func validateFunction(cat *Catalog, name string, fn *Function) []ValidationError {
	var errs []ValidationError
	field := func(suffix string) string { return fmt.Sprintf("functions[%s].%s", name, suffix) }

	for i, p := range fn.Params {
		errs = append(errs, checkTypeRef(cat, field(fmt.Sprintf("params[%d].type", i)), p.Type)...)
	}
	if fn.Returns != "" {
		errs = append(errs, checkTypeRef(cat, field("returns"), fn.Returns)...)
	}

	if fn.External {
		if len(fn.Body) > 0 {
			errs = append(errs, ValidationError{
				Field:   field("body"),
				Message: "external declaration must not have a body",
				Code:    ErrExternalBody,
			})
		}
	} else if len(fn.Body) == 0 {
		errs = append(errs, ValidationError{
			Field:   field("body"),
			Message: "function is not external and has no body",
			Code:    ErrMissingBody,
		})
	}

	if fn.Generic && fn.Harness {
		errs = append(errs, ValidationError{
			Field:   field("harness"),
			Message: "generic function cannot be a harness",
			Code:    ErrGenericHarness,
		})
	}

	loops := make(map[string]bool)
	errs = append(errs, collectLoops(cat, field("body"), fn.Body, loops)...)

	if fn.Contract != nil {
		if fn.External {
			// Contracts on externals are allowed: they supply the stub
			// semantics for call sites.
		} else if len(fn.Body) == 0 {
			errs = append(errs, ValidationError{
				Field:   field("contract"),
				Message: "contract on a function with no body",
				Code:    ErrDanglingContract,
			})
		}
		for i, e := range fn.Contract.Requires {
			errs = append(errs, checkExpr(cat, field(fmt.Sprintf("contract.requires[%d]", i)), e)...)
		}
		for i, e := range fn.Contract.Ensures {
			errs = append(errs, checkExpr(cat, field(fmt.Sprintf("contract.ensures[%d]", i)), e)...)
		}
		for i, li := range fn.Contract.LoopInvariants {
			if !loops[li.Loop] {
				errs = append(errs, ValidationError{
					Field:   field(fmt.Sprintf("contract.loop_invariants[%d]", i)),
					Message: fmt.Sprintf("unknown loop id %q", li.Loop),
					Code:    ErrDanglingLoop,
				})
			}
			errs = append(errs, checkExpr(cat, field(fmt.Sprintf("contract.loop_invariants[%d].invariant", i)), li.Invariant)...)
		}
	}
	return errs
}

// collectLoops walks a statement tree, recording loop ids and checking
// statement-level type and expression references.
func collectLoops(cat *Catalog, field string, body []Stmt, loops map[string]bool) []ValidationError {
	var errs []ValidationError
	for i, s := range body {
		f := fmt.Sprintf("%s[%d]", field, i)
		if s.Type != "" {
			errs = append(errs, checkTypeRef(cat, f+".type", s.Type)...)
		}
		if s.Expr != nil {
			errs = append(errs, checkExpr(cat, f+".expr", s.Expr)...)
		}
		for j, a := range s.Args {
			errs = append(errs, checkExpr(cat, fmt.Sprintf("%s.args[%d]", f, j), a)...)
		}
		if s.Kind == StmtWhile && s.LoopID != "" {
			if loops[s.LoopID] {
				errs = append(errs, ValidationError{
					Field:   f + ".loop_id",
					Message: fmt.Sprintf("duplicate loop id %q", s.LoopID),
					Code:    ErrDuplicateLoopID,
				})
			}
			loops[s.LoopID] = true
		}
		errs = append(errs, collectLoops(cat, f+".then", s.Then, loops)...)
		errs = append(errs, collectLoops(cat, f+".else", s.Else, loops)...)
		errs = append(errs, collectLoops(cat, f+".body", s.Body, loops)...)
	}
	return errs
}

func checkExpr(cat *Catalog, field string, e *Expr) []ValidationError {
	if e == nil {
		return []ValidationError{{Field: field, Message: "expression is null", Code: ErrMalformedExpr}}
	}
	var errs []ValidationError
	errs = append(errs, checkTypeRef(cat, field+".type", e.Type)...)
	switch e.Kind {
	case "lit":
		if e.Int == nil && e.Bool == nil {
			errs = append(errs, ValidationError{Field: field, Message: "literal has no value", Code: ErrMalformedExpr})
		}
	case "sym":
		if e.Sym == "" {
			errs = append(errs, ValidationError{Field: field, Message: "symbol reference has no name", Code: ErrMalformedExpr})
		}
	case "unary", "cast":
		if len(e.Args) != 1 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s expression needs exactly one operand, got %d", e.Kind, len(e.Args)),
				Code:    ErrMalformedExpr,
			})
		}
	case "binary":
		if len(e.Args) != 2 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("binary expression needs exactly two operands, got %d", len(e.Args)),
				Code:    ErrMalformedExpr,
			})
		}
	}
	for i, a := range e.Args {
		errs = append(errs, checkExpr(cat, fmt.Sprintf("%s.args[%d]", field, i), a)...)
	}
	return errs
}

func checkTypeRef(cat *Catalog, field, id string) []ValidationError {
	if id == "" {
		return nil
	}
	if _, ok := cat.Types[id]; !ok {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("unknown type id %q", id),
			Code:    ErrDanglingType,
		}}
	}
	return nil
}
