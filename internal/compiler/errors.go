package compiler

import "fmt"

// Build error codes (E300-E319). Build errors mean the catalog and the
// harness disagree in a way the front end should have prevented; they
// are reported per harness and never abort the batch.
const (
	ErrUnknownTarget = "E300" // harness target not in the catalog
	ErrBadExpression = "E301" // expression failed to lower
	ErrBadStatement  = "E302" // statement structurally invalid
	ErrArityMismatch = "E303" // call argument count != parameter count
	ErrUnknownSymbol = "E304" // assignment to an undeclared symbol
	ErrBadClause     = "E305" // contract clause site not present in the body
	ErrInternal      = "E309" // unit failed self-validation after build
)

// BuildError locates a failure to translate one harness.
type BuildError struct {
	Harness string `json:"harness"`
	Code    string `json:"code"`
	Where   string `json:"where,omitempty"` // function and statement path
	Message string `json:"message"`
}

func (e *BuildError) Error() string {
	if e.Where != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Harness, e.Where, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Harness, e.Message)
}

func buildErr(harness, code, where, format string, args ...any) *BuildError {
	return &BuildError{
		Harness: harness,
		Code:    code,
		Where:   where,
		Message: fmt.Sprintf(format, args...),
	}
}
