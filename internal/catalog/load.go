package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/vex/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// LoadError reports a failure to read or schema-validate a catalog
// document. These are the only errors that abort a whole run before
// any harness is scheduled.
type LoadError struct {
	Path    string
	Code    string
	Message string
}

// Load error codes (E200-E209).
const (
	ErrCatalogNotFound = "E200" // file missing or unreadable
	ErrCatalogSyntax   = "E201" // not valid JSON
	ErrCatalogSchema   = "E202" // JSON does not conform to #Catalog
	ErrCatalogDecode   = "E203" // conformant JSON failed to decode
)

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Load reads a catalog JSON document from path, validates it against
// the embedded CUE schema, and checks referential integrity.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCatalogNotFound, Message: fmt.Sprintf("reading catalog: %v", err)}
	}
	cat, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
		}
		return nil, err
	}
	return cat, nil
}

// Parse validates and decodes a catalog document from raw JSON bytes.
func Parse(data []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling catalog schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("resolving #Catalog: %w", err)
	}

	expr, err := cuejson.Extract("catalog.json", data)
	if err != nil {
		return nil, &LoadError{Code: ErrCatalogSyntax, Message: fmt.Sprintf("parsing catalog JSON: %v", err)}
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return nil, &LoadError{Code: ErrCatalogSyntax, Message: fmt.Sprintf("building catalog value: %v", err)}
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCatalogSchema, Message: fmt.Sprintf("catalog does not match schema: %v", err)}
	}

	var cat Catalog
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cat); err != nil {
		return nil, &LoadError{Code: ErrCatalogDecode, Message: fmt.Sprintf("decoding catalog: %v", err)}
	}

	// Bool entries need no width in the interchange form; normalize to
	// the IR's single-bit representation before integrity checks.
	for id, typ := range cat.Types {
		if typ.Kind == ir.KindBool && typ.Width == 0 {
			typ.Width = 1
			cat.Types[id] = typ
		}
	}

	// Function map keys must match the embedded names.
	for key, fn := range cat.Functions {
		if fn.Name == "" {
			fn.Name = key
		} else if fn.Name != key {
			return nil, &LoadError{
				Code:    ErrCatalogSchema,
				Message: fmt.Sprintf("function key %q does not match declared name %q", key, fn.Name),
			}
		}
	}

	if errs := Validate(&cat); len(errs) > 0 {
		return nil, &LoadError{Code: ErrCatalogSchema, Message: joinValidationErrors(errs)}
	}
	return &cat, nil
}

func joinValidationErrors(errs []ValidationError) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msg := fmt.Sprintf("%d integrity errors:", len(errs))
	for _, e := range errs {
		msg += "\n\t" + e.Error()
	}
	return msg
}
