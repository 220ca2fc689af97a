package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vex/internal/ir"
)

func TestLoadDivideFixture(t *testing.T) {
	cat, err := Load(filepath.Join("testdata", "divide.json"))
	require.NoError(t, err)

	assert.Equal(t, "1", cat.FormatVersion)
	assert.Len(t, cat.Functions, 2)

	div, ok := cat.FunctionByName("divide")
	require.True(t, ok)
	assert.Equal(t, "divide", div.Name)
	require.Len(t, div.Params, 2)
	assert.Equal(t, "i32", div.Params[0].Type)
	require.NotNil(t, div.Contract)
	assert.Len(t, div.Contract.Requires, 1)

	typ, ok := cat.TypeByID("i32")
	require.True(t, ok)
	assert.Equal(t, ir.KindInt, typ.Kind)
	assert.True(t, typ.Signed)
	assert.Equal(t, uint32(32), typ.Width)

	h, ok := cat.FunctionByName("check_divide")
	require.True(t, ok)
	assert.True(t, h.Harness)
	require.NotNil(t, h.HarnessConfig)
	assert.Equal(t, uint32(4), h.HarnessConfig.Unwind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.json"))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCatalogNotFound, le.Code)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"format_version": "1",`))
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCatalogSyntax, le.Code)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown statement kind",
			doc: `{
				"format_version": "1",
				"types": {"bool": {"kind": "bool"}},
				"functions": {
					"f": {"name": "f", "body": [{"kind": "goto"}]}
				}
			}`,
		},
		{
			name: "wrong format version",
			doc: `{
				"format_version": "2",
				"types": {},
				"functions": {}
			}`,
		},
		{
			name: "invalid int width",
			doc: `{
				"format_version": "1",
				"types": {"i3": {"kind": "int", "signed": true, "width": 3}},
				"functions": {}
			}`,
		},
		{
			name: "bad expected outcome",
			doc: `{
				"format_version": "1",
				"types": {},
				"functions": {
					"f": {
						"name": "f",
						"harness": true,
						"harness_config": {"expected": "maybe"},
						"body": [{"kind": "nop"}]
					}
				}
			}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, ErrCatalogSchema, le.Code)
		})
	}
}

func TestParseRejectsKeyNameMismatch(t *testing.T) {
	doc := `{
		"format_version": "1",
		"types": {},
		"functions": {
			"f": {"name": "g", "body": [{"kind": "nop"}]}
		}
	}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `does not match declared name`)
}

func TestParseFillsNameFromKey(t *testing.T) {
	doc := `{
		"format_version": "1",
		"types": {},
		"functions": {
			"f": {"name": "f", "body": [{"kind": "nop"}]}
		}
	}`
	cat, err := Parse([]byte(doc))
	require.NoError(t, err)
	fn, ok := cat.FunctionByName("f")
	require.True(t, ok)
	assert.Equal(t, "f", fn.Name)
}

func TestValidateIntegrity(t *testing.T) {
	boolT := ir.BoolType()
	i32 := ir.IntType(true, 32, "i32")

	tests := []struct {
		name     string
		cat      Catalog
		wantCode string
	}{
		{
			name: "dangling type reference",
			cat: Catalog{
				Types: map[string]ir.Type{"bool": boolT},
				Functions: map[string]*Function{
					"f": {
						Name:   "f",
						Params: []Param{{Name: "x", Type: "i64"}},
						Body:   []Stmt{{Kind: StmtNop}},
					},
				},
			},
			wantCode: ErrDanglingType,
		},
		{
			name: "missing body",
			cat: Catalog{
				Types:     map[string]ir.Type{},
				Functions: map[string]*Function{"f": {Name: "f"}},
			},
			wantCode: ErrMissingBody,
		},
		{
			name: "external with body",
			cat: Catalog{
				Types: map[string]ir.Type{},
				Functions: map[string]*Function{
					"f": {Name: "f", External: true, Body: []Stmt{{Kind: StmtNop}}},
				},
			},
			wantCode: ErrExternalBody,
		},
		{
			name: "generic harness",
			cat: Catalog{
				Types: map[string]ir.Type{},
				Functions: map[string]*Function{
					"f": {Name: "f", Generic: true, Harness: true, Body: []Stmt{{Kind: StmtNop}}},
				},
			},
			wantCode: ErrGenericHarness,
		},
		{
			name: "unknown loop id in invariant",
			cat: Catalog{
				Types: map[string]ir.Type{"bool": boolT},
				Functions: map[string]*Function{
					"f": {
						Name: "f",
						Contract: &Contract{
							LoopInvariants: []LoopInvariant{{
								Loop:      "loop_9",
								Invariant: &Expr{Kind: "lit", Type: "bool", Bool: boolPtr(true)},
							}},
						},
						Body: []Stmt{{Kind: StmtNop}},
					},
				},
			},
			wantCode: ErrDanglingLoop,
		},
		{
			name: "duplicate loop id",
			cat: Catalog{
				Types: map[string]ir.Type{"bool": boolT, "i32": i32},
				Functions: map[string]*Function{
					"f": {
						Name: "f",
						Body: []Stmt{
							{
								Kind:   StmtWhile,
								LoopID: "l0",
								Expr:   &Expr{Kind: "lit", Type: "bool", Bool: boolPtr(false)},
								Body: []Stmt{{
									Kind:   StmtWhile,
									LoopID: "l0",
									Expr:   &Expr{Kind: "lit", Type: "bool", Bool: boolPtr(false)},
								}},
							},
						},
					},
				},
			},
			wantCode: ErrDuplicateLoopID,
		},
		{
			name: "binary expression arity",
			cat: Catalog{
				Types: map[string]ir.Type{"bool": boolT},
				Functions: map[string]*Function{
					"f": {
						Name: "f",
						Body: []Stmt{{
							Kind: StmtAssert,
							Expr: &Expr{Kind: "binary", Type: "bool", Op: "land"},
						}},
					},
				},
			},
			wantCode: ErrMalformedExpr,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.cat)
			require.NotEmpty(t, errs)
			codes := make([]string, 0, len(errs))
			for _, e := range errs {
				codes = append(codes, e.Code)
			}
			assert.Contains(t, codes, tt.wantCode)
		})
	}
}

func boolPtr(b bool) *bool { return &b }
