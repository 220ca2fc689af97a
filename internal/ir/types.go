package ir

import "fmt"

// TypeKind discriminates the value types the IR can express.
type TypeKind string

const (
	// KindBool is a single-bit boolean.
	KindBool TypeKind = "bool"

	// KindInt is a fixed-width two's-complement integer.
	KindInt TypeKind = "int"
)

// Type describes the representation of a value. Widths are bit counts and
// are preserved bit-exactly from the catalog's declared representation -
// this is required for soundness of the downstream oracle.
type Type struct {
	Kind   TypeKind `json:"kind"`
	Signed bool     `json:"signed,omitempty"`
	Width  uint32   `json:"width"`
	Name   string   `json:"name,omitempty"` // display name, e.g. "i32"
}

// BoolType returns the canonical boolean type.
func BoolType() Type {
	return Type{Kind: KindBool, Width: 1, Name: "bool"}
}

// IntType returns a fixed-width integer type.
func IntType(signed bool, width uint32, name string) Type {
	return Type{Kind: KindInt, Signed: signed, Width: width, Name: name}
}

// Validate checks that the type is one the pipeline can represent.
func (t Type) Validate() error {
	switch t.Kind {
	case KindBool:
		if t.Width != 1 {
			return fmt.Errorf("bool type must have width 1, got %d", t.Width)
		}
	case KindInt:
		if t.Width == 0 || t.Width > 64 {
			return fmt.Errorf("int width must be in 1..64, got %d", t.Width)
		}
	default:
		return fmt.Errorf("unknown type kind %q", t.Kind)
	}
	return nil
}

// Equal reports representation equality. Display names do not participate:
// two catalogs may name the same 32-bit signed integer differently.
func (t Type) Equal(o Type) bool {
	return t.Kind == o.Kind && t.Signed == o.Signed && t.Width == o.Width
}

// String renders a short human-readable form.
func (t Type) String() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Kind == KindBool {
		return "bool"
	}
	if t.Signed {
		return fmt.Sprintf("i%d", t.Width)
	}
	return fmt.Sprintf("u%d", t.Width)
}

// StorageClass says where a symbol lives.
type StorageClass string

const (
	StorageParam  StorageClass = "param"
	StorageLocal  StorageClass = "local"
	StorageGlobal StorageClass = "global"
	StorageTemp   StorageClass = "temp" // compiler-introduced
)

// Symbol is one entry of a Unit's symbol table.
type Symbol struct {
	Name    string       `json:"name"`
	Typ     Type         `json:"type"`
	Storage StorageClass `json:"storage"`
}

// SymbolTable maps names to typed storage. Iteration must go through
// the Unit's ordered symbol slice; the map exists for lookup only.
type SymbolTable map[string]Symbol
