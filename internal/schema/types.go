// Package schema parses the IDL that describes a game's wire interface and
// reduces it into a form the codec generator can walk without revisiting
// named types.
package schema

import "fmt"

// Builtin is one of the scalar wire types.
type Builtin int

const (
	U8 Builtin = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
	Bool
	Str
)

func (b Builtin) String() string {
	switch b {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case I8:
		return "i8"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case Str:
		return "str"
	default:
		return "unknown"
	}
}

// Kind discriminates the Type union.
type Kind int

const (
	KindBuiltin Kind = iota
	KindStruct
	KindArray
	KindDynamicArray
	KindEnum
	KindNamed
)

// StructField is one named, typed member of a struct or enum variant.
type StructField struct {
	Name string
	Type Type
}

// EnumVariant is one tagged alternative of an Enum type.
type EnumVariant struct {
	Name   string
	Fields []StructField
}

// Type is the recursive wire-type union: exactly one of the fields
// matching Kind is populated.
type Type struct {
	Kind Kind

	Builtin Builtin

	Fields []StructField // KindStruct

	Elem     *Type // KindArray, KindDynamicArray
	ArrayLen int   // KindArray only

	Variants []EnumVariant // KindEnum

	Name string // KindNamed
}

// TagWidth returns the byte width of the discriminant tag a value of this
// enum type is framed with: ceil(log2(len(variants))/8) rounded up to the
// next power-of-two width, minimum 1 byte.
func TagWidth(numVariants int) (int, error) {
	switch {
	case numVariants <= 1<<8:
		return 1, nil
	case numVariants <= 1<<16:
		return 2, nil
	case numVariants <= 1<<32:
		return 4, nil
	case numVariants >= 0:
		return 8, nil
	default:
		return 0, fmt.Errorf("schema: invalid variant count %d", numVariants)
	}
}

// IsBasicEnum reports whether every variant carries no payload fields, so
// the codec can treat it as a plain tagged constant rather than a union.
func IsBasicEnum(variants []EnumVariant) bool {
	for _, v := range variants {
		if len(v.Fields) != 0 {
			return false
		}
	}
	return true
}

// FunctionSignature is a named operation's argument list and optional
// return type, as declared in the schema with `function f = (args) -> ret;`.
type FunctionSignature struct {
	Args []StructField
	Ret  *Type
}

// NamedType pairs a type's declared name with its definition, preserving
// declaration order.
type NamedType struct {
	Name string
	Type Type
}

// NamedFunction pairs a function's declared name with its signature.
type NamedFunction struct {
	Name string
	Sig  FunctionSignature
}

// Interface is the fully parsed contents of one schema file: the named
// types and functions it declares, in source order.
type Interface struct {
	Name      string
	Types     []NamedType
	Functions []NamedFunction
}
