// Package schema describes the closed type vocabulary that every imported
// or exported interface function is built from: primitives, composites
// (list, option, result, tuple, record) and tagged sums (variant, enum,
// flags). Resource handles are representable but rejected wherever a value
// of that type would have to cross the wire (see binder.ResourceInSignature).
package schema

import "fmt"

// Kind enumerates the shapes a Type can take.
type Kind int

const (
	KindBool Kind = iota
	KindS8
	KindS16
	KindS32
	KindS64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindChar
	KindString
	KindBytes
	KindList
	KindOption
	KindResult
	KindTuple
	KindRecord
	KindVariant
	KindEnum
	KindFlags
	KindResource
)

func (k Kind) String() string {
	names := [...]string{
		"bool", "s8", "s16", "s32", "s64", "u8", "u16", "u32", "u64",
		"f32", "f64", "char", "string", "bytes", "list", "option",
		"result", "tuple", "record", "variant", "enum", "flags", "resource",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "unknown"
	}
	return names[k]
}

// Field is one named member of a record type.
type Field struct {
	Name string
	Type *Type
}

// Case is one named arm of a variant type. Type is nil when the case
// carries no payload.
type Case struct {
	Name string
	Type *Type
}

// Type is a node in the recursive type tree. Which fields are meaningful
// depends on Kind; see the Kind* constructors below for the canonical shape
// of each.
type Type struct {
	Kind   Kind
	Elem   *Type   // list<T>, option<T>
	Ok     *Type   // result<T,_>
	Err    *Type   // result<_,E>
	Tuple  []*Type // tuple<...>
	Fields []Field // record<field:T...>
	Cases  []Case  // variant{case->optional T}
	Names  []string
}

func prim(k Kind) *Type { return &Type{Kind: k} }

// Bool, S8 .. Flags construct leaf or composite Type values.
func Bool() *Type   { return prim(KindBool) }
func S8() *Type      { return prim(KindS8) }
func S16() *Type     { return prim(KindS16) }
func S32() *Type     { return prim(KindS32) }
func S64() *Type     { return prim(KindS64) }
func U8() *Type      { return prim(KindU8) }
func U16() *Type     { return prim(KindU16) }
func U32() *Type     { return prim(KindU32) }
func U64() *Type     { return prim(KindU64) }
func F32() *Type     { return prim(KindF32) }
func F64() *Type     { return prim(KindF64) }
func Char() *Type    { return prim(KindChar) }
func String() *Type  { return prim(KindString) }
func Bytes() *Type   { return prim(KindBytes) }
func Resource() *Type { return prim(KindResource) }

// List constructs list<elem>.
func List(elem *Type) *Type { return &Type{Kind: KindList, Elem: elem} }

// Option constructs option<elem>.
func Option(elem *Type) *Type { return &Type{Kind: KindOption, Elem: elem} }

// Result constructs result<ok,err>. Either side may be nil to mean unit.
func Result(ok, err *Type) *Type { return &Type{Kind: KindResult, Ok: ok, Err: err} }

// TupleOf constructs tuple<...>.
func TupleOf(elems ...*Type) *Type { return &Type{Kind: KindTuple, Tuple: elems} }

// Record constructs record<fields...>.
func Record(fields ...Field) *Type { return &Type{Kind: KindRecord, Fields: fields} }

// Variant constructs variant{cases...}.
func Variant(cases ...Case) *Type { return &Type{Kind: KindVariant, Cases: cases} }

// Enum constructs enum{names...}.
func Enum(names ...string) *Type { return &Type{Kind: KindEnum, Names: names} }

// Flags constructs flags{names...}.
func Flags(names ...string) *Type { return &Type{Kind: KindFlags, Names: names} }

// HasResource reports whether t or any type reachable from it is a resource
// handle. The binder consults this at link time; the transcoder separately
// refuses to encode resource values as defense in depth.
func HasResource(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindResource:
		return true
	case KindList, KindOption:
		return HasResource(t.Elem)
	case KindResult:
		return HasResource(t.Ok) || HasResource(t.Err)
	case KindTuple:
		for _, e := range t.Tuple {
			if HasResource(e) {
				return true
			}
		}
	case KindRecord:
		for _, f := range t.Fields {
			if HasResource(f.Type) {
				return true
			}
		}
	case KindVariant:
		for _, c := range t.Cases {
			if HasResource(c.Type) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether two types are structurally identical: field order
// and names matter for records, case order matters for variants.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList, KindOption:
		return Equal(a.Elem, b.Elem)
	case KindResult:
		return Equal(a.Ok, b.Ok) && Equal(a.Err, b.Err)
	case KindTuple:
		if len(a.Tuple) != len(b.Tuple) {
			return false
		}
		for i := range a.Tuple {
			if !Equal(a.Tuple[i], b.Tuple[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case KindVariant:
		if len(a.Cases) != len(b.Cases) {
			return false
		}
		for i := range a.Cases {
			if a.Cases[i].Name != b.Cases[i].Name || !Equal(a.Cases[i].Type, b.Cases[i].Type) {
				return false
			}
		}
		return true
	case KindEnum, KindFlags:
		if len(a.Names) != len(b.Names) {
			return false
		}
		for i := range a.Names {
			if a.Names[i] != b.Names[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders a Type as a WIT-like signature for error messages and logs.
func (t *Type) String() string {
	if t == nil {
		return "()"
	}
	switch t.Kind {
	case KindList:
		return fmt.Sprintf("list<%s>", t.Elem)
	case KindOption:
		return fmt.Sprintf("option<%s>", t.Elem)
	case KindResult:
		return fmt.Sprintf("result<%s,%s>", t.Ok, t.Err)
	case KindTuple:
		return fmt.Sprintf("tuple%v", t.Tuple)
	case KindRecord:
		return fmt.Sprintf("record%v", t.Fields)
	case KindVariant:
		return fmt.Sprintf("variant%v", t.Cases)
	case KindEnum:
		return fmt.Sprintf("enum%v", t.Names)
	case KindFlags:
		return fmt.Sprintf("flags%v", t.Names)
	default:
		return t.Kind.String()
	}
}
