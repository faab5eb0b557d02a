// Package value defines the in-memory value AST that guest import/export
// arguments and results are lifted into at the host boundary. The AST is
// untyped on its own; the transcoder package pairs it with a schema.Type to
// know how to read or write it.
package value

// Value is a tagged union over every shape in the schema type vocabulary.
// Only the fields relevant to Kind are populated; the rest are zero.
type Value struct {
	Kind Kind

	B    bool
	I    int64
	U    uint64
	F    float64
	Str  string // string, or char (as a single-rune string)
	Blob []byte

	Items []*Value // list, tuple

	HasSome bool   // option: true => Some(Inner)
	Inner   *Value // option payload, result payload

	IsErr bool // result: false => Ok(Inner), true => Err(Inner)

	Fields map[string]*Value // record
	Order  []string          // record field order, for stable re-encoding

	Case    string // variant case name, or enum name
	Payload *Value // variant payload, nil for unit cases

	Names []string // flags
}

// Kind mirrors schema.Kind without importing it, keeping this package usable
// independently of the schema tree (the transcoder is what ties them
// together).
type Kind int

const (
	KBool Kind = iota
	KInt
	KUint
	KFloat
	KString
	KBytes
	KList
	KOption
	KResult
	KTuple
	KRecord
	KVariant
	KEnum
	KFlags
)

// Bool, Int, Uint, Float, Str, Bytes construct leaf values.
func Bool(v bool) *Value    { return &Value{Kind: KBool, B: v} }
func Int(v int64) *Value    { return &Value{Kind: KInt, I: v} }
func Uint(v uint64) *Value  { return &Value{Kind: KUint, U: v} }
func Float(v float64) *Value { return &Value{Kind: KFloat, F: v} }
func Str(v string) *Value   { return &Value{Kind: KString, Str: v} }
func Bytes(v []byte) *Value { return &Value{Kind: KBytes, Blob: v} }

// List constructs a list value from its ordered elements.
func List(items ...*Value) *Value { return &Value{Kind: KList, Items: items} }

// Tuple constructs a tuple value from its ordered elements.
func Tuple(items ...*Value) *Value { return &Value{Kind: KTuple, Items: items} }

// None constructs an absent option.
func None() *Value { return &Value{Kind: KOption, HasSome: false} }

// Some constructs a present option wrapping inner.
func Some(inner *Value) *Value { return &Value{Kind: KOption, HasSome: true, Inner: inner} }

// Ok constructs a successful result wrapping inner.
func Ok(inner *Value) *Value { return &Value{Kind: KResult, IsErr: false, Inner: inner} }

// Err constructs a failed result wrapping inner.
func Err(inner *Value) *Value { return &Value{Kind: KResult, IsErr: true, Inner: inner} }

// Record constructs a record value; order fixes field encoding order and
// must match the Fields map's keys exactly.
func Record(order []string, fields map[string]*Value) *Value {
	return &Value{Kind: KRecord, Fields: fields, Order: order}
}

// Variant constructs a variant value for the named case; payload may be nil
// for a unit case.
func Variant(caseName string, payload *Value) *Value {
	return &Value{Kind: KVariant, Case: caseName, Payload: payload}
}

// EnumVal constructs an enum value naming its active case.
func EnumVal(name string) *Value { return &Value{Kind: KEnum, Case: name} }

// FlagsVal constructs a flags value from the set of active flag names.
func FlagsVal(names ...string) *Value { return &Value{Kind: KFlags, Names: names} }
