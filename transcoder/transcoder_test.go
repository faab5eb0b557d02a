package transcoder

import (
	"testing"

	"isocore/codec"
	"isocore/schema"
	"isocore/value"
)

func roundTrip(t *testing.T, v *value.Value, typ *schema.Type) *value.Value {
	t.Helper()
	enc := codec.NewEncoder()
	if err := Encode(enc, v, typ); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := codec.NewDecoder(enc.Bytes())
	got, err := Decode(dec, typ)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.Remaining() != 0 {
		t.Fatalf("leftover bytes: %d", dec.Remaining())
	}
	return got
}

func TestPrimitiveRoundTrip(t *testing.T) {
	got := roundTrip(t, value.Uint(42), schema.U32())
	if got.U != 42 {
		t.Fatalf("want 42, got %d", got.U)
	}
}

func TestNestedListOptionTupleRoundTrip(t *testing.T) {
	// list<option<tuple<u32,u32>>>
	typ := schema.List(schema.Option(schema.TupleOf(schema.U32(), schema.U32())))
	v := value.List(
		value.Some(value.Tuple(value.Uint(1), value.Uint(2))),
		value.None(),
		value.Some(value.Tuple(value.Uint(3), value.Uint(4))),
	)
	got := roundTrip(t, v, typ)
	if len(got.Items) != 3 {
		t.Fatalf("want 3 items, got %d", len(got.Items))
	}
	if !got.Items[0].HasSome || got.Items[0].Inner.Items[0].U != 1 || got.Items[0].Inner.Items[1].U != 2 {
		t.Fatalf("item 0 mismatch: %+v", got.Items[0])
	}
	if got.Items[1].HasSome {
		t.Fatalf("item 1 should be none")
	}
}

func TestResultOptionVariantRoundTrip(t *testing.T) {
	// result<option<string>, variant{A,B(u32)}>
	variantType := schema.Variant(schema.Case{Name: "A"}, schema.Case{Name: "B", Type: schema.U32()})
	typ := schema.Result(schema.Option(schema.String()), variantType)

	ok := value.Ok(value.Some(value.Str("hi")))
	got := roundTrip(t, ok, typ)
	if got.IsErr || !got.Inner.HasSome || got.Inner.Inner.Str != "hi" {
		t.Fatalf("ok case mismatch: %+v", got)
	}

	errVal := value.Err(value.Variant("B", value.Uint(7)))
	got2 := roundTrip(t, errVal, typ)
	if !got2.IsErr || got2.Inner.Case != "B" || got2.Inner.Payload.U != 7 {
		t.Fatalf("err case mismatch: %+v", got2)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	typ := schema.Record(
		schema.Field{Name: "id", Type: schema.U64()},
		schema.Field{Name: "name", Type: schema.String()},
	)
	v := value.Record([]string{"id", "name"}, map[string]*value.Value{
		"id":   value.Uint(7),
		"name": value.Str("widget"),
	})
	got := roundTrip(t, v, typ)
	if got.Fields["id"].U != 7 || got.Fields["name"].Str != "widget" {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestEnumAndFlagsRoundTrip(t *testing.T) {
	enumType := schema.Enum("Red", "Green", "Blue")
	got := roundTrip(t, value.EnumVal("Green"), enumType)
	if got.Case != "Green" {
		t.Fatalf("enum mismatch: %+v", got)
	}

	flagsType := schema.Flags("Read", "Write", "Exec")
	got2 := roundTrip(t, value.FlagsVal("Read", "Exec"), flagsType)
	if len(got2.Names) != 2 || got2.Names[0] != "Read" || got2.Names[1] != "Exec" {
		t.Fatalf("flags mismatch: %+v", got2)
	}
}

func TestCharSharesWireRepresentationWithU32(t *testing.T) {
	enc := codec.NewEncoder()
	if err := Encode(enc, value.Str("A"), schema.Char()); err != nil {
		t.Fatal(err)
	}
	dec := codec.NewDecoder(enc.Bytes())
	got, err := dec.ReadU32()
	if err != nil {
		t.Fatal(err)
	}
	if rune(got) != 'A' {
		t.Fatalf("want 'A', got %d", got)
	}
}

func TestResourceEncodeTraps(t *testing.T) {
	enc := codec.NewEncoder()
	err := Encode(enc, value.Bool(true), schema.Resource())
	if err != ErrResourceValue {
		t.Fatalf("expected ErrResourceValue, got %v", err)
	}
}

func TestDecodeTagMismatchSurfacesAsDecodeError(t *testing.T) {
	enc := codec.NewEncoder()
	enc.WriteU32(1)
	dec := codec.NewDecoder(enc.Bytes())
	_, err := Decode(dec, schema.String())
	if err == nil {
		t.Fatal("expected decode error on tag mismatch")
	}
}
