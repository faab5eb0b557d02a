package codec

import (
	"bytes"
	"testing"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.WriteBool(true)
	e.WriteU32(42)
	e.WriteS64(-7)
	if err := e.WriteString("hello"); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(e.Bytes())
	b, err := d.ReadBool()
	if err != nil || b != true {
		t.Fatalf("bool: %v %v", b, err)
	}
	u, err := d.ReadU32()
	if err != nil || u != 42 {
		t.Fatalf("u32: %v %v", u, err)
	}
	s64, err := d.ReadS64()
	if err != nil || s64 != -7 {
		t.Fatalf("s64: %v %v", s64, err)
	}
	str, err := d.ReadString()
	if err != nil || str != "hello" {
		t.Fatalf("string: %v %v", str, err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("expected fully consumed buffer, %d bytes left", d.Remaining())
	}
}

func TestListRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.OpenList()
	e.WriteU32(1)
	e.WriteU32(2)
	e.WriteU32(3)
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(e.Bytes())
	end, err := d.EnterContainer(TagList)
	if err != nil {
		t.Fatal(err)
	}
	var got []uint32
	for d.Pos() < end {
		v, err := d.ReadU32()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	if err := d.ExitContainer(end); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestOptionRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.WriteOptionNone()
	d := NewDecoder(e.Bytes())
	end, err := d.EnterContainer(TagOption)
	if err != nil {
		t.Fatal(err)
	}
	disc, err := d.ReadDiscriminant()
	if err != nil || disc != 0 {
		t.Fatalf("want none discriminant, got %d err %v", disc, err)
	}
	if err := d.ExitContainer(end); err != nil {
		t.Fatal(err)
	}

	e2 := NewEncoder()
	e2.OpenOptionSome()
	e2.WriteU64(99)
	if err := e2.Finish(); err != nil {
		t.Fatal(err)
	}
	d2 := NewDecoder(e2.Bytes())
	end2, err := d2.EnterContainer(TagOption)
	if err != nil {
		t.Fatal(err)
	}
	disc2, err := d2.ReadDiscriminant()
	if err != nil || disc2 != 1 {
		t.Fatalf("want some discriminant, got %d err %v", disc2, err)
	}
	v, err := d2.ReadU64()
	if err != nil || v != 99 {
		t.Fatalf("inner value: %v %v", v, err)
	}
	if err := d2.ExitContainer(end2); err != nil {
		t.Fatal(err)
	}
}

func TestVariantRoundTrip(t *testing.T) {
	e := NewEncoder()
	if err := e.OpenVariant("B"); err != nil {
		t.Fatal(err)
	}
	e.WriteU32(7)
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(e.Bytes())
	end, err := d.EnterContainer(TagVariant)
	if err != nil {
		t.Fatal(err)
	}
	name, err := d.ReadCaseName()
	if err != nil || name != "B" {
		t.Fatalf("case name: %q %v", name, err)
	}
	v, err := d.ReadU32()
	if err != nil || v != 7 {
		t.Fatalf("payload: %v %v", v, err)
	}
	if err := d.ExitContainer(end); err != nil {
		t.Fatal(err)
	}
}

func TestTagMismatchIsExplicit(t *testing.T) {
	e := NewEncoder()
	e.WriteU32(1)
	d := NewDecoder(e.Bytes())
	_, err := d.ReadString()
	var mismatch *TagMismatch
	if err == nil {
		t.Fatal("expected tag mismatch error")
	}
	if !errorsAs(err, &mismatch) {
		t.Fatalf("expected *TagMismatch, got %T: %v", err, err)
	}
	if mismatch.Expected != TagString || mismatch.Got != TagU32 {
		t.Fatalf("unexpected mismatch fields: %+v", mismatch)
	}
}

func TestSkipValueAdvancesPastUnknownPayload(t *testing.T) {
	e := NewEncoder()
	e.OpenList()
	e.WriteU32(1)
	e.WriteU32(2)
	if err := e.Finish(); err != nil {
		t.Fatal(err)
	}
	e.WriteBool(true)

	d := NewDecoder(e.Bytes())
	if err := d.SkipValue(); err != nil {
		t.Fatal(err)
	}
	b, err := d.ReadBool()
	if err != nil || !b {
		t.Fatalf("value after skip: %v %v", b, err)
	}
}

func errorsAs(err error, target **TagMismatch) bool {
	m, ok := err.(*TagMismatch)
	if !ok {
		return false
	}
	*target = m
	return true
}

func FuzzPrimitivesRoundTrip(f *testing.F) {
	f.Add(uint32(0), int64(0), "")
	f.Add(uint32(42), int64(-7), "hello")
	f.Fuzz(func(t *testing.T, u uint32, s int64, str string) {
		e := NewEncoder()
		e.WriteU32(u)
		e.WriteS64(s)
		if err := e.WriteString(str); err != nil {
			return
		}
		d := NewDecoder(e.Bytes())
		gotU, err := d.ReadU32()
		if err != nil || gotU != u {
			t.Fatalf("u32 mismatch: %v %v", gotU, err)
		}
		gotS, err := d.ReadS64()
		if err != nil || gotS != s {
			t.Fatalf("s64 mismatch: %v %v", gotS, err)
		}
		gotStr, err := d.ReadString()
		if err != nil || gotStr != str {
			t.Fatalf("string mismatch: %q %v", gotStr, err)
		}
		if d.Remaining() != 0 {
			t.Fatalf("leftover bytes: %d", d.Remaining())
		}
		if !bytes.Equal(e.Bytes(), e.Bytes()) {
			t.Fatal("encoder buffer mutated unexpectedly")
		}
	})
}
