// Package transcoder recursively converts between the host's value AST
// (package value) and the wire codec (package codec), driven by a
// schema.Type at every step. The expected type is required input: some
// primitives share a wire representation (char and u32), and variants,
// enums and records carry names whose encoding depends on declared order.
package transcoder

import (
	"errors"
	"fmt"

	"isocore/codec"
	"isocore/schema"
	"isocore/value"
)

// ErrResourceValue is returned when Encode is asked to serialize a value
// under a resource type. The binder is expected to reject such interfaces
// at link time; this check is defense in depth on the serialization path
// itself.
var ErrResourceValue = errors.New("transcoder: resource handles cannot be encoded to wire bytes")

// UnexpectedCase is returned when a variant or enum value names a case that
// is not declared by the expected type.
type UnexpectedCase struct {
	Case string
}

func (e *UnexpectedCase) Error() string {
	return fmt.Sprintf("transcoder: unknown case %q for expected type", e.Case)
}

// MissingField is returned when a record value omits a field its expected
// type declares.
type MissingField struct {
	Field string
}

func (e *MissingField) Error() string {
	return fmt.Sprintf("transcoder: record value missing field %q", e.Field)
}

// Encode writes v to enc under the shape described by t.
func Encode(enc *codec.Encoder, v *value.Value, t *schema.Type) error {
	if t == nil {
		enc.WriteUnit()
		return nil
	}
	switch t.Kind {
	case schema.KindResource:
		return ErrResourceValue
	case schema.KindBool:
		enc.WriteBool(v.B)
		return nil
	case schema.KindS8:
		enc.WriteS8(int8(v.I))
		return nil
	case schema.KindS16:
		enc.WriteS16(int16(v.I))
		return nil
	case schema.KindS32:
		enc.WriteS32(int32(v.I))
		return nil
	case schema.KindS64:
		enc.WriteS64(v.I)
		return nil
	case schema.KindU8:
		enc.WriteU8(uint8(v.U))
		return nil
	case schema.KindU16:
		enc.WriteU16(uint16(v.U))
		return nil
	case schema.KindU32:
		enc.WriteU32(uint32(v.U))
		return nil
	case schema.KindU64:
		enc.WriteU64(v.U)
		return nil
	case schema.KindF32:
		enc.WriteF32(float32(v.F))
		return nil
	case schema.KindF64:
		enc.WriteF64(v.F)
		return nil
	case schema.KindChar:
		r := []rune(v.Str)
		if len(r) == 0 {
			enc.WriteU32(0)
			return nil
		}
		enc.WriteU32(uint32(r[0]))
		return nil
	case schema.KindString:
		return enc.WriteString(v.Str)
	case schema.KindBytes:
		return enc.WriteBytes(v.Blob)
	case schema.KindList:
		enc.OpenList()
		for _, item := range v.Items {
			if err := Encode(enc, item, t.Elem); err != nil {
				return err
			}
		}
		return enc.Finish()
	case schema.KindOption:
		if !v.HasSome {
			enc.WriteOptionNone()
			return nil
		}
		enc.OpenOptionSome()
		if err := Encode(enc, v.Inner, t.Elem); err != nil {
			return err
		}
		return enc.Finish()
	case schema.KindResult:
		if !v.IsErr {
			enc.OpenResultOk()
			if err := Encode(enc, v.Inner, t.Ok); err != nil {
				return err
			}
		} else {
			enc.OpenResultErr()
			if err := Encode(enc, v.Inner, t.Err); err != nil {
				return err
			}
		}
		return enc.Finish()
	case schema.KindTuple:
		enc.OpenList()
		for i, elemType := range t.Tuple {
			var item *value.Value
			if i < len(v.Items) {
				item = v.Items[i]
			}
			if err := Encode(enc, item, elemType); err != nil {
				return err
			}
		}
		return enc.Finish()
	case schema.KindRecord:
		enc.OpenList()
		for _, f := range t.Fields {
			fv, ok := v.Fields[f.Name]
			if !ok {
				return &MissingField{Field: f.Name}
			}
			if err := Encode(enc, fv, f.Type); err != nil {
				return err
			}
		}
		return enc.Finish()
	case schema.KindVariant:
		caseType, ok := lookupCase(t, v.Case)
		if !ok {
			return &UnexpectedCase{Case: v.Case}
		}
		if err := enc.OpenVariant(v.Case); err != nil {
			return err
		}
		if caseType == nil {
			enc.WriteUnit()
		} else if err := Encode(enc, v.Payload, caseType); err != nil {
			return err
		}
		return enc.Finish()
	case schema.KindEnum:
		if !containsName(t.Names, v.Case) {
			return &UnexpectedCase{Case: v.Case}
		}
		if err := enc.OpenVariant(v.Case); err != nil {
			return err
		}
		enc.WriteUnit()
		return enc.Finish()
	case schema.KindFlags:
		enc.OpenList()
		for _, name := range v.Names {
			if !containsName(t.Names, name) {
				return &UnexpectedCase{Case: name}
			}
			if err := enc.WriteString(name); err != nil {
				return err
			}
		}
		return enc.Finish()
	default:
		return fmt.Errorf("transcoder: unsupported type kind %v", t.Kind)
	}
}

// Decode reads one value from dec under the shape described by t.
func Decode(dec *codec.Decoder, t *schema.Type) (*value.Value, error) {
	if t == nil {
		if err := dec.ReadUnit(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	switch t.Kind {
	case schema.KindResource:
		return nil, ErrResourceValue
	case schema.KindBool:
		v, err := dec.ReadBool()
		return value.Bool(v), err
	case schema.KindS8:
		v, err := dec.ReadS8()
		return value.Int(int64(v)), err
	case schema.KindS16:
		v, err := dec.ReadS16()
		return value.Int(int64(v)), err
	case schema.KindS32:
		v, err := dec.ReadS32()
		return value.Int(int64(v)), err
	case schema.KindS64:
		v, err := dec.ReadS64()
		return value.Int(v), err
	case schema.KindU8:
		v, err := dec.ReadU8()
		return value.Uint(uint64(v)), err
	case schema.KindU16:
		v, err := dec.ReadU16()
		return value.Uint(uint64(v)), err
	case schema.KindU32:
		v, err := dec.ReadU32()
		return value.Uint(uint64(v)), err
	case schema.KindU64:
		v, err := dec.ReadU64()
		return value.Uint(v), err
	case schema.KindF32:
		v, err := dec.ReadF32()
		return value.Float(float64(v)), err
	case schema.KindF64:
		v, err := dec.ReadF64()
		return value.Float(v), err
	case schema.KindChar:
		v, err := dec.ReadU32()
		if err != nil {
			return nil, err
		}
		return value.Str(string(rune(v))), nil
	case schema.KindString:
		v, err := dec.ReadString()
		return value.Str(v), err
	case schema.KindBytes:
		v, err := dec.ReadBytes()
		return value.Bytes(v), err
	case schema.KindList:
		end, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, err
		}
		var items []*value.Value
		for dec.Pos() < end {
			item, err := Decode(dec, t.Elem)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.List(items...), nil
	case schema.KindOption:
		end, err := dec.EnterContainer(codec.TagOption)
		if err != nil {
			return nil, err
		}
		disc, err := dec.ReadDiscriminant()
		if err != nil {
			return nil, err
		}
		if disc == 0 {
			if err := dec.ExitContainer(end); err != nil {
				return nil, err
			}
			return value.None(), nil
		}
		inner, err := Decode(dec, t.Elem)
		if err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.Some(inner), nil
	case schema.KindResult:
		end, err := dec.EnterContainer(codec.TagResult)
		if err != nil {
			return nil, err
		}
		disc, err := dec.ReadDiscriminant()
		if err != nil {
			return nil, err
		}
		var inner *value.Value
		if disc == 0 {
			inner, err = Decode(dec, t.Ok)
		} else {
			inner, err = Decode(dec, t.Err)
		}
		if err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		if disc == 0 {
			return value.Ok(inner), nil
		}
		return value.Err(inner), nil
	case schema.KindTuple:
		end, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, err
		}
		items := make([]*value.Value, 0, len(t.Tuple))
		for _, elemType := range t.Tuple {
			item, err := Decode(dec, elemType)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.Tuple(items...), nil
	case schema.KindRecord:
		end, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, err
		}
		fields := make(map[string]*value.Value, len(t.Fields))
		order := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			fv, err := Decode(dec, f.Type)
			if err != nil {
				return nil, err
			}
			fields[f.Name] = fv
			order = append(order, f.Name)
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.Record(order, fields), nil
	case schema.KindVariant:
		end, err := dec.EnterContainer(codec.TagVariant)
		if err != nil {
			return nil, err
		}
		name, err := dec.ReadCaseName()
		if err != nil {
			return nil, err
		}
		caseType, ok := lookupCase(t, name)
		if !ok {
			return nil, &UnexpectedCase{Case: name}
		}
		var payload *value.Value
		if caseType == nil {
			if err := dec.ReadUnit(); err != nil {
				return nil, err
			}
		} else {
			payload, err = Decode(dec, caseType)
			if err != nil {
				return nil, err
			}
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.Variant(name, payload), nil
	case schema.KindEnum:
		end, err := dec.EnterContainer(codec.TagVariant)
		if err != nil {
			return nil, err
		}
		name, err := dec.ReadCaseName()
		if err != nil {
			return nil, err
		}
		if !containsName(t.Names, name) {
			return nil, &UnexpectedCase{Case: name}
		}
		if err := dec.ReadUnit(); err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.EnumVal(name), nil
	case schema.KindFlags:
		end, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, err
		}
		var names []string
		for dec.Pos() < end {
			name, err := dec.ReadString()
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return value.FlagsVal(names...), nil
	default:
		return nil, fmt.Errorf("transcoder: unsupported type kind %v", t.Kind)
	}
}

func lookupCase(t *schema.Type, name string) (*schema.Type, bool) {
	for _, c := range t.Cases {
		if c.Name == name {
			return c.Type, true
		}
	}
	return nil, false
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
