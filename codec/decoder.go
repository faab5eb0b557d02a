package codec

import (
	"encoding/binary"
	"math"
)

// Decoder reads a byte stream produced by Encoder. Readers validate the tag
// they observe against the kind they expect and return a *TagMismatch on
// disagreement; running past the end of the buffer returns *UnexpectedEnd.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps buf for sequential reads starting at offset 0.
func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Pos reports the current read offset.
func (d *Decoder) Pos() int { return d.pos }

// Remaining reports how many bytes are left unread.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return &UnexpectedEnd{Need: n, Have: len(d.buf) - d.pos}
	}
	return nil
}

func (d *Decoder) peekTag() (Tag, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	return Tag(d.buf[d.pos]), nil
}

// PeekTag returns the next tag without consuming it.
func (d *Decoder) PeekTag() (Tag, error) { return d.peekTag() }

func (d *Decoder) expectTag(want Tag) error {
	got, err := d.peekTag()
	if err != nil {
		return err
	}
	if got != want {
		return &TagMismatch{Expected: want, Got: got}
	}
	d.pos++
	return nil
}

func (d *Decoder) readU32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) readRawByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBool decodes a tagged bool.
func (d *Decoder) ReadBool() (bool, error) {
	if err := d.expectTag(TagBool); err != nil {
		return false, err
	}
	b, err := d.readRawByte()
	return b != 0, err
}

// ReadS8 decodes a tagged signed 8-bit integer.
func (d *Decoder) ReadS8() (int8, error) {
	if err := d.expectTag(TagS8); err != nil {
		return 0, err
	}
	b, err := d.readRawByte()
	return int8(b), err
}

// ReadS16 decodes a tagged signed 16-bit integer.
func (d *Decoder) ReadS16() (int16, error) {
	if err := d.expectTag(TagS16); err != nil {
		return 0, err
	}
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return int16(v), nil
}

// ReadS32 decodes a tagged signed 32-bit integer.
func (d *Decoder) ReadS32() (int32, error) {
	if err := d.expectTag(TagS32); err != nil {
		return 0, err
	}
	v, err := d.readU32()
	return int32(v), err
}

// ReadS64 decodes a tagged signed 64-bit integer.
func (d *Decoder) ReadS64() (int64, error) {
	if err := d.expectTag(TagS64); err != nil {
		return 0, err
	}
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return int64(v), nil
}

// ReadU8 decodes a tagged unsigned 8-bit integer.
func (d *Decoder) ReadU8() (uint8, error) {
	if err := d.expectTag(TagU8); err != nil {
		return 0, err
	}
	return d.readRawByte()
}

// ReadU16 decodes a tagged unsigned 16-bit integer.
func (d *Decoder) ReadU16() (uint16, error) {
	if err := d.expectTag(TagU16); err != nil {
		return 0, err
	}
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

// ReadU32 decodes a tagged unsigned 32-bit integer.
func (d *Decoder) ReadU32() (uint32, error) {
	if err := d.expectTag(TagU32); err != nil {
		return 0, err
	}
	return d.readU32()
}

// ReadU64 decodes a tagged unsigned 64-bit integer.
func (d *Decoder) ReadU64() (uint64, error) {
	if err := d.expectTag(TagU64); err != nil {
		return 0, err
	}
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// ReadF32 decodes a tagged 32-bit float.
func (d *Decoder) ReadF32() (float32, error) {
	if err := d.expectTag(TagF32); err != nil {
		return 0, err
	}
	v, err := d.readU32()
	return math.Float32frombits(v), err
}

// ReadF64 decodes a tagged 64-bit float.
func (d *Decoder) ReadF64() (float64, error) {
	if err := d.expectTag(TagF64); err != nil {
		return 0, err
	}
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return math.Float64frombits(v), nil
}

// ReadUnit consumes a tagged unit value.
func (d *Decoder) ReadUnit() error { return d.expectTag(TagUnit) }

func (d *Decoder) readBlob(want Tag) ([]byte, error) {
	if err := d.expectTag(want); err != nil {
		return nil, err
	}
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := d.buf[d.pos : d.pos+int(n)]
	d.pos += int(n)
	return out, nil
}

// ReadString decodes a tagged, length-prefixed UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.readBlob(TagString)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes decodes a tagged, length-prefixed byte blob.
func (d *Decoder) ReadBytes() ([]byte, error) {
	b, err := d.readBlob(TagBytes)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// EnterContainer validates that the next tag matches want, consumes the
// length placeholder, and returns the absolute offset where the container's
// body ends. Callers must advance exactly to end, then call ExitContainer.
func (d *Decoder) EnterContainer(want Tag) (end int, err error) {
	if err := d.expectTag(want); err != nil {
		return 0, err
	}
	n, err := d.readU32()
	if err != nil {
		return 0, err
	}
	end = d.pos + int(n)
	if end > len(d.buf) {
		return 0, &UnexpectedEnd{Need: int(n), Have: len(d.buf) - d.pos}
	}
	return end, nil
}

// ExitContainer verifies the decoder consumed exactly the container's body
// and advances past it regardless (defensive: a caller that under-reads a
// container skips any trailing bytes rather than leaving the stream
// misaligned for the next sibling value).
func (d *Decoder) ExitContainer(end int) error {
	if d.pos > end {
		return &UnexpectedEnd{Need: 0, Have: d.pos - end}
	}
	d.pos = end
	return nil
}

// ReadDiscriminant reads the raw (untagged) discriminant byte written at the
// head of an option or result container body.
func (d *Decoder) ReadDiscriminant() (byte, error) { return d.readRawByte() }

// ReadCaseName reads the string blob naming a variant's case, without the
// surrounding container (the caller has already called EnterContainer).
func (d *Decoder) ReadCaseName() (string, error) { return d.ReadString() }

// SkipValue consumes one complete value of unknown type, advancing past it.
// This lets a demultiplexer route a message by its leading fields without
// understanding the rest of the payload.
func (d *Decoder) SkipValue() error {
	tag, err := d.peekTag()
	if err != nil {
		return err
	}
	switch tag {
	case TagBool, TagS8, TagU8:
		d.pos++
		_, err := d.readRawByte()
		return err
	case TagS16, TagU16:
		d.pos++
		return d.skipN(2)
	case TagS32, TagU32, TagF32:
		d.pos++
		return d.skipN(4)
	case TagS64, TagU64, TagF64:
		d.pos++
		return d.skipN(8)
	case TagUnit:
		d.pos++
		return nil
	case TagString, TagBytes:
		d.pos++
		n, err := d.readU32()
		if err != nil {
			return err
		}
		return d.skipN(int(n))
	case TagList, TagMap, TagArray, TagOption, TagResult, TagVariant:
		d.pos++
		n, err := d.readU32()
		if err != nil {
			return err
		}
		return d.skipN(int(n))
	default:
		return &TagMismatch{Expected: tag, Got: tag}
	}
}

// ReadRawValue consumes one complete value of unknown type, like SkipValue,
// and returns the bytes it spanned. Used to lift an opaque slab (e.g. a
// Call's args or a Reply's results) out of an enclosing envelope without
// transcoding it.
func (d *Decoder) ReadRawValue() ([]byte, error) {
	start := d.pos
	if err := d.SkipValue(); err != nil {
		return nil, err
	}
	out := make([]byte, d.pos-start)
	copy(out, d.buf[start:d.pos])
	return out, nil
}

func (d *Decoder) skipN(n int) error {
	if err := d.need(n); err != nil {
		return err
	}
	d.pos += n
	return nil
}
