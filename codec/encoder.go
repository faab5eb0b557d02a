package codec

import (
	"encoding/binary"
	"math"
)

// Encoder builds a self-describing byte stream. Containers are opened with
// one of the Open* methods and closed with Finish, which back-patches the
// 4-byte length placeholder written at Open time.
//
// Result and option discriminants: option writes 0 for None, 1 for Some;
// result writes 0 for Ok, 1 for Err. Both reserve the discriminant as the
// first byte of the container body.
type Encoder struct {
	buf    []byte
	scopes []int // byte offset of each open scope's length placeholder
}

// NewEncoder returns an empty Encoder ready to accept values.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded stream so far. It is an error to call this while
// a scope remains open.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len reports the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) putTag(t Tag) { e.buf = append(e.buf, byte(t)) }

func (e *Encoder) putU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteBool appends a bool value.
func (e *Encoder) WriteBool(v bool) {
	e.putTag(TagBool)
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// WriteS8 appends a signed 8-bit value.
func (e *Encoder) WriteS8(v int8) {
	e.putTag(TagS8)
	e.buf = append(e.buf, byte(v))
}

// WriteS16 appends a signed 16-bit value.
func (e *Encoder) WriteS16(v int16) {
	e.putTag(TagS16)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	e.buf = append(e.buf, b[:]...)
}

// WriteS32 appends a signed 32-bit value.
func (e *Encoder) WriteS32(v int32) {
	e.putTag(TagS32)
	e.putU32(uint32(v))
}

// WriteS64 appends a signed 64-bit value.
func (e *Encoder) WriteS64(v int64) {
	e.putTag(TagS64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

// WriteU8 appends an unsigned 8-bit value.
func (e *Encoder) WriteU8(v uint8) {
	e.putTag(TagU8)
	e.buf = append(e.buf, v)
}

// WriteU16 appends an unsigned 16-bit value.
func (e *Encoder) WriteU16(v uint16) {
	e.putTag(TagU16)
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteU32 appends an unsigned 32-bit value.
func (e *Encoder) WriteU32(v uint32) {
	e.putTag(TagU32)
	e.putU32(v)
}

// WriteU64 appends an unsigned 64-bit value.
func (e *Encoder) WriteU64(v uint64) {
	e.putTag(TagU64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteF32 appends a 32-bit float.
func (e *Encoder) WriteF32(v float32) {
	e.putTag(TagF32)
	e.putU32(math.Float32bits(v))
}

// WriteF64 appends a 64-bit float.
func (e *Encoder) WriteF64(v float64) {
	e.putTag(TagF64)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

// WriteUnit appends the unit value (used for variant/enum cases with no
// associated payload).
func (e *Encoder) WriteUnit() { e.putTag(TagUnit) }

// WriteString appends a UTF-8 string blob, length-prefixed.
func (e *Encoder) WriteString(v string) error {
	if len(v) > math.MaxUint32 {
		return &BlobTooLarge{Size: len(v)}
	}
	e.putTag(TagString)
	e.putU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	return nil
}

// WriteBytes appends a raw byte-sequence blob, length-prefixed.
func (e *Encoder) WriteBytes(v []byte) error {
	if len(v) > math.MaxUint32 {
		return &BlobTooLarge{Size: len(v)}
	}
	e.putTag(TagBytes)
	e.putU32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	return nil
}

// open writes a container tag and a zeroed length placeholder, then pushes
// the placeholder's offset so Finish can back-patch it.
func (e *Encoder) open(t Tag) {
	e.putTag(t)
	pos := len(e.buf)
	e.putU32(0)
	e.scopes = append(e.scopes, pos)
}

// OpenList opens a list<T> container; call Finish after writing its elements.
func (e *Encoder) OpenList() { e.open(TagList) }

// OpenMap opens a map container of alternating key/value entries.
func (e *Encoder) OpenMap() { e.open(TagMap) }

// OpenArray opens a fixed-arity array container.
func (e *Encoder) OpenArray() { e.open(TagArray) }

// WriteOptionNone appends an atomic option<T> discriminated as absent.
func (e *Encoder) WriteOptionNone() {
	e.putTag(TagOption)
	e.putU32(1)
	e.buf = append(e.buf, 0)
}

// OpenOptionSome opens an option<T> container; write exactly one inner value
// then Finish.
func (e *Encoder) OpenOptionSome() {
	e.open(TagOption)
	e.buf = append(e.buf, 1)
}

// OpenResultOk opens a result<T,E> container carrying the success case;
// write exactly one inner value then Finish.
func (e *Encoder) OpenResultOk() {
	e.open(TagResult)
	e.buf = append(e.buf, 0)
}

// OpenResultErr opens a result<T,E> container carrying the error case; write
// exactly one inner value then Finish.
func (e *Encoder) OpenResultErr() {
	e.open(TagResult)
	e.buf = append(e.buf, 1)
}

// OpenVariant opens a variant container, writing the case name as a string
// blob; write the case payload (WriteUnit if none) then Finish.
func (e *Encoder) OpenVariant(name string) error {
	if len(name) > math.MaxUint32 {
		return &BlobTooLarge{Size: len(name)}
	}
	e.open(TagVariant)
	e.putTag(TagString)
	e.putU32(uint32(len(name)))
	e.buf = append(e.buf, name...)
	return nil
}

// Raw appends a complete, pre-encoded value verbatim. It is used to inject
// an opaque slab (e.g. an RPC call's pre-encoded argument list) into an
// enclosing envelope without re-parsing or re-encoding it.
func (e *Encoder) Raw(encoded []byte) { e.buf = append(e.buf, encoded...) }

// Finish closes the innermost open scope, back-patching its length
// placeholder with the number of bytes written since Open.
func (e *Encoder) Finish() error {
	n := len(e.scopes)
	if n == 0 {
		return &ScopeUnderflow{}
	}
	pos := e.scopes[n-1]
	e.scopes = e.scopes[:n-1]
	body := len(e.buf) - (pos + 4)
	binary.LittleEndian.PutUint32(e.buf[pos:pos+4], uint32(body))
	return nil
}
