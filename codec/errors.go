package codec

import "fmt"

// BlobTooLarge is returned when a string or byte-sequence payload exceeds
// the u32 length field that frames it on the wire.
type BlobTooLarge struct {
	Size int
}

func (e *BlobTooLarge) Error() string {
	return fmt.Sprintf("codec: blob of %d bytes exceeds u32 length limit", e.Size)
}

// ScopeUnderflow is returned by Finish when the encoder's scope stack is
// already empty.
type ScopeUnderflow struct{}

func (e *ScopeUnderflow) Error() string { return "codec: finish called with no open scope" }

// TagMismatch is returned by typed decoder readers when the tag on the wire
// does not match what the caller expected.
type TagMismatch struct {
	Expected Tag
	Got      Tag
}

func (e *TagMismatch) Error() string {
	return fmt.Sprintf("codec: expected tag %s, got %s", e.Expected, e.Got)
}

// UnexpectedEnd is returned when the decoder runs out of bytes mid-value.
type UnexpectedEnd struct {
	Need int
	Have int
}

func (e *UnexpectedEnd) Error() string {
	return fmt.Sprintf("codec: unexpected end of buffer, need %d bytes, have %d", e.Need, e.Have)
}
