// Package frame defines the Call/Reply RPC envelope that rides the wire
// codec. A Call's args and a Reply's results are carried as opaque
// pre-encoded "slabs" (codec list scopes produced by the transcoder),
// keeping this package ignorant of the engine's value representation.
package frame

import (
	"fmt"

	"isocore/codec"
)

// Reason is the closed set of failure reasons a Reply's Err case can carry.
type Reason int

const (
	ReasonTrapped Reason = iota
	ReasonOutOfFuel
	ReasonOutOfMemory
	ReasonInstanceNotFound
	ReasonMethodNotFound
	ReasonBadArgumentCount
	ReasonDecodeError
	ReasonDomainSpecific
)

func (r Reason) String() string {
	switch r {
	case ReasonTrapped:
		return "Trapped"
	case ReasonOutOfFuel:
		return "OutOfFuel"
	case ReasonOutOfMemory:
		return "OutOfMemory"
	case ReasonInstanceNotFound:
		return "InstanceNotFound"
	case ReasonMethodNotFound:
		return "MethodNotFound"
	case ReasonBadArgumentCount:
		return "BadArgumentCount"
	case ReasonDecodeError:
		return "DecodeError"
	case ReasonDomainSpecific:
		return "DomainSpecific"
	default:
		return "Unknown"
	}
}

// Failure is the decoded form of a Reply's Err case.
type Failure struct {
	Reason      Reason
	Description string // DecodeError's string, or DomainSpecific's description
	Code        uint32 // DomainSpecific's code
}

func (f *Failure) Error() string {
	if f.Reason == ReasonDecodeError {
		return fmt.Sprintf("%s: %s", f.Reason, f.Description)
	}
	if f.Reason == ReasonDomainSpecific {
		return fmt.Sprintf("%s(%d): %s", f.Reason, f.Code, f.Description)
	}
	return f.Reason.String()
}

// Call is an outbound RPC request. Args is a pre-encoded list scope (a
// codec byte sequence beginning with TagList) built by the transcoder.
type Call struct {
	Seq    uint64
	Target string
	Method string
	Args   []byte
}

// Reply is the response to a Call carrying the same Seq. Exactly one of
// Results or Err is meaningful, selected by Err == nil.
type Reply struct {
	Seq     uint64
	Results []byte // pre-encoded list scope, valid when Err == nil
	Err     *Failure
}

// EncodeCall serializes a Call as the outer "Call" variant.
func EncodeCall(c *Call) ([]byte, error) {
	enc := codec.NewEncoder()
	if err := enc.OpenVariant("Call"); err != nil {
		return nil, err
	}
	enc.WriteU64(c.Seq)
	if err := enc.WriteString(c.Target); err != nil {
		return nil, err
	}
	if err := enc.WriteString(c.Method); err != nil {
		return nil, err
	}
	appendSlab(enc, c.Args)
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// EncodeReply serializes a Reply as the outer "Reply" variant.
func EncodeReply(r *Reply) ([]byte, error) {
	enc := codec.NewEncoder()
	if err := enc.OpenVariant("Reply"); err != nil {
		return nil, err
	}
	enc.WriteU64(r.Seq)
	if r.Err == nil {
		enc.OpenResultOk()
		appendSlab(enc, r.Results)
	} else {
		enc.OpenResultErr()
		if err := encodeFailure(enc, r.Err); err != nil {
			return nil, err
		}
	}
	if err := enc.Finish(); err != nil { // close result
		return nil, err
	}
	if err := enc.Finish(); err != nil { // close Reply variant
		return nil, err
	}
	return enc.Bytes(), nil
}

func encodeFailure(enc *codec.Encoder, f *Failure) error {
	if err := enc.OpenVariant(f.Reason.String()); err != nil {
		return err
	}
	switch f.Reason {
	case ReasonDecodeError:
		if err := enc.WriteString(f.Description); err != nil {
			return err
		}
	case ReasonDomainSpecific:
		enc.OpenList()
		enc.WriteU32(f.Code)
		if err := enc.WriteString(f.Description); err != nil {
			return err
		}
		if err := enc.Finish(); err != nil {
			return err
		}
	default:
		enc.WriteUnit()
	}
	return enc.Finish()
}

// appendSlab injects a pre-encoded list scope verbatim; the caller is
// trusted to have produced a well-formed TagList value.
func appendSlab(enc *codec.Encoder, slab []byte) {
	if slab == nil {
		enc.OpenList()
		_ = enc.Finish()
		return
	}
	enc.Raw(slab)
}

// UnknownOutcome is returned when a Reply's Err variant names a case this
// package does not recognize.
type UnknownOutcome struct {
	Name string
}

func (e *UnknownOutcome) Error() string {
	return fmt.Sprintf("frame: unknown outcome case %q", e.Name)
}

var reasonByName = map[string]Reason{
	"Trapped":          ReasonTrapped,
	"OutOfFuel":        ReasonOutOfFuel,
	"OutOfMemory":      ReasonOutOfMemory,
	"InstanceNotFound": ReasonInstanceNotFound,
	"MethodNotFound":   ReasonMethodNotFound,
	"BadArgumentCount": ReasonBadArgumentCount,
	"DecodeError":      ReasonDecodeError,
	"DomainSpecific":   ReasonDomainSpecific,
}

// Envelope is the decoded outer Call-or-Reply variant.
type Envelope struct {
	IsCall bool
	Call   *Call
	Reply  *Reply
}

// Decode parses a complete Call-or-Reply message.
func Decode(b []byte) (*Envelope, error) {
	dec := codec.NewDecoder(b)
	end, err := dec.EnterContainer(codec.TagVariant)
	if err != nil {
		return nil, err
	}
	name, err := dec.ReadCaseName()
	if err != nil {
		return nil, err
	}
	switch name {
	case "Call":
		c, err := decodeCallBody(dec)
		if err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return &Envelope{IsCall: true, Call: c}, nil
	case "Reply":
		r, err := decodeReplyBody(dec)
		if err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(end); err != nil {
			return nil, err
		}
		return &Envelope{IsCall: false, Reply: r}, nil
	default:
		return nil, &UnknownOutcome{Name: name}
	}
}

func decodeCallBody(dec *codec.Decoder) (*Call, error) {
	seq, err := dec.ReadU64()
	if err != nil {
		return nil, err
	}
	target, err := dec.ReadString()
	if err != nil {
		return nil, err
	}
	method, err := dec.ReadString()
	if err != nil {
		return nil, err
	}
	args, err := dec.ReadRawValue()
	if err != nil {
		return nil, err
	}
	return &Call{Seq: seq, Target: target, Method: method, Args: args}, nil
}

func decodeReplyBody(dec *codec.Decoder) (*Reply, error) {
	seq, err := dec.ReadU64()
	if err != nil {
		return nil, err
	}
	end, err := dec.EnterContainer(codec.TagResult)
	if err != nil {
		return nil, err
	}
	disc, err := dec.ReadDiscriminant()
	if err != nil {
		return nil, err
	}
	r := &Reply{Seq: seq}
	if disc == 0 {
		slab, err := dec.ReadRawValue()
		if err != nil {
			return nil, err
		}
		r.Results = slab
	} else {
		f, err := decodeFailure(dec)
		if err != nil {
			return nil, err
		}
		r.Err = f
	}
	if err := dec.ExitContainer(end); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeFailure(dec *codec.Decoder) (*Failure, error) {
	end, err := dec.EnterContainer(codec.TagVariant)
	if err != nil {
		return nil, err
	}
	name, err := dec.ReadCaseName()
	if err != nil {
		return nil, err
	}
	reason, ok := reasonByName[name]
	if !ok {
		return nil, &UnknownOutcome{Name: name}
	}
	f := &Failure{Reason: reason}
	switch reason {
	case ReasonDecodeError:
		s, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		f.Description = s
	case ReasonDomainSpecific:
		lend, err := dec.EnterContainer(codec.TagList)
		if err != nil {
			return nil, err
		}
		code, err := dec.ReadU32()
		if err != nil {
			return nil, err
		}
		desc, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		if err := dec.ExitContainer(lend); err != nil {
			return nil, err
		}
		f.Code = code
		f.Description = desc
	default:
		if err := dec.ReadUnit(); err != nil {
			return nil, err
		}
	}
	if err := dec.ExitContainer(end); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeSeq reads only the leading seq field of a Call or Reply message,
// without parsing the rest, so a demultiplexer can route by sequence number
// alone.
func DecodeSeq(b []byte) (uint64, error) {
	dec := codec.NewDecoder(b)
	if _, err := dec.EnterContainer(codec.TagVariant); err != nil {
		return 0, err
	}
	if _, err := dec.ReadCaseName(); err != nil {
		return 0, err
	}
	return dec.ReadU64()
}
