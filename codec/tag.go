// Package codec implements the self-describing, length-prefixed wire format
// used by the RPC fabric. Every value begins with a one-byte tag; containers
// open a scope that is back-patched with its body length on Finish.
package codec

// Tag identifies the shape of the value that follows it on the wire.
type Tag byte

const (
	TagBool Tag = iota
	TagS8
	TagS16
	TagS32
	TagS64
	TagU8
	TagU16
	TagU32
	TagU64
	TagF32
	TagF64
	TagUnit
	TagString
	TagBytes
	TagList
	TagMap
	TagArray
	TagOption
	TagResult
	TagVariant
)

func (t Tag) String() string {
	switch t {
	case TagBool:
		return "bool"
	case TagS8:
		return "s8"
	case TagS16:
		return "s16"
	case TagS32:
		return "s32"
	case TagS64:
		return "s64"
	case TagU8:
		return "u8"
	case TagU16:
		return "u16"
	case TagU32:
		return "u32"
	case TagU64:
		return "u64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagUnit:
		return "unit"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagArray:
		return "array"
	case TagOption:
		return "option"
	case TagResult:
		return "result"
	case TagVariant:
		return "variant"
	default:
		return "unknown"
	}
}

// isContainer reports whether the tag opens a length-prefixed scope.
func (t Tag) isContainer() bool {
	switch t {
	case TagList, TagMap, TagArray, TagOption, TagResult, TagVariant:
		return true
	default:
		return false
	}
}
