// Package glue implements the binary message protocol spoken between the
// host and the compute engine across the WASM linear-memory boundary.
//
// Every message is framed as:
//
//	offset 0   u32 LE   magic
//	offset 4   u32 LE   protocol version
//	offset 8   8 bytes  prototype id, raw ASCII
//	offset 16  ...      fields, in declared order
//
// There is no length word; a message is self-delimiting given its schema.
// All scalars are 4-byte little-endian words. Strings, raw blobs and arrays
// carry a u32 length or element count.
package glue

import "fmt"

// Wire framing. These values are shared contract with the engine and must
// never change.
const (
	Magic        uint32 = 0x45554C47 // "GLUE" read back as ASCII
	Version      uint32 = 1
	PrototypeLen        = 8
	HeaderSize          = 16 // magic + version + prototype id
)

// Tag identifies the wire kind of a field payload. Tag values are wire
// contract: never reorder or renumber.
type Tag uint32

const (
	TagNull         Tag = 0 // no payload; encodes an absent field
	TagBool         Tag = 1 // u32, 0 or 1
	TagInt32        Tag = 2 // i32
	TagFloat32      Tag = 3 // f32, IEEE-754 bits
	TagString       Tag = 4 // u32 byte length + bytes, no terminator
	TagRaw          Tag = 5 // u32 byte length + bytes
	TagArrayBool    Tag = 6 // u32 count + count u32 words
	TagArrayInt32   Tag = 7 // u32 count + count i32 words
	TagArrayFloat32 Tag = 8 // u32 count + count f32 words
	TagArrayString  Tag = 9 // u32 count + count length-prefixed strings
	TagArrayRaw     Tag = 10 // u32 count + count length-prefixed blobs
)

// Valid reports whether t is in the closed tag registry.
func (t Tag) Valid() bool {
	return t <= TagArrayRaw
}

// IsArray reports whether t is one of the array kinds.
func (t Tag) IsArray() bool {
	return t >= TagArrayBool && t <= TagArrayRaw
}

// Elem returns the element kind of an array tag. It reports false when t is
// not an array kind.
func (t Tag) Elem() (Tag, bool) {
	switch t {
	case TagArrayBool:
		return TagBool, true
	case TagArrayInt32:
		return TagInt32, true
	case TagArrayFloat32:
		return TagFloat32, true
	case TagArrayString:
		return TagString, true
	case TagArrayRaw:
		return TagRaw, true
	}
	return TagNull, false
}

// String returns the tag's protocol name for diagnostics and error messages.
func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagBool:
		return "bool"
	case TagInt32:
		return "int32"
	case TagFloat32:
		return "float32"
	case TagString:
		return "string"
	case TagRaw:
		return "raw"
	case TagArrayBool:
		return "array_bool"
	case TagArrayInt32:
		return "array_int32"
	case TagArrayFloat32:
		return "array_float32"
	case TagArrayString:
		return "array_string"
	case TagArrayRaw:
		return "array_raw"
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}
