package glue

import "fmt"

// Schema is one message: an 8-character prototype id plus the ordered field
// list. A schema instance owns its field values exclusively; it is a
// message, not a shared descriptor.
type Schema struct {
	proto  string
	fields []*Field
}

// Prototype returns the message's 8-character prototype id.
func (s *Schema) Prototype() string { return s.proto }

// Fields returns the fields in declared order. The slice is the schema's
// own; callers must not modify it.
func (s *Schema) Fields() []*Field { return s.fields }

// SerializeTo appends the full wire form to out: magic, version, prototype,
// then every field in declared order. Encoding cannot fail.
func (s *Schema) SerializeTo(out *OutBuf) {
	out.AppendU32(Magic)
	out.AppendU32(Version)
	out.AppendString(s.proto)
	for _, f := range s.fields {
		f.encode(out)
	}
}

// Serialize returns the wire form in a fresh buffer. Callers encoding many
// messages should hold an OutBuf and use SerializeTo instead.
func (s *Schema) Serialize() []byte {
	out := NewOutBuf()
	s.SerializeTo(out)
	return out.Bytes()
}

// DeserializeFrom decodes one message from the cursor. The header gates run
// in order (magic, version, prototype) before any field is touched, and all
// fields are reset first so a reused message never carries stale values.
func (s *Schema) DeserializeFrom(in *InBuf) error {
	for _, f := range s.fields {
		f.reset()
	}
	proto, err := readHeader(in)
	if err != nil {
		return err
	}
	if proto != s.proto {
		return &DecodeError{
			Kind:     ErrPrototypeMismatch,
			Offset:   8,
			Expected: fmt.Sprintf("%q", s.proto),
			Actual:   fmt.Sprintf("%q", proto),
		}
	}
	for _, f := range s.fields {
		if err := f.decode(in); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize decodes one message from data.
func (s *Schema) Deserialize(data []byte) error {
	return s.DeserializeFrom(NewInBuf(data))
}

// readHeader validates magic and version and returns the prototype id.
func readHeader(in *InBuf) (string, error) {
	magic, err := in.ReadU32()
	if err != nil {
		return "", err
	}
	if magic != Magic {
		return "", &DecodeError{
			Kind:     ErrBadMagic,
			Offset:   0,
			Expected: fmt.Sprintf("0x%08X", Magic),
			Actual:   fmt.Sprintf("0x%08X", magic),
		}
	}
	version, err := in.ReadU32()
	if err != nil {
		return "", err
	}
	if version != Version {
		return "", &DecodeError{
			Kind:     ErrVersionMismatch,
			Offset:   4,
			Expected: fmt.Sprintf("%d", Version),
			Actual:   fmt.Sprintf("%d", version),
		}
	}
	return in.ReadString(PrototypeLen)
}

// PeekPrototype reads only the header of data and returns the prototype id,
// gating magic and version on the way. Dispatchers use it to route a buffer
// before committing to a schema.
func PeekPrototype(data []byte) (string, error) {
	return readHeader(NewInBuf(data))
}

// SchemaBuilder declares a message's fields as data, in order. Declaration
// order is wire contract: serialized fields follow it exactly, every run.
type SchemaBuilder struct {
	proto  string
	fields []*Field
}

// NewSchema starts a builder for the given prototype id. The id must be
// exactly PrototypeLen printable ASCII bytes; anything else is a programming
// error and panics at construction.
func NewSchema(proto string) *SchemaBuilder {
	if len(proto) != PrototypeLen {
		panic(fmt.Sprintf("glue: prototype id %q must be exactly %d bytes", proto, PrototypeLen))
	}
	for i := 0; i < len(proto); i++ {
		if proto[i] < 0x20 || proto[i] > 0x7E {
			panic(fmt.Sprintf("glue: prototype id %q has a non-printable byte at %d", proto, i))
		}
	}
	return &SchemaBuilder{proto: proto}
}

func (b *SchemaBuilder) add(name string, kind Tag, nullable bool) *Field {
	f := &Field{name: name, kind: kind, nullable: nullable, present: !nullable}
	b.fields = append(b.fields, f)
	return f
}

// Build seals the field list and returns the message.
func (b *SchemaBuilder) Build() *Schema {
	return &Schema{proto: b.proto, fields: b.fields}
}

// Bool declares a required bool field.
func (b *SchemaBuilder) Bool(name string) BoolField {
	return BoolField{b.add(name, TagBool, false)}
}

// NullableBool declares a bool field that may be absent on the wire.
func (b *SchemaBuilder) NullableBool(name string) BoolField {
	return BoolField{b.add(name, TagBool, true)}
}

// Int32 declares a required int32 field.
func (b *SchemaBuilder) Int32(name string) Int32Field {
	return Int32Field{b.add(name, TagInt32, false)}
}

// NullableInt32 declares an int32 field that may be absent on the wire.
func (b *SchemaBuilder) NullableInt32(name string) Int32Field {
	return Int32Field{b.add(name, TagInt32, true)}
}

// Float32 declares a required float32 field.
func (b *SchemaBuilder) Float32(name string) Float32Field {
	return Float32Field{b.add(name, TagFloat32, false)}
}

// NullableFloat32 declares a float32 field that may be absent on the wire.
func (b *SchemaBuilder) NullableFloat32(name string) Float32Field {
	return Float32Field{b.add(name, TagFloat32, true)}
}

// String declares a required string field.
func (b *SchemaBuilder) String(name string) StringField {
	return StringField{b.add(name, TagString, false)}
}

// NullableString declares a string field that may be absent on the wire.
func (b *SchemaBuilder) NullableString(name string) StringField {
	return StringField{b.add(name, TagString, true)}
}

// Raw declares a required raw blob field.
func (b *SchemaBuilder) Raw(name string) RawField {
	return RawField{b.add(name, TagRaw, false)}
}

// NullableRaw declares a raw blob field that may be absent on the wire.
func (b *SchemaBuilder) NullableRaw(name string) RawField {
	return RawField{b.add(name, TagRaw, true)}
}

// BoolArray declares a required array_bool field.
func (b *SchemaBuilder) BoolArray(name string) BoolArrayField {
	return BoolArrayField{b.add(name, TagArrayBool, false)}
}

// NullableBoolArray declares an array_bool field that may be absent.
func (b *SchemaBuilder) NullableBoolArray(name string) BoolArrayField {
	return BoolArrayField{b.add(name, TagArrayBool, true)}
}

// Int32Array declares a required array_int32 field.
func (b *SchemaBuilder) Int32Array(name string) Int32ArrayField {
	return Int32ArrayField{b.add(name, TagArrayInt32, false)}
}

// NullableInt32Array declares an array_int32 field that may be absent.
func (b *SchemaBuilder) NullableInt32Array(name string) Int32ArrayField {
	return Int32ArrayField{b.add(name, TagArrayInt32, true)}
}

// Float32Array declares a required array_float32 field.
func (b *SchemaBuilder) Float32Array(name string) Float32ArrayField {
	return Float32ArrayField{b.add(name, TagArrayFloat32, false)}
}

// NullableFloat32Array declares an array_float32 field that may be absent.
func (b *SchemaBuilder) NullableFloat32Array(name string) Float32ArrayField {
	return Float32ArrayField{b.add(name, TagArrayFloat32, true)}
}

// StringArray declares a required array_string field.
func (b *SchemaBuilder) StringArray(name string) StringArrayField {
	return StringArrayField{b.add(name, TagArrayString, false)}
}

// NullableStringArray declares an array_string field that may be absent.
func (b *SchemaBuilder) NullableStringArray(name string) StringArrayField {
	return StringArrayField{b.add(name, TagArrayString, true)}
}

// RawArray declares a required array_raw field.
func (b *SchemaBuilder) RawArray(name string) RawArrayField {
	return RawArrayField{b.add(name, TagArrayRaw, false)}
}

// NullableRawArray declares an array_raw field that may be absent.
func (b *SchemaBuilder) NullableRawArray(name string) RawArrayField {
	return RawArrayField{b.add(name, TagArrayRaw, true)}
}
