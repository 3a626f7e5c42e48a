package glue

// Field is one named slot in a message schema: a declared wire kind, a
// nullability flag, and the current value with its presence bit. Structure
// is fixed at construction; value and presence change as messages are
// populated and decoded.
//
// A required field is present from construction at its kind's zero value.
// A nullable field starts absent and encodes as the bare Null tag until a
// value is set. Zero-length strings, blobs and arrays are present values,
// distinct from an absent field.
type Field struct {
	name     string
	kind     Tag
	nullable bool
	present  bool

	// value slots; only the one matching kind is used
	boolVal  bool
	intVal   int32
	floatVal float32
	strVal   string
	rawVal   []byte
	boolArr  []bool
	intArr   []int32
	floatArr []float32
	strArr   []string
	rawArr   [][]byte
}

// Name returns the field's declared name.
func (f *Field) Name() string { return f.name }

// Kind returns the field's declared wire kind.
func (f *Field) Kind() Tag { return f.kind }

// Nullable reports whether the field may legally be absent on the wire.
func (f *Field) Nullable() bool { return f.nullable }

// Present reports whether the field currently holds a value.
func (f *Field) Present() bool { return f.present }

// Clear resets the value. A nullable field becomes absent; a required field
// stays present at its kind's zero value.
func (f *Field) Clear() {
	f.reset()
	f.present = !f.nullable
}

// reset zeroes the value and drops presence. Deserialize runs this on every
// field before decoding so a reused message never leaks prior values
// through a Null on the wire.
func (f *Field) reset() {
	f.present = false
	f.boolVal = false
	f.intVal = 0
	f.floatVal = 0
	f.strVal = ""
	f.rawVal = nil
	f.boolArr = nil
	f.intArr = nil
	f.floatArr = nil
	f.strArr = nil
	f.rawArr = nil
}

// encode appends the field's wire form: the bare Null tag when absent, the
// declared tag plus payload when present.
func (f *Field) encode(out *OutBuf) {
	if !f.present {
		out.AppendU32(uint32(TagNull))
		return
	}
	out.AppendU32(uint32(f.kind))
	switch f.kind {
	case TagBool:
		out.AppendBool(f.boolVal)
	case TagInt32:
		out.AppendI32(f.intVal)
	case TagFloat32:
		out.AppendF32(f.floatVal)
	case TagString:
		out.AppendLen(len(f.strVal))
		out.AppendString(f.strVal)
	case TagRaw:
		out.AppendLen(len(f.rawVal))
		out.AppendBytes(f.rawVal)
	case TagArrayBool:
		out.AppendLen(len(f.boolArr))
		for _, v := range f.boolArr {
			out.AppendBool(v)
		}
	case TagArrayInt32:
		out.AppendLen(len(f.intArr))
		for _, v := range f.intArr {
			out.AppendI32(v)
		}
	case TagArrayFloat32:
		out.AppendLen(len(f.floatArr))
		for _, v := range f.floatArr {
			out.AppendF32(v)
		}
	case TagArrayString:
		out.AppendLen(len(f.strArr))
		for _, s := range f.strArr {
			out.AppendLen(len(s))
			out.AppendString(s)
		}
	case TagArrayRaw:
		out.AppendLen(len(f.rawArr))
		for _, p := range f.rawArr {
			out.AppendLen(len(p))
			out.AppendBytes(p)
		}
	}
}

// decode reads the field's wire form. A Null tag marks the field absent
// whatever its declared kind. Any other tag must match the declared kind
// exactly; an unknown or mismatched tag is a hard error carrying both
// sides of the violated contract.
func (f *Field) decode(in *InBuf) error {
	f.reset()
	tagOff := in.Offset()
	word, err := in.ReadU32()
	if err != nil {
		return withField(err, f.name)
	}
	wire := Tag(word)
	if wire == TagNull {
		return nil
	}
	if !wire.Valid() || wire != f.kind {
		return &DecodeError{
			Kind:     ErrUnsupportedTag,
			Field:    f.name,
			Offset:   tagOff,
			Expected: f.kind.String(),
			Actual:   wire.String(),
		}
	}

	switch f.kind {
	case TagBool:
		f.boolVal, err = in.ReadBool()
	case TagInt32:
		f.intVal, err = in.ReadI32()
	case TagFloat32:
		f.floatVal, err = in.ReadF32()
	case TagString:
		f.strVal, err = f.decodeString(in)
	case TagRaw:
		f.rawVal, err = f.decodeRaw(in)
	case TagArrayBool:
		var n int
		if n, err = in.ReadCount(4); err == nil {
			arr := make([]bool, n)
			for i := range arr {
				if arr[i], err = in.ReadBool(); err != nil {
					break
				}
			}
			f.boolArr = arr
		}
	case TagArrayInt32:
		var n int
		if n, err = in.ReadCount(4); err == nil {
			arr := make([]int32, n)
			for i := range arr {
				if arr[i], err = in.ReadI32(); err != nil {
					break
				}
			}
			f.intArr = arr
		}
	case TagArrayFloat32:
		var n int
		if n, err = in.ReadCount(4); err == nil {
			arr := make([]float32, n)
			for i := range arr {
				if arr[i], err = in.ReadF32(); err != nil {
					break
				}
			}
			f.floatArr = arr
		}
	case TagArrayString:
		var n int
		if n, err = in.ReadCount(4); err == nil {
			arr := make([]string, n)
			for i := range arr {
				if arr[i], err = f.decodeString(in); err != nil {
					break
				}
			}
			f.strArr = arr
		}
	case TagArrayRaw:
		var n int
		if n, err = in.ReadCount(4); err == nil {
			arr := make([][]byte, n)
			for i := range arr {
				if arr[i], err = f.decodeRaw(in); err != nil {
					break
				}
			}
			f.rawArr = arr
		}
	}
	if err != nil {
		f.reset()
		return withField(err, f.name)
	}
	f.present = true
	return nil
}

// decodeString reads one length-prefixed string.
func (f *Field) decodeString(in *InBuf) (string, error) {
	n, err := in.ReadCount(1)
	if err != nil {
		return "", err
	}
	return in.ReadString(n)
}

// decodeRaw reads one length-prefixed blob.
func (f *Field) decodeRaw(in *InBuf) ([]byte, error) {
	n, err := in.ReadCount(1)
	if err != nil {
		return nil, err
	}
	return in.ReadBytes(n)
}

// Typed accessors. The schema builder hands back the wrapper matching each
// declared kind, so value access is checked at compile time. Set marks the
// field present; slices are held, not copied, and belong to the message
// afterwards.

// BoolField accesses a bool-kinded field.
type BoolField struct{ *Field }

func (f BoolField) Get() bool  { return f.boolVal }
func (f BoolField) Set(v bool) { f.boolVal = v; f.present = true }

// Int32Field accesses an int32-kinded field.
type Int32Field struct{ *Field }

func (f Int32Field) Get() int32  { return f.intVal }
func (f Int32Field) Set(v int32) { f.intVal = v; f.present = true }

// Float32Field accesses a float32-kinded field.
type Float32Field struct{ *Field }

func (f Float32Field) Get() float32  { return f.floatVal }
func (f Float32Field) Set(v float32) { f.floatVal = v; f.present = true }

// StringField accesses a string-kinded field.
type StringField struct{ *Field }

func (f StringField) Get() string  { return f.strVal }
func (f StringField) Set(v string) { f.strVal = v; f.present = true }

// RawField accesses a raw-kinded field.
type RawField struct{ *Field }

func (f RawField) Get() []byte  { return f.rawVal }
func (f RawField) Set(v []byte) { f.rawVal = v; f.present = true }

// BoolArrayField accesses an array_bool-kinded field.
type BoolArrayField struct{ *Field }

func (f BoolArrayField) Get() []bool  { return f.boolArr }
func (f BoolArrayField) Set(v []bool) { f.boolArr = v; f.present = true }

// Int32ArrayField accesses an array_int32-kinded field.
type Int32ArrayField struct{ *Field }

func (f Int32ArrayField) Get() []int32  { return f.intArr }
func (f Int32ArrayField) Set(v []int32) { f.intArr = v; f.present = true }

// Float32ArrayField accesses an array_float32-kinded field.
type Float32ArrayField struct{ *Field }

func (f Float32ArrayField) Get() []float32  { return f.floatArr }
func (f Float32ArrayField) Set(v []float32) { f.floatArr = v; f.present = true }

// StringArrayField accesses an array_string-kinded field.
type StringArrayField struct{ *Field }

func (f StringArrayField) Get() []string  { return f.strArr }
func (f StringArrayField) Set(v []string) { f.strArr = v; f.present = true }

// RawArrayField accesses an array_raw-kinded field.
type RawArrayField struct{ *Field }

func (f RawArrayField) Get() [][]byte  { return f.rawArr }
func (f RawArrayField) Set(v [][]byte) { f.rawArr = v; f.present = true }
