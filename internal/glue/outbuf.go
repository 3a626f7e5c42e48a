package glue

import (
	"encoding/binary"
	"fmt"
	"math"
)

// OutBuf is the growable write cursor messages serialize into. The zero
// value is ready to use. Callers encoding many messages hold one OutBuf and
// Reset it between messages; the codec itself never keeps shared scratch.
//
// Appending cannot fail. The only hard stop is a payload whose length does
// not fit the u32 length word, which cannot round-trip and panics.
type OutBuf struct {
	buf []byte
}

// NewOutBuf returns an OutBuf with capacity reserved for a typical message.
func NewOutBuf() *OutBuf {
	return &OutBuf{buf: make([]byte, 0, 1024)}
}

// Bytes returns the encoded bytes. The slice aliases the buffer and is only
// valid until the next append or Reset.
func (o *OutBuf) Bytes() []byte {
	return o.buf
}

// Len returns the number of bytes written so far.
func (o *OutBuf) Len() int {
	return len(o.buf)
}

// Reset empties the buffer, keeping its capacity for reuse.
func (o *OutBuf) Reset() {
	o.buf = o.buf[:0]
}

// AppendU32 appends a little-endian u32 word.
func (o *OutBuf) AppendU32(v uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, v)
}

// AppendI32 appends a little-endian i32 word.
func (o *OutBuf) AppendI32(v int32) {
	o.AppendU32(uint32(v))
}

// AppendF32 appends an f32 as its IEEE-754 bits.
func (o *OutBuf) AppendF32(v float32) {
	o.AppendU32(math.Float32bits(v))
}

// AppendBool appends a bool as a u32 word, 1 for true and 0 for false.
func (o *OutBuf) AppendBool(v bool) {
	if v {
		o.AppendU32(1)
	} else {
		o.AppendU32(0)
	}
}

// AppendBytes appends raw bytes with no length prefix.
func (o *OutBuf) AppendBytes(p []byte) {
	o.buf = append(o.buf, p...)
}

// AppendString appends the string's bytes with no length prefix.
func (o *OutBuf) AppendString(s string) {
	o.buf = append(o.buf, s...)
}

// AppendLen appends a payload length or element count as a u32 word.
// Lengths beyond math.MaxUint32 cannot be represented on the wire; hitting
// one is resource exhaustion, not a recoverable encode state.
func (o *OutBuf) AppendLen(n int) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		panic(fmt.Sprintf("glue: length %d does not fit in u32", n))
	}
	o.AppendU32(uint32(n))
}
