package glue

import (
	"encoding/binary"
	"fmt"
	"math"
)

// InBuf is the bounds-checked read cursor decoding walks a received span
// with. Reads never touch memory past the span: a short input surfaces as
// ErrTruncated carrying the offset and byte counts involved, never as a
// panic or an overread.
type InBuf struct {
	data []byte
	off  int
}

// NewInBuf returns a cursor over data. The cursor does not copy or mutate
// the span.
func NewInBuf(data []byte) *InBuf {
	return &InBuf{data: data}
}

// Offset returns the number of bytes consumed so far.
func (in *InBuf) Offset() int {
	return in.off
}

// Remaining returns the number of bytes left to read.
func (in *InBuf) Remaining() int {
	return len(in.data) - in.off
}

// need guards a read of n more bytes.
func (in *InBuf) need(n int) error {
	if rem := in.Remaining(); rem < n {
		return &DecodeError{
			Kind:     ErrTruncated,
			Offset:   in.off,
			Expected: fmt.Sprintf("%d more bytes", n),
			Actual:   fmt.Sprintf("%d remaining", rem),
		}
	}
	return nil
}

// ReadU32 reads a little-endian u32 word.
func (in *InBuf) ReadU32() (uint32, error) {
	if err := in.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(in.data[in.off:])
	in.off += 4
	return v, nil
}

// ReadI32 reads a little-endian i32 word.
func (in *InBuf) ReadI32() (int32, error) {
	v, err := in.ReadU32()
	return int32(v), err
}

// ReadF32 reads an f32 from its IEEE-754 bits.
func (in *InBuf) ReadF32() (float32, error) {
	v, err := in.ReadU32()
	return math.Float32frombits(v), err
}

// ReadBool reads a u32-encoded bool. Any nonzero word reads as true.
func (in *InBuf) ReadBool() (bool, error) {
	v, err := in.ReadU32()
	return v != 0, err
}

// ReadBytes returns a copy of the next n bytes.
func (in *InBuf) ReadBytes(n int) ([]byte, error) {
	if err := in.need(n); err != nil {
		return nil, err
	}
	p := make([]byte, n)
	copy(p, in.data[in.off:])
	in.off += n
	return p, nil
}

// ReadString returns the next n bytes as a string.
func (in *InBuf) ReadString(n int) (string, error) {
	if err := in.need(n); err != nil {
		return "", err
	}
	s := string(in.data[in.off : in.off+n])
	in.off += n
	return s, nil
}

// ReadCount reads a u32 length or element count and rejects values whose
// payload cannot possibly fit in the remaining input, so a hostile count
// never drives allocation.
func (in *InBuf) ReadCount(elemSize int) (int, error) {
	off := in.off
	n, err := in.ReadU32()
	if err != nil {
		return 0, err
	}
	if need := uint64(n) * uint64(elemSize); need > uint64(in.Remaining()) {
		return 0, &DecodeError{
			Kind:     ErrTruncated,
			Offset:   off,
			Expected: fmt.Sprintf("%d more bytes for count %d", need, n),
			Actual:   fmt.Sprintf("%d remaining", in.Remaining()),
		}
	}
	return int(n), nil
}
