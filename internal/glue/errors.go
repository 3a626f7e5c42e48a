package glue

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure kinds. Test with errors.Is; the *DecodeError wrapping the
// sentinel carries the structured detail. Encoding has no error surface.
var (
	ErrBadMagic          = errors.New("glue: bad magic number")
	ErrVersionMismatch   = errors.New("glue: protocol version mismatch")
	ErrPrototypeMismatch = errors.New("glue: prototype id mismatch")
	ErrTruncated         = errors.New("glue: truncated message")
	ErrUnsupportedTag    = errors.New("glue: unsupported type tag")
)

// DecodeError reports why a buffer could not be decoded. Kind is always one
// of the sentinel errors above. Expected and Actual describe the violated
// contract in the kind's own terms: prototype ids, tag names, byte counts.
type DecodeError struct {
	Kind     error
	Field    string // field being decoded when the failure is inside one
	Offset   int    // input offset where the failure was detected
	Expected string
	Actual   string
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " in field %q", e.Field)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	}
	fmt.Fprintf(&b, " (offset %d)", e.Offset)
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// withField stamps the owning field's name onto an error bubbling out of a
// field decode, keeping the innermost location when one is already set.
func withField(err error, name string) error {
	var de *DecodeError
	if errors.As(err, &de) && de.Field == "" {
		de.Field = name
	}
	return err
}
