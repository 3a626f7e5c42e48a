package glue

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// display caps for FormatMessage; longer values are elided with a count.
const (
	dumpMaxElems    = 8
	dumpMaxRawBytes = 16
)

// FormatMessage renders a message for humans: a header line, then one line
// per field with its kind, presence and value.
func FormatMessage(m Message) string {
	fields := m.Fields()
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d fields)\n", m.Prototype(), len(fields))

	nameWidth := 0
	for _, f := range fields {
		if len(f.Name()) > nameWidth {
			nameWidth = len(f.Name())
		}
	}
	for _, f := range fields {
		fmt.Fprintf(&b, "  %-*s  %-13s  %s\n", nameWidth, f.Name(), f.Kind().String(), formatValue(f))
	}
	return b.String()
}

// formatValue renders one field's value, or "null" when absent.
func formatValue(f *Field) string {
	if !f.present {
		return "null"
	}
	switch f.kind {
	case TagBool:
		return fmt.Sprintf("%t", f.boolVal)
	case TagInt32:
		return fmt.Sprintf("%d", f.intVal)
	case TagFloat32:
		return fmt.Sprintf("%g", f.floatVal)
	case TagString:
		return fmt.Sprintf("%q", f.strVal)
	case TagRaw:
		return formatRaw(f.rawVal)
	case TagArrayBool:
		return formatElems(len(f.boolArr), func(i int) string { return fmt.Sprintf("%t", f.boolArr[i]) })
	case TagArrayInt32:
		return formatElems(len(f.intArr), func(i int) string { return fmt.Sprintf("%d", f.intArr[i]) })
	case TagArrayFloat32:
		return formatElems(len(f.floatArr), func(i int) string { return fmt.Sprintf("%g", f.floatArr[i]) })
	case TagArrayString:
		return formatElems(len(f.strArr), func(i int) string { return fmt.Sprintf("%q", f.strArr[i]) })
	case TagArrayRaw:
		return formatElems(len(f.rawArr), func(i int) string { return formatRaw(f.rawArr[i]) })
	}
	return "?"
}

func formatRaw(p []byte) string {
	if len(p) <= dumpMaxRawBytes {
		return fmt.Sprintf("0x%s (%d bytes)", hex.EncodeToString(p), len(p))
	}
	return fmt.Sprintf("0x%s... (%d bytes)", hex.EncodeToString(p[:dumpMaxRawBytes]), len(p))
}

func formatElems(n int, elem func(i int) string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < n && i < dumpMaxElems; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(elem(i))
	}
	if n > dumpMaxElems {
		fmt.Fprintf(&b, ", ... %d total", n)
	}
	b.WriteByte(']')
	return b.String()
}

// HexDump renders data as 16-byte rows with offsets and an ASCII column,
// for inspecting buffers that fail to decode.
func HexDump(data []byte) string {
	var b strings.Builder
	for i := 0; i < len(data); i += 16 {
		fmt.Fprintf(&b, "%08x:", i)
		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Fprintf(&b, " %02x", data[i+j])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" | ")
		for j := 0; j < 16 && i+j < len(data); j++ {
			c := data[i+j]
			if c >= 0x20 && c <= 0x7E {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
