package glue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	req := NewLoadRequest()
	req.ModelPaths.Set([]string{"a.gguf"})
	req.Seed.Set(42)

	text := FormatMessage(req)
	assert.True(t, strings.HasPrefix(text, "load_req (23 fields)\n"))
	assert.Contains(t, text, `"a.gguf"`)
	assert.Contains(t, text, "seed")
	assert.Contains(t, text, "42")
	assert.Contains(t, text, "null", "absent nullable fields print as null")
}

func TestFormatMessageElidesLongArrays(t *testing.T) {
	res := NewTokenizeResponse()
	tokens := make([]int32, 100)
	res.Tokens.Set(tokens)

	text := FormatMessage(res)
	assert.Contains(t, text, "... 100 total")
}

func TestHexDump(t *testing.T) {
	dump := HexDump([]byte("GLUE\x01\x00\x00\x00"))
	lines := strings.Split(strings.TrimRight(dump, "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "00000000:"))
	assert.Contains(t, lines[0], "47 4c 55 45")
	assert.Contains(t, lines[0], "| GLUE....")
}
