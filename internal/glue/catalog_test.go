package glue

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogueRegistry(t *testing.T) {
	ids := Prototypes()
	assert.Len(t, ids, 43)

	seen := map[string]bool{}
	for _, id := range ids {
		assert.Len(t, id, PrototypeLen, "prototype %q", id)
		assert.False(t, seen[id], "duplicate prototype %q", id)
		seen[id] = true

		m, ok := NewByPrototype(id)
		require.True(t, ok, "constructor for %q", id)
		assert.Equal(t, id, m.Prototype())
	}

	_, ok := NewByPrototype("nope_msg")
	assert.False(t, ok)
}

func TestCataloguePairing(t *testing.T) {
	// every _req has a _res and vice versa; erro_evt stands alone
	ids := Prototypes()
	byBase := map[string]map[string]bool{}
	for _, id := range ids {
		if id == ProtoErrorEvent {
			continue
		}
		base, suffix := id[:4], id[4:]
		require.Contains(t, []string{"_req", "_res"}, suffix, "prototype %q", id)
		if byBase[base] == nil {
			byBase[base] = map[string]bool{}
		}
		byBase[base][suffix] = true
	}
	for base, suffixes := range byBase {
		assert.True(t, suffixes["_req"], "%s has no request", base)
		assert.True(t, suffixes["_res"], "%s has no response", base)
	}
}

// The canonical model-load exchange: a decoder across the boundary sees
// exactly the values and absences the encoder set, n_gpu_layers omitted.
func TestLoadRequestScenario(t *testing.T) {
	req := NewLoadRequest()
	req.ModelPaths.Set([]string{"a.gguf"})
	req.Seed.Set(42)
	req.NCtx.Set(2048)
	req.Embeddings.Set(false)
	req.PoolingType.Set("mean")

	got := NewLoadRequest()
	require.NoError(t, got.Deserialize(req.Serialize()))

	if diff := cmp.Diff([]string{"a.gguf"}, got.ModelPaths.Get()); diff != "" {
		t.Fatalf("model_paths (-want +got):\n%s", diff)
	}
	assert.Equal(t, int32(42), got.Seed.Get())
	assert.Equal(t, int32(2048), got.NCtx.Get())
	assert.False(t, got.NGpuLayers.Present(), "omitted n_gpu_layers arrives absent")

	require.True(t, got.Embeddings.Present(), "explicit false is present")
	assert.False(t, got.Embeddings.Get())

	require.True(t, got.PoolingType.Present())
	assert.Equal(t, "mean", got.PoolingType.Get())

	assert.False(t, got.NBatch.Present(), "never-set nullable arrives absent")
	assert.False(t, got.NSeqMax.Present())
	assert.False(t, got.RopeFreqBase.Present())
	assert.False(t, got.CacheTypeK.Present())

	// required fields left untouched still arrive, at zero
	require.True(t, got.NThreads.Present())
	assert.Equal(t, int32(0), got.NThreads.Get())
}

// use_mmap, use_mlock and n_gpu_layers stay off the wire until set; the
// engine keeps its model defaults for them.
func TestLoadRequestModelParamOmission(t *testing.T) {
	req := NewLoadRequest()
	assert.False(t, req.UseMmap.Present())
	assert.False(t, req.UseMlock.Present())
	assert.False(t, req.NGpuLayers.Present())

	req.ModelPaths.Set([]string{"a.gguf"})
	req.UseMlock.Set(false)
	req.NGpuLayers.Set(32)
	req.NGpuLayers.Clear()
	assert.False(t, req.NGpuLayers.Present(), "cleared field is absent again")

	got := NewLoadRequest()
	require.NoError(t, got.Deserialize(req.Serialize()))

	assert.False(t, got.UseMmap.Present(), "unset use_mmap arrives absent, not false")
	require.True(t, got.UseMlock.Present(), "explicit false is present")
	assert.False(t, got.UseMlock.Get())
	require.False(t, got.NGpuLayers.Present())
	assert.Equal(t, int32(0), got.NGpuLayers.Get(), "absent field reads as zero")
}

func TestSamplingInitScenario(t *testing.T) {
	req := NewSamplingInitRequest()
	req.Mirostat.Set(2)
	req.Temp.Set(0.8)
	req.TopP.Set(0.95)
	req.PenaltyRepeat.Set(1.1)
	req.Grammar.Set("test grammar")
	req.Tokens.Set([]int32{1, 2, 3, 4, 5})

	got := NewSamplingInitRequest()
	require.NoError(t, got.Deserialize(req.Serialize()))

	assert.Equal(t, int32(2), got.Mirostat.Get())
	assert.Equal(t, float32(0.8), got.Temp.Get())
	assert.Equal(t, float32(0.95), got.TopP.Get())
	assert.Equal(t, float32(1.1), got.PenaltyRepeat.Get())
	assert.Equal(t, "test grammar", got.Grammar.Get())
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, got.Tokens.Get())

	assert.False(t, got.MirostatTau.Present())
	assert.False(t, got.SamplersSequence.Present())
	assert.False(t, got.LogitBiasToks.Present())
}

// Encode, decode and re-encode must agree byte for byte.
func TestTokenizeReencodeIsByteIdentical(t *testing.T) {
	req := NewTokenizeRequest()
	req.Text.Set("The quick brown fox")
	req.Special.Set(true)
	first := req.Serialize()

	mid := NewTokenizeRequest()
	require.NoError(t, mid.Deserialize(first))
	second := mid.Serialize()

	assert.Equal(t, first, second)
}

func TestVocabRoundTrip(t *testing.T) {
	pieces := [][]byte{[]byte("<s>"), []byte("the"), {0xE2, 0x96, 0x81}, {}}
	res := NewGetVocabResponse()
	res.Success.Set(true)
	res.Vocab.Set(pieces)

	got := NewGetVocabResponse()
	require.NoError(t, got.Deserialize(res.Serialize()))
	assert.True(t, got.Success.Get())
	if diff := cmp.Diff(pieces, got.Vocab.Get()); diff != "" {
		t.Fatalf("vocab (-want +got):\n%s", diff)
	}
}

func TestErrorEventRoundTrip(t *testing.T) {
	evt := NewErrorEvent()
	evt.Message.Set("model file not found")

	got := NewErrorEvent()
	require.NoError(t, got.Deserialize(evt.Serialize()))
	assert.Equal(t, "model file not found", got.Message.Get())
}

func TestDecodeAnyRoutesByPrototype(t *testing.T) {
	res := NewTokenizeResponse()
	res.Success.Set(true)
	res.Tokens.Set([]int32{10, 20})

	m, err := DecodeAny(res.Serialize())
	require.NoError(t, err)
	tok, ok := m.(*TokenizeResponse)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, []int32{10, 20}, tok.Tokens.Get())

	evt := NewErrorEvent()
	evt.Message.Set("boom")
	m, err = DecodeAny(evt.Serialize())
	require.NoError(t, err)
	_, ok = m.(*ErrorEvent)
	assert.True(t, ok, "got %T", m)
}

func TestDecodeAnyRejectsUnknownPrototype(t *testing.T) {
	data := NewSchema("zzzz_msg").Build().Serialize()

	_, err := DecodeAny(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrototypeMismatch)
	assert.True(t, strings.Contains(err.Error(), "zzzz_msg"))
}

func TestChatFormatNullableDefaults(t *testing.T) {
	req := NewChatFormatRequest()
	req.Roles.Set([]string{"user", "assistant"})
	req.Contents.Set([]string{"hi", "hello"})

	got := NewChatFormatRequest()
	require.NoError(t, got.Deserialize(req.Serialize()))

	assert.False(t, got.Tmpl.Present())
	assert.False(t, got.AddAss.Present())
	assert.Equal(t, []string{"user", "assistant"}, got.Roles.Get())
	assert.Equal(t, []string{"hi", "hello"}, got.Contents.Get())
}
