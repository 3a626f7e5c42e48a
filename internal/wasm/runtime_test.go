package wasm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Instruction sequences for hand-assembled test engines. Each ends the
// function body with 0x0B.
var (
	retZero     = []byte{0x41, 0x00, 0x0B}             // i32.const 0
	retOne      = []byte{0x41, 0x01, 0x0B}             // i32.const 1
	retPage     = []byte{0x41, 0x80, 0x08, 0x0B}       // i32.const 1024
	retNothing  = []byte{0x0B}                         //
	retTwoZeros = []byte{0x41, 0x00, 0x41, 0x00, 0x0B} // i32.const 0 twice

	// loop { br 0 }; the trailing i32.const satisfies the result type but
	// never runs.
	loopForever = []byte{0x03, 0x40, 0x0C, 0x00, 0x0B, 0x41, 0x00, 0x0B}
)

// testEngine assembles a syntactically valid engine module in memory so
// tests need no binary fixture. The module exports the full boundary
// surface with one page of memory; bodies are swappable per test.
type testEngine struct {
	startBody  []byte
	allocBody  []byte
	omitExport string
}

func (m testEngine) bytes() []byte {
	start := m.startBody
	if start == nil {
		start = retZero
	}
	alloc := m.allocBody
	if alloc == nil {
		alloc = retPage
	}

	out := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	out = append(out, section(0x01, []byte{
		0x04,
		0x60, 0x00, 0x01, 0x7F, // () -> i32
		0x60, 0x01, 0x7F, 0x01, 0x7F, // (i32) -> i32
		0x60, 0x01, 0x7F, 0x00, // (i32) -> ()
		0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x02, 0x7F, 0x7F, // (i32 x4) -> (i32, i32)
	})...)
	out = append(out, section(0x03, []byte{0x05, 0x00, 0x01, 0x02, 0x03, 0x00})...)
	out = append(out, section(0x05, []byte{0x01, 0x00, 0x01})...)

	exports := []byte{0x00}
	count := byte(0)
	for _, e := range []struct {
		name string
		kind byte
		idx  byte
	}{
		{ExportStart, 0x00, 0},
		{ExportAlloc, 0x00, 1},
		{ExportFree, 0x00, 2},
		{ExportAction, 0x00, 3},
		{ExportExit, 0x00, 4},
		{"memory", 0x02, 0},
	} {
		if e.name == m.omitExport {
			continue
		}
		exports = append(exports, byte(len(e.name)))
		exports = append(exports, e.name...)
		exports = append(exports, e.kind, e.idx)
		count++
	}
	exports[0] = count
	out = append(out, section(0x07, exports)...)

	code := []byte{0x05}
	code = append(code, funcBody(start)...)
	code = append(code, funcBody(alloc)...)
	code = append(code, funcBody(retNothing)...)
	code = append(code, funcBody(retTwoZeros)...)
	code = append(code, funcBody(retZero)...)
	out = append(out, section(0x0A, code)...)

	return out
}

func section(id byte, payload []byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

func funcBody(instrs []byte) []byte {
	out := []byte{byte(1 + len(instrs)), 0x00}
	return append(out, instrs...)
}

func newTestRuntime(cfg *Config) *Runtime {
	return NewRuntime(cfg, zerolog.Nop(), nil)
}

func requireHostCode(t *testing.T, err error, code uint16) *HostError {
	t.Helper()
	var he *HostError
	require.ErrorAs(t, err, &he)
	require.Equal(t, code, he.Code)
	return he
}

func TestHostError(t *testing.T) {
	inner := errors.New("disk on fire")
	err := NewHostError(ErrCodeCompileFailed, "failed to compile engine module", map[string]interface{}{
		"error": inner,
	})

	assert.Equal(t, "wasm: host error 1: failed to compile engine module", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := NewHostError(ErrCodeNoMemory, "engine module has no memory", nil)
	assert.Nil(t, bare.Unwrap())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint32(4096), cfg.MemoryLimitPages)
	assert.Equal(t, 5*time.Minute, cfg.CallTimeout)
}

func TestRuntime_Load(t *testing.T) {
	tests := []struct {
		name      string
		wasmBytes []byte
		errCode   uint16
		errText   string
	}{
		{
			name:      "garbage bytes",
			wasmBytes: []byte{0x00, 0x00},
			errCode:   ErrCodeCompileFailed,
		},
		{
			name:      "valid module without exports",
			wasmBytes: []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00},
			errCode:   ErrCodeMissingExport,
			errText:   ExportStart,
		},
		{
			name:      "missing one export",
			wasmBytes: testEngine{omitExport: ExportExit}.bytes(),
			errCode:   ErrCodeMissingExport,
			errText:   ExportExit,
		},
		{
			name:      "full boundary surface",
			wasmBytes: testEngine{}.bytes(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(nil)
			defer r.Close(context.Background())

			err := r.Load(context.Background(), tt.wasmBytes)
			if tt.errCode == 0 {
				require.NoError(t, err)
				return
			}
			he := requireHostCode(t, err, tt.errCode)
			if tt.errText != "" {
				assert.Contains(t, he.Message, tt.errText)
			}
		})
	}
}

func TestRuntime_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(nil)
	defer r.Close(ctx)

	require.NoError(t, r.Load(ctx, testEngine{}.bytes()))
	require.NoError(t, r.Instantiate(ctx))
	require.NoError(t, r.Start(ctx))

	res, err := r.Action(ctx, "tokenize", []byte{0x47, 0x4C, 0x55, 0x45})
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, r.Exit(ctx))
	require.NoError(t, r.Close(ctx))
}

func TestRuntime_StartReportsEngineStatus(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(nil)
	defer r.Close(ctx)

	require.NoError(t, r.Load(ctx, testEngine{startBody: retOne}.bytes()))
	require.NoError(t, r.Instantiate(ctx))

	err := r.Start(ctx)
	he := requireHostCode(t, err, ErrCodeEngineStatus)
	assert.Contains(t, he.Message, "status 1")
}

func TestRuntime_ActionAllocFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(nil)
	defer r.Close(ctx)

	// glue_alloc returning null means the engine is out of memory.
	require.NoError(t, r.Load(ctx, testEngine{allocBody: retZero}.bytes()))
	require.NoError(t, r.Instantiate(ctx))

	_, err := r.Action(ctx, "tokenize", []byte{0x01})
	requireHostCode(t, err, ErrCodeAllocFailed)
}

func TestRuntime_CallsBeforeInstantiate(t *testing.T) {
	ctx := context.Background()

	r := newTestRuntime(nil)
	requireHostCode(t, r.Instantiate(ctx), ErrCodeNoModule)
	requireHostCode(t, r.Start(ctx), ErrCodeNoModule)
	_, err := r.Action(ctx, "tokenize", nil)
	requireHostCode(t, err, ErrCodeNoModule)

	// Close before Load is a no-op.
	require.NoError(t, r.Close(ctx))
}

func TestRuntime_MemoryBounds(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(nil)
	defer r.Close(ctx)

	require.NoError(t, r.Load(ctx, testEngine{}.bytes()))
	require.NoError(t, r.Instantiate(ctx))
	size := r.memory.Size()

	err := r.writeMemory(size-4, make([]byte, 8))
	requireHostCode(t, err, ErrCodeOutOfBounds)

	_, err = r.readMemory(size-4, 8)
	requireHostCode(t, err, ErrCodeOutOfBounds)

	// ptr+size must not wrap around u32.
	_, err = r.readMemory(0xFFFFFFFF, 2)
	requireHostCode(t, err, ErrCodeOutOfBounds)

	out, err := r.readMemory(0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)

	require.NoError(t, r.writeMemory(0, nil))
}

func TestRuntime_CallTimeout(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(&Config{
		MemoryLimitPages: 16,
		CallTimeout:      100 * time.Millisecond,
	})
	defer r.Close(ctx)

	require.NoError(t, r.Load(ctx, testEngine{startBody: loopForever}.bytes()))
	require.NoError(t, r.Instantiate(ctx))

	started := time.Now()
	err := r.Start(ctx)
	requireHostCode(t, err, ErrCodeTimeout)
	assert.Less(t, time.Since(started), 5*time.Second)
}
