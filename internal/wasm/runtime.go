// Package wasm hosts the compute engine module and carries glue-encoded
// buffers across its linear-memory boundary. The protocol is synchronous
// and single-threaded; a Runtime is not safe for concurrent use.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/wasmlm/bindings-go/internal/events"
)

// Exported functions the engine module must provide. glue_action takes the
// operation name and request spans and returns the response span as a
// (ptr, len) pair; the response bytes are guest-owned and stay valid only
// until the next glue_action call.
const (
	ExportStart  = "glue_start"
	ExportAlloc  = "glue_alloc"
	ExportFree   = "glue_free"
	ExportAction = "glue_action"
	ExportExit   = "glue_exit"
)

var requiredExports = []string{
	ExportStart,
	ExportAlloc,
	ExportFree,
	ExportAction,
	ExportExit,
}

// Host error codes.
const (
	ErrCodeCompileFailed     = 1
	ErrCodeInvalidModule     = 2
	ErrCodeInstantiateFailed = 3
	ErrCodeNoModule          = 4
	ErrCodeNoMemory          = 5
	ErrCodeMissingExport     = 6
	ErrCodeOutOfBounds       = 7
	ErrCodeWriteFailed       = 8
	ErrCodeReadFailed        = 9
	ErrCodeCallFailed        = 10
	ErrCodePanic             = 11
	ErrCodeTimeout           = 12
	ErrCodeAllocFailed       = 13
	ErrCodeEngineStatus      = 14
	ErrCodeBadResult         = 15
	ErrCodeCloseFailed       = 16
)

// HostError is a structured failure on the host side of the boundary.
type HostError struct {
	Code    uint16
	Message string
	Context map[string]interface{}
}

func (e *HostError) Error() string {
	return fmt.Sprintf("wasm: host error %d: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error when the context carries one.
func (e *HostError) Unwrap() error {
	if err, ok := e.Context["error"].(error); ok {
		return err
	}
	return nil
}

// NewHostError creates a HostError with optional context values.
func NewHostError(code uint16, message string, context map[string]interface{}) *HostError {
	return &HostError{Code: code, Message: message, Context: context}
}

// Config holds runtime settings for hosting the engine module.
type Config struct {
	// MemoryLimitPages caps the module's linear memory in 64 KiB pages.
	MemoryLimitPages uint32
	// CallTimeout bounds one exported-function call. Zero disables it.
	CallTimeout time.Duration
	// StderrPassthrough additionally copies raw engine stderr to the host
	// process stderr, level markers included.
	StderrPassthrough bool
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() *Config {
	return &Config{
		MemoryLimitPages: 4096, // 256 MiB, models need room
		CallTimeout:      5 * time.Minute,
	}
}

// Runtime hosts one engine module instance.
type Runtime struct {
	cfg    *Config
	logger zerolog.Logger
	hub    *events.Hub

	runtime  wazero.Runtime
	module   wazero.CompiledModule
	instance api.Module
	memory   api.Memory

	stdout *logTee
	stderr *logTee
}

// NewRuntime creates a Runtime. hub may be nil when no subscriber cares
// about engine output.
func NewRuntime(cfg *Config, logger zerolog.Logger, hub *events.Hub) *Runtime {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	stderr := newLogTee(logger, hub, zerolog.DebugLevel)
	if cfg.StderrPassthrough {
		stderr.raw = os.Stderr
	}
	return &Runtime{
		cfg:    cfg,
		logger: logger,
		hub:    hub,
		stdout: newLogTee(logger, hub, zerolog.DebugLevel),
		stderr: stderr,
	}
}

// Load compiles the engine module and checks it exports the boundary
// functions.
func (r *Runtime) Load(ctx context.Context, wasmBytes []byte) error {
	// CloseOnContextDone lets CallTimeout interrupt a runaway guest call.
	runtimeCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(r.cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	module, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return NewHostError(ErrCodeCompileFailed, "failed to compile engine module", map[string]interface{}{
			"error": err,
		})
	}
	if err := validateExports(module); err != nil {
		runtime.Close(ctx)
		return err
	}

	r.runtime = runtime
	r.module = module
	r.logger.Debug().Int("module_bytes", len(wasmBytes)).Msg("engine module compiled")
	return nil
}

// validateExports checks the boundary contract before instantiation.
func validateExports(module wazero.CompiledModule) error {
	exports := module.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exports[name]; !ok {
			return NewHostError(ErrCodeMissingExport, "engine module does not export "+name, nil)
		}
	}
	return nil
}

// Instantiate brings the compiled module up: WASI for the engine's libc,
// stdout/stderr routed through the level tee, memory captured.
func (r *Runtime) Instantiate(ctx context.Context) error {
	if r.module == nil {
		return NewHostError(ErrCodeNoModule, "no module loaded", nil)
	}

	wasi_snapshot_preview1.MustInstantiate(ctx, r.runtime)

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions("_initialize").
		WithStdout(r.stdout).
		WithStderr(r.stderr)
	instance, err := r.runtime.InstantiateModule(ctx, r.module, modCfg)
	if err != nil {
		return NewHostError(ErrCodeInstantiateFailed, "failed to instantiate engine module", map[string]interface{}{
			"error": err,
		})
	}

	memory := instance.Memory()
	if memory == nil {
		instance.Close(ctx)
		return NewHostError(ErrCodeNoMemory, "engine module has no memory", nil)
	}

	r.instance = instance
	r.memory = memory
	return nil
}

// Start runs the engine's one-time initialization.
func (r *Runtime) Start(ctx context.Context) error {
	return r.callStatus(ctx, ExportStart)
}

// Exit runs the engine's shutdown.
func (r *Runtime) Exit(ctx context.Context) error {
	return r.callStatus(ctx, ExportExit)
}

// callStatus invokes a zero-argument export that returns an engine status
// word, 0 meaning success.
func (r *Runtime) callStatus(ctx context.Context, name string) error {
	results, err := r.call(ctx, name)
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return NewHostError(ErrCodeBadResult, fmt.Sprintf("%s returned %d values, want 1", name, len(results)), nil)
	}
	if status := int32(results[0]); status != 0 {
		return NewHostError(ErrCodeEngineStatus, fmt.Sprintf("%s reported status %d", name, status), nil)
	}
	return nil
}

// Action runs one operation: the name and request buffer are copied into
// guest memory, glue_action is invoked, and the response span is copied
// back out before the guest can reuse it.
func (r *Runtime) Action(ctx context.Context, name string, req []byte) ([]byte, error) {
	started := time.Now()

	namePtr, err := r.alloc(ctx, len(name))
	if err != nil {
		return nil, err
	}
	defer r.free(ctx, namePtr)
	if err := r.writeMemory(namePtr, []byte(name)); err != nil {
		return nil, err
	}

	reqPtr, err := r.alloc(ctx, len(req))
	if err != nil {
		return nil, err
	}
	defer r.free(ctx, reqPtr)
	if err := r.writeMemory(reqPtr, req); err != nil {
		return nil, err
	}

	results, err := r.call(ctx, ExportAction,
		uint64(namePtr), uint64(uint32(len(name))),
		uint64(reqPtr), uint64(uint32(len(req))))
	if err != nil {
		return nil, err
	}
	if len(results) != 2 {
		return nil, NewHostError(ErrCodeBadResult, fmt.Sprintf("%s returned %d values, want 2", ExportAction, len(results)), nil)
	}

	resPtr := uint32(results[0])
	resLen := uint32(results[1])
	out, err := r.readMemory(resPtr, resLen)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("action", name).
		Int("request_bytes", len(req)).
		Int("response_bytes", len(out)).
		Dur("elapsed", time.Since(started)).
		Msg("engine action")
	return out, nil
}

// call invokes an exported function with panic recovery and the configured
// timeout.
func (r *Runtime) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if r.instance == nil {
		return nil, NewHostError(ErrCodeNoModule, "module not instantiated", nil)
	}
	fn := r.instance.ExportedFunction(name)
	if fn == nil {
		return nil, NewHostError(ErrCodeMissingExport, "function not found: "+name, nil)
	}

	if r.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CallTimeout)
		defer cancel()
	}

	var results []uint64
	var callErr error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				callErr = NewHostError(ErrCodePanic, fmt.Sprintf("%s panicked", name), map[string]interface{}{
					"recover": rec,
				})
			}
		}()
		results, callErr = fn.Call(ctx, params...)
	}()

	if callErr != nil {
		var he *HostError
		if errors.As(callErr, &he) {
			return nil, callErr
		}
		if ctx.Err() != nil {
			return nil, NewHostError(ErrCodeTimeout, name+" interrupted: "+ctx.Err().Error(), map[string]interface{}{
				"error": callErr,
			})
		}
		return nil, NewHostError(ErrCodeCallFailed, name+" failed", map[string]interface{}{
			"error": callErr,
		})
	}
	return results, nil
}

// Close tears the runtime down, flushing any buffered engine output.
func (r *Runtime) Close(ctx context.Context) error {
	r.stdout.Flush()
	r.stderr.Flush()
	if r.runtime == nil {
		return nil
	}
	if err := r.runtime.Close(ctx); err != nil {
		return NewHostError(ErrCodeCloseFailed, "failed to close runtime", map[string]interface{}{
			"error": err,
		})
	}
	r.runtime = nil
	r.instance = nil
	r.memory = nil
	return nil
}
