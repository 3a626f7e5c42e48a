package wasm

import (
	"context"
	"fmt"
)

// alloc reserves n bytes in guest memory via glue_alloc. Zero-size requests
// still allocate so the guest receives a valid pointer.
func (r *Runtime) alloc(ctx context.Context, n int) (uint32, error) {
	size := n
	if size == 0 {
		size = 1
	}
	results, err := r.call(ctx, ExportAlloc, uint64(uint32(size)))
	if err != nil {
		return 0, err
	}
	if len(results) != 1 {
		return 0, NewHostError(ErrCodeBadResult, fmt.Sprintf("%s returned %d values, want 1", ExportAlloc, len(results)), nil)
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, NewHostError(ErrCodeAllocFailed, fmt.Sprintf("engine could not allocate %d bytes", size), nil)
	}
	return ptr, nil
}

// free releases a guest allocation. Failure is logged, not returned: the
// caller is usually already unwinding.
func (r *Runtime) free(ctx context.Context, ptr uint32) {
	if ptr == 0 {
		return
	}
	if _, err := r.call(ctx, ExportFree, uint64(ptr)); err != nil {
		r.logger.Warn().Err(err).Uint32("ptr", ptr).Msg("engine free failed")
	}
}

// writeMemory copies data into guest memory at ptr. Bounds are checked in
// uint64 so ptr+len cannot wrap.
func (r *Runtime) writeMemory(ptr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if uint64(ptr)+uint64(len(data)) > uint64(r.memory.Size()) {
		return NewHostError(ErrCodeOutOfBounds, fmt.Sprintf("write of %d bytes at 0x%x exceeds memory size %d", len(data), ptr, r.memory.Size()), nil)
	}
	if !r.memory.Write(ptr, data) {
		return NewHostError(ErrCodeWriteFailed, fmt.Sprintf("failed to write %d bytes at 0x%x", len(data), ptr), nil)
	}
	return nil
}

// readMemory copies size bytes out of guest memory. The copy matters:
// Memory.Read returns a view of linear memory that the guest will reuse.
func (r *Runtime) readMemory(ptr, size uint32) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if uint64(ptr)+uint64(size) > uint64(r.memory.Size()) {
		return nil, NewHostError(ErrCodeOutOfBounds, fmt.Sprintf("read of %d bytes at 0x%x exceeds memory size %d", size, ptr, r.memory.Size()), nil)
	}
	view, ok := r.memory.Read(ptr, size)
	if !ok {
		return nil, NewHostError(ErrCodeReadFailed, fmt.Sprintf("failed to read %d bytes at 0x%x", size, ptr), nil)
	}
	out := make([]byte, size)
	copy(out, view)
	return out, nil
}
