package chunkcache

import (
	"sync/atomic"

	"github.com/stratumdb/stratumdb/pkg/errors"
)

// Buffer is a raw chunk allocation. Data is exactly the requested length;
// poolOff is backend bookkeeping (the extent offset for pool allocations,
// -1 for heap allocations).
type Buffer struct {
	Data    []byte
	poolOff int64
}

// Allocator obtains raw memory for chunks from one backing tier and tracks
// aggregate bytes handed out. Implementations must be safe for concurrent
// use; the cache updates no global counter of its own.
type Allocator interface {
	Allocate(size int64) (Buffer, error)
	Release(buf Buffer) error
	Used() int64
	Close() error
}

// dramAllocator hands out ordinary heap buffers.
type dramAllocator struct {
	used atomic.Int64
}

func newDRAMAllocator() *dramAllocator {
	return &dramAllocator{}
}

func (a *dramAllocator) Allocate(size int64) (Buffer, error) {
	if size <= 0 {
		return Buffer{}, errors.Newf(errors.ErrCodeInvalidState, "allocation size must be positive, got %d", size).
			WithComponent("chunkcache").WithOperation("allocate")
	}
	buf := make([]byte, size)
	a.used.Add(size)
	return Buffer{Data: buf, poolOff: -1}, nil
}

func (a *dramAllocator) Release(buf Buffer) error {
	if buf.Data == nil {
		return nil
	}
	a.used.Add(-int64(len(buf.Data)))
	return nil
}

func (a *dramAllocator) Used() int64 {
	return a.used.Load()
}

func (a *dramAllocator) Close() error {
	return nil
}
