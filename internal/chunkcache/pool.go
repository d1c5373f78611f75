package chunkcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/stratumdb/stratumdb/pkg/errors"
)

const poolFileName = "chunkcache.pool"

// freeExtent describes a contiguous run of unallocated pool bytes.
type freeExtent struct {
	off  int64
	size int64
}

// filePool is the persistent-memory backend: a single file created in the
// configured directory, memory-mapped, and carved into chunk buffers by a
// first-fit free list. It stands in for a libmemkind-style pmem pool; the
// kernel's DAX mapping makes loads/stores hit the device directly when the
// directory lives on one.
type filePool struct {
	mu   sync.Mutex
	data []byte
	free []freeExtent // sorted by offset
	used atomic.Int64
	file *os.File
	size int64
}

// newFilePool creates (or truncates) the pool file under dir and maps it.
func newFilePool(dir string, size int64) (*filePool, error) {
	if size <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "pool size must be positive, got %d", size).
			WithComponent("chunkcache").WithOperation("setup")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to create pool directory %s", dir)).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}

	path := filepath.Join(dir, poolFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to create pool file %s", path)).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}
	if err := file.Truncate(size); err != nil {
		_ = file.Close()
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to size pool file %s", path)).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, errors.NewError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to map pool file %s", path)).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}

	return &filePool{
		data: data,
		free: []freeExtent{{off: 0, size: size}},
		file: file,
		size: size,
	}, nil
}

// Allocate carves a buffer out of the first free extent large enough.
func (p *filePool) Allocate(size int64) (Buffer, error) {
	if size <= 0 {
		return Buffer{}, errors.Newf(errors.ErrCodeInvalidState, "allocation size must be positive, got %d", size).
			WithComponent("chunkcache").WithOperation("allocate")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil {
		return Buffer{}, errors.NewError(errors.ErrCodeClosed, "pool is closed").
			WithComponent("chunkcache").WithOperation("allocate")
	}

	for i, ext := range p.free {
		if ext.size < size {
			continue
		}
		off := ext.off
		if ext.size == size {
			p.free = append(p.free[:i], p.free[i+1:]...)
		} else {
			p.free[i] = freeExtent{off: ext.off + size, size: ext.size - size}
		}
		p.used.Add(size)
		return Buffer{Data: p.data[off : off+size : off+size], poolOff: off}, nil
	}

	return Buffer{}, errors.Newf(errors.ErrCodePoolExhausted,
		"no free extent of %d bytes in %d-byte pool", size, p.size).
		WithComponent("chunkcache").WithOperation("allocate")
}

// Release returns a buffer's extent to the free list, merging with
// adjacent free extents.
func (p *filePool) Release(buf Buffer) error {
	if buf.Data == nil {
		return nil
	}
	size := int64(len(buf.Data))
	if buf.poolOff < 0 || buf.poolOff+size > p.size {
		return errors.Newf(errors.ErrCodeInvalidState,
			"buffer extent [%d,%d) not owned by pool", buf.poolOff, buf.poolOff+size).
			WithComponent("chunkcache").WithOperation("release")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := sort.Search(len(p.free), func(i int) bool {
		return p.free[i].off > buf.poolOff
	})
	p.free = append(p.free, freeExtent{})
	copy(p.free[idx+1:], p.free[idx:])
	p.free[idx] = freeExtent{off: buf.poolOff, size: size}

	// Coalesce with the following extent, then the preceding one.
	if idx+1 < len(p.free) && p.free[idx].off+p.free[idx].size == p.free[idx+1].off {
		p.free[idx].size += p.free[idx+1].size
		p.free = append(p.free[:idx+1], p.free[idx+2:]...)
	}
	if idx > 0 && p.free[idx-1].off+p.free[idx-1].size == p.free[idx].off {
		p.free[idx-1].size += p.free[idx].size
		p.free = append(p.free[:idx], p.free[idx+1:]...)
	}

	p.used.Add(-size)
	return nil
}

func (p *filePool) Used() int64 {
	return p.used.Load()
}

// Close unmaps the pool. The pool file itself is kept; its format belongs
// to the pool, not the cache.
func (p *filePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data == nil {
		return nil
	}
	err := unix.Munmap(p.data)
	p.data = nil
	p.free = nil
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	return err
}
