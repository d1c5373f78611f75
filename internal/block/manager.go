// Package block implements the block manager's read/write path over the
// chunk cache: reads consult the cache before touching the storage medium,
// and overwrites invalidate any cached chunks they cover.
package block

import (
	"context"

	"github.com/stratumdb/stratumdb/internal/chunkcache"
	"github.com/stratumdb/stratumdb/pkg/errors"
	"github.com/stratumdb/stratumdb/pkg/types"
	"github.com/stratumdb/stratumdb/pkg/utils"
)

var logger = utils.GetLogger("stratumdb")

// Manager routes block reads and writes through the chunk cache. It is safe
// for concurrent use; all cache interaction happens through the cache's own
// bucket locking and the physical fill of a reserved chunk happens outside
// any lock.
type Manager struct {
	cache *chunkcache.ChunkCache
}

// NewManager creates a block manager over the given cache. The cache may be
// unconfigured, in which case every read is an uncached physical read.
func NewManager(cache *chunkcache.ChunkCache) *Manager {
	return &Manager{cache: cache}
}

// Read fills dst with the bytes of obj at offset, serving from the chunk
// cache when possible.
//
// On a cache miss that passed admission the reserved chunk is filled from
// src with one physical read sized to the whole chunk, published, and the
// requested range copied out; the next read of any range it covers is a
// hit. When the cache declines, the read goes straight to src.
func (m *Manager) Read(ctx context.Context, obj types.ObjectRef, src Source, offset int64, dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if offset < 0 || offset+int64(len(dst)) > obj.Size {
		return errors.Newf(errors.ErrCodeStorageRead,
			"read [%d,%d) outside object %s(%d) of %d bytes",
			offset, offset+int64(len(dst)), obj.Name, obj.ID, obj.Size).
			WithComponent("block").WithOperation("read")
	}

	hasData, reserve := m.cache.Check(obj, offset, dst)
	if hasData {
		return nil
	}

	if reserve != nil {
		// Fill the whole reserved chunk, then publish it. The fill happens
		// with no cache lock held; a concurrent lookup of this range misses
		// until MarkValid.
		if _, err := src.ReadAt(ctx, reserve.Data(), reserve.Offset()); err != nil {
			m.cache.Discard(reserve)
			logger.Debugf("chunk fill failed for %s(%d) offset=%d: %s",
				obj.Name, obj.ID, reserve.Offset(), err)
			return m.readUncached(ctx, obj, src, offset, dst)
		}

		// Copy out while the chunk is still unpublished. Once valid it is
		// eligible for invalidation, which frees the buffer under the
		// bucket lock; an invalid chunk's buffer only the reserving reader
		// may touch.
		sub := offset - reserve.Offset()
		copy(dst, reserve.Data()[sub:sub+int64(len(dst))])
		reserve.MarkValid()
		return nil
	}

	return m.readUncached(ctx, obj, src, offset, dst)
}

func (m *Manager) readUncached(ctx context.Context, obj types.ObjectRef, src Source, offset int64, dst []byte) error {
	if _, err := src.ReadAt(ctx, dst, offset); err != nil {
		return errors.Newf(errors.ErrCodeStorageRead,
			"failed to read %s(%d) at offset %d", obj.Name, obj.ID, offset).
			WithComponent("block").WithOperation("read").WithCause(err)
	}
	return nil
}

// Write overwrites obj's bytes at offset. Any cached chunk fully covering
// the overwritten range is invalidated first, so no later read can observe
// the stale bytes.
func (m *Manager) Write(ctx context.Context, obj types.ObjectRef, src WritableSource, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	m.cache.Remove(obj.Name, obj.ID, offset, int64(len(data)))

	if _, err := src.WriteAt(ctx, data, offset); err != nil {
		return errors.Newf(errors.ErrCodeStorageWrite,
			"failed to write %s(%d) at offset %d", obj.Name, obj.ID, offset).
			WithComponent("block").WithOperation("write").WithCause(err)
	}
	return nil
}

// Invalidate drops cached chunks covering [offset, offset+size) without
// touching the medium; used when a range is freed rather than overwritten.
func (m *Manager) Invalidate(obj types.ObjectRef, offset, size int64) {
	m.cache.Remove(obj.Name, obj.ID, offset, size)
}
