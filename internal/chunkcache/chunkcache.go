package chunkcache

import (
	"sync"
	"sync/atomic"

	"github.com/stratumdb/stratumdb/internal/config"
	"github.com/stratumdb/stratumdb/pkg/errors"
	"github.com/stratumdb/stratumdb/pkg/types"
	"github.com/stratumdb/stratumdb/pkg/utils"
)

var logger = utils.GetLogger("stratumdb")

// DefaultChunkSize is the fixed admission size: every admitted chunk is this
// large unless the source object has fewer bytes remaining.
const DefaultChunkSize int64 = 1 << 20

type backendKind int

const (
	backendUnconfigured backendKind = iota
	backendDRAM
	backendFile
)

func (k backendKind) String() string {
	switch k {
	case backendDRAM:
		return "dram"
	case backendFile:
		return "file"
	default:
		return "unconfigured"
	}
}

// bucket is one hash table slot: the chains whose identities collided here,
// guarded by the bucket's own lock. The chain list has no ordering; new
// chains go to the head.
type bucket struct {
	mu     sync.Mutex
	chains []*chunkChain
}

// ChunkCache caches chunks of file/object data between the block manager
// and the storage medium. One instance per storage engine; the owner calls
// Setup once and Close at shutdown. All operations before a successful
// Setup are no-ops.
type ChunkCache struct {
	configured atomic.Bool
	kind       backendKind
	capacity   int64
	chunkSize  int64
	alloc      Allocator
	buckets    []bucket
	dirPath    string

	hits          atomic.Uint64
	misses        atomic.Uint64
	admissions    atomic.Uint64
	invalidations atomic.Uint64
	capacityFull  atomic.Uint64
}

// New returns an unconfigured cache. Check and Remove are no-ops until
// Setup succeeds.
func New() *ChunkCache {
	return &ChunkCache{chunkSize: DefaultChunkSize}
}

// Setup configures the cache. It is one-shot: reconfiguration is not
// supported and fails. On any error the cache is left exactly as it was.
func (cc *ChunkCache) Setup(cfg *config.ChunkCacheConfig) error {
	if cc.configured.Load() {
		return errors.NewError(errors.ErrCodeAlreadyConfigured,
			"chunk cache setup requested, but cache is already configured").
			WithComponent("chunkcache").WithOperation("setup")
	}
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewError(errors.ErrCodeConfigValidation, err.Error()).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}

	capacity, err := cfg.CapacityBytes()
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigValidation, err.Error()).
			WithComponent("chunkcache").WithOperation("setup").WithCause(err)
	}

	hashtableSize := cfg.HashtableSize
	if hashtableSize == 0 {
		hashtableSize = config.DefaultHashtableSize
	}

	var kind backendKind
	var alloc Allocator
	switch cfg.Backend {
	case "", config.BackendDRAM:
		kind = backendDRAM
		alloc = newDRAMAllocator()
	case config.BackendFile:
		kind = backendFile
		if err := utils.ValidateAbsoluteDir(cfg.DirectoryPath); err != nil {
			return errors.NewError(errors.ErrCodeConfigValidation, err.Error()).
				WithComponent("chunkcache").WithOperation("setup").WithCause(err)
		}
		pool, err := newFilePool(cfg.DirectoryPath, capacity)
		if err != nil {
			return err
		}
		alloc = pool
	default:
		return errors.Newf(errors.ErrCodeInvalidConfig, "unknown chunk cache backend: %s", cfg.Backend).
			WithComponent("chunkcache").WithOperation("setup")
	}

	cc.kind = kind
	cc.capacity = capacity
	cc.alloc = alloc
	cc.buckets = make([]bucket, hashtableSize)
	cc.dirPath = cfg.DirectoryPath
	cc.configured.Store(true)

	logger.Infof("chunk cache configured: type=%s capacity=%s hashtable=%d",
		kind, utils.FormatSize(capacity), hashtableSize)
	return nil
}

// Check looks up [offset, offset+len(dst)) of obj.
//
// On a hit the overlapping bytes are copied into dst and hasData is true.
// On a miss that passes admission, a reserved chunk is returned: the caller
// must fill Data from physical storage and MarkValid it (or Discard it on a
// failed read), all outside this call. When the cache is unconfigured, full,
// or allocation fails, both results are zero and the caller falls through
// to an uncached read.
func (cc *ChunkCache) Check(obj types.ObjectRef, offset int64, dst []byte) (hasData bool, reserve *Chunk) {
	size := int64(len(dst))
	if !cc.configured.Load() || size <= 0 || offset < 0 {
		return false, nil
	}

	id := newHashID(obj.Name, obj.ID)
	bucketID := uint32(id.sum() % uint64(len(cc.buckets)))
	b := &cc.buckets[bucketID]

	b.mu.Lock()
	defer b.mu.Unlock()

	chain := b.findChain(id)
	if chain != nil {
		hit, reserved, idx := chain.find(offset, size)
		if hit != nil {
			copy(dst, hit.Data()[offset-hit.offset:offset-hit.offset+size])
			cc.hits.Add(1)
			return true, nil
		}
		if reserved {
			// Another reader holds an unfilled reservation covering this
			// range; fall back to an uncached read rather than overlap it.
			cc.misses.Add(1)
			return false, nil
		}
		cc.misses.Add(1)

		newChunk := cc.admit(obj, offset, size, chain, idx, bucketID)
		if newChunk == nil {
			return false, nil
		}
		chain.insertAt(idx, newChunk)
		return false, newChunk
	}
	cc.misses.Add(1)

	// No chain for this identity yet.
	newChain := &chunkChain{id: id}
	newChunk := cc.admit(obj, offset, size, newChain, 0, bucketID)
	if newChunk == nil {
		return false, nil
	}
	newChain.insertAt(0, newChunk)
	b.chains = append([]*chunkChain{newChain}, b.chains...)
	return false, newChunk
}

// admit runs the admission sizer and allocates the new chunk. Returns nil
// when nothing should be cached: capacity reached, nothing left of the
// object, the sized chunk would not cover the request (it would straddle an
// existing neighbor), or allocation failed.
func (cc *ChunkCache) admit(obj types.ObjectRef, offset, size int64, chain *chunkChain, idx int, bucketID uint32) *Chunk {
	if idx > 0 && chain.chunks[idx-1].end() > offset {
		// A partially overlapping predecessor exists; admitting here would
		// break the non-overlap invariant.
		return nil
	}
	chunkSize := cc.admitSize(obj.Size, offset)
	if chunkSize == 0 {
		return nil
	}
	if idx < len(chain.chunks) && offset+chunkSize > chain.chunks[idx].offset {
		chunkSize = chain.chunks[idx].offset - offset
	}
	if chunkSize < size {
		return nil
	}

	buf, err := cc.alloc.Allocate(chunkSize)
	if err != nil {
		logger.Debugf("chunk allocation of %d bytes failed: %s", chunkSize, err)
		return nil
	}
	cc.admissions.Add(1)
	logger.Debugf("admit: %s(%d) offset=%d size=%d", obj.Name, obj.ID, offset, chunkSize)
	return &Chunk{offset: offset, size: chunkSize, buf: buf, bucketID: bucketID}
}

// admitSize decides how many bytes to admit for a request at offset, or 0
// to admit nothing. The capacity check is heuristic: bytes_used races
// across buckets and that is an accepted trade-off.
func (cc *ChunkCache) admitSize(objectSize, offset int64) int64 {
	if cc.alloc.Used()+cc.chunkSize > cc.capacity {
		cc.capacityFull.Add(1)
		logger.Debugf("exceeded chunk cache capacity of %d bytes", cc.capacity)
		return 0
	}
	remaining := objectSize - offset
	if remaining <= 0 {
		return 0
	}
	if remaining < cc.chunkSize {
		return remaining
	}
	return cc.chunkSize
}

// Remove drops every valid chunk fully covering [offset, offset+size),
// freeing its buffer through the allocator backend. Called when the block
// manager overwrites or frees that range on the backing medium.
func (cc *ChunkCache) Remove(name string, objectID uint32, offset, size int64) {
	if !cc.configured.Load() || size <= 0 {
		return
	}

	id := newHashID(name, objectID)
	b := &cc.buckets[uint32(id.sum()%uint64(len(cc.buckets)))]

	b.mu.Lock()
	defer b.mu.Unlock()

	for ci, chain := range b.chains {
		if chain.id != id {
			continue
		}
		for i := 0; i < len(chain.chunks); {
			ch := chain.chunks[i]
			if ch.Valid() && ch.covers(offset, size) {
				chain.removeAt(i)
				cc.freeChunk(ch)
				cc.invalidations.Add(1)
				logger.Debugf("invalidate: %s(%d) offset=%d size=%d", name, objectID, ch.offset, ch.size)
				continue
			}
			i++
		}
		if len(chain.chunks) == 0 {
			b.chains = append(b.chains[:ci], b.chains[ci+1:]...)
		}
		return
	}
}

// Discard drops a reserved chunk whose physical read failed, releasing its
// buffer. Only the reader that received the reservation may call it, and
// only before MarkValid.
func (cc *ChunkCache) Discard(c *Chunk) {
	if c == nil || !cc.configured.Load() {
		return
	}

	b := &cc.buckets[c.bucketID]
	b.mu.Lock()
	defer b.mu.Unlock()

	for ci, chain := range b.chains {
		for i, ch := range chain.chunks {
			if ch == c {
				chain.removeAt(i)
				cc.freeChunk(c)
				if len(chain.chunks) == 0 {
					b.chains = append(b.chains[:ci], b.chains[ci+1:]...)
				}
				return
			}
		}
	}
}

func (cc *ChunkCache) freeChunk(c *Chunk) {
	if err := cc.alloc.Release(c.buf); err != nil {
		logger.Errorf("failed to release chunk buffer: %s", err)
	}
	c.buf = Buffer{}
}

// BytesUsed returns the cache's current memory consumption.
func (cc *ChunkCache) BytesUsed() int64 {
	if !cc.configured.Load() {
		return 0
	}
	return cc.alloc.Used()
}

// Stats returns a snapshot of cache statistics.
func (cc *ChunkCache) Stats() types.CacheStats {
	stats := types.CacheStats{
		Hits:          cc.hits.Load(),
		Misses:        cc.misses.Load(),
		Admissions:    cc.admissions.Load(),
		Invalidations: cc.invalidations.Load(),
		CapacityFull:  cc.capacityFull.Load(),
		Capacity:      cc.capacity,
	}
	if cc.configured.Load() {
		stats.Size = cc.alloc.Used()
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if stats.Capacity > 0 {
		stats.Utilization = float64(stats.Size) / float64(stats.Capacity)
	}
	return stats
}

// Close tears the cache down: every chunk buffer is released and the
// allocator backend is shut down. The cache must not be used afterwards.
func (cc *ChunkCache) Close() error {
	if !cc.configured.Swap(false) {
		return nil
	}
	for i := range cc.buckets {
		b := &cc.buckets[i]
		b.mu.Lock()
		for _, chain := range b.chains {
			for _, ch := range chain.chunks {
				cc.freeChunk(ch)
			}
			chain.chunks = nil
		}
		b.chains = nil
		b.mu.Unlock()
	}
	return cc.alloc.Close()
}

func (b *bucket) findChain(id hashID) *chunkChain {
	for _, chain := range b.chains {
		if chain.id == id {
			return chain
		}
	}
	return nil
}
