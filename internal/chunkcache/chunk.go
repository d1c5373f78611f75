package chunkcache

import (
	"fmt"
	"sync/atomic"
)

// Chunk is one contiguous cached byte range of one object. Its buffer is
// exclusively owned: a chunk belongs to exactly one chain, and nothing else
// holds its memory.
//
// A chunk starts out invalid. The reader that reserved it fills the buffer
// from physical storage and then calls MarkValid; until then no lookup will
// return its bytes.
type Chunk struct {
	offset   int64
	size     int64
	buf      Buffer
	valid    atomic.Bool
	bucketID uint32 // owning bucket, for quick removal of a failed reservation
}

// Offset returns the chunk's absolute byte offset in the source object.
func (c *Chunk) Offset() int64 { return c.offset }

// Size returns the chunk's length in bytes.
func (c *Chunk) Size() int64 { return c.size }

// Data returns the chunk's buffer. The caller fills it only while the chunk
// is still invalid; after MarkValid the buffer is read-only shared state.
func (c *Chunk) Data() []byte { return c.buf.Data }

// Valid reports whether the chunk has been published.
func (c *Chunk) Valid() bool { return c.valid.Load() }

// MarkValid publishes the chunk. The atomic store orders after the caller's
// writes into Data, so a reader observing valid under the bucket lock also
// observes the filled buffer.
func (c *Chunk) MarkValid() { c.valid.Store(true) }

func (c *Chunk) end() int64 { return c.offset + c.size }

// covers reports whether the chunk's range fully contains [offset, offset+size).
func (c *Chunk) covers(offset, size int64) bool {
	return c.offset <= offset && c.end() >= offset+size
}

// chunkChain owns the chunks cached for one object identity, sorted by
// ascending offset with non-overlapping ranges.
type chunkChain struct {
	id     hashID
	chunks []*Chunk
}

// find scans the chain for [offset, offset+size).
//
// Returns the covering valid chunk on a hit. reserved is true when a
// covering chunk exists but has not been published yet; the caller must
// neither hit nor admit in that case. Otherwise idx is the position where a
// chunk at this offset belongs: before the first chunk whose offset exceeds
// it, or after the last chunk scanned.
func (cc *chunkChain) find(offset, size int64) (hit *Chunk, reserved bool, idx int) {
	idx = len(cc.chunks)
	for i, ch := range cc.chunks {
		if ch.covers(offset, size) {
			if ch.Valid() {
				return ch, false, i
			}
			return nil, true, i
		}
		if ch.offset > offset {
			// The chain is offset-ordered; no later chunk can cover an
			// earlier requested offset.
			return nil, false, i
		}
	}
	return nil, false, idx
}

// insertAt links c into the chain at position idx, keeping ascending-offset
// order. Overlap with a neighbor is a programming bug in admission and
// fails loudly: the ordering invariant is load-bearing for lookups.
func (cc *chunkChain) insertAt(idx int, c *Chunk) {
	if idx > 0 && cc.chunks[idx-1].end() > c.offset {
		panic(fmt.Sprintf("chunkcache: chunk [%d,%d) overlaps predecessor [%d,%d)",
			c.offset, c.end(), cc.chunks[idx-1].offset, cc.chunks[idx-1].end()))
	}
	if idx < len(cc.chunks) && c.end() > cc.chunks[idx].offset {
		panic(fmt.Sprintf("chunkcache: chunk [%d,%d) overlaps successor [%d,%d)",
			c.offset, c.end(), cc.chunks[idx].offset, cc.chunks[idx].end()))
	}
	cc.chunks = append(cc.chunks, nil)
	copy(cc.chunks[idx+1:], cc.chunks[idx:])
	cc.chunks[idx] = c
}

// removeAt unlinks the chunk at position idx.
func (cc *chunkChain) removeAt(idx int) {
	copy(cc.chunks[idx:], cc.chunks[idx+1:])
	cc.chunks[len(cc.chunks)-1] = nil
	cc.chunks = cc.chunks[:len(cc.chunks)-1]
}
