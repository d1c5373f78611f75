// Package chunkcache implements StratumDB's block-level chunk cache.
//
// The cache sits between the block manager and the physical storage medium.
// It stores variable-offset chunks of file/object data in a faster tier
// (DRAM or a file-backed persistent-memory pool) so repeated block reads
// avoid slow I/O.
//
// Structure: a fixed-size hash table of buckets, one mutex per bucket. Each
// bucket holds the chunk chains whose identity (object id + truncated object
// name) hashed into it. A chain owns the chunks cached for one object,
// kept sorted by ascending file offset with non-overlapping ranges.
//
// A lookup (Check) either copies cached bytes into the caller's buffer, or
// reserves a freshly admitted chunk the caller must fill from physical
// storage and publish with MarkValid, or declines when the cache is full.
// Writes to the backing medium invalidate covering chunks through Remove.
package chunkcache
