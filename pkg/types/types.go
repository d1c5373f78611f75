// Package types holds shared data types exchanged between StratumDB's
// storage layers.
package types

// CacheStats represents cache performance statistics.
type CacheStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Admissions    uint64  `json:"admissions"`
	Invalidations uint64  `json:"invalidations"`
	CapacityFull  uint64  `json:"capacity_full"`
	Size          int64   `json:"size"`
	Capacity      int64   `json:"capacity"`
	HitRate       float64 `json:"hit_rate"`
	Utilization   float64 `json:"utilization"`
}

// Range represents a byte range in a backing object.
type Range struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

// End returns the first byte offset past the range.
func (r Range) End() int64 {
	return r.Offset + r.Size
}

// Covers reports whether r fully contains other.
func (r Range) Covers(other Range) bool {
	return r.Offset <= other.Offset && r.End() >= other.End()
}

// ObjectRef identifies one backing file or remote object. Name and ID
// together are the cache identity; Size is the object's current length in
// bytes and bounds chunk admission.
type ObjectRef struct {
	Name string `json:"name"`
	ID   uint32 `json:"id"`
	Size int64  `json:"size"`
}
