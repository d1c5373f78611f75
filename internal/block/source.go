package block

import "context"

// Source supplies the bytes of one backing file or remote object. The chunk
// cache never touches a Source; only the block manager reads through it,
// and always outside any cache lock.
type Source interface {
	// ReadAt reads len(p) bytes starting at off. Short reads are errors.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the object's current length in bytes.
	Size(ctx context.Context) (int64, error)
}

// WritableSource is a Source whose bytes can be overwritten in place.
type WritableSource interface {
	Source

	WriteAt(ctx context.Context, p []byte, off int64) (int, error)
}
