// Package local implements a block source backed by a local file, the
// engine's normal backing medium.
package local

import (
	"context"
	"os"

	"github.com/stratumdb/stratumdb/pkg/errors"
)

// File is a local-file block source. It implements both the read and write
// sides of the block manager's source interfaces.
type File struct {
	f    *os.File
	path string
}

// Open opens (or creates) the backing file at path.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeStorageRead, "failed to open %s", path).
			WithComponent("storage/local").WithOperation("open").WithCause(err)
	}
	return &File{f: f, path: path}, nil
}

// ReadAt reads len(p) bytes at off. A short read is an error.
func (f *File) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := f.f.ReadAt(p, off)
	if err != nil {
		return n, errors.Newf(errors.ErrCodeStorageRead,
			"read of %d bytes at offset %d in %s failed", len(p), off, f.path).
			WithComponent("storage/local").WithOperation("read").WithCause(err)
	}
	return n, nil
}

// WriteAt writes p at off.
func (f *File) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := f.f.WriteAt(p, off)
	if err != nil {
		return n, errors.Newf(errors.ErrCodeStorageWrite,
			"write of %d bytes at offset %d in %s failed", len(p), off, f.path).
			WithComponent("storage/local").WithOperation("write").WithCause(err)
	}
	return n, nil
}

// Size returns the file's current length.
func (f *File) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := f.f.Stat()
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeStorageRead, "failed to stat %s", f.path).
			WithComponent("storage/local").WithOperation("size").WithCause(err)
	}
	return info.Size(), nil
}

// Sync flushes written data to the medium.
func (f *File) Sync() error {
	return f.f.Sync()
}

// Close closes the backing file.
func (f *File) Close() error {
	return f.f.Close()
}
