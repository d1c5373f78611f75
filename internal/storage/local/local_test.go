package local

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratumdb/pkg/errors"
)

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table-1.st")
	f, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	size, err := f.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, err := Open(filepath.Join(t.TempDir(), "table-1.st"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	payload := bytes.Repeat([]byte{0x5A}, 4096)
	n, err := f.WriteAt(ctx, payload, 1024)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, f.Sync())

	size, err := f.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1024+4096), size)

	got := make([]byte, 4096)
	n, err = f.ReadAt(ctx, got, 1024)
	require.NoError(t, err)
	assert.Equal(t, len(got), n)
	assert.Equal(t, payload, got)
}

func TestReadPastEndFails(t *testing.T) {
	ctx := context.Background()
	f, err := Open(filepath.Join(t.TempDir(), "table-1.st"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = f.WriteAt(ctx, []byte("block"), 0)
	require.NoError(t, err)

	_, err = f.ReadAt(ctx, make([]byte, 64), 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStorageRead, errors.CodeOf(err))
}

func TestContextCancellation(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "table-1.st"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.ReadAt(ctx, make([]byte, 1), 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.WriteAt(ctx, []byte("x"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "table-1.st"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStorageRead, errors.CodeOf(err))
}
