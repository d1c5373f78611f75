package chunkcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stratumdb/stratumdb/pkg/errors"
)

func TestDRAMAllocatorAccounting(t *testing.T) {
	a := newDRAMAllocator()

	buf, err := a.Allocate(4096)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(buf.Data) != 4096 {
		t.Fatalf("buffer length = %d, want 4096", len(buf.Data))
	}
	if a.Used() != 4096 {
		t.Errorf("Used = %d, want 4096", a.Used())
	}

	if err := a.Release(buf); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if a.Used() != 0 {
		t.Errorf("Used after release = %d, want 0", a.Used())
	}

	if _, err := a.Allocate(0); err == nil {
		t.Error("Allocate(0) succeeded, want error")
	}
	if err := a.Release(Buffer{}); err != nil {
		t.Errorf("Release of zero buffer: %v", err)
	}
}

func TestFilePoolAllocateRelease(t *testing.T) {
	dir := t.TempDir()
	p, err := newFilePool(dir, 4096)
	if err != nil {
		t.Fatalf("newFilePool: %v", err)
	}
	defer func() { _ = p.Close() }()

	if _, err := os.Stat(filepath.Join(dir, poolFileName)); err != nil {
		t.Fatalf("pool file missing: %v", err)
	}

	// First-fit hands out ascending extents.
	var bufs []Buffer
	for i, wantOff := range []int64{0, 1024, 2048} {
		buf, err := p.Allocate(1024)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		if buf.poolOff != wantOff {
			t.Errorf("allocation #%d at offset %d, want %d", i, buf.poolOff, wantOff)
		}
		bufs = append(bufs, buf)
	}
	if p.Used() != 3072 {
		t.Errorf("Used = %d, want 3072", p.Used())
	}

	// 1024 bytes remain; a 2048-byte request exhausts the pool.
	if _, err := p.Allocate(2048); errors.CodeOf(err) != errors.ErrCodePoolExhausted {
		t.Errorf("oversized Allocate error = %v, want %s", err, errors.ErrCodePoolExhausted)
	}

	// Buffers are real slices of the mapping.
	copy(bufs[1].Data, bytes.Repeat([]byte{0xAB}, 1024))
	if bufs[1].Data[1023] != 0xAB {
		t.Error("write through pool buffer lost")
	}

	// Releasing middle then first coalesces into one extent large enough
	// for the request that just failed.
	if err := p.Release(bufs[1]); err != nil {
		t.Fatalf("Release middle: %v", err)
	}
	if err := p.Release(bufs[0]); err != nil {
		t.Fatalf("Release first: %v", err)
	}
	buf, err := p.Allocate(2048)
	if err != nil {
		t.Fatalf("Allocate after coalesce: %v", err)
	}
	if buf.poolOff != 0 {
		t.Errorf("coalesced allocation at offset %d, want 0", buf.poolOff)
	}
	if p.Used() != 3072 {
		t.Errorf("Used = %d, want 3072", p.Used())
	}
}

func TestFilePoolRejectsForeignBuffer(t *testing.T) {
	p, err := newFilePool(t.TempDir(), 4096)
	if err != nil {
		t.Fatalf("newFilePool: %v", err)
	}
	defer func() { _ = p.Close() }()

	foreign := Buffer{Data: make([]byte, 64), poolOff: -1}
	if err := p.Release(foreign); errors.CodeOf(err) != errors.ErrCodeInvalidState {
		t.Errorf("Release of heap buffer = %v, want %s", err, errors.ErrCodeInvalidState)
	}
	past := Buffer{Data: make([]byte, 64), poolOff: 4090}
	if err := p.Release(past); errors.CodeOf(err) != errors.ErrCodeInvalidState {
		t.Errorf("Release past pool end = %v, want %s", err, errors.ErrCodeInvalidState)
	}
}

func TestFilePoolClose(t *testing.T) {
	p, err := newFilePool(t.TempDir(), 4096)
	if err != nil {
		t.Fatalf("newFilePool: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := p.Allocate(64); errors.CodeOf(err) != errors.ErrCodeClosed {
		t.Errorf("Allocate after Close = %v, want %s", err, errors.ErrCodeClosed)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestFilePoolInvalidSize(t *testing.T) {
	if _, err := newFilePool(t.TempDir(), 0); err == nil {
		t.Error("newFilePool(0) succeeded, want error")
	}
}

func TestFilePoolCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pmem", "cache")
	p, err := newFilePool(dir, 4096)
	if err != nil {
		t.Fatalf("newFilePool in missing directory: %v", err)
	}
	defer func() { _ = p.Close() }()

	if _, err := os.Stat(filepath.Join(dir, poolFileName)); err != nil {
		t.Fatalf("pool file missing: %v", err)
	}
}
