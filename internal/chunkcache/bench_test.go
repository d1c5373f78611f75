package chunkcache

import (
	"testing"

	"github.com/stratumdb/stratumdb/internal/config"
	"github.com/stratumdb/stratumdb/pkg/types"
)

func newBenchCache(b *testing.B, capacity string) *ChunkCache {
	b.Helper()
	cc := New()
	err := cc.Setup(&config.ChunkCacheConfig{
		Enabled:  true,
		Capacity: capacity,
		Backend:  config.BackendDRAM,
	})
	if err != nil {
		b.Fatalf("Setup failed: %v", err)
	}
	b.Cleanup(func() { _ = cc.Close() })
	return cc
}

func BenchmarkCheckHit(b *testing.B) {
	cc := newBenchCache(b, "16MB")
	obj := types.ObjectRef{Name: "bench.st", ID: 1, Size: 64 * mib}

	_, reserve := cc.Check(obj, 0, make([]byte, 4096))
	if reserve == nil {
		b.Fatal("expected admission")
	}
	reserve.MarkValid()

	dst := make([]byte, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if hasData, _ := cc.Check(obj, int64(i%256)*512, dst); !hasData {
			b.Fatal("expected hit")
		}
	}
}

func BenchmarkAdmitInvalidate(b *testing.B) {
	cc := newBenchCache(b, "16MB")
	obj := types.ObjectRef{Name: "bench.st", ID: 1, Size: 64 * mib}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, reserve := cc.Check(obj, 0, make([]byte, 4096))
		if reserve == nil {
			b.Fatal("expected admission")
		}
		reserve.MarkValid()
		cc.Remove(obj.Name, obj.ID, 0, 4096)
	}
}

func BenchmarkCheckParallel(b *testing.B) {
	cc := newBenchCache(b, "64MB")
	obj := types.ObjectRef{Name: "bench.st", ID: 1, Size: 64 * mib}

	for off := int64(0); off < 16*mib; off += mib {
		_, reserve := cc.Check(obj, off, make([]byte, 4096))
		if reserve == nil {
			b.Fatal("expected admission")
		}
		reserve.MarkValid()
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		dst := make([]byte, 4096)
		var i int64
		for pb.Next() {
			offset := (i % 16) * mib
			i++
			if hasData, _ := cc.Check(obj, offset, dst); !hasData {
				b.Fatal("expected hit")
			}
		}
	})
}
