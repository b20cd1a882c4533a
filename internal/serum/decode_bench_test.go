package serum_test

import (
	"testing"

	"mango_go/internal/domain"
	"mango_go/internal/serum"
	"mango_go/internal/serum/serumtest"
)

// BenchmarkDecodeOrderBookSide measures a full scan of a busy book side.
func BenchmarkDecodeOrderBookSide(b *testing.B) {
	slab := serumtest.NewSlab(domain.SideBuy, 1024)
	for i := 0; i < 1024; i += 2 {
		slab.SetLeaf(i, leaf(uint64(1000+i), ^uint64(i), 5, uint64(i), byte(i)))
		slab.SetInner(i+1, 8, domain.OrderID{Hi: uint64(1000 + i)}, uint32(i), uint32(i+2))
	}
	data := slab.Bytes()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := serum.DecodeOrderBookSide(data, domain.SideBuy); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDecodeEventQueue measures decoding a full, wrapped queue.
func BenchmarkDecodeEventQueue(b *testing.B) {
	events := make([]domain.Event, 512)
	for i := range events {
		events[i] = fill(uint64(i+1), i%2 == 0)
	}
	data := serumtest.NewEventQueue(512).Push(300, 10_000, events...).Bytes()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := serum.DecodeEventQueue(data); err != nil {
			b.Fatal(err)
		}
	}
}
