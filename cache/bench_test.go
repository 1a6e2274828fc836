package cache

import (
	"fmt"
	"math/rand"
	"testing"
)

func newBenchCache(b *testing.B, workers int) ManagedCache[string, int] {
	b.Helper()
	c := New[string, int](Options[string, int]{
		Config: Config{LoadNormalization: 1 << 20},
	})
	b.Cleanup(func() { _ = c.Close() })
	for i := 0; i < workers; i++ {
		if err := c.RegisterWorker(fmt.Sprintf("w%d", i)); err != nil {
			b.Fatal(err)
		}
	}
	return c
}

func BenchmarkGet(b *testing.B) {
	c := newBenchCache(b, 4)
	const keys = 1 << 14
	for i := 0; i < keys; i++ {
		_ = c.Insert(fmt.Sprintf("k%d", i), i, 0)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			c.Get(fmt.Sprintf("k%d", rng.Intn(keys)))
		}
	})
}

func BenchmarkInsert(b *testing.B) {
	c := newBenchCache(b, 4)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_ = c.Insert(fmt.Sprintf("k%d", rng.Intn(1<<14)), 1, 0)
		}
	})
}

// 90% reads, 10% writes over a zipf-ish hot set.
func BenchmarkMixed(b *testing.B) {
	c := newBenchCache(b, 4)
	const keys = 1 << 14
	for i := 0; i < keys; i++ {
		_ = c.Insert(fmt.Sprintf("k%d", i), i, 0)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		zipf := rand.NewZipf(rng, 1.2, 1, keys-1)
		for pb.Next() {
			k := fmt.Sprintf("k%d", zipf.Uint64())
			if rng.Intn(10) == 0 {
				_ = c.Insert(k, 1, 0)
			} else {
				c.Get(k)
			}
		}
	})
}

func BenchmarkRebalance(b *testing.B) {
	c := newBenchCache(b, 8)
	for i := 0; i < 1<<12; i++ {
		_ = c.Insert(fmt.Sprintf("k%d", i), i, 0)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Rebalance()
	}
}
