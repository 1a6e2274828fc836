// Package partition maps cache keys to logical partitions and, optionally,
// straight to worker ids via a consistent-hash ring.
package partition

import (
	"github.com/zeebo/xxh3"

	"github.com/stealcache/stealcache/internal/util"
)

// Partitioner deterministically maps a key to a partition index in
// [0, Partitions()). Implementations must be pure: no locks, no shared
// mutable state, the same key always yields the same index for a fixed
// partition count.
type Partitioner[K comparable] interface {
	Partition(key K) int
	Partitions() int
}

// Hasher converts a key to a 64-bit hash.
type Hasher[K comparable] func(K) uint64

// KeyHasher is an optional interface a Partitioner may implement to expose
// its raw key hash. Engines use it to feed a consistent-hash ring without
// re-hashing.
type KeyHasher[K comparable] interface {
	Hash(key K) uint64
}

// DefaultHasher hashes string keys with XXH3 and falls back to FNV-1a for
// other comparable types.
func DefaultHasher[K comparable](k K) uint64 {
	if s, ok := any(k).(string); ok {
		return xxh3.HashString(s)
	}
	return util.Fnv64a(k)
}

// HashPartitioner reduces a key hash modulo a fixed partition count.
type HashPartitioner[K comparable] struct {
	n    int
	hash Hasher[K]
}

// NewHash builds a HashPartitioner with the default hasher.
// partitions <= 0 selects an automatic count based on CPU parallelism.
func NewHash[K comparable](partitions int) *HashPartitioner[K] {
	return NewHashWith[K](partitions, DefaultHasher[K])
}

// NewHashWith builds a HashPartitioner with a caller-supplied hasher.
func NewHashWith[K comparable](partitions int, h Hasher[K]) *HashPartitioner[K] {
	if partitions <= 0 {
		partitions = util.ReasonablePartitionCount()
	}
	if h == nil {
		h = DefaultHasher[K]
	}
	return &HashPartitioner[K]{n: partitions, hash: h}
}

// Partition returns the partition index for key.
func (p *HashPartitioner[K]) Partition(key K) int {
	return util.PartitionIndex(p.hash(key), p.n)
}

// Partitions returns the fixed partition count.
func (p *HashPartitioner[K]) Partitions() int { return p.n }

// Hash returns the raw 64-bit key hash (KeyHasher).
func (p *HashPartitioner[K]) Hash(key K) uint64 { return p.hash(key) }

var _ Partitioner[string] = (*HashPartitioner[string])(nil)
var _ KeyHasher[string] = (*HashPartitioner[string])(nil)
