// Package lru selects steal victims by recency: the least recently used
// entries are migrated first, keeping each worker's hot set local.
package lru

import (
	"slices"

	"github.com/stealcache/stealcache/policy"
)

type lru[K comparable] struct{}

// New returns the recency-based victim selector.
func New[K comparable]() policy.Selector[K] { return lru[K]{} }

// Select returns the keys of the n least recently accessed candidates.
// Entries that were never hit sort by creation time, so cold entries move
// before anything the workload is actively reading.
func (lru[K]) Select(candidates []policy.Candidate[K], n int) []K {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	slices.SortFunc(candidates, func(a, b policy.Candidate[K]) int {
		switch {
		case a.LastAccess < b.LastAccess:
			return -1
		case a.LastAccess > b.LastAccess:
			return 1
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	keys := make([]K, n)
	for i := 0; i < n; i++ {
		keys[i] = candidates[i].Key
	}
	return keys
}
