package partition

import (
	"slices"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Ring is a consistent-hash ring with virtual nodes. It maps key hashes to
// worker ids so that adding or removing a worker relocates only the keys
// adjacent to that worker's virtual nodes.
//
// A Ring is immutable after construction; rebuild it when the worker set
// changes. Lookups are safe for concurrent use.
type Ring struct {
	nodes   []virtualNode // sorted by hash
	workers []string
}

type virtualNode struct {
	hash   uint64
	worker string
}

// NewRing places each worker on the ring with the given number of virtual
// nodes. Duplicate worker ids are ignored after the first occurrence.
func NewRing(workers []string, virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = 1
	}
	seen := make(map[string]struct{}, len(workers))
	uniq := make([]string, 0, len(workers))
	for _, w := range workers {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		uniq = append(uniq, w)
	}

	r := &Ring{
		nodes:   make([]virtualNode, 0, len(uniq)*virtualNodes),
		workers: uniq,
	}
	for _, w := range uniq {
		for i := 0; i < virtualNodes; i++ {
			h := xxh3.HashString(w + "#" + strconv.Itoa(i))
			r.nodes = append(r.nodes, virtualNode{hash: h, worker: w})
		}
	}
	slices.SortFunc(r.nodes, func(a, b virtualNode) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			return 0
		}
	})
	return r
}

// Lookup returns the worker owning keyHash, walking clockwise to the first
// virtual node at or after the hash and wrapping at the end of the ring.
// ok is false when the ring is empty.
func (r *Ring) Lookup(keyHash uint64) (worker string, ok bool) {
	if len(r.nodes) == 0 {
		return "", false
	}
	i, _ := slices.BinarySearchFunc(r.nodes, keyHash, func(n virtualNode, h uint64) int {
		switch {
		case n.hash < h:
			return -1
		case n.hash > h:
			return 1
		default:
			return 0
		}
	})
	if i == len(r.nodes) {
		i = 0
	}
	return r.nodes[i].worker, true
}

// Workers returns the unique worker ids on the ring, in insertion order.
func (r *Ring) Workers() []string {
	return slices.Clone(r.workers)
}

// Len returns the number of virtual nodes on the ring.
func (r *Ring) Len() int { return len(r.nodes) }
