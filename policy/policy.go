// Package policy defines the pluggable victim-selection contract used when
// the rebalancer migrates entries away from an overloaded worker.
package policy

// Candidate describes one entry eligible for migration.
type Candidate[K comparable] struct {
	Key K
	// LastAccess is the UnixNano stamp of the most recent hit.
	LastAccess int64
	// CreatedAt is the UnixNano creation stamp.
	CreatedAt int64
}

// Selector picks up to n victims out of candidates. Implementations may
// reorder candidates in place and must not retain the slice after
// returning. Called while the registry lock is held, so selection must be
// cheap and must never block.
type Selector[K comparable] interface {
	Select(candidates []Candidate[K], n int) []K
}
