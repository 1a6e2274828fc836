package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a practical default for modern CPUs; the runtime's own
// constant is unexported.
const CacheLineSize = 64

// PaddedAtomicUint64 is an atomic uint64 occupying exactly one cache line.
// Use for hot counters updated by many goroutines to avoid false sharing.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Compile-time size check: the padded counter must be one cache line.
var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
