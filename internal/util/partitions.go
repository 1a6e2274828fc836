package util

import "runtime"

// ReasonablePartitionCount picks a default logical partition count from CPU
// parallelism: nextPow2(2*GOMAXPROCS) clamped to [1..256]. Plenty of slots
// for even key spreading without bloating routing tables.
func ReasonablePartitionCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// PartitionIndex reduces a 64-bit hash to a partition index.
// Power-of-two counts take the mask fast path; any other count is correct
// via modulo.
func PartitionIndex(hash uint64, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(partitions)) {
		return int(hash & uint64(partitions-1))
	}
	return int(hash % uint64(partitions))
}
