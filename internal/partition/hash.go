// Package partition provides deterministic partition assignment and the
// flat-file store backing each partition.
package partition

import (
	"github.com/spaolacci/murmur3"
)

// MaxPartitions is the hard ceiling on the number of partitions for a
// dataset. Partition count is fixed at warehouse construction; changing
// it requires a full re-partition, which is not supported.
const MaxPartitions = 20

// CountFor computes the partition count for a dataset from the expected
// row count and the target rows per partition, clamped to [1, MaxPartitions].
// For fixed inputs the result is stable across process restarts.
func CountFor(expectedRows, partitionSize int) int {
	if expectedRows <= 0 || partitionSize <= 0 {
		return 1
	}
	count := (expectedRows + partitionSize - 1) / partitionSize
	if count < 1 {
		count = 1
	}
	if count > MaxPartitions {
		count = MaxPartitions
	}
	return count
}

// IndexOf maps a partition key value to a partition index in [0, count).
// The same key value always maps to the same index: murmur3 is unseeded
// and the digest is reduced modulo the fixed partition count. Any string
// is a valid key, including the empty string.
func IndexOf(keyValue string, count int) int {
	h := murmur3.Sum64([]byte(keyValue))
	return int(h % uint64(count))
}
