// Package partitions divides a one-dimensional element index space into
// contiguous per-stream chunks. Partitioning is a throughput optimization
// only: the computed result for any element is identical regardless of how
// the index space is sliced.
package partitions

import "fmt"

// Partition is a contiguous, non-overlapping sub-range of the element index
// space owned by one stream.
type Partition struct {
	Offset int // starting index into the global arrays
	Length int // element count; zero for trailing partitions when nStreams > n
}

// End returns the exclusive upper index of the partition.
func (p Partition) End() int { return p.Offset + p.Length }

// Plan divides n elements into nStreams contiguous partitions.
//
// The base chunk length is n/nStreams+1, deliberately over-provisioned so
// the final partition shrinks rather than grows. Offsets and lengths are
// clamped to n, so partitions are contiguous, non-overlapping, and sum to
// exactly n; when nStreams exceeds n the trailing partitions come out with
// zero length, which downstream launches must treat as zero work units.
//
// Passing nStreams < 1 or n < 0 is a programming error.
func Plan(n, nStreams int) []Partition {
	if nStreams < 1 {
		panic(fmt.Sprintf("partitions: nStreams must be positive, got %d", nStreams))
	}
	if n < 0 {
		panic(fmt.Sprintf("partitions: n must be non-negative, got %d", n))
	}

	base := n/nStreams + 1
	parts := make([]Partition, nStreams)
	for i := range parts {
		offset := min(i*base, n)
		length := min(base, n-offset)
		if i == nStreams-1 {
			length = n - offset
		}
		parts[i] = Partition{Offset: offset, Length: length}
	}
	return parts
}
