package runner

import (
	"fmt"
	"testing"

	"github.com/notargets/vecstream/utils"
)

// BenchmarkPipeline compares pipeline depths on the same problem size. With
// NStreams=1 the three phases serialize; deeper pipelines overlap one
// partition's transfer-out with the next partition's transfer-in and
// compute.
func BenchmarkPipeline(b *testing.B) {
	const n = 1 << 20

	in1 := make([]int32, n)
	in2 := make([]int32, n)
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		in1[i] = int32(i)
		in2[i] = int32(n - i)
	}

	for _, nStreams := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("NStreams=%d", nStreams), func(b *testing.B) {
			dev := utils.CreateTestDevice()
			defer dev.Free()

			r, err := NewRunner(dev, Config{N: n, NStreams: nStreams})
			if err != nil {
				b.Fatalf("NewRunner failed: %v", err)
			}
			defer r.Free()

			b.SetBytes(3 * n * elemBytes)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.Run(in1, in2, out); err != nil {
					b.Fatalf("Run failed: %v", err)
				}
			}
		})
	}
}
