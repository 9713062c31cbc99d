package device

import "fmt"

// Dim3 gives grid or block extents. Use Dim1 for the common one-dimensional
// case.
type Dim3 struct {
	X, Y, Z int
}

// Dim1 returns a one-dimensional extent.
func Dim1(x int) Dim3 { return Dim3{X: x, Y: 1, Z: 1} }

// Size returns the total number of positions in the extent.
func (v Dim3) Size() int { return v.X * v.Y * v.Z }

// ThreadID identifies one logical thread within a launch.
type ThreadID struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3
}

// Global returns the flattened one-dimensional global index.
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// KernelFunc is a pure per-thread compute step. It runs inside a stream
// worker and may touch device memory views and the launch arguments only.
type KernelFunc func(tid ThreadID, args ...any)

// LaunchAsync enqueues a kernel launch of grid x block logical threads on
// the stream and returns immediately. A grid with X <= 0 launches zero work
// units and is a no-op, never an error. Block extents must be positive.
func (d *Device) LaunchAsync(s *Stream, fn KernelFunc, grid, block Dim3, args ...any) error {
	if fn == nil {
		return fmt.Errorf("launch: nil kernel: %w", ErrInvalid)
	}
	block = normalized(block)
	grid = normalized(grid)
	if block.X < 1 {
		return fmt.Errorf("launch: block %+v: %w", block, ErrInvalid)
	}
	if grid.X <= 0 {
		return nil
	}
	s.enqueue(func() {
		runGrid(fn, grid, block, args)
	})
	return nil
}

// runGrid executes every logical thread of the launch. Threads within one
// launch run sequentially inside the stream worker; concurrency comes from
// independent streams.
func runGrid(fn KernelFunc, grid, block Dim3, args []any) {
	for bz := 0; bz < grid.Z; bz++ {
		for by := 0; by < grid.Y; by++ {
			for bx := 0; bx < grid.X; bx++ {
				blockIdx := Dim3{X: bx, Y: by, Z: bz}
				for tz := 0; tz < block.Z; tz++ {
					for ty := 0; ty < block.Y; ty++ {
						for tx := 0; tx < block.X; tx++ {
							fn(ThreadID{
								BlockIdx:  blockIdx,
								ThreadIdx: Dim3{X: tx, Y: ty, Z: tz},
								BlockDim:  block,
								GridDim:   grid,
							}, args...)
						}
					}
				}
			}
		}
	}
}

// normalized treats unset trailing extents as 1 so Dim3{X: n} behaves like
// Dim1(n). X is left as given: a non-positive X means zero work.
func normalized(v Dim3) Dim3 {
	if v.Y < 1 {
		v.Y = 1
	}
	if v.Z < 1 {
		v.Z = 1
	}
	return v
}
