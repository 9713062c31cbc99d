package runner

import "github.com/notargets/vecstream/device"

// addKernel writes a[offset+i] + b[offset+i] to sum[offset+i] for the
// thread's global index i. The i < length guard makes an over-provisioned
// grid safe: threads past the partition's end do nothing. Pure and
// stateless, so partition boundaries never affect the result.
func addKernel(tid device.ThreadID, args ...any) {
	a := args[0].([]int32)
	b := args[1].([]int32)
	sum := args[2].([]int32)
	length := args[3].(int)
	offset := args[4].(int)

	i := tid.Global()
	if i < length {
		sum[offset+i] = a[offset+i] + b[offset+i]
	}
}

// gridFor sizes the launch grid as ceil(length/blockSize). Non-positive
// lengths produce a zero grid, which launches zero work units.
func gridFor(length, blockSize int) device.Dim3 {
	if length <= 0 {
		return device.Dim3{}
	}
	return device.Dim1((length + blockSize - 1) / blockSize)
}
