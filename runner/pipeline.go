package runner

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/notargets/vecstream/device"
)

const elemBytes = 4 // int32

// Run executes the overlap pipeline: it registers the three host buffers as
// pinned, allocates full-size device mirrors, enqueues each partition's
// transfer-in / compute / transfer-out triple on that partition's stream in
// a single pass, and waits on one end-of-pipeline tag. It returns the
// device-measured wall-clock span of the pipeline in milliseconds.
//
// Any registration, allocation, or enqueue failure aborts the whole
// pipeline; out must not be trusted after an error. On every exit path the
// device is drained before mirrors are freed and host buffers are
// unregistered.
func (r *Runner) Run(in1, in2, out []int32) (float64, error) {
	n := r.cfg.N
	if len(in1) != n || len(in2) != n || len(out) != n {
		return 0, fmt.Errorf("run: buffer lengths (%d,%d,%d) do not match N=%d",
			len(in1), len(in2), len(out), n)
	}

	totalBytes := int64(n) * elemBytes

	// Pin the caller's buffers. Scoped acquisition: every registration made
	// here is reversed in the deferred cleanup, after a drain, on success
	// and failure alike.
	var pinnedPtrs []unsafe.Pointer
	var mirrors []*device.Memory
	defer func() {
		r.Device.Finish()
		for _, m := range mirrors {
			m.Free()
		}
		for _, p := range pinnedPtrs {
			if err := r.Device.UnregisterPinned(p); err != nil {
				r.logger.Warn("unregister pinned host buffer", zap.Error(err))
			}
		}
	}()

	for _, buf := range [][]int32{in1, in2, out} {
		ptr := unsafe.Pointer(&buf[0])
		if err := r.Device.RegisterPinned(ptr, totalBytes); err != nil {
			return 0, fmt.Errorf("run: pinning host buffer: %w", err)
		}
		pinnedPtrs = append(pinnedPtrs, ptr)
	}

	// Device mirrors are sized to the full problem, not per-partition, and
	// live only for this pipeline.
	var dIn1, dIn2, dOut *device.Memory
	for _, target := range []**device.Memory{&dIn1, &dIn2, &dOut} {
		mem, err := r.Device.Malloc(totalBytes)
		if err != nil {
			return 0, fmt.Errorf("run: allocating device mirror: %w", err)
		}
		*target = mem
		mirrors = append(mirrors, mem)
	}

	timer := NewTimer(r.Device)
	timer.Start()

	// Single enqueue pass: stream i's full sequence, then stream i+1's.
	// Correctness depends only on each stream's own program order; issuing
	// everything before any wait is what lets the streams overlap.
	for i, p := range r.parts {
		s := r.streams[i]
		byteOff := int64(p.Offset) * elemBytes
		byteLen := int64(p.Length) * elemBytes

		if p.Length > 0 {
			if err := dIn1.CopyFromAsync(s, unsafe.Pointer(&in1[p.Offset]), byteLen, byteOff); err != nil {
				return 0, fmt.Errorf("run: partition %d in1 transfer: %w", i, err)
			}
			if err := dIn2.CopyFromAsync(s, unsafe.Pointer(&in2[p.Offset]), byteLen, byteOff); err != nil {
				return 0, fmt.Errorf("run: partition %d in2 transfer: %w", i, err)
			}
		}

		grid := gridFor(p.Length, r.cfg.BlockSize)
		err := r.Device.LaunchAsync(s, addKernel, grid, device.Dim1(r.cfg.BlockSize),
			dIn1.Int32s(), dIn2.Int32s(), dOut.Int32s(), p.Length, p.Offset)
		if err != nil {
			return 0, fmt.Errorf("run: partition %d kernel launch: %w", i, err)
		}

		if p.Length > 0 {
			if err := dOut.CopyToAsync(s, unsafe.Pointer(&out[p.Offset]), byteLen, byteOff); err != nil {
				return 0, fmt.Errorf("run: partition %d out transfer: %w", i, err)
			}
		}

		r.logger.Debug("partition enqueued",
			zap.Int("stream", s.ID()),
			zap.Int("offset", p.Offset),
			zap.Int("length", p.Length))
	}

	// One cross-stream barrier at the very end: the stop tag completes only
	// after every stream has drained.
	timer.Stop()
	elapsed, err := timer.ElapsedMs()
	if err != nil {
		return 0, fmt.Errorf("run: reading pipeline timing: %w", err)
	}

	r.logger.Debug("pipeline drained", zap.Float64("elapsed_ms", elapsed))
	return elapsed, nil
}
