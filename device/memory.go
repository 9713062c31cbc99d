package device

import (
	"fmt"
	"unsafe"
)

// Memory is a device-resident allocation. Host code reaches it only through
// copies; kernels see it through typed views. Disjoint byte ranges may be
// used by different streams without synchronization.
type Memory struct {
	dev   *Device
	buf   []byte
	freed bool
}

// Bytes returns the allocation size.
func (m *Memory) Bytes() int64 { return int64(len(m.buf)) }

// Free returns the allocation's capacity to the device. The caller must have
// drained every stream that references this memory first.
func (m *Memory) Free() {
	if m.freed {
		return
	}
	m.freed = true
	m.dev.mu.Lock()
	m.dev.usedMem -= int64(len(m.buf))
	m.dev.mu.Unlock()
	m.buf = nil
}

// CopyFrom synchronously copies bytes from host memory into the start of the
// allocation. The caller is responsible for ordering against in-flight
// asynchronous work.
func (m *Memory) CopyFrom(src unsafe.Pointer, bytes int64) {
	if bytes <= 0 {
		return
	}
	copy(m.buf[:bytes], unsafe.Slice((*byte)(src), bytes))
}

// CopyTo synchronously copies bytes from the start of the allocation into
// host memory.
func (m *Memory) CopyTo(dst unsafe.Pointer, bytes int64) {
	if bytes <= 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), bytes), m.buf[:bytes])
}

// CopyFromAsync enqueues a host-to-device copy of bytes from src into the
// allocation at byte offset, bound to the stream's program order. The host
// range must lie inside an active pinned registration; the registration is
// held in-flight until the copy executes. The call returns as soon as the
// operation is queued.
func (m *Memory) CopyFromAsync(s *Stream, src unsafe.Pointer, bytes, offset int64) error {
	if bytes == 0 {
		return nil
	}
	release, err := m.checkAsync(src, bytes, offset)
	if err != nil {
		return fmt.Errorf("async copy to device: %w", err)
	}
	host := unsafe.Slice((*byte)(src), bytes)
	s.enqueue(func() {
		copy(m.buf[offset:offset+bytes], host)
		release()
	})
	return nil
}

// CopyToAsync enqueues a device-to-host copy of bytes from the allocation at
// byte offset into dst, bound to the stream's program order. Pinning rules
// match CopyFromAsync.
func (m *Memory) CopyToAsync(s *Stream, dst unsafe.Pointer, bytes, offset int64) error {
	if bytes == 0 {
		return nil
	}
	release, err := m.checkAsync(dst, bytes, offset)
	if err != nil {
		return fmt.Errorf("async copy from device: %w", err)
	}
	host := unsafe.Slice((*byte)(dst), bytes)
	s.enqueue(func() {
		copy(host, m.buf[offset:offset+bytes])
		release()
	})
	return nil
}

func (m *Memory) checkAsync(hostPtr unsafe.Pointer, bytes, offset int64) (func(), error) {
	if m.freed {
		return nil, fmt.Errorf("freed allocation: %w", ErrInvalid)
	}
	if bytes < 0 || offset < 0 || offset+bytes > int64(len(m.buf)) {
		return nil, fmt.Errorf("range [%d,%d) outside allocation of %d bytes: %w",
			offset, offset+bytes, len(m.buf), ErrInvalid)
	}
	return m.dev.acquirePinned(hostPtr, bytes)
}

// Int32s returns the allocation viewed as int32 elements. Intended for
// kernel bodies executing inside a stream worker.
func (m *Memory) Int32s() []int32 {
	if len(m.buf) < 4 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&m.buf[0])), len(m.buf)/4)
}
