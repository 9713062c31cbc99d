package device

import (
	"fmt"
	"unsafe"
)

// pinnedRegion tracks one page-locked host registration. inflight counts
// enqueued async copies that reference the region and is guarded by the
// device mutex.
type pinnedRegion struct {
	base     uintptr
	size     int64
	inflight int
}

// RegisterPinned makes an existing host region eligible for asynchronous
// transfer. The region must not overlap an active registration, and while
// registered the backing memory must not be reallocated, resized, or freed.
// Fails with ErrPinnedLimit when the pinnable budget is exhausted.
func (d *Device) RegisterPinned(ptr unsafe.Pointer, bytes int64) error {
	if ptr == nil || bytes <= 0 {
		return fmt.Errorf("register pinned %d bytes: %w", bytes, ErrInvalid)
	}
	base := uintptr(ptr)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.pinned {
		if base < r.base+uintptr(r.size) && r.base < base+uintptr(bytes) {
			return fmt.Errorf("register pinned: region overlaps registration at %#x: %w",
				r.base, ErrInvalid)
		}
	}
	if d.pinnedUse+bytes > d.cfg.MaxPinnedBytes {
		return fmt.Errorf("register pinned %d bytes with %d of %d in use: %w",
			bytes, d.pinnedUse, d.cfg.MaxPinnedBytes, ErrPinnedLimit)
	}
	d.pinned[base] = &pinnedRegion{base: base, size: bytes}
	d.pinnedUse += bytes
	return nil
}

// UnregisterPinned reverses RegisterPinned. It must be called exactly once
// per successful registration, with the same base pointer, and only after
// every operation referencing the region has completed; an unregister while
// copies are still queued fails with ErrInFlight.
func (d *Device) UnregisterPinned(ptr unsafe.Pointer) error {
	base := uintptr(ptr)

	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.pinned[base]
	if !ok {
		return fmt.Errorf("unregister pinned %#x: %w", base, ErrNotPinned)
	}
	if r.inflight > 0 {
		return fmt.Errorf("unregister pinned %#x with %d queued ops: %w",
			base, r.inflight, ErrInFlight)
	}
	delete(d.pinned, base)
	d.pinnedUse -= r.size
	return nil
}

// acquirePinned finds the registration containing [ptr, ptr+bytes), marks one
// operation in flight, and returns the matching release callback.
func (d *Device) acquirePinned(ptr unsafe.Pointer, bytes int64) (func(), error) {
	base := uintptr(ptr)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.pinned {
		if base >= r.base && base+uintptr(bytes) <= r.base+uintptr(r.size) {
			r.inflight++
			return func() {
				d.mu.Lock()
				r.inflight--
				d.mu.Unlock()
			}, nil
		}
	}
	return nil, fmt.Errorf("host range %#x+%d: %w", base, bytes, ErrNotPinned)
}
