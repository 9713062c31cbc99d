package device

import "errors"

// Sentinel errors reported by device operations. Callers are expected to
// treat allocation and pinning failures as fatal for the whole pipeline.
var (
	// ErrOutOfMemory indicates the device allocation would exceed the
	// device's memory capacity.
	ErrOutOfMemory = errors.New("device: out of device memory")

	// ErrPinnedLimit indicates the host region cannot be page-locked because
	// the platform's pinnable-memory budget is exhausted.
	ErrPinnedLimit = errors.New("device: pinned memory limit exceeded")

	// ErrNotPinned indicates an asynchronous copy referenced a host region
	// that has no active pinned registration.
	ErrNotPinned = errors.New("device: host region not registered as pinned")

	// ErrInFlight indicates an unregister was attempted while enqueued
	// operations still reference the pinned region.
	ErrInFlight = errors.New("device: operations still in flight on pinned region")

	// ErrInvalid indicates a malformed argument (non-positive size, range
	// outside an allocation, freed memory, bad launch dimensions).
	ErrInvalid = errors.New("device: invalid argument")
)
