// Package device implements an in-process accelerator runtime with memory
// physically separate from host slices, independent strictly-ordered command
// queues (streams), page-locked host registration, and device-side timing
// tags. All actual parallelism happens across stream workers; the host side
// only enqueues.
package device

import (
	"fmt"
	"sync"
)

// Default capacities for a freshly created device.
const (
	DefaultMemBytes       = 1 << 32 // 4 GiB of device memory
	DefaultMaxPinnedBytes = 1 << 31 // 2 GiB of pinnable host memory
)

// Config sizes a device. Zero values select the defaults.
type Config struct {
	MemBytes       int64
	MaxPinnedBytes int64
}

// Device is a simulated accelerator. A single host thread is expected to
// drive allocation, stream creation, and enqueue calls; the stream workers
// execute the queued operations concurrently.
type Device struct {
	mu      sync.Mutex
	cfg     Config
	streams []*Stream
	nextID  int

	usedMem   int64
	pinned    map[uintptr]*pinnedRegion
	pinnedUse int64

	freed bool
}

// New creates a device with the given capacities.
func New(cfg Config) *Device {
	if cfg.MemBytes <= 0 {
		cfg.MemBytes = DefaultMemBytes
	}
	if cfg.MaxPinnedBytes <= 0 {
		cfg.MaxPinnedBytes = DefaultMaxPinnedBytes
	}
	return &Device{
		cfg:    cfg,
		pinned: make(map[uintptr]*pinnedRegion),
	}
}

// Mode identifies the backend, mirroring the mode string a hardware runtime
// would report.
func (d *Device) Mode() string { return "Sim" }

// MemBytes returns the device memory capacity.
func (d *Device) MemBytes() int64 { return d.cfg.MemBytes }

// MemUsed returns the currently allocated device memory.
func (d *Device) MemUsed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usedMem
}

// PinnedLimitBytes returns the pinnable host memory budget.
func (d *Device) PinnedLimitBytes() int64 { return d.cfg.MaxPinnedBytes }

// NumStreams returns the number of live streams.
func (d *Device) NumStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Malloc allocates device-resident memory. The allocation is addressable
// only through Memory's copy operations and kernel views; host slices never
// alias it.
func (d *Device) Malloc(bytes int64) (*Memory, error) {
	if bytes <= 0 {
		return nil, fmt.Errorf("malloc of %d bytes: %w", bytes, ErrInvalid)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.usedMem+bytes > d.cfg.MemBytes {
		return nil, fmt.Errorf("malloc of %d bytes with %d of %d in use: %w",
			bytes, d.usedMem, d.cfg.MemBytes, ErrOutOfMemory)
	}
	d.usedMem += bytes
	return &Memory{dev: d, buf: make([]byte, bytes)}, nil
}

// Finish blocks until every stream has drained. This is the only
// cross-stream barrier besides tags.
func (d *Device) Finish() {
	for _, s := range d.snapshotStreams() {
		s.Synchronize()
	}
}

// Free drains and tears down all streams. The device must not be used
// afterwards.
func (d *Device) Free() {
	d.mu.Lock()
	streams := d.streams
	d.streams = nil
	d.freed = true
	d.mu.Unlock()

	for _, s := range streams {
		s.shutdown()
	}
}

func (d *Device) snapshotStreams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Stream, len(d.streams))
	copy(out, d.streams)
	return out
}
