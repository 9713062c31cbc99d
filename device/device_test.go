package device

import (
	"errors"
	"testing"
	"unsafe"
)

func TestDevice_MallocAccounting(t *testing.T) {
	dev := New(Config{MemBytes: 1024, MaxPinnedBytes: 1024})
	defer dev.Free()

	mem, err := dev.Malloc(512)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	if dev.MemUsed() != 512 {
		t.Errorf("Expected 512 bytes in use, got %d", dev.MemUsed())
	}

	// Exceeding capacity is a resource-exhaustion failure
	if _, err := dev.Malloc(1024); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Expected ErrOutOfMemory, got %v", err)
	}

	mem.Free()
	if dev.MemUsed() != 0 {
		t.Errorf("Expected 0 bytes in use after free, got %d", dev.MemUsed())
	}

	// Freed capacity is reusable
	if _, err := dev.Malloc(1024); err != nil {
		t.Errorf("Malloc after free failed: %v", err)
	}
}

func TestDevice_MallocInvalidSize(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	for _, bytes := range []int64{0, -8} {
		if _, err := dev.Malloc(bytes); !errors.Is(err, ErrInvalid) {
			t.Errorf("Malloc(%d): expected ErrInvalid, got %v", bytes, err)
		}
	}
}

func TestMemory_SyncCopyRoundTrip(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	src := []int32{1, -2, 3, -4, 5}
	bytes := int64(len(src) * 4)

	mem, err := dev.Malloc(bytes)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	defer mem.Free()

	mem.CopyFrom(unsafe.Pointer(&src[0]), bytes)

	dst := make([]int32, len(src))
	mem.CopyTo(unsafe.Pointer(&dst[0]), bytes)

	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("Round trip failed at %d: got %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestMemory_AsyncCopyRequiresPinned(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	host := make([]int32, 8)
	mem, err := dev.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	defer mem.Free()

	s := dev.CreateStream()

	err = mem.CopyFromAsync(s, unsafe.Pointer(&host[0]), 32, 0)
	if !errors.Is(err, ErrNotPinned) {
		t.Errorf("Expected ErrNotPinned for unregistered host buffer, got %v", err)
	}

	if err := dev.RegisterPinned(unsafe.Pointer(&host[0]), 32); err != nil {
		t.Fatalf("RegisterPinned failed: %v", err)
	}
	if err := mem.CopyFromAsync(s, unsafe.Pointer(&host[0]), 32, 0); err != nil {
		t.Errorf("Async copy on pinned buffer failed: %v", err)
	}

	dev.Finish()
	if err := dev.UnregisterPinned(unsafe.Pointer(&host[0])); err != nil {
		t.Errorf("UnregisterPinned failed: %v", err)
	}
}

func TestMemory_AsyncCopyRangeChecked(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	host := make([]int32, 8)
	if err := dev.RegisterPinned(unsafe.Pointer(&host[0]), 32); err != nil {
		t.Fatalf("RegisterPinned failed: %v", err)
	}

	mem, err := dev.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	defer mem.Free()

	s := dev.CreateStream()

	// Past the end of the allocation
	err = mem.CopyFromAsync(s, unsafe.Pointer(&host[0]), 32, 8)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid for out-of-range copy, got %v", err)
	}

	// Zero bytes is a no-op, not an error
	if err := mem.CopyFromAsync(s, unsafe.Pointer(&host[0]), 0, 0); err != nil {
		t.Errorf("Zero-byte copy should be a no-op, got %v", err)
	}

	dev.Finish()
	if err := dev.UnregisterPinned(unsafe.Pointer(&host[0])); err != nil {
		t.Errorf("UnregisterPinned failed: %v", err)
	}
}

// Program order within a stream: a host-to-device copy followed by a
// device-to-host copy on the same stream must observe the first copy's data.
func TestStream_ProgramOrder(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	src := []int32{10, 20, 30, 40}
	dst := make([]int32, 4)
	bytes := int64(16)

	for _, buf := range [][]int32{src, dst} {
		if err := dev.RegisterPinned(unsafe.Pointer(&buf[0]), bytes); err != nil {
			t.Fatalf("RegisterPinned failed: %v", err)
		}
	}

	mem, err := dev.Malloc(bytes)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	defer mem.Free()

	s := dev.CreateStream()
	if err := mem.CopyFromAsync(s, unsafe.Pointer(&src[0]), bytes, 0); err != nil {
		t.Fatalf("CopyFromAsync failed: %v", err)
	}
	if err := mem.CopyToAsync(s, unsafe.Pointer(&dst[0]), bytes, 0); err != nil {
		t.Fatalf("CopyToAsync failed: %v", err)
	}
	s.Synchronize()

	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("Program order violated at %d: got %d, want %d", i, dst[i], src[i])
		}
	}

	for _, buf := range [][]int32{src, dst} {
		if err := dev.UnregisterPinned(unsafe.Pointer(&buf[0])); err != nil {
			t.Errorf("UnregisterPinned failed: %v", err)
		}
	}
}

func TestPinned_RegistrationRules(t *testing.T) {
	dev := New(Config{MaxPinnedBytes: 64})
	defer dev.Free()

	host := make([]int32, 8)
	ptr := unsafe.Pointer(&host[0])

	t.Run("OverlapRejected", func(t *testing.T) {
		if err := dev.RegisterPinned(ptr, 32); err != nil {
			t.Fatalf("RegisterPinned failed: %v", err)
		}
		if err := dev.RegisterPinned(unsafe.Pointer(&host[2]), 8); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid for overlapping registration, got %v", err)
		}
		if err := dev.UnregisterPinned(ptr); err != nil {
			t.Fatalf("UnregisterPinned failed: %v", err)
		}
	})

	t.Run("ExactlyOncePairing", func(t *testing.T) {
		if err := dev.RegisterPinned(ptr, 32); err != nil {
			t.Fatalf("RegisterPinned failed: %v", err)
		}
		if err := dev.UnregisterPinned(ptr); err != nil {
			t.Fatalf("UnregisterPinned failed: %v", err)
		}
		if err := dev.UnregisterPinned(ptr); !errors.Is(err, ErrNotPinned) {
			t.Errorf("Expected ErrNotPinned on second unregister, got %v", err)
		}
	})

	t.Run("BudgetExhaustion", func(t *testing.T) {
		big := make([]int32, 32)
		err := dev.RegisterPinned(unsafe.Pointer(&big[0]), int64(len(big)*4))
		if !errors.Is(err, ErrPinnedLimit) {
			t.Errorf("Expected ErrPinnedLimit, got %v", err)
		}
	})
}

// Unregistering while a queued transfer is still in flight is detected and
// reported rather than silently corrupting.
func TestPinned_UnregisterInFlight(t *testing.T) {
	dev := New(Config{})
	defer dev.Free()

	host := make([]int32, 8)
	ptr := unsafe.Pointer(&host[0])
	if err := dev.RegisterPinned(ptr, 32); err != nil {
		t.Fatalf("RegisterPinned failed: %v", err)
	}

	mem, err := dev.Malloc(32)
	if err != nil {
		t.Fatalf("Malloc failed: %v", err)
	}
	defer mem.Free()

	s := dev.CreateStream()

	// Hold the stream on a gate kernel so the copy behind it stays queued.
	gate := make(chan struct{})
	err = dev.LaunchAsync(s, func(tid ThreadID, args ...any) {
		<-gate
	}, Dim1(1), Dim1(1))
	if err != nil {
		t.Fatalf("LaunchAsync failed: %v", err)
	}
	if err := mem.CopyFromAsync(s, ptr, 32, 0); err != nil {
		t.Fatalf("CopyFromAsync failed: %v", err)
	}

	if err := dev.UnregisterPinned(ptr); !errors.Is(err, ErrInFlight) {
		t.Errorf("Expected ErrInFlight while copy is queued, got %v", err)
	}

	close(gate)
	dev.Finish()

	if err := dev.UnregisterPinned(ptr); err != nil {
		t.Errorf("UnregisterPinned after drain failed: %v", err)
	}
}
