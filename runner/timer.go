package runner

import (
	"fmt"

	"github.com/notargets/vecstream/device"
)

// Timer measures a pipeline's wall-clock span with device-side tags,
// decoupled from host clock jitter.
type Timer struct {
	dev     *device.Device
	start   *device.Tag
	stop    *device.Tag
	elapsed float64
	read    bool
}

// NewTimer creates an unstarted timer on the device.
func NewTimer(dev *device.Device) *Timer {
	return &Timer{dev: dev}
}

// Start records the start tag and blocks until the device reaches it, so
// any enqueue backlog before the measured region is excluded.
func (t *Timer) Start() {
	t.start = t.dev.Tag()
	t.start.Wait()
}

// Stop records the stop tag without blocking.
func (t *Timer) Stop() {
	t.stop = t.dev.Tag()
}

// ElapsedMs blocks until the stop tag is reached and returns the
// device-measured duration in fractional milliseconds. It fails if Start or
// Stop has not been called; repeated reads return the same value.
func (t *Timer) ElapsedMs() (float64, error) {
	if t.start == nil {
		return 0, fmt.Errorf("timer: elapsed read before Start")
	}
	if t.stop == nil {
		return 0, fmt.Errorf("timer: elapsed read before Stop")
	}
	if !t.read {
		t.elapsed = t.dev.TimeBetween(t.start, t.stop)
		t.read = true
	}
	return t.elapsed, nil
}
