package device

import (
	"sync"
	"time"
)

// Tag is a device-visible marker. A tag recorded after a set of enqueues
// completes only once every prior operation on every stream has executed,
// which makes it both the end-of-pipeline barrier and the timing probe.
type Tag struct {
	done chan struct{}
	at   time.Time
}

// Tag records a marker across all current streams. The returned tag is done
// when every stream has reached it; its timestamp is taken at that moment.
// Recording is non-blocking.
func (d *Device) Tag() *Tag {
	t := &Tag{done: make(chan struct{})}
	streams := d.snapshotStreams()

	var reached sync.WaitGroup
	reached.Add(len(streams))
	for _, s := range streams {
		s.enqueue(reached.Done)
	}
	go func() {
		reached.Wait()
		t.at = time.Now()
		close(t.done)
	}()
	return t
}

// Wait blocks until the device has reached the tag.
func (t *Tag) Wait() { <-t.done }

// Done reports whether the device has reached the tag, without blocking.
func (t *Tag) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// TimeBetween waits for both tags and returns the device-measured duration
// between them in fractional milliseconds.
func (d *Device) TimeBetween(start, stop *Tag) float64 {
	start.Wait()
	stop.Wait()
	return float64(stop.at.Sub(start.at)) / float64(time.Millisecond)
}
