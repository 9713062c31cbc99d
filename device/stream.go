package device

import "sync"

// queueDepth bounds the number of enqueued-but-unexecuted operations per
// stream. Enqueue calls are non-blocking until this backlog is reached.
const queueDepth = 1024

// Stream is an independent, strictly-ordered command queue. Operations
// enqueued on the same stream execute in program order; operations on
// different streams have no ordering relationship unless a Tag is used.
type Stream struct {
	id    int
	tasks chan func()
	wg    sync.WaitGroup
	done  chan struct{}
}

// CreateStream adds a new command queue to the device and starts its worker.
func (d *Device) CreateStream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.freed {
		panic("device: CreateStream on freed device")
	}
	d.nextID++
	s := &Stream{
		id:    d.nextID,
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	d.streams = append(d.streams, s)
	go s.worker()
	return s
}

// DestroyStream drains the stream and stops its worker. The stream must not
// receive further enqueues.
func (d *Device) DestroyStream(s *Stream) {
	d.mu.Lock()
	for i, cur := range d.streams {
		if cur == s {
			d.streams = append(d.streams[:i], d.streams[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	s.shutdown()
}

// ID returns the stream's device-unique identifier.
func (s *Stream) ID() int { return s.id }

// Synchronize blocks the host until every operation enqueued on this stream
// has executed.
func (s *Stream) Synchronize() { s.wg.Wait() }

func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

func (s *Stream) enqueue(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}

func (s *Stream) shutdown() {
	s.wg.Wait()
	close(s.tasks)
	<-s.done
}
