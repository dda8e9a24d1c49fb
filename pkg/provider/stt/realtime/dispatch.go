package realtime

import (
	"sync"

	"github.com/MrWong99/livescribe/pkg/provider/stt"
)

// eventBuffer is the capacity of each attempt's outbound channel.
const eventBuffer = 32

// stream delivers one connection attempt's events in order on a single
// goroutine, so producers never block on a slow consumer.
type stream struct {
	mu      sync.Mutex
	queue   []stt.Event
	closing bool

	wake chan struct{}
	out  chan stt.Event
}

func newStream() *stream {
	s := &stream{
		wake: make(chan struct{}, 1),
		out:  make(chan stt.Event, eventBuffer),
	}
	go s.run()
	return s
}

// push enqueues e. It never blocks.
func (s *stream) push(e stt.Event) {
	s.mu.Lock()
	if !s.closing {
		s.queue = append(s.queue, e)
	}
	s.mu.Unlock()
	s.notify()
}

// finish closes the channel once every queued event has been delivered.
func (s *stream) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.notify()
}

func (s *stream) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *stream) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		batch, closing := s.queue, s.closing
		s.queue = nil
		s.mu.Unlock()

		for _, e := range batch {
			s.out <- e
		}
		if len(batch) > 0 {
			continue
		}
		if closing {
			return
		}
		<-s.wake
	}
}
