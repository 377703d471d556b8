// Package pubsub provides a current-value publisher: a concurrency-safe
// holder for the latest value that notifies subscribers on every update and
// immediately replays the latest value to new subscribers.
package pubsub

import "sync"

// Value holds the current value of type T and broadcasts updates.
//
// Every subscriber sees updates in publish order, and Set never blocks on a
// slow subscriber: each subscription drains its own FIFO on a dedicated
// goroutine.
type Value[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]*subscription[T]
	next  int
}

type subscription[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []T
	closed  bool
	done    chan struct{}
	out     chan T
}

// NewValue creates a Value seeded with initial. The seed is replayed to
// every subscriber, so streams are never silent.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[int]*subscription[T]),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set stores val as the current value and enqueues it to all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = val
	for _, s := range v.subs {
		s.enqueue(val)
	}
}

// Subscribe registers a new subscriber. The returned channel first yields
// the current value, then every subsequent Set. The cancel func unregisters
// the subscriber and closes the channel.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := &subscription[T]{out: make(chan T), done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)

	id := v.next
	v.next++
	v.subs[id] = s

	go s.drain()
	s.enqueue(v.value)

	cancel := func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
		s.close()
	}
	return s.out, cancel
}

func (s *subscription[T]) enqueue(val T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, val)
	s.cond.Signal()
}

func (s *subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	s.cond.Signal()
}

// drain forwards queued values to the out channel in order.
func (s *subscription[T]) drain() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		val := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- val:
		case <-s.done:
			return
		}
	}
}
