// Package hub implements a bounded, lossy, multi-subscriber broadcast stream.
//
// Every subscriber owns a buffer of fixed capacity. Publish never blocks: when a
// subscriber's buffer is full the value is dropped for that subscriber only and
// its next Recv reports a *LagError with the number of values it missed. The gap
// is accepted policy, not a failure of the stream.
//
// Values published by one goroutine are observed by every subscriber in publish
// order. Concurrent publishers are serialized at the publish point.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"liveshare/metrics"
)

var ErrClosed = errors.New("broadcast stream closed")

// LagError reports values dropped because the subscriber fell behind.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d values skipped", e.Missed)
}

type Hub[T any] struct {
	name     string
	capacity int
	mu       sync.Mutex
	subs     map[uint64]*Subscription[T]
	nextID   uint64
	closed   bool
}

func New[T any](name string, capacity int) *Hub[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Hub[T]{
		name:     name,
		capacity: capacity,
		subs:     make(map[uint64]*Subscription[T]),
	}
}

func (h *Hub[T]) Subscribe() (*Subscription[T], error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	s := &Subscription[T]{
		id:  h.nextID,
		hub: h,
		ch:  make(chan T, h.capacity),
	}
	h.subs[s.id] = s
	return s, nil
}

// Publish hands v to every current subscriber and returns how many received it.
// Zero subscribers is not an error.
func (h *Hub[T]) Publish(v T) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	delivered := 0
	for _, s := range h.subs {
		select {
		case s.ch <- v:
			delivered++
		default:
			s.lagged.Add(1)
			metrics.StreamLagged.WithLabelValues(h.name).Inc()
		}
	}
	return delivered, nil
}

// Close ends the stream. Buffered values are still delivered; after that every
// Recv returns ErrClosed.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

func (h *Hub[T]) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub[T]) Stats() (subscribers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub[T]) unsubscribe(s *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
}

type Subscription[T any] struct {
	id     uint64
	hub    *Hub[T]
	ch     chan T
	lagged atomic.Uint64
}

// Recv returns the next value. A pending gap is reported first, ahead of any
// values still buffered from before the drop.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	if n := s.lagged.Swap(0); n > 0 {
		return zero, &LagError{Missed: n}
	}
	select {
	case v, ok := <-s.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close detaches the subscription from its stream. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.hub.unsubscribe(s)
}
