// Package live provides a latest-value publish/subscribe subject used to push
// state snapshots from the store to every interested reader.
package live

import (
	"context"
	"sync"
)

// Subject holds the latest published value of T and fans it out to
// subscribers. New subscribers receive the current value immediately, then
// every later value in publish order.
type Subject[T any] struct {
	mu      sync.Mutex
	value   T
	seq     uint64
	nextID  int
	subs    map[int]func(T)
	deliver sync.Mutex // serializes callback delivery across publishers
}

// NewSubject returns a subject seeded with initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial, subs: make(map[int]func(T))}
}

// Publish stores v as the current value and calls every subscriber with it.
// Callbacks run on the publishing goroutine and must not call Publish.
func (s *Subject[T]) Publish(v T) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	s.value = v
	s.seq++
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Current returns the latest value and the number of publishes so far.
func (s *Subject[T]) Current() (T, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.seq
}

// Subscribe registers fn, replays the current value to it and returns a
// function that removes the subscription.
func (s *Subject[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.deliver.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	v := s.value
	s.mu.Unlock()
	fn(v)
	s.deliver.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Watch returns a channel carrying the current value and then later ones.
// Values a slow reader has not picked up yet are replaced by newer ones, so
// the reader always ends on the latest value. The channel is closed when
// ctx is done.
func (s *Subject[T]) Watch(ctx context.Context) <-chan T {
	out := make(chan T)
	notify := make(chan struct{}, 1)

	var (
		mu      sync.Mutex
		pending T
	)
	unsubscribe := s.Subscribe(func(v T) {
		mu.Lock()
		pending = v
		mu.Unlock()
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
			mu.Lock()
			v := pending
			mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out
}
