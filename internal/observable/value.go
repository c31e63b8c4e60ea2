// Package observable provides the two reactive primitives the rest of the
// module is built on: Value, a current value with change listeners, and
// Stream, the handle of a live query that re-delivers its result whenever
// the underlying data changes.
package observable

import "sync"

// Value holds a current value and notifies listeners on every Set.
type Value[T any] struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	current   T
	listeners map[uint64]func(T)
	order     []uint64
	nextID    uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:   initial,
		listeners: make(map[uint64]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set stores x and calls every listener synchronously, in registration
// order. Concurrent Sets deliver in the order they stored.
func (v *Value[T]) Set(x T) {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()
	v.current = x
	fns := v.snapshot()
	v.mu.Unlock()

	for _, fn := range fns {
		fn(x)
	}
}

// Subscribe registers fn and immediately calls it with the current value.
// The returned function removes the listener.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.notifyMu.Lock()
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.order = append(v.order, id)
	current := v.current
	v.mu.Unlock()
	fn(current)
	v.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.listeners, id)
			for i, o := range v.order {
				if o == id {
					v.order = append(v.order[:i], v.order[i+1:]...)
					break
				}
			}
		})
	}
}

// snapshot must be called with v.mu held.
func (v *Value[T]) snapshot() []func(T) {
	fns := make([]func(T), 0, len(v.order))
	for _, id := range v.order {
		fns = append(fns, v.listeners[id])
	}
	return fns
}
