package observable

import (
	"context"
	"sync"
)

// Stream is a live sequence of results with a single producer.
//
// The buffer holds at most one value: when the producer emits faster than
// the consumer reads, older unread values are replaced, so a reader always
// receives the freshest result.
type Stream[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan T

	mu       sync.Mutex
	err      error
	finished bool
}

// NewStream creates a stream bound to ctx. The returned context is done
// once the consumer closes the stream or ctx ends; producers should stop
// when it is done.
func NewStream[T any](ctx context.Context) (*Stream[T], context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		ctx:    ctx,
		cancel: cancel,
		ch:     make(chan T, 1),
	}
	return s, ctx
}

// Emit publishes v, replacing any value the consumer has not read yet.
// It reports false when the stream is closed or finished. Emit must only be
// called from the producing goroutine.
func (s *Stream[T]) Emit(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.ctx.Err() != nil {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	return true
}

// Finish ends the stream. A non-nil err is reported by Err. Values already
// buffered can still be read.
func (s *Stream[T]) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.ch)
	s.cancel()
}

// Updates returns the channel of results. It is closed when the producer
// finishes.
func (s *Stream[T]) Updates() <-chan T {
	return s.ch
}

// Done is closed when the stream is closed by either side.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Err returns the failure that ended the stream, if any.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the stream from the consumer side.
func (s *Stream[T]) Close() {
	s.cancel()
}
