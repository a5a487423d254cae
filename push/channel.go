package push

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by TrySend and SendContext once the channel has been
// closed by either side.
var ErrClosed = errors.New("push: send on closed channel")

// ErrFull is returned by TrySend when the buffer has no free slot.
var ErrFull = errors.New("push: buffer full")

// Channel is a bounded, ordered sink of items shared between one logical
// producer and one external reader. Either side may close it; the first
// close wins and its cause sticks. Items buffered at close time remain
// readable from Chan.
//
// Go channels panic on send-after-close, so the raw channel is only closed
// once no blocking sender is active; until then Done signals closure.
type Channel[T any] struct {
	ch   chan T
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	cause    error
	senders  int
	chClosed bool
	hooks    []func()
}

// NewChannel creates a Channel with the given buffer capacity.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// TrySend places v into the buffer without blocking. It returns ErrFull when
// the buffer is at capacity and ErrClosed when the channel has been closed.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.ch <- v:
		return nil
	default:
		return ErrFull
	}
}

// SendContext blocks until the buffer has room, the channel is closed, or
// ctx is canceled. It returns nil on delivery, ErrClosed on closure, or the
// context error on cancellation.
func (c *Channel[T]) SendContext(ctx context.Context, v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.senders++
	c.mu.Unlock()

	var err error
	select {
	case c.ch <- v:
	case <-c.done:
		err = ErrClosed
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	c.senders--
	c.maybeReleaseLocked()
	c.mu.Unlock()
	return err
}

// Close closes the channel without a cause. Safe to call from either side
// and safe to call more than once.
func (c *Channel[T]) Close() { c.CloseWithError(nil) }

// CloseWithError closes the channel recording cause. Only the first close
// takes effect; later calls (with any cause) are no-ops. Registered OnClose
// hooks run synchronously, outside the channel lock.
func (c *Channel[T]) CloseWithError(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cause = cause
	hooks := c.hooks
	c.hooks = nil
	close(c.done)
	c.maybeReleaseLocked()
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnClose registers fn to run when the channel closes, whichever side closes
// it. If the channel is already closed fn runs immediately.
func (c *Channel[T]) OnClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

// Chan returns the receive side. It is closed for ranging once the channel
// is closed and all in-flight sends have settled.
func (c *Channel[T]) Chan() <-chan T { return c.ch }

// Done is closed the moment CloseWithError takes effect, before in-flight
// senders have drained.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

// Err reports the close cause. Nil before close and after a clean close.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// must be called with c.mu held
func (c *Channel[T]) maybeReleaseLocked() {
	if c.closed && c.senders == 0 && !c.chClosed {
		c.chClosed = true
		close(c.ch)
	}
}
