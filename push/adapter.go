package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"scanflow/internal/logging"
	"scanflow/internal/telemetry"
)

type phase int

const (
	phaseIdle phase = iota
	phaseDraining
	phaseTerminating
	phaseClosed
)

// Adapter converts the push-based Handler callbacks of a source into sends
// on a bounded Channel. Batches are forwarded synchronously while the buffer
// has room; when it fills up the adapter suspends the source, hands the
// unsent tail to a single drain goroutine, and resumes the source once the
// tail has been sent.
//
// The adapter never blocks inside OnNext: the source's callback loop must
// stay responsive, so blocking sends happen only in the drain goroutine.
// Consumer-side closure and cancellation of the owning context are recorded
// as flags and acted on at the next callback, the only point where the
// underlying scan can be torn down.
type Adapter[T any] struct {
	ch     *Channel[T]
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mu      sync.Mutex
	phase   phase
	resumer Resumer

	// Termination flags. Each flips false->true at most once and is never
	// reset; shouldStopLocked ORs them together.
	consumerClosed bool
	cancelled      bool
	stopped        bool
}

// NewAdapter builds an adapter writing into ch. The drain goroutine runs in
// a scope derived from parent; cancelling parent stops the scan at the next
// callback. The adapter registers a close hook on ch so that a reader
// closing the channel tears the scan down the same way.
func NewAdapter[T any](parent context.Context, ch *Channel[T]) *Adapter[T] {
	ctx, cancel := context.WithCancel(parent)
	a := &Adapter[T]{
		ch:     ch,
		ctx:    ctx,
		cancel: cancel,
		log:    logging.L().With("adapter", uuid.NewString()),
	}
	ch.OnClose(a.onConsumerClose)
	return a
}

// OnNext forwards a batch. Fast path: every item fits the buffer via
// non-blocking offers and the source keeps running. Slow path: the source is
// suspended and a drain goroutine sends the remainder, straggler first.
func (a *Adapter[T]) OnNext(items []T, ctrl Controller) {
	a.mu.Lock()
	if a.shouldStopLocked() {
		a.phase = phaseTerminating
		a.mu.Unlock()
		ctrl.Terminate()
		return
	}

	sent := 0
	var offerErr error
	for sent < len(items) {
		if offerErr = a.ch.TrySend(items[sent]); offerErr != nil {
			break
		}
		sent++
	}
	if sent > 0 {
		telemetry.ItemsDelivered.Add(float64(sent))
	}
	if sent == len(items) {
		a.mu.Unlock()
		return
	}
	if errors.Is(offerErr, ErrClosed) {
		a.consumerClosed = true
		a.phase = phaseTerminating
		a.mu.Unlock()
		ctrl.Terminate()
		return
	}

	// Buffer full with at least one item unsent. items[sent] is the
	// straggler; it goes first so delivery order is preserved.
	res := ctrl.Suspend()
	a.resumer = res
	a.phase = phaseDraining
	telemetry.Suspends.Inc()
	go a.drain(items[sent:], res)
	a.mu.Unlock()
}

// OnHeartbeat carries no items; its only job is giving the adapter a chance
// to stop a scan whose consumer has gone away.
func (a *Adapter[T]) OnHeartbeat(ctrl Controller) {
	a.mu.Lock()
	stop := a.shouldStopLocked()
	if stop {
		a.phase = phaseTerminating
	}
	a.mu.Unlock()
	if stop {
		ctrl.Terminate()
	}
}

// OnComplete closes the channel cleanly. Terminal.
func (a *Adapter[T]) OnComplete() {
	a.finish(nil)
}

// OnError closes the channel with a cause derived from err. Terminal.
func (a *Adapter[T]) OnError(err error) {
	a.finish(fmt.Errorf("push: source failed: %w", err))
}

func (a *Adapter[T]) finish(cause error) {
	a.mu.Lock()
	if a.phase == phaseClosed {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	a.phase = phaseClosed
	a.mu.Unlock()

	a.cancel()
	// Outside a.mu: closing runs the close hooks, which take a.mu.
	a.ch.CloseWithError(cause)
	telemetry.Terminations.Inc()
}

// drain sends the unsent tail of a batch with blocking sends. Whatever way
// it exits, finishDrain resumes the source if nobody else already has.
func (a *Adapter[T]) drain(tail []T, res Resumer) {
	defer a.finishDrain(res)

	for _, item := range tail {
		err := a.ch.SendContext(a.ctx, item)
		if err == nil {
			telemetry.ItemsDelivered.Inc()
			continue
		}
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			a.mu.Lock()
			a.cancelled = true
			a.mu.Unlock()
		case errors.Is(err, ErrClosed):
			a.mu.Lock()
			a.consumerClosed = true
			a.mu.Unlock()
		default:
			// The channel's close state stays authoritative toward the
			// source; an odd send failure is surfaced but not propagated.
			telemetry.DrainFailures.Inc()
			a.log.Warn("drain send failed", "err", err)
		}
		return
	}
}

func (a *Adapter[T]) finishDrain(res Resumer) {
	a.mu.Lock()
	claimed := a.resumer != nil
	a.resumer = nil
	if a.phase == phaseDraining {
		if a.shouldStopLocked() {
			a.phase = phaseTerminating
		} else {
			a.phase = phaseIdle
		}
	}
	a.mu.Unlock()

	if claimed {
		res.Resume()
		telemetry.Resumes.Inc()
	}
}

// onConsumerClose runs when the channel closes. For a reader-initiated close
// it releases a paused source immediately so the next callback can observe
// termination and stop the scan; waiting for buffer space would park the
// source forever since nobody is reading anymore.
func (a *Adapter[T]) onConsumerClose() {
	a.mu.Lock()
	if !a.stopped {
		a.consumerClosed = true
	}
	res := a.resumer
	a.resumer = nil
	a.mu.Unlock()

	if res != nil {
		res.Resume()
		telemetry.Resumes.Inc()
	}
	a.cancel()
}

// must be called with a.mu held
func (a *Adapter[T]) shouldStopLocked() bool {
	return a.consumerClosed || a.cancelled || a.stopped || a.ctx.Err() != nil
}
