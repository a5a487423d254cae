package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scanflow/internal/logging"
	"scanflow/push"
	"scanflow/sink"
	"scanflow/source"
)

const DefaultCapacity = 1024

// Runner owns one pipeline: a source driver pushed through a push.Adapter
// into a bounded channel, drained by a consumer loop into the sinks.
type Runner struct {
	driver source.Driver
	sinks  []sink.Adapter

	ch   *push.Channel[*source.Record]
	done chan struct{}

	closeOnce sync.Once
}

func NewRunner(capacity int) *Runner {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Runner{
		ch:   push.NewChannel[*source.Record](capacity),
		done: make(chan struct{}),
	}
}

func (r *Runner) AddSink(s sink.Adapter)    { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(d source.Driver) { r.driver = d }

// Channel exposes the bridge channel, mainly for tests.
func (r *Runner) Channel() *push.Channel[*source.Record] { return r.ch }

// Start launches the source scan and the consumer loop.
func (r *Runner) Start(ctx context.Context) error {
	if r.driver == nil {
		return errors.New("runner: no source configured")
	}
	adapter := push.NewAdapter(ctx, r.ch)
	go func() {
		if err := r.driver.Run(ctx, adapter); err != nil && !errors.Is(err, context.Canceled) {
			logging.L().Error("source run ended", "err", err)
		}
	}()
	go r.consume()
	return nil
}

/*──────── consumer loop ───────*/

// consume is the external reader of the bridge channel: it drains records
// into the sinks at whatever pace the sinks allow. A sink failure closes the
// channel with a cause, which reaches the source as a terminate request on
// its next callback.
func (r *Runner) consume() {
	defer close(r.done)
	for rec := range r.ch.Chan() {
		for _, s := range r.sinks {
			if err := s.Push(rec); err != nil {
				r.ch.CloseWithError(fmt.Errorf("sink push: %w", err))
				return
			}
		}
	}
	if err := r.ch.Err(); err != nil {
		logging.L().Error("pipeline ended", "err", err)
	}
}

// Done is closed once the consumer loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Close shuts the pipeline down: closing the channel releases a paused
// source, and the drivers get their teardown.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		r.ch.Close()
		if r.driver != nil {
			_ = r.driver.Close()
		}
		for _, s := range r.sinks {
			_ = s.Close()
		}
	})
	return nil
}
