package push

// Resumer un-pauses a previously suspended Controller. It is one-shot:
// it must be invoked exactly once, after which it is spent.
type Resumer interface {
	Resume()
}

// Controller is the flow-control capability a source lends to the handler
// for the duration of a single OnNext or OnHeartbeat call. It must not be
// retained beyond that call.
type Controller interface {
	// Suspend pauses batch delivery and returns the capability that
	// un-pauses it.
	Suspend() Resumer
	// Terminate stops the underlying production permanently. The source
	// still reports OnComplete or OnError afterwards.
	Terminate()
}

// Handler receives the source-side callbacks. Implementations may assume a
// source never runs two callbacks for the same scan concurrently.
type Handler[T any] interface {
	// OnNext delivers a batch of items. A zero-length batch is a legal no-op.
	OnNext(items []T, ctrl Controller)
	// OnHeartbeat is a liveness probe carrying no items, giving the handler
	// a chance to terminate an unwanted scan.
	OnHeartbeat(ctrl Controller)
	// OnComplete signals the source exhausted normally. Terminal.
	OnComplete()
	// OnError signals the source failed. Terminal.
	OnError(err error)
}
