// Package push bridges callback-driven, flow-controlled sources into a
// bounded channel that a downstream reader drains at its own pace. A source
// runtime invokes Handler callbacks with batches of items; Adapter forwards
// them into a Channel, pausing the source via its Controller whenever the
// buffer fills up and resuming it once the backlog has been sent.
package push
