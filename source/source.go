package source

import (
	"context"
	"fmt"
	"time"

	"scanflow/push"
)

// Record is one unit of source output. The engine forwards it opaquely;
// sinks decide what the bytes mean.
type Record struct {
	Key     []byte
	Value   []byte
	Headers map[string][]byte
	Ts      time.Time
	Origin  string // human-readable position, e.g. "topic[3]@42"
}

// Driver is the common behaviour every source exposes. Run feeds the
// handler's callbacks from a single goroutine until the scan ends; it
// returns once OnComplete or OnError has been delivered.
type Driver interface {
	Configure(any) error // driver-specific YAML => struct
	Run(context.Context, push.Handler[*Record]) error
	Close() error // idempotent
}

/*──────── registry ───────*/

type factory = func() Driver

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewDriver(name string) (Driver, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown source driver %q", name)
}
