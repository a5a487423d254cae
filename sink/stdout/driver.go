// scanflow/sink/stdout/driver.go
package stdout

import (
	"fmt"
	"sync/atomic"
	"time"

	"scanflow/sink"
	"scanflow/source"
)

/* ────────── public YAML config ────────── */
type Config struct {
	DelayMS      int  `yaml:"delay_ms"`      // artificial per-record delay
	PrintCounter bool `yaml:"print_counter"` // prepend seq#
	PrintValue   bool `yaml:"print_value"`
	ValueMax     int  `yaml:"value_max_bytes"`
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
}

var seq uint64

/* ────────── sink.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-sink: expected Config, got %T", raw)
	}
	d.cfg = c
	return nil
}

func (d *driver) Push(rec *source.Record) error {
	if d.cfg.DelayMS > 0 {
		time.Sleep(time.Duration(d.cfg.DelayMS) * time.Millisecond)
	}

	line := rec.Origin
	if d.cfg.PrintValue {
		v := rec.Value
		if d.cfg.ValueMax > 0 && len(v) > d.cfg.ValueMax {
			v = v[:d.cfg.ValueMax]
		}
		line = fmt.Sprintf("%s %q", line, v)
	}
	if d.cfg.PrintCounter {
		fmt.Printf("[sink %06d] %s\n", atomic.AddUint64(&seq, 1), line)
	} else {
		fmt.Printf("[sink] %s\n", line)
	}
	return nil
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return &driver{} })
}
