// scanflow/source/replay/driver.go
package replay

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"scanflow/push"
	"scanflow/source"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

/* ────────── public YAML config ────────── */
type Config struct {
	Count          int           `koanf:"count"`           // records to generate
	BatchSize      int           `koanf:"batch_size"`      // records per OnNext
	Payload        string        `koanf:"payload"`         // value template
	Delay          time.Duration `koanf:"delay"`           // pause between batches
	HeartbeatEvery int           `koanf:"heartbeat_every"` // probe every N batches (0 = off)
}

// LoadConfig reads a replay YAML; a missing file yields defaults.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.Count == 0 {
		cfg.Count = 100
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Payload == "" {
		cfg.Payload = "replay"
	}
	return cfg, nil
}

/* ────────── driver ────────── */

// Driver replays a fixed record set as a push-style scan. Useful for demos
// and for exercising the pause protocol without a broker.
type Driver struct {
	cfg     Config
	records []*source.Record
}

// New builds a driver replaying exactly the given records, one batch of
// batchSize at a time.
func New(records []*source.Record, batchSize int) *Driver {
	return &Driver{
		cfg:     Config{BatchSize: batchSize},
		records: records,
	}
}

func (d *Driver) Configure(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("replay-source: expected Config, got %T", raw)
	}
	d.cfg = cfg
	if d.records == nil {
		d.records = generate(cfg)
	}
	return nil
}

func (d *Driver) Run(ctx context.Context, h push.Handler[*source.Record]) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctrl := &controller{cancel: cancel}

	batchNo := 0
	for i := 0; i < len(d.records); i += d.cfg.BatchSize {
		if runCtx.Err() != nil || ctrl.terminated() {
			break
		}
		batchNo++
		if d.cfg.HeartbeatEvery > 0 && batchNo%d.cfg.HeartbeatEvery == 0 {
			h.OnHeartbeat(ctrl)
			if ctrl.terminated() {
				break
			}
		}

		end := i + d.cfg.BatchSize
		if end > len(d.records) {
			end = len(d.records)
		}
		h.OnNext(d.records[i:end], ctrl)
		if err := ctrl.gate(runCtx); err != nil {
			break
		}
		if ctrl.terminated() {
			break
		}
		if d.cfg.Delay > 0 {
			select {
			case <-time.After(d.cfg.Delay):
			case <-runCtx.Done():
			}
		}
	}
	h.OnComplete()
	return nil
}

func (d *Driver) Close() error { return nil }

func generate(cfg Config) []*source.Record {
	recs := make([]*source.Record, cfg.Count)
	now := time.Now()
	for i := range recs {
		recs[i] = &source.Record{
			Key:    []byte(fmt.Sprintf("k-%06d", i)),
			Value:  []byte(fmt.Sprintf("%s-%06d", cfg.Payload, i)),
			Ts:     now,
			Origin: fmt.Sprintf("replay@%d", i),
		}
	}
	return recs
}

/* ────────── controller ────────── */

type controller struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	paused chan struct{}
	term   bool
}

func (c *controller) Suspend() push.Resumer {
	c.mu.Lock()
	ch := make(chan struct{})
	c.paused = ch
	c.mu.Unlock()
	return &resumer{ctrl: c, ch: ch}
}

func (c *controller) Terminate() {
	c.mu.Lock()
	c.term = true
	c.mu.Unlock()
	c.cancel()
}

func (c *controller) terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

func (c *controller) gate(ctx context.Context) error {
	c.mu.Lock()
	ch := c.paused
	c.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		c.mu.Lock()
		c.paused = nil
		c.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type resumer struct {
	ctrl *controller
	ch   chan struct{}
	once sync.Once
}

func (r *resumer) Resume() {
	r.once.Do(func() { close(r.ch) })
}

/* ────────── auto-register ───────── */
func init() {
	source.Register("replay", func() source.Driver { return &Driver{} })
}
