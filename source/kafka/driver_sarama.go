package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scanflow/push"
	"scanflow/source"

	"github.com/IBM/sarama"
)

// SaramaDriver consumes a Kafka consumer group and presents it as a
// push-style scan: records from all claimed partitions funnel into a single
// dispatch goroutine, which is the only one invoking handler callbacks. A
// Suspend pauses fetching (ConsumerGroup.PauseAll) and parks the dispatcher
// until the matching Resume.
type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup

	records chan *source.Record
	cancel  context.CancelFunc
}

func (d *SaramaDriver) Configure(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("kafka-source: expected Config, got %T", raw)
	}
	d.cfg = cfg
	d.records = make(chan *source.Record, cfg.FetchBuffer)

	ver, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	if cfg.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if cfg.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = cfg.SASLUser, cfg.SASLPass
	}
	switch cfg.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(cfg.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(cfg.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) Run(ctx context.Context, h push.Handler[*source.Record]) error {
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	consumeErr := make(chan error, 1)
	go func() {
		defer close(d.records)
		gh := &groupHandler{driver: d}
		for {
			if err := d.group.Consume(runCtx, d.cfg.Topics, gh); err != nil {
				consumeErr <- err
				return
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	return d.dispatch(runCtx, h, consumeErr)
}

func (d *SaramaDriver) Close() error {
	_ = d.group.Close()
	_ = d.cl.Close()
	return nil
}

// dispatch serializes all handler callbacks onto one goroutine and enforces
// the pause protocol between batches.
func (d *SaramaDriver) dispatch(ctx context.Context, h push.Handler[*source.Record], consumeErr <-chan error) error {
	ctrl := &groupController{driver: d}
	hb := time.NewTicker(d.cfg.HeartbeatIv)
	defer hb.Stop()

	for {
		select {
		case err := <-consumeErr:
			h.OnError(err)
			return err

		case <-ctx.Done():
			h.OnComplete()
			return ctx.Err()

		case rec, ok := <-d.records:
			if !ok {
				// The consume loop may have exited with an error just
				// before closing the funnel.
				select {
				case err := <-consumeErr:
					h.OnError(err)
					return err
				default:
					h.OnComplete()
					return nil
				}
			}
			h.OnNext(d.fillBatch(rec), ctrl)
			if err := ctrl.gate(ctx); err != nil {
				h.OnComplete()
				return err
			}
			if ctrl.terminated() {
				h.OnComplete()
				return nil
			}

		case <-hb.C:
			h.OnHeartbeat(ctrl)
			if ctrl.terminated() {
				h.OnComplete()
				return nil
			}
		}
	}
}

// fillBatch greedily tops the batch up with whatever is already buffered,
// without blocking.
func (d *SaramaDriver) fillBatch(first *source.Record) []*source.Record {
	batch := append(make([]*source.Record, 0, d.cfg.BatchSize), first)
	for len(batch) < d.cfg.BatchSize {
		select {
		case rec, ok := <-d.records:
			if !ok {
				return batch
			}
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

/*──────── controller ───────*/

type groupController struct {
	driver *SaramaDriver

	mu     sync.Mutex
	paused chan struct{} // non-nil while suspended; closed by Resume
	term   bool
}

func (c *groupController) Suspend() push.Resumer {
	c.mu.Lock()
	ch := make(chan struct{})
	c.paused = ch
	c.mu.Unlock()

	c.driver.group.PauseAll()
	return &groupResumer{ctrl: c, ch: ch}
}

func (c *groupController) Terminate() {
	c.mu.Lock()
	c.term = true
	c.mu.Unlock()
	c.driver.cancel()
}

func (c *groupController) terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.term
}

// gate parks the dispatcher while a suspend is outstanding.
func (c *groupController) gate(ctx context.Context) error {
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

type groupResumer struct {
	ctrl *groupController
	ch   chan struct{}
	once sync.Once
}

func (r *groupResumer) Resume() {
	r.once.Do(func() {
		r.ctrl.driver.group.ResumeAll()
		close(r.ch)
	})
}

/*──────── claim handler ───────*/

type groupHandler struct {
	driver *SaramaDriver
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			rec := &source.Record{
				Key:     msg.Key,
				Value:   msg.Value,
				Headers: toHeaderMap(msg.Headers),
				Ts:      msg.Timestamp,
				Origin:  fmt.Sprintf("%s[%d]@%d", msg.Topic, msg.Partition, msg.Offset),
			}
			select {
			case h.driver.records <- rec:
				sess.MarkMessage(msg, "")
			case <-sess.Context().Done():
				return sess.Context().Err()
			}

		case <-sess.Context().Done():
			return sess.Context().Err()
		}
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
