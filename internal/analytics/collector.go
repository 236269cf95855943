package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/resilience"
)

// Publisher writes event batches to the event bus. *kafka.Producer
// satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Recorder consumes events in process. *Aggregator satisfies it.
type Recorder interface {
	RecordResolution(ResolutionEvent)
	RecordSearch(SearchEvent)
}

// CollectorConfig tunes buffering and batching.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	return c
}

// Collector buffers events and publishes them in batches from a single
// goroutine. Track never blocks: when the buffer is full the event is
// dropped and counted. Publishing goes through a circuit breaker so an
// unreachable broker costs one failed write per reset interval instead of
// one per batch.
type Collector struct {
	publisher Publisher
	local     Recorder
	cfg       CollectorConfig
	breaker   *resilience.CircuitBreaker
	eventCh   chan kafka.Event
	logger    *slog.Logger
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
	published atomic.Int64
}

// NewCollector creates a Collector. publisher may be nil, in which case
// events only reach local. local may be nil.
func NewCollector(publisher Publisher, local Recorder, cfg CollectorConfig) *Collector {
	cfg = cfg.withDefaults()
	c := &Collector{
		publisher: publisher,
		local:     local,
		cfg:       cfg,
		eventCh:   make(chan kafka.Event, cfg.BufferSize),
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
	c.breaker = resilience.NewCircuitBreaker("analytics-publisher", resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("publisher circuit changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, then flushes what is buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", c.cfg.BufferSize,
		"batch_size", c.cfg.BatchSize,
		"flush_interval", c.cfg.FlushInterval,
	)
}

// TrackResolution records ev locally and queues it for publishing.
func (c *Collector) TrackResolution(ev ResolutionEvent) {
	ev.Type = EventResolve
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if c.local != nil {
		c.local.RecordResolution(ev)
	}
	c.enqueue(kafka.Event{Key: ev.key(), Type: string(ev.Type), Value: ev})
}

// TrackSearch records ev locally and queues it for publishing.
func (c *Collector) TrackSearch(ev SearchEvent) {
	ev.Type = EventSearch
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if c.local != nil {
		c.local.RecordSearch(ev)
	}
	c.enqueue(kafka.Event{Key: ev.key(), Type: string(ev.Type), Value: ev})
}

// Close stops accepting events, flushes the buffer and waits for the
// publish loop to exit. It must follow Start and is safe to call more than
// once.
func (c *Collector) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
}

// Stats returns how many events were published and dropped.
func (c *Collector) Stats() (published, dropped int64) {
	return c.published.Load(), c.dropped.Load()
}

func (c *Collector) enqueue(ev kafka.Event) {
	if c.publisher == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.eventCh <- ev:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.cfg.BatchSize)
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= c.cfg.BatchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(ctx, batch)
			batch = batch[:0]
		case <-ctx.Done():
			batch = c.drain(batch)
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case ev, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 || c.publisher == nil {
		return
	}
	err := c.breaker.Execute(func() error {
		return c.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("failed to publish analytics batch",
			"events", len(batch),
			"error", err,
		)
		return
	}
	c.published.Add(int64(len(batch)))
	c.logger.Debug("analytics batch published", "events", len(batch))
}
