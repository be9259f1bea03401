// Package sink records interaction events through an ordered chain of
// delivery tiers: message queue, then buffer store, then a local file.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default chain configuration constants.
const (
	defaultPublishTimeout = 5 * time.Second
)

// Stage labels used in logs and metrics.
const (
	stageQueue  = "queue"
	stageBuffer = "buffer"
	stageFile   = "file"
)

// Publisher is the primary delivery tier.
type Publisher interface {
	// Connected reports whether a publish is worth attempting.
	Connected(ctx context.Context) bool
	// Publish blocks until the broker acknowledges rec or ctx ends.
	Publish(ctx context.Context, rec model.Record) error
}

// Buffer is the secondary delivery tier. It receives the serialized record.
type Buffer interface {
	Append(ctx context.Context, payload []byte) error
}

// healthChecker is implemented by buffers that report their health.
type healthChecker interface {
	Healthy(ctx context.Context) bool
}

// Health reports reachability of the queue and buffer tiers.
type Health struct {
	Queue  bool
	Buffer bool
}

// FileAppender is the last tier. Append writes one line containing payload.
type FileAppender interface {
	Append(ctx context.Context, payload []byte) error
}

// Chain walks the delivery tiers in order until one accepts the event.
type Chain struct {
	queue          Publisher
	buffer         Buffer
	file           FileAppender
	publishTimeout time.Duration
	strict         bool
	logger         logger.Logger
}

// NewChain creates a chain over the given queue and file tiers. queue may be
// nil when no broker is configured.
func NewChain(queue Publisher, file FileAppender, opts ...Option) *Chain {
	c := &Chain{
		queue:          queue,
		file:           file,
		publishTimeout: defaultPublishTimeout,
		strict:         true,
		logger:         logger.Get().Named("sink"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Record delivers e through the first tier that accepts it. The returned
// error is non-nil only when the event was lost entirely.
func (c *Chain) Record(ctx context.Context, e model.Event) (Outcome, error) { //nolint:gocritic // hugeParam: Event is passed by value across layers
	start := time.Now()
	rec := model.NewRecord(e)

	outcome, err := c.record(ctx, rec)

	metrics.RecordSinkOutcome(outcome.String())
	metrics.RecordSinkLatency(outcome.String(), float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Error(ctx, "event lost",
			logger.Int64("ad_id", rec.AdID),
			logger.String("event_type", string(rec.EventType)),
			logger.Error(err),
		)
	}
	return outcome, err
}

func (c *Chain) record(ctx context.Context, rec model.Record) (Outcome, error) {
	err := c.publish(ctx, rec)
	if err == nil {
		return Queued, nil
	}
	c.stageFailed(ctx, stageQueue, err)

	payload, err := rec.Marshal()
	if err != nil {
		return Unavailable, fmt.Errorf("%w: %w", ErrEventLost, err)
	}

	if c.buffer != nil {
		err = c.buffer.Append(ctx, payload)
		if err == nil {
			return BufferedFallback, nil
		}
		c.stageFailed(ctx, stageBuffer, fmt.Errorf("%w: %w", ErrBufferAppendFailed, err))
	}

	// The local write must complete even if the caller has gone away.
	if err := c.file.Append(context.WithoutCancel(ctx), payload); err != nil {
		c.stageFailed(ctx, stageFile, err)
		return Unavailable, fmt.Errorf("%w: %w: %w", ErrEventLost, ErrFileWriteFailed, err)
	}

	if c.strict {
		return Unavailable, nil
	}
	return PersistedFallback, nil
}

// Health checks the queue and buffer tiers. Unconfigured tiers report false.
func (c *Chain) Health(ctx context.Context) Health {
	var h Health
	if c.queue != nil {
		h.Queue = c.queue.Connected(ctx)
	}
	if hc, ok := c.buffer.(healthChecker); ok {
		h.Buffer = hc.Healthy(ctx)
	}
	return h
}

func (c *Chain) publish(ctx context.Context, rec model.Record) error {
	if c.queue == nil {
		return fmt.Errorf("%w: not configured", ErrQueuePublishFailed)
	}
	if !c.queue.Connected(ctx) {
		return fmt.Errorf("%w: not connected", ErrQueuePublishFailed)
	}
	pctx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()
	if err := c.queue.Publish(pctx, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrQueuePublishFailed, err)
	}
	return nil
}

func (c *Chain) stageFailed(ctx context.Context, stage string, err error) {
	metrics.RecordSinkStageFailure(stage)
	metrics.RecordErrorByComponent("sink", stage)
	if errors.Is(err, context.Canceled) {
		c.logger.Debug(ctx, "sink stage cancelled", logger.String("stage", stage), logger.Error(err))
		return
	}
	c.logger.Warn(ctx, "sink stage failed", logger.String("stage", stage), logger.Error(err))
}
