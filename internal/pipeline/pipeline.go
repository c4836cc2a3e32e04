package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw ping messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer validates a raw message into a vehicle ping.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.VehiclePing, error)
}

// BatchLoader writes a batch of pings to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, pings []domain.VehiclePing) error
}

// Pipeline streams vehicle pings from the ping topic into the warehouse.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once a batch of pings has reached the warehouse.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no vehicle pings loaded yet")
	}
	return nil
}

// Run polls the extractor until ctx is cancelled. Extract and load failures
// back off exponentially from 200ms up to 5s; the loop itself never fails.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("ping pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	b := backoff{initial: 200 * time.Millisecond, limit: 5 * time.Second}
	b.reset()

	for ctx.Err() == nil {
		if err := p.step(ctx, &b); err != nil && !b.wait(ctx) {
			break
		}
	}
	p.logger.Info("ping pipeline stopping", "reason", ctx.Err())
	return nil
}

// step extracts one batch and loads its valid pings. A non-nil error asks
// the caller to back off before the next step.
func (p *Pipeline) step(ctx context.Context, b *backoff) error {
	start := time.Now()

	raws, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("extract batch failed", "error", err)
		}
		return err
	}
	if len(raws) == 0 {
		return nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(raws)))
	p.metrics.BatchSize.Observe(float64(len(raws)))
	b.reset()

	pings, accepted := p.split(ctx, raws)
	if len(pings) == 0 {
		return nil
	}

	if err := p.loader.LoadBatch(ctx, pings); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(pings))
		return err
	}
	p.metrics.PingsLoaded.Add(float64(len(pings)))
	for _, raw := range accepted {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return nil
}

// split validates every message. Invalid messages are committed at once so
// the broker does not redeliver them; valid ones are committed only after
// their batch loads.
func (p *Pipeline) split(ctx context.Context, raws []domain.RawMessage) ([]domain.VehiclePing, []domain.RawMessage) {
	pings := make([]domain.VehiclePing, 0, len(raws))
	accepted := make([]domain.RawMessage, 0, len(raws))

	for _, raw := range raws {
		ping, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("invalid ping, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		pings = append(pings, ping)
		accepted = append(accepted, raw)
	}
	return pings, accepted
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

type backoff struct {
	initial, limit, next time.Duration
}

func (b *backoff) reset() { b.next = b.initial }

// wait sleeps for the current delay and doubles it. It reports false when
// ctx ends first.
func (b *backoff) wait(ctx context.Context) bool {
	if !retry.SleepWithContext(ctx, b.next) {
		return false
	}
	b.next = retry.NextBackoff(b.next, b.limit)
	return true
}
