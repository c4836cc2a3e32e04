package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

const (
	minVehicleNumber = 100
	maxVehicleNumber = 999
)

// PingPublisher sends vehicle pings to the ping topic.
type PingPublisher interface {
	Publish(ctx context.Context, pings []domain.VehiclePing) error
}

// PublisherConfig holds the settings of a Publisher.
type PublisherConfig struct {
	RouteBoundsPath string
	Interval        time.Duration
	MaxRuntime      time.Duration
}

// Publisher simulates a fleet by publishing one ping per route at a random
// point inside the route's bounds, repeatedly, for a bounded time.
type Publisher struct {
	gtfs      domain.BlobStore
	publisher PingPublisher
	cfg       PublisherConfig
	clock     clockwork.Clock
	rng       *Rand
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewPublisher creates a Publisher reading route bounds from gtfs.
func NewPublisher(gtfs domain.BlobStore, publisher PingPublisher, cfg PublisherConfig, clock clockwork.Clock, rng *Rand, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{gtfs: gtfs, publisher: publisher, cfg: cfg, clock: clock, rng: rng, logger: logger, metrics: metrics}
}

func (p *Publisher) Name() string { return PublishPings }

// Run publishes a batch every interval until the max runtime has elapsed or
// ctx is done. Cancellation ends the run early without error. The count is
// the number of pings published.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	routes, err := LoadRouteBounds(ctx, p.gtfs, p.cfg.RouteBoundsPath)
	if err != nil {
		return Result{}, err
	}
	if len(routes) == 0 {
		return Result{}, errors.New("no route bounds to publish from")
	}

	start := p.clock.Now()
	total, batches := 0, 0
	for p.clock.Since(start) < p.cfg.MaxRuntime {
		n, err := p.PublishBatch(ctx, routes)
		total += n
		if err != nil {
			return Result{Count: total}, err
		}
		batches++

		if !p.sleep(ctx) {
			p.logger.Info("ping publishing interrupted", "batches", batches, "pings", total)
			return Result{Count: total, Message: "GPS publishing interrupted"}, nil
		}
	}

	p.logger.Info("ping publishing finished", "batches", batches, "pings", total)
	return Result{Count: total, Message: "GPS publishing cycle complete"}, nil
}

// PublishBatch publishes one ping for every route and returns the number sent.
func (p *Publisher) PublishBatch(ctx context.Context, routes []domain.RouteBounds) (int, error) {
	ts := domain.FormatTimestamp(p.clock.Now())
	pings := make([]domain.VehiclePing, 0, len(routes))
	for _, r := range routes {
		pings = append(pings, domain.VehiclePing{
			VehicleID: domain.VehicleID(r.RouteID, p.rng.IntRange(minVehicleNumber, maxVehicleNumber)),
			Timestamp: ts,
			Lat:       p.rng.Uniform(r.LatMin, r.LatMax),
			Lon:       p.rng.Uniform(r.LonMin, r.LonMax),
		})
	}

	if err := p.publisher.Publish(ctx, pings); err != nil {
		return 0, fmt.Errorf("publish batch: %w", err)
	}
	p.metrics.PingsPublished.Add(float64(len(pings)))
	p.logger.Debug("ping batch published", "pings", len(pings))
	return len(pings), nil
}

func (p *Publisher) sleep(ctx context.Context) bool {
	t := p.clock.NewTimer(p.cfg.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}
