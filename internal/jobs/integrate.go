package jobs

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

//go:embed sql/integrate.sql
var integrationSQL string

// LoadIntegrationSQL returns the statement at path, or the built-in one when
// path is empty.
func LoadIntegrationSQL(path string) (string, error) {
	if path == "" {
		return integrationSQL, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read integration sql: %w", err)
	}
	return string(b), nil
}

// Integrator joins recent vehicle pings with the stop schedule and incident
// counts into the integrated table.
type Integrator struct {
	warehouse domain.Warehouse
	statement string
	lookback  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewIntegrator creates an Integrator running statement with the window start
// as its only parameter.
func NewIntegrator(warehouse domain.Warehouse, statement string, lookback time.Duration, clock clockwork.Clock, logger *slog.Logger) *Integrator {
	return &Integrator{warehouse: warehouse, statement: statement, lookback: lookback, clock: clock, logger: logger}
}

func (i *Integrator) Name() string { return Integrate }

// Run executes the integration statement. The count is the number of
// integrated rows written.
func (i *Integrator) Run(ctx context.Context) (Result, error) {
	since := i.clock.Now().Add(-i.lookback)
	n, err := i.warehouse.Exec(ctx, i.statement, domain.FormatTimestamp(since))
	if err != nil {
		return Result{}, fmt.Errorf("run integration: %w", err)
	}
	i.logger.Info("pings integrated", "rows", n, "since", domain.FormatTimestamp(since))
	return Result{Count: int(n), Message: "Integration complete"}, nil
}
