package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// PingsTable is the warehouse table holding raw vehicle pings.
const PingsTable = "vehicle_pings"

// PingTransformer implements Transformer using domain.ParsePing.
type PingTransformer struct{}

// NewTransformer creates a PingTransformer.
func NewTransformer() *PingTransformer {
	return &PingTransformer{}
}

func (t *PingTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.VehiclePing, error) {
	return domain.ParsePing(raw)
}

// WarehouseLoader implements BatchLoader by bulk-inserting pings into a
// warehouse table.
type WarehouseLoader struct {
	warehouse domain.Warehouse
	table     string
	logger    *slog.Logger
}

// NewWarehouseLoader creates a WarehouseLoader writing to table.
func NewWarehouseLoader(warehouse domain.Warehouse, table string, logger *slog.Logger) *WarehouseLoader {
	return &WarehouseLoader{warehouse: warehouse, table: table, logger: logger}
}

// LoadBatch inserts pings as one unit. Any rejected row fails the batch so
// the pipeline retries it without committing offsets.
func (l *WarehouseLoader) LoadBatch(ctx context.Context, pings []domain.VehiclePing) error {
	rows := make([]map[string]any, 0, len(pings))
	for _, p := range pings {
		rows = append(rows, p.Row())
	}

	rowErrs, err := l.warehouse.InsertRows(ctx, l.table, rows)
	if err != nil {
		return fmt.Errorf("insert pings: %w", err)
	}
	if len(rowErrs) > 0 {
		return &InsertError{Table: l.table, Rows: rowErrs}
	}
	l.logger.Debug("pings loaded", "table", l.table, "count", len(rows))
	return nil
}
