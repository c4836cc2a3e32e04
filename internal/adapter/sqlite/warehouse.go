// Package sqlite implements the tabular warehouse on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

//go:embed schema.sql
var schema string

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Warehouse is a SQLite-backed domain.Warehouse.
type Warehouse struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the warehouse at path and applies the schema.
func Open(path string) (*Warehouse, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening warehouse: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying warehouse schema: %w", err)
	}

	return &Warehouse{db: db, path: path}, nil
}

// Close closes the database.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// Path returns the database file path.
func (w *Warehouse) Path() string {
	return w.path
}

// CheckReadiness pings the database.
func (w *Warehouse) CheckReadiness(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// InsertRows inserts rows into table in a single transaction. Each failing
// row is reported by index; if any row fails the transaction is rolled back.
func (w *Warehouse) InsertRows(ctx context.Context, table string, rows []map[string]any) ([]domain.RowError, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var rowErrs []domain.RowError
	for i, row := range rows {
		query, args, err := insertStatement(table, row)
		if err != nil {
			rowErrs = append(rowErrs, domain.RowError{Index: i, Message: err.Error()})
			continue
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			rowErrs = append(rowErrs, domain.RowError{Index: i, Message: err.Error()})
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return nil, nil
}

// Exec runs a statement and returns the affected row count.
func (w *Warehouse) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := w.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ReplaceRows deletes every row of table and inserts rows, atomically.
func (w *Warehouse) ReplaceRows(ctx context.Context, table string, rows []map[string]any) ([]domain.RowError, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return nil, fmt.Errorf("truncate %s: %w", table, err)
	}

	var rowErrs []domain.RowError
	for i, row := range rows {
		query, args, err := insertStatement(table, row)
		if err == nil {
			_, err = tx.ExecContext(ctx, query, args...)
		}
		if err != nil {
			rowErrs = append(rowErrs, domain.RowError{Index: i, Message: err.Error()})
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace: %w", err)
	}
	return nil, nil
}

// IntegratedSince returns the integrated rows whose ping is at or after since,
// oldest first.
func (w *Warehouse) IntegratedSince(ctx context.Context, since time.Time) ([]domain.IntegratedRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT vehicle_id, ping_ts, stop_id, schedu_ts, delay_sec, lat, lon, incident_count
		FROM integrated
		WHERE julianday(ping_ts) >= julianday(?)
		ORDER BY julianday(ping_ts), vehicle_id`,
		domain.FormatTimestamp(since),
	)
	if err != nil {
		return nil, fmt.Errorf("querying integrated rows: %w", err)
	}
	defer rows.Close()

	var out []domain.IntegratedRow
	for rows.Next() {
		var (
			r               domain.IntegratedRow
			pingTS          string
			stopID, schedTS sql.NullString
			delay           sql.NullInt64
		)
		if err := rows.Scan(&r.VehicleID, &pingTS, &stopID, &schedTS, &delay, &r.Lat, &r.Lon, &r.IncidentCount); err != nil {
			return nil, fmt.Errorf("scanning integrated row: %w", err)
		}
		if r.PingTime, err = time.Parse(time.RFC3339Nano, pingTS); err != nil {
			return nil, fmt.Errorf("integrated row %s: ping_ts: %w", r.VehicleID, err)
		}
		if schedTS.Valid && schedTS.String != "" {
			if r.ScheduledTime, err = time.Parse(time.RFC3339Nano, schedTS.String); err != nil {
				return nil, fmt.Errorf("integrated row %s: schedu_ts: %w", r.VehicleID, err)
			}
		}
		r.StopID = stopID.String
		r.DelaySec = delay.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

// insertStatement builds a parameterized INSERT with columns in sorted order.
func insertStatement(table string, row map[string]any) (string, []any, error) {
	if len(row) == 0 {
		return "", nil, errors.New("empty row")
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		if !identifierRe.MatchString(c) {
			return "", nil, fmt.Errorf("invalid column name %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = row[c]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	return query, args, nil
}
