package domain

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by BlobStore.Read for a missing blob.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore lists, reads, and writes text blobs in one bucket.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Read(ctx context.Context, name string) (string, error)
	Write(ctx context.Context, name, content, contentType string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// RowError describes one row the warehouse refused.
type RowError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Warehouse executes statements and bulk-inserts flat rows into tables.
type Warehouse interface {
	// InsertRows inserts rows into table as one unit. A non-empty RowError
	// slice means those rows were rejected and nothing was committed; err is
	// reserved for failures of the whole call.
	InsertRows(ctx context.Context, table string, rows []map[string]any) ([]RowError, error)

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// SecretStore fetches the latest value of a named secret.
type SecretStore interface {
	Secret(ctx context.Context, name string) (string, error)
}
