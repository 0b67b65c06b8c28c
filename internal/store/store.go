// Package store persists enrichment outcomes in a staging database before they
// are reconciled into Salesforce.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
)

// Store is the staging persistence layer.
type Store interface {
	// Exists reports whether the account has a staged outcome that counts as
	// done. ERROR rows do not.
	Exists(ctx context.Context, accountID string) (bool, error)
	// SaveResult upserts the latest outcome for an account. Rows whose
	// content is unchanged are left alone, sync state included.
	SaveResult(ctx context.Context, o model.Outcome) error
	AppendHistory(ctx context.Context, o model.Outcome) error
	AccountIDs(ctx context.Context) ([]string, error)

	ListPending(ctx context.Context, limit int) ([]model.StagedResult, error)
	UpdateSyncStatus(ctx context.Context, accountID string, status model.SyncStatus, syncErr string) error

	StatusCounts(ctx context.Context) (map[model.Status]int, error)
	SyncCounts(ctx context.Context) (map[model.SyncStatus]int, error)
	DuplicatePlaceIDs(ctx context.Context, limit int) ([]PlaceCount, error)

	ListPrices(ctx context.Context, afterID string, limit int) ([]PriceRow, error)
	UpdatePrice(ctx context.Context, accountID, price string) error

	Migrate(ctx context.Context) error
	Close() error
}

// PlaceCount is a Google place ID shared by several staged accounts.
type PlaceCount struct {
	PlaceID string `json:"place_id" yaml:"place_id"`
	Count   int    `json:"count" yaml:"count"`
}

// PriceRow is the price state of one staged row.
type PriceRow struct {
	AccountID string
	Price     string
	PriceRaw  string
}

// Open returns the store for the given driver.
func Open(ctx context.Context, driver, dsn string, maxConns int32) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn, maxConns)
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}
