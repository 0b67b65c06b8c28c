package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/db"
	"github.com/sells-group/maps-enrich/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var (
	pgUpsertResult  = pgDialect.upsertResultSQL()
	pgInsertHistory = pgDialect.insertHistorySQL()
	pgListPending   = pgDialect.listPendingSQL()
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, maxConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_results (
	account_id       TEXT PRIMARY KEY,
	account_name     TEXT,
	status           TEXT NOT NULL,
	message          TEXT,
	place_id         TEXT,
	data_id          TEXT,
	title            TEXT,
	address          TEXT,
	google_type      TEXT,
	rating           DOUBLE PRECISION,
	reviews          INTEGER,
	price            TEXT,
	price_raw        TEXT,
	thumbnail_url    TEXT,
	website_url      TEXT,
	accepts_bookings BOOLEAN NOT NULL DEFAULT false,
	delivery         BOOLEAN NOT NULL DEFAULT false,
	takeout          BOOLEAN NOT NULL DEFAULT false,
	closure_status   TEXT,
	updated_date     TEXT,
	match_score      INTEGER NOT NULL DEFAULT 0,
	matched_field    TEXT,
	run_id           TEXT,
	sync_status      TEXT,
	sync_error       TEXT,
	synced_at        TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_history (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	status        TEXT NOT NULL,
	message       TEXT,
	place_id      TEXT,
	title         TEXT,
	price         TEXT,
	match_score   INTEGER NOT NULL DEFAULT 0,
	matched_field TEXT,
	run_id        TEXT,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_results_sync ON enrichment_results(sync_status, status, updated_at);
CREATE INDEX IF NOT EXISTS idx_enrichment_results_place_id ON enrichment_results(place_id);
CREATE INDEX IF NOT EXISTS idx_enrichment_history_account_id ON enrichment_history(account_id);
`

// Migrate creates the staging tables and indexes in a single transaction.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, postgresMigration)
		return err
	})
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, accountID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM enrichment_results WHERE account_id = $1 AND status <> 'ERROR'`,
		accountID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists %s", accountID)
	}
	return true, nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, o model.Outcome) error {
	_, err := s.pool.Exec(ctx, pgUpsertResult, resultArgs(o)...)
	return eris.Wrapf(err, "postgres: save result %s", o.AccountID)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, o model.Outcome) error {
	args, err := historyArgs(o)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgInsertHistory, args...)
	return eris.Wrapf(err, "postgres: append history %s", o.AccountID)
}

func (s *PostgresStore) AccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT account_id FROM enrichment_results WHERE status <> 'ERROR'`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: account ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan account id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate account ids")
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]model.StagedResult, error) {
	rows, err := s.pool.Query(ctx, pgListPending, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending")
	}
	defer rows.Close()

	var results []model.StagedResult
	for rows.Next() {
		r, err := scanStaged(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate pending")
}

func (s *PostgresStore) UpdateSyncStatus(ctx context.Context, accountID string, status model.SyncStatus, syncErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_results SET sync_status = $1, sync_error = $2, synced_at = $3 WHERE account_id = $4`,
		string(status), nullString(syncErr), syncedAt(status), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update sync status %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: staged result not found: %s", accountID)
	}
	return nil
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM enrichment_results GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status counts")
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate status counts")
}

func (s *PostgresStore) SyncCounts(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sync_status, COUNT(*) FROM enrichment_results WHERE sync_status IS NOT NULL GROUP BY sync_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sync counts")
	}
	defer rows.Close()

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate sync counts")
}

func (s *PostgresStore) DuplicatePlaceIDs(ctx context.Context, limit int) ([]PlaceCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT place_id, COUNT(*) AS n FROM enrichment_results
		WHERE status = 'ENRICHED' AND place_id IS NOT NULL
		GROUP BY place_id HAVING COUNT(*) > 1
		ORDER BY n DESC, place_id LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: duplicate place ids")
	}
	defer rows.Close()

	var dups []PlaceCount
	for rows.Next() {
		var pc PlaceCount
		if err := rows.Scan(&pc.PlaceID, &pc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan duplicate place id")
		}
		dups = append(dups, pc)
	}
	return dups, eris.Wrap(rows.Err(), "postgres: iterate duplicate place ids")
}

func (s *PostgresStore) ListPrices(ctx context.Context, afterID string, limit int) ([]PriceRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT account_id, price, price_raw FROM enrichment_results
		WHERE account_id > $1 AND (price IS NOT NULL OR price_raw IS NOT NULL)
		ORDER BY account_id LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prices")
	}
	defer rows.Close()

	var out []PriceRow
	for rows.Next() {
		var r PriceRow
		var price, raw *string
		if err := rows.Scan(&r.AccountID, &price, &raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price")
		}
		r.Price, r.PriceRaw = deref(price), deref(raw)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate prices")
}

// UpdatePrice rewrites a staged price. Enriched rows go back to PENDING so the
// new tier reaches Salesforce.
func (s *PostgresStore) UpdatePrice(ctx context.Context, accountID, price string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_results
		SET price = $1,
			sync_status = CASE WHEN status = 'ENRICHED' THEN 'PENDING' ELSE sync_status END,
			updated_at = now()
		WHERE account_id = $2`,
		nullString(price), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update price %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: staged result not found: %s", accountID)
	}
	return nil
}
