package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/maps-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	sqliteUpsertResult  = sqliteDialect.upsertResultSQL()
	sqliteInsertHistory = sqliteDialect.insertHistorySQL()
	sqliteListPending   = sqliteDialect.listPendingSQL()
)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// All access goes through one connection so concurrent workers serialize on it.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	rating           REAL,
	reviews          INTEGER,
	price            TEXT,
	price_raw        TEXT,
	thumbnail_url    TEXT,
	website_url      TEXT,
	accepts_bookings INTEGER NOT NULL DEFAULT 0,
	delivery         INTEGER NOT NULL DEFAULT 0,
	takeout          INTEGER NOT NULL DEFAULT 0,
	closure_status   TEXT,
	updated_date     TEXT,
	match_score      INTEGER NOT NULL DEFAULT 0,
	matched_field    TEXT,
	run_id           TEXT,
	sync_status      TEXT,
	sync_error       TEXT,
	synced_at        DATETIME,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
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
	payload       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_enrichment_results_sync ON enrichment_results(sync_status, status, updated_at);
CREATE INDEX IF NOT EXISTS idx_enrichment_results_place_id ON enrichment_results(place_id);
CREATE INDEX IF NOT EXISTS idx_enrichment_history_account_id ON enrichment_history(account_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context, accountID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrichment_results WHERE account_id = ? AND status <> 'ERROR'`,
		accountID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists %s", accountID)
	}
	return true, nil
}

func (s *SQLiteStore) SaveResult(ctx context.Context, o model.Outcome) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsertResult, resultArgs(o)...)
	return eris.Wrapf(err, "sqlite: save result %s", o.AccountID)
}

func (s *SQLiteStore) AppendHistory(ctx context.Context, o model.Outcome) error {
	args, err := historyArgs(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertHistory, args...)
	return eris.Wrapf(err, "sqlite: append history %s", o.AccountID)
}

func (s *SQLiteStore) AccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM enrichment_results WHERE status <> 'ERROR'`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: account ids")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan account id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate account ids")
}

func (s *SQLiteStore) ListPending(ctx context.Context, limit int) ([]model.StagedResult, error) {
	rows, err := s.db.QueryContext(ctx, sqliteListPending, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending")
	}
	defer rows.Close() //nolint:errcheck

	var results []model.StagedResult
	for rows.Next() {
		r, err := scanStaged(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate pending")
}

func (s *SQLiteStore) UpdateSyncStatus(ctx context.Context, accountID string, status model.SyncStatus, syncErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_results SET sync_status = ?, sync_error = ?, synced_at = ? WHERE account_id = ?`,
		string(status), nullString(syncErr), syncedAt(status), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update sync status %s", accountID)
	}
	return checkRowsAffected(res, accountID)
}

func (s *SQLiteStore) StatusCounts(ctx context.Context) (map[model.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM enrichment_results GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: status counts")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate status counts")
}

func (s *SQLiteStore) SyncCounts(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sync_status, COUNT(*) FROM enrichment_results WHERE sync_status IS NOT NULL GROUP BY sync_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sync counts")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate sync counts")
}

func (s *SQLiteStore) DuplicatePlaceIDs(ctx context.Context, limit int) ([]PlaceCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT place_id, COUNT(*) AS n FROM enrichment_results
		WHERE status = 'ENRICHED' AND place_id IS NOT NULL
		GROUP BY place_id HAVING COUNT(*) > 1
		ORDER BY n DESC, place_id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: duplicate place ids")
	}
	defer rows.Close() //nolint:errcheck

	var dups []PlaceCount
	for rows.Next() {
		var pc PlaceCount
		if err := rows.Scan(&pc.PlaceID, &pc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan duplicate place id")
		}
		dups = append(dups, pc)
	}
	return dups, eris.Wrap(rows.Err(), "sqlite: iterate duplicate place ids")
}

func (s *SQLiteStore) ListPrices(ctx context.Context, afterID string, limit int) ([]PriceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, price, price_raw FROM enrichment_results
		WHERE account_id > ? AND (price IS NOT NULL OR price_raw IS NOT NULL)
		ORDER BY account_id LIMIT ?`,
		afterID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prices")
	}
	defer rows.Close() //nolint:errcheck

	var out []PriceRow
	for rows.Next() {
		var r PriceRow
		var price, raw *string
		if err := rows.Scan(&r.AccountID, &price, &raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price")
		}
		r.Price, r.PriceRaw = deref(price), deref(raw)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate prices")
}

func (s *SQLiteStore) UpdatePrice(ctx context.Context, accountID, price string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_results
		SET price = ?,
			sync_status = CASE WHEN status = 'ENRICHED' THEN 'PENDING' ELSE sync_status END,
			updated_at = ?
		WHERE account_id = ?`,
		nullString(price), time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update price %s", accountID)
	}
	return checkRowsAffected(res, accountID)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: staged result not found: %s", id)
	}
	return nil
}
