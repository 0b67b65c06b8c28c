package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-enrich/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS enrichment_results`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MigrateRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS enrichment_results`).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResult_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := anyArgs(len(resultColumns))
	args[0] = "001A"
	args[2] = "ENRICHED"
	args[23] = "PENDING"

	mock.ExpectExec(`INSERT INTO enrichment_results .* ON CONFLICT \(account_id\) DO UPDATE .* IS DISTINCT FROM`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveResult(context.Background(), enrichedOutcome("001A", "ChIJ1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResult_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO enrichment_results`).
		WithArgs(anyArgs(len(resultColumns))...).
		WillReturnError(errors.New("connection reset"))

	err := s.SaveResult(context.Background(), model.Outcome{AccountID: "001A", Status: model.StatusError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save result 001A")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	args := anyArgs(len(historyColumns))
	args[1] = "001A"
	args[2] = "NO_RESULT"

	mock.ExpectExec(`INSERT INTO enrichment_history`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.AppendHistory(context.Background(), model.Outcome{AccountID: "001A", Status: model.StatusNoResult}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Exists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM enrichment_results WHERE account_id = \$1 AND status <> 'ERROR'`).
		WithArgs("001A").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM enrichment_results`).
		WithArgs("001Z").
		WillReturnError(pgx.ErrNoRows)

	ok, err := s.Exists(context.Background(), "001A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "001Z")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Exists_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM enrichment_results`).
		WithArgs("001A").
		WillReturnError(errors.New("timeout"))

	_, err := s.Exists(context.Background(), "001A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: exists 001A")
}

func TestPostgresStore_AccountIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT account_id FROM enrichment_results WHERE status <> 'ERROR'`).
		WillReturnRows(pgxmock.NewRows([]string{"account_id"}).AddRow("001A").AddRow("001B"))

	ids, err := s.AccountIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001A", "001B"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	updated := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(resultColumns).AddRow(
		"001A", ptr("Le Petit Zinc"), "ENRICHED", ptr("Enrichment successful"),
		ptr("ChIJ1"), ptr("0x1"), ptr("Le Petit Zinc"), ptr("Paris"), ptr("Bistro"),
		ptr(4.4), ptr(1312), ptr("$$"), ptr("€20–30"),
		nil, nil,
		true, false, true,
		nil, ptr("2024-03-04"),
		100, ptr("Name"),
		ptr("run-1"), ptr("PENDING"), updated,
	)
	mock.ExpectQuery(`SELECT account_id, .* FROM enrichment_results WHERE sync_status = 'PENDING' AND status = 'ENRICHED' ORDER BY updated_at, account_id LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(rows)

	got, err := s.ListPending(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "001A", got[0].AccountID)
	assert.Equal(t, model.SyncPending, got[0].SyncStatus)
	require.NotNil(t, got[0].Place)
	assert.Equal(t, "ChIJ1", got[0].Place.PlaceID)
	assert.Equal(t, "", got[0].Place.WebsiteURL)
	assert.True(t, got[0].Place.AcceptsBookings)
	assert.Equal(t, updated, got[0].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSyncStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE enrichment_results SET sync_status = \$1, sync_error = \$2, synced_at = \$3 WHERE account_id = \$4`).
		WithArgs("SYNCED", nil, pgxmock.AnyArg(), "001A").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE enrichment_results SET sync_status`).
		WithArgs("ERROR", "bad picklist", nil, "001B").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateSyncStatus(context.Background(), "001A", model.SyncSynced, ""))

	err := s.UpdateSyncStatus(context.Background(), "001B", model.SyncError, "bad picklist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found: 001B")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StatusCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM enrichment_results GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("ENRICHED", 12).
			AddRow("NO_RESULT", 3))

	counts, err := s.StatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[model.Status]int{model.StatusEnriched: 12, model.StatusNoResult: 3}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SyncCounts_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT sync_status, COUNT\(\*\)`).
		WillReturnError(errors.New("relation does not exist"))

	_, err := s.SyncCounts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: sync counts")
}

func TestPostgresStore_DuplicatePlaceIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`GROUP BY place_id HAVING COUNT\(\*\) > 1`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"place_id", "n"}).AddRow("ChIJdup", 3))

	dups, err := s.DuplicatePlaceIDs(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []PlaceCount{{PlaceID: "ChIJdup", Count: 3}}, dups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPrices(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT account_id, price, price_raw FROM enrichment_results`).
		WithArgs("001A", 500).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "price", "price_raw"}).
			AddRow("001B", ptr("$$"), ptr("€20–30")).
			AddRow("001C", nil, ptr("3")))

	rows, err := s.ListPrices(context.Background(), "001A", 500)
	require.NoError(t, err)
	assert.Equal(t, []PriceRow{
		{AccountID: "001B", Price: "$$", PriceRaw: "€20–30"},
		{AccountID: "001C", PriceRaw: "3"},
	}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdatePrice(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE enrichment_results\s+SET price = \$1`).
		WithArgs("$$$", "001A").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdatePrice(context.Background(), "001A", "$$$"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
