package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/maps-enrich/internal/model"
)

func TestUpsertResultSQL_Dialects(t *testing.T) {
	pg := pgDialect.upsertResultSQL()
	assert.Contains(t, pg, "$25")
	assert.NotContains(t, pg, "$26")
	assert.Contains(t, pg, "IS DISTINCT FROM")
	assert.Contains(t, pg, "sync_error = NULL")

	lite := sqliteDialect.upsertResultSQL()
	assert.NotContains(t, lite, "$1")
	assert.Equal(t, len(resultColumns), strings.Count(lite, "?"))
	assert.Contains(t, lite, ") IS NOT (")
}

func TestResultArgs_NullsAndSyncState(t *testing.T) {
	args := resultArgs(model.Outcome{AccountID: "001A", Status: model.StatusNoResult})
	assert.Len(t, args, len(resultColumns))
	assert.Nil(t, args[1], "empty account name is NULL")
	assert.Nil(t, args[9], "missing rating is NULL")
	assert.Nil(t, args[23], "non-enriched rows carry no sync state")

	args = resultArgs(enrichedOutcome("001A", "ChIJ1"))
	assert.Equal(t, "ChIJ1", args[4])
	assert.Equal(t, 4.4, args[9])
	assert.Equal(t, 1312, args[10])
	assert.Equal(t, "PENDING", args[23])
}

func TestHistoryArgs_Payload(t *testing.T) {
	args, err := historyArgs(enrichedOutcome("001A", "ChIJ1"))
	assert.NoError(t, err)
	assert.Len(t, args, len(historyColumns))
	assert.Len(t, args[0], 36)
	assert.Contains(t, args[10], `"account_id":"001A"`)
}
