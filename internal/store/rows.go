package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
)

// resultColumns is the column order shared by inserts and selects on
// enrichment_results.
var resultColumns = []string{
	"account_id", "account_name", "status", "message",
	"place_id", "data_id", "title", "address", "google_type",
	"rating", "reviews", "price", "price_raw",
	"thumbnail_url", "website_url",
	"accepts_bookings", "delivery", "takeout",
	"closure_status", "updated_date",
	"match_score", "matched_field",
	"run_id", "sync_status", "updated_at",
}

// contentColumns decide whether an upsert changes anything.
var contentColumns = []string{
	"account_name", "status", "message",
	"place_id", "data_id", "title", "address", "google_type",
	"rating", "reviews", "price", "price_raw",
	"thumbnail_url", "website_url",
	"accepts_bookings", "delivery", "takeout",
	"closure_status", "match_score", "matched_field",
}

var historyColumns = []string{
	"id", "account_id", "status", "message", "place_id", "title",
	"price", "match_score", "matched_field", "run_id", "payload", "created_at",
}

// dialect holds the SQL differences between Postgres and SQLite.
type dialect struct {
	placeholder func(n int) string
	distinct    string
}

var (
	pgDialect     = dialect{placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }, distinct: "IS DISTINCT FROM"}
	sqliteDialect = dialect{placeholder: func(int) string { return "?" }, distinct: "IS NOT"}
)

func (d dialect) placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}

func (d dialect) upsertResultSQL() string {
	sets := make([]string, 0, len(resultColumns)+1)
	for _, c := range resultColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "sync_error = NULL", "synced_at = NULL")

	current := make([]string, len(contentColumns))
	excluded := make([]string, len(contentColumns))
	for i, c := range contentColumns {
		current[i] = "enrichment_results." + c
		excluded[i] = "EXCLUDED." + c
	}

	return fmt.Sprintf(
		"INSERT INTO enrichment_results (%s) VALUES (%s) ON CONFLICT (account_id) DO UPDATE SET %s WHERE (%s) %s (%s)",
		strings.Join(resultColumns, ", "),
		d.placeholders(1, len(resultColumns)),
		strings.Join(sets, ", "),
		strings.Join(current, ", "),
		d.distinct,
		strings.Join(excluded, ", "),
	)
}

func (d dialect) insertHistorySQL() string {
	return fmt.Sprintf("INSERT INTO enrichment_history (%s) VALUES (%s)",
		strings.Join(historyColumns, ", "), d.placeholders(1, len(historyColumns)))
}

func (d dialect) listPendingSQL() string {
	return fmt.Sprintf(
		"SELECT %s FROM enrichment_results WHERE sync_status = 'PENDING' AND status = 'ENRICHED' ORDER BY updated_at, account_id LIMIT %s",
		strings.Join(resultColumns, ", "), d.placeholder(1))
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// resultArgs flattens an outcome into resultColumns order.
func resultArgs(o model.Outcome) []any {
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var syncStatus any
	if o.Status == model.StatusEnriched {
		syncStatus = string(model.SyncPending)
	}

	p := o.Place
	if p == nil {
		p = &model.Place{}
	}

	return []any{
		o.AccountID, nullString(o.AccountName), string(o.Status), nullString(o.Message),
		nullString(p.PlaceID), nullString(p.DataID), nullString(p.Title), nullString(p.Address), nullString(p.Type),
		nullable(p.Rating), nullable(p.Reviews), nullString(p.Price), nullString(p.PriceRaw),
		nullString(p.ThumbnailURL), nullString(p.WebsiteURL),
		p.AcceptsBookings, p.Delivery, p.Takeout,
		nullString(p.ClosureStatus), nullString(p.UpdatedDate),
		o.MatchScore, nullString(o.MatchedField),
		nullString(o.RunID), syncStatus, ts.UTC(),
	}
}

func historyArgs(o model.Outcome) ([]any, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal history payload")
	}
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var placeID, title, price any
	if o.Place != nil {
		placeID, title, price = nullString(o.Place.PlaceID), nullString(o.Place.Title), nullString(o.Place.Price)
	}

	return []any{
		uuid.New().String(), o.AccountID, string(o.Status), nullString(o.Message),
		placeID, title, price, o.MatchScore, nullString(o.MatchedField),
		nullString(o.RunID), string(payload), ts.UTC(),
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStaged(row scannable) (model.StagedResult, error) {
	var (
		r                                              model.StagedResult
		status                                         string
		name, message, placeID, dataID, title, address *string
		gType, price, priceRaw, thumb, website         *string
		closure, updatedDate, matchedField, runID      *string
		syncStatus                                     *string
		rating                                         *float64
		reviews                                        *int
		bookings, delivery, takeout                    bool
	)
	err := row.Scan(
		&r.AccountID, &name, &status, &message,
		&placeID, &dataID, &title, &address, &gType,
		&rating, &reviews, &price, &priceRaw,
		&thumb, &website,
		&bookings, &delivery, &takeout,
		&closure, &updatedDate,
		&r.MatchScore, &matchedField,
		&runID, &syncStatus, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	r.AccountName = deref(name)
	r.Status = model.Status(status)
	r.Message = deref(message)
	r.MatchedField = deref(matchedField)
	r.RunID = deref(runID)
	r.SyncStatus = model.SyncStatus(deref(syncStatus))
	r.Timestamp = r.UpdatedAt

	if placeID != nil || title != nil {
		r.Place = &model.Place{
			PlaceID:         deref(placeID),
			DataID:          deref(dataID),
			Title:           deref(title),
			Address:         deref(address),
			Type:            deref(gType),
			Rating:          rating,
			Reviews:         reviews,
			Price:           deref(price),
			PriceRaw:        deref(priceRaw),
			ThumbnailURL:    deref(thumb),
			WebsiteURL:      deref(website),
			AcceptsBookings: bookings,
			Delivery:        delivery,
			Takeout:         takeout,
			ClosureStatus:   deref(closure),
			UpdatedDate:     deref(updatedDate),
		}
	}
	return r, nil
}

// syncedAt is the synced_at value for a status change.
func syncedAt(status model.SyncStatus) any {
	if status != model.SyncSynced {
		return nil
	}
	return time.Now().UTC()
}
