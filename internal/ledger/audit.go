package ledger

import (
	"encoding/csv"
	"os"
	"sync"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
)

type auditRow struct {
	AccountID    string    `csv:"account_id"`
	AccountName  string    `csv:"account_name"`
	Status       string    `csv:"status"`
	Message      string    `csv:"message"`
	PlaceID      string    `csv:"google_place_id"`
	Title        string    `csv:"google_title"`
	Address      string    `csv:"google_address"`
	Type         string    `csv:"google_type"`
	Rating       *float64  `csv:"google_rating"`
	Reviews      *int      `csv:"google_reviews"`
	Price        string    `csv:"google_price"`
	URL          string    `csv:"google_url"`
	MatchScore   int       `csv:"match_score"`
	MatchedField string    `csv:"matched_field"`
	Timestamp    time.Time `csv:"timestamp"`
}

// AuditLog appends one CSV row per enrichment outcome. Safe for concurrent use.
type AuditLog struct {
	mu  sync.Mutex
	f   *os.File
	w   *csv.Writer
	enc *csvutil.Encoder
}

// OpenAuditLog opens path for appending, writing the header if the file is new.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, w, enc, err := appendFile(path)
	if err != nil {
		return nil, err
	}
	return &AuditLog{f: f, w: w, enc: enc}, nil
}

// Write appends the outcome.
func (a *AuditLog) Write(o model.Outcome) error {
	row := auditRow{
		AccountID:    o.AccountID,
		AccountName:  o.AccountName,
		Status:       string(o.Status),
		Message:      o.Message,
		MatchScore:   o.MatchScore,
		MatchedField: o.MatchedField,
		Timestamp:    o.Timestamp.UTC(),
	}
	if p := o.Place; p != nil {
		row.PlaceID = p.PlaceID
		row.Title = p.Title
		row.Address = p.Address
		row.Type = p.Type
		row.Rating = p.Rating
		row.Reviews = p.Reviews
		row.Price = p.Price
		row.URL = p.WebsiteURL
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enc.Encode(row); err != nil {
		return eris.Wrapf(err, "ledger: audit %s", o.AccountID)
	}
	return eris.Wrap(flush(a.w), "ledger: flush audit")
}

func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := flush(a.w); err != nil {
		a.f.Close() //nolint:errcheck
		return eris.Wrap(err, "ledger: flush audit")
	}
	return a.f.Close()
}
