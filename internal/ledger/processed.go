package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
)

type processedRow struct {
	AccountID string    `csv:"account_id"`
	Status    string    `csv:"status"`
	Timestamp time.Time `csv:"timestamp"`
}

// ProcessedSet is the append-only record of accounts that reached a resumable
// status. Safe for concurrent use.
type ProcessedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
	f   *os.File
	w   *csv.Writer
	enc *csvutil.Encoder
}

// OpenProcessedSet loads the processed ids already in path and opens it for
// appending.
func OpenProcessedSet(path string) (*ProcessedSet, error) {
	ids, err := loadProcessed(path)
	if err != nil {
		return nil, err
	}
	f, w, enc, err := appendFile(path)
	if err != nil {
		return nil, err
	}
	return &ProcessedSet{ids: ids, f: f, w: w, enc: enc}, nil
}

func loadProcessed(path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if errors.Is(err, io.EOF) {
		return ids, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: read header of %s", path)
	}

	for {
		var row processedRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: decode %s", path)
		}
		if model.Status(row.Status).Resumable() {
			ids[row.AccountID] = struct{}{}
		}
	}
	return ids, nil
}

// Processed reports whether the account was already handled by a prior run.
func (p *ProcessedSet) Processed(_ context.Context, accountID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[accountID]
	return ok, nil
}

// Mark records a terminal outcome. ERROR outcomes are ignored so the account
// is retried next run.
func (p *ProcessedSet) Mark(accountID string, status model.Status, at time.Time) error {
	if !status.Resumable() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ids[accountID]; ok {
		return nil
	}
	if err := p.enc.Encode(processedRow{AccountID: accountID, Status: string(status), Timestamp: at.UTC()}); err != nil {
		return eris.Wrapf(err, "ledger: append processed %s", accountID)
	}
	if err := flush(p.w); err != nil {
		return eris.Wrap(err, "ledger: flush processed")
	}
	p.ids[accountID] = struct{}{}
	return nil
}

// Len returns the number of processed accounts.
func (p *ProcessedSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

func (p *ProcessedSet) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := flush(p.w); err != nil {
		p.f.Close() //nolint:errcheck
		return eris.Wrap(err, "ledger: flush processed")
	}
	return p.f.Close()
}
