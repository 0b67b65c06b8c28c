package salesforce

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// AccountUpdate holds an account ID and the fields to update.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateAccounts sends updates in collections of 200. The returned
// results line up with updates by index and always carry the update's ID.
// A request that fails as a whole marks each of its records failed and the
// remaining batches are still sent; the joined request errors are returned.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	results := make([]CollectionResult, len(updates))
	var errs []error
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		batch := updates[start:end]

		records := make([]CollectionRecord, len(batch))
		for i, u := range batch {
			records[i] = CollectionRecord(u)
		}

		got, err := c.UpdateCollection(ctx, "Account", records)
		if err == nil && len(got) != len(batch) {
			err = eris.Errorf("sf: expected %d results, got %d", len(batch), len(got))
		}
		if err != nil {
			err = eris.Wrap(err, fmt.Sprintf("sf: bulk update accounts batch %d-%d", start, end))
			errs = append(errs, err)
			for i, u := range batch {
				results[start+i] = CollectionResult{ID: u.ID, Errors: []string{err.Error()}, BatchFailed: true}
			}
			continue
		}
		for i, u := range batch {
			r := got[i]
			r.ID = u.ID
			results[start+i] = r
		}
	}

	return results, errors.Join(errs...)
}
