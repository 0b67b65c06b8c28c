package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// UpdateAccount updates an Account record with the given fields.
func UpdateAccount(ctx context.Context, c Client, accountID string, fields map[string]any) error {
	if accountID == "" {
		return eris.New("sf: account id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Account", accountID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update account %s", accountID))
	}
	return nil
}

// maxMergeIDs is the number of records Salesforce merges into a master per call.
const maxMergeIDs = 2

// MergeAccounts merges duplicates into master, at most two per request.
// It stops at the first failing request.
func MergeAccounts(ctx context.Context, c Client, masterID string, duplicateIDs []string) error {
	if masterID == "" {
		return eris.New("sf: master account id is required")
	}
	for start := 0; start < len(duplicateIDs); start += maxMergeIDs {
		end := min(start+maxMergeIDs, len(duplicateIDs))
		batch := duplicateIDs[start:end]
		for _, id := range batch {
			if id == masterID {
				return eris.Errorf("sf: cannot merge account %s into itself", id)
			}
		}
		if err := c.Merge(ctx, "Account", masterID, batch); err != nil {
			return eris.Wrap(err, fmt.Sprintf("sf: merge accounts into %s", masterID))
		}
	}
	return nil
}
