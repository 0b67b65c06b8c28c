package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/store"
)

// StoreChecker answers pre-checks from the staged account ids loaded at start.
type StoreChecker struct {
	ids map[string]struct{}
}

// NewStoreChecker loads every resumable staged account id.
func NewStoreChecker(ctx context.Context, st store.Store) (*StoreChecker, error) {
	ids, err := st.AccountIDs(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: load staged ids")
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &StoreChecker{ids: set}, nil
}

func (c *StoreChecker) Processed(_ context.Context, accountID string) (bool, error) {
	_, ok := c.ids[accountID]
	return ok, nil
}

// Len returns the number of staged ids.
func (c *StoreChecker) Len() int { return len(c.ids) }

// RemoteChecker asks the store per account instead of preloading ids. It
// suits very large staging tables and sees rows written by concurrent runs.
type RemoteChecker struct {
	store store.Store
}

// NewRemoteChecker returns a RemoteChecker backed by st.
func NewRemoteChecker(st store.Store) *RemoteChecker {
	return &RemoteChecker{store: st}
}

func (c *RemoteChecker) Processed(ctx context.Context, accountID string) (bool, error) {
	ok, err := c.store.Exists(ctx, accountID)
	if err != nil {
		return false, eris.Wrapf(err, "enrich: lookup %s", accountID)
	}
	return ok, nil
}
