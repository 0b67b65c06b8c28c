// Package monitoring reports staging health and raises webhook alerts when a
// run's error or rejection rates cross their thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/store"
)

// duplicateLimit caps the duplicate place IDs listed in a snapshot.
const duplicateLimit = 50

// Snapshot holds a point-in-time view of the staging store.
type Snapshot struct {
	Total       int                      `json:"total" yaml:"total"`
	ByStatus    map[model.Status]int     `json:"by_status" yaml:"by_status"`
	BySync      map[model.SyncStatus]int `json:"by_sync_status" yaml:"by_sync_status"`
	Pending     int                      `json:"pending" yaml:"pending"`
	SyncErrors  int                      `json:"sync_errors" yaml:"sync_errors"`
	ErrorRate   float64                  `json:"error_rate" yaml:"error_rate"`
	SanityRate  float64                  `json:"sanity_rate" yaml:"sanity_rate"`
	Duplicates  []store.PlaceCount       `json:"duplicate_place_ids,omitempty" yaml:"duplicate_place_ids,omitempty"`
	Unenriched  *int                     `json:"unenriched_in_salesforce,omitempty" yaml:"unenriched_in_salesforce,omitempty"`
	CollectedAt time.Time                `json:"collected_at" yaml:"collected_at"`
}

// CountFunc returns the number of accounts still waiting for enrichment.
type CountFunc func(ctx context.Context) (int, error)

// Collector gathers snapshots from the store and, optionally, Salesforce.
type Collector struct {
	store      store.Store
	unenriched CountFunc
}

// NewCollector creates a Collector. unenriched may be nil.
func NewCollector(st store.Store, unenriched CountFunc) *Collector {
	return &Collector{store: st, unenriched: unenriched}
}

// Collect gathers a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{CollectedAt: time.Now().UTC()}

	byStatus, err := c.store.StatusCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: status counts")
	}
	snap.ByStatus = byStatus
	for _, n := range byStatus {
		snap.Total += n
	}

	bySync, err := c.store.SyncCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: sync counts")
	}
	snap.BySync = bySync
	snap.Pending = bySync[model.SyncPending]
	snap.SyncErrors = bySync[model.SyncError]

	if snap.Total > 0 {
		snap.ErrorRate = float64(byStatus[model.StatusError]) / float64(snap.Total)
	}
	if matched := byStatus[model.StatusEnriched] + byStatus[model.StatusSanityCheck]; matched > 0 {
		snap.SanityRate = float64(byStatus[model.StatusSanityCheck]) / float64(matched)
	}

	snap.Duplicates, err = c.store.DuplicatePlaceIDs(ctx, duplicateLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: duplicate place ids")
	}

	if c.unenriched != nil {
		n, err := c.unenriched(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: count unenriched")
		}
		snap.Unenriched = &n
	}

	return snap, nil
}
