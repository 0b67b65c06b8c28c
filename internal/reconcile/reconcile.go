// Package reconcile pushes staged enrichment results to Salesforce and records
// the per-row sync state.
package reconcile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/metrics"
	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/store"
	"github.com/sells-group/maps-enrich/pkg/salesforce"
)

// DefaultLimit is the number of pending rows pushed per run.
const DefaultLimit = 100

// Result counts the rows pushed in one run.
type Result struct {
	Success int  `json:"success"`
	Failed  int  `json:"failed"`
	DryRun  bool `json:"dry_run"`
}

// Reconciler moves PENDING staged rows into Salesforce.
type Reconciler struct {
	store   store.Store
	sf      salesforce.Client
	metrics *metrics.Metrics
}

// New returns a Reconciler.
func New(st store.Store, sf salesforce.Client, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: st, sf: sf, metrics: m}
}

// Run pushes up to limit pending rows. A dry run logs the payloads and leaves
// sync state untouched. Per-row failures are counted, not returned.
func (r *Reconciler) Run(ctx context.Context, limit int, dryRun bool) (res Result, err error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	res.DryRun = dryRun
	defer func() {
		zap.L().Info("reconcile: summary",
			zap.Int("success", res.Success),
			zap.Int("failed", res.Failed),
			zap.Bool("dry_run", dryRun),
		)
	}()

	pending, err := r.store.ListPending(ctx, limit)
	if err != nil {
		return res, eris.Wrap(err, "reconcile: list pending")
	}
	if len(pending) == 0 {
		zap.L().Info("reconcile: nothing pending")
		return res, nil
	}

	updates := make([]salesforce.AccountUpdate, 0, len(pending))
	for _, row := range pending {
		fields := Payload(row.Place)
		if len(fields) == 0 {
			zap.L().Warn("reconcile: staged row has no place", zap.String("account_id", row.AccountID))
			r.mark(ctx, row.AccountID, model.SyncError, "no place data to push")
			res.Failed++
			continue
		}
		if dryRun {
			zap.L().Info("reconcile: [dry run] would update account",
				zap.String("account_id", row.AccountID),
				zap.Any("fields", fields),
			)
			res.Success++
			continue
		}
		updates = append(updates, salesforce.AccountUpdate{ID: row.AccountID, Fields: fields})
	}
	if dryRun || len(updates) == 0 {
		return res, nil
	}

	results, pushErr := salesforce.BulkUpdateAccounts(ctx, r.sf, updates)
	if pushErr != nil {
		zap.L().Error("reconcile: bulk update had failed batches", zap.Error(pushErr))
	}

	fields := make(map[string]map[string]any, len(updates))
	for _, u := range updates {
		fields[u.ID] = u.Fields
	}

	for _, cr := range results {
		if !cr.Success && cr.BatchFailed {
			cr = r.pushOne(ctx, cr, fields[cr.ID])
		}
		if cr.Success {
			r.mark(ctx, cr.ID, model.SyncSynced, "")
			res.Success++
			continue
		}
		msg := strings.Join(cr.Errors, "; ")
		zap.L().Warn("reconcile: account update failed", zap.String("account_id", cr.ID), zap.String("error", msg))
		r.mark(ctx, cr.ID, model.SyncError, msg)
		res.Failed++
	}
	return res, nil
}

// pushOne retries a record from a failed collection request on its own.
func (r *Reconciler) pushOne(ctx context.Context, cr salesforce.CollectionResult, fields map[string]any) salesforce.CollectionResult {
	if err := salesforce.UpdateAccount(ctx, r.sf, cr.ID, fields); err != nil {
		return salesforce.CollectionResult{ID: cr.ID, Errors: []string{err.Error()}}
	}
	zap.L().Debug("reconcile: pushed account individually", zap.String("account_id", cr.ID))
	return salesforce.CollectionResult{ID: cr.ID, Success: true}
}

func (r *Reconciler) mark(ctx context.Context, accountID string, status model.SyncStatus, msg string) {
	r.metrics.RecordSync(status)
	if err := r.store.UpdateSyncStatus(context.WithoutCancel(ctx), accountID, status, msg); err != nil {
		zap.L().Error("reconcile: update sync status failed",
			zap.String("account_id", accountID),
			zap.String("sync_status", string(status)),
			zap.Error(err),
		)
	}
}
