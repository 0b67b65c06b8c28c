package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/maps-enrich/internal/metrics"
	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/pkg/salesforce"
)

// Default pagination settings.
const (
	DefaultPageSize = 1000
	DefaultWorkers  = 20
)

// Source pages through accounts still missing enrichment, ordered by ID.
type Source interface {
	ListUnenriched(ctx context.Context, afterID string, limit int) ([]model.Account, error)
}

// Processor turns an account into a terminal outcome.
type Processor interface {
	Enrich(ctx context.Context, acct model.Account) model.Outcome
}

// SalesforceSource reads unenriched accounts from Salesforce.
type SalesforceSource struct {
	Client salesforce.Client
}

func (s SalesforceSource) ListUnenriched(ctx context.Context, afterID string, limit int) ([]model.Account, error) {
	accounts, err := salesforce.ListUnenrichedAccounts(ctx, s.Client, afterID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Account, len(accounts))
	for i, a := range accounts {
		out[i] = a.ToModel()
	}
	return out, nil
}

// DriverConfig sizes a run. Limit 0 means no cap.
type DriverConfig struct {
	PageSize int
	Workers  int
	Limit    int
	RunID    string
}

// Driver pages through the source and fans each page out to a bounded worker
// pool. Pages are strictly sequential.
type Driver struct {
	source  Source
	proc    Processor
	cfg     DriverConfig
	metrics *metrics.Metrics
}

// NewDriver returns a Driver, applying defaults for unset sizes.
func NewDriver(source Source, proc Processor, cfg DriverConfig, m *metrics.Metrics) *Driver {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Driver{source: source, proc: proc, cfg: cfg, metrics: m}
}

// Run processes accounts until the source is exhausted, the limit is reached
// or ctx is cancelled. Only a page-fetch failure is returned as an error. The
// summary is always logged.
func (d *Driver) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	stats := NewStats()
	sum.RunID = d.cfg.RunID

	defer func() {
		sum.Processed = stats.Processed()
		sum.Counts = stats.Counts()
		sum.Duration = time.Since(start)
		zap.L().Info("enrich: run summary", sum.Fields()...)
	}()

	for {
		if ctx.Err() != nil {
			zap.L().Warn("enrich: interrupted, stopping before next page", zap.String("last_id", sum.LastID))
			sum.Interrupted = true
			return sum, nil
		}

		fetch := d.cfg.PageSize
		if d.cfg.Limit > 0 {
			remaining := d.cfg.Limit - stats.Processed()
			if remaining <= 0 {
				return sum, nil
			}
			fetch = min(fetch, remaining)
		}

		page, err := d.source.ListUnenriched(ctx, sum.LastID, fetch)
		if err != nil {
			zap.L().Error("enrich: page fetch failed", zap.String("after", sum.LastID), zap.Error(err))
			return sum, eris.Wrapf(err, "enrich: fetch page after %q", sum.LastID)
		}
		d.metrics.RecordPage()
		sum.Pages++

		if len(page) == 0 {
			return sum, nil
		}
		zap.L().Info("enrich: processing page",
			zap.Int("page", sum.Pages),
			zap.Int("accounts", len(page)),
			zap.String("after", sum.LastID),
		)

		var g errgroup.Group
		g.SetLimit(d.cfg.Workers)
		for _, acct := range page {
			g.Go(func() error {
				out := d.proc.Enrich(ctx, acct)
				stats.Add(out.Status)
				return nil
			})
		}
		_ = g.Wait()

		sum.LastID = page[len(page)-1].ID
		if len(page) < fetch {
			return sum, nil
		}
	}
}
