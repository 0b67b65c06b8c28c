package enrich

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/match"
	"github.com/sells-group/maps-enrich/internal/metrics"
	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/resilience"
	"github.com/sells-group/maps-enrich/internal/store"
	"github.com/sells-group/maps-enrich/pkg/serpapi"
)

// Outcome messages.
const (
	MsgInsufficientData = "Insufficient data"
	MsgNoResult         = "No SERP results found"
	MsgEnriched         = "Enrichment successful"
)

// Checker reports whether an account was handled by an earlier run.
type Checker interface {
	Processed(ctx context.Context, accountID string) (bool, error)
}

// Marker records accounts that reached a resumable status.
type Marker interface {
	Mark(accountID string, status model.Status, at time.Time) error
}

// Auditor writes one audit row per outcome.
type Auditor interface {
	Write(o model.Outcome) error
}

// Options configures an Enricher. Search, Store and Checker are required.
type Options struct {
	Search    serpapi.Client
	Guard     resilience.Guard
	Store     store.Store
	Checker   Checker
	Processed Marker
	Audit     Auditor
	Metrics   *metrics.Metrics
	Threshold int
	QueryTerm string
	RunID     string
}

// Enricher runs one account through search, scoring and persistence. Safe for
// concurrent use when its collaborators are.
type Enricher struct {
	opts Options
	now  func() time.Time
}

// NewEnricher returns an Enricher.
func NewEnricher(opts Options) *Enricher {
	if opts.QueryTerm == "" {
		opts.QueryTerm = DefaultQueryTerm
	}
	return &Enricher{opts: opts, now: time.Now}
}

// Enrich returns exactly one terminal outcome for acct. It never returns an
// error; failures, panics included, become ERROR outcomes. Every outcome except
// ALREADY_PROCESSED is persisted before return.
func (e *Enricher) Enrich(ctx context.Context, acct model.Account) (out model.Outcome) {
	log := zap.L().With(zap.String("account_id", acct.ID))

	out = model.Outcome{
		AccountID:   acct.ID,
		AccountName: acct.Name,
		RunID:       e.opts.RunID,
		Timestamp:   e.now(),
	}

	persist := true
	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: panic", zap.Any("panic", r), zap.Stack("stack"))
			out = model.Outcome{
				AccountID:   acct.ID,
				AccountName: acct.Name,
				Status:      model.StatusError,
				Message:     fmt.Sprint(r),
				RunID:       e.opts.RunID,
				Timestamp:   out.Timestamp,
			}
			persist = true
		}
		if persist {
			e.record(ctx, out)
		}
	}()

	done, err := e.opts.Checker.Processed(ctx, acct.ID)
	if err != nil {
		log.Warn("enrich: pre-check failed, processing anyway", zap.Error(err))
	}
	if done {
		log.Debug("enrich: already processed")
		persist = false
		out.Status = model.StatusAlreadyProcessed
		e.opts.Metrics.RecordOutcome(out.Status)
		return out
	}

	return e.process(ctx, acct, out, log)
}

func (e *Enricher) process(ctx context.Context, acct model.Account, out model.Outcome, log *zap.Logger) model.Outcome {
	query := BuildQuery(acct, e.opts.QueryTerm)
	if query == "" {
		out.Status, out.Message = model.StatusSkipped, MsgInsufficientData
		return out
	}

	log.Debug("enrich: searching", zap.String("query", query))
	start := time.Now()
	resp, err := resilience.Call(ctx, e.opts.Guard, "serpapi search", func(ctx context.Context) (*serpapi.Response, error) {
		return e.opts.Search.Search(ctx, query)
	})
	e.opts.Metrics.ObserveSearch(time.Since(start), err)
	if err != nil {
		log.Error("enrich: search failed", zap.Error(err))
		out.Status, out.Message = model.StatusError, err.Error()
		return out
	}

	best := resp.Best()
	if best == nil {
		out.Status, out.Message = model.StatusNoResult, MsgNoResult
		return out
	}

	out.Place = MapResult(best, out.Timestamp)
	score := match.Best(acct.Name, acct.AltName, out.Place.Title)
	out.MatchScore, out.MatchedField = score.Score, score.Field

	if !score.Pass(e.opts.Threshold) {
		log.Warn("enrich: sanity check failed",
			zap.String("title", out.Place.Title),
			zap.Int("score", score.Score),
		)
		out.Status = model.StatusSanityCheck
		out.Message = fmt.Sprintf("Best match: %d%% < %d%%", score.Score, e.opts.Threshold)
		return out
	}

	log.Info("enrich: matched",
		zap.String("field", score.Field),
		zap.Int("score", score.Score),
		zap.String("place_id", out.Place.PlaceID),
	)
	out.Status, out.Message = model.StatusEnriched, MsgEnriched
	out.SyncStatus = model.SyncPending
	return out
}

// record persists a terminal outcome. Write failures and panics are logged,
// not returned; one failing sink does not stop the others.
func (e *Enricher) record(ctx context.Context, out model.Outcome) {
	log := zap.L().With(zap.String("account_id", out.AccountID), zap.String("status", string(out.Status)))

	// Drained outcomes still land after a cancel.
	ctx = context.WithoutCancel(ctx)

	guarded(log, "stage result", func() error { return e.opts.Store.SaveResult(ctx, out) })
	guarded(log, "append history", func() error { return e.opts.Store.AppendHistory(ctx, out) })
	if e.opts.Processed != nil {
		guarded(log, "mark processed", func() error {
			return e.opts.Processed.Mark(out.AccountID, out.Status, out.Timestamp)
		})
	}
	if e.opts.Audit != nil {
		guarded(log, "audit write", func() error { return e.opts.Audit.Write(out) })
	}
	e.opts.Metrics.RecordOutcome(out.Status)
}

func guarded(log *zap.Logger, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("enrich: "+step+" panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if err := fn(); err != nil {
		log.Error("enrich: "+step+" failed", zap.Error(err))
	}
}
