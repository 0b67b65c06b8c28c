package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/cost"
	"github.com/sells-group/maps-enrich/internal/enrich"
	"github.com/sells-group/maps-enrich/internal/ledger"
	"github.com/sells-group/maps-enrich/internal/reconcile"
)

const processedFile = "processed_accounts.csv"

var (
	enrichDryRun      bool
	enrichLimit       int
	enrichSync        bool
	enrichSyncOnly    bool
	enrichWorkers     int
	enrichPageSize    int
	enrichMetricsAddr string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich unenriched Salesforce accounts from Google Maps",
	Long:  "Pages through unenriched accounts, searches each on Google Maps, and stages validated matches. --sync pushes staged rows to Salesforce afterwards.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("workers") {
			cfg.Enrich.Workers = enrichWorkers
		}
		if cmd.Flags().Changed("page-size") {
			cfg.Enrich.PageSize = enrichPageSize
		}
		addr := cfg.Metrics.Addr
		if cmd.Flags().Changed("metrics-addr") {
			addr = enrichMetricsAddr
		}

		mode := "enrich"
		if enrichSyncOnly {
			mode = "sync"
		}
		env, err := initEnv(ctx, mode)
		if err != nil {
			return err
		}
		defer env.Close()

		serveMetrics(ctx, addr, env.Registry)

		if !enrichSyncOnly {
			if err := runEnrichment(ctx, env); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		if enrichSync || enrichSyncOnly {
			limit := cfg.Sync.Limit
			if enrichLimit > 0 {
				limit = enrichLimit
			}
			res, err := reconcile.New(env.Store, env.SF, env.Metrics).Run(ctx, limit, enrichDryRun)
			if err != nil {
				return err
			}
			zap.L().Info("sync complete",
				zap.Int("success", res.Success),
				zap.Int("failed", res.Failed),
				zap.Bool("dry_run", res.DryRun),
			)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichDryRun, "dry-run", false, "simulate the sync pass without writing to Salesforce")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max accounts to process (0 = all)")
	enrichCmd.Flags().BoolVar(&enrichSync, "sync", false, "push staged rows to Salesforce after enrichment")
	enrichCmd.Flags().BoolVar(&enrichSyncOnly, "sync-only", false, "skip enrichment and only push staged rows")
	enrichCmd.Flags().IntVar(&enrichWorkers, "workers", enrich.DefaultWorkers, "concurrent accounts per page")
	enrichCmd.Flags().IntVar(&enrichPageSize, "page-size", enrich.DefaultPageSize, "accounts fetched per page")
	enrichCmd.Flags().StringVar(&enrichMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(enrichCmd)
}

// runEnrichment wires the enricher and the pagination driver for one run.
func runEnrichment(ctx context.Context, env *appEnv) error {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))

	opts := enrich.Options{
		Search:    initSerp(),
		Guard:     serpGuard(),
		Store:     env.Store,
		Metrics:   env.Metrics,
		Threshold: cfg.Enrich.MatchThreshold,
		QueryTerm: cfg.Enrich.QueryTerm,
		RunID:     runID,
	}

	switch cfg.Enrich.Precheck {
	case "file":
		ps, err := ledger.OpenProcessedSet(filepath.Join(cfg.Enrich.DataDir, processedFile))
		if err != nil {
			return err
		}
		defer ps.Close() //nolint:errcheck
		opts.Checker = ps
		opts.Processed = ps
		log.Info("loaded processed accounts", zap.Int("count", ps.Len()))
	case "remote":
		opts.Checker = enrich.NewRemoteChecker(env.Store)
		log.Info("checking staged accounts per lookup")
	default:
		checker, err := enrich.NewStoreChecker(ctx, env.Store)
		if err != nil {
			return err
		}
		opts.Checker = checker
		log.Info("loaded staged accounts", zap.Int("count", checker.Len()))
	}

	if cfg.Enrich.AuditCSV {
		path := auditPath(cfg.Enrich.DataDir, time.Now())
		audit, err := ledger.OpenAuditLog(path)
		if err != nil {
			return err
		}
		defer audit.Close() //nolint:errcheck
		opts.Audit = audit
		log.Info("writing audit log", zap.String("path", path))
	}

	driver := enrich.NewDriver(
		enrich.SalesforceSource{Client: env.SF},
		enrich.NewEnricher(opts),
		enrich.DriverConfig{
			PageSize: cfg.Enrich.PageSize,
			Workers:  cfg.Enrich.Workers,
			Limit:    enrichLimit,
			RunID:    runID,
		},
		env.Metrics,
	)

	sum, err := driver.Run(ctx)
	if err != nil {
		return eris.Wrap(err, "enrichment run")
	}

	calc := cost.NewCalculator(cost.Rates{
		PlanMonthly:      cfg.SerpAPI.PlanMonthly,
		SearchesIncluded: cfg.SerpAPI.SearchesIncluded,
	})
	log.Info("serpapi usage",
		zap.Int("searches", sum.Searches()),
		zap.Float64("estimated_cost_usd", calc.Searches(sum.Searches())),
		zap.Float64("plan_share", calc.PlanShare(sum.Searches())),
	)
	return nil
}

func auditPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("enrichment_%s.csv", now.Format("20060102_150405")))
}
