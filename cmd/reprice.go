package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/metrics"
	"github.com/sells-group/maps-enrich/internal/price"
	"github.com/sells-group/maps-enrich/internal/store"
)

const repricePageSize = 500

var repriceDryRun bool

var repriceCmd = &cobra.Command{
	Use:   "reprice",
	Short: "Re-normalize staged prices to the $..$$$$ scale",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("reprice"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := repriceAll(ctx, st, repricePageSize, repriceDryRun, nil)
		if err != nil {
			return err
		}

		zap.L().Info("reprice complete",
			zap.Int("scanned", res.Scanned),
			zap.Int("updated", res.Updated),
			zap.Bool("dry_run", repriceDryRun),
		)
		return nil
	},
}

func init() {
	repriceCmd.Flags().BoolVar(&repriceDryRun, "dry-run", false, "report changes without writing them")
	rootCmd.AddCommand(repriceCmd)
}

type repriceResult struct {
	Scanned int
	Updated int
}

// repriceAll seek-pages every staged row with a price and rewrites the ones
// whose re-normalized tier is valid and differs from what is stored. The raw
// provider token is preferred over the stored tier when both exist.
func repriceAll(ctx context.Context, st store.Store, pageSize int, dryRun bool, m *metrics.Metrics) (repriceResult, error) {
	var res repriceResult
	after := ""

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rows, err := st.ListPrices(ctx, after, pageSize)
		if err != nil {
			return res, eris.Wrapf(err, "reprice: list prices after %q", after)
		}

		for _, r := range rows {
			res.Scanned++
			src := r.PriceRaw
			if src == "" {
				src = r.Price
			}
			tier := price.NormalizeString(src)
			if tier == "" || tier == r.Price {
				continue
			}

			log := zap.L().With(
				zap.String("account_id", r.AccountID),
				zap.String("from", r.Price),
				zap.String("to", tier),
			)
			if dryRun {
				log.Info("[DRY RUN] would update price")
				res.Updated++
				continue
			}
			if err := st.UpdatePrice(ctx, r.AccountID, tier); err != nil {
				log.Error("price update failed", zap.Error(err))
				continue
			}
			log.Debug("price updated")
			m.RecordReprice()
			res.Updated++
		}

		if len(rows) < pageSize {
			return res, nil
		}
		after = rows[len(rows)-1].AccountID
	}
}
