package main

import (
	"context"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/store"
	sfpkg "github.com/sells-group/maps-enrich/pkg/salesforce"
)

var (
	dedupeCommit bool
	dedupeLimit  int
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge Salesforce accounts that share a Google place ID",
	Long:  "Finds place IDs staged for several accounts, picks a master per place and merges the others into it through the Salesforce merge API. Merges cannot be undone, so the command only logs the plan unless --commit is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "dedupe")
		if err != nil {
			return err
		}
		defer env.Close()

		dryRun := !dedupeCommit
		res, err := dedupePlaces(ctx, env.Store, env.SF, dedupeLimit, dryRun)
		if err != nil {
			return err
		}

		zap.L().Info("dedupe complete",
			zap.Int("places", res.Places),
			zap.Int("merged", res.Merged),
			zap.Int("failed", res.Failed),
			zap.Bool("dry_run", dryRun),
		)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeCommit, "commit", false, "execute the merges; without it they are only logged")
	dedupeCmd.Flags().IntVar(&dedupeLimit, "limit", 50, "max place IDs to process")
	rootCmd.AddCommand(dedupeCmd)
}

type dedupeResult struct {
	Places int
	Merged int
	Failed int
}

// dedupePlaces merges the Salesforce accounts behind each duplicated staged
// place ID. A failed lookup or merge is logged and counted; only listing the
// duplicates from the store is fatal.
func dedupePlaces(ctx context.Context, st store.Store, sf sfpkg.Client, limit int, dryRun bool) (dedupeResult, error) {
	var res dedupeResult

	places, err := st.DuplicatePlaceIDs(ctx, limit)
	if err != nil {
		return res, eris.Wrap(err, "dedupe: list duplicate place ids")
	}

	for _, pc := range places {
		if ctx.Err() != nil {
			break
		}
		log := zap.L().With(zap.String("place_id", pc.PlaceID))

		accounts, err := sfpkg.FindAccountsByPlaceID(ctx, sf, pc.PlaceID)
		if err != nil {
			log.Error("lookup failed", zap.Error(err))
			res.Failed++
			continue
		}
		if len(accounts) < 2 {
			log.Debug("no duplicates left in salesforce", zap.Int("accounts", len(accounts)))
			continue
		}
		res.Places++

		master, dups := pickMaster(accounts)
		log = log.With(zap.String("master_id", master.ID), zap.Strings("duplicate_ids", dups))
		if dryRun {
			log.Info("[DRY RUN] would merge accounts")
			continue
		}
		if err := sfpkg.MergeAccounts(ctx, sf, master.ID, dups); err != nil {
			log.Error("merge failed", zap.Error(err))
			res.Failed++
			continue
		}
		log.Info("merged accounts")
		res.Merged += len(dups)
	}
	return res, nil
}

// pickMaster keeps the account with the most recent activity, then a
// customer, then the lowest ID. The rest are returned as duplicates.
func pickMaster(accounts []sfpkg.PlaceAccount) (sfpkg.PlaceAccount, []string) {
	sorted := slices.Clone(accounts)
	slices.SortFunc(sorted, func(a, b sfpkg.PlaceAccount) int {
		// ISO dates compare lexically; a missing date sorts last.
		if c := strings.Compare(b.LastActivityDate, a.LastActivityDate); c != 0 {
			return c
		}
		if ac, bc := a.Type == "Customer", b.Type == "Customer"; ac != bc {
			if ac {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	dups := make([]string, 0, len(sorted)-1)
	for _, a := range sorted[1:] {
		dups = append(dups, a.ID)
	}
	return sorted[0], dups
}
