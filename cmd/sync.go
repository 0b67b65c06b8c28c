package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/maps-enrich/internal/reconcile"
)

var (
	syncDryRun bool
	syncLimit  int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending staged results to Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		limit := cfg.Sync.Limit
		if cmd.Flags().Changed("limit") {
			limit = syncLimit
		}

		res, err := reconcile.New(env.Store, env.SF, env.Metrics).Run(ctx, limit, syncDryRun)
		if err != nil {
			return err
		}

		zap.L().Info("sync complete",
			zap.Int("success", res.Success),
			zap.Int("failed", res.Failed),
			zap.Bool("dry_run", res.DryRun),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "log payloads without writing to Salesforce")
	syncCmd.Flags().IntVar(&syncLimit, "limit", reconcile.DefaultLimit, "max pending rows to push")
	rootCmd.AddCommand(syncCmd)
}
