package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/maps-enrich/internal/monitoring"
	sfpkg "github.com/sells-group/maps-enrich/pkg/salesforce"
)

var (
	statsFormat string
	statsAlert  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show staging status breakdown and sync health",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if statsFormat != "json" && statsFormat != "yaml" {
			return eris.Errorf("unsupported format %q (json or yaml)", statsFormat)
		}

		env, err := initEnv(ctx, "stats")
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store, func(ctx context.Context) (int, error) {
			return sfpkg.CountUnenrichedAccounts(ctx, env.SF)
		})

		var alerter *monitoring.Alerter
		if statsAlert {
			alerter = monitoring.NewAlerter(cfg.Monitoring)
		}

		report, err := monitoring.Check(ctx, collector, alerter)
		if err != nil {
			return err
		}
		return writeReport(os.Stdout, report, statsFormat)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "json", "output format: json or yaml")
	statsCmd.Flags().BoolVar(&statsAlert, "alert", false, "evaluate alert thresholds and post to the webhook")
	rootCmd.AddCommand(statsCmd)
}

func writeReport(w io.Writer, report *monitoring.Report, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "encode yaml report")
		}
		return eris.Wrap(enc.Close(), "flush yaml report")
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode json report")
	}
}
