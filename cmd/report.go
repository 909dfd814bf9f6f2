package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/report"
)

var (
	reportAudience        string
	reportFamilySensitive bool
	reportDryRun          bool
)

var reportCmd = &cobra.Command{
	Use:   "report [event-id]",
	Short: "Render Markdown incident reports from fused events",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		if reportAudience != "climbers" && reportAudience != "general" {
			return eris.Errorf("unknown audience %q (want climbers or general)", reportAudience)
		}

		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		gen := report.NewGenerator(e.Client, e.Gate,
			cfg.Report.PlannerModel, cfg.Report.WriterModel, cfg.Report.VerifierModel,
			e.Costs, cfg.Events.Dir)

		var ids []string
		if len(args) == 1 {
			ids = args
		} else {
			ids, err = gen.EventIDs()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				zap.L().Info("no fused events to report on")
				return nil
			}
		}

		wrote := 0
		for _, eid := range ids {
			path, err := gen.Generate(ctx, eid, reportAudience, reportFamilySensitive, reportDryRun)
			if err != nil {
				return eris.Wrapf(err, "report %s", eid)
			}
			if path != "" {
				wrote++
				zap.L().Info("wrote report", zap.String("path", path))
			}
		}

		zap.L().Info("reports complete",
			zap.Int("written", wrote),
			zap.Int("events", len(ids)),
			zap.Bool("dry_run", reportDryRun),
		)
		e.logCosts()
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportAudience, "audience", "climbers", "report audience: climbers or general")
	reportCmd.Flags().BoolVar(&reportFamilySensitive, "family-sensitive", true, "use a sensitive tone and suggest redactions")
	reportCmd.Flags().BoolVar(&reportDryRun, "dry-run", false, "compose reports without writing files")
	rootCmd.AddCommand(reportCmd)
}
