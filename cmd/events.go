package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/events"
)

var (
	eventsDryRun     bool
	eventsCacheClear bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Cluster artifacts into events and fuse multi-source records",
}

var eventsAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a shared event_id to artifacts describing the same accident",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("events"); err != nil {
			return err
		}

		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		clusterer := events.NewClusterer(e.Client, e.Gate, cfg.OpenAI.ClusterModel, e.Costs, cfg.Events.CacheDir)
		stats, err := clusterer.Assign(ctx, cfg.Artifacts.Dir, eventsDryRun, eventsCacheClear)
		if err != nil {
			return eris.Wrap(err, "events assign")
		}

		zap.L().Info("event assignment complete",
			zap.Int("files", stats.Files),
			zap.Int("clusters", stats.Clusters),
			zap.Int("written", stats.Written),
			zap.Bool("dry_run", eventsDryRun),
		)
		e.logCosts()
		return nil
	},
}

var eventsFuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Merge OCR cues and fuse multi-source events into canonical records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("events"); err != nil {
			return err
		}

		e, err := newEnv(cfg)
		if err != nil {
			return err
		}

		root, err := os.Getwd()
		if err != nil {
			root = ""
		}
		fuser := events.NewFuser(e.Client, e.Gate, cfg.OpenAI.MergeModel, cfg.OpenAI.FusionModel,
			e.Costs, cfg.Events.Dir, cfg.Events.CacheDir, root)
		stats, err := fuser.Run(ctx, cfg.Artifacts.Dir, eventsDryRun, eventsCacheClear)
		if err != nil {
			return eris.Wrap(err, "events fuse")
		}

		zap.L().Info("merge and fusion complete",
			zap.Int("events", stats.Events),
			zap.Int("enriched", stats.Enriched),
			zap.Int("fused", stats.Fused),
			zap.Bool("dry_run", eventsDryRun),
		)
		e.logCosts()
		return nil
	},
}

func init() {
	eventsCmd.PersistentFlags().BoolVar(&eventsDryRun, "dry-run", false, "compute results without writing files")
	eventsCmd.PersistentFlags().BoolVar(&eventsCacheClear, "cache-clear", false, "ignore caches and recompute")
	eventsCmd.AddCommand(eventsAssignCmd)
	eventsCmd.AddCommand(eventsFuseCmd)
	rootCmd.AddCommand(eventsCmd)
}
