package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract structured accident info from one article URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		e, err := newPipelineEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		runID := startRun(ctx, e, "extract", 1)

		path, err := e.Pipeline.Run(ctx, args[0])
		if err != nil {
			finishRun(ctx, e, runID, "failed")
			return eris.Wrap(err, "extract run")
		}
		finishRun(ctx, e, runID, "completed")

		zap.L().Info("extraction complete", zap.String("artifact", path))
		e.logCosts()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
