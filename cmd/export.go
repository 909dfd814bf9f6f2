package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the artifacts tree as a flat CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		paths, err := artifacts.Walk(cfg.Artifacts.Dir)
		if err != nil {
			return err
		}
		var docs []map[string]any
		for _, p := range paths {
			doc, err := artifacts.ReadJSON(p)
			if err != nil {
				zap.L().Warn("skipping unreadable artifact", zap.String("path", p), zap.Error(err))
				continue
			}
			docs = append(docs, doc)
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", exportOut)
		}
		defer f.Close()

		if err := artifacts.ExportCSV(f, docs); err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("rows", len(docs)), zap.String("out", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output CSV path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
