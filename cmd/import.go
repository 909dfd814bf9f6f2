package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Rebuild the sqlite artifact index from the artifacts tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		if cfg.Store.Path == "" {
			return eris.New("store.path is not configured")
		}

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		paths, err := artifacts.Walk(cfg.Artifacts.Dir)
		if err != nil {
			return err
		}

		imported, skipped := 0, 0
		for _, p := range paths {
			doc, err := artifacts.ReadJSON(p)
			if err != nil {
				zap.L().Warn("skipping unreadable artifact", zap.String("path", p), zap.Error(err))
				skipped++
				continue
			}
			if err := st.Upsert(ctx, doc); err != nil {
				zap.L().Warn("skipping artifact", zap.String("path", p), zap.Error(err))
				skipped++
				continue
			}
			imported++
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.Int("skipped", skipped),
			zap.String("db", cfg.Store.Path),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
