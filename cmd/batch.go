package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	batchFile string
	batchSize int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract accident info for a list of URLs with one LLM call per group",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		urls, err := readURLFile(batchFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return eris.Errorf("no urls found in %s", batchFile)
		}

		size := batchSize
		if size == 0 {
			size = cfg.Batch.Size
		}

		e, err := newPipelineEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		runID := startRun(ctx, e, "batch", len(urls))

		written, err := e.Pipeline.RunBatch(ctx, urls, size)
		if err != nil {
			finishRun(ctx, e, runID, "failed")
			return eris.Wrap(err, "batch run")
		}
		finishRun(ctx, e, runID, "completed")

		zap.L().Info("batch complete",
			zap.Int("urls", len(urls)),
			zap.Int("written", len(written)),
		)
		e.logCosts()
		return nil
	},
}

// readURLFile reads one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open url file %s", path)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read url file %s", path)
	}
	return urls, nil
}

// startRun records a run row when the sqlite index is configured.
func startRun(ctx context.Context, e *env, mode string, urlCount int) string {
	if e.Store == nil {
		return ""
	}
	id, err := e.Store.StartRun(ctx, mode, urlCount)
	if err != nil {
		zap.L().Warn("run tracking unavailable", zap.Error(err))
		return ""
	}
	return id
}

func finishRun(ctx context.Context, e *env, id, status string) {
	if e.Store == nil || id == "" {
		return
	}
	if err := e.Store.FinishRun(ctx, id, status); err != nil {
		zap.L().Warn("run finish not recorded", zap.Error(err))
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to a file with one article URL per line (required)")
	batchCmd.Flags().IntVar(&batchSize, "batch-size", 0, "urls per LLM call (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
