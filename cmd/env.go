package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/internal/config"
	"github.com/ridgeline-research/accident-cli/internal/cost"
	"github.com/ridgeline-research/accident-cli/internal/extract"
	"github.com/ridgeline-research/accident-cli/internal/fetcher"
	"github.com/ridgeline-research/accident-cli/internal/pipeline"
	"github.com/ridgeline-research/accident-cli/internal/preextract"
	"github.com/ridgeline-research/accident-cli/internal/store"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

// env bundles the components shared across commands.
type env struct {
	Client   openai.Client
	Gate     budget.Gate
	Costs    *cost.Tracker
	Clock    *artifacts.Clock
	Store    *store.SQLiteStore
	Pipeline *pipeline.Pipeline
}

// newEnv builds the shared components from config. The LLM client is nil
// when no API key is configured; every consumer fails soft in that case.
func newEnv(cfg *config.Config) (*env, error) {
	clock, err := artifacts.NewClock(cfg.Artifacts.Timezone)
	if err != nil {
		return nil, eris.Wrap(err, "main: load timezone")
	}

	e := &env{
		Gate:  budget.NewFileStore(cfg.Budget.StatePath, cfg.Budget.MaxCalls),
		Costs: cost.NewTracker(),
		Clock: clock,
	}
	if cfg.OpenAI.Key != "" {
		e.Client = openai.NewClient(cfg.OpenAI.Key)
	}
	return e, nil
}

// newPipelineEnv extends newEnv with the fetch-extract pipeline and the
// sqlite index.
func newPipelineEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	e, err := newEnv(cfg)
	if err != nil {
		return nil, err
	}

	gazetteer, err := loadGazetteer(cfg.Artifacts.Gazetteer)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Path != "" {
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		e.Store = st
	}

	e.Pipeline = &pipeline.Pipeline{
		Fetcher:      fetcher.NewHTTPFetcher(time.Duration(cfg.Fetcher.TimeoutSecs)*time.Second, cfg.Fetcher.RatePerSecond),
		Pre:          preextract.New(gazetteer),
		Extractor:    extract.NewExtractor(e.Client, e.Gate, cfg.OpenAI.ExtractModel, e.Costs),
		Clock:        e.Clock,
		BaseDir:      cfg.Artifacts.Dir,
		Store:        e.Store,
		FetchWorkers: cfg.Batch.FetchWorkers,
	}
	return e, nil
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// logCosts writes the per-phase cost summary at the end of a run.
func (e *env) logCosts() {
	summary := e.Costs.Summary()
	if len(summary) == 0 {
		return
	}
	fields := []zap.Field{zap.Float64("total_usd", e.Costs.Total())}
	for phase, usage := range summary {
		fields = append(fields, zap.Any(phase, usage))
	}
	zap.L().Info("llm usage", fields...)
}

// loadGazetteer reads an optional JSON word list of mountain names.
func loadGazetteer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "main: read gazetteer %s", path)
	}
	var words []string
	if err := json.Unmarshal(data, &words); err != nil {
		return nil, eris.Wrapf(err, "main: parse gazetteer %s", path)
	}
	return words, nil
}
