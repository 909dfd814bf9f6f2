// Package pipeline orchestrates the article-to-artifact flow: fetch,
// deterministic pre-extraction, LLM extraction, postprocessing,
// confidence scoring, and artifact writing.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/extract"
	"github.com/ridgeline-research/accident-cli/internal/fetcher"
	"github.com/ridgeline-research/accident-cli/internal/postprocess"
	"github.com/ridgeline-research/accident-cli/internal/preextract"
	"github.com/ridgeline-research/accident-cli/internal/store"
)

// Pipeline wires the stages together. Store is optional; when set every
// written artifact is also upserted into the sqlite index.
type Pipeline struct {
	Fetcher   fetcher.Fetcher
	Pre       *preextract.Extractor
	Extractor *extract.Extractor
	Clock     *artifacts.Clock
	BaseDir   string
	Store     *store.SQLiteStore

	// FetchWorkers bounds parallel fetching in batch mode.
	FetchWorkers int
}

// Run processes one URL end to end and returns the written artifact path.
// Fetch failures degrade to an empty article so a blocked page still
// produces a traceable artifact.
func (p *Pipeline) Run(ctx context.Context, url string) (string, error) {
	outDir, err := artifacts.OutDir(p.BaseDir, url, p.Clock.Stamp())
	if err != nil {
		return "", err
	}

	art := p.fetch(ctx, url)
	pre := p.Pre.Extract(art.FocusedText)

	obj, err := p.Extractor.Extract(ctx, art.FocusedText, pre)
	if err != nil {
		return "", err
	}
	if _, ok := pre["gazetteer_matches"]; ok {
		obj["gazetteer_matches"] = pre["gazetteer_matches"]
	}
	info := postprocess.Clean(obj)
	p.score(pre, info)
	p.supplementMeta(art.FocusedText, info)

	payload := map[string]any{
		"extracted_at":      p.Clock.NowISO(),
		"article_text":      art.FocusedText,
		"scraped_full_text": art.FullText,
	}
	for k, v := range info {
		payload[k] = v
	}
	// the canonical URL wins over anything the model produced
	payload["source_url"] = firstOf(art.FinalURL, url)

	path := filepath.Join(outDir, artifacts.InfoFileName)
	if err := artifacts.WriteJSON(path, payload); err != nil {
		return "", err
	}
	p.index(ctx, payload)
	zap.L().Info("wrote artifact", zap.String("path", path))
	return path, nil
}

// RunBatch processes URLs in groups of batchSize with one LLM call per
// group. Fetching within a group runs in parallel; extraction stays a
// single blocking call. Returns the written artifact paths.
func (p *Pipeline) RunBatch(ctx context.Context, urls []string, batchSize int) ([]string, error) {
	if batchSize < 1 {
		return nil, eris.New("pipeline: batch size must be >= 1")
	}
	var written []string
	for start := 0; start < len(urls); start += batchSize {
		end := start + batchSize
		if end > len(urls) {
			end = len(urls)
		}
		paths, err := p.runGroup(ctx, urls[start:end])
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	return written, nil
}

type fetched struct {
	article *fetcher.Article
	pre     map[string]any
	outDir  string
}

func (p *Pipeline) runGroup(ctx context.Context, batch []string) ([]string, error) {
	results := make([]fetched, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	workers := p.FetchWorkers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, u := range batch {
		g.Go(func() error {
			outDir, err := artifacts.OutDir(p.BaseDir, u, p.Clock.Stamp())
			if err != nil {
				return err
			}
			art := p.fetch(gctx, u)
			results[i] = fetched{
				article: art,
				pre:     p.Pre.Extract(art.FocusedText),
				outDir:  outDir,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]extract.BatchItem, len(batch))
	for i, u := range batch {
		items[i] = extract.BatchItem{
			URL:          u,
			PreExtracted: results[i].pre,
			Article:      results[i].article.FocusedText,
		}
	}

	arr, err := p.Extractor.ExtractBatch(ctx, items)
	if eris.Is(err, extract.ErrSkipped) {
		return p.writeMinimal(ctx, batch, results), nil
	}
	if err != nil {
		zap.L().Warn("batch llm extraction failed, skipping batch", zap.Error(err))
		return nil, nil
	}

	n := len(arr)
	if n > len(batch) {
		n = len(batch)
	}
	if len(arr) != len(batch) {
		zap.L().Warn("batch response length mismatch",
			zap.Int("returned", len(arr)), zap.Int("requested", len(batch)), zap.Int("aligned", n))
	}

	var written []string
	for idx := 0; idx < n; idx++ {
		info := postprocess.Clean(arr[idx])
		if _, ok := info["extraction_confidence_score"]; !ok {
			info["extraction_confidence_score"] = postprocess.ComputeConfidence(results[idx].pre, info)
		}
		payload := map[string]any{
			"extracted_at":      p.Clock.NowISO(),
			"article_text":      results[idx].article.FocusedText,
			"scraped_full_text": results[idx].article.FullText,
		}
		for k, v := range info {
			payload[k] = v
		}
		// the requested URL wins over anything the model produced
		payload["source_url"] = batch[idx]

		path := filepath.Join(results[idx].outDir, artifacts.InfoFileName)
		if err := artifacts.WriteJSON(path, payload); err != nil {
			return written, err
		}
		p.index(ctx, payload)
		written = append(written, path)
	}
	return written, nil
}

// writeMinimal writes pre-extraction-only artifacts when the LLM path is
// unavailable, so fetched evidence is never lost.
func (p *Pipeline) writeMinimal(ctx context.Context, batch []string, results []fetched) []string {
	var written []string
	for idx, u := range batch {
		payload := map[string]any{
			"extracted_at":      p.Clock.NowISO(),
			"article_text":      results[idx].article.FocusedText,
			"scraped_full_text": results[idx].article.FullText,
			"pre_extracted":     results[idx].pre,
			"source_url":        firstOf(results[idx].article.FinalURL, u),
		}
		path := filepath.Join(results[idx].outDir, artifacts.InfoFileName)
		if err := artifacts.WriteJSON(path, payload); err != nil {
			zap.L().Warn("minimal artifact write failed", zap.String("url", u), zap.Error(err))
			continue
		}
		p.index(ctx, payload)
		written = append(written, path)
	}
	return written
}

// fetch degrades to an empty article on failure so downstream stages can
// still run and record what was attempted.
func (p *Pipeline) fetch(ctx context.Context, url string) *fetcher.Article {
	art, err := p.Fetcher.Fetch(ctx, url)
	if err != nil {
		zap.L().Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return &fetcher.Article{FinalURL: url}
	}
	return art
}

// score fills the confidence score: deterministic when the model gave
// none, blended toward deterministic evidence otherwise.
func (p *Pipeline) score(pre, info map[string]any) {
	det := postprocess.ComputeConfidence(pre, info)
	if model, ok := info["extraction_confidence_score"].(float64); ok {
		info["extraction_confidence_score"] = postprocess.BlendConfidence(model, det)
	} else {
		info["extraction_confidence_score"] = det
	}
}

// supplementMeta backfills publication metadata the model missed from
// deterministic byline and date parsing.
func (p *Pipeline) supplementMeta(text string, info map[string]any) {
	if _, ok := info["article_date_published"]; !ok {
		if d := fetcher.ParsePublicationDate(text); d != "" {
			info["article_date_published"] = d
		}
	}
	if _, ok := info["article_author"]; !ok {
		if a := fetcher.ParseReportAuthor(text); a != "" {
			info["article_author"] = a
		}
	}
}

func (p *Pipeline) index(ctx context.Context, payload map[string]any) {
	if p.Store == nil {
		return
	}
	if err := p.Store.Upsert(ctx, payload); err != nil {
		zap.L().Warn("artifact index upsert failed", zap.Error(err))
	}
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
