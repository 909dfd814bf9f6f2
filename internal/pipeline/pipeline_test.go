package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/internal/extract"
	"github.com/ridgeline-research/accident-cli/internal/fetcher"
	"github.com/ridgeline-research/accident-cli/internal/preextract"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

type stubFetcher struct {
	articles map[string]*fetcher.Article
	err      error
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*fetcher.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	if art, ok := f.articles[url]; ok {
		return art, nil
	}
	return &fetcher.Article{FinalURL: url}, nil
}

type scriptedClient struct {
	responses []string
	requests  []openai.CompletionRequest
}

func (c *scriptedClient) Complete(_ context.Context, req openai.CompletionRequest) (*openai.CompletionResponse, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return &openai.CompletionResponse{Text: "{}"}, nil
	}
	text := c.responses[0]
	c.responses = c.responses[1:]
	return &openai.CompletionResponse{Model: req.Model, Text: text}, nil
}

func testClock(t *testing.T) *artifacts.Clock {
	t.Helper()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	clock, err := artifacts.NewClockAt("UTC", at)
	require.NoError(t, err)
	return clock
}

func newPipeline(t *testing.T, client openai.Client, fetch fetcher.Fetcher, baseDir string) *Pipeline {
	t.Helper()
	ex := extract.NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)
	return &Pipeline{
		Fetcher:      fetch,
		Pre:          preextract.New(nil),
		Extractor:    ex,
		Clock:        testClock(t),
		BaseDir:      baseDir,
		FetchWorkers: 2,
	}
}

func readArtifact(t *testing.T, path string) map[string]any {
	t.Helper()
	doc, err := artifacts.ReadJSON(path)
	require.NoError(t, err)
	return doc
}

const articleText = "A 34-year-old climber fell 100 feet on Mount Currie on July 1, 2025. " +
	"Whistler Search and Rescue recovered the climber."

func TestRunWritesArtifact(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{articles: map[string]*fetcher.Article{
		"https://news.example/story": {
			FullText:    "FULL " + articleText,
			FocusedText: articleText,
			FinalURL:    "https://news.example/story?canonical=1",
		},
	}}
	client := &scriptedClient{responses: []string{
		`{"mountain_name": "Mount Currie", "accident_type": "fall", "num_fatalities": 1}`,
	}}

	p := newPipeline(t, client, fetch, baseDir)
	path, err := p.Run(context.Background(), "https://news.example/story")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(baseDir, "news_example", "20250701_120000", "accident_info.json"), path)

	doc := readArtifact(t, path)
	assert.Equal(t, "Mount Currie", doc["mountain_name"])
	assert.Equal(t, articleText, doc["article_text"])
	assert.Equal(t, "FULL "+articleText, doc["scraped_full_text"])
	// the redirect target wins over the requested URL
	assert.Equal(t, "https://news.example/story?canonical=1", doc["source_url"])
	assert.Contains(t, doc, "extracted_at")
	score, ok := doc["extraction_confidence_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestRunBlendsModelConfidence(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{articles: map[string]*fetcher.Article{
		"https://news.example/story": {FocusedText: articleText, FinalURL: "https://news.example/story"},
	}}
	client := &scriptedClient{responses: []string{
		`{"mountain_name": "Mount Currie", "extraction_confidence_score": 0.5, "num_fatalities": 0}`,
	}}

	p := newPipeline(t, client, fetch, baseDir)
	path, err := p.Run(context.Background(), "https://news.example/story")
	require.NoError(t, err)

	doc := readArtifact(t, path)
	score := doc["extraction_confidence_score"].(float64)
	// 0.4*model + 0.6*deterministic, so a 0.5 model score caps the blend
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.0)
}

func TestRunSurvivesFetchFailure(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{err: assertableErr("blocked")}
	client := &scriptedClient{responses: []string{`{}`}}

	p := newPipeline(t, client, fetch, baseDir)
	path, err := p.Run(context.Background(), "https://news.example/story")
	require.NoError(t, err)

	doc := readArtifact(t, path)
	assert.Equal(t, "https://news.example/story", doc["source_url"])
	assert.Equal(t, "", doc["article_text"])
}

func TestRunBatchWritesPerURLArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{articles: map[string]*fetcher.Article{
		"https://a.example/1": {FocusedText: articleText, FinalURL: "https://a.example/1"},
		"https://b.example/2": {FocusedText: articleText, FinalURL: "https://b.example/2"},
	}}
	client := &scriptedClient{responses: []string{
		`[{"mountain_name": "Mount Currie"}, {"mountain_name": "Sky Pilot"}]`,
	}}

	p := newPipeline(t, client, fetch, baseDir)
	written, err := p.RunBatch(context.Background(), []string{"https://a.example/1", "https://b.example/2"}, 3)
	require.NoError(t, err)
	require.Len(t, written, 2)
	require.Len(t, client.requests, 1, "one llm call per batch")

	docA := readArtifact(t, written[0])
	docB := readArtifact(t, written[1])
	assert.Equal(t, "Mount Currie", docA["mountain_name"])
	assert.Equal(t, "Sky Pilot", docB["mountain_name"])
	// batch artifacts keep the requested URL
	assert.Equal(t, "https://a.example/1", docA["source_url"])
	assert.Equal(t, "https://b.example/2", docB["source_url"])
	assert.Contains(t, docA, "extraction_confidence_score")
}

func TestRunBatchAlignsToShorterResponse(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{}
	client := &scriptedClient{responses: []string{`[{"mountain_name": "Mount Currie"}]`}}

	p := newPipeline(t, client, fetch, baseDir)
	written, err := p.RunBatch(context.Background(), []string{"https://a.example/1", "https://b.example/2"}, 3)
	require.NoError(t, err)
	assert.Len(t, written, 1)
}

func TestRunBatchMinimalArtifactsWithoutClient(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{articles: map[string]*fetcher.Article{
		"https://a.example/1": {FocusedText: articleText, FinalURL: "https://a.example/1"},
	}}

	p := newPipeline(t, nil, fetch, baseDir)
	written, err := p.RunBatch(context.Background(), []string{"https://a.example/1"}, 3)
	require.NoError(t, err)
	require.Len(t, written, 1)

	doc := readArtifact(t, written[0])
	assert.Equal(t, "https://a.example/1", doc["source_url"])
	assert.Contains(t, doc, "pre_extracted")
	assert.NotContains(t, doc, "mountain_name")

	pre, ok := doc["pre_extracted"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, pre, "fall_height_feet_pre")
}

func TestRunBatchChunking(t *testing.T) {
	baseDir := t.TempDir()
	fetch := &stubFetcher{}
	client := &scriptedClient{responses: []string{`[{}]`, `[{}]`}}

	p := newPipeline(t, client, fetch, baseDir)
	urls := []string{"https://a.example/1", "https://b.example/2", "https://c.example/3"}
	_, err := p.RunBatch(context.Background(), urls, 2)
	require.NoError(t, err)
	assert.Len(t, client.requests, 2, "three urls with batch size two means two llm calls")

	var payload struct {
		Items []map[string]any `json:"items"`
	}
	body := client.requests[0].User
	start := 0
	for i := range body {
		if body[i] == '{' {
			start = i
			break
		}
	}
	require.NoError(t, json.Unmarshal([]byte(body[start:]), &payload))
	assert.Len(t, payload.Items, 2)
}

type assertableErr string

func (e assertableErr) Error() string { return string(e) }
