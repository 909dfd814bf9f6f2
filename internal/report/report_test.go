package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

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

func writeFusedEvent(t *testing.T, eventsDir, eid string, event map[string]any) {
	t.Helper()
	require.NoError(t, artifacts.WriteJSON(filepath.Join(eventsDir, "fused", eid+".json"), event))
}

func sampleEvent() map[string]any {
	return map[string]any{
		"event_id":                    "abc123def456",
		"mountain_name":               "Mount Currie",
		"region":                      "Sea to Sky",
		"activity_type":               "alpine_climbing",
		"accident_type":               "fall",
		"accident_date":               "2025-07-01",
		"accident_summary_text":       "A climber fell while descending and was recovered by helicopter.",
		"source_url":                  []any{"https://a.example/story", "https://b.example/story"},
		"people":                      []any{map[string]any{"name": "Unknown", "age": 34.0, "outcome": "deceased"}},
		"rescue_teams_involved":       []any{"Whistler SAR"},
		"rescue_method":               "helicopter longline",
		"extraction_confidence_score": 0.8,
		"accident_causes": map[string]any{
			"proximate_causes":     []any{"rockfall"},
			"contributing_factors": []any{"late_in_day"},
		},
		"events": []any{
			map[string]any{"approx_time": "Morning", "description": "Party began descent"},
			map[string]any{"approx_time": "~11:00", "description": "Climber fell"},
		},
	}
}

func TestGenerateDeterministicFallback(t *testing.T) {
	eventsDir := t.TempDir()
	writeFusedEvent(t, eventsDir, "abc123def456", sampleEvent())

	g := NewGenerator(nil, budget.NewMemStore(0), "gpt-5-mini", "gpt-5", "gpt-5-mini", nil, eventsDir)
	path, err := g.Generate(context.Background(), "abc123def456", "climbers", true, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)

	assert.Contains(t, md, "---\n")
	assert.Contains(t, md, "title: Mount Currie — fall (2025-07-01)")
	assert.Contains(t, md, "event_id: abc123def456")
	assert.Contains(t, md, `<script type="application/ld+json">`)
	assert.Contains(t, md, "# Mount Currie Incident Report")
	assert.Contains(t, md, "## Executive Summary")
	assert.Contains(t, md, "## Timeline of Events")
	assert.Contains(t, md, "- Morning — Party began descent")
	assert.Contains(t, md, "## People Involved")
	assert.Contains(t, md, "Proximate cause: rockfall")
	assert.Contains(t, md, "Contributing factor: late in day")
	assert.Contains(t, md, "- https://a.example/story")
	assert.Contains(t, md, "- https://b.example/story")
	assert.NotContains(t, md, "&lt;")
}

func TestGenerateUsesModelDraft(t *testing.T) {
	eventsDir := t.TempDir()
	writeFusedEvent(t, eventsDir, "abc123def456", sampleEvent())

	client := &scriptedClient{responses: []string{
		`{"sections": ["Executive Summary"]}`,
		"# Mount Currie Incident Report\n\nModel-written body.",
		`{"issues": [], "redactions": []}`,
	}}
	g := NewGenerator(client, budget.NewMemStore(0), "gpt-5-mini", "gpt-5", "gpt-5-mini", nil, eventsDir)
	path, err := g.Generate(context.Background(), "abc123def456", "general", false, false)
	require.NoError(t, err)

	require.Len(t, client.requests, 3)
	assert.Contains(t, client.requests[0].System, "You plan technical mountaineering incident reports")
	assert.Contains(t, client.requests[1].System, "Audience: general. Family sensitive: false.")
	assert.Contains(t, client.requests[1].User, "# Mount Currie Incident Report")
	assert.Contains(t, client.requests[2].User, "FAMILY_SENSITIVE=false")
	// gpt-5 family models take no temperature override
	assert.Nil(t, client.requests[1].Temperature)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Model-written body.")
}

func TestGenerateFallsBackWhenPlannerReturnsProse(t *testing.T) {
	eventsDir := t.TempDir()
	writeFusedEvent(t, eventsDir, "abc123def456", sampleEvent())

	client := &scriptedClient{responses: []string{"I cannot produce JSON for this."}}
	g := NewGenerator(client, budget.NewMemStore(0), "gpt-5-mini", "gpt-5", "gpt-5-mini", nil, eventsDir)
	path, err := g.Generate(context.Background(), "abc123def456", "climbers", true, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Sources")
}

func TestGenerateDryRun(t *testing.T) {
	eventsDir := t.TempDir()
	writeFusedEvent(t, eventsDir, "abc123def456", sampleEvent())

	g := NewGenerator(nil, budget.NewMemStore(0), "gpt-5-mini", "gpt-5", "gpt-5-mini", nil, eventsDir)
	path, err := g.Generate(context.Background(), "abc123def456", "climbers", true, true)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = os.Stat(filepath.Join(eventsDir, "reports", "abc123def456.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateMissingEvent(t *testing.T) {
	g := NewGenerator(nil, budget.NewMemStore(0), "gpt-5-mini", "gpt-5", "gpt-5-mini", nil, t.TempDir())
	_, err := g.Generate(context.Background(), "nope", "climbers", true, false)
	assert.Error(t, err)
}

func TestEventIDs(t *testing.T) {
	eventsDir := t.TempDir()
	writeFusedEvent(t, eventsDir, "bbb", map[string]any{})
	writeFusedEvent(t, eventsDir, "aaa", map[string]any{})

	g := NewGenerator(nil, budget.NewMemStore(0), "", "", "", nil, eventsDir)
	ids, err := g.EventIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, ids)

	empty := NewGenerator(nil, budget.NewMemStore(0), "", "", "", nil, t.TempDir())
	ids, err = empty.EventIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFrontMatterOrder(t *testing.T) {
	fm := FrontMatter{Title: "T", Description: "D", Date: "2025-07-01", Region: "R", Audience: "climbers", EventID: "e1"}
	out := fm.Render()
	assert.True(t,
		len(out) > 0 && out[:4] == "---\n",
	)
	assert.Contains(t, out, "title: T")
	assert.Contains(t, out, "event_id: e1")
}

func TestMarkdownTable(t *testing.T) {
	rows := []any{
		map[string]any{"name": "A", "age": 30.0},
		map[string]any{"name": "B", "outcome": "injured"},
	}
	table := markdownTable(rows)
	assert.Contains(t, table, "| age | name | outcome |")
	assert.Contains(t, table, "| 30 | A |  |")
	assert.Contains(t, table, "|  | B | injured |")
	assert.Empty(t, markdownTable(nil))
}
