package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

// scriptedClient returns canned responses in order and records requests.
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

func TestExtractDirectParse(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"mountain_name": "Mount Example"}`}}
	gate := budget.NewMemStore(0)
	ex := NewExtractor(client, gate, "gpt-4o-mini", nil)

	obj, err := ex.Extract(context.Background(), "article text", map[string]any{"pre_dates": []string{"2025-10-01"}})
	require.NoError(t, err)
	assert.Equal(t, "Mount Example", obj["mountain_name"])

	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].User, "PRE-EXTRACTED:")
	assert.Contains(t, client.requests[0].User, "2025-10-01")
	assert.Contains(t, client.requests[0].User, "article text")
	assert.Equal(t, "You are a precise JSON-only extractor.", client.requests[0].System)
}

func TestExtractRepairPass(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"Sure! Here is the JSON: {\"region\": \"BC\"}",
		`{"region": "BC"}`,
	}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	obj, err := ex.Extract(context.Background(), "text", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "BC", obj["region"])

	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[1].User, "Convert the following to STRICT JSON only")
}

func TestExtractRepairFails(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json", "still not json"}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	obj, err := ex.Extract(context.Background(), "text", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, obj)
}

func TestExtractNoClient(t *testing.T) {
	ex := NewExtractor(nil, budget.NewMemStore(0), "gpt-4o-mini", nil)
	obj, err := ex.Extract(context.Background(), "text", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, obj)
	assert.False(t, ex.Available())
}

func TestExtractBudgetExhausted(t *testing.T) {
	gate := budget.NewMemStore(1)
	gate.RecordCall(1)
	client := &scriptedClient{}
	ex := NewExtractor(client, gate, "gpt-4o-mini", nil)

	obj, err := ex.Extract(context.Background(), "text", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, obj)
	assert.Empty(t, client.requests)
}

func TestExtractRecordsCalls(t *testing.T) {
	gate := budget.NewMemStore(10)
	client := &scriptedClient{responses: []string{`{}`}}
	ex := NewExtractor(client, gate, "gpt-4o-mini", nil)

	_, err := ex.Extract(context.Background(), "text", map[string]any{})
	require.NoError(t, err)
	remaining, limited := gate.Remaining()
	assert.True(t, limited)
	assert.Equal(t, 9, remaining)
}

func TestExtractBatchDirect(t *testing.T) {
	client := &scriptedClient{responses: []string{`[{"region": "BC"}, {"region": "AB"}]`}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	arr, err := ex.ExtractBatch(context.Background(), []BatchItem{
		{URL: "https://a.example/1", Article: "one"},
		{URL: "https://a.example/2", Article: "two"},
	})
	require.NoError(t, err)
	require.Len(t, arr, 2)
	assert.Equal(t, "BC", arr[0]["region"])
	assert.Equal(t, "AB", arr[1]["region"])

	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].User, "Return a JSON array with one extraction object per item")
	assert.Contains(t, client.requests[0].User, "https://a.example/1")
}

func TestExtractBatchBracketSubstring(t *testing.T) {
	client := &scriptedClient{responses: []string{"Here you go:\n[{\"region\": \"BC\"}]\nDone."}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	arr, err := ex.ExtractBatch(context.Background(), []BatchItem{{URL: "u", Article: "a"}})
	require.NoError(t, err)
	require.Len(t, arr, 1)
	assert.Equal(t, "BC", arr[0]["region"])
	assert.Len(t, client.requests, 1)
}

func TestExtractBatchRepair(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"no array here",
		`[{"region": "BC"}]`,
	}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	arr, err := ex.ExtractBatch(context.Background(), []BatchItem{{URL: "u", Article: "a"}})
	require.NoError(t, err)
	require.Len(t, arr, 1)
	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[1].User, "Convert the following to a JSON array only")
}

func TestExtractBatchSkipped(t *testing.T) {
	ex := NewExtractor(nil, budget.NewMemStore(0), "gpt-4o-mini", nil)
	_, err := ex.ExtractBatch(context.Background(), []BatchItem{{URL: "u"}})
	assert.ErrorIs(t, err, ErrSkipped)

	gate := budget.NewMemStore(1)
	gate.RecordCall(1)
	ex = NewExtractor(&scriptedClient{}, gate, "gpt-4o-mini", nil)
	_, err = ex.ExtractBatch(context.Background(), []BatchItem{{URL: "u"}})
	assert.ErrorIs(t, err, ErrSkipped)
}

func TestExtractBatchNonObjectMembers(t *testing.T) {
	client := &scriptedClient{responses: []string{`[{"region": "BC"}, "oops"]`}}
	ex := NewExtractor(client, budget.NewMemStore(0), "gpt-4o-mini", nil)

	arr, err := ex.ExtractBatch(context.Background(), []BatchItem{{URL: "a"}, {URL: "b"}})
	require.NoError(t, err)
	require.Len(t, arr, 2)
	assert.Equal(t, "BC", arr[0]["region"])
	assert.Empty(t, arr[1])
}
