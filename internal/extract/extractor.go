// Package extract drives the structured LLM extraction of accident
// information from article text, with a JSON repair pass for malformed
// model output and a shared call budget.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/internal/cost"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

const (
	// singleArticleLimit bounds the article text handed to the single
	// extraction prompt.
	singleArticleLimit = 18000
	// batchArticleLimit bounds each item's article text in a batch prompt.
	batchArticleLimit = 12000
)

// ErrSkipped reports that extraction was skipped because no client is
// configured or the call budget is exhausted. Callers still write minimal
// artifacts in that case.
var ErrSkipped = eris.New("extract: llm unavailable or call budget exhausted")

// BatchItem is one article in a batched extraction request.
type BatchItem struct {
	URL          string         `json:"url"`
	PreExtracted map[string]any `json:"pre_extracted"`
	Article      string         `json:"article"`
}

// Extractor runs extraction prompts against a chat model. A nil client
// disables LLM calls without disabling the deterministic pipeline around
// them.
type Extractor struct {
	client openai.Client
	gate   budget.Gate
	model  string
	costs  *cost.Tracker
}

func NewExtractor(client openai.Client, gate budget.Gate, model string, costs *cost.Tracker) *Extractor {
	return &Extractor{client: client, gate: gate, model: model, costs: costs}
}

// Available reports whether a model client is configured.
func (e *Extractor) Available() bool {
	return e.client != nil
}

// Extract runs the single-article prompt and returns the raw parsed object.
// pre is the deterministic pre-extraction of the same article and is
// embedded in the prompt as corroborating evidence. Returns an empty map
// when the client is missing or the budget is spent.
func (e *Extractor) Extract(ctx context.Context, articleText string, pre map[string]any) (map[string]any, error) {
	if e.client == nil {
		zap.L().Warn("openai api key not set, skipping llm extraction")
		return map[string]any{}, nil
	}
	if !e.gate.CanCall() {
		zap.L().Warn("openai call cap reached, skipping llm extraction")
		return map[string]any{}, nil
	}

	preJSON, err := json.MarshalIndent(pre, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal pre-extracted fields")
	}
	prompt := fmt.Sprintf(promptTemplate, schemaText, string(preJSON), truncate(articleText, singleArticleLimit))

	resp, err := e.complete(ctx, "extract", extractorSystem, prompt)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(resp), &obj); err == nil {
		return obj, nil
	}

	// one repair pass before giving up
	repaired, err := e.complete(ctx, "extract_repair", "", repairObjectPrompt+resp)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		zap.L().Warn("llm returned unparseable json after repair pass")
		return map[string]any{}, nil
	}
	return obj, nil
}

// ExtractBatch runs one prompt covering several articles and returns the
// raw array of extraction objects. Items longer than the per-item limit are
// truncated. Returns ErrSkipped when no call can be made, so the caller can
// fall back to pre-extraction-only artifacts.
func (e *Extractor) ExtractBatch(ctx context.Context, items []BatchItem) ([]map[string]any, error) {
	if e.client == nil {
		zap.L().Warn("openai api key not set, skipping batch llm extraction")
		return nil, ErrSkipped
	}
	if !e.gate.CanCall() {
		zap.L().Warn("openai call cap reached, skipping batch llm extraction")
		return nil, ErrSkipped
	}

	bounded := make([]BatchItem, len(items))
	for i, item := range items {
		item.Article = truncate(item.Article, batchArticleLimit)
		bounded[i] = item
	}
	payload, err := json.Marshal(map[string]any{"items": bounded})
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal batch payload")
	}

	resp, err := e.complete(ctx, "extract_batch", extractorSystem, batchPrompt+string(payload))
	if err != nil {
		return nil, err
	}

	if arr := parseArray(resp); arr != nil {
		return arr, nil
	}
	// bracket substring before paying for a repair call
	if start, end := strings.Index(resp, "["), strings.LastIndex(resp, "]"); start != -1 && end > start {
		if arr := parseArray(resp[start : end+1]); arr != nil {
			return arr, nil
		}
	}
	repaired, err := e.complete(ctx, "extract_batch_repair", "", repairArrayPrompt+resp)
	if err != nil {
		return nil, err
	}
	arr := parseArray(repaired)
	if arr == nil {
		return nil, eris.New("extract: batch response is not a json array")
	}
	return arr, nil
}

func (e *Extractor) complete(ctx context.Context, phase, system, user string) (string, error) {
	temp := 0.0
	resp, err := e.client.Complete(ctx, openai.CompletionRequest{
		Model:       e.model,
		System:      system,
		User:        user,
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrapf(err, "extract: %s call", phase)
	}
	e.gate.RecordCall(1)
	e.costs.Add(phase, e.model, resp.Usage)
	resp.Usage.LogCost(e.model, phase)
	return resp.Text, nil
}

// parseArray decodes s as a JSON array of objects. Non-object members are
// kept as empty maps so batch alignment to the input URLs is preserved.
func parseArray(s string) []map[string]any {
	var raw []any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	arr := make([]map[string]any, len(raw))
	for i, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			arr[i] = obj
		} else {
			arr[i] = map[string]any{}
		}
	}
	return arr
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
