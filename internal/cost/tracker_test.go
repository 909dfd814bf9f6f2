package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

func TestTrackerAccumulates(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	tr.Add("extract", "gpt-4o-mini", openai.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})
	tr.Add("extract", "gpt-4o-mini", openai.TokenUsage{PromptTokens: 500_000, CompletionTokens: 0})
	tr.Add("cluster", "gpt-5-mini", openai.TokenUsage{PromptTokens: 100, CompletionTokens: 50})

	sum := tr.Summary()
	assert.Len(t, sum, 2)
	assert.Equal(t, 2, sum["extract"].Calls)
	assert.Equal(t, int64(1_500_000), sum["extract"].PromptTokens)
	assert.Equal(t, int64(1_000_000), sum["extract"].CompletionTokens)
	// 1M in at 0.15 + 1M out at 0.60 + 0.5M in at 0.15
	assert.InDelta(t, 0.825, sum["extract"].EstimatedUSD, 1e-9)

	assert.InDelta(t, tr.Total(), sum["extract"].EstimatedUSD+sum["cluster"].EstimatedUSD, 1e-12)
}

func TestTrackerNilSafe(t *testing.T) {
	t.Parallel()
	var tr *Tracker
	tr.Add("extract", "gpt-4o-mini", openai.TokenUsage{PromptTokens: 1})
	assert.Nil(t, tr.Summary())
	assert.Equal(t, 0.0, tr.Total())
}
