// Package cost accumulates token usage and estimated spend across a pipeline
// run, grouped by phase.
package cost

import (
	"sync"

	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

// PhaseUsage aggregates usage for one pipeline phase.
type PhaseUsage struct {
	Calls            int
	PromptTokens     int64
	CompletionTokens int64
	EstimatedUSD     float64
}

// Tracker is a run-scoped accumulator. Safe for concurrent use; a nil
// Tracker is a no-op so callers do not need to guard.
type Tracker struct {
	mu     sync.Mutex
	phases map[string]*PhaseUsage
}

func NewTracker() *Tracker {
	return &Tracker{phases: map[string]*PhaseUsage{}}
}

// Add records one model call under the given phase.
func (t *Tracker) Add(phase, model string, usage openai.TokenUsage) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.phases[phase]
	if !ok {
		p = &PhaseUsage{}
		t.phases[phase] = p
	}
	p.Calls++
	p.PromptTokens += usage.PromptTokens
	p.CompletionTokens += usage.CompletionTokens
	p.EstimatedUSD += usage.EstimateCost(model)
}

// Summary returns a copy of the per-phase totals.
func (t *Tracker) Summary() map[string]PhaseUsage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]PhaseUsage, len(t.phases))
	for phase, p := range t.phases {
		out[phase] = *p
	}
	return out
}

// Total sums estimated spend across all phases.
func (t *Tracker) Total() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, p := range t.phases {
		total += p.EstimatedUSD
	}
	return total
}
