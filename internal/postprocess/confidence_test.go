package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeConfidenceNoOverlap(t *testing.T) {
	score := ComputeConfidence(map[string]any{}, map[string]any{})
	assert.Equal(t, 0.0, score)
}

func TestComputeConfidenceDateMatch(t *testing.T) {
	pre := map[string]any{"pre_dates": []string{"October 1, 2025"}}
	llm := map[string]any{"accident_date": "2025-10-01"}
	assert.Equal(t, 0.25, ComputeConfidence(pre, llm))
}

func TestComputeConfidenceAccumulates(t *testing.T) {
	pre := map[string]any{
		"pre_dates":          []string{"October 1, 2025"},
		"gazetteer_matches":  []string{"Mount Example"},
		"num_fatalities_pre": 1,
	}
	llm := map[string]any{
		"accident_date":  "2025-10-01",
		"mountain_name":  "Mount Example South Peak",
		"num_fatalities": 1,
	}
	score := ComputeConfidence(pre, llm)
	assert.InDelta(t, 0.6, score, 1e-9)

	// each extra corroboration is monotone
	assert.GreaterOrEqual(t, score, ComputeConfidence(pre, map[string]any{"accident_date": "2025-10-01"}))
}

func TestComputeConfidenceFallHeight(t *testing.T) {
	pre := map[string]any{"fall_height_feet_pre": 100}
	llm := map[string]any{"fall_height_meters_estimate": 30.5}
	assert.Equal(t, 0.2, ComputeConfidence(pre, llm))

	// outside the 15% band
	llm["fall_height_meters_estimate"] = 60.0
	assert.Equal(t, 0.0, ComputeConfidence(pre, llm))
}

func TestComputeConfidencePeopleAges(t *testing.T) {
	pre := map[string]any{
		"people_pre": []map[string]any{{"name": "Jane Doe", "age": 34}},
	}
	llm := map[string]any{
		"people": []any{map[string]any{"name": "J. Doe", "age": 34.0}},
	}
	assert.Equal(t, 0.2, ComputeConfidence(pre, llm))
}

func TestComputeConfidenceCapped(t *testing.T) {
	pre := map[string]any{
		"pre_dates":            []string{"2025-10-01"},
		"gazetteer_matches":    []string{"Mount Example"},
		"fall_height_feet_pre": 100,
		"num_fatalities_pre":   1,
		"people_pre":           []map[string]any{{"age": 34}},
	}
	llm := map[string]any{
		"accident_date":               "2025-10-01",
		"mountain_name":               "Mount Example",
		"fall_height_meters_estimate": 30.48,
		"num_fatalities":              1,
		"people":                      []any{map[string]any{"age": 34}},
	}
	assert.Equal(t, 1.0, ComputeConfidence(pre, llm))
}

func TestBlendConfidence(t *testing.T) {
	assert.InDelta(t, 0.66, BlendConfidence(0.9, 0.5), 1e-9)
	assert.Equal(t, 0.5, BlendConfidence(nil, 0.5))
	assert.Equal(t, 0.5, BlendConfidence("not a number", 0.5))
}
