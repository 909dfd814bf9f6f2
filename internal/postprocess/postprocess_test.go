package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCoercions(t *testing.T) {
	out := Clean(map[string]any{
		"mountain_name":               "  Mount Example ",
		"num_fatalities":              "2",
		"num_injured":                 3.0,
		"fall_height_meters_estimate": "30.5",
		"self_rescue_boolean":         "yes",
		"anchor_failure_boolean":      "no",
		"rescue_teams_involved":       []any{"SAR", " SAR ", "", "RCMP", 42},
		"quoted_dialogue":             "a single quote",
	})

	assert.Equal(t, "Mount Example", out["mountain_name"])
	assert.Equal(t, 2, out["num_fatalities"])
	assert.Equal(t, 3, out["num_injured"])
	assert.Equal(t, 30.5, out["fall_height_meters_estimate"])
	assert.Equal(t, true, out["self_rescue_boolean"])
	assert.Equal(t, false, out["anchor_failure_boolean"])
	assert.Equal(t, []string{"SAR", "RCMP"}, out["rescue_teams_involved"])
	assert.Equal(t, []string{"a single quote"}, out["quoted_dialogue"])
}

func TestCleanDropsInvalid(t *testing.T) {
	out := Clean(map[string]any{
		"mountain_name":               "   ",
		"num_fatalities":              "many",
		"self_rescue_boolean":         "perhaps",
		"accident_date":               "sometime last week",
		"extraction_confidence_score": 1.5,
		"unknown_blob":                []any{"x"},
	})
	assert.NotContains(t, out, "mountain_name")
	assert.NotContains(t, out, "num_fatalities")
	assert.NotContains(t, out, "self_rescue_boolean")
	assert.NotContains(t, out, "accident_date")
	assert.NotContains(t, out, "extraction_confidence_score")
	assert.NotContains(t, out, "unknown_blob")
}

func TestCleanUnknownStringPassthrough(t *testing.T) {
	out := Clean(map[string]any{"editorial_note": " keep me "})
	assert.Equal(t, "keep me", out["editorial_note"])
}

func TestCleanPeople(t *testing.T) {
	out := Clean(map[string]any{
		"people": []any{
			map[string]any{"name": "Jane Doe", "age": "34", "outcome": "deceased", "passport": "x"},
			map[string]any{"name": "  "},
			"not a person",
		},
	})
	people, ok := out["people"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, people, 1)
	assert.Equal(t, "Jane Doe", people[0]["name"])
	assert.Equal(t, 34, people[0]["age"])
	assert.Equal(t, "deceased", people[0]["outcome"])
	assert.NotContains(t, people[0], "passport")
}

func TestCleanDatesNormalized(t *testing.T) {
	out := Clean(map[string]any{
		"accident_date":          "October 1, 2025",
		"article_date_published": "2025-10-02",
		"missing_since":          "09/28/2025",
	})
	assert.Equal(t, "2025-10-01", out["accident_date"])
	assert.Equal(t, "2025-10-02", out["article_date_published"])
	assert.Equal(t, "2025-09-28", out["missing_since"])
}

func TestCleanCausesEnumFilter(t *testing.T) {
	out := Clean(map[string]any{
		"accident_causes": map[string]any{
			"proximate_causes":     []any{"ROCKFALL", "not_a_real_cause", "rockfall"},
			"contributing_factors": []any{"fatigue", "bad vibes"},
			"anchor_system": map[string]any{
				"anchor_type":        "Piton",
				"num_points":         "2",
				"redundancy_present": false,
				"failure_mode":       "exploded",
			},
			"cause_classification": map[string]any{
				"primary_cause_category":     "Technical_System_Failure",
				"secondary_cause_categories": []any{"Environmental", "environmental"},
			},
			"equipment_status": map[string]any{"critical_gear_present": []any{}},
		},
	})
	causes, ok := out["accident_causes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"rockfall"}, causes["proximate_causes"])
	assert.Equal(t, []string{"fatigue"}, causes["contributing_factors"])

	anchor, ok := causes["anchor_system"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "piton", anchor["anchor_type"])
	assert.Equal(t, 2, anchor["num_points"])
	assert.Equal(t, false, anchor["redundancy_present"])
	assert.NotContains(t, anchor, "failure_mode")

	cls, ok := causes["cause_classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "technical_system_failure", cls["primary_cause_category"])
	assert.Equal(t, []string{"environmental"}, cls["secondary_cause_categories"])

	// empty sub-objects are omitted entirely
	assert.NotContains(t, causes, "equipment_status")
}

func TestCleanCausesAllInvalid(t *testing.T) {
	out := Clean(map[string]any{
		"accident_causes": map[string]any{
			"proximate_causes": []any{"gravity"},
		},
	})
	assert.NotContains(t, out, "accident_causes")
}

func TestCleanGazetteerFallback(t *testing.T) {
	out := Clean(map[string]any{
		"gazetteer_matches": []string{"Mount Baker"},
	})
	assert.Equal(t, "Mount Baker", out["mountain_name"])
	assert.Equal(t, "Mount Baker", out["region"])

	out = Clean(map[string]any{
		"gazetteer_matches": []string{"Mount Baker"},
		"mountain_name":     "Sky Pilot",
	})
	assert.Equal(t, "Sky Pilot", out["mountain_name"])
	assert.Equal(t, "Mount Baker", out["region"])
}

func TestCleanIdempotent(t *testing.T) {
	in := map[string]any{
		"mountain_name":  "Mount Example",
		"num_fatalities": 1,
		"accident_date":  "2025-10-01",
		"people": []any{
			map[string]any{"name": "Jane Doe", "age": 34, "outcome": "injured"},
		},
		"accident_causes": map[string]any{
			"proximate_causes":     []any{"rockfall"},
			"contributing_factors": []any{"fatigue"},
		},
	}
	once := Clean(in)
	require.Contains(t, once, "people")
	require.Contains(t, once, "accident_causes")

	// re-cleaning an already-cleaned artifact must change nothing, even
	// though Clean emits typed slices rather than the raw []any shapes
	again := Clean(once)
	assert.Equal(t, once["mountain_name"], again["mountain_name"])
	assert.Equal(t, once["num_fatalities"], again["num_fatalities"])
	assert.Equal(t, once["accident_date"], again["accident_date"])
	assert.Equal(t, once["people"], again["people"])
	assert.Equal(t, once["accident_causes"], again["accident_causes"])
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-10-01", "2025-10-01", true},
		{"2025-10-01T12:30:00", "2025-10-01T12:30:00", true},
		{"October 1, 2025", "2025-10-01", true},
		{"Oct 1 2025", "2025-10-01", true},
		{"1 October 2025", "2025-10-01", true},
		{"2025/10/01", "2025-10-01", true},
		{"10/01/2025", "2025-10-01", true},
		{"", "", false},
		{"not a date", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeDate(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
