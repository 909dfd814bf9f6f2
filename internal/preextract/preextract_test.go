package preextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEmpty(t *testing.T) {
	e := New(nil)
	out := e.Extract("")
	assert.Empty(t, out)
}

func TestExtractFatalReport(t *testing.T) {
	e := New(nil)
	text := "Jane Doe, 34, died in a 100-foot fall near Mount Example on October 1, 2025. Squamish Search and Rescue responded."
	out := e.Extract(text)

	// "died" is not a numeric fatality pattern, only word numbers cover it
	assert.NotContains(t, out, "num_fatalities_pre")

	people, ok := out["people_pre"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, people, 1)
	assert.Equal(t, "Jane Doe", people[0]["name"])
	assert.Equal(t, 34, people[0]["age"])

	assert.Equal(t, 100, out["fall_height_feet_pre"])
	assert.Equal(t, 30.5, out["fall_height_meters_pre"])

	rescues, ok := out["rescue_teams_pre"].([]string)
	require.True(t, ok)
	assert.Contains(t, rescues, "Search and Rescue")

	dates, ok := out["pre_dates"].([]string)
	require.True(t, ok)
	require.NotEmpty(t, dates)
	assert.Contains(t, dates[0], "October 1")
}

func TestExtractCounts(t *testing.T) {
	e := New(nil)
	out := e.Extract("Two climbers were reported. 3 dead and 2 injured after the avalanche. One person died on the descent.")
	assert.Equal(t, 3, out["num_fatalities_pre"])
	assert.Equal(t, 2, out["num_injured_pre"])
}

func TestExtractWordNumberFatalities(t *testing.T) {
	e := New(nil)
	out := e.Extract("Three people died on the ridge.")
	assert.Equal(t, 3, out["num_fatalities_pre"])
}

func TestExtractUnnamedPerson(t *testing.T) {
	e := New(nil)
	out := e.Extract("A 22-year-old woman was rescued near the summit.")
	people, ok := out["people_pre"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, people, 1)
	assert.Equal(t, "Unknown", people[0]["name"])
	assert.Equal(t, 22, people[0]["age"])
	assert.Equal(t, "female", people[0]["sex"])
}

func TestExtractNamedThenUnnamed(t *testing.T) {
	e := New(nil)
	out := e.Extract("John Smith, 45, fell. A 30-year-old man was also injured, said police.")
	people, ok := out["people_pre"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, people, 2)
	assert.Equal(t, "John Smith", people[0]["name"])
	assert.Equal(t, "Unknown", people[1]["name"])
	assert.Equal(t, "male", people[1]["sex"])
}

func TestExtractGazetteer(t *testing.T) {
	e := New([]string{"Mount Baker", "Sky Pilot"})
	out := e.Extract("The group was climbing mount baker when the storm hit.")
	matches, ok := out["gazetteer_matches"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"Mount Baker"}, matches)
}

func TestExtractArea(t *testing.T) {
	e := New(nil)
	out := e.Extract("The fall happened in Garibaldi Provincial Park yesterday.")
	assert.Equal(t, "Garibaldi Provincial", out["area_pre"])
}

func TestExtractRouteAndEquipment(t *testing.T) {
	e := New(nil)
	out := e.Extract("They were rappelling a 5.10a route in the couloir when the piton and anchor failed on the rope.")

	diffs, ok := out["route_difficulty_pre"].([]string)
	require.True(t, ok)
	assert.Contains(t, diffs, "5.10a")

	types, ok := out["route_types_pre"].([]string)
	require.True(t, ok)
	assert.Contains(t, types, "rappelling")
	assert.Contains(t, types, "couloir")

	equip, ok := out["equipment_pre"].([]string)
	require.True(t, ok)
	assert.Contains(t, equip, "piton")
	assert.Contains(t, equip, "anchor")
	assert.Contains(t, equip, "rope")
}

func TestExtractSlopeAndAspect(t *testing.T) {
	e := New(nil)
	out := e.Extract("The slab released on a 38 degree NE facing slope.")
	assert.Equal(t, 38.0, out["slope_angle_deg_pre"])
	assert.Equal(t, "NE", out["aspect_cardinal_pre"])
}

func TestExtractLeadSentences(t *testing.T) {
	e := New(nil)
	out := e.Extract("First sentence here. Second one follows! Third is dropped.")
	sents, ok := out["lead_sentences"].([]string)
	require.True(t, ok)
	require.Len(t, sents, 2)
	assert.Equal(t, "First sentence here.", sents[0])
	assert.Equal(t, "Second one follows!", sents[1])
}

func TestExtractDateCap(t *testing.T) {
	e := New(nil)
	out := e.Extract("On January 1, 2024 and February 2, 2024 and March 3, 2024 and April 4, 2024 events occurred.")
	dates, ok := out["pre_dates"].([]string)
	require.True(t, ok)
	assert.Len(t, dates, 3)
}
