package postprocess

import (
	"math"
	"strings"
)

// ComputeConfidence scores the agreement between deterministic pre-extraction
// evidence and the cleaned LLM output on a 0..1 scale. Each independent
// corroboration adds a fixed increment; the sum is capped at 1.0.
func ComputeConfidence(pre, llm map[string]any) float64 {
	score := 0.0

	// a pre-extracted date normalizing to the accident or publication date
	for _, d := range coerceStrList(pre["pre_dates"]) {
		iso, ok := NormalizeDate(d)
		if !ok {
			continue
		}
		if llm["accident_date"] == iso || llm["article_date_published"] == iso {
			score += 0.25
			break
		}
	}

	// gazetteer hit contained in the extracted mountain name
	if matches := coerceStrList(pre["gazetteer_matches"]); len(matches) > 0 {
		if name, ok := llm["mountain_name"].(string); ok && name != "" {
			if strings.Contains(strings.ToLower(name), strings.ToLower(matches[0])) {
				score += 0.2
			}
		}
	}

	// fall height correlation within 15%
	if feet, ok := coerceFloat(pre["fall_height_feet_pre"]); ok {
		if est, ok := coerceFloat(llm["fall_height_meters_estimate"]); ok {
			fromFeet := feet * 0.3048
			if math.Abs(fromFeet-est)/math.Max(est, 1.0) < 0.15 {
				score += 0.2
			}
		}
	}

	// fatality count agreement
	if preFat, ok := coerceInt(pre["num_fatalities_pre"]); ok {
		if llmFat, ok := coerceInt(llm["num_fatalities"]); ok && preFat == llmFat {
			score += 0.15
		}
	}

	// any person age corroborated
	if agesOverlap(pre["people_pre"], llm["people"]) {
		score += 0.2
	}

	return math.Min(1.0, math.Round(score*100)/100)
}

// BlendConfidence combines a model-supplied confidence with the
// deterministic score, weighting the deterministic evidence higher. When the
// model supplied none, the deterministic score stands alone.
func BlendConfidence(modelScore any, deterministic float64) float64 {
	if m, ok := coerceFloat(modelScore); ok {
		return math.Round((0.4*m+0.6*deterministic)*100) / 100
	}
	return deterministic
}

func agesOverlap(preRaw, llmRaw any) bool {
	prePeople := personList(preRaw)
	llmPeople := personList(llmRaw)
	for _, p := range prePeople {
		pAge, ok := coerceInt(p["age"])
		if !ok {
			continue
		}
		for _, q := range llmPeople {
			if qAge, ok := coerceInt(q["age"]); ok && pAge == qAge {
				return true
			}
		}
	}
	return false
}

func personList(raw any) []map[string]any {
	switch people := raw.(type) {
	case []map[string]any:
		return people
	case []any:
		var out []map[string]any
		for _, item := range people {
			if p, ok := item.(map[string]any); ok {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}
