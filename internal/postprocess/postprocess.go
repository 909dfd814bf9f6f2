// Package postprocess validates and normalizes raw LLM extraction output
// against the accident schema. It is conservative: values that fail type
// coercion or vocabulary checks are dropped, never invented.
package postprocess

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type kind int

const (
	kindStr kind = iota
	kindInt
	kindFloat
	kindBool
	kindList
	kindDict
)

// expected maps schema keys to their coercion rule. Keys outside this table
// pass through only as non-empty strings.
var expected = map[string]kind{
	"source_url":                 kindStr,
	"source_name":                kindStr,
	"article_title":              kindStr,
	"article_date_published":     kindStr,
	"region":                     kindStr,
	"mountain_name":              kindStr,
	"route_name":                 kindStr,
	"activity_type":              kindStr,
	"accident_type":              kindStr,
	"accident_date":              kindStr,
	"accident_time_approx":       kindStr,
	"num_people_involved":        kindInt,
	"num_fatalities":             kindInt,
	"num_injured":                kindInt,
	"num_rescued":                kindInt,
	"people":                     kindList,
	"rescue_teams_involved":      kindList,
	"response_agencies":          kindList,
	"quoted_dialogue":            kindList,
	"photo_urls":                 kindList,
	"video_urls":                 kindList,
	"related_articles_urls":      kindList,
	"fundraising_links":          kindList,
	"official_reports_links":     kindList,
	"rescue_method":              kindStr,
	"response_difficulties":      kindStr,
	"bodies_recovery_method":     kindStr,
	"accident_summary_text":      kindStr,
	"timeline_text":              kindStr,
	"notable_equipment_details":  kindStr,
	"local_expert_commentary":    kindStr,
	"family_statements":          kindStr,
	"fall_height_meters_estimate": kindFloat,
	"self_rescue_boolean":         kindBool,
	"anchor_failure_boolean":      kindBool,
	"extraction_confidence_score": kindFloat,
	"accident_causes":             kindDict,
}

var dateKeys = []string{
	"article_date_published", "accident_date", "missing_since", "recovery_date",
}

// personFields is the whitelist for entries in the people array.
var personFields = []string{"name", "age", "outcome", "injuries"}

// Clean validates obj and returns the normalized artifact map. The input is
// not mutated. Date keys normalize to ISO or are dropped; the confidence
// score must sit in [0,1]; accident_causes is filtered against the cause
// vocabularies.
func Clean(obj map[string]any) map[string]any {
	out := map[string]any{}

	for k, v := range obj {
		typ, known := expected[k]
		if !known {
			// unknown keys pass through only when they look like safe strings
			if s, ok := coerceStr(v); ok {
				out[k] = s
			}
			continue
		}
		switch typ {
		case kindStr:
			if s, ok := coerceStr(v); ok {
				out[k] = s
			}
		case kindInt:
			if n, ok := coerceInt(v); ok {
				out[k] = n
			}
		case kindFloat:
			if f, ok := coerceFloat(v); ok {
				out[k] = f
			}
		case kindBool:
			if b, ok := coerceBool(v); ok {
				out[k] = b
			}
		case kindList:
			if k == "people" {
				if people := cleanPeople(v); len(people) > 0 {
					out[k] = people
				}
			} else if vals := coerceStrList(v); len(vals) > 0 {
				out[k] = vals
			}
		case kindDict:
			if causes := cleanCauses(v); causes != nil {
				out[k] = causes
			}
		}
	}

	for _, dk := range dateKeys {
		raw, present := out[dk]
		if !present {
			continue
		}
		s, _ := raw.(string)
		if iso, ok := NormalizeDate(s); ok {
			out[dk] = iso
		} else {
			delete(out, dk)
		}
	}

	if raw, present := out["extraction_confidence_score"]; present {
		f, ok := raw.(float64)
		if !ok || f < 0.0 || f > 1.0 {
			delete(out, "extraction_confidence_score")
		}
	}

	if fat, ok := out["num_fatalities"].(int); ok {
		if ppl, ok := out["num_people_involved"].(int); ok && fat > ppl {
			zap.L().Warn("postprocess: num_fatalities exceeds num_people_involved, check source",
				zap.Int("num_fatalities", fat),
				zap.Int("num_people_involved", ppl))
		}
	}

	// a gazetteer hit beats a missing location
	if matches := coerceStrList(obj["gazetteer_matches"]); len(matches) > 0 {
		if _, ok := out["mountain_name"]; !ok {
			out["mountain_name"] = matches[0]
		}
		if _, ok := out["region"]; !ok {
			out["region"] = matches[0]
		}
	}

	return out
}

func cleanPeople(v any) []map[string]any {
	var items []any
	switch vals := v.(type) {
	case []any:
		items = vals
	case []map[string]any:
		for _, m := range vals {
			items = append(items, m)
		}
	default:
		return nil
	}
	var people []map[string]any
	for _, item := range items {
		person, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := map[string]any{}
		for _, f := range personFields {
			raw, present := person[f]
			if !present {
				continue
			}
			if f == "age" {
				if n, ok := coerceInt(raw); ok {
					p["age"] = n
				}
				continue
			}
			if s, sok := raw.(string); sok {
				s = strings.TrimSpace(s)
				if f == "name" && s == "" {
					continue
				}
				p[f] = s
			}
		}
		if len(p) > 0 {
			people = append(people, p)
		}
	}
	return people
}

func coerceStr(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func coerceBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	}
	return false, false
}

// coerceStrList keeps trimmed non-empty string members, deduped in
// first-seen order. A bare string becomes a single-element list.
func coerceStrList(v any) []string {
	switch vals := v.(type) {
	case []any:
		var out []string
		seen := map[string]bool{}
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out
	case []string:
		var out []string
		seen := map[string]bool{}
		for _, s := range vals {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		return out
	case string:
		if s := strings.TrimSpace(vals); s != "" {
			return []string{s}
		}
	}
	return nil
}
