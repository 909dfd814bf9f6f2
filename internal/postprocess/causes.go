package postprocess

import "strings"

// Controlled vocabularies for the layered cause analysis. Values outside
// these sets are dropped rather than passed through, so downstream
// aggregation can group on them safely.
var proximateCauses = stringSet(
	"anchor_failure", "rope_system_failure", "fall_on_steep_snow", "rockfall",
	"icefall", "avalanche", "crevasse_fall", "weather_change",
	"visibility_loss", "cornice_collapse", "terrain_trap_involvement",
	"slip_or_trip", "miscommunication", "medical_emergency",
	"equipment_malfunction",
)

var contributingFactors = stringSet(
	"single_point_anchor", "anchor_old_or_weathered", "no_anchor_backup",
	"overloaded_anchor", "party_all_on_one_rope", "no_fixed_protection",
	"improper_knots", "inadequate_edge_protection", "unroped_on_glacier",
	"late_in_day", "rapid_temperature_change", "storm_arrival",
	"wind_slab_loading", "poor_visibility", "human_factor_heuristic_trap",
	"route_finding_error", "fatigue", "equipment_left_in_place",
	"improvised_anchor", "technical_skill_mismatch",
)

var anchorTypes = stringSet(
	"piton", "bolt", "gear_anchor", "snow_picket", "bollard", "v-thread",
	"tree", "rock_horn", "natural", "unknown",
)

var anchorConditions = stringSet("new", "good", "old", "weathered", "rusted", "unknown")
var anchorFailureModes = stringSet("pulled", "snapped", "sheared", "unknown")

var ropeTypes = stringSet("single", "half", "twin", "static", "unknown")
var belayMethods = stringSet("rappel", "lower", "simul", "pitch", "running_belay", "short_rope", "unroped")

var awarenessLevels = stringSet("low", "medium", "high", "unknown")
var groupDynamics = stringSet("leader_follower", "peer_pressure", "independent", "unknown")
var experienceLevels = stringSet("beginner", "intermediate", "advanced", "expert", "mixed", "unknown")

var weatherChangeTimings = stringSet("before", "during", "after", "none", "unknown")
var precipitationIntensities = stringSet("none", "light", "moderate", "heavy")
var temperatureTrends = stringSet("warming", "cooling", "stable", "unknown")
var windSpeeds = stringSet("calm", "moderate", "strong", "storm")
var visibilityClasses = stringSet("good", "moderate", "poor", "whiteout")

var experienceMixes = stringSet("homogeneous", "mixed", "unknown")
var fatigueLevels = stringSet("low", "moderate", "high", "unknown")
var riskTolerances = stringSet("low", "moderate", "high", "unknown")

var recoveryDifficulties = stringSet("easy", "moderate", "technical", "high", "unknown")

var primaryCauseCategories = stringSet(
	"technical_system_failure", "environmental", "human_factor", "medical", "unknown",
)

func stringSet(vals ...string) map[string]bool {
	s := make(map[string]bool, len(vals))
	for _, v := range vals {
		s[v] = true
	}
	return s
}

// cleanCauses validates accident_causes in place and returns the cleaned
// object, or nil when nothing valid survives. Sub-objects that clean down to
// empty are omitted entirely.
func cleanCauses(raw any) map[string]any {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := map[string]any{}

	if vals := enumList(obj["proximate_causes"], proximateCauses); len(vals) > 0 {
		out["proximate_causes"] = vals
	}
	if vals := enumList(obj["contributing_factors"], contributingFactors); len(vals) > 0 {
		out["contributing_factors"] = vals
	}

	if sub := cleanAnchorSystem(obj["anchor_system"]); len(sub) > 0 {
		out["anchor_system"] = sub
	}
	if sub := cleanRopeSystem(obj["rope_system"]); len(sub) > 0 {
		out["rope_system"] = sub
	}
	if sub := cleanDecisionFactors(obj["decision_factors"]); len(sub) > 0 {
		out["decision_factors"] = sub
	}
	if sub := cleanEquipmentStatus(obj["equipment_status"]); len(sub) > 0 {
		out["equipment_status"] = sub
	}
	if sub := cleanEnvironmentalConditions(obj["environmental_conditions"]); len(sub) > 0 {
		out["environmental_conditions"] = sub
	}
	if sub := cleanHumanFactors(obj["human_factors"]); len(sub) > 0 {
		out["human_factors"] = sub
	}
	if sub := cleanRescueAndOutcome(obj["rescue_and_outcome"]); len(sub) > 0 {
		out["rescue_and_outcome"] = sub
	}
	if sub := cleanInvestigationNotes(obj["investigation_notes"]); len(sub) > 0 {
		out["investigation_notes"] = sub
	}
	if sub := cleanCauseClassification(obj["cause_classification"]); len(sub) > 0 {
		out["cause_classification"] = sub
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// enumList lowercases string members and keeps the ones present in vocab,
// deduped in first-seen order.
func enumList(raw any, vocab map[string]bool) []string {
	var items []any
	switch vals := raw.(type) {
	case []any:
		items = vals
	case []string:
		for _, s := range vals {
			items = append(items, s)
		}
	default:
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if vocab[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func enumStr(raw any, vocab map[string]bool) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if !vocab[s] {
		return "", false
	}
	return s, true
}

func subObject(raw any) (map[string]any, bool) {
	obj, ok := raw.(map[string]any)
	return obj, ok
}

func setEnum(out, obj map[string]any, key string, vocab map[string]bool) {
	if v, ok := enumStr(obj[key], vocab); ok {
		out[key] = v
	}
}

func setInt(out, obj map[string]any, key string) {
	if v, ok := coerceInt(obj[key]); ok {
		out[key] = v
	}
}

// setBool takes actual booleans only. Unlike the top-level fields, the
// cause sub-objects do not accept "yes"/"no" strings.
func setBool(out, obj map[string]any, key string) {
	if v, ok := obj[key].(bool); ok {
		out[key] = v
	}
}

func setStr(out, obj map[string]any, key string) {
	if v, ok := coerceStr(obj[key]); ok {
		out[key] = v
	}
}

func setStrList(out, obj map[string]any, key string) {
	if vals := coerceStrList(obj[key]); len(vals) > 0 {
		out[key] = vals
	}
}

func setLowerList(out, obj map[string]any, key string) {
	if vals := lowerStrList(obj[key]); len(vals) > 0 {
		out[key] = vals
	}
}

func lowerStrList(raw any) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range coerceStrList(raw) {
		s = strings.ToLower(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func cleanAnchorSystem(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setEnum(out, obj, "anchor_type", anchorTypes)
	setInt(out, obj, "num_points")
	setBool(out, obj, "redundancy_present")
	setEnum(out, obj, "anchor_condition", anchorConditions)
	setEnum(out, obj, "failure_mode", anchorFailureModes)
	return out
}

func cleanRopeSystem(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setInt(out, obj, "num_people_on_rope")
	setBool(out, obj, "roped_for_descent")
	setBool(out, obj, "roped_for_ascent")
	setBool(out, obj, "protection_in_place")
	setEnum(out, obj, "rope_type", ropeTypes)
	setEnum(out, obj, "belay_method", belayMethods)
	setStr(out, obj, "failure_description")
	setStrList(out, obj, "knots_used")
	return out
}

func cleanDecisionFactors(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setEnum(out, obj, "objective_hazard_awareness", awarenessLevels)
	setBool(out, obj, "time_pressure")
	setEnum(out, obj, "group_dynamics", groupDynamics)
	setEnum(out, obj, "experience_level_est", experienceLevels)
	setBool(out, obj, "weather_forecast_considered")
	setBool(out, obj, "alternate_plan_available")
	return out
}

func cleanEquipmentStatus(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setStrList(out, obj, "critical_gear_present")
	setStrList(out, obj, "gear_condition_issues")
	setStrList(out, obj, "missing_expected_gear")
	setStrList(out, obj, "equipment_failure_noted")
	return out
}

func cleanEnvironmentalConditions(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setEnum(out, obj, "weather_change_timing", weatherChangeTimings)
	setEnum(out, obj, "precipitation_intensity", precipitationIntensities)
	setEnum(out, obj, "temperature_trend", temperatureTrends)
	setEnum(out, obj, "wind_speed_est", windSpeeds)
	setLowerList(out, obj, "snowpack_instability_signs")
	setEnum(out, obj, "visibility_class", visibilityClasses)
	return out
}

func cleanHumanFactors(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setInt(out, obj, "group_size")
	setEnum(out, obj, "group_experience_mix", experienceMixes)
	setLowerList(out, obj, "communication_method")
	setBool(out, obj, "language_barrier_present")
	setLowerList(out, obj, "heuristic_traps_observed")
	setEnum(out, obj, "fatigue_level", fatigueLevels)
	setEnum(out, obj, "risk_tolerance_inferred", riskTolerances)
	return out
}

func cleanRescueAndOutcome(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setInt(out, obj, "rescue_delay_minutes_est")
	setBool(out, obj, "self_rescue_attempted")
	setBool(out, obj, "remains_recovered")
	setStr(out, obj, "survivor_condition_notes")
	setEnum(out, obj, "body_recovery_difficulty", recoveryDifficulties)
	return out
}

func cleanInvestigationNotes(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setBool(out, obj, "investigation_in_progress")
	setBool(out, obj, "anchor_recovered")
	setBool(out, obj, "anchor_backup_found")
	setStr(out, obj, "gear_recovered_description")
	setStrList(out, obj, "uncertainties_list")
	return out
}

func cleanCauseClassification(raw any) map[string]any {
	obj, ok := subObject(raw)
	if !ok {
		return nil
	}
	out := map[string]any{}
	setEnum(out, obj, "primary_cause_category", primaryCauseCategories)
	setLowerList(out, obj, "secondary_cause_categories")
	setStr(out, obj, "narrative_summary")
	return out
}
