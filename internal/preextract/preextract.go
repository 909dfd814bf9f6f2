// Package preextract derives deterministic field guesses from raw article
// text. The output reduces the LLM surface area, seeds the extraction prompt,
// and serves as an independent corroboration signal for confidence scoring.
package preextract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	dateRe = regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)[\s\d,0-9]{2,20}`)

	// "Jane Doe, 34" style named mentions.
	namedPersonRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3}),\s*(\d{1,3})\b`)

	// "22-year-old woman" style unnamed mentions with an optional sex token.
	unnamedPersonRe = regexp.MustCompile(`(?i)\b(\d{1,3})[- ]?year[- ]?old\b(?:\s+([A-Za-z\-]+))?`)

	// The first pattern captures the word "killed" in group 1, so it never
	// yields a number. Kept as-is for output parity with prior runs.
	killedRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(killed)\s+(\d+)\b`),
		regexp.MustCompile(`(?i)\b(\d+)\s+killed\b`),
		regexp.MustCompile(`(?i)\b(\d+)\s+dead\b`),
	}
	injuredRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(\d+)\s+injured\b`),
		regexp.MustCompile(`(?i)(\d+)\s+hurt\b`),
	}

	rescueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Search and Rescue`),
		regexp.MustCompile(`(?i)SAR\b`),
		regexp.MustCompile(`(?i)RCMP\b`),
		regexp.MustCompile(`(?i)police\b`),
		regexp.MustCompile(`(?i)Fire Department`),
		regexp.MustCompile(`(?i)EMS\b`),
	}

	areaRe = regexp.MustCompile(`\b(?:in|at)\s+([A-Z][\w\s'\-]{3,80}?(?:Area|Park|Recreation|Range|Provincial))`)

	difficultyRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b5\.[0-9]{1,2}[a-z]?\b`),
		regexp.MustCompile(`(?i)\bclass\s+[1-5]\b`),
		regexp.MustCompile(`(?i)\bV\d+\b`),
		regexp.MustCompile(`(?i)\bGrade\s+[I|II|III|IV|V|VI]\b`),
	}

	fallHeightRe = regexp.MustCompile(`(?i)(\d{2,5})\s*(?:feet|ft|foot)\b`)
	slopeRe      = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:degrees?|°)\b`)
	aspectRe     = regexp.MustCompile(`(?i)\b(N|NE|E|SE|S|SW|W|NW)\b(?:[- ]?facing| aspect)?`)
)

var routeTypeKeywords = []string{
	"rappel", "rappelling", "couloir", "gully", "ridge", "spire", "face",
	"wall", "crag", "route", "descent", "ascent",
}

var equipmentKeywords = []string{
	"piton", "anchor", "pitons", "harness", "leash", "carabiner", "bolt",
	"gps", "rope",
}

// wordNumbers backs the "one person died" fallback for small counts.
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// Extractor runs the regex scans, optionally corroborated by a gazetteer of
// known mountain names.
type Extractor struct {
	gazetteer []string
	gazRes    []*regexp.Regexp
}

// New builds an Extractor. gazetteer may be nil to disable place matching.
func New(gazetteer []string) *Extractor {
	e := &Extractor{gazetteer: gazetteer}
	for _, name := range gazetteer {
		e.gazRes = append(e.gazRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	}
	return e
}

// Extract applies the ordered regex scans and merges their results. It is
// read-only and idempotent; every sub-extraction caps its list length to
// bound prompt size downstream. Empty input yields an empty map.
func (e *Extractor) Extract(text string) map[string]any {
	out := map[string]any{}
	if text == "" {
		return out
	}

	// dates
	var dates []string
	for _, m := range dateRe.FindAllString(text, -1) {
		dates = append(dates, strings.Trim(m, " ,."))
	}
	if len(dates) > 0 {
		if len(dates) > 3 {
			dates = dates[:3]
		}
		out["pre_dates"] = dates
	}

	// named people
	var people []map[string]any
	for _, m := range namedPersonRe.FindAllStringSubmatch(text, -1) {
		age, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		people = append(people, map[string]any{"name": strings.TrimSpace(m[1]), "age": age})
	}
	if len(people) > 10 {
		people = people[:10]
	}

	// unnamed people are appended after the named ones, never overwriting
	for _, m := range unnamedPersonRe.FindAllStringSubmatch(text, -1) {
		age, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		person := map[string]any{"name": "Unknown", "age": age}
		switch strings.ToLower(m[2]) {
		case "man", "male", "boy":
			person["sex"] = "male"
		case "woman", "female", "girl":
			person["sex"] = "female"
		}
		people = append(people, person)
	}
	if len(people) > 0 {
		out["people_pre"] = people
	}

	// counts
	killed := findInts(killedRes, text)
	injured := findInts(injuredRes, text)
	for word, n := range wordNumbers {
		re := regexp.MustCompile(`(?i)\b` + word + `\b\s+(?:people\s+)?(?:died|dead|killed)\b`)
		if re.MatchString(text) {
			killed = append(killed, n)
		}
	}
	if len(killed) > 0 {
		out["num_fatalities_pre"] = maxInt(killed)
	}
	if len(injured) > 0 {
		out["num_injured_pre"] = maxInt(injured)
	}

	// rescue teams
	rescueSeen := map[string]bool{}
	var rescues []string
	for _, re := range rescueRes {
		for _, m := range re.FindAllString(text, -1) {
			s := strings.TrimSpace(m)
			if !rescueSeen[s] {
				rescueSeen[s] = true
				rescues = append(rescues, s)
			}
		}
	}
	if len(rescues) > 0 {
		out["rescue_teams_pre"] = rescues
	}

	// area / park heuristic
	if m := areaRe.FindStringSubmatch(text); m != nil {
		out["area_pre"] = strings.TrimSpace(m[1])
	}

	// gazetteer
	var gazMatches []string
	for i, re := range e.gazRes {
		if re.MatchString(text) {
			gazMatches = append(gazMatches, e.gazetteer[i])
		}
	}
	if len(gazMatches) > 0 {
		out["gazetteer_matches"] = gazMatches
	}

	// lead sentences
	if sents := splitSentences(strings.TrimSpace(text)); len(sents) > 0 {
		if len(sents) > 2 {
			sents = sents[:2]
		}
		out["lead_sentences"] = sents
	}

	// route difficulty tokens
	var diffs []string
	diffSeen := map[string]bool{}
	for _, re := range difficultyRes {
		for _, m := range re.FindAllString(text, -1) {
			if !diffSeen[m] {
				diffSeen[m] = true
				diffs = append(diffs, m)
			}
		}
	}
	if len(diffs) > 0 {
		out["route_difficulty_pre"] = diffs
	}

	if kws := matchKeywords(text, routeTypeKeywords); len(kws) > 0 {
		out["route_types_pre"] = kws
	}
	if kws := matchKeywords(text, equipmentKeywords); len(kws) > 0 {
		out["equipment_pre"] = kws
	}

	// fall height feet → meters companion
	if m := fallHeightRe.FindStringSubmatch(text); m != nil {
		if feet, err := strconv.Atoi(m[1]); err == nil {
			out["fall_height_feet_pre"] = feet
			out["fall_height_meters_pre"] = math.Round(float64(feet)*0.3048*10) / 10
		}
	}

	// slope angle and aspect for snow/ski contexts
	if m := slopeRe.FindStringSubmatch(text); m != nil {
		if deg, err := strconv.ParseFloat(m[1], 64); err == nil {
			out["slope_angle_deg_pre"] = deg
		}
	}
	if m := aspectRe.FindStringSubmatch(text); m != nil {
		out["aspect_cardinal_pre"] = strings.ToUpper(m[1])
	}

	return out
}

func findInts(res []*regexp.Regexp, text string) []int {
	var vals []int
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			vals = append(vals, v)
		}
	}
	return vals
}

func maxInt(vals []int) int {
	best := vals[0]
	for _, v := range vals[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

func matchKeywords(text string, keywords []string) []string {
	var found []string
	seen := map[string]bool{}
	for _, kw := range keywords {
		if seen[kw] {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + kw + `\b`)
		if re.MatchString(text) {
			seen[kw] = true
			found = append(found, kw)
		}
	}
	return found
}

// splitSentences breaks text after sentence-final punctuation followed by
// whitespace.
func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var sents []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				sents = append(sents, string(runes[start:i+1]))
				j := i + 1
				for j < len(runes) && unicode.IsSpace(runes[j]) {
					j++
				}
				start = j
				i = j - 1
			}
		}
	}
	if start < len(runes) {
		sents = append(sents, string(runes[start:]))
	}
	return sents
}
