package postprocess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	monthDayYearRe = regexp.MustCompile(`(?i)\b(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	dayMonthYearRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?,?\s+(\d{4})`)
	slashYMDRe     = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})$`)
	slashMDYRe     = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// NormalizeDate coerces a date string to ISO form. Strings already in ISO
// form pass through untouched, including any time component. Natural
// language dates and slash forms normalize to YYYY-MM-DD. Returns false when
// no supported format matches.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s, true
		}
	}
	if m := monthDayYearRe.FindStringSubmatch(s); m != nil {
		return isoFromParts(m[3], m[1], m[2])
	}
	if m := dayMonthYearRe.FindStringSubmatch(s); m != nil {
		return isoFromParts(m[3], m[2], m[1])
	}
	if m := slashYMDRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]), true
	}
	if m := slashMDYRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], m[1], m[2]), true
	}
	return "", false
}

func isoFromParts(year, monthName, day string) (string, bool) {
	month, ok := monthNumbers[strings.ToLower(monthName)[:3]]
	if !ok {
		return "", false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, month, d), true
}
