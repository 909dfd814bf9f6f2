package fetcher

import (
	"regexp"
	"strings"

	"github.com/ridgeline-research/accident-cli/internal/postprocess"
)

// Byline patterns, tried in order against the head of the article text.
var authorPatterns = []*regexp.Regexp{
	// start-of-text simple byline
	regexp.MustCompile(`^(?:by|By)\s+([A-Z][A-Za-z\-']+(?:\s+[A-Z][A-Za-z\-']+){0,4})`),
	// with preceding dash / pipe / bullet
	regexp.MustCompile(`(?:^|[\n\-–|•])\s*(?:by|By)\s+([A-Z][A-Za-z\-']+(?:\s+[A-Z][A-Za-z\-']+){0,4})`),
	// single-token authors, e.g. "By Staff"
	regexp.MustCompile(`(?:^|\n)\s*(?:by|By)\s+([A-Z][A-Za-z]{2,20})`),
}

var dateLabelRe = regexp.MustCompile(
	`(?i)(published|posted|updated|last\s+updated|date|on)[:\s\-]{0,5}` +
		`((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?(?:\s+\d{1,2})(?:,)?(?:\s+\d{4})?` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}` +
		`|\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?,?\s+\d{4})`)

var monthDateRe = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}`)
var isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// ParseReportAuthor locates a reporter byline. Only the first 500 characters
// are searched so quoted "By <Person>" fragments later in the body are not
// picked up.
func ParseReportAuthor(text string) string {
	if text == "" {
		return ""
	}
	head := truncateRunes(text, 500)
	for _, pat := range authorPatterns {
		m := pat.FindStringSubmatch(head)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		switch strings.ToLower(name) {
		case "ap", "reuters":
			continue
		}
		return name
	}
	return ""
}

// ParsePublicationDate extracts a publication date from the article head and
// normalizes it to ISO. Labeled dates ("Published: ...") win over bare
// month-day-year mentions; a bare ISO date anywhere is the last resort.
func ParsePublicationDate(text string) string {
	if text == "" {
		return ""
	}
	snippet := truncateRunes(text, 1800)

	candidate := ""
	if m := dateLabelRe.FindStringSubmatch(snippet); m != nil {
		candidate = strings.TrimRight(strings.TrimSpace(m[2]), ").,;")
	} else if m := monthDateRe.FindString(snippet); m != "" {
		candidate = m
	} else if m := isoDateRe.FindString(text); m != "" {
		candidate = m
	}
	if candidate == "" {
		return ""
	}
	iso, ok := postprocess.NormalizeDate(candidate)
	if !ok {
		return ""
	}
	return iso
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
