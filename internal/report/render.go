package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header prepended to every generated report.
type FrontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Region      string `yaml:"region"`
	Audience    string `yaml:"audience"`
	EventID     string `yaml:"event_id"`
}

func (m FrontMatter) Render() string {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "---\n---\n"
	}
	return "---\n" + string(data) + "---\n"
}

// jsonLD renders a schema.org Article block describing the event, so
// published reports stay machine-readable.
func jsonLD(event map[string]any) string {
	headline := fmt.Sprintf("%s — %s (%s)",
		strOr(event, "mountain_name", "Unknown"),
		strOr(event, "accident_type", "Incident"),
		strOr(event, "accident_date", ""))
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "Article",
		"headline":      headline,
		"datePublished": firstStr(event, "article_date_published", "accident_date"),
		"about":         []any{event["activity_type"], event["region"]},
		"identifier":    event["event_id"],
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return ""
	}
	return `<script type="application/ld+json">` + strings.TrimRight(buf.String(), "\n") + "</script>\n"
}

// markdownTimeline renders the event chain as a bulleted timeline.
func markdownTimeline(events []any) string {
	if len(events) == 0 {
		return ""
	}
	var lines []string
	for _, e := range events {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		ts := firstStr(m, "ts_iso", "approx_time")
		desc := firstStr(m, "description", "type")
		lines = append(lines, fmt.Sprintf("- %s — %s", ts, desc))
	}
	return strings.Join(lines, "\n")
}

// markdownTable renders rows as a pipe table over the union of their keys.
func markdownTable(rows []any) string {
	if len(rows) == 0 {
		return ""
	}
	keySet := map[string]struct{}{}
	maps := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		maps = append(maps, m)
		for k := range m {
			keySet[k] = struct{}{}
		}
	}
	if len(keySet) == 0 {
		return ""
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("| " + strings.Join(keys, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(keys)) + "\n")
	for i, m := range maps {
		cells := make([]string, len(keys))
		for j, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |")
		if i < len(maps)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func markdownBullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var lines []string
	for _, i := range items {
		lines = append(lines, "- "+i)
	}
	return strings.Join(lines, "\n")
}

func strOr(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
