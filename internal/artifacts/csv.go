package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// CanonicalFields is the stable leading column order of the CSV export. It
// covers the scalar keys of the extraction schema; extra scalar keys found
// in artifacts follow it, then metadata and list-count columns.
var CanonicalFields = []string{
	"source_name",
	"article_title",
	"article_date_published",
	"region",
	"mountain_name",
	"route_name",
	"activity_type",
	"accident_type",
	"accident_date",
	"accident_time_approx",
	"num_people_involved",
	"num_fatalities",
	"num_injured",
	"num_rescued",
	"rescue_method",
	"response_difficulties",
	"bodies_recovery_method",
	"accident_summary_text",
	"timeline_text",
	"notable_equipment_details",
	"local_expert_commentary",
	"family_statements",
	"fall_height_meters_estimate",
	"self_rescue_boolean",
	"anchor_failure_boolean",
	"extraction_confidence_score",
}

var metaFields = []string{"domain", "source_url", "ts", "artifact_json"}

var countFields = []string{
	"people_count",
	"rescue_teams_count",
	"photo_urls_count",
	"video_urls_count",
	"related_articles_urls_count",
	"fundraising_links_count",
	"official_reports_links_count",
}

// countSources maps count columns to the artifact list key they measure.
var countSources = map[string]string{
	"people_count":                 "people",
	"rescue_teams_count":           "rescue_teams_involved",
	"photo_urls_count":             "photo_urls",
	"video_urls_count":             "video_urls",
	"related_articles_urls_count":  "related_articles_urls",
	"fundraising_links_count":      "fundraising_links",
	"official_reports_links_count": "official_reports_links",
}

// excluded from the extras columns: either carried as metadata or too large
// for a spreadsheet cell.
var extrasExcluded = map[string]bool{
	"source_url":        true,
	"extracted_at":      true,
	"article_text":      true,
	"scraped_full_text": true,
}

// ExportCSV writes one row per artifact document. The header is
// CanonicalFields, then any extra scalar keys in sorted order, then
// metadata, then the list-count columns.
func ExportCSV(w io.Writer, docs []map[string]any) error {
	canonical := map[string]bool{}
	for _, f := range CanonicalFields {
		canonical[f] = true
	}

	extraSet := map[string]bool{}
	for _, doc := range docs {
		for k, v := range doc {
			if canonical[k] || extrasExcluded[k] || extraSet[k] {
				continue
			}
			if isScalar(v) {
				extraSet[k] = true
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	header := append([]string{}, CanonicalFields...)
	header = append(header, extras...)
	header = append(header, metaFields...)
	header = append(header, countFields...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "artifacts: write csv header")
	}

	for _, doc := range docs {
		row := make([]string, 0, len(header))
		for _, f := range CanonicalFields {
			row = append(row, cell(doc[f]))
		}
		for _, f := range extras {
			row = append(row, cell(doc[f]))
		}

		src, _ := doc["source_url"].(string)
		ts, _ := doc["extracted_at"].(string)
		artifactJSON, err := json.Marshal(doc)
		if err != nil {
			return eris.Wrap(err, "artifacts: marshal artifact for csv")
		}
		row = append(row, domainOf(src), src, ts, string(artifactJSON))

		for _, f := range countFields {
			row = append(row, strconv.Itoa(listLen(doc[countSources[f]])))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "artifacts: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "artifacts: flush csv")
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int64, float64:
		return true
	}
	return false
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func listLen(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case []string:
		return len(x)
	case []map[string]any:
		return len(x)
	}
	return 0
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
