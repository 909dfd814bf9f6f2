// Package events groups extracted accident records into real-world
// events, enriches them with OCR sidecar cues, and fuses multi-source
// groups into one canonical record per event.
package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
)

// Record is one accident_info.json document plus where it came from.
type Record struct {
	Path string
	Data map[string]any
}

// LoadRecords reads every accident_info.json under baseDir. Unreadable
// files are logged and skipped so one corrupt artifact does not stall a
// whole run.
func LoadRecords(baseDir string) ([]Record, error) {
	paths, err := artifacts.Walk(baseDir)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(paths))
	for _, p := range paths {
		data, err := artifacts.ReadJSON(p)
		if err != nil {
			zap.L().Warn("skipping unreadable artifact", zap.String("path", p), zap.Error(err))
			continue
		}
		recs = append(recs, Record{Path: p, Data: data})
	}
	return recs, nil
}

// Sig is a stable per-record signature over the fields that identify an
// article. It feeds the clustering cache key, so reruns over unchanged
// artifacts never pay for a second clustering call.
func (r Record) Sig() string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		r.Path, r.title(), r.date(), r.str("mountain_name"), r.str("region"),
		truncateRunes(r.text(), 200))
	return md5Hex(raw)
}

func (r Record) title() string    { return r.str("article_title") }
func (r Record) mountain() string { return r.str("mountain_name") }

// date prefers the accident date and falls back to the publication date.
func (r Record) date() string {
	if d := r.str("accident_date"); d != "" {
		return d
	}
	return r.str("article_date_published")
}

// text prefers the flattened article text and falls back to the raw scrape.
func (r Record) text() string {
	if t := r.str("article_text"); t != "" {
		return t
	}
	return r.str("scraped_full_text")
}

func (r Record) str(key string) string {
	if s, ok := r.Data[key].(string); ok {
		return s
	}
	return ""
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
