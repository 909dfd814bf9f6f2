package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/internal/cost"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

const (
	fuseSystem = "You output STRICT JSON only."

	// captionsFileName is the OCR/vision sidecar written next to an
	// artifact when image enrichment ran for that article.
	captionsFileName = "captions.json"

	enrichedSubdir = "enriched"
	fusedSubdir    = "fused"
)

// FuseStats summarizes one merge-and-fusion run.
type FuseStats struct {
	Events   int `json:"events"`
	Enriched int `json:"enriched"`
	Fused    int `json:"fused"`
}

// Fuser merges OCR sidecar cues into the best record of each event and
// fuses multi-source events into one canonical JSON per event_id. Both
// stages prefer deterministic merging and only call the model when a
// sidecar is present or the sources genuinely conflict.
type Fuser struct {
	client      openai.Client
	gate        budget.Gate
	mergeModel  string
	fusionModel string
	costs       *cost.Tracker
	eventsDir   string
	cacheDir    string

	// root is stripped from absolute paths in output records so fused
	// files stay portable across checkouts.
	root string
}

func NewFuser(client openai.Client, gate budget.Gate, mergeModel, fusionModel string, costs *cost.Tracker, eventsDir, cacheDir, root string) *Fuser {
	return &Fuser{
		client:      client,
		gate:        gate,
		mergeModel:  mergeModel,
		fusionModel: fusionModel,
		costs:       costs,
		eventsDir:   eventsDir,
		cacheDir:    cacheDir,
		root:        root,
	}
}

// Run groups artifacts by event_id and produces enriched and fused JSON
// files under the events directory. Events whose fused output is newer
// than every input are skipped unless cacheClear is set.
func (f *Fuser) Run(ctx context.Context, artifactsDir string, dryRun, cacheClear bool) (FuseStats, error) {
	recs, err := LoadRecords(artifactsDir)
	if err != nil {
		return FuseStats{}, err
	}

	groups := make(map[string][]Record)
	for _, r := range recs {
		eid := r.str("event_id")
		if eid == "" {
			continue
		}
		groups[eid] = append(groups[eid], r)
	}
	stats := FuseStats{Events: len(groups)}
	if len(groups) == 0 {
		zap.L().Info("no event_id groups found, run event assignment first")
		return stats, nil
	}

	mergeCache := map[string]map[string]any{}
	fuseCache := map[string]map[string]any{}
	if !cacheClear {
		loadCache(filepath.Join(f.cacheDir, mergeCacheFile), &mergeCache)
		loadCache(filepath.Join(f.cacheDir, fusionCacheFile), &fuseCache)
	}

	eids := make([]string, 0, len(groups))
	for eid := range groups {
		eids = append(eids, eid)
	}
	sort.Strings(eids)

	for _, eid := range eids {
		group := groups[eid]
		if !cacheClear && f.fusedUpToDate(eid, group) {
			continue
		}
		enriched, err := f.mergeEvent(ctx, eid, group, dryRun, mergeCache)
		if err != nil {
			return stats, err
		}
		if enriched == nil {
			continue
		}
		stats.Enriched++
		if _, err := f.fuseEvent(ctx, eid, enriched, group, dryRun, fuseCache); err != nil {
			return stats, err
		}
		stats.Fused++
	}

	if !dryRun {
		saveCache(filepath.Join(f.cacheDir, mergeCacheFile), mergeCache)
		saveCache(filepath.Join(f.cacheDir, fusionCacheFile), fuseCache)
	}
	return stats, nil
}

// fusedUpToDate reports whether the fused output for eid is at least as
// new as every input artifact.
func (f *Fuser) fusedUpToDate(eid string, group []Record) bool {
	info, err := os.Stat(filepath.Join(f.eventsDir, fusedSubdir, eid+".json"))
	if err != nil {
		return false
	}
	for _, r := range group {
		in, err := os.Stat(r.Path)
		if err != nil {
			continue
		}
		if in.ModTime().After(info.ModTime()) {
			return false
		}
	}
	return true
}

// mergeEvent folds the first usable OCR sidecar into the group's
// highest-confidence record and writes the enriched event file.
func (f *Fuser) mergeEvent(ctx context.Context, eid string, group []Record, dryRun bool, cache map[string]map[string]any) (map[string]any, error) {
	if len(group) == 0 {
		return nil, nil
	}
	baseline := chooseBaseline(group)

	var ocr map[string]any
	for _, r := range group {
		sidecar, err := artifacts.ReadJSON(filepath.Join(filepath.Dir(r.Path), captionsFileName))
		if err != nil {
			continue
		}
		if shouldOCRMerge(sidecar) {
			ocr = sidecar
			break
		}
	}

	var enriched map[string]any
	if ocr == nil {
		enriched = deepCopy(baseline.Data)
	} else {
		key := objectsSig(baseline.Data, ocr)
		if cached, ok := cache[key]; ok {
			enriched = cached
		} else {
			enriched = f.llmMerge(ctx, baseline.Data, ocr)
			if enriched == nil {
				enriched = deterministicMerge(baseline.Data, ocr)
			}
			enriched = normalizePaths(enriched, f.root).(map[string]any)
			cache[key] = enriched
		}
	}

	if !dryRun {
		out := filepath.Join(f.eventsDir, enrichedSubdir, eid+".json")
		if err := artifacts.WriteJSON(out, enriched); err != nil {
			return nil, eris.Wrap(err, "events: write enriched")
		}
	}
	return enriched, nil
}

func (f *Fuser) llmMerge(ctx context.Context, base, ocr map[string]any) map[string]any {
	if f.client == nil || !f.gate.CanCall() {
		return nil
	}
	prompt := "You are a careful JSON merger. Merge OCR/viz cues into BASE, preserving BASE fields, " +
		"unioning arrays (no duplicates), and only overwriting scalars if OCR provides clearer/more specific values.\n\n" +
		"BASE:\n" + canonicalJSON(base) + "\n\n" +
		"OCR:\n" + canonicalJSON(ocr) + "\n\n" +
		"Return VALID JSON only."
	resp, err := f.complete(ctx, "merge", f.mergeModel, prompt)
	if err != nil {
		zap.L().Warn("merge call failed, using deterministic merge", zap.Error(err))
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp)), &out); err != nil {
		zap.L().Warn("merge response not valid json, using deterministic merge")
		return nil
	}
	return out
}

// fuseEvent fuses the enriched record with every source record for the
// event. LLM fusion runs only when deterministic fusion sees conflicting
// narrative fields.
func (f *Fuser) fuseEvent(ctx context.Context, eid string, enriched map[string]any, group []Record, dryRun bool, cache map[string]map[string]any) (map[string]any, error) {
	candidates := make([]map[string]any, 0, len(group)+1)
	candidates = append(candidates, enriched)
	for _, r := range group {
		candidates = append(candidates, r.Data)
	}

	fused := deterministicFuse(candidates)
	if hasConflicts(candidates) && f.client != nil && f.gate.CanCall() {
		key := objectsSig(candidates)
		if cached, ok := cache[key]; ok {
			fused = cached
		} else if resolved := f.llmFuse(ctx, candidates); resolved != nil {
			fused = normalizePaths(resolved, f.root).(map[string]any)
			cache[key] = fused
		}
	}
	fused = normalizePaths(fused, f.root).(map[string]any)

	if !dryRun {
		out := filepath.Join(f.eventsDir, fusedSubdir, eid+".json")
		if err := artifacts.WriteJSON(out, fused); err != nil {
			return nil, eris.Wrap(err, "events: write fused")
		}
	}
	return fused, nil
}

func (f *Fuser) llmFuse(ctx context.Context, candidates []map[string]any) map[string]any {
	prompt := "Fuse these per-source event JSON objects into one canonical record. Resolve conflicts, " +
		"union arrays without duplicates, preserve provenance when available, and prefer higher-confidence fields.\n\n" +
		"RECORDS:\n" + canonicalJSON(candidates) + "\n\n" +
		"Return VALID JSON only."
	resp, err := f.complete(ctx, "fusion", f.fusionModel, prompt)
	if err != nil {
		zap.L().Warn("fusion call failed, keeping deterministic fusion", zap.Error(err))
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp)), &out); err != nil {
		zap.L().Warn("fusion response not valid json, keeping deterministic fusion")
		return nil
	}
	return out
}

func (f *Fuser) complete(ctx context.Context, phase, model, user string) (string, error) {
	temp := 0.0
	req := openai.CompletionRequest{Model: model, System: fuseSystem, User: user}
	if openai.SupportsTemperature(model) {
		req.Temperature = &temp
	}
	resp, err := f.client.Complete(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "events: %s call", phase)
	}
	f.gate.RecordCall(1)
	f.costs.Add(phase, model, resp.Usage)
	resp.Usage.LogCost(model, phase)
	return resp.Text, nil
}

// chooseBaseline picks the record with the highest confidence score.
func chooseBaseline(group []Record) Record {
	best := group[0]
	bestScore := -1.0
	for _, r := range group {
		if s := confOf(r.Data); s > bestScore {
			best, bestScore = r, s
		}
	}
	return best
}

// shouldOCRMerge gates sidecar merging on a minimal confidence score and
// at least one meaningful enrichment field.
func shouldOCRMerge(ocr map[string]any) bool {
	if ocr == nil {
		return false
	}
	if confOf(ocr) < 0.1 {
		return false
	}
	return truthy(ocr["derived_metrics"]) || truthy(ocr["events"]) || truthy(ocr["event_chain"])
}

// deterministicMerge unions the sidecar's enrichment fields into a copy of
// base without touching anything else.
func deterministicMerge(base, ocr map[string]any) map[string]any {
	out := deepCopy(base)
	for _, k := range []string{"derived_metrics", "activity_specific", "cause_layers"} {
		extra, ok := ocr[k].(map[string]any)
		if !ok {
			continue
		}
		merged := map[string]any{}
		if existing, ok := out[k].(map[string]any); ok {
			for kk, vv := range existing {
				merged[kk] = vv
			}
		}
		for kk, vv := range extra {
			merged[kk] = vv
		}
		out[k] = merged
	}
	for _, k := range []string{"events", "event_chain", "photo_urls", "video_urls"} {
		if truthy(ocr[k]) {
			out[k] = listUnion([]any{out[k], ocr[k]})
		}
	}
	return out
}

// deterministicFuse folds the candidates into one record: lists union,
// maps shallow-merge, and scalars follow per-field selection rules with
// higher-confidence sources winning ties.
func deterministicFuse(items []map[string]any) map[string]any {
	ordered := make([]map[string]any, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return confOf(ordered[i]) > confOf(ordered[j])
	})

	keySet := map[string]struct{}{}
	for _, it := range ordered {
		for k := range it {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		var vals []any
		for _, it := range ordered {
			if v, ok := it[k]; ok {
				vals = append(vals, v)
			}
		}
		switch {
		case anyIsList(vals):
			out[k] = listUnion(vals)
		case anyIsMap(vals):
			merged := map[string]any{}
			for _, v := range vals {
				if m, ok := v.(map[string]any); ok {
					for kk, vv := range m {
						merged[kk] = vv
					}
				}
			}
			out[k] = merged
		default:
			out[k] = keepScalar(k, vals)
		}
	}

	// source_url always becomes the union of every source's URLs so the
	// fused record tracks all original reports.
	var urls []any
	for _, it := range ordered {
		switch v := it["source_url"].(type) {
		case []any:
			urls = append(urls, v)
		case nil:
		default:
			urls = append(urls, []any{v})
		}
	}
	out["source_url"] = listUnion(urls)

	return out
}

// keepScalar selects one value for a scalar field from the candidates,
// which arrive in descending confidence order.
func keepScalar(k string, vals []any) any {
	var nonEmpty []any
	for _, v := range vals {
		if v == nil || v == "" {
			continue
		}
		nonEmpty = append(nonEmpty, v)
	}
	if len(nonEmpty) == 0 {
		if len(vals) > 0 {
			return vals[0]
		}
		return nil
	}

	switch k {
	case "accident_summary_text", "timeline_text":
		best := nonEmpty[0]
		for _, v := range nonEmpty[1:] {
			if len(fmt.Sprint(v)) > len(fmt.Sprint(best)) {
				best = v
			}
		}
		return best
	case "title", "article_title":
		// Prefer a descriptive title over one with an unfilled placeholder.
		best := nonEmpty[0]
		bestKey := titleSortKey(best)
		for _, v := range nonEmpty[1:] {
			if key := titleSortKey(v); key.placeholder != bestKey.placeholder {
				if !key.placeholder {
					best, bestKey = v, key
				}
			} else if key.length > bestKey.length {
				best, bestKey = v, key
			}
		}
		return best
	case "accident_date":
		var valid []string
		for _, v := range nonEmpty {
			if s, ok := v.(string); ok && strings.HasPrefix(s, "20") {
				valid = append(valid, s)
			}
		}
		if len(valid) > 0 {
			sort.Strings(valid)
			return valid[0]
		}
		return nonEmpty[0]
	case "extraction_confidence_score":
		best := toFloat(nonEmpty[0])
		for _, v := range nonEmpty[1:] {
			if f := toFloat(v); f > best {
				best = f
			}
		}
		return best
	}
	return nonEmpty[0]
}

type titleKey struct {
	placeholder bool
	length      int
}

func titleSortKey(v any) titleKey {
	s := fmt.Sprint(v)
	return titleKey{placeholder: strings.Contains(s, "None"), length: len(s)}
}

// hasConflicts reports whether the candidates disagree on any narrative
// field worth a fusion call.
func hasConflicts(items []map[string]any) bool {
	for _, k := range []string{"timeline_text", "accident_summary_text"} {
		seen := map[string]struct{}{}
		for _, it := range items {
			v, ok := it[k]
			if !ok || !truthy(v) {
				continue
			}
			seen[fmt.Sprint(v)] = struct{}{}
		}
		if len(seen) > 1 {
			return true
		}
	}
	return false
}

// listUnion flattens the given lists into one, deduplicated by canonical
// JSON identity and keeping first-seen order.
func listUnion(vals []any) []any {
	res := []any{}
	seen := map[string]struct{}{}
	for _, v := range vals {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		for _, x := range arr {
			var key string
			switch x.(type) {
			case map[string]any, []any:
				key = canonicalJSON(x)
			default:
				key = fmt.Sprint(x)
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			res = append(res, x)
		}
	}
	return res
}

// normalizePaths rewrites absolute paths under root to root-relative form
// throughout the object.
func normalizePaths(obj any, root string) any {
	if root == "" {
		return obj
	}
	switch v := obj.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, vv := range v {
			out[k] = normalizePaths(vv, root)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, vv := range v {
			out[i] = normalizePaths(vv, root)
		}
		return out
	case string:
		if strings.HasPrefix(v, root) {
			rel := strings.TrimPrefix(v, root)
			if !strings.HasPrefix(rel, "/") {
				rel = "/" + rel
			}
			return rel
		}
		return v
	default:
		return obj
	}
}

func anyIsList(vals []any) bool {
	for _, v := range vals {
		if _, ok := v.([]any); ok {
			return true
		}
	}
	return false
}

func anyIsMap(vals []any) bool {
	for _, v := range vals {
		if _, ok := v.(map[string]any); ok {
			return true
		}
	}
	return false
}

// truthy mirrors emptiness checks on decoded JSON values.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case bool:
		return x
	case float64:
		return x != 0
	}
	return true
}

func confOf(m map[string]any) float64 {
	return toFloat(m["extraction_confidence_score"])
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return 0
}

func deepCopy(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}
