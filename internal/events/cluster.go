package events

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ridgeline-research/accident-cli/internal/artifacts"
	"github.com/ridgeline-research/accident-cli/internal/budget"
	"github.com/ridgeline-research/accident-cli/internal/cost"
	"github.com/ridgeline-research/accident-cli/pkg/openai"
)

const clusterSystem = "You are a clustering assistant that outputs STRICT JSON only."

const clusterGuidance = "Guidance: Prefer matching by (date ±1 day), mountain/region names (or aliases), and title similarity."

// Cluster is one group of record indices believed to describe the same
// real-world event.
type Cluster struct {
	ClusterID int   `json:"cluster_id"`
	Indices   []int `json:"indices"`
}

// AssignStats summarizes one event-id assignment run.
type AssignStats struct {
	Files    int `json:"files"`
	Clusters int `json:"clusters"`
	Written  int `json:"written"`
}

// Clusterer assigns a shared event_id to artifacts that describe the same
// accident. Clustering prefers the model; without a client or budget it
// falls back to grouping by mountain and date.
type Clusterer struct {
	client   openai.Client
	gate     budget.Gate
	model    string
	costs    *cost.Tracker
	cacheDir string
}

func NewClusterer(client openai.Client, gate budget.Gate, model string, costs *cost.Tracker, cacheDir string) *Clusterer {
	return &Clusterer{client: client, gate: gate, model: model, costs: costs, cacheDir: cacheDir}
}

// clusterItem is the per-record summary handed to the clustering prompt.
type clusterItem struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Mountain  string `json:"mountain"`
	Region    string `json:"region"`
	SourceURL string `json:"source_url"`
	Excerpt   string `json:"excerpt"`
}

// Assign clusters every artifact under artifactsDir and writes the
// resulting event_id into each accident_info.json. With dryRun nothing is
// written, including the cluster cache. With cacheClear the cache is
// ignored and recomputed.
func (c *Clusterer) Assign(ctx context.Context, artifactsDir string, dryRun, cacheClear bool) (AssignStats, error) {
	recs, err := LoadRecords(artifactsDir)
	if err != nil {
		return AssignStats{}, err
	}
	stats := AssignStats{Files: len(recs)}
	if len(recs) == 0 {
		return stats, nil
	}

	sigs := make([]string, len(recs))
	for i, r := range recs {
		sigs[i] = r.Sig()
	}
	sort.Strings(sigs)
	cacheKey := md5Hex(strings.Join(sigs, "|"))

	cachePath := filepath.Join(c.cacheDir, clusterCacheFile)
	cache := map[string][]Cluster{}
	if !cacheClear {
		loadCache(cachePath, &cache)
	}

	clusters, ok := cache[cacheKey]
	if !ok {
		clusters = c.cluster(ctx, recs)
		cache[cacheKey] = clusters
		if !dryRun {
			saveCache(cachePath, cache)
		}
	}
	clusters = coverAllRecords(clusters, len(recs))
	stats.Clusters = len(clusters)

	for _, cl := range clusters {
		if len(cl.Indices) == 0 {
			continue
		}
		eid := eventIDFor(recs[cl.Indices[0]])
		for _, idx := range cl.Indices {
			rec := recs[idx]
			if rec.Data["event_id"] == eid {
				continue
			}
			rec.Data["event_id"] = eid
			if dryRun {
				continue
			}
			if err := artifacts.WriteJSON(rec.Path, rec.Data); err != nil {
				return stats, eris.Wrap(err, "events: write event_id")
			}
			stats.Written++
		}
	}
	return stats, nil
}

// cluster asks the model to group records, falling back to deterministic
// grouping when no call can be made or the response is unusable.
func (c *Clusterer) cluster(ctx context.Context, recs []Record) []Cluster {
	if c.client == nil || !c.gate.CanCall() {
		zap.L().Info("clustering deterministically, llm unavailable or capped")
		return deterministicClusters(recs)
	}

	items := make([]clusterItem, len(recs))
	for i, r := range recs {
		items[i] = clusterItem{
			Index:     i,
			Title:     r.title(),
			Date:      r.date(),
			Mountain:  r.mountain(),
			Region:    r.str("region"),
			SourceURL: r.str("source_url"),
			Excerpt:   truncateRunes(r.text(), 600),
		}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return deterministicClusters(recs)
	}
	prompt := "Group the following mountain accident news records into clusters, " +
		"where each cluster represents the same real-world event. Return VALID JSON array like: " +
		`[{"cluster_id":0,"indices":[0,2]},{"cluster_id":1,"indices":[1]}].` + "\n\nRecords:\n" +
		string(payload) + "\n" + clusterGuidance

	resp, err := c.complete(ctx, "cluster", clusterSystem, prompt)
	if err != nil {
		zap.L().Warn("clustering call failed, falling back to deterministic grouping", zap.Error(err))
		return deterministicClusters(recs)
	}
	clusters := parseClusters(resp, len(recs))
	if clusters == nil {
		zap.L().Warn("clustering response unusable, falling back to deterministic grouping")
		return deterministicClusters(recs)
	}
	return clusters
}

func (c *Clusterer) complete(ctx context.Context, phase, system, user string) (string, error) {
	temp := 0.0
	req := openai.CompletionRequest{Model: c.model, System: system, User: user}
	if openai.SupportsTemperature(c.model) {
		req.Temperature = &temp
	}
	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "events: %s call", phase)
	}
	c.gate.RecordCall(1)
	c.costs.Add(phase, c.model, resp.Usage)
	resp.Usage.LogCost(c.model, phase)
	return resp.Text, nil
}

// parseClusters validates the model output. Entries without a usable
// indices list are dropped, indices are filtered to valid positions, and a
// missing cluster_id defaults to the running count.
func parseClusters(s string, n int) []Cluster {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
		if start == -1 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
			return nil
		}
	}

	out := make([]Cluster, 0, len(raw))
	for _, entry := range raw {
		list, ok := entry["indices"].([]any)
		if !ok {
			continue
		}
		var indices []int
		for _, v := range list {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			idx := int(f)
			if idx >= 0 && idx < n {
				indices = append(indices, idx)
			}
		}
		if len(indices) == 0 {
			continue
		}
		id := len(out)
		if f, ok := entry["cluster_id"].(float64); ok {
			id = int(f)
		}
		out = append(out, Cluster{ClusterID: id, Indices: indices})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// coverAllRecords appends singleton clusters for any record the model left
// out, so every artifact ends up with an event_id.
func coverAllRecords(clusters []Cluster, n int) []Cluster {
	seen := make([]bool, n)
	for _, cl := range clusters {
		for _, idx := range cl.Indices {
			if idx >= 0 && idx < n {
				seen[idx] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		if !seen[i] {
			clusters = append(clusters, Cluster{ClusterID: len(clusters), Indices: []int{i}})
		}
	}
	return clusters
}

// deterministicClusters groups by lowercased mountain name plus date.
// Records missing either become singletons keyed off their URL, title, or
// file path.
func deterministicClusters(recs []Record) []Cluster {
	order := make([]string, 0, len(recs))
	groups := make(map[string][]int)
	for i, r := range recs {
		mt := strings.ToLower(strings.TrimSpace(r.mountain()))
		dt := r.date()
		var key string
		if mt != "" && dt != "" {
			key = mt + "|" + dt
		} else {
			key = md5Hex(firstNonEmpty(r.str("source_url"), r.title(), r.Path))[:16]
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	out := make([]Cluster, 0, len(order))
	for i, key := range order {
		out = append(out, Cluster{ClusterID: i, Indices: groups[key]})
	}
	return out
}

// eventIDFor derives the stable event identifier from the cluster's first
// record: mountain plus date when both are known, otherwise the best
// available identity field.
func eventIDFor(r Record) string {
	mt, dt := r.mountain(), r.date()
	seed := mt + "|" + dt
	if mt == "" || dt == "" {
		seed = firstNonEmpty(r.title(), r.str("source_url"), r.Path)
	}
	return md5Hex(seed)[:12]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
