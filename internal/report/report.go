// Package report renders per-event Markdown incident reports from fused
// event records, in the style of AAC Accidents and UIAA bulletins. The
// narrative is model-written when a client and budget are available and
// falls back to a deterministic template otherwise.
package report

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
	fusedSubdir   = "fused"
	reportsSubdir = "reports"
)

// Generator produces one Markdown report per fused event.
type Generator struct {
	client        openai.Client
	gate          budget.Gate
	plannerModel  string
	writerModel   string
	verifierModel string
	costs         *cost.Tracker
	eventsDir     string
}

func NewGenerator(client openai.Client, gate budget.Gate, plannerModel, writerModel, verifierModel string, costs *cost.Tracker, eventsDir string) *Generator {
	return &Generator{
		client:        client,
		gate:          gate,
		plannerModel:  plannerModel,
		writerModel:   writerModel,
		verifierModel: verifierModel,
		costs:         costs,
		eventsDir:     eventsDir,
	}
}

// EventIDs lists every fused event available for reporting.
func (g *Generator) EventIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(g.eventsDir, fusedSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "report: list fused events")
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Generate writes the report for one event and returns its path. With
// dryRun the report is composed but not written and the returned path is
// empty.
func (g *Generator) Generate(ctx context.Context, eid, audience string, familySensitive, dryRun bool) (string, error) {
	event, err := artifacts.ReadJSON(filepath.Join(g.eventsDir, fusedSubdir, eid+".json"))
	if err != nil {
		return "", eris.Wrapf(err, "report: load fused event %s", eid)
	}

	titleHint := firstStr(event, "mountain_name", "peak", "area_name", "location", "region")
	if titleHint == "" {
		titleHint = "Mountaineering"
	}

	draft := g.writeDraft(ctx, event, titleHint, audience, familySensitive)
	if draft == "" {
		draft = deterministicDraft(event, titleHint)
	}

	meta := FrontMatter{
		Title:       fmt.Sprintf("%s — %s (%s)", titleSeed(event), strOr(event, "accident_type", "Incident"), strOr(event, "accident_date", "")),
		Description: strOr(event, "accident_summary_text", ""),
		Date:        strOr(event, "accident_date", ""),
		Region:      strOr(event, "region", ""),
		Audience:    audience,
		EventID:     strOr(event, "event_id", eid),
	}
	final := meta.Render() + jsonLD(event) + "\n" + draft

	if dryRun {
		return "", nil
	}
	out := filepath.Join(g.eventsDir, reportsSubdir, eid+".md")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", eris.Wrap(err, "report: create reports dir")
	}
	if err := os.WriteFile(out, []byte(final), 0o644); err != nil {
		return "", eris.Wrap(err, "report: write markdown")
	}
	return out, nil
}

// writeDraft runs the planner, writer, and verifier. Any failure along
// the way returns an empty draft so the deterministic template takes
// over.
func (g *Generator) writeDraft(ctx context.Context, event map[string]any, titleHint, audience string, familySensitive bool) string {
	if g.client == nil || !g.gate.CanCall() {
		zap.L().Info("composing report deterministically, llm unavailable or capped")
		return ""
	}
	eventJSON := canonicalJSON(event)
	sensitive := strconv.FormatBool(familySensitive)

	outline, err := g.llmJSON(ctx, "report_plan", g.plannerModel, plannerSystem,
		fmt.Sprintf(plannerUserTemplate, eventJSON))
	if err != nil {
		zap.L().Warn("report planner failed", zap.Error(err))
		return ""
	}

	writerSystem := fmt.Sprintf(writerSystemTemplate, audience, sensitive)
	draft, err := g.llmText(ctx, "report_write", g.writerModel, writerSystem,
		fmt.Sprintf(writerUserTemplate, titleHint, canonicalJSON(outline), eventJSON))
	if err != nil {
		zap.L().Warn("report writer failed", zap.Error(err))
		return ""
	}

	verdict, err := g.llmJSON(ctx, "report_verify", g.verifierModel, verifierSystem,
		fmt.Sprintf(verifierUserTemplate, sensitive, eventJSON, draft))
	if err != nil {
		zap.L().Warn("report verifier failed, keeping unverified draft", zap.Error(err))
		return draft
	}
	if issues, ok := verdict["issues"].([]any); ok && len(issues) > 0 {
		zap.L().Warn("report verifier flagged issues", zap.Int("count", len(issues)))
	}
	return draft
}

func (g *Generator) llmJSON(ctx context.Context, phase, model, system, user string) (map[string]any, error) {
	text, err := g.llmText(ctx, phase, model, system, user)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, eris.Wrapf(err, "report: %s response is not json", phase)
	}
	return out, nil
}

func (g *Generator) llmText(ctx context.Context, phase, model, system, user string) (string, error) {
	temp := 0.0
	req := openai.CompletionRequest{Model: model, System: system, User: user}
	if openai.SupportsTemperature(model) {
		req.Temperature = &temp
	}
	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return "", eris.Wrapf(err, "report: %s call", phase)
	}
	g.gate.RecordCall(1)
	g.costs.Add(phase, model, resp.Usage)
	resp.Usage.LogCost(model, phase)
	return resp.Text, nil
}

// deterministicDraft composes the report body straight from the fused
// record, section by section, including only what the evidence supports.
func deterministicDraft(event map[string]any, titleHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Incident Report\n\n", titleHint)

	b.WriteString("## Executive Summary\n\n")
	if s := strOr(event, "accident_summary_text", ""); s != "" {
		b.WriteString(s + "\n\n")
	} else {
		b.WriteString("Details of this incident are limited; see the sources below.\n\n")
	}

	var loc []string
	if v := strOr(event, "mountain_name", ""); v != "" {
		loc = append(loc, "Peak/Area: "+v)
	}
	if v := strOr(event, "region", ""); v != "" {
		loc = append(loc, "Region: "+v)
	}
	if v := strOr(event, "activity_type", ""); v != "" {
		loc = append(loc, "Activity: "+v)
	}
	if v := strOr(event, "route_name", ""); v != "" {
		loc = append(loc, "Route: "+v)
	}
	if len(loc) > 0 {
		b.WriteString("## Location and Context\n\n" + markdownBullets(loc) + "\n\n")
	}

	timeline := ""
	if evs, ok := event["events"].([]any); ok {
		timeline = markdownTimeline(evs)
	}
	if timeline == "" {
		if evs, ok := event["event_chain"].([]any); ok {
			timeline = markdownTimeline(evs)
		}
	}
	if timeline == "" {
		timeline = strOr(event, "timeline_text", "")
	}
	if timeline != "" {
		b.WriteString("## Timeline of Events\n\n" + timeline + "\n\n")
	}

	if people, ok := event["people"].([]any); ok {
		if table := markdownTable(people); table != "" {
			b.WriteString("## People Involved\n\n" + table + "\n\n")
		}
	}

	if causes := causeBullets(event); len(causes) > 0 {
		b.WriteString("## Causal Analysis\n\n" + markdownBullets(causes) + "\n\n")
	}

	var rescue []string
	if v := strOr(event, "rescue_method", ""); v != "" {
		rescue = append(rescue, "Rescue method: "+v)
	}
	for _, team := range strList(event["rescue_teams_involved"]) {
		rescue = append(rescue, "Responder: "+team)
	}
	if v := strOr(event, "response_difficulties", ""); v != "" {
		rescue = append(rescue, "Response difficulties: "+v)
	}
	if len(rescue) > 0 {
		b.WriteString("## Rescue and Outcome\n\n" + markdownBullets(rescue) + "\n\n")
	}

	if sources := sourceList(event); len(sources) > 0 {
		b.WriteString("## Sources\n\n" + markdownBullets(sources) + "\n")
	}
	return b.String()
}

// causeBullets flattens the nested accident_causes object into readable
// bullets.
func causeBullets(event map[string]any) []string {
	causes, ok := event["accident_causes"].(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range strList(causes["proximate_causes"]) {
		out = append(out, "Proximate cause: "+humanize(v))
	}
	for _, v := range strList(causes["contributing_factors"]) {
		out = append(out, "Contributing factor: "+humanize(v))
	}
	return out
}

func humanize(token string) string {
	return strings.ReplaceAll(token, "_", " ")
}

// sourceList returns the event's unique source URLs. Fused records carry
// a list; single-source records a string.
func sourceList(event map[string]any) []string {
	switch v := event["source_url"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		seen := map[string]struct{}{}
		for _, u := range v {
			s, ok := u.(string)
			if !ok || s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// titleSeed picks the most descriptive identity for the front-matter
// title. Fused records occasionally store a nested location object.
func titleSeed(event map[string]any) string {
	for _, k := range []string{"title", "mountain_name", "area_name", "location", "region"} {
		switch v := event[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			var parts []string
			for _, kk := range []string{"area_name", "nearby", "region"} {
				if s, ok := v[kk].(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
	}
	return "Unknown"
}

func strList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, x := range arr {
		if s, ok := x.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func canonicalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
