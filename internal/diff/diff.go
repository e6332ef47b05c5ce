package diff

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/explain"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/model"
)

// Options configures the diff sensitivity.
type Options struct {
	MinCostDelta     float64
	MinPercentChange float64
	MaxItems         int
	CriticalPercent  float64
	WarningPercent   float64
}

// OptionsFrom converts the diff section of a configuration.
func OptionsFrom(cfg config.DiffConfig) Options {
	return Options{
		MinCostDelta:     cfg.MinCostDelta,
		MinPercentChange: cfg.MinPercentChange,
		MaxItems:         cfg.MaxItems,
		CriticalPercent:  cfg.CriticalPercent,
		WarningPercent:   cfg.WarningPercent,
	}
}

// Report summarises the delta between two plan analyses.
type Report struct {
	Summary      SummaryDiff      `json:"summary"`
	Regressions  []Entry          `json:"regressions"`
	Improvements []Entry          `json:"improvements"`
	Introduced   []FindingChange  `json:"introduced_findings"`
	Resolved     []FindingChange  `json:"resolved_findings"`
	Insights     []insightMessage `json:"insights"`
	Options      Options          `json:"-"`
}

// SummaryDiff covers plan-level differences.
type SummaryDiff struct {
	BaseRunID      string  `json:"base_run_id"`
	TargetRunID    string  `json:"target_run_id"`
	BaseCost       float64 `json:"base_cost"`
	TargetCost     float64 `json:"target_cost"`
	DeltaCost      float64 `json:"delta_cost"`
	PercentCost    float64 `json:"percent_cost"`
	BaseNodes      int     `json:"base_nodes"`
	TargetNodes    int     `json:"target_nodes"`
	BaseFindings   int     `json:"base_findings"`
	TargetFindings int     `json:"target_findings"`
}

// Entry captures the delta for a set of nodes with the same signature.
type Entry struct {
	Signature      string  `json:"signature"`
	BaseCost       float64 `json:"base_cost"`
	TargetCost     float64 `json:"target_cost"`
	DeltaCost      float64 `json:"delta_cost"`
	PercentChange  float64 `json:"percent_change"`
	BaseExamined   float64 `json:"base_rows_examined"`
	TargetExamined float64 `json:"target_rows_examined"`
	BaseProduced   float64 `json:"base_rows_produced"`
	TargetProduced float64 `json:"target_rows_produced"`
}

// FindingChange is a finding present on only one side of the diff.
type FindingChange struct {
	Code      insight.Code     `json:"code"`
	Severity  insight.Severity `json:"severity"`
	Signature string           `json:"signature,omitempty"`
	Message   string           `json:"message"`
}

type insightMessage struct {
	Severity string `json:"severity"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
}

// Compare builds a diff report for two analysis results.
func Compare(base, target *explain.Result, opts Options) (*Report, error) {
	if base == nil || base.Root() == nil {
		return nil, fmt.Errorf("diff: base analysis missing")
	}
	if target == nil || target.Root() == nil {
		return nil, fmt.Errorf("diff: target analysis missing")
	}

	opts = applyDefaults(opts)

	baseAgg := aggregate(base.Nodes())
	targetAgg := aggregate(target.Nodes())

	var regressions, improvements []Entry
	for _, sig := range unionKeys(baseAgg, targetAgg) {
		entry := buildEntry(sig, baseAgg[sig], targetAgg[sig])
		if passesRegression(entry, opts) {
			regressions = append(regressions, entry)
		} else if passesImprovement(entry, opts) {
			improvements = append(improvements, entry)
		}
	}

	sort.SliceStable(regressions, func(i, j int) bool {
		return regressions[i].DeltaCost > regressions[j].DeltaCost
	})
	sort.SliceStable(improvements, func(i, j int) bool {
		return improvements[i].DeltaCost < improvements[j].DeltaCost
	})

	if len(regressions) > opts.MaxItems {
		regressions = regressions[:opts.MaxItems]
	}
	if len(improvements) > opts.MaxItems {
		improvements = improvements[:opts.MaxItems]
	}

	baseFindings := keyedFindings(base)
	targetFindings := keyedFindings(target)

	report := &Report{
		Summary: SummaryDiff{
			BaseRunID:      base.ID.String(),
			TargetRunID:    target.ID.String(),
			BaseCost:       base.TotalCost(),
			TargetCost:     target.TotalCost(),
			DeltaCost:      target.TotalCost() - base.TotalCost(),
			PercentCost:    percentChange(base.TotalCost(), target.TotalCost()),
			BaseNodes:      len(base.Nodes()),
			TargetNodes:    len(target.Nodes()),
			BaseFindings:   len(base.Findings),
			TargetFindings: len(target.Findings),
		},
		Regressions:  regressions,
		Improvements: improvements,
		Introduced:   missingFrom(targetFindings, baseFindings),
		Resolved:     missingFrom(baseFindings, targetFindings),
		Options:      opts,
	}
	report.Insights = synthesizeInsights(report)
	return report, nil
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# myxplain diff\n\n")
	b.WriteString("## Summary\n")
	_, _ = fmt.Fprintf(&b, "- Cost: %.2f → %.2f (%+.2f, %+.1f%%)\n",
		r.Summary.BaseCost, r.Summary.TargetCost,
		r.Summary.DeltaCost, r.Summary.PercentCost)
	_, _ = fmt.Fprintf(&b, "- Nodes: %d → %d\n", r.Summary.BaseNodes, r.Summary.TargetNodes)
	_, _ = fmt.Fprintf(&b, "- Findings: %d → %d\n\n", r.Summary.BaseFindings, r.Summary.TargetFindings)

	b.WriteString("### Insights\n")
	if len(r.Insights) == 0 {
		b.WriteString("- No notable plan changes detected\n")
	} else {
		for _, msg := range r.Insights {
			_, _ = fmt.Fprintf(&b, "- %s %s\n", msg.Icon, msg.Message)
		}
	}

	b.WriteString("\n### Regressions\n")
	writeEntries(&b, r.Regressions)
	b.WriteString("\n### Improvements\n")
	writeEntries(&b, r.Improvements)

	b.WriteString("\n### Findings\n")
	if len(r.Introduced) == 0 && len(r.Resolved) == 0 {
		b.WriteString("- Unchanged\n")
	}
	for _, f := range r.Introduced {
		_, _ = fmt.Fprintf(&b, "- introduced `%s` (%s) %s\n", f.Code, f.Severity, f.Message)
	}
	for _, f := range r.Resolved {
		_, _ = fmt.Fprintf(&b, "- resolved `%s` (%s) %s\n", f.Code, f.Severity, f.Message)
	}
	return b.String()
}

func writeEntries(b *strings.Builder, entries []Entry) {
	if len(entries) == 0 {
		b.WriteString("- None above threshold\n")
		return
	}
	b.WriteString("| Step | Base cost | Target cost | Δ cost | Δ % | Rows produced / examined |\n")
	b.WriteString("|---|---:|---:|---:|---:|---|\n")
	for _, entry := range entries {
		_, _ = fmt.Fprintf(b, "| %s | %.2f | %.2f | %+.2f | %+.1f%% | %s |\n",
			entry.Signature,
			entry.BaseCost,
			entry.TargetCost,
			entry.DeltaCost,
			entry.PercentChange,
			rowsSummary(entry))
	}
}

// JSON marshals the diff report into an indented JSON document.
func (r *Report) JSON() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil report")
	}
	type alias Report
	return json.MarshalIndent((*alias)(r), "", "  ")
}

func rowsSummary(entry Entry) string {
	return fmt.Sprintf("%.0f / %.0f → %.0f / %.0f",
		entry.BaseProduced, entry.BaseExamined, entry.TargetProduced, entry.TargetExamined)
}

func synthesizeInsights(r *Report) []insightMessage {
	if r == nil {
		return nil
	}
	var insights []insightMessage
	maxItems := 3

	for i, entry := range r.Regressions {
		if i >= maxItems {
			break
		}
		icon, level := "ℹ️", "info"
		switch {
		case entry.PercentChange >= r.Options.CriticalPercent:
			icon, level = "🔥", "critical"
		case entry.PercentChange >= r.Options.WarningPercent:
			icon, level = "⚠️", "warning"
		}
		text := fmt.Sprintf("%s cost +%.2f (+%.1f%%)", entry.Signature, entry.DeltaCost, entry.PercentChange)
		insights = append(insights, insightMessage{Severity: level, Icon: icon, Message: text})
	}

	for i, entry := range r.Improvements {
		if i >= maxItems {
			break
		}
		text := fmt.Sprintf("%s cost %.2f (%.1f%%)", entry.Signature, entry.DeltaCost, entry.PercentChange)
		insights = append(insights, insightMessage{Severity: "improvement", Icon: "✅", Message: text})
	}

	for _, f := range r.Introduced {
		if f.Severity != insight.SeverityHigh {
			continue
		}
		text := fmt.Sprintf("new %s on %s", f.Code, f.Signature)
		insights = append(insights, insightMessage{Severity: "warning", Icon: "⚠️", Message: text})
	}

	return insights
}

type aggregated struct {
	Cost     float64
	Examined float64
	Produced float64
}

func aggregate(nodes []*model.ExecutionNode) map[string]aggregated {
	result := map[string]aggregated{}
	for _, n := range nodes {
		sig := signature(n)
		entry := result[sig]
		entry.Cost += n.Cost
		if n.RowsExamined != nil {
			entry.Examined += *n.RowsExamined
		}
		if n.RowsProduced != nil {
			entry.Produced += *n.RowsProduced
		}
		result[sig] = entry
	}
	return result
}

// signature identifies a step across two plans: access type, table and key.
func signature(node *model.ExecutionNode) string {
	access := node.AccessType
	if access == "" {
		access = "operation"
	}
	parts := []string{access}
	if node.Table != "" {
		parts = append(parts, node.Table)
	}
	if t, ok := node.TableStep(); ok && t.KeyName() != "" {
		parts = append(parts, t.KeyName())
	}
	return strings.Join(parts, " · ")
}

type findingKey struct {
	code      insight.Code
	signature string
}

type keyedFinding struct {
	key     findingKey
	finding insight.Finding
}

func keyedFindings(res *explain.Result) []keyedFinding {
	out := make([]keyedFinding, 0, len(res.Findings))
	for _, f := range res.Findings {
		key := findingKey{code: f.Code}
		if n, ok := res.Node(f.NodeID); ok {
			key.signature = signature(n)
		}
		out = append(out, keyedFinding{key: key, finding: f})
	}
	return out
}

// missingFrom returns the findings of from whose code and step signature do not occur in other.
func missingFrom(from, other []keyedFinding) []FindingChange {
	present := map[findingKey]bool{}
	for _, kf := range other {
		present[kf.key] = true
	}
	out := []FindingChange{}
	for _, kf := range from {
		if present[kf.key] {
			continue
		}
		out = append(out, FindingChange{
			Code:      kf.finding.Code,
			Severity:  kf.finding.Severity,
			Signature: kf.key.signature,
			Message:   kf.finding.Message,
		})
	}
	return out
}

func unionKeys(base, target map[string]aggregated) []string {
	seen := map[string]struct{}{}
	for k := range base {
		seen[k] = struct{}{}
	}
	for k := range target {
		seen[k] = struct{}{}
	}
	all := make([]string, 0, len(seen))
	for k := range seen {
		all = append(all, k)
	}
	sort.Strings(all)
	return all
}

func buildEntry(sig string, base, target aggregated) Entry {
	return Entry{
		Signature:      sig,
		BaseCost:       base.Cost,
		TargetCost:     target.Cost,
		DeltaCost:      target.Cost - base.Cost,
		PercentChange:  percentChange(base.Cost, target.Cost),
		BaseExamined:   base.Examined,
		TargetExamined: target.Examined,
		BaseProduced:   base.Produced,
		TargetProduced: target.Produced,
	}
}

func passesRegression(entry Entry, opts Options) bool {
	return entry.DeltaCost >= opts.MinCostDelta && entry.PercentChange >= opts.MinPercentChange
}

func passesImprovement(entry Entry, opts Options) bool {
	return entry.DeltaCost <= -opts.MinCostDelta && entry.PercentChange <= -opts.MinPercentChange
}

func percentChange(base, target float64) float64 {
	const eps = 1e-9
	if math.Abs(base) <= eps {
		if math.Abs(target) <= eps {
			return 0
		}
		if target > 0 {
			return 100
		}
		return -100
	}
	return (target - base) / base * 100
}

func applyDefaults(opts Options) Options {
	def := config.Default().Diff
	if opts.MinCostDelta <= 0 {
		opts.MinCostDelta = def.MinCostDelta
	}
	if opts.MinPercentChange <= 0 {
		opts.MinPercentChange = def.MinPercentChange
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = def.MaxItems
	}
	if opts.CriticalPercent <= 0 {
		opts.CriticalPercent = def.CriticalPercent
	}
	if opts.WarningPercent <= 0 {
		opts.WarningPercent = def.WarningPercent
	}
	return opts
}
