package tui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mickamy/myxplain/internal/analyzer"
	"github.com/mickamy/myxplain/internal/explain"
	"github.com/mickamy/myxplain/internal/graph"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/model"
)

// Options controls how the TUI renderer behaves.
type Options struct {
	EnableColor  bool
	MaxDepth     int
	ShowWarnings bool
	BarWidth     int
}

// Render prints an ASCII tree that highlights expensive steps and the findings attached to them.
func Render(w io.Writer, res *explain.Result, opts Options) error {
	if w == nil {
		return errors.New("tui: writer is nil")
	}
	if res == nil {
		return errors.New("tui: empty result")
	}

	if opts.BarWidth <= 0 {
		opts.BarWidth = 20
	}

	if !res.Recognized() {
		renderFindings(w, res.Findings, opts)
		return nil
	}

	analysis := res.Analysis
	_, _ = fmt.Fprintf(w, "Total cost %s | Nodes %d", graph.FormatCost(analysis.TotalCost), analysis.NodeCount)
	if analysis.ActualTimeMs > 0 {
		_, _ = fmt.Fprintf(w, " | Actual time %.0f ms", analysis.ActualTimeMs)
	}
	if analysis.TotalLoops > 0 {
		_, _ = fmt.Fprintf(w, " | Loops %.0f", analysis.TotalLoops)
	}
	_, _ = fmt.Fprintf(w, "\nHot nodes >=10%% cost %d | Divergent row flow %d\n\n",
		len(analysis.HotNodes), len(analysis.DivergentNodes))

	renderFindings(w, res.Findings, opts)

	if analysis.Root == nil {
		_, _ = fmt.Fprintln(w, "No execution steps.")
		return nil
	}

	r := &treeRenderer{w: w, analysis: analysis, findings: res.Findings, opts: opts}
	_, _ = fmt.Fprintf(w, "%s\n", r.line(analysis.Root))
	r.children(analysis.Root, "")

	return nil
}

type treeRenderer struct {
	w        io.Writer
	analysis *analyzer.PlanAnalysis
	findings []insight.Finding
	opts     Options
}

func (r *treeRenderer) children(parent *model.ExecutionNode, prefix string) {
	for i, child := range parent.Children {
		r.branch(child, prefix, i == len(parent.Children)-1)
	}
}

func (r *treeRenderer) branch(node *model.ExecutionNode, prefix string, isLast bool) {
	connector := "|-- "
	childPrefix := prefix + "|   "
	if isLast {
		connector = "`-- "
		childPrefix = prefix + "    "
	}

	_, _ = fmt.Fprintf(r.w, "%s%s%s\n", prefix, connector, r.line(node))

	if s, ok := r.analysis.StatsFor(node.ID); ok && r.opts.MaxDepth > 0 && s.Depth >= r.opts.MaxDepth {
		if len(node.Children) > 0 {
			_, _ = fmt.Fprintf(r.w, "%s`-- ... (%d more nodes)\n", childPrefix, countDescendants(node))
		}
		return
	}

	r.children(node, childPrefix)
}

func (r *treeRenderer) line(node *model.ExecutionNode) string {
	stats, _ := r.analysis.StatsFor(node.ID)
	share := 0.0
	if stats != nil {
		share = stats.CostShare
	}

	label := fmt.Sprintf("[%s] %s", node.ID, insight.NodeLabel(node))
	cost := "cost " + graph.FormatCost(node.Cost)
	pct := fmt.Sprintf("%5.1f%%", share*100)

	bar := drawBar(share, r.opts.BarWidth)
	if r.opts.EnableColor {
		bar = applyColor(bar, pickColor(share))
	}

	parts := []string{label, cost, pct, bar}
	if node.RowsExamined != nil || node.RowsProduced != nil {
		rowInfo := fmt.Sprintf("rows %s/%s", graph.FormatRows(node.RowsProduced), graph.FormatRows(node.RowsExamined))
		if stats != nil && node.RowsExamined != nil && node.RowsProduced != nil {
			if math.IsInf(stats.RowFactor, 1) {
				rowInfo += " (∞)"
			} else if stats.RowFactor > 0 {
				rowInfo += fmt.Sprintf(" (x%.2f)", stats.RowFactor)
			}
		}
		parts = append(parts, rowInfo)
	}

	if n := len(insight.ForNode(r.findings, node.ID)); n > 0 {
		parts = append(parts, fmt.Sprintf("findings %d", n))
	}

	warningText := ""
	if stats != nil && len(stats.Warnings) > 0 {
		warningText = strings.Join(stats.Warnings, "; ")
		if r.opts.ShowWarnings && r.opts.EnableColor {
			warningText = applyColor(warningText, "yellow")
		}
		warningText = " [" + warningText + "]"
	}

	return strings.Join(parts, " | ") + warningText
}

func renderFindings(w io.Writer, findings []insight.Finding, opts Options) {
	if len(findings) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "Findings:")
	for _, f := range findings {
		text := f.Message
		if f.NodeID != "" {
			text = fmt.Sprintf("%s [%s]", text, f.NodeID)
		}
		if opts.EnableColor && f.Severity == insight.SeverityHigh {
			text = applyColor(text, "red")
		}
		_, _ = fmt.Fprintf(w, "  - %s %s %s\n", severityIcon(f.Severity), f.Code, text)
	}
	_, _ = fmt.Fprintln(w)
}

func drawBar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	clamped := math.Min(math.Max(ratio, 0), 1)
	fill := int(math.Round(clamped * float64(width)))
	if clamped > 0 && fill == 0 {
		fill = 1
	}
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

func pickColor(ratio float64) string {
	switch {
	case ratio >= 0.40:
		return "red"
	case ratio >= 0.20:
		return "yellow"
	case ratio >= 0.10:
		return "cyan"
	default:
		return ""
	}
}

func applyColor(text, color string) string {
	code := ""
	switch color {
	case "red":
		code = "\033[31m"
	case "yellow":
		code = "\033[33m"
	case "cyan":
		code = "\033[36m"
	default:
		return text
	}
	return code + text + "\033[0m"
}

func countDescendants(node *model.ExecutionNode) int {
	total := 0
	var walk func(*model.ExecutionNode)
	walk = func(n *model.ExecutionNode) {
		for _, child := range n.Children {
			total++
			walk(child)
		}
	}
	walk(node)
	return total
}

func severityIcon(sev insight.Severity) string {
	switch sev {
	case insight.SeverityHigh:
		return "🔥"
	case insight.SeverityMedium:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
