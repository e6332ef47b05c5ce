package html

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"github.com/mickamy/myxplain/internal/analyzer"
	"github.com/mickamy/myxplain/internal/explain"
	"github.com/mickamy/myxplain/internal/graph"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/model"
)

// Options configures the HTML renderer.
type Options struct {
	Title         string
	IncludeStyles bool
	// MermaidSrc is the script URL of the Mermaid runtime. Empty omits the graph section.
	MermaidSrc string
}

// DefaultMermaidSrc loads Mermaid from its public CDN.
const DefaultMermaidSrc = "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"

// Render writes an HTML report containing the findings, the annotated tree and the plan graph.
func Render(w io.Writer, res *explain.Result, opts Options) error {
	if res == nil {
		return fmt.Errorf("html render: empty result")
	}
	if opts.Title == "" {
		opts.Title = "myxplain report"
	}
	data := buildTemplateData(res, opts)
	tpl, err := template.New("report").Funcs(template.FuncMap{"join": strings.Join}).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("html render: compile template: %w", err)
	}
	if err := tpl.Execute(w, data); err != nil {
		return fmt.Errorf("html render: execute template: %w", err)
	}
	return nil
}

type templateData struct {
	Title         string
	RunID         string
	IncludeStyles bool
	Recognized    bool
	Summary       summaryView
	Root          *nodeView
	HotNodes      []listView
	Divergent     []listView
	Findings      []findingView
	MermaidSrc    string
	Mermaid       string
	Callback      string
}

type summaryView struct {
	Format     string
	TotalCost  string
	ActualTime string
	NodeCount  int
	Loops      string
	HotCount   int
	Divergent  int
}

type listView struct {
	Label  string
	Anchor string
	Cost   string
	Share  string
	Extra  string
}

type findingView struct {
	Icon     string
	Severity string
	Code     string
	Text     string
	Anchor   string
	NodeID   string
}

type nodeView struct {
	ID         string
	Label      string
	Anchor     string
	Cost       string
	Share      string
	BarWidth   float64
	Heat       float64
	Rows       string
	Warnings   []string
	Findings   []string
	Children   []*nodeView
	HasWarning bool
}

func buildTemplateData(res *explain.Result, opts Options) templateData {
	data := templateData{
		Title:         opts.Title,
		RunID:         res.ID.String(),
		IncludeStyles: opts.IncludeStyles,
		Recognized:    res.Recognized(),
		Summary:       summaryView{Format: string(res.Format)},
		MermaidSrc:    opts.MermaidSrc,
		Mermaid:       res.Mermaid(),
		Callback:      "onNodeClick",
	}

	for _, f := range res.Findings {
		view := findingView{
			Icon:     severityIcon(f.Severity),
			Severity: string(f.Severity),
			Code:     string(f.Code),
			Text:     insight.NormalizeWhitespace(f.Message),
			NodeID:   f.NodeID,
		}
		if n, ok := res.Node(f.NodeID); ok {
			view.Anchor = insight.AnchorID(n)
		}
		data.Findings = append(data.Findings, view)
	}

	if res.Graph != nil {
		for _, n := range res.Graph.Nodes {
			if n.Click != nil {
				data.Callback = n.Click.Callback
				break
			}
		}
	}

	if !data.Recognized {
		return data
	}

	analysis := res.Analysis
	data.Summary.TotalCost = graph.FormatCost(analysis.TotalCost)
	data.Summary.NodeCount = analysis.NodeCount
	data.Summary.HotCount = len(analysis.HotNodes)
	data.Summary.Divergent = len(analysis.DivergentNodes)
	if analysis.ActualTimeMs > 0 {
		data.Summary.ActualTime = fmt.Sprintf("%.0f ms", analysis.ActualTimeMs)
	}
	if analysis.TotalLoops > 0 {
		data.Summary.Loops = fmt.Sprintf("%.0f", analysis.TotalLoops)
	}

	for _, s := range analysis.HotNodes {
		data.HotNodes = append(data.HotNodes, listView{
			Label:  insight.NodeLabel(s.Node),
			Anchor: insight.AnchorID(s.Node),
			Cost:   graph.FormatCost(s.Node.Cost),
			Share:  fmt.Sprintf("%.1f%%", s.CostShare*100),
			Extra:  formatRows(s),
		})
	}
	for _, s := range analysis.DivergentNodes {
		data.Divergent = append(data.Divergent, listView{
			Label:  insight.NodeLabel(s.Node),
			Anchor: insight.AnchorID(s.Node),
			Cost:   graph.FormatCost(s.Node.Cost),
			Share:  formatFactor(s.RowFactor),
			Extra:  formatRows(s),
		})
	}

	if analysis.Root != nil {
		data.Root = buildNodeView(analysis, res.Findings, analysis.Root)
	}
	return data
}

func buildNodeView(analysis *analyzer.PlanAnalysis, findings []insight.Finding, node *model.ExecutionNode) *nodeView {
	view := &nodeView{
		ID:     node.ID,
		Label:  insight.NodeLabel(node),
		Anchor: insight.AnchorID(node),
		Cost:   graph.FormatCost(node.Cost),
	}
	if s, ok := analysis.StatsFor(node.ID); ok {
		view.Share = fmt.Sprintf("%.1f%%", s.CostShare*100)
		view.BarWidth = math.Min(100, math.Max(0, s.CostShare*100))
		view.Heat = clamp(s.CostShare*2.5, 0, 1)
		view.Rows = formatRows(s)
		view.Warnings = append([]string(nil), s.Warnings...)
		view.HasWarning = len(view.Warnings) > 0
	}
	for _, f := range insight.ForNode(findings, node.ID) {
		view.Findings = append(view.Findings, string(f.Code))
	}
	for _, child := range node.Children {
		view.Children = append(view.Children, buildNodeView(analysis, findings, child))
	}
	return view
}

func formatRows(s *analyzer.NodeStats) string {
	if s.Node.RowsExamined == nil && s.Node.RowsProduced == nil {
		return ""
	}
	rows := fmt.Sprintf("rows %s / %s", graph.FormatRows(s.Node.RowsProduced), graph.FormatRows(s.Node.RowsExamined))
	if s.Node.RowsExamined == nil || s.Node.RowsProduced == nil {
		return rows
	}
	return rows + " (" + formatFactor(s.RowFactor) + ")"
}

func formatFactor(factor float64) string {
	if math.IsInf(factor, 1) {
		return "∞"
	}
	return fmt.Sprintf("x%.2f", factor)
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
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

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; padding: 0; background: #f7f7f8; color: #202124; }
		main { max-width: 1080px; margin: 0 auto; padding: 32px 24px 48px; }
		header { background: #1f2937; color: #f7f7f8; padding: 32px 24px; }
		header h1 { margin: 0 0 8px; font-size: 28px; }
		header p { margin: 4px 0; opacity: 0.8; }
		section { margin-top: 32px; }
		section h2 { margin-bottom: 12px; font-size: 20px; }
		.summary-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 12px; }
		.summary-tile { background: #fff; border-radius: 10px; padding: 16px; box-shadow: 0 6px 18px rgba(13,28,39,0.12); }
		.summary-tile strong { display: block; font-size: 13px; text-transform: uppercase; letter-spacing: 0.04em; color: #5b7083; margin-bottom: 6px; }
		.summary-tile span { font-size: 18px; font-weight: 600; }
		.graph { background: #fff; border-radius: 12px; padding: 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); overflow-x: auto; }
		.finding-list { list-style: none; margin: 0; padding: 0; display: flex; flex-direction: column; gap: 10px; }
		.finding-list li { background: #fff; border-radius: 12px; padding: 12px 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); font-size: 14px; display: flex; align-items: center; gap: 10px; }
		.finding-list li.hidden { display: none; }
		.finding-list li.severity-high { border-left: 4px solid #ef4444; }
		.finding-list li.severity-medium { border-left: 4px solid #f59e0b; }
		.finding-list li.severity-low { border-left: 4px solid rgba(33,42,59,0.15); }
		.finding-list code { font-size: 12px; color: #5b7083; }
		.finding-list a { color: inherit; }
		.list-card { background: #fff; border-radius: 12px; padding: 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); margin-bottom: 12px; }
		.list-card h3 { margin: 0; font-size: 16px; }
		.list-card ul { list-style: none; padding: 0; margin: 12px 0 0; }
		.list-card li { display: grid; grid-template-columns: 1fr auto auto auto; gap: 12px; font-size: 14px; padding: 8px 0; border-bottom: 1px solid rgba(91,112,131,0.16); }
		.plan-tree { list-style: none; margin: 0; padding: 0; }
		.node-card { background: #fff; border-radius: 12px; margin-bottom: 12px; position: relative; padding: 14px 18px; box-shadow: 0 8px 20px rgba(16,37,58,0.12); border-left: 6px solid rgba(33,42,59,0.1); }
		.node-card.selected { border-left-color: #2563eb; }
		.node-card::after { content: ""; position: absolute; inset: 0; border-radius: inherit; background: linear-gradient(90deg, rgba(239,68,68,var(--heat)) 0%, rgba(239,68,68,0) 72%); opacity: 0.35; pointer-events: none; }
		.node-header { position: relative; z-index: 1; display: flex; justify-content: space-between; gap: 12px; align-items: baseline; }
		.node-label { font-weight: 600; font-size: 15px; }
		.node-metrics { font-size: 13px; color: #5b7083; }
		.node-bar { position: relative; z-index: 1; margin-top: 10px; background: rgba(33,42,59,0.08); border-radius: 999px; height: 8px; overflow: hidden; }
		.node-bar span { display: block; height: 100%; border-radius: inherit; background: linear-gradient(90deg, #ef4444 0%, #f59e0b 100%); width: calc(var(--width) * 1%); }
		.node-meta { position: relative; z-index: 1; margin-top: 10px; font-size: 13px; color: #364a63; display: flex; flex-wrap: wrap; gap: 12px 18px; }
		.node-warning { color: #b25600; font-weight: 600; }
		.node-children { margin-left: 24px; border-left: 1px dashed rgba(33,42,59,0.15); padding-left: 20px; list-style: none; }
	</style>
	{{- end }}
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<p>Run {{.RunID}}{{if .Summary.Format}} · {{.Summary.Format}} input{{end}}</p>
		{{- if .Recognized }}
		<p>Cost {{.Summary.TotalCost}} · Nodes {{.Summary.NodeCount}} · Hot {{.Summary.HotCount}} · Divergent {{.Summary.Divergent}}</p>
		{{- end }}
	</header>
	<main>
		{{- if .Recognized }}
		<section>
			<h2>Summary</h2>
			<div class="summary-grid">
				<div class="summary-tile"><strong>Total cost</strong><span>{{.Summary.TotalCost}}</span></div>
				<div class="summary-tile"><strong>Plan nodes</strong><span>{{.Summary.NodeCount}}</span></div>
				{{- if .Summary.ActualTime }}
				<div class="summary-tile"><strong>Actual time</strong><span>{{.Summary.ActualTime}}</span></div>
				{{- end }}
				{{- if .Summary.Loops }}
				<div class="summary-tile"><strong>Loops</strong><span>{{.Summary.Loops}}</span></div>
				{{- end }}
				<div class="summary-tile"><strong>Hot / Divergent</strong><span>{{.Summary.HotCount}} / {{.Summary.Divergent}}</span></div>
			</div>
		</section>
		{{- end }}

		{{- if and .MermaidSrc .Mermaid }}
		<section>
			<h2>Graph</h2>
			<div class="graph"><pre class="mermaid">{{.Mermaid}}</pre></div>
		</section>
		{{- end }}

		<section>
			<h2>Findings</h2>
			<ul class="finding-list" id="findings">
				{{- range .Findings }}
				<li class="severity-{{.Severity}}" data-node="{{.NodeID}}"><span class="icon">{{.Icon}}</span><code>{{.Code}}</code><span>
					{{- if .Anchor -}}
						<a href="#{{.Anchor}}">{{.Text}}</a>
					{{- else -}}
						{{.Text}}
					{{- end -}}
				</span></li>
				{{- else }}
				<li><span>No findings</span></li>
				{{- end }}
			</ul>
		</section>

		{{- if .Recognized }}
		<section>
			<h2>Signals</h2>
			<div class="list-card">
				<h3>Hot nodes</h3>
				<ul>
					{{- range .HotNodes }}
					<li><a href="#{{.Anchor}}">{{.Label}}</a><span>{{.Cost}}</span><span>{{.Share}}</span><span>{{.Extra}}</span></li>
					{{- else }}
					<li><span>No hot nodes above threshold</span></li>
					{{- end }}
				</ul>
			</div>
			<div class="list-card">
				<h3>Row flow</h3>
				<ul>
					{{- range .Divergent }}
					<li><a href="#{{.Anchor}}">{{.Label}}</a><span>{{.Cost}}</span><span>{{.Share}}</span><span>{{.Extra}}</span></li>
					{{- else }}
					<li><span>No significant row flow changes</span></li>
					{{- end }}
				</ul>
			</div>
		</section>

		<section>
			<h2>Plan Tree</h2>
			{{- if .Root }}
			<ul class="plan-tree">
				{{ template "node" .Root }}
			</ul>
			{{- else }}
			<p>No execution steps.</p>
			{{- end }}
		</section>
		{{- end }}
	</main>

	{{- if and .MermaidSrc .Mermaid }}
	<script src="{{.MermaidSrc}}"></script>
	<script>
		window[{{.Callback}}] = function (id) {
			document.querySelectorAll(".node-card").forEach(function (el) {
				el.classList.toggle("selected", el.dataset.node === id);
			});
			document.querySelectorAll("#findings li[data-node]").forEach(function (el) {
				el.classList.toggle("hidden", el.dataset.node !== id);
			});
			var target = document.getElementById("node-" + id);
			if (target) { target.scrollIntoView({ behavior: "smooth", block: "center" }); }
		};
		mermaid.initialize({ startOnLoad: true, securityLevel: "loose" });
	</script>
	{{- end }}

	{{ define "node" }}
	<li>
		<div class="node-card" id="{{.Anchor}}" data-node="{{.ID}}" style="--heat: {{printf "%.3f" .Heat}};">
			<div class="node-header">
				<span class="node-label">{{.Label}}</span>
				<span class="node-metrics">cost {{.Cost}}{{if .Share}} · {{.Share}}{{end}}</span>
			</div>
			<div class="node-bar"><span style="--width: {{printf "%.2f" .BarWidth}};"></span></div>
			<div class="node-meta">
				{{- if .Rows }}<span>{{.Rows}}</span>{{- end }}
				{{- if .Findings }}<span>{{ join .Findings ", " }}</span>{{- end }}
				{{- if .HasWarning }}<span class="node-warning">{{ join .Warnings "; " }}</span>{{- end }}
			</div>
		</div>
		{{- if .Children }}
		<ul class="node-children">
			{{- range .Children }}
				{{ template "node" . }}
			{{- end }}
		</ul>
		{{- end }}
	</li>
	{{ end }}
</body>
</html>
`
