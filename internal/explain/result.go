package explain

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/mickamy/myxplain/internal/analyzer"
	"github.com/mickamy/myxplain/internal/graph"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/metrics"
	"github.com/mickamy/myxplain/internal/model"
	"github.com/mickamy/myxplain/internal/parser"
)

// Result is the outcome of one analysis.
type Result struct {
	ID       uuid.UUID
	Format   parser.Format
	Document *model.Document
	// Analysis is nil when the input was not recognized.
	Analysis *analyzer.PlanAnalysis
	Findings []insight.Finding
	Graph    *graph.Description
	Selected string
	// Err holds the reason the input was rejected.
	Err error

	graphOpts graph.Options
}

// Recognized reports whether the input was read as a plan.
func (r *Result) Recognized() bool {
	return r != nil && r.Err == nil && r.Analysis != nil
}

// Outcome labels the result for metrics.
func (r *Result) Outcome() string {
	switch {
	case !r.Recognized():
		return metrics.OutcomeUnrecognized
	case r.Analysis.Root == nil:
		return metrics.OutcomeEmpty
	default:
		return metrics.OutcomeOK
	}
}

// Root returns the tree root, or nil.
func (r *Result) Root() *model.ExecutionNode {
	if !r.Recognized() {
		return nil
	}
	return r.Analysis.Root
}

// Nodes returns the execution nodes breadth-first.
func (r *Result) Nodes() []*model.ExecutionNode {
	if !r.Recognized() {
		return []*model.ExecutionNode{}
	}
	return r.Analysis.Nodes
}

// TotalCost returns the resolved plan cost.
func (r *Result) TotalCost() float64 {
	if !r.Recognized() {
		return 0
	}
	return r.Analysis.TotalCost
}

// Node looks up a node by id.
func (r *Result) Node(id string) (*model.ExecutionNode, bool) {
	for _, n := range r.Nodes() {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// FindingsFor returns the findings attached to a node. An empty id returns every finding.
func (r *Result) FindingsFor(id string) []insight.Finding {
	if id == "" {
		return r.Findings
	}
	return insight.ForNode(r.Findings, id)
}

// Select rebuilds the graph with id highlighted. Unknown ids clear the highlight.
func (r *Result) Select(id string) *graph.Description {
	if !r.Recognized() {
		return nil
	}
	if _, ok := r.Node(id); !ok {
		id = ""
	}
	r.Selected = id
	r.Graph = graph.Build(r.Analysis.Root, r.Analysis.Nodes, id, r.graphOpts)
	return r.Graph
}

// Mermaid returns the graph as Mermaid text, or "" when there is no graph.
func (r *Result) Mermaid() string {
	if r == nil || r.Graph == nil {
		return ""
	}
	return r.Graph.Mermaid()
}

type nodeView struct {
	ID           string   `json:"id"`
	AccessType   string   `json:"access_type,omitempty"`
	Table        string   `json:"table,omitempty"`
	Cost         float64  `json:"cost"`
	RowsExamined *float64 `json:"rows_examined,omitempty"`
	RowsProduced *float64 `json:"rows_produced,omitempty"`
	Children     []string `json:"children"`
	Raw          any      `json:"raw,omitempty"`
}

type summaryView struct {
	NodeCount    int     `json:"node_count"`
	TotalCost    float64 `json:"total_cost"`
	MaxCost      float64 `json:"max_cost"`
	ActualTimeMs float64 `json:"actual_time_ms,omitempty"`
	TotalLoops   float64 `json:"total_loops,omitempty"`
}

type resultView struct {
	ID         string             `json:"id"`
	Format     parser.Format      `json:"format"`
	Recognized bool               `json:"recognized"`
	Error      string             `json:"error,omitempty"`
	Summary    *summaryView       `json:"summary,omitempty"`
	Root       string             `json:"root,omitempty"`
	Nodes      []nodeView         `json:"nodes"`
	Findings   []insight.Finding  `json:"findings"`
	Selected   string             `json:"selected,omitempty"`
	Graph      *graph.Description `json:"graph,omitempty"`
	Mermaid    string             `json:"mermaid,omitempty"`
}

// MarshalJSON renders the result for API and CLI consumers.
func (r *Result) MarshalJSON() ([]byte, error) {
	view := resultView{
		ID:         r.ID.String(),
		Format:     r.Format,
		Recognized: r.Recognized(),
		Nodes:      []nodeView{},
		Findings:   r.Findings,
		Selected:   r.Selected,
		Graph:      r.Graph,
		Mermaid:    r.Mermaid(),
	}
	if view.Findings == nil {
		view.Findings = []insight.Finding{}
	}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	if r.Recognized() {
		a := r.Analysis
		view.Summary = &summaryView{
			NodeCount:    a.NodeCount,
			TotalCost:    a.TotalCost,
			MaxCost:      a.MaxCost,
			ActualTimeMs: a.ActualTimeMs,
			TotalLoops:   a.TotalLoops,
		}
		if a.Root != nil {
			view.Root = a.Root.ID
		}
		for _, n := range a.Nodes {
			children := make([]string, 0, len(n.Children))
			for _, c := range n.Children {
				children = append(children, c.ID)
			}
			view.Nodes = append(view.Nodes, nodeView{
				ID:           n.ID,
				AccessType:   n.AccessType,
				Table:        n.Table,
				Cost:         n.Cost,
				RowsExamined: n.RowsExamined,
				RowsProduced: n.RowsProduced,
				Children:     children,
				Raw:          model.WrapStep(n.Raw),
			})
		}
	}
	return json.Marshal(view)
}
