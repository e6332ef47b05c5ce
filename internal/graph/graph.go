package graph

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/model"
)

// Tier is the relative-cost class of a node.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCool Tier = "cool"
)

// PlaceholderID is the id of the single node emitted for an empty plan.
const PlaceholderID = "empty"

const placeholderText = "Paste EXPLAIN ANALYZE text or EXPLAIN FORMAT=JSON output and run the analysis"

// Description is an abstract directed graph of an execution tree, ready for a renderer.
type Description struct {
	Direction   string `json:"direction"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	Highlight   string `json:"highlight,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Node is one node declaration.
type Node struct {
	ID       string   `json:"id"`
	Lines    []string `json:"lines"`
	Tier     Tier     `json:"tier,omitempty"`
	Selected bool     `json:"selected,omitempty"`
	Click    *Click   `json:"click,omitempty"`
}

// Label joins the label lines the way Mermaid expects them.
func (n Node) Label() string {
	return strings.Join(n.Lines, "<br/>")
}

// Click binds a node to a host callback that receives the node id.
type Click struct {
	Callback string `json:"callback"`
	Arg      string `json:"arg"`
	Tooltip  string `json:"tooltip"`
}

// Edge is a directed parent to child edge labeled with the rows the child hands up.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Options tunes tiering and rendering.
type Options struct {
	WarmRatio     float64
	ClickCallback string
	Direction     string
}

// OptionsFrom converts graph configuration into build options.
func OptionsFrom(cfg config.GraphConfig) Options {
	return Options{
		WarmRatio:     cfg.WarmRatio,
		ClickCallback: cfg.ClickCallback,
		Direction:     cfg.Direction,
	}
}

func (o Options) withDefaults() Options {
	def := config.Default().Graph
	if o.WarmRatio <= 0 {
		o.WarmRatio = def.WarmRatio
	}
	if o.ClickCallback == "" {
		o.ClickCallback = def.ClickCallback
	}
	if o.Direction == "" {
		o.Direction = def.Direction
	}
	return o
}

// Build projects the tree rooted at root into a graph description. selectedID is highlighted
// only when it names one of nodes.
func Build(root *model.ExecutionNode, nodes []*model.ExecutionNode, selectedID string, opts Options) *Description {
	opts = opts.withDefaults()
	desc := &Description{Direction: opts.Direction, Nodes: []Node{}, Edges: []Edge{}}

	if root == nil || len(nodes) == 0 {
		desc.Placeholder = true
		desc.Nodes = append(desc.Nodes, Node{ID: PlaceholderID, Lines: []string{placeholderText}})
		return desc
	}

	maxCost := math.Inf(-1)
	for _, n := range nodes {
		maxCost = math.Max(maxCost, n.Cost)
	}

	for _, n := range nodes {
		node := Node{
			ID:    n.ID,
			Lines: labelLines(n),
			Tier:  TierFor(n.Cost, maxCost, opts.WarmRatio),
			Click: &Click{Callback: opts.ClickCallback, Arg: n.ID, Tooltip: "Details"},
		}
		if selectedID != "" && n.ID == selectedID {
			node.Selected = true
			desc.Highlight = n.ID
		}
		desc.Nodes = append(desc.Nodes, node)
	}

	queue := []*model.ExecutionNode{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range cur.Children {
			desc.Edges = append(desc.Edges, Edge{From: cur.ID, To: child.ID, Label: edgeLabel(child)})
			queue = append(queue, child)
		}
	}

	return desc
}

// TierFor classifies cost against the plan maximum. Ties with the maximum are always hot,
// including when every cost is zero.
func TierFor(cost, maxCost, warmRatio float64) Tier {
	switch {
	case cost == maxCost:
		return TierHot
	case cost >= warmRatio*maxCost:
		return TierWarm
	default:
		return TierCool
	}
}

// HumanAccess names an access type for display.
func HumanAccess(access string) string {
	switch strings.ToLower(access) {
	case "all":
		return "Full Table Scan"
	case "ref":
		return "Index Lookup"
	case "eq_ref":
		return "Unique Index Lookup"
	case "range":
		return "Range Scan"
	case "index":
		return "Full Index Scan"
	case "system":
		return "System Table"
	case "const":
		return "Constant"
	case "":
		return "operation"
	default:
		return access
	}
}

func labelLines(n *model.ExecutionNode) []string {
	title := HumanAccess(n.AccessType)
	if n.Table != "" {
		title += " on `" + n.Table + "`"
	}
	return []string{
		title,
		"Cost: " + FormatCost(n.Cost),
		"Rows examined: " + FormatRows(n.RowsExamined),
		"Rows produced: " + FormatRows(n.RowsProduced),
	}
}

func edgeLabel(child *model.ExecutionNode) string {
	switch {
	case child.RowsProduced != nil:
		return FormatRows(child.RowsProduced)
	case child.RowsExamined != nil:
		return FormatRows(child.RowsExamined)
	default:
		return "?"
	}
}

// FormatCost renders a cost with two decimals, or "-" when it is not finite.
func FormatCost(cost float64) string {
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return "-"
	}
	return decimal.NewFromFloat(cost).StringFixed(2)
}

// FormatRows renders a row count, or "-" when absent.
func FormatRows(rows *float64) string {
	if rows == nil {
		return "-"
	}
	return strconv.FormatFloat(*rows, 'f', -1, 64)
}
