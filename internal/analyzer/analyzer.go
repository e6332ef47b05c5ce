package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/mickamy/myxplain/internal/model"
)

// PlanAnalysis contains the execution tree and derived metrics for a parsed plan.
type PlanAnalysis struct {
	Root *model.ExecutionNode
	// Nodes lists the tree breadth-first, root first.
	Nodes     []*model.ExecutionNode
	TotalCost float64

	NodeCount    int
	ActualTimeMs float64
	TotalLoops   float64
	MaxCost      float64

	// Stats is parallel to Nodes.
	Stats          []*NodeStats
	HotNodes       []*NodeStats
	DivergentNodes []*NodeStats
}

// NodeStats augments an execution node with computed statistics.
type NodeStats struct {
	Node      *model.ExecutionNode
	Depth     int
	CostShare float64
	// RowFactor is rows produced divided by rows examined.
	RowFactor float64
	Warnings  []string
}

// Analyze builds the execution tree for doc and derives its metrics.
func Analyze(doc *model.Document) (*PlanAnalysis, error) {
	if doc == nil {
		return nil, fmt.Errorf("analyze: missing document")
	}

	root := NewBuilder().Build(doc)
	nodes := Collect(root)
	if nodes == nil {
		nodes = []*model.ExecutionNode{}
	}

	declared := model.ToNumber(doc.QueryBlock.CostInfo.QueryCost, 0)
	if root != nil && declared > root.Cost {
		root.Cost = declared
	}

	maxCost := 0.0
	loops := 0.0
	for _, n := range nodes {
		maxCost = math.Max(maxCost, n.Cost)
		if t, ok := n.TableStep(); ok {
			loops += t.Loops
		}
	}

	total := declared
	if total == 0 {
		total = maxCost
	}

	stats := buildStats(root, total)

	return &PlanAnalysis{
		Root:           root,
		Nodes:          nodes,
		TotalCost:      total,
		NodeCount:      len(nodes),
		ActualTimeMs:   doc.QueryBlock.ActualTimeMs,
		TotalLoops:     loops,
		MaxCost:        maxCost,
		Stats:          stats,
		HotNodes:       selectHotNodes(stats),
		DivergentNodes: selectDivergentNodes(stats),
	}, nil
}

// StatsFor returns the statistics of the node with the given id.
func (a *PlanAnalysis) StatsFor(id string) (*NodeStats, bool) {
	if a == nil {
		return nil, false
	}
	for _, s := range a.Stats {
		if s.Node.ID == id {
			return s, true
		}
	}
	return nil, false
}

func buildStats(root *model.ExecutionNode, total float64) []*NodeStats {
	if root == nil {
		return []*NodeStats{}
	}

	type item struct {
		node  *model.ExecutionNode
		depth int
	}
	var out []*NodeStats
	queue := []item{{node: root}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		s := &NodeStats{
			Node:      it.node,
			Depth:     it.depth,
			RowFactor: computeRowFactor(it.node.RowsExamined, it.node.RowsProduced),
		}
		if total > 0 {
			s.CostShare = it.node.Cost / total
		}
		s.Warnings = deriveWarnings(s)
		out = append(out, s)

		for _, child := range it.node.Children {
			queue = append(queue, item{node: child, depth: it.depth + 1})
		}
	}
	return out
}

func selectHotNodes(stats []*NodeStats) []*NodeStats {
	if len(stats) == 0 {
		return nil
	}

	candidates := make([]*NodeStats, 0, len(stats))
	for _, s := range stats {
		if s.CostShare > 0 {
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CostShare > candidates[j].CostShare
	})

	limit := min(5, len(candidates))
	cutoff := 0.10

	var out []*NodeStats
	for _, candidate := range candidates[:limit] {
		if candidate.CostShare < cutoff {
			break
		}
		out = append(out, candidate)
	}

	if len(out) == 0 && len(candidates) > 0 {
		out = candidates[:limit]
	}

	return out
}

func selectDivergentNodes(stats []*NodeStats) []*NodeStats {
	var out []*NodeStats
	for _, s := range stats {
		if s.Node.RowsExamined == nil || s.Node.RowsProduced == nil {
			continue
		}
		if math.IsInf(s.RowFactor, 1) {
			out = append(out, s)
			continue
		}
		if s.RowFactor >= 2.0 || s.RowFactor <= 0.5 {
			if *s.Node.RowsExamined > 0 || *s.Node.RowsProduced > 0 {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return divergence(out[i].RowFactor) > divergence(out[j].RowFactor)
	})
	return out[:min(5, len(out))]
}

func divergence(factor float64) float64 {
	if factor <= 0 {
		return math.Inf(1)
	}
	return math.Abs(math.Log(factor))
}

func computeRowFactor(examined, produced *float64) float64 {
	const epsilon = 1e-9
	if examined == nil || produced == nil {
		return 1
	}
	if *examined <= epsilon {
		if *produced <= epsilon {
			return 1
		}
		return math.Inf(1)
	}
	return *produced / *examined
}

func deriveWarnings(s *NodeStats) []string {
	var warnings []string
	if s.CostShare >= 0.20 {
		warnings = append(warnings, fmt.Sprintf("cost %.1f%% of plan", s.CostShare*100))
	}
	if math.IsInf(s.RowFactor, 1) {
		warnings = append(warnings, "produces rows without examining any")
	} else if s.RowFactor >= 2.0 {
		warnings = append(warnings, fmt.Sprintf("produces %.1fx the rows it examines", s.RowFactor))
	} else if s.RowFactor <= 0.5 && s.Node.RowsExamined != nil && *s.Node.RowsExamined > 0 {
		warnings = append(warnings, fmt.Sprintf("keeps %.1f%% of examined rows", s.RowFactor*100))
	}
	return warnings
}
