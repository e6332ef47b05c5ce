package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/myxplain/internal/graph"
	"github.com/mickamy/myxplain/internal/model"
)

func ptr(v float64) *float64 { return &v }

// chain builds c -> b -> a with costs 100, 30 and 10.
func chain() (*model.ExecutionNode, []*model.ExecutionNode) {
	a := &model.ExecutionNode{ID: "n1", AccessType: "ALL", Table: "a", Cost: 10, RowsExamined: ptr(1500), RowsProduced: ptr(150)}
	b := &model.ExecutionNode{ID: "n2", AccessType: "ref", Table: "b", Cost: 30, RowsExamined: ptr(4), Children: []*model.ExecutionNode{a}}
	c := &model.ExecutionNode{ID: "n3", AccessType: "eq_ref", Table: "c", Cost: 100, Children: []*model.ExecutionNode{b}}
	return c, []*model.ExecutionNode{c, b, a}
}

func TestBuildTiersAndEdges(t *testing.T) {
	root, nodes := chain()
	desc := graph.Build(root, nodes, "", graph.Options{})

	require.Len(t, desc.Nodes, 3)
	assert.Equal(t, graph.TierHot, desc.Nodes[0].Tier)
	assert.Equal(t, graph.TierWarm, desc.Nodes[1].Tier)
	assert.Equal(t, graph.TierCool, desc.Nodes[2].Tier)
	assert.Empty(t, desc.Highlight)
	assert.False(t, desc.Placeholder)

	assert.Equal(t, []graph.Edge{
		{From: "n3", To: "n2", Label: "4"},
		{From: "n2", To: "n1", Label: "150"},
	}, desc.Edges)

	for _, n := range desc.Nodes {
		require.NotNil(t, n.Click)
		assert.Equal(t, "onNodeClick", n.Click.Callback)
		assert.Equal(t, n.ID, n.Click.Arg)
	}
}

func TestBuildLabels(t *testing.T) {
	root, nodes := chain()
	desc := graph.Build(root, nodes, "", graph.Options{})

	assert.Equal(t, []string{
		"Full Table Scan on `a`",
		"Cost: 10.00",
		"Rows examined: 1500",
		"Rows produced: 150",
	}, desc.Nodes[2].Lines)
	assert.Equal(t, "Unique Index Lookup on `c`<br/>Cost: 100.00<br/>Rows examined: -<br/>Rows produced: -", desc.Nodes[0].Label())
}

func TestBuildSelection(t *testing.T) {
	root, nodes := chain()

	desc := graph.Build(root, nodes, "n2", graph.Options{})
	assert.Equal(t, "n2", desc.Highlight)
	assert.True(t, desc.Nodes[1].Selected)
	assert.Equal(t, graph.TierWarm, desc.Nodes[1].Tier)

	desc = graph.Build(root, nodes, "n42", graph.Options{})
	assert.Empty(t, desc.Highlight)
	for _, n := range desc.Nodes {
		assert.False(t, n.Selected)
	}
}

func TestBuildEmpty(t *testing.T) {
	for _, desc := range []*graph.Description{
		graph.Build(nil, nil, "", graph.Options{}),
		graph.Build(&model.ExecutionNode{ID: "n1"}, []*model.ExecutionNode{}, "n1", graph.Options{}),
	} {
		assert.True(t, desc.Placeholder)
		require.Len(t, desc.Nodes, 1)
		assert.Equal(t, graph.PlaceholderID, desc.Nodes[0].ID)
		assert.Nil(t, desc.Nodes[0].Click)
		assert.Empty(t, desc.Edges)
		assert.Empty(t, desc.Highlight)
	}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, graph.TierHot, graph.TierFor(0, 0, 0.25))
	assert.Equal(t, graph.TierWarm, graph.TierFor(25, 100, 0.25))
	assert.Equal(t, graph.TierCool, graph.TierFor(24.9, 100, 0.25))
	assert.Equal(t, graph.TierHot, graph.TierFor(100, 100, 0.25))
}

func TestBuildAllZeroCostsAreHot(t *testing.T) {
	a := &model.ExecutionNode{ID: "n1"}
	b := &model.ExecutionNode{ID: "n2", Children: []*model.ExecutionNode{a}}
	desc := graph.Build(b, []*model.ExecutionNode{b, a}, "", graph.Options{})

	for _, n := range desc.Nodes {
		assert.Equal(t, graph.TierHot, n.Tier)
	}
	assert.Equal(t, "?", desc.Edges[0].Label)
	assert.Equal(t, "operation", desc.Nodes[0].Lines[0])
}

func TestBuildOptions(t *testing.T) {
	root, nodes := chain()
	desc := graph.Build(root, nodes, "", graph.Options{WarmRatio: 0.5, ClickCallback: "pick", Direction: "LR"})

	assert.Equal(t, "LR", desc.Direction)
	assert.Equal(t, graph.TierCool, desc.Nodes[1].Tier)
	assert.Equal(t, "pick", desc.Nodes[0].Click.Callback)
}

func TestHumanAccess(t *testing.T) {
	assert.Equal(t, "Full Table Scan", graph.HumanAccess("ALL"))
	assert.Equal(t, "Range Scan", graph.HumanAccess("range"))
	assert.Equal(t, "Constant", graph.HumanAccess("const"))
	assert.Equal(t, "hash_build", graph.HumanAccess("hash_build"))
	assert.Equal(t, "operation", graph.HumanAccess(""))
}

func TestMermaid(t *testing.T) {
	root, nodes := chain()
	root.Table = `c"x`
	out := graph.Build(root, nodes, "n1", graph.Options{}).Mermaid()
	lines := strings.Split(out, "\n")

	assert.Equal(t, "flowchart TD", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "%%{init:"))
	assert.True(t, strings.HasSuffix(lines[1], "}%%"))
	assert.Contains(t, lines, "n3[\"Unique Index Lookup on `c#quot;x`<br/>Cost: 100.00<br/>Rows examined: -<br/>Rows produced: -\"]")
	assert.Contains(t, lines, `n3 -- "4" --> n2`)
	assert.Contains(t, lines, `n2 -- "150" --> n1`)
	assert.Contains(t, lines, "classDef hot fill:#ef4444,stroke:#991b1b,stroke-width:2px,color:#111")
	assert.Contains(t, lines, "class n3 hot")
	assert.Contains(t, lines, "class n1 cool")
	assert.Contains(t, lines, "class n1 selected")
	assert.Contains(t, lines, `click n2 call onNodeClick("n2") "Details"`)
	assert.Equal(t, `click n1 call onNodeClick("n1") "Details"`, lines[len(lines)-1])
}

func TestMermaidPlaceholder(t *testing.T) {
	out := graph.Build(nil, nil, "", graph.Options{}).Mermaid()
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], `empty["Paste EXPLAIN ANALYZE`))
	assert.NotContains(t, out, "classDef")
	assert.Empty(t, (*graph.Description)(nil).Mermaid())
}
