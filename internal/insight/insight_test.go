package insight_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/internal/model"
)

func ptr(v float64) *float64 { return &v }

func str(s string) *string { return &s }

func node(id, access, table string, cost, examined float64, raw model.Step) *model.ExecutionNode {
	return &model.ExecutionNode{
		ID:           id,
		AccessType:   access,
		Table:        table,
		Cost:         cost,
		RowsExamined: ptr(examined),
		Raw:          raw,
	}
}

func engine() *insight.Engine {
	return insight.NewEngine(config.Default().Rules)
}

func codes(findings []insight.Finding, nodeID string) []insight.Code {
	var out []insight.Code
	for _, f := range findings {
		if nodeID == "" || f.NodeID == nodeID {
			out = append(out, f.Code)
		}
	}
	return out
}

func TestFullTableScanBoundary(t *testing.T) {
	tests := []struct {
		name     string
		access   string
		examined float64
		want     bool
	}{
		{name: "exactly threshold", access: "ALL", examined: 5000, want: false},
		{name: "above threshold", access: "ALL", examined: 5001, want: true},
		{name: "lower case access", access: "all", examined: 9000, want: true},
		{name: "indexed access", access: "ref", examined: 9000, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := node("n1", tt.access, "orders", 0, tt.examined, &model.TableAccess{})
			findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
			assert.Equal(t, tt.want, containsCode(findings, insight.CodeFullTableScan))
		})
	}
}

func TestFullIndexScan(t *testing.T) {
	n := node("n1", "index", "orders", 0, 6000, &model.TableAccess{})
	findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)

	require.Len(t, findings, 1)
	assert.Equal(t, insight.CodeFullIndexScan, findings[0].Code)
	assert.Equal(t, insight.SeverityMedium, findings[0].Severity)

	small := node("n1", "index", "orders", 0, 5000, &model.TableAccess{})
	assert.Empty(t, engine().Evaluate([]*model.ExecutionNode{small}, 0))
}

func TestLowSelectivity(t *testing.T) {
	tests := []struct {
		name     string
		filtered any
		want     bool
	}{
		{name: "string below threshold", filtered: "5.00", want: true},
		{name: "number below threshold", filtered: 9.99, want: true},
		{name: "at threshold", filtered: "10.00", want: false},
		{name: "missing", filtered: nil, want: false},
		{name: "garbage", filtered: "n/a", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := node("n1", "ref", "t", 0, 1, &model.TableAccess{Filtered: tt.filtered})
			findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
			assert.Equal(t, tt.want, containsCode(findings, insight.CodeLowSelectivity))
		})
	}
}

func TestFlagRules(t *testing.T) {
	raw := &model.TableAccess{
		UsingFilesort:       true,
		UsingTemporaryTable: true,
		UsingIndex:          true,
		UsingJoinBuffer:     model.Flag{Set: true, Detail: "hash join"},
		Key:                 str("idx_a"),
	}
	n := node("n7", "ref", "t", 0, 1, raw)

	findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
	assert.Equal(t, []insight.Code{
		insight.CodeFileSort,
		insight.CodeTempTable,
		insight.CodeJoinBuffer,
		insight.CodeCoveringIndex,
	}, codes(findings, "n7"))

	for _, f := range findings {
		assert.Equal(t, "n7", f.NodeID)
		switch f.Code {
		case insight.CodeJoinBuffer:
			assert.Contains(t, f.Message, "(hash join)")
		case insight.CodeCoveringIndex:
			assert.Equal(t, insight.KindInformational, f.Kind)
			assert.Equal(t, insight.SeverityLow, f.Severity)
		}
	}
}

func TestJoinBufferWithoutDetail(t *testing.T) {
	n := node("n1", "ALL", "t", 0, 1, &model.TableAccess{UsingJoinBuffer: model.Flag{Set: true}})
	findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
	require.Len(t, findings, 1)
	assert.NotContains(t, findings[0].Message, "()")
}

func TestUnusedIndex(t *testing.T) {
	unused := node("n1", "ALL", "c", 0, 10, &model.TableAccess{PossibleKeys: []string{"PRIMARY", "idx_name"}})
	used := node("n2", "ref", "o", 0, 10, &model.TableAccess{PossibleKeys: []string{"fk"}, Key: str("fk")})

	findings := engine().Evaluate([]*model.ExecutionNode{unused, used}, 0)
	assert.Equal(t, []insight.Code{insight.CodeUnusedIndex}, codes(findings, ""))
	assert.Contains(t, findings[0].Message, "PRIMARY, idx_name")
}

func TestFunctionSuppressingIndex(t *testing.T) {
	tests := []struct {
		name   string
		access string
		key    *string
		cond   string
		want   bool
	}{
		{name: "lower on column without key", access: "ALL", cond: "(lower(`shop`.`c`.`name`) = 'a')", want: true},
		{name: "generic function on qualified column", access: "ref", cond: "(my_fn(c.name) = 1)", want: true},
		{name: "keyed ref lookup", access: "ref", key: str("idx"), cond: "(upper(c.name) = 'A')", want: false},
		{name: "keyed full index scan", access: "index", key: str("idx"), cond: "(year(o.created_at) = 2024)", want: true},
		{name: "no function", access: "ALL", cond: "(c.id = 3)", want: false},
		{name: "no column", access: "ALL", cond: "(now() > 3)", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := node("n1", tt.access, "c", 0, 1, &model.TableAccess{AttachedCondition: tt.cond, Key: tt.key})
			findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
			assert.Equal(t, tt.want, containsCode(findings, insight.CodeFunctionSuppressingIndex))
		})
	}
}

func TestFunctionSuppressingIndexTruncatesCondition(t *testing.T) {
	cond := "(lower(c.name) = '" + strings.Repeat("x", 300) + "')"
	n := node("n1", "ALL", "c", 0, 1, &model.TableAccess{AttachedCondition: cond})

	findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)
	require.Len(t, findings, 1)
	assert.True(t, strings.HasSuffix(findings[0].Message, "…"))
	assert.Contains(t, findings[0].Message, cond[:160])
	assert.NotContains(t, findings[0].Message, cond[:161])
}

func TestBottleneck(t *testing.T) {
	a := node("n1", "ref", "a", 40, 1, &model.TableAccess{})
	b := node("n2", "ALL", "b", 80, 1, &model.TableAccess{})
	c := node("n3", "eq_ref", "", 80, 1, &model.UnknownStep{Op: "x"})

	findings := engine().Evaluate([]*model.ExecutionNode{a, b, c}, 160)

	var bottlenecks []insight.Finding
	for _, f := range findings {
		if f.Code == insight.CodeBottleneck {
			bottlenecks = append(bottlenecks, f)
		}
	}
	require.Len(t, bottlenecks, 2)
	assert.Equal(t, "n2", bottlenecks[0].NodeID)
	assert.Equal(t, "n3", bottlenecks[1].NodeID)
	assert.Equal(t, insight.SeverityHigh, bottlenecks[0].Severity)
	assert.Equal(t, insight.KindInformational, bottlenecks[0].Kind)
	assert.Equal(t, "Primary bottleneck at ALL on table b (50% of total cost). Prioritize optimizations here.", bottlenecks[0].Message)
	assert.Contains(t, bottlenecks[1].Message, "on table (unknown)")
}

func TestBottleneckFallsBackToMaxCost(t *testing.T) {
	n := node("n1", "", "t", 12.5, 1, &model.TableAccess{})
	findings := engine().Evaluate([]*model.ExecutionNode{n}, 0)

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Message, "at operation on table t (100% of total cost)")
}

func TestBottleneckSkipsZeroCost(t *testing.T) {
	n := node("n1", "ref", "t", 0, 1, &model.TableAccess{})
	assert.Empty(t, engine().Evaluate([]*model.ExecutionNode{n}, 0))
	assert.Empty(t, engine().Evaluate(nil, 0))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "50", insight.FormatPercent(50))
	assert.Equal(t, "33.3", insight.FormatPercent(100.0/3))
	assert.Equal(t, "100", insight.FormatPercent(100))
	assert.Equal(t, "0", insight.FormatPercent(0))
}

func TestEngineUsesConfiguredThresholds(t *testing.T) {
	cfg := config.Default().Rules
	cfg.FullScanRowThreshold = 100
	n := node("n1", "ALL", "t", 0, 150, &model.TableAccess{})

	assert.True(t, containsCode(insight.NewEngine(cfg).Evaluate([]*model.ExecutionNode{n}, 0), insight.CodeFullTableScan))
	assert.False(t, containsCode(insight.NewEngine(config.RuleConfig{}).Evaluate([]*model.ExecutionNode{n}, 0), insight.CodeFullTableScan))
}

func TestEvaluateDoesNotMutateNodes(t *testing.T) {
	raw := &model.TableAccess{UsingFilesort: true, Filtered: "1"}
	n := node("n1", "ALL", "t", 10, 9000, raw)
	before := *n

	engine().Evaluate([]*model.ExecutionNode{n}, 10)
	assert.Equal(t, before, *n)
}

func TestUnrecognizedAndForNode(t *testing.T) {
	f := insight.Unrecognized()
	assert.Equal(t, insight.SeverityLow, f.Severity)
	assert.Empty(t, f.NodeID)

	findings := []insight.Finding{{NodeID: "n1", Code: insight.CodeFileSort}, {NodeID: "n2"}, {NodeID: "n1", Code: insight.CodeTempTable}}
	assert.Equal(t, []insight.Code{insight.CodeFileSort, insight.CodeTempTable}, codes(insight.ForNode(findings, "n1"), ""))
	assert.Empty(t, insight.ForNode(findings, "n9"))
}

func containsCode(findings []insight.Finding, code insight.Code) bool {
	for _, f := range findings {
		if f.Code == code {
			return true
		}
	}
	return false
}
