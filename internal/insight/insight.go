package insight

import (
	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/model"
)

// Kind separates findings that ask for action from those that only inform.
type Kind string

const (
	KindAdvisory      Kind = "advisory"
	KindInformational Kind = "informational"
)

// Code identifies the rule that produced a finding.
type Code string

const (
	CodeFullTableScan            Code = "FULL_TABLE_SCAN"
	CodeFullIndexScan            Code = "FULL_INDEX_SCAN"
	CodeLowSelectivity           Code = "LOW_SELECTIVITY"
	CodeFileSort                 Code = "FILE_SORT"
	CodeTempTable                Code = "TEMP_TABLE"
	CodeJoinBuffer               Code = "JOIN_BUFFER"
	CodeCoveringIndex            Code = "COVERING_INDEX"
	CodeUnusedIndex              Code = "UNUSED_INDEX"
	CodeFunctionSuppressingIndex Code = "FUNCTION_SUPPRESSING_INDEX"
	CodeBottleneck               Code = "BOTTLENECK"
)

// Codes lists every code in rule order.
var Codes = []Code{
	CodeFullTableScan,
	CodeFullIndexScan,
	CodeLowSelectivity,
	CodeFileSort,
	CodeTempTable,
	CodeJoinBuffer,
	CodeCoveringIndex,
	CodeUnusedIndex,
	CodeFunctionSuppressingIndex,
	CodeBottleneck,
}

// Severity expresses the urgency of a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Finding is one diagnostic observation about a plan.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Message  string   `json:"message"`
}

// Engine evaluates the diagnostic rules over an execution tree.
type Engine struct {
	cfg config.RuleConfig
}

// NewEngine returns an engine using the given thresholds. Unset thresholds take their defaults.
func NewEngine(cfg config.RuleConfig) *Engine {
	def := config.Default().Rules
	if cfg.FullScanRowThreshold <= 0 {
		cfg.FullScanRowThreshold = def.FullScanRowThreshold
	}
	if cfg.FullIndexScanRowThreshold <= 0 {
		cfg.FullIndexScanRowThreshold = def.FullIndexScanRowThreshold
	}
	if cfg.LowSelectivityPercent <= 0 {
		cfg.LowSelectivityPercent = def.LowSelectivityPercent
	}
	if cfg.ConditionSnippetLimit <= 0 {
		cfg.ConditionSnippetLimit = def.ConditionSnippetLimit
	}
	return &Engine{cfg: cfg}
}

// Evaluate runs every rule over nodes independently and returns the findings in rule order.
// Nodes are never modified.
func (e *Engine) Evaluate(nodes []*model.ExecutionNode, totalCost float64) []Finding {
	out := []Finding{}
	for _, rule := range []func([]*model.ExecutionNode) []Finding{
		e.fullTableScans,
		e.fullIndexScans,
		e.lowSelectivity,
		fileSorts,
		tempTables,
		joinBuffers,
		coveringIndexes,
		unusedIndexes,
		e.functionsSuppressingIndexes,
	} {
		out = append(out, rule(nodes)...)
	}
	out = append(out, bottlenecks(nodes, totalCost)...)
	return out
}

// Unrecognized is the single finding reported when input could not be read as a plan.
func Unrecognized() Finding {
	return Finding{
		Kind:     KindAdvisory,
		Code:     CodeBottleneck,
		Severity: SeverityLow,
		Message:  "Unrecognized input. Paste EXPLAIN FORMAT=JSON or EXPLAIN ANALYZE output and try again.",
	}
}

// ForNode returns the findings attached to the node with the given id.
func ForNode(findings []Finding, id string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.NodeID == id {
			out = append(out, f)
		}
	}
	return out
}
