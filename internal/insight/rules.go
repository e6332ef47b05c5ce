package insight

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mickamy/myxplain/internal/model"
)

var (
	scalarFunctionPattern = regexp.MustCompile(`(?i)\b(?:upper|lower|date|cast|convert|coalesce|ifnull|substring|substr|trim|ltrim|rtrim|concat|replace|left|right|abs|floor|ceil|round|year|month|day|from_unixtime|unix_timestamp)\s*\(`)
	anyFunctionPattern    = regexp.MustCompile(`(?i)[a-z_][a-z0-9_]*\s*\(`)
	columnPattern         = regexp.MustCompile("`[^`]+`\\.`[^`]+`|\\b[a-zA-Z_][a-zA-Z0-9_]*\\.[a-zA-Z_][a-zA-Z0-9_]*\\b")
)

func (e *Engine) fullTableScans(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		if !strings.EqualFold(n.AccessType, "ALL") || rowsExamined(n) <= e.cfg.FullScanRowThreshold {
			continue
		}
		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeFullTableScan,
			Severity: SeverityHigh,
			NodeID:   n.ID,
			Message: fmt.Sprintf("Table %s is read in full (access_type = ALL). This usually means no useful index exists. "+
				"Create or adjust indexes on the columns used in WHERE/JOIN and make sure they are selective.", tableOrUnknown(n)),
		})
	}
	return out
}

func (e *Engine) fullIndexScans(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		if !strings.EqualFold(n.AccessType, "index") || rowsExamined(n) <= e.cfg.FullIndexScanRowThreshold {
			continue
		}
		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeFullIndexScan,
			Severity: SeverityMedium,
			NodeID:   n.ID,
			Message: "Full index scan detected (access_type = index): the optimizer walks every index entry. " +
				"Look for more selective predicates, check the column order of composite indexes and trim projected columns.",
		})
	}
	return out
}

func (e *Engine) lowSelectivity(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		t, ok := n.TableStep()
		if !ok {
			continue
		}
		filtered := model.ToNumber(t.Filtered, math.NaN())
		if math.IsNaN(filtered) || filtered >= e.cfg.LowSelectivityPercent {
			continue
		}
		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeLowSelectivity,
			Severity: SeverityMedium,
			NodeID:   n.ID,
			Message: fmt.Sprintf("Low estimated selectivity (filtered ≈ %s%%). Most rows read here are discarded. "+
				"Tighten predicates and indexes to reduce the rows examined.", formatNumber(filtered)),
		})
	}
	return out
}

func fileSorts(nodes []*model.ExecutionNode) []Finding {
	return flagged(nodes, func(t *model.TableAccess) bool { return t.UsingFilesort }, Finding{
		Kind:     KindAdvisory,
		Code:     CodeFileSort,
		Severity: SeverityMedium,
		Message:  "Sort operation (Using filesort) detected. Cover the ORDER BY with an index so rows arrive already sorted.",
	})
}

func tempTables(nodes []*model.ExecutionNode) []Finding {
	return flagged(nodes, func(t *model.TableAccess) bool { return t.UsingTemporaryTable }, Finding{
		Kind:     KindAdvisory,
		Code:     CodeTempTable,
		Severity: SeverityMedium,
		Message: "Temporary table (Using temporary) detected. This is common with GROUP BY or UNION; " +
			"consider supporting indexes or rewrites that avoid the materialization.",
	})
}

func joinBuffers(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		t, ok := n.TableStep()
		if !ok || !t.UsingJoinBuffer.Set {
			continue
		}
		mode := ""
		if t.UsingJoinBuffer.Detail != "" {
			mode = fmt.Sprintf(" (%s)", t.UsingJoinBuffer.Detail)
		}
		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeJoinBuffer,
			Severity: SeverityMedium,
			NodeID:   n.ID,
			Message: fmt.Sprintf("Join buffer%s in use. This usually means the join predicate has no suitable index; "+
				"index the join columns and revisit the join order.", mode),
		})
	}
	return out
}

func coveringIndexes(nodes []*model.ExecutionNode) []Finding {
	return flagged(nodes, func(t *model.TableAccess) bool { return t.UsingIndex }, Finding{
		Kind:     KindInformational,
		Code:     CodeCoveringIndex,
		Severity: SeverityLow,
		Message:  "Using index: this step is served from the index alone (covering index), avoiding table reads.",
	})
}

func unusedIndexes(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		t, ok := n.TableStep()
		if !ok || len(t.PossibleKeys) == 0 || t.Key != nil {
			continue
		}
		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeUnusedIndex,
			Severity: SeverityLow,
			NodeID:   n.ID,
			Message: fmt.Sprintf("Candidate indexes (%s) were not chosen by the optimizer. "+
				"Check for functions on columns, mismatched types, stale statistics and index column order.", strings.Join(t.PossibleKeys, ", ")),
		})
	}
	return out
}

func (e *Engine) functionsSuppressingIndexes(nodes []*model.ExecutionNode) []Finding {
	var out []Finding
	for _, n := range nodes {
		t, ok := n.TableStep()
		if !ok || t.AttachedCondition == "" {
			continue
		}
		cond := t.AttachedCondition
		callsFunction := scalarFunctionPattern.MatchString(cond) || anyFunctionPattern.MatchString(cond)
		if !columnPattern.MatchString(cond) || !callsFunction {
			continue
		}

		access := strings.ToUpper(n.AccessType)
		if t.KeyName() != "" && access != "ALL" && access != "INDEX" {
			continue
		}

		out = append(out, Finding{
			Kind:     KindAdvisory,
			Code:     CodeFunctionSuppressingIndex,
			Severity: SeverityMedium,
			NodeID:   n.ID,
			Message: "A function applied to a column in the attached condition can prevent index use. " +
				"Keep functions off the column side, normalize the values, compare the raw column, " +
				"or index a generated column for the expression. Example: " + snippet(cond, e.cfg.ConditionSnippetLimit),
		})
	}
	return out
}

func bottlenecks(nodes []*model.ExecutionNode, totalCost float64) []Finding {
	maxCost := 0.0
	for _, n := range nodes {
		maxCost = math.Max(maxCost, n.Cost)
	}
	if maxCost <= 0 {
		return nil
	}

	denom := totalCost
	if denom == 0 {
		denom = maxCost
	}

	var out []Finding
	for _, n := range nodes {
		if n.Cost != maxCost {
			continue
		}
		pct := math.Min(100, math.Max(0, n.Cost/denom*100))
		access := n.AccessType
		if access == "" {
			access = "operation"
		}
		out = append(out, Finding{
			Kind:     KindInformational,
			Code:     CodeBottleneck,
			Severity: SeverityHigh,
			NodeID:   n.ID,
			Message: fmt.Sprintf("Primary bottleneck at %s on table %s (%s%% of total cost). Prioritize optimizations here.",
				access, tableOrUnknown(n), FormatPercent(pct)),
		})
	}
	return out
}

func flagged(nodes []*model.ExecutionNode, flag func(*model.TableAccess) bool, template Finding) []Finding {
	var out []Finding
	for _, n := range nodes {
		t, ok := n.TableStep()
		if !ok || !flag(t) {
			continue
		}
		f := template
		f.NodeID = n.ID
		out = append(out, f)
	}
	return out
}

func rowsExamined(n *model.ExecutionNode) float64 {
	if n.RowsExamined == nil {
		return 0
	}
	return *n.RowsExamined
}

func tableOrUnknown(n *model.ExecutionNode) string {
	if n.Table == "" {
		return "(unknown)"
	}
	return n.Table
}

// FormatPercent renders pct with one decimal, dropping a trailing ".0".
func FormatPercent(pct float64) string {
	return strings.TrimSuffix(decimal.NewFromFloat(pct).StringFixed(1), ".0")
}

func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func snippet(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
