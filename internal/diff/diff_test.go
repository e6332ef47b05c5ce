package diff_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/myxplain/internal/config"
	"github.com/mickamy/myxplain/internal/diff"
	"github.com/mickamy/myxplain/internal/explain"
	"github.com/mickamy/myxplain/internal/insight"
	"github.com/mickamy/myxplain/test"
)

func TestCompareSamples(t *testing.T) {
	base := test.LoadSample(t, "ecommerce.json")
	target := test.LoadSample(t, "ecommerce_indexed.json")

	report, err := diff.Compare(base, target, diff.Options{})
	require.NoError(t, err)

	assert.InDelta(t, 12781.93, report.Summary.BaseCost, 1e-9)
	assert.InDelta(t, 2410.60, report.Summary.TargetCost, 1e-9)
	assert.Less(t, report.Summary.PercentCost, -80.0)

	require.Len(t, report.Improvements, 4)
	assert.Equal(t, "ref · i · fk_items_orders", report.Improvements[0].Signature)
	assert.Equal(t, "ALL · c", report.Improvements[3].Signature)
	assert.Equal(t, -100.0, report.Improvements[3].PercentChange)

	require.Len(t, report.Regressions, 1)
	assert.Equal(t, "range · c · idx_customers_name", report.Regressions[0].Signature)

	assert.Empty(t, report.Introduced)
	var resolved []insight.Code
	for _, f := range report.Resolved {
		resolved = append(resolved, f.Code)
		assert.Equal(t, "ALL · c", f.Signature)
	}
	assert.Equal(t, []insight.Code{insight.CodeUnusedIndex, insight.CodeFunctionSuppressingIndex}, resolved)
}

func TestReportMarkdownAndJSON(t *testing.T) {
	base := test.LoadSample(t, "ecommerce.json")
	target := test.LoadSample(t, "ecommerce_indexed.json")

	report, err := diff.Compare(base, target, diff.OptionsFrom(config.Default().Diff))
	require.NoError(t, err)

	md := report.Markdown()
	assert.True(t, strings.HasPrefix(md, "# myxplain diff\n"))
	assert.Contains(t, md, "- Cost: 12781.93 → 2410.60")
	assert.Contains(t, md, "| ALL · c | 418.35 | 0.00 | -418.35 | -100.0% |")
	assert.Contains(t, md, "- resolved `UNUSED_INDEX` (low)")

	jsonOut, err := report.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(jsonOut, &decoded))
	assert.Contains(t, decoded, "regressions")
	assert.Contains(t, decoded, "resolved_findings")
}

func TestCompareReverseIntroducesFindings(t *testing.T) {
	base := test.LoadSample(t, "ecommerce_indexed.json")
	target := test.LoadSample(t, "ecommerce.json")

	report, err := diff.Compare(base, target, diff.Options{MaxItems: 2})
	require.NoError(t, err)

	assert.Len(t, report.Regressions, 2)
	assert.Len(t, report.Introduced, 2)
	assert.Empty(t, report.Resolved)
	assert.Equal(t, "critical", firstInsightSeverity(t, report))
}

func TestCompareRequiresPlans(t *testing.T) {
	a := explain.New(explain.OptionsFrom(config.Default()))
	ok := test.LoadSample(t, "ecommerce.json")

	_, err := diff.Compare(a.Analyze("garbage"), ok, diff.Options{})
	assert.Error(t, err)
	_, err = diff.Compare(ok, a.Analyze(`{"query_block": {}}`), diff.Options{})
	assert.Error(t, err)
}

func firstInsightSeverity(t *testing.T, report *diff.Report) string {
	t.Helper()
	data, err := report.JSON()
	require.NoError(t, err)
	var decoded struct {
		Insights []struct {
			Severity string `json:"severity"`
		} `json:"insights"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotEmpty(t, decoded.Insights)
	return decoded.Insights[0].Severity
}
