package parser_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/myxplain/internal/model"
	"github.com/mickamy/myxplain/internal/parser"
)

func TestTranslateString_HeaderCostAndTime(t *testing.T) {
	doc, err := parser.TranslateString("-> Nested loop  (cost=123.45 rows=10) (actual time=1.2..3.4 rows=9 loops=2)")
	require.NoError(t, err)

	assert.Equal(t, 123.45, doc.QueryBlock.CostInfo.QueryCost)
	assert.Equal(t, 3400.0, doc.QueryBlock.ActualTimeMs)
	assert.Empty(t, doc.QueryBlock.Steps)
}

func TestTranslateString_TableScan(t *testing.T) {
	doc, err := parser.TranslateString("-> Table scan on orders  (cost=10 rows=100) (actual time=0.1..0.2 rows=50 loops=3)")
	require.NoError(t, err)
	require.Len(t, doc.QueryBlock.Steps, 1)

	step := doc.QueryBlock.Steps[0].(*model.TableAccess)
	assert.Equal(t, "orders", step.TableName)
	assert.Equal(t, "ALL", step.AccessType)
	assert.Equal(t, 10.0, step.CostInfo.PrefixCost)
	require.NotNil(t, step.RowsProducedPerJoin)
	assert.Equal(t, 150.0, *step.RowsProducedPerJoin)
	require.NotNil(t, step.RowsExaminedPerScan)
	assert.Equal(t, 100.0, *step.RowsExaminedPerScan)
	assert.Equal(t, 3.0, step.Loops)
	require.NotNil(t, step.ActualTimeMs)
	assert.Equal(t, 200.0, *step.ActualTimeMs)
}

func TestTranslateString_RowsFallback(t *testing.T) {
	doc, err := parser.TranslateString("-> Index lookup on o using idx_o (id=1)  (actual time=0.1..0.2 rows=4 loops=5)")
	require.NoError(t, err)

	step := doc.QueryBlock.Steps[0].(*model.TableAccess)
	assert.Equal(t, "ref", step.AccessType)
	assert.Equal(t, "idx_o", step.KeyName())
	// The measured group doubles as the estimate when no cost group exists.
	assert.Equal(t, 4.0, *step.RowsExaminedPerScan)
	assert.Equal(t, 20.0, *step.RowsProducedPerJoin)
}

func TestTranslateText_HashJoinPlan(t *testing.T) {
	files := loadArchive(t, "analyze_orders")

	doc, err := parser.TranslateText(bytes.NewReader(files["plan.txt"]))
	require.NoError(t, err)

	qb := doc.QueryBlock
	assert.Equal(t, 4520.1, qb.CostInfo.QueryCost)
	assert.Equal(t, 95482.0, qb.ActualTimeMs)
	require.Len(t, qb.Steps, 2)

	orders := qb.Steps[0].(*model.TableAccess)
	assert.Equal(t, "o", orders.TableName)
	assert.Equal(t, "ALL", orders.AccessType)
	assert.Equal(t, 10500.0, orders.CostInfo.PrefixCost)
	assert.Equal(t, 100000.0, *orders.RowsExaminedPerScan)
	assert.True(t, orders.UsingHashJoin)
	assert.Equal(t, "(c.country = 'JP')", orders.AttachedCondition)

	customers := qb.Steps[1].(*model.TableAccess)
	assert.Equal(t, "c", customers.TableName)
	assert.True(t, customers.UsingHashJoin)
	assert.True(t, customers.UsingTemporaryTable)
	assert.False(t, customers.UsingFilesort)
}

func TestTranslateString_Flags(t *testing.T) {
	input := "-> Nested loop inner join  (cost=50 rows=5)\n" +
		"    -> Covering index lookup on t using idx_a (a=1)  (cost=5 rows=5)\n" +
		"    -> Sort: t.b, using join buffer\n"

	doc, err := parser.TranslateString(input)
	require.NoError(t, err)
	require.Len(t, doc.QueryBlock.Steps, 1)

	step := doc.QueryBlock.Steps[0].(*model.TableAccess)
	assert.True(t, step.UsingIndex)
	assert.False(t, step.UsingHashJoin)
	assert.True(t, step.UsingFilesort)
	assert.True(t, step.UsingJoinBuffer.Set)
}

func TestTranslateString_UntypedTableStep(t *testing.T) {
	doc, err := parser.TranslateString("-> Materialize union CTE cte on derived  (cost=3 rows=2)")
	require.NoError(t, err)
	require.Len(t, doc.QueryBlock.Steps, 1)

	step := doc.QueryBlock.Steps[0].(*model.TableAccess)
	assert.Equal(t, "derived", step.TableName)
	assert.Empty(t, step.AccessType)
}

func TestTranslateString_Unrecognized(t *testing.T) {
	_, err := parser.TranslateString("hello there\nnothing to see")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrMalformedInput)
}
