package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/myxplain/internal/parser"
)

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, parser.FormatJSON, parser.DetectFormat(`  {"query_block": {}}`))
	assert.Equal(t, parser.FormatJSON, parser.DetectFormat("\n[ ]"))
	assert.Equal(t, parser.FormatText, parser.DetectFormat("-> Table scan on t"))
}

func TestParse(t *testing.T) {
	doc, format, err := parser.Parse(`{"query_block": {"cost_info": {"query_cost": "5.5"}}}`)
	require.NoError(t, err)
	assert.Equal(t, parser.FormatJSON, format)
	assert.Equal(t, 5.5, doc.QueryBlock.CostInfo.QueryCost)

	doc, format, err = parser.Parse("-> Table scan on t  (cost=1 rows=1)")
	require.NoError(t, err)
	assert.Equal(t, parser.FormatText, format)
	assert.Len(t, doc.QueryBlock.Steps, 1)

	_, _, err = parser.Parse("   ")
	assert.ErrorIs(t, err, parser.ErrMalformedInput)

	_, format, err = parser.Parse(`{"query_block":`)
	assert.Equal(t, parser.FormatJSON, format)
	assert.ErrorIs(t, err, parser.ErrMalformedInput)
}
