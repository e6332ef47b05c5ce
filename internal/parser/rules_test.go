package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/myxplain/internal/parser"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		op     string
		kind   parser.Kind
		access string
		table  string
		key    string
	}{
		{op: "Nested loop inner join", kind: parser.KindHeader, access: "nested_loop"},
		{op: "Inner hash join", kind: parser.KindHeader, access: "hash_join"},
		{op: "Filter: t.a > 1", kind: parser.KindOperator, access: "filter"},
		{op: "Sort: t.a", kind: parser.KindOperator, access: "sort"},
		{op: "Group by t.a", kind: parser.KindOperator, access: "group_by"},
		{op: "Limit: 10 row", kind: parser.KindOperator, access: "limit"},
		{op: "Table scan on orders", kind: parser.KindTable, access: "ALL", table: "orders"},
		{op: "Full table scan on orders", kind: parser.KindTable, access: "ALL", table: "orders"},
		{op: "Index range scan on o using idx_created", kind: parser.KindTable, access: "range", table: "o", key: "idx_created"},
		{op: "Index range scan descending on o using idx_created", kind: parser.KindTable, access: "range", table: "o", key: "idx_created"},
		{op: "Index skip scan on t using idx_ab", kind: parser.KindTable, access: "index_skip_scan", table: "t", key: "idx_ab"},
		{op: "Single-row index lookup on p using PRIMARY", kind: parser.KindTable, access: "eq_ref", table: "p", key: "PRIMARY"},
		{op: "Unique lookup on p using uk", kind: parser.KindTable, access: "eq_ref", table: "p", key: "uk"},
		{op: "Hash lookup on t", kind: parser.KindTable, access: "ref", table: "t"},
		{op: "Build hash on t", kind: parser.KindTable, access: "hash_build", table: "t"},
		{op: "Covering index lookup on t using idx_a", kind: parser.KindTable, access: "ref", table: "t", key: "idx_a"},
		{op: "Index lookup on t using idx_a", kind: parser.KindTable, access: "ref", table: "t", key: "idx_a"},
		{op: "Full index scan on t using idx_a", kind: parser.KindTable, access: "index", table: "t", key: "idx_a"},
		{op: "Index scan on `shop`.`orders` using PRIMARY", kind: parser.KindTable, table: "`shop`.`orders`", key: "PRIMARY"},
		{op: "Aggregate using temporary table", kind: parser.KindNone},
		{op: "Stream results", kind: parser.KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got := parser.Classify(tt.op)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.access, got.AccessType)
			assert.Equal(t, tt.table, got.Table)
			assert.Equal(t, tt.key, got.Key)
		})
	}
}

func TestClassify_FilterBeatsTableBinding(t *testing.T) {
	got := parser.Classify("Filter: rows on t")
	assert.Equal(t, parser.KindOperator, got.Kind)
	assert.Equal(t, "filter", got.Rule)
}

func TestRulesHaveNames(t *testing.T) {
	seen := map[string]bool{}
	for _, rule := range parser.Rules {
		assert.NotEmpty(t, rule.Name)
		assert.False(t, seen[rule.Name], "duplicate rule %s", rule.Name)
		seen[rule.Name] = true
	}
}
