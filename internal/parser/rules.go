package parser

import (
	"regexp"
	"strings"
)

// Kind tells the translator how to treat a classified line.
type Kind int

const (
	// KindNone marks lines no rule recognized.
	KindNone Kind = iota
	// KindHeader marks join headers such as "Nested loop inner join".
	KindHeader
	// KindOperator marks operators without a table (filter, sort, group, limit).
	KindOperator
	// KindTable marks lines that read a table.
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindOperator:
		return "operator"
	case KindTable:
		return "table"
	default:
		return "none"
	}
}

// Classification is the outcome of matching one operation text.
type Classification struct {
	Rule       string
	Kind       Kind
	AccessType string
	Table      string
	Key        string
}

// Rule is one entry of the classifier priority list.
type Rule struct {
	Name  string
	Match func(op string) bool
	Build func(op string) Classification
}

var (
	quotedTablePattern = regexp.MustCompile("(?i)\\bon\\s+(`[^`]+`(?:\\.`[^`]+`)?)")
	plainTablePattern  = regexp.MustCompile(`(?i)\bon\s+([^\s(]+)\b`)
	keyPattern         = regexp.MustCompile(`(?i)\busing\s+([^\s(]+)\b`)
)

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	headerRule("nested_loop", `^nested\s+loop`),
	headerRule("hash_join", `^(?:(?:inner|left|right|outer|semi|anti)\s+)*hash\s+join\b`),
	operatorRule("filter", "filter", `^filter\b`),
	operatorRule("sort", "sort", `^sort\b|filesort`),
	operatorRule("group_by", "group_by", `^group\s+by\b`),
	operatorRule("limit", "limit", `^limit\b`),
	tableRule("table_scan", "ALL", `^(?:full\s+)?table\s+scan\s+on\b`),
	tableRule("index_range_scan", "range", `^index\s+range\s+scan(?:\s+(?:ascending|descending))?\s+on\b`),
	tableRule("range_scan", "range", `^range\s+scan(?:\s+(?:ascending|descending))?\s+on\b`),
	tableRule("index_skip_scan", "index_skip_scan", `^index\s+skip\s+scan\s+on\b`),
	tableRule("single_row_lookup", "eq_ref", `^single[-\s]row\s+(?:index\s+)?lookup\s+on\b`),
	tableRule("unique_lookup", "eq_ref", `^unique\s+(?:index\s+)?lookup\s+on\b`),
	tableRule("hash_lookup", "ref", `^hash\s+lookup\s+on\b`),
	tableRule("build_hash", "hash_build", `^build\s+hash\s+on\b`),
	tableRule("table_lookup", "ref", `^table\s+lookup\s+on\b`),
	tableRule("covering_index_lookup", "ref", `^covering\s+index\s+lookup\s+on\b`),
	tableRule("index_lookup", "ref", `^index\s+lookup\s+on\b`),
	tableRule("full_index_scan", "index", `^full\s+index\s+scan\s+on\b`),
	{
		Name:  "table_bound",
		Match: func(op string) bool { return extractTable(op) != "" },
		Build: func(op string) Classification {
			return Classification{Rule: "table_bound", Kind: KindTable, Table: extractTable(op), Key: extractKey(op)}
		},
	},
}

// Classify returns the classification of the first rule matching op.
func Classify(op string) Classification {
	op = strings.TrimSpace(op)
	for _, rule := range Rules {
		if rule.Match(op) {
			return rule.Build(op)
		}
	}
	return Classification{Kind: KindNone}
}

func headerRule(name, pattern string) Rule {
	re := regexp.MustCompile("(?i)" + pattern)
	return Rule{
		Name:  name,
		Match: re.MatchString,
		Build: func(string) Classification {
			return Classification{Rule: name, Kind: KindHeader, AccessType: name}
		},
	}
}

func operatorRule(name, access, pattern string) Rule {
	re := regexp.MustCompile("(?i)" + pattern)
	return Rule{
		Name:  name,
		Match: re.MatchString,
		Build: func(string) Classification {
			return Classification{Rule: name, Kind: KindOperator, AccessType: access}
		},
	}
}

func tableRule(name, access, pattern string) Rule {
	re := regexp.MustCompile("(?i)" + pattern)
	return Rule{
		Name:  name,
		Match: re.MatchString,
		Build: func(op string) Classification {
			return Classification{
				Rule:       name,
				Kind:       KindTable,
				AccessType: access,
				Table:      extractTable(op),
				Key:        extractKey(op),
			}
		},
	}
}

func extractTable(op string) string {
	if m := quotedTablePattern.FindStringSubmatch(op); m != nil {
		return m[1]
	}
	if m := plainTablePattern.FindStringSubmatch(op); m != nil {
		return m[1]
	}
	return ""
}

func extractKey(op string) string {
	if m := keyPattern.FindStringSubmatch(op); m != nil {
		return m[1]
	}
	return ""
}
