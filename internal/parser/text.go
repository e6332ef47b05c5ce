package parser

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mickamy/myxplain/internal/model"
)

var (
	groupPattern      = regexp.MustCompile(`\(([^()]*)\)`)
	paramPattern      = regexp.MustCompile(`([a-zA-Z_]+)\s*=\s*([0-9]*\.?[0-9]+(?:[kKmMgG])?)`)
	actualTimePattern = regexp.MustCompile(`(?i)actual\s*time\s*=\s*([0-9.eE+\-]+)\.\.([0-9.eE+\-]+)`)
	coveringPattern   = regexp.MustCompile(`\busing\s+index\b|\bcovering\s+index\b`)
	hashPattern       = regexp.MustCompile(`\bhash\s+(?:join|lookup|build)\b`)
	sortPattern       = regexp.MustCompile(`\bfilesort\b|\bsort\b`)
	temporaryPattern  = regexp.MustCompile(`temporary\s+table|temp\s+table`)
	joinBufferPattern = regexp.MustCompile(`\bjoin\s+buffer\b`)
	filterPattern     = regexp.MustCompile(`(?i)filter:\s*(.*)$`)
	trailingMetrics   = regexp.MustCompile(`(?i)\s*\((?:cost|rows|loops|actual|never\s+executed)[^()]*\)\s*$`)
)

// TranslateText converts EXPLAIN ANALYZE / EXPLAIN FORMAT=TREE text from r into a document.
func TranslateText(r io.Reader) (*model.Document, error) {
	tr := &translator{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		tr.consume(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read explain text: %w", err)
	}

	if !tr.recognized {
		return nil, malformed("no execution plan lines found", nil)
	}
	return tr.document(), nil
}

// TranslateString is TranslateText for in-memory input.
func TranslateString(input string) (*model.Document, error) {
	return TranslateText(strings.NewReader(input))
}

type translator struct {
	planCost     float64
	actualTimeMs float64
	hashJoin     bool
	steps        []model.Step
	last         *model.TableAccess
	recognized   bool
}

func (tr *translator) consume(raw string) {
	line := strings.TrimSpace(strings.ReplaceAll(raw, "\t", "  "))
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "->") {
		line = strings.TrimSpace(line[2:])
	}

	groups := extractGroups(line)
	op := strings.TrimSpace(groupPattern.ReplaceAllString(line, ""))

	c := Classify(op)
	switch c.Kind {
	case KindHeader:
		tr.header(c, groups)
	case KindTable:
		tr.table(c, line, op, groups)
	default:
		if tr.last != nil {
			tr.applyFlags(tr.last, line, op)
		}
	}
}

func (tr *translator) header(c Classification, groups []string) {
	tr.recognized = true
	if c.Rule == "hash_join" {
		tr.hashJoin = true
	}
	if cost := model.ParseUnitNumber(firstParams(groups, "cost")["cost"]); cost > tr.planCost {
		tr.planCost = cost
	}
	for _, g := range groups {
		if ms, ok := actualTimeMs(g); ok && ms > tr.actualTimeMs {
			tr.actualTimeMs = ms
		}
	}
}

func (tr *translator) table(c Classification, line, op string, groups []string) {
	tr.recognized = true

	estimate := firstParams(groups, "cost", "rows")
	actual := lastParams(groups, "rows", "loops")

	cost := model.ParseUnitNumber(estimate["cost"])
	rowsEstimate := model.ParseUnitNumber(estimate["rows"])
	rowsActual := model.ParseUnitNumber(actual["rows"])
	loops := model.ParseUnitNumber(actual["loops"])

	rowsActualTotal := rowsActual
	if loops > 0 {
		rowsActualTotal = rowsActual * loops
	}
	// Examined prefers the estimate while produced prefers the measured total.
	rowsExamined := rowsActualTotal
	if rowsEstimate > 0 {
		rowsExamined = rowsEstimate
	}
	rowsProduced := rowsEstimate
	if rowsActualTotal > 0 {
		rowsProduced = rowsActualTotal
	}

	t := &model.TableAccess{
		TableName:           c.Table,
		AccessType:          c.AccessType,
		RowsExaminedPerScan: &rowsExamined,
		RowsProducedPerJoin: &rowsProduced,
		CostInfo:            model.CostInfo{PrefixCost: cost},
	}
	if c.Key != "" {
		key := c.Key
		t.Key = &key
	}
	if loops > 0 {
		t.Loops = loops
	}
	for _, g := range groups {
		if ms, ok := actualTimeMs(g); ok {
			t.ActualTimeMs = &ms
			break
		}
	}

	tr.applyFlags(t, line, op)
	tr.steps = append(tr.steps, t)
	tr.last = t
}

func (tr *translator) applyFlags(t *model.TableAccess, line, op string) {
	lower := strings.ToLower(op)
	if coveringPattern.MatchString(lower) {
		t.UsingIndex = true
	}
	if tr.hashJoin || hashPattern.MatchString(lower) {
		t.UsingHashJoin = true
	}
	if sortPattern.MatchString(lower) {
		t.UsingFilesort = true
	}
	if temporaryPattern.MatchString(lower) {
		t.UsingTemporaryTable = true
	}
	if joinBufferPattern.MatchString(lower) {
		t.UsingJoinBuffer = model.Flag{Set: true}
	}
	if cond, ok := filterCondition(line); ok {
		t.AttachedCondition = cond
	}
}

func (tr *translator) document() *model.Document {
	return &model.Document{
		QueryBlock: model.QueryBlock{
			SelectID:     1,
			CostInfo:     model.CostInfo{QueryCost: tr.planCost},
			ActualTimeMs: tr.actualTimeMs,
			Steps:        tr.steps,
			Extra:        map[string]any{},
		},
	}
}

func extractGroups(line string) []string {
	matches := groupPattern.FindAllStringSubmatch(line, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func extractParams(group string) map[string]string {
	out := make(map[string]string)
	for _, m := range paramPattern.FindAllStringSubmatch(group, -1) {
		out[strings.ToLower(m[1])] = m[2]
	}
	return out
}

// firstParams returns the parameters of the first group holding any of keys.
func firstParams(groups []string, keys ...string) map[string]string {
	for _, g := range groups {
		params := extractParams(g)
		if hasAny(params, keys) {
			return params
		}
	}
	return map[string]string{}
}

// lastParams returns the parameters of the last group holding any of keys.
func lastParams(groups []string, keys ...string) map[string]string {
	for i := len(groups) - 1; i >= 0; i-- {
		params := extractParams(groups[i])
		if hasAny(params, keys) {
			return params
		}
	}
	return map[string]string{}
}

func hasAny(params map[string]string, keys []string) bool {
	for _, k := range keys {
		if _, ok := params[k]; ok {
			return true
		}
	}
	return false
}

// actualTimeMs reads the last-row time of an "actual time=a..b" group, in milliseconds.
func actualTimeMs(group string) (float64, bool) {
	m := actualTimePattern.FindStringSubmatch(group)
	if m == nil {
		return 0, false
	}
	last, err := strconv.ParseFloat(m[2], 64)
	if err != nil || math.IsNaN(last) || math.IsInf(last, 0) {
		return 0, false
	}
	return math.Max(0, math.Round(last*1000)), true
}

func filterCondition(line string) (string, bool) {
	m := filterPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	cond := strings.TrimSpace(m[1])
	for {
		loc := trailingMetrics.FindStringIndex(cond)
		if loc == nil {
			break
		}
		cond = strings.TrimSpace(cond[:loc[0]])
	}
	return cond, cond != ""
}
