package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"

	"github.com/mickamy/myxplain/internal/model"
)

// wrapperKeys are query_block members that wrap the real join sequence.
var wrapperKeys = map[string]struct{}{
	"ordering_operation": {},
	"grouping_operation": {},
	"duplicates_removal": {},
	"windowing":          {},
}

// ParseJSON decodes MySQL EXPLAIN FORMAT=JSON output from r.
func ParseJSON(r io.Reader) (*model.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read explain json: %w", err)
	}
	return ParseJSONBytes(data)
}

// ParseJSONBytes decodes MySQL EXPLAIN FORMAT=JSON output. A top-level array uses its first
// element. A payload without a query_block yields an empty document.
func ParseJSONBytes(data []byte) (*model.Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, malformed("empty explain payload", nil)
	}
	if !json.Valid(data) {
		return nil, malformed("invalid JSON", nil)
	}

	entry, err := firstEntry(data)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{QueryBlock: model.QueryBlock{Extra: map[string]any{}}}
	if entry == nil {
		return doc, nil
	}

	if err := Validate(entry); err != nil {
		return nil, malformed("plan does not match the expected shape", err)
	}

	qb, dataType, _, err := jsonparser.Get(entry, "query_block")
	if err != nil || dataType != jsonparser.Object {
		return doc, nil
	}

	block, err := parseQueryBlock(qb)
	if err != nil {
		return nil, malformed("decode query_block", err)
	}
	doc.QueryBlock = block
	return doc, nil
}

func firstEntry(data []byte) ([]byte, error) {
	switch data[0] {
	case '{':
		return data, nil
	case '[':
		var (
			entry     []byte
			found     bool
			notObject bool
		)
		_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
			if found {
				return
			}
			found = true
			if dataType != jsonparser.Object {
				notObject = true
				return
			}
			entry = value
		})
		if err != nil {
			return nil, malformed("read explain array", err)
		}
		if notObject {
			return nil, malformed("explain array must hold objects", nil)
		}
		return entry, nil
	default:
		return nil, malformed("explain payload must be an object or array", nil)
	}
}

func parseQueryBlock(data []byte) (model.QueryBlock, error) {
	block := model.QueryBlock{Extra: map[string]any{}}

	seq, err := parseSequence(data)
	if err != nil {
		return block, err
	}
	block.Steps = seq.steps

	err = jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		switch name {
		case "select_id":
			block.SelectID = asInt(rawValue(value, dataType))
		case "cost_info":
			block.CostInfo = parseCostInfo(rawValue(value, dataType))
		case "actual_time_ms":
			block.ActualTimeMs = asFloat(rawValue(value, dataType))
		case "nested_loop", "table":
		default:
			if _, wrapper := wrapperKeys[name]; wrapper {
				return nil
			}
			block.Extra[name] = rawValue(value, dataType)
		}
		return nil
	})
	if err != nil {
		return block, err
	}
	return block, nil
}

type sequence struct {
	steps     []model.Step
	filesort  bool
	temporary bool
}

// parseSequence finds the join sequence inside a query_block or a wrapper operation.
// Sort and temporary-table flags found on wrappers are merged onto the last table step.
func parseSequence(data []byte) (sequence, error) {
	var (
		seq       sequence
		loop      []byte
		table     []byte
		inner     []byte
		innerSeen bool
	)

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		switch {
		case name == "nested_loop" && dataType == jsonparser.Array:
			loop = value
		case name == "table" && dataType == jsonparser.Object:
			table = value
		case name == "using_filesort":
			seq.filesort = dataType == jsonparser.Boolean && string(value) == "true"
		case name == "using_temporary_table":
			seq.temporary = dataType == jsonparser.Boolean && string(value) == "true"
		default:
			if _, wrapper := wrapperKeys[name]; wrapper && dataType == jsonparser.Object && !innerSeen {
				inner = value
				innerSeen = true
			}
		}
		return nil
	})
	if err != nil {
		return seq, err
	}

	switch {
	case loop != nil:
		steps, err := parseSteps(loop)
		if err != nil {
			return seq, err
		}
		seq.steps = steps
	case table != nil:
		t, err := parseTable(table)
		if err != nil {
			return seq, err
		}
		seq.steps = []model.Step{t}
	case inner != nil:
		nested, err := parseSequence(inner)
		if err != nil {
			return seq, err
		}
		seq.steps = nested.steps
		seq.filesort = seq.filesort || nested.filesort
		seq.temporary = seq.temporary || nested.temporary
	}

	if last := lastTable(seq.steps); last != nil {
		last.UsingFilesort = last.UsingFilesort || seq.filesort
		last.UsingTemporaryTable = last.UsingTemporaryTable || seq.temporary
	}
	return seq, nil
}

func parseSteps(data []byte) ([]model.Step, error) {
	var (
		steps    []model.Step
		firstErr error
	)
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if firstErr != nil {
			return
		}
		step, err := parseStep(value, dataType)
		if err != nil {
			firstErr = err
			return
		}
		steps = append(steps, step)
	})
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return steps, nil
}

func parseStep(value []byte, dataType jsonparser.ValueType) (model.Step, error) {
	if dataType != jsonparser.Object {
		return &model.UnknownStep{Op: "op"}, nil
	}

	if table, typ, _, err := jsonparser.Get(value, "table"); err == nil && typ == jsonparser.Object {
		return parseTable(table)
	}
	if loop, typ, _, err := jsonparser.Get(value, "nested_loop"); err == nil && typ == jsonparser.Array {
		steps, err := parseSteps(loop)
		if err != nil {
			return nil, err
		}
		return &model.NestedGroup{Steps: steps}, nil
	}

	op := "op"
	_ = jsonparser.ObjectEach(value, func(key []byte, _ []byte, _ jsonparser.ValueType, _ int) error {
		op = string(key)
		return errStopIteration
	})
	raw, err := decodeObject(value)
	if err != nil {
		return nil, err
	}
	return &model.UnknownStep{Op: op, Raw: raw}, nil
}

var errStopIteration = errors.New("stop")

func parseTable(data []byte) (*model.TableAccess, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	t := &model.TableAccess{
		TableName:           asString(obj["table_name"]),
		AccessType:          asString(obj["access_type"]),
		PossibleKeys:        asStringSlice(obj["possible_keys"]),
		Key:                 asStringPtr(obj["key"]),
		UsedKeyParts:        asStringSlice(obj["used_key_parts"]),
		KeyLength:           asString(obj["key_length"]),
		Ref:                 asStringSlice(obj["ref"]),
		RowsExaminedPerScan: asFloatPtr(obj["rows_examined_per_scan"]),
		RowsProducedPerJoin: asFloatPtr(obj["rows_produced_per_join"]),
		Filtered:            obj["filtered"],
		CostInfo:            parseCostInfo(obj["cost_info"]),
		UsedColumns:         asStringSlice(obj["used_columns"]),
		AttachedCondition:   asString(obj["attached_condition"]),
		UsingFilesort:       asBool(obj["using_filesort"]),
		UsingTemporaryTable: asBool(obj["using_temporary_table"]),
		UsingIndex:          asBool(obj["using_index"]),
		UsingHashJoin:       asBool(obj["using_hash_join"]),
		UsingJoinBuffer:     asFlag(obj["using_join_buffer"]),
		Loops:               asFloat(obj["loops"]),
		ActualTimeMs:        asFloatPtr(obj["actual_time_last_ms"]),
	}

	known := map[string]struct{}{
		"table_name":             {},
		"access_type":            {},
		"possible_keys":          {},
		"key":                    {},
		"used_key_parts":         {},
		"key_length":             {},
		"ref":                    {},
		"rows_examined_per_scan": {},
		"rows_produced_per_join": {},
		"filtered":               {},
		"cost_info":              {},
		"used_columns":           {},
		"attached_condition":     {},
		"using_filesort":         {},
		"using_temporary_table":  {},
		"using_index":            {},
		"using_hash_join":        {},
		"using_join_buffer":      {},
		"loops":                  {},
		"actual_time_last_ms":    {},
	}
	extra := make(map[string]any)
	for k, v := range obj {
		if _, ok := known[k]; ok {
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 {
		t.Extra = extra
	}

	return t, nil
}

func lastTable(steps []model.Step) *model.TableAccess {
	for i := len(steps) - 1; i >= 0; i-- {
		switch s := steps[i].(type) {
		case *model.TableAccess:
			return s
		case *model.NestedGroup:
			if t := lastTable(s.Steps); t != nil {
				return t
			}
		}
	}
	return nil
}

func rawValue(value []byte, dataType jsonparser.ValueType) any {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return string(value)
		}
		return s
	case jsonparser.Number:
		return json.Number(value)
	case jsonparser.Boolean:
		return string(value) == "true"
	case jsonparser.Null, jsonparser.NotExist:
		return nil
	default:
		v, err := decodeValue(value)
		if err != nil {
			return string(value)
		}
		return v
	}
}
