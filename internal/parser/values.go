package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/myxplain/internal/model"
)

func decodeObject(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func asObject(val any) (map[string]any, error) {
	if val == nil {
		return nil, errors.New("nil object")
	}
	obj, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", val)
	}
	return obj, nil
}

func asString(val any) string {
	if val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func asStringPtr(val any) *string {
	if val == nil {
		return nil
	}
	s := asString(val)
	return &s
}

func asStringSlice(val any) []string {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, asString(item))
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

func asFloat(val any) float64 {
	return model.ToNumber(val, 0)
}

func asFloatPtr(val any) *float64 {
	if val == nil {
		return nil
	}
	f := model.ToNumber(val, 0)
	return &f
}

func asInt(val any) int {
	return int(model.ToNumber(val, 0))
}

// asBool is strict: only a JSON true counts.
func asBool(val any) bool {
	b, ok := val.(bool)
	return ok && b
}

func asFlag(val any) model.Flag {
	switch v := val.(type) {
	case bool:
		return model.Flag{Set: v}
	case string:
		return model.Flag{Set: v != "", Detail: v}
	case json.Number:
		return model.Flag{Set: model.ToNumber(v, 0) != 0}
	case nil:
		return model.Flag{}
	default:
		return model.Flag{Set: true}
	}
}

func parseCostInfo(val any) model.CostInfo {
	obj, err := asObject(val)
	if err != nil {
		return model.CostInfo{}
	}
	return model.CostInfo{
		QueryCost:       asFloat(obj["query_cost"]),
		ReadCost:        asFloat(obj["read_cost"]),
		EvalCost:        asFloat(obj["eval_cost"]),
		PrefixCost:      asFloat(obj["prefix_cost"]),
		DataReadPerJoin: asString(obj["data_read_per_join"]),
	}
}
