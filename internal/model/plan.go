package model

import (
	"encoding/json"
)

// Document represents the root of a MySQL execution plan (EXPLAIN FORMAT=JSON shape).
type Document struct {
	QueryBlock QueryBlock
}

// QueryBlock holds the document-level cost estimate and the ordered join sequence.
type QueryBlock struct {
	SelectID     int
	CostInfo     CostInfo
	ActualTimeMs float64
	Steps        []Step
	// Extra carries additional query_block fields that we do not interpret yet.
	Extra map[string]any
}

// CostInfo mirrors the cost_info object found on query blocks and tables.
type CostInfo struct {
	QueryCost       float64
	ReadCost        float64
	EvalCost        float64
	PrefixCost      float64
	DataReadPerJoin string
}

// Step is one entry of a join sequence. The concrete types are *TableAccess,
// *NestedGroup and *UnknownStep.
type Step interface {
	step()
}

// TableAccess describes how a single table is read.
type TableAccess struct {
	TableName           string
	AccessType          string
	PossibleKeys        []string
	Key                 *string
	UsedKeyParts        []string
	KeyLength           string
	Ref                 []string
	RowsExaminedPerScan *float64
	RowsProducedPerJoin *float64
	// Filtered keeps the raw value; consumers coerce it themselves.
	Filtered            any
	CostInfo            CostInfo
	UsedColumns         []string
	AttachedCondition   string
	UsingFilesort       bool
	UsingTemporaryTable bool
	UsingIndex          bool
	UsingHashJoin       bool
	UsingJoinBuffer     Flag
	Loops               float64
	ActualTimeMs        *float64
	Extra               map[string]any
}

// NestedGroup is a left-deep join over its child steps.
type NestedGroup struct {
	Steps []Step
}

// UnknownStep preserves a step shape we do not model.
type UnknownStep struct {
	Op  string
	Raw map[string]any
}

func (*TableAccess) step() {}
func (*NestedGroup) step() {}
func (*UnknownStep) step() {}

// Flag is an attribute that is either a boolean or a descriptive string,
// e.g. using_join_buffer: "hash join".
type Flag struct {
	Set    bool
	Detail string
}

// MarshalJSON renders the flag the way MySQL does: the detail string when known, else a bool.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f.Set && f.Detail != "" {
		return json.Marshal(f.Detail)
	}
	return json.Marshal(f.Set)
}

// KeyName returns the chosen index or an empty string.
func (t *TableAccess) KeyName() string {
	if t == nil || t.Key == nil {
		return ""
	}
	return *t.Key
}

// MarshalJSON renders the document back into the EXPLAIN FORMAT=JSON layout.
func (d *Document) MarshalJSON() ([]byte, error) {
	qb := map[string]any{}
	for k, v := range d.QueryBlock.Extra {
		qb[k] = v
	}
	qb["select_id"] = d.QueryBlock.SelectID
	qb["cost_info"] = map[string]any{"query_cost": d.QueryBlock.CostInfo.QueryCost}
	if d.QueryBlock.ActualTimeMs > 0 {
		qb["actual_time_ms"] = d.QueryBlock.ActualTimeMs
	}
	if len(d.QueryBlock.Steps) > 0 {
		qb["nested_loop"] = wrapSteps(d.QueryBlock.Steps)
	}
	return json.Marshal(map[string]any{"query_block": qb})
}

// MarshalJSON renders the table object without its wrapper.
func (t *TableAccess) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range t.Extra {
		out[k] = v
	}
	out["table_name"] = t.TableName
	if t.AccessType != "" {
		out["access_type"] = t.AccessType
	}
	if len(t.PossibleKeys) > 0 {
		out["possible_keys"] = t.PossibleKeys
	}
	if t.Key != nil {
		out["key"] = *t.Key
	}
	if len(t.UsedKeyParts) > 0 {
		out["used_key_parts"] = t.UsedKeyParts
	}
	if t.KeyLength != "" {
		out["key_length"] = t.KeyLength
	}
	if len(t.Ref) > 0 {
		out["ref"] = t.Ref
	}
	if t.RowsExaminedPerScan != nil {
		out["rows_examined_per_scan"] = *t.RowsExaminedPerScan
	}
	if t.RowsProducedPerJoin != nil {
		out["rows_produced_per_join"] = *t.RowsProducedPerJoin
	}
	if t.Filtered != nil {
		out["filtered"] = t.Filtered
	}
	cost := map[string]any{}
	if t.CostInfo.ReadCost != 0 {
		cost["read_cost"] = t.CostInfo.ReadCost
	}
	if t.CostInfo.EvalCost != 0 {
		cost["eval_cost"] = t.CostInfo.EvalCost
	}
	if t.CostInfo.PrefixCost != 0 {
		cost["prefix_cost"] = t.CostInfo.PrefixCost
	}
	if t.CostInfo.QueryCost != 0 {
		cost["query_cost"] = t.CostInfo.QueryCost
	}
	if t.CostInfo.DataReadPerJoin != "" {
		cost["data_read_per_join"] = t.CostInfo.DataReadPerJoin
	}
	out["cost_info"] = cost
	if len(t.UsedColumns) > 0 {
		out["used_columns"] = t.UsedColumns
	}
	if t.AttachedCondition != "" {
		out["attached_condition"] = t.AttachedCondition
	}
	if t.UsingFilesort {
		out["using_filesort"] = true
	}
	if t.UsingTemporaryTable {
		out["using_temporary_table"] = true
	}
	if t.UsingIndex {
		out["using_index"] = true
	}
	if t.UsingHashJoin {
		out["using_hash_join"] = true
	}
	if t.UsingJoinBuffer.Set {
		out["using_join_buffer"] = t.UsingJoinBuffer
	}
	if t.Loops > 0 {
		out["loops"] = t.Loops
	}
	if t.ActualTimeMs != nil {
		out["actual_time_last_ms"] = *t.ActualTimeMs
	}
	return json.Marshal(out)
}

// MarshalJSON renders the group as a nested_loop wrapper.
func (g *NestedGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"nested_loop": wrapSteps(g.Steps)})
}

// MarshalJSON renders the original wrapper object verbatim.
func (u *UnknownStep) MarshalJSON() ([]byte, error) {
	if u.Raw == nil {
		return json.Marshal(map[string]any{u.Op: nil})
	}
	return json.Marshal(u.Raw)
}

// WrapStep returns the value a step takes inside a nested_loop array.
func WrapStep(s Step) any {
	switch v := s.(type) {
	case *TableAccess:
		return map[string]any{"table": v}
	default:
		return v
	}
}

func wrapSteps(steps []Step) []any {
	out := make([]any, 0, len(steps))
	for _, s := range steps {
		out = append(out, WrapStep(s))
	}
	return out
}
