package analyzer

import (
	"strconv"

	"github.com/mickamy/myxplain/internal/model"
)

// Builder folds plan steps into an execution tree. Node ids are sequential per builder,
// so every build should use its own Builder.
type Builder struct {
	seq int
}

// NewBuilder returns a builder whose first node id is "n1".
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the root of the tree for the document's join sequence, or nil when it has no steps.
func (b *Builder) Build(doc *model.Document) *model.ExecutionNode {
	if doc == nil {
		return nil
	}
	return b.fold(doc.QueryBlock.Steps)
}

// fold reduces a left-deep sequence: each later step adopts the accumulated subtree as its
// only child, so the last step becomes the root.
func (b *Builder) fold(steps []model.Step) *model.ExecutionNode {
	var current *model.ExecutionNode
	for _, step := range steps {
		node := b.node(step)
		if node == nil {
			continue
		}
		if current != nil {
			node.Children = append(node.Children, current)
		}
		current = node
	}
	return current
}

func (b *Builder) node(step model.Step) *model.ExecutionNode {
	switch s := step.(type) {
	case *model.TableAccess:
		return b.tableNode(s)
	case *model.NestedGroup:
		return b.fold(s.Steps)
	case *model.UnknownStep:
		op := s.Op
		if op == "" {
			op = "op"
		}
		return &model.ExecutionNode{ID: b.nextID(), AccessType: op, Raw: s}
	default:
		return nil
	}
}

func (b *Builder) tableNode(t *model.TableAccess) *model.ExecutionNode {
	cost := t.CostInfo.PrefixCost
	if cost == 0 {
		cost = t.CostInfo.QueryCost
	}
	return &model.ExecutionNode{
		ID:           b.nextID(),
		AccessType:   t.AccessType,
		Table:        t.TableName,
		Cost:         model.ToNumber(cost, 0),
		RowsExamined: t.RowsExaminedPerScan,
		RowsProduced: t.RowsProducedPerJoin,
		Raw:          t,
	}
}

func (b *Builder) nextID() string {
	b.seq++
	return "n" + strconv.Itoa(b.seq)
}

// Collect lists the tree breadth-first; parents always precede their descendants.
func Collect(root *model.ExecutionNode) []*model.ExecutionNode {
	if root == nil {
		return nil
	}
	out := []*model.ExecutionNode{}
	queue := []*model.ExecutionNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		queue = append(queue, n.Children...)
	}
	return out
}
