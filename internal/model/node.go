package model

// ExecutionNode is one step of the canonical execution tree.
type ExecutionNode struct {
	ID           string
	AccessType   string
	Table        string
	Cost         float64
	RowsExamined *float64
	RowsProduced *float64
	// Raw is the step the node was built from.
	Raw      Step
	Children []*ExecutionNode
}

// TableStep returns the originating table step, if any.
func (n *ExecutionNode) TableStep() (*TableAccess, bool) {
	if n == nil {
		return nil, false
	}
	t, ok := n.Raw.(*TableAccess)
	return t, ok && t != nil
}
