package insight

import (
	"fmt"
	"strings"

	"github.com/mickamy/myxplain/internal/model"
)

// NodeLabel builds a descriptive label for an execution node.
func NodeLabel(node *model.ExecutionNode) string {
	if node == nil {
		return ""
	}
	label := node.AccessType
	if label == "" {
		label = "operation"
	}
	if node.Table != "" {
		label = fmt.Sprintf("%s %s", label, node.Table)
	}
	if t, ok := node.TableStep(); ok && t.KeyName() != "" {
		label = fmt.Sprintf("%s (%s)", label, t.KeyName())
	}
	return label
}

// NormalizeWhitespace collapses whitespace for use in HTML or text.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AnchorID returns an HTML anchor for the node.
func AnchorID(node *model.ExecutionNode) string {
	if node == nil {
		return ""
	}
	return "node-" + node.ID
}
