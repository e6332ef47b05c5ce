package graph

import (
	"fmt"
	"strings"
)

var classDefs = []string{
	"classDef hot fill:#ef4444,stroke:#991b1b,stroke-width:2px,color:#111",
	"classDef warm fill:#f59e0b,stroke:#92400e,stroke-width:2px,color:#111",
	"classDef cool fill:#86efac,stroke:#065f46,stroke-width:1px,color:#111",
	"classDef selected stroke:#2563eb,stroke-width:3px,color:#111",
}

// Mermaid serializes the description as a Mermaid flowchart.
func (d *Description) Mermaid() string {
	if d == nil {
		return ""
	}
	direction := d.Direction
	if direction == "" {
		direction = "TD"
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("flowchart %s", direction)
	line(`%%%%{init: { "theme": "base", "themeVariables": { "fontSize": "13px" } } }%%%%`)

	for _, n := range d.Nodes {
		line(`%s["%s"]`, n.ID, escapeLabel(n.Label()))
	}
	if d.Placeholder {
		return strings.TrimSuffix(b.String(), "\n")
	}

	for _, e := range d.Edges {
		line(`%s -- "%s" --> %s`, e.From, escapeLabel(e.Label), e.To)
	}

	for _, def := range classDefs {
		line("%s", def)
	}
	for _, n := range d.Nodes {
		if n.Tier != "" {
			line("class %s %s", n.ID, n.Tier)
		}
	}
	if d.Highlight != "" {
		line("class %s selected", d.Highlight)
	}
	for _, n := range d.Nodes {
		if n.Click != nil {
			line(`click %s call %s("%s") "%s"`, n.ID, n.Click.Callback, n.Click.Arg, n.Click.Tooltip)
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
