package generate

import (
	"fmt"
	"strings"

	"github.com/jllopis/actionhub/pkg/registry"
)

var mermaidClassDefs = []string{
	"classDef tier0 fill:#ff6b6b,stroke:#c92a2a,stroke-width:2px,color:#fff",
	"classDef tier1 fill:#4dabf7,stroke:#1971c2,stroke-width:2px,color:#fff",
	"classDef tier2 fill:#69db7c,stroke:#2f9e44,stroke-width:2px,color:#fff",
}

// ToMermaid renders g as a Mermaid flowchart.
func ToMermaid(g *ServiceGraph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "  %s[\"%s\"]:::%s\n", mermaidID(n.ID), mermaidLabel(n.Name), tierClass(n.Metadata.Tier))
	}
	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf("|\"%s\"|", mermaidLabel(e.Label))
		}
		fmt.Fprintf(&b, "  %s -->%s %s\n", mermaidID(e.From), label, mermaidID(e.To))
	}
	b.WriteString("\n")
	for _, def := range mermaidClassDefs {
		b.WriteString("  " + def + "\n")
	}
	return b.String()
}

// ToDot renders g as a Graphviz digraph.
func ToDot(g *ServiceGraph) string {
	var b strings.Builder
	b.WriteString("digraph services {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")
	for _, n := range g.Nodes {
		color := tierColor(n.Metadata.Tier)
		fmt.Fprintf(&b, "  %s [label=\"%s\\n(stage %d)\", color=\"%s\", fillcolor=\"%s20\", style=\"filled,rounded\"];\n",
			dotID(n.ID), dotEscape(n.Name), n.Metadata.Stage, color, color)
	}
	b.WriteString("\n")
	for _, e := range g.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf(" [label=\"%s\"]", dotEscape(e.Label))
		}
		fmt.Fprintf(&b, "  %s -> %s%s;\n", dotID(e.From), dotID(e.To), label)
	}
	b.WriteString("}\n")
	return b.String()
}

func tierClass(t registry.Tier) string {
	switch t {
	case registry.Tier0:
		return "tier0"
	case registry.Tier1:
		return "tier1"
	default:
		return "tier2"
	}
}

func tierColor(t registry.Tier) string {
	switch t {
	case registry.Tier0:
		return "red"
	case registry.Tier1:
		return "blue"
	default:
		return "green"
	}
}

// mermaidID keeps ASCII letters and digits. An underscore becomes "__"
// and every other byte "_xx" in hex, so distinct ids stay distinct.
func mermaidID(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

func mermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

var dotReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func dotEscape(s string) string {
	return dotReplacer.Replace(s)
}

func dotID(s string) string {
	return `"` + dotEscape(s) + `"`
}
