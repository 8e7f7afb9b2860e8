package export

import (
	"fmt"
	"strings"

	"github.com/memvra/branchmind/internal/visualize"
)

// MermaidExporter renders a graph as a Mermaid flowchart.
type MermaidExporter struct{}

func (e *MermaidExporter) Export(data ExportData) (string, error) {
	g, err := requireGraph("mermaid", data)
	if err != nil {
		return "", err
	}
	ids := mermaidIDs(g)

	var b strings.Builder
	b.WriteString("flowchart LR\n")
	for _, n := range g.Nodes {
		label := strings.ReplaceAll(oneLine(n.Label, 60), `"`, "'")
		if n.Kind == visualize.KindBranch {
			fmt.Fprintf(&b, "  %s[[\"%s\"]]\n", ids[n.ID], label)
		} else {
			fmt.Fprintf(&b, "  %s(\"%s\")\n", ids[n.ID], label)
		}
	}
	for _, ed := range g.Edges {
		arrow := "-->"
		if ed.Kind != visualize.EdgeContains {
			arrow = fmt.Sprintf("-.%s.->", ed.Kind)
		}
		fmt.Fprintf(&b, "  %s %s %s\n", ids[ed.From], arrow, ids[ed.To])
	}
	for _, n := range g.Nodes {
		if n.Color != "" {
			fmt.Fprintf(&b, "  style %s fill:%s\n", ids[n.ID], n.Color)
		}
		if n.Focus {
			fmt.Fprintf(&b, "  style %s stroke-width:4px\n", ids[n.ID])
		}
	}
	return b.String(), nil
}

// mermaidIDs maps node ids to identifiers Mermaid accepts.
func mermaidIDs(g *visualize.Graph) map[string]string {
	out := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		out[n.ID] = fmt.Sprintf("n%d", i)
	}
	return out
}

// DOTExporter renders a graph in Graphviz DOT.
type DOTExporter struct{}

func (e *DOTExporter) Export(data ExportData) (string, error) {
	g, err := requireGraph("dot", data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph branchmind {\n  rankdir=LR;\n")
	for _, n := range g.Nodes {
		shape := "ellipse"
		if n.Kind == visualize.KindBranch {
			shape = "box"
		}
		attrs := []string{
			fmt.Sprintf("label=%q", oneLine(n.Label, 60)),
			"shape=" + shape,
		}
		if n.Color != "" {
			attrs = append(attrs, fmt.Sprintf("style=filled, fillcolor=%q", n.Color))
		}
		if n.Focus {
			attrs = append(attrs, "penwidth=3")
		}
		fmt.Fprintf(&b, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}
	for _, ed := range g.Edges {
		style := ""
		if ed.Kind != visualize.EdgeContains {
			style = fmt.Sprintf(" [label=%q, style=dashed]", ed.Kind)
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", ed.From, ed.To, style)
	}
	b.WriteString("}\n")
	return b.String(), nil
}
