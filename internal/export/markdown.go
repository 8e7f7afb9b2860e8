package export

import (
	"fmt"
	"strings"
)

// MarkdownExporter renders branches, tasks and graph statistics as markdown.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(data ExportData) (string, error) {
	var b strings.Builder
	b.WriteString("# Knowledge Graph\n\n")

	for _, br := range data.Branches {
		marker := ""
		if br.ID == data.ActiveBranch {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "## %s%s\n\n", br.ID, marker)
		fmt.Fprintf(&b, "| State | %s |\n| Priority | %.2f |\n| Confidence | %.2f |\n| Score | %.2f |\n\n",
			br.State, br.Priority, br.Confidence, br.Score)
		for _, t := range br.Thoughts {
			fmt.Fprintf(&b, "- **%s** %s", t.ID, oneLine(t.Content, 0))
			if len(t.Metadata.KeyPoints) > 0 {
				fmt.Fprintf(&b, " _(%s)_", strings.Join(t.Metadata.KeyPoints, ", "))
			}
			b.WriteString("\n")
		}
		if len(br.Thoughts) > 0 {
			b.WriteString("\n")
		}
	}

	if len(data.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		b.WriteString("| ID | Type | Status | Assignee | Due | Description |\n")
		b.WriteString("|----|------|--------|----------|-----|-------------|\n")
		for _, t := range data.Tasks {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				t.ID, t.Type, t.Status, t.Assignee, t.Due, strings.ReplaceAll(t.Content, "|", "\\|"))
		}
		b.WriteString("\n")
	}

	if g := data.Graph; g != nil {
		b.WriteString("## Graph\n\n")
		fmt.Fprintf(&b, "- Nodes: %d\n- Edges: %d\n- Level: %s\n", g.Meta.NodeCount, g.Meta.EdgeCount, g.Meta.Level)
		for _, c := range g.Meta.Clusters {
			fmt.Fprintf(&b, "- Cluster %d `%s`: %d nodes\n", c.ID, c.Label, c.Size)
		}
		if len(g.Meta.Cycles) > 0 {
			fmt.Fprintf(&b, "- Cycles: %d\n", len(g.Meta.Cycles))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}
