package context

import (
	"fmt"
	"strings"
	"time"

	"github.com/memvra/branchmind/internal/graph"
)

// Formatter renders branches into markdown views.
type Formatter struct{}

// NewFormatter creates a Formatter.
func NewFormatter() *Formatter { return &Formatter{} }

// FormatHistory renders the full history of a branch: every thought with
// its annotations, then branch cross-references and insights.
func (f *Formatter) FormatHistory(b *graph.Branch, active bool) string {
	var sb strings.Builder
	sb.WriteString(f.header(b, active))

	if len(b.Thoughts) == 0 {
		sb.WriteString("_No thoughts yet._\n")
	}
	for i, t := range b.Thoughts {
		fmt.Fprintf(&sb, "### %d. %s [%s] (%s)\n\n", i+1, t.ID, t.Metadata.Type, t.Timestamp.Format(time.RFC3339))
		fmt.Fprintf(&sb, "%s\n\n", t.Content)
		fmt.Fprintf(&sb, "- confidence: %.2f, score: %.2f\n", t.Metadata.Confidence, t.Score)
		if len(t.Metadata.KeyPoints) > 0 {
			fmt.Fprintf(&sb, "- key points: %s\n", strings.Join(t.Metadata.KeyPoints, "; "))
		}
		for _, l := range t.LinkedThoughts {
			if l.Reason != "" {
				fmt.Fprintf(&sb, "- %s → %s (%s)\n", l.Type, l.ToThoughtID, l.Reason)
			} else {
				fmt.Fprintf(&sb, "- %s → %s\n", l.Type, l.ToThoughtID)
			}
		}
		for _, r := range t.CrossRefs {
			fmt.Fprintf(&sb, "- %s ~ %s (%.2f)\n", r.Kind, r.ToThoughtID, r.Score)
		}
		sb.WriteString("\n")
	}

	if len(b.CrossRefs) > 0 {
		sb.WriteString("## Cross-references\n\n")
		for _, x := range b.CrossRefs {
			fmt.Fprintf(&sb, "- %s %s → %s (strength %.2f)", x.Type, x.FromBranch, x.ToBranch, x.Strength)
			if x.Reason != "" {
				fmt.Fprintf(&sb, ": %s", x.Reason)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(f.FormatInsights(b.Insights))
	return sb.String()
}

// FormatStatus renders a short status block.
func (f *Formatter) FormatStatus(b *graph.Branch, active bool) string {
	var sb strings.Builder
	sb.WriteString(f.header(b, active))
	fmt.Fprintf(&sb, "- thoughts: %d\n", len(b.Thoughts))
	fmt.Fprintf(&sb, "- insights: %d\n", len(b.Insights))
	fmt.Fprintf(&sb, "- cross-references: %d\n", len(b.CrossRefs))
	if n := len(b.Thoughts); n > 0 {
		last := b.Thoughts[n-1]
		fmt.Fprintf(&sb, "- last thought: %s (%s)\n", truncateStr(last.Content, 80), last.Timestamp.Format(time.RFC3339))
	}
	return sb.String()
}

// FormatInsights renders insights as a markdown list.
func (f *Formatter) FormatInsights(insights []*graph.Insight) string {
	if len(insights) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Insights\n\n")
	for _, in := range insights {
		fmt.Fprintf(&sb, "- [%s] %s (applicability %.2f)\n", in.Type, in.Content, in.ApplicabilityScore)
	}
	sb.WriteString("\n")
	return sb.String()
}

func (f *Formatter) header(b *graph.Branch, active bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Branch %s", b.ID)
	if active {
		sb.WriteString(" (active)")
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "- state: %s\n", b.State)
	if b.ParentBranchID != "" {
		fmt.Fprintf(&sb, "- parent: %s\n", b.ParentBranchID)
	}
	fmt.Fprintf(&sb, "- priority: %.2f, confidence: %.2f, score: %.2f\n\n", b.Priority, b.Confidence, b.Score)
	return sb.String()
}

func truncateStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
