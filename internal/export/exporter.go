// Package export renders graphs, branch histories and tasks into formats
// other tools can read.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/visualize"
)

// ExportData is passed to every Exporter. Exporters render whatever parts
// are present.
type ExportData struct {
	Graph        *visualize.Graph
	Branches     []*graph.Branch
	Tasks        []memory.Task
	ActiveBranch string
}

// Exporter renders ExportData to a string in a specific format.
type Exporter interface {
	Export(data ExportData) (string, error)
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"json":     &JSONExporter{},
	"markdown": &MarkdownExporter{},
	"mermaid":  &MermaidExporter{},
	"dot":      &DOTExporter{},
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported export format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}

// requireGraph is shared by the diagram exporters.
func requireGraph(format string, data ExportData) (*visualize.Graph, error) {
	if data.Graph == nil {
		return nil, fmt.Errorf("export: %s needs a graph", format)
	}
	return data.Graph, nil
}

// oneLine collapses whitespace and caps s at max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if max > 0 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
