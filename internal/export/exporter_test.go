package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/visualize"
)

func sampleExportData() ExportData {
	t1 := &graph.Thought{ID: "thought-1", BranchID: "B1", Content: "Cache embeddings", Metadata: graph.Metadata{Type: "analysis", KeyPoints: []string{"cache"}}}
	t2 := &graph.Thought{ID: "thought-2", BranchID: "B1", Content: `Use a "TTL"`}
	return ExportData{
		ActiveBranch: "B1",
		Branches: []*graph.Branch{
			{ID: "B1", State: graph.StateActive, Score: 1.5, Thoughts: []*graph.Thought{t1, t2}},
			{ID: "B2", State: graph.StateSuspended},
		},
		Tasks: []memory.Task{
			{ID: "task-abc", Type: memory.TaskTodo, Status: memory.StatusOpen, Assignee: "alice", Due: "2025-06-01", Content: "fix | bug"},
		},
		Graph: &visualize.Graph{
			Nodes: []visualize.Node{
				{ID: "B1", Kind: visualize.KindBranch, Label: "B1", Color: "#4e79a7"},
				{ID: "thought-1", Kind: visualize.KindThought, Label: "Cache embeddings", Focus: true},
				{ID: "thought-2", Kind: visualize.KindThought, Label: `Use a "TTL"`},
			},
			Edges: []visualize.Edge{
				{From: "B1", To: "thought-1", Kind: visualize.EdgeContains},
				{From: "B1", To: "thought-2", Kind: visualize.EdgeContains},
				{From: "thought-1", To: "thought-2", Kind: "link:supports"},
			},
			Meta: visualize.Meta{Level: visualize.LevelBasic, NodeCount: 3, EdgeCount: 3,
				Clusters: []visualize.ClusterInfo{{ID: 0, Label: "cache", Size: 3}}},
		},
	}
}

func TestGet_ValidFormats(t *testing.T) {
	for _, name := range ValidFormats() {
		if _, ok := Get(name); !ok {
			t.Errorf("Get(%q) not found", name)
		}
	}
	if got := strings.Join(ValidFormats(), ","); got != "dot,json,markdown,mermaid" {
		t.Errorf("ValidFormats() = %s", got)
	}
	if _, ok := Get("yaml"); ok {
		t.Error("unexpected exporter for yaml")
	}
}

func TestJSONExporter(t *testing.T) {
	out, err := (&JSONExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var parsed jsonOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.ActiveBranch != "B1" || len(parsed.Branches) != 2 {
		t.Errorf("unexpected output: %+v", parsed)
	}
	if len(parsed.Branches[0].Thoughts) != 2 || parsed.Branches[0].Thoughts[0].Type != "analysis" {
		t.Errorf("thoughts not rendered: %+v", parsed.Branches[0].Thoughts)
	}
	if parsed.Graph == nil || len(parsed.Graph.Edges) != 3 {
		t.Error("graph missing from JSON output")
	}
	if len(parsed.Tasks) != 1 || parsed.Tasks[0].Assignee != "alice" {
		t.Errorf("tasks not rendered: %+v", parsed.Tasks)
	}
}

func TestJSONExporter_Empty(t *testing.T) {
	out, err := (&JSONExporter{}).Export(ExportData{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(out, `"branches": []`) {
		t.Errorf("expected empty branches array, got %s", out)
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := (&MarkdownExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, want := range []string{
		"## B1 (active)",
		"## B2\n",
		"- **thought-1** Cache embeddings _(cache)_",
		"| task-abc | TODO | open | alice | 2025-06-01 | fix \\| bug |",
		"- Nodes: 3",
		"- Cluster 0 `cache`: 3 nodes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}
}

func TestMermaidExporter(t *testing.T) {
	out, err := (&MermaidExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, want := range []string{
		"flowchart LR",
		`n0[["B1"]]`,
		`n2("Use a 'TTL'")`,
		"n0 --> n1",
		"n1 -.link:supports.-> n2",
		"style n0 fill:#4e79a7",
		"style n1 stroke-width:4px",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("mermaid missing %q\n%s", want, out)
		}
	}
}

func TestDOTExporter(t *testing.T) {
	out, err := (&DOTExporter{}).Export(sampleExportData())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, want := range []string{
		"digraph branchmind {",
		`"B1" [label="B1", shape=box, style=filled, fillcolor="#4e79a7"];`,
		`"thought-2" [label="Use a \"TTL\"", shape=ellipse];`,
		`"B1" -> "thought-1";`,
		`"thought-1" -> "thought-2" [label="link:supports", style=dashed];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot missing %q\n%s", want, out)
		}
	}
}

func TestDiagramExporters_NeedGraph(t *testing.T) {
	for _, name := range []string{"mermaid", "dot"} {
		e, _ := Get(name)
		if _, err := e.Export(ExportData{}); err == nil {
			t.Errorf("%s: expected error without graph", name)
		}
	}
}
