// Package visualize turns a selection of the graph into a node/edge model
// with optional clustering, centrality and structural analysis, ready for
// rendering by the export package.
package visualize

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
)

// Level controls how much detail a visualization carries.
type Level string

const (
	LevelBasic    Level = "basic"
	LevelDetailed Level = "detailed"
	LevelFull     Level = "full"
)

// ValidLevel reports whether l is a known level.
func ValidLevel(l Level) bool {
	switch l {
	case LevelBasic, LevelDetailed, LevelFull:
		return true
	}
	return false
}

const (
	KindBranch  = "branch"
	KindThought = "thought"

	EdgeContains = "contains"
)

// Options selects what to visualize.
type Options struct {
	Branches   []string `json:"branches,omitempty"`
	Level      Level    `json:"level,omitempty"`
	Cluster    bool     `json:"cluster,omitempty"`
	Centrality bool     `json:"centrality,omitempty"`
	Focus      string   `json:"focus,omitempty"`
}

// Node is a branch or a thought.
type Node struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Label        string   `json:"label"`
	BranchID     string   `json:"branchId,omitempty"`
	Score        float64  `json:"score"`
	KeyPoints    []string `json:"keyPoints,omitempty"`
	Cluster      int      `json:"cluster"`
	ClusterLabel string   `json:"clusterLabel,omitempty"`
	Color        string   `json:"color,omitempty"`
	Centrality   float64  `json:"centrality,omitempty"`
	Focus        bool     `json:"focus,omitempty"`
	Highlighted  bool     `json:"highlighted,omitempty"`
	TaskStatus   string   `json:"taskStatus,omitempty"`
	TaskPriority string   `json:"taskPriority,omitempty"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight,omitempty"`
}

// ClusterInfo describes one cluster.
type ClusterInfo struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Size  int    `json:"size"`
}

// Meta carries counts and the optional structural analysis.
type Meta struct {
	Level            Level               `json:"level"`
	NodeCount        int                 `json:"nodeCount"`
	EdgeCount        int                 `json:"edgeCount"`
	Focus            string              `json:"focus,omitempty"`
	ClusterSource    string              `json:"clusterSource,omitempty"`
	Clusters         []ClusterInfo       `json:"clusters,omitempty"`
	Cycles           [][]string          `json:"cycles,omitempty"`
	Acyclic          bool                `json:"acyclic"`
	TopologicalOrder []string            `json:"topologicalOrder,omitempty"`
	ShortestPaths    map[string][]string `json:"shortestPaths,omitempty"`
}

// Graph is the result of Build.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Meta  Meta   `json:"meta"`
}

// Source is the read side of the graph store.
type Source interface {
	Branch(id string) (*graph.Branch, error)
	Branches() []*graph.Branch
}

// VectorLookup returns a cached embedding without computing one.
type VectorLookup interface {
	Peek(text string) ([]float32, bool)
}

// Builder assembles visualizations.
type Builder struct {
	vectors VectorLookup
	log     *zap.Logger
}

// NewBuilder creates a Builder. vectors may be nil, which forces
// degree-based clustering.
func NewBuilder(vectors VectorLookup, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{vectors: vectors, log: log}
}

// Build produces the visualization of the selected branches. tasks are
// merged onto nodes by task id, or by the thought a task came from.
func (b *Builder) Build(src Source, tasks []memory.Task, opts Options) (*Graph, error) {
	const op = "visualize"
	if opts.Level == "" {
		opts.Level = LevelBasic
	}
	if !ValidLevel(opts.Level) {
		return nil, errs.Validation(op, "invalid level %q (want basic, detailed or full)", opts.Level)
	}

	branches, err := selectBranches(op, src, opts.Branches)
	if err != nil {
		return nil, err
	}

	g := &Graph{}
	index := make(map[string]int)
	addNode := func(n Node) {
		if _, ok := index[n.ID]; ok {
			return
		}
		index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}
	for _, br := range branches {
		addNode(Node{ID: br.ID, Kind: KindBranch, Label: br.ID, Score: br.Score, Cluster: -1})
		for _, t := range br.Thoughts {
			n := Node{ID: t.ID, Kind: KindThought, BranchID: br.ID, Score: t.Score, Cluster: -1}
			n.Label = truncateLabel(t.Content, 40)
			if opts.Level != LevelBasic {
				n.Label = t.Content
				n.KeyPoints = t.Metadata.KeyPoints
			}
			addNode(n)
		}
	}

	if opts.Focus != "" {
		if _, ok := index[opts.Focus]; !ok {
			return nil, errs.NotFound(op, "focus node", opts.Focus)
		}
	}

	seen := make(map[string]bool)
	addEdge := func(e Edge) {
		_, okFrom := index[e.From]
		_, okTo := index[e.To]
		key := e.From + "|" + e.To + "|" + e.Kind
		if !okFrom || !okTo || seen[key] {
			return
		}
		seen[key] = true
		g.Edges = append(g.Edges, e)
	}
	for _, br := range branches {
		for _, t := range br.Thoughts {
			addEdge(Edge{From: br.ID, To: t.ID, Kind: EdgeContains})
		}
	}
	for _, br := range branches {
		for _, t := range br.Thoughts {
			for _, l := range t.LinkedThoughts {
				addEdge(Edge{From: t.ID, To: l.ToThoughtID, Kind: "link:" + string(l.Type)})
			}
		}
		for _, x := range br.CrossRefs {
			addEdge(Edge{From: x.FromBranch, To: x.ToBranch, Kind: "xref:" + string(x.Type), Weight: x.Strength})
		}
	}

	mergeTasks(g.Nodes, index, tasks)

	adj := adjacency(g, index)
	if opts.Cluster && len(g.Nodes) > 0 {
		g.Meta.ClusterSource, g.Meta.Clusters = b.cluster(g, branches, adj)
	}
	if opts.Centrality {
		for i, c := range closeness(adj) {
			g.Nodes[i].Centrality = c
		}
	}
	if opts.Focus != "" {
		f := index[opts.Focus]
		g.Nodes[f].Focus = true
		g.Nodes[f].Highlighted = true
		for _, j := range adj[f] {
			g.Nodes[j].Highlighted = true
		}
		g.Meta.Focus = opts.Focus
	}

	g.Meta.Level = opts.Level
	g.Meta.NodeCount = len(g.Nodes)
	g.Meta.EdgeCount = len(g.Edges)
	if opts.Level == LevelFull {
		g.Meta.Cycles = cycles(g, adj)
		g.Meta.TopologicalOrder, g.Meta.Acyclic = topoOrder(g, adj)
		if opts.Focus != "" {
			g.Meta.ShortestPaths = shortestPaths(g, adj, index[opts.Focus])
		}
	}

	b.log.Debug("visualization built",
		zap.Int("nodes", g.Meta.NodeCount),
		zap.Int("edges", g.Meta.EdgeCount),
		zap.String("level", string(opts.Level)))
	return g, nil
}

func selectBranches(op string, src Source, ids []string) ([]*graph.Branch, error) {
	if len(ids) == 0 {
		return src.Branches(), nil
	}
	var out []*graph.Branch
	picked := make(map[string]bool)
	for _, id := range ids {
		if picked[id] {
			continue
		}
		br, err := src.Branch(id)
		if err != nil {
			if errs.IsKind(err, errs.KindNotFound) {
				return nil, err
			}
			return nil, errs.NotFound(op, "branch", id)
		}
		picked[id] = true
		out = append(out, br)
	}
	return out, nil
}

func mergeTasks(nodes []Node, index map[string]int, tasks []memory.Task) {
	byThought := make(map[string]bool)
	for _, t := range tasks {
		if i, ok := index[t.ID]; ok {
			nodes[i].TaskStatus, nodes[i].TaskPriority = string(t.Status), t.Priority
			continue
		}
		// A thought shows the first task extracted from it.
		if i, ok := index[t.ThoughtID]; ok && !byThought[t.ThoughtID] {
			byThought[t.ThoughtID] = true
			nodes[i].TaskStatus, nodes[i].TaskPriority = string(t.Status), t.Priority
		}
	}
}

// adjacency lists out-neighbours by node index in edge order.
func adjacency(g *Graph, index map[string]int) [][]int {
	adj := make([][]int, len(g.Nodes))
	for _, e := range g.Edges {
		from, to := index[e.From], index[e.To]
		dup := false
		for _, x := range adj[from] {
			if x == to {
				dup = true
				break
			}
		}
		if !dup {
			adj[from] = append(adj[from], to)
		}
	}
	return adj
}

func truncateLabel(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return fmt.Sprintf("%s…", string(r[:max-1]))
}
