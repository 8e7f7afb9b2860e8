package visualize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memvra/branchmind/internal/errs"
	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/memory"
)

type peekMap map[string][]float32

func (p peekMap) Peek(text string) ([]float32, bool) {
	v, ok := p[text]
	return v, ok
}

// fixture builds B1{t1 alpha, t2 beta} and B2{t3 gamma}, a complementary
// cross-reference B2->B1 (mirrored B1->B2) and a link t1->t3.
func fixture(t *testing.T) (*graph.Store, [3]string) {
	t.Helper()
	s := graph.NewStore()
	t1, err := s.AddThought(graph.ThoughtInput{Content: "alpha", BranchID: "B1", KeyPoints: []string{"cache"}})
	require.NoError(t, err)
	t2, err := s.AddThought(graph.ThoughtInput{Content: "beta", BranchID: "B1", KeyPoints: []string{"cache", "ttl"}})
	require.NoError(t, err)
	t3, err := s.AddThought(graph.ThoughtInput{
		Content:  "gamma",
		BranchID: "B2",
		CrossRefs: []graph.CrossRefInput{
			{ToBranch: "B1", Type: graph.CrossRefComplementary, Reason: "shared cache", Strength: 0.6},
		},
	})
	require.NoError(t, err)
	ok, err := s.LinkThoughts(t1.ID, t3.ID, graph.LinkSupports, "")
	require.NoError(t, err)
	require.True(t, ok)
	return s, [3]string{t1.ID, t2.ID, t3.ID}
}

func nodeByID(g *Graph, id string) Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return Node{}
}

func edgeKinds(g *Graph) map[string]int {
	out := make(map[string]int)
	for _, e := range g.Edges {
		out[e.Kind]++
	}
	return out
}

func TestBuild_NodesAndEdges(t *testing.T) {
	s, ids := fixture(t)
	g, err := NewBuilder(nil, nil).Build(s, nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, 5, g.Meta.NodeCount)
	assert.Equal(t, 6, g.Meta.EdgeCount)
	assert.Equal(t, LevelBasic, g.Meta.Level)
	assert.Equal(t, map[string]int{
		EdgeContains:        3,
		"link:supports":     1,
		"xref:complementary": 2,
	}, edgeKinds(g))

	assert.Equal(t, KindThought, nodeByID(g, ids[0]).Kind)
	assert.Equal(t, "B1", nodeByID(g, ids[0]).BranchID)
	assert.Empty(t, nodeByID(g, ids[0]).KeyPoints, "basic level omits key points")
	assert.Nil(t, g.Meta.Cycles, "structural analysis is only computed at full level")
}

func TestBuild_SelectionDropsOutsideEdges(t *testing.T) {
	s, ids := fixture(t)
	g, err := NewBuilder(nil, nil).Build(s, nil, Options{Branches: []string{"B2", "B2"}})
	require.NoError(t, err)

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "B2", g.Nodes[0].ID)
	assert.Equal(t, ids[2], g.Nodes[1].ID)
	assert.Equal(t, map[string]int{EdgeContains: 1}, edgeKinds(g))
}

func TestBuild_Errors(t *testing.T) {
	s, _ := fixture(t)
	b := NewBuilder(nil, nil)

	_, err := b.Build(s, nil, Options{Branches: []string{"nope"}})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = b.Build(s, nil, Options{Focus: "thought-99"})
	assert.True(t, errs.IsKind(err, errs.KindNotFound))

	_, err = b.Build(s, nil, Options{Level: "everything"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestBuild_FullLevelAnalysis(t *testing.T) {
	s, ids := fixture(t)
	g, err := NewBuilder(nil, nil).Build(s, nil, Options{Level: LevelFull, Focus: "B1"})
	require.NoError(t, err)

	assert.False(t, g.Meta.Acyclic)
	assert.Nil(t, g.Meta.TopologicalOrder)
	require.NotEmpty(t, g.Meta.Cycles)
	assert.ElementsMatch(t, []string{"B1", "B2"}, g.Meta.Cycles[0])

	assert.Equal(t, []string{"B1", ids[0], ids[2]}, g.Meta.ShortestPaths[ids[2]])
	assert.Equal(t, []string{"B1", "B2"}, g.Meta.ShortestPaths["B2"])
	_, self := g.Meta.ShortestPaths["B1"]
	assert.False(t, self)
}

func TestBuild_TopologicalOrderWhenAcyclic(t *testing.T) {
	s := graph.NewStore()
	a, err := s.AddThought(graph.ThoughtInput{Content: "a", BranchID: "solo"})
	require.NoError(t, err)
	b, err := s.AddThought(graph.ThoughtInput{Content: "b", BranchID: "solo"})
	require.NoError(t, err)
	_, err = s.LinkThoughts(b.ID, a.ID, graph.LinkRefines, "")
	require.NoError(t, err)

	g, err := NewBuilder(nil, nil).Build(s, nil, Options{Level: LevelFull})
	require.NoError(t, err)
	assert.True(t, g.Meta.Acyclic)
	assert.Empty(t, g.Meta.Cycles)
	assert.Equal(t, []string{"solo", b.ID, a.ID}, g.Meta.TopologicalOrder)
}

func TestBuild_ClusterByDegree(t *testing.T) {
	s, _ := fixture(t)
	g, err := NewBuilder(nil, nil).Build(s, nil, Options{Cluster: true})
	require.NoError(t, err)

	assert.Equal(t, ClusterByDegree, g.Meta.ClusterSource)
	require.Len(t, g.Meta.Clusters, 2)
	total := 0
	for _, c := range g.Meta.Clusters {
		total += c.Size
		assert.NotEmpty(t, c.Color)
	}
	assert.Equal(t, 5, total)
	for _, n := range g.Nodes {
		assert.GreaterOrEqual(t, n.Cluster, 0)
		assert.NotEmpty(t, n.ClusterLabel)
	}
}

func TestBuild_ClusterByEmbedding(t *testing.T) {
	s, ids := fixture(t)
	vecs := peekMap{
		"alpha": {1, 0},
		"beta":  {1, 0.1},
		"gamma": {0, 1},
	}
	g, err := NewBuilder(vecs, nil).Build(s, nil, Options{Cluster: true, Level: LevelDetailed})
	require.NoError(t, err)

	assert.Equal(t, ClusterByEmbedding, g.Meta.ClusterSource)
	t1, t2, t3 := nodeByID(g, ids[0]), nodeByID(g, ids[1]), nodeByID(g, ids[2])
	assert.Equal(t, t1.Cluster, t2.Cluster)
	assert.NotEqual(t, t1.Cluster, t3.Cluster)
	assert.Equal(t, nodeByID(g, "B1").Cluster, t1.Cluster)
	assert.Equal(t, "cache", t1.ClusterLabel)
	assert.Equal(t, "alpha", t1.Label)
}

func TestBuild_ClusterFallsBackWithoutEnoughVectors(t *testing.T) {
	s, _ := fixture(t)
	g, err := NewBuilder(peekMap{"alpha": {1, 0}}, nil).Build(s, nil, Options{Cluster: true})
	require.NoError(t, err)
	assert.Equal(t, ClusterByDegree, g.Meta.ClusterSource)
}

func TestBuild_CentralityAndFocus(t *testing.T) {
	s, ids := fixture(t)
	g, err := NewBuilder(nil, nil).Build(s, nil, Options{Centrality: true, Focus: ids[0]})
	require.NoError(t, err)

	assert.Greater(t, nodeByID(g, "B1").Centrality, 0.0)
	assert.Zero(t, nodeByID(g, ids[1]).Centrality, "a sink reaches nothing")

	focus := nodeByID(g, ids[0])
	assert.True(t, focus.Focus)
	assert.True(t, focus.Highlighted)
	assert.True(t, nodeByID(g, ids[2]).Highlighted)
	assert.False(t, nodeByID(g, ids[1]).Highlighted)
	assert.Equal(t, ids[0], g.Meta.Focus)
}

func TestBuild_MergesTasks(t *testing.T) {
	s, ids := fixture(t)
	tasks := []memory.Task{
		{ID: "task-1", ThoughtID: ids[1], Status: memory.StatusInProgress, Priority: memory.PriorityHigh},
		{ID: "task-2", ThoughtID: ids[1], Status: memory.StatusOpen, Priority: memory.PriorityNormal},
	}
	g, err := NewBuilder(nil, nil).Build(s, tasks, Options{})
	require.NoError(t, err)

	n := nodeByID(g, ids[1])
	assert.Equal(t, "in_progress", n.TaskStatus)
	assert.Equal(t, memory.PriorityHigh, n.TaskPriority)
	assert.Empty(t, nodeByID(g, ids[0]).TaskStatus)
}

func TestKMeans_Deterministic(t *testing.T) {
	points := [][]float64{{0}, {10}, {1}, {11}, {0.5}}
	first := kmeans(points, 2)
	assert.Equal(t, first, kmeans(points, 2))
	assert.Equal(t, []int{0, 1, 0, 1, 0}, first)
}
