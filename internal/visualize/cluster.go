package visualize

import (
	"fmt"
	"math"
	"sort"

	"github.com/memvra/branchmind/internal/graph"
)

const maxKMeansIterations = 25

var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2",
	"#59a14f", "#edc948", "#b07aa1", "#ff9da7",
}

const (
	ClusterByEmbedding = "embedding"
	ClusterByDegree    = "degree"
)

// cluster assigns every node a cluster and returns the feature source and
// the cluster descriptions. Embeddings are used when most nodes have one.
func (b *Builder) cluster(g *Graph, branches []*graph.Branch, adj [][]int) (string, []ClusterInfo) {
	n := len(g.Nodes)
	features, ok := b.embeddingFeatures(g, branches)
	source := ClusterByEmbedding
	if !ok {
		source = ClusterByDegree
		features = degreeFeatures(g, adj)
	}

	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	assign := kmeans(features, k)

	infos := make([]ClusterInfo, k)
	keyPoints := make([]map[string]int, k)
	for c := range infos {
		infos[c] = ClusterInfo{ID: c, Color: palette[c%len(palette)]}
		keyPoints[c] = make(map[string]int)
	}
	for i := range g.Nodes {
		c := assign[i]
		g.Nodes[i].Cluster = c
		g.Nodes[i].Color = infos[c].Color
		infos[c].Size++
		for _, kp := range g.Nodes[i].KeyPoints {
			keyPoints[c][kp]++
		}
	}
	for c := range infos {
		infos[c].Label = clusterLabel(c, keyPoints[c])
	}
	for i := range g.Nodes {
		g.Nodes[i].ClusterLabel = infos[g.Nodes[i].Cluster].Label
	}
	return source, infos
}

// embeddingFeatures looks up cached vectors for thoughts and averages them
// for branches. It reports false when fewer than half the nodes have one.
func (b *Builder) embeddingFeatures(g *Graph, branches []*graph.Branch) ([][]float64, bool) {
	if b.vectors == nil {
		return nil, false
	}
	vecs := make(map[string][]float64)
	dim := 0
	for _, br := range branches {
		var sum []float64
		count := 0
		for _, t := range br.Thoughts {
			v, ok := b.vectors.Peek(t.Content)
			if !ok || len(v) == 0 || (dim != 0 && len(v) != dim) {
				continue
			}
			dim = len(v)
			f := make([]float64, dim)
			for i, x := range v {
				f[i] = float64(x)
			}
			vecs[t.ID] = f
			if sum == nil {
				sum = make([]float64, dim)
			}
			for i := range f {
				sum[i] += f[i]
			}
			count++
		}
		if count > 0 {
			for i := range sum {
				sum[i] /= float64(count)
			}
			vecs[br.ID] = sum
		}
	}
	if len(vecs)*2 <= len(g.Nodes) {
		return nil, false
	}

	features := make([][]float64, len(g.Nodes))
	for i, node := range g.Nodes {
		if v, ok := vecs[node.ID]; ok {
			features[i] = v
		} else {
			features[i] = make([]float64, dim)
		}
	}
	return features, true
}

func degreeFeatures(g *Graph, adj [][]int) [][]float64 {
	deg := make([]float64, len(g.Nodes))
	for from, tos := range adj {
		deg[from] += float64(len(tos))
		for _, to := range tos {
			deg[to]++
		}
	}
	features := make([][]float64, len(deg))
	for i, d := range deg {
		features[i] = []float64{d}
	}
	return features
}

// kmeans runs Lloyd's algorithm seeded with the first k points. It is
// deterministic: ties go to the lower cluster index and an empty cluster
// keeps its previous centroid.
func kmeans(points [][]float64, k int) []int {
	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		centroids[c] = append([]float64(nil), points[c]...)
	}
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(p, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centroids {
			var members int
			sum := make([]float64, len(centroids[c]))
			for i, p := range points {
				if assign[i] != c {
					continue
				}
				members++
				for d := range sum {
					sum[d] += p[d]
				}
			}
			if members == 0 {
				continue
			}
			for d := range sum {
				sum[d] /= float64(members)
			}
			centroids[c] = sum
		}
	}
	return assign
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// clusterLabel is the most common key point, ties broken alphabetically.
func clusterLabel(c int, counts map[string]int) string {
	if len(counts) == 0 {
		return fmt.Sprintf("cluster-%d", c)
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}
