package engine

import (
	"math"
	"sort"

	"github.com/memvra/branchmind/internal/graph"
)

// edge is a candidate cross-reference by thought index.
type edge struct {
	to    int
	score float64
	kind  graph.CrossRefKind
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func similarityMatrix(vecs [][]float32) [][]float64 {
	n := len(vecs)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := cosine(vecs[i], vecs[j])
			sim[i][j], sim[j][i] = s, s
		}
	}
	return sim
}

func sortTrim(list []edge, max int) []edge {
	sort.SliceStable(list, func(a, b int) bool { return list[a].score > list[b].score })
	if len(list) > max {
		list = list[:max]
	}
	return list
}

func has(list []edge, to int) bool {
	for _, e := range list {
		if e.to == to {
			return true
		}
	}
	return false
}

func (c Config) directKind(s float64) graph.CrossRefKind {
	if s > c.VerySimilarThreshold {
		return graph.KindDirectVerySimilar
	}
	return graph.KindDirectRelated
}

// crossReference returns, per thought index, its final cross-reference list:
// top direct neighbours with reciprocal repair, extended by 2- and 3-hop
// weakest-link paths, capped at cfg.MaxCrossRefs.
func crossReference(vecs [][]float32, cfg Config) [][]edge {
	n := len(vecs)
	sim := similarityMatrix(vecs)

	direct := make([][]edge, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || sim[i][j] <= cfg.DirectThreshold {
				continue
			}
			direct[i] = append(direct[i], edge{to: j, score: sim[i][j], kind: cfg.directKind(sim[i][j])})
		}
		direct[i] = sortTrim(direct[i], cfg.MaxDirect)
	}

	// Reciprocal repair walks the lists as they stood after the direct pass.
	snapshot := make([][]edge, n)
	for i := range direct {
		snapshot[i] = append([]edge(nil), direct[i]...)
	}
	for i := 0; i < n; i++ {
		for _, e := range snapshot[i] {
			j := e.to
			if has(direct[j], i) || sim[j][i] <= cfg.DirectThreshold {
				continue
			}
			direct[j] = sortTrim(append(direct[j], edge{to: i, score: sim[j][i], kind: cfg.directKind(sim[j][i])}), cfg.MaxDirect)
		}
	}

	out := make([][]edge, n)
	for a := 0; a < n; a++ {
		multi := multiHop(a, direct, cfg.MultiHopThreshold)
		combined := append(append([]edge(nil), direct[a]...), multi...)
		out[a] = sortTrim(combined, cfg.MaxCrossRefs)
	}
	return out
}

// multiHop collects 2-hop then 3-hop candidates for a. A candidate already
// directly referenced by a, or already reached by a shorter walk, is skipped.
func multiHop(a int, direct [][]edge, threshold float64) []edge {
	var multi []edge
	seen := make(map[int]bool)
	blocked := func(t int) bool { return t == a || has(direct[a], t) || seen[t] }

	for _, ab := range direct[a] {
		for _, bc := range direct[ab.to] {
			if blocked(bc.to) {
				continue
			}
			if s := math.Min(ab.score, bc.score); s > threshold {
				multi = append(multi, edge{to: bc.to, score: s, kind: graph.KindMultiHop})
				seen[bc.to] = true
			}
		}
	}
	for _, ab := range direct[a] {
		for _, bc := range direct[ab.to] {
			if bc.to == a {
				continue
			}
			for _, cd := range direct[bc.to] {
				if cd.to == ab.to || blocked(cd.to) {
					continue
				}
				if s := math.Min(ab.score, math.Min(bc.score, cd.score)); s > threshold {
					multi = append(multi, edge{to: cd.to, score: s, kind: graph.KindMultiHop})
					seen[cd.to] = true
				}
			}
		}
	}
	return multi
}
