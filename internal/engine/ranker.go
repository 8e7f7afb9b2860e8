package engine

import (
	"sort"

	"github.com/memvra/branchmind/internal/graph"
)

// Ranker orders thoughts for retrieval results.
type Ranker struct{}

// NewRanker creates a new Ranker.
func NewRanker() *Ranker { return &Ranker{} }

// RankedThought pairs a Thought with a retrieval score.
type RankedThought struct {
	Thought    *graph.Thought
	FinalScore float64
}

// RankBySimilarity sorts thoughts by similarityByID, highest first.
// Thoughts absent from the map score 0.
func (r *Ranker) RankBySimilarity(thoughts []*graph.Thought, similarityByID map[string]float64) []RankedThought {
	ranked := make([]RankedThought, 0, len(thoughts))
	for _, t := range thoughts {
		ranked = append(ranked, RankedThought{Thought: t, FinalScore: similarityByID[t.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// RankHubs sorts thoughts by score plus degree, highest first. Degree counts
// computed cross-references and explicit links.
func (r *Ranker) RankHubs(thoughts []*graph.Thought) []RankedThought {
	ranked := make([]RankedThought, 0, len(thoughts))
	for _, t := range thoughts {
		degree := len(t.CrossRefs) + len(t.LinkedThoughts)
		ranked = append(ranked, RankedThought{Thought: t, FinalScore: t.Score + float64(degree)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}
