package engine

import (
	"math"
	"time"

	"github.com/memvra/branchmind/internal/graph"
)

const diversitySaturation = 5.0

// ThoughtScore weighs a thought by its cross-references, connectivity,
// age, branch diversity, confidence and key points. targets are the
// thoughts refs point at, index-aligned with refs.
func ThoughtScore(t *graph.Thought, refs []graph.ThoughtRef, targets []*graph.Thought, now time.Time) float64 {
	var direct, multi float64
	for _, r := range refs {
		if r.Kind.Direct() {
			direct += r.Score
		} else {
			multi += r.Score
		}
	}
	degree := float64(len(refs) + len(t.LinkedThoughts))

	branches := make(map[string]bool)
	for _, target := range targets {
		if target != nil {
			branches[target.BranchID] = true
		}
	}
	diversity := math.Min(float64(len(branches))/diversitySaturation, 1)

	return 0.5*direct +
		0.25*multi +
		0.2*degree +
		0.1*recencyBonus(now.Sub(t.Timestamp)) +
		0.1*diversity +
		0.2*t.Metadata.Confidence +
		0.1*float64(len(t.Metadata.KeyPoints))
}

func recencyBonus(age time.Duration) float64 {
	switch {
	case age < 24*time.Hour:
		return 1
	case age < 7*24*time.Hour:
		return 0.5
	}
	return 0
}

// BranchScore is the mean score of the branch's thoughts, 0 when empty.
func BranchScore(branchID string, thoughts []*graph.Thought, scores map[string]float64) float64 {
	var sum float64
	var n int
	for _, t := range thoughts {
		if t.BranchID == branchID {
			sum += scores[t.ID]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
