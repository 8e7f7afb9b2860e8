package export

import (
	"encoding/json"

	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/visualize"
)

// JSONExporter renders ExportData as structured JSON.
type JSONExporter struct{}

type jsonOutput struct {
	ActiveBranch string           `json:"activeBranch,omitempty"`
	Branches     []jsonBranch     `json:"branches"`
	Graph        *visualize.Graph `json:"graph,omitempty"`
	Tasks        []memory.Task    `json:"tasks,omitempty"`
}

type jsonBranch struct {
	ID         string        `json:"id"`
	Parent     string        `json:"parent,omitempty"`
	State      string        `json:"state"`
	Priority   float64       `json:"priority"`
	Confidence float64       `json:"confidence"`
	Score      float64       `json:"score"`
	Thoughts   []jsonThought `json:"thoughts"`
}

type jsonThought struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Type      string   `json:"type"`
	Score     float64  `json:"score"`
	KeyPoints []string `json:"keyPoints,omitempty"`
	CrossRefs int      `json:"crossRefs"`
}

func (e *JSONExporter) Export(data ExportData) (string, error) {
	out := jsonOutput{
		ActiveBranch: data.ActiveBranch,
		Branches:     make([]jsonBranch, 0, len(data.Branches)),
		Graph:        data.Graph,
		Tasks:        data.Tasks,
	}
	for _, b := range data.Branches {
		jb := jsonBranch{
			ID:         b.ID,
			Parent:     b.ParentBranchID,
			State:      string(b.State),
			Priority:   b.Priority,
			Confidence: b.Confidence,
			Score:      b.Score,
			Thoughts:   make([]jsonThought, 0, len(b.Thoughts)),
		}
		for _, t := range b.Thoughts {
			jb.Thoughts = append(jb.Thoughts, jsonThought{
				ID:        t.ID,
				Content:   t.Content,
				Type:      t.Metadata.Type,
				Score:     t.Score,
				KeyPoints: t.Metadata.KeyPoints,
				CrossRefs: len(t.CrossRefs),
			})
		}
		out.Branches = append(out.Branches, jb)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
