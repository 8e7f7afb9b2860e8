package session

import (
	"path"

	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/graph"
	"github.com/memvra/branchmind/internal/scanner"
)

// NoteThoughtType is the metadata type of thoughts created from notes.
const NoteThoughtType = "note"

// IngestStats counts what one ingestion changed.
type IngestStats struct {
	Notes    int `json:"notes"`
	Skipped  int `json:"skipped"`
	Thoughts int `json:"thoughts"`
}

// Ingest turns scanned notes into branches, one per file, with one thought
// per paragraph. Thoughts are append-only, so re-ingesting a changed file
// only adds paragraphs whose text is not already in its branch; unchanged
// files are skipped by hash. A note whose branch was merged away feeds the
// merge target instead.
func (s *Session) Ingest(notes []scanner.Note) (IngestStats, error) {
	var stats IngestStats
	for _, note := range notes {
		if s.ingested[note.BranchID] == note.Hash {
			stats.Skipped++
			continue
		}

		parent := ""
		if dir := path.Dir(note.BranchID); dir != "." {
			parent = dir
		}
		b, err := s.store.CreateBranch(s.noteBranch(note.BranchID), parent)
		if err != nil {
			return stats, err
		}

		seen := make(map[string]bool, len(b.Thoughts))
		for _, t := range b.Thoughts {
			seen[t.Content] = true
		}
		var inputs []graph.ThoughtInput
		for _, p := range note.Paragraphs {
			if seen[p.Text] {
				continue
			}
			seen[p.Text] = true
			in := graph.ThoughtInput{Content: p.Text, BranchID: b.ID, Type: NoteThoughtType}
			if p.Heading != "" {
				in.KeyPoints = []string{p.Heading}
			}
			inputs = append(inputs, in)
		}
		if len(inputs) > 0 {
			if _, err := s.store.AddThoughts(inputs); err != nil {
				return stats, err
			}
		}

		s.ingested[note.BranchID] = note.Hash
		stats.Notes++
		stats.Thoughts += len(inputs)
		s.log.Debug("note ingested",
			zap.String("path", note.Path),
			zap.String("branch", b.ID),
			zap.Int("thoughts", len(inputs)))
	}
	return stats, nil
}
