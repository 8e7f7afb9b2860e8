package memory

import (
	"database/sql"
	"fmt"

	"github.com/memvra/branchmind/internal/db"
)

// VectorStore provides snippet similarity search via sqlite-vec.
type VectorStore struct {
	conn    *sql.DB
	enabled bool
	dim     int
}

// NewVectorStore creates a VectorStore backed by the given DB.
func NewVectorStore(database *db.DB) *VectorStore {
	return &VectorStore{conn: database.Conn(), enabled: database.VectorsEnabled(), dim: database.Dimension()}
}

// Enabled reports whether the vec0 table is available.
func (v *VectorStore) Enabled() bool { return v.enabled }

// UpsertSnippetEmbedding inserts or replaces a snippet embedding.
func (v *VectorStore) UpsertSnippetEmbedding(id string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	if !v.enabled {
		return fmt.Errorf("vector: sqlite-vec unavailable")
	}
	if len(embedding) != v.dim {
		return fmt.Errorf("vector: embedding has %d dimensions, index expects %d", len(embedding), v.dim)
	}
	// vec0 has no upsert; replace by delete + insert.
	if _, err := v.conn.Exec(`DELETE FROM vec_snippets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vector: delete snippet embedding: %w", err)
	}
	if _, err := v.conn.Exec(
		`INSERT INTO vec_snippets (id, embedding) VALUES (?, ?)`, id, db.EncodeVector(embedding),
	); err != nil {
		return fmt.Errorf("vector: upsert snippet embedding: %w", err)
	}
	return nil
}

// VectorMatch represents a single similarity search result.
type VectorMatch struct {
	ID       string
	Distance float64
}

// Similarity converts the L2 distance reported by sqlite-vec into a score
// in (0, 1].
func (m VectorMatch) Similarity() float64 {
	return 1.0 / (1.0 + m.Distance)
}

// SearchSnippets finds the top-k snippet embeddings nearest to query.
func (v *VectorStore) SearchSnippets(query []float32, topK int, minSimilarity float64) ([]VectorMatch, error) {
	if len(query) == 0 || !v.enabled || len(query) != v.dim {
		return nil, nil
	}
	rows, err := v.conn.Query(
		`SELECT id, distance FROM vec_snippets WHERE embedding MATCH ? AND k = ?
		 ORDER BY distance`,
		db.EncodeVector(query), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector: search snippets: %w", err)
	}
	defer rows.Close()

	var out []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			return nil, err
		}
		if m.Similarity() >= minSimilarity {
			out = append(out, m)
		}
	}
	return out, rows.Err()
}
