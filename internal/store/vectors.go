package store

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"oppradar/internal/embedding"
	"oppradar/internal/model"
)

// EmbeddingStats summarizes embedding coverage over active records.
type EmbeddingStats struct {
	Total             int `json:"total"`
	WithEmbeddings    int `json:"with_embeddings"`
	WithoutEmbeddings int `json:"without_embeddings"`
}

// GetEmbeddingStats counts active records with and without vectors.
func (s *Store) GetEmbeddingStats(ctx context.Context) (EmbeddingStats, error) {
	var stats EmbeddingStats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(embedding)
		FROM opportunities WHERE is_active = 1`).
		Scan(&stats.Total, &stats.WithEmbeddings)
	if err != nil {
		return stats, err
	}
	stats.WithoutEmbeddings = stats.Total - stats.WithEmbeddings
	return stats, nil
}

// OpportunitiesToEmbed pages through embedding candidates for the indexer:
// active rows missing a vector, or all active rows when force is set.
func (s *Store) OpportunitiesToEmbed(ctx context.Context, force bool, limit, offset int) ([]model.Opportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	where := "is_active = 1 AND embedding IS NULL"
	if force {
		where = "is_active = 1"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities WHERE `+where+`
		ORDER BY created_at ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// SaveOpportunityEmbedding writes a record's vector, touching updated_at
// and the ANN side index when present.
func (s *Store) SaveOpportunityEmbedding(ctx context.Context, id string, vec []float32) error {
	if len(vec) != embedding.Dimensions {
		return fmt.Errorf("embedding for %s has %d dimensions, want %d", id, len(vec), embedding.Dimensions)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE opportunities SET embedding = ?, updated_at = ? WHERE id = ?`,
		encodeVector(vec), fmtTime(s.now()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("opportunity %s not found", id)
	}

	if s.VecEnabled() {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM opportunities_vec WHERE opportunity_id = ?`, id); err != nil {
			s.log.Warn("vec index delete failed", zap.String("id", id), zap.Error(err))
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO opportunities_vec (opportunity_id, embedding) VALUES (?, ?)`,
			id, encodeVector(vec)); err != nil {
			s.log.Warn("vec index insert failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// SimilarOpportunity is one neighbour from a similarity query.
type SimilarOpportunity struct {
	Opportunity model.Opportunity `json:"opportunity"`
	Similarity  float64           `json:"similarity"`
}

// SimilarOpportunities ranks active records by cosine similarity against
// the given record's stored vector. Uses the ANN index when compiled in,
// otherwise an in-process scan. The record itself is excluded.
func (s *Store) SimilarOpportunities(ctx context.Context, id string, limit int) ([]SimilarOpportunity, error) {
	if limit <= 0 {
		limit = 10
	}
	anchor, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, fmt.Errorf("opportunity %s not found", id)
	}
	if len(anchor.Embedding) == 0 {
		return nil, fmt.Errorf("opportunity %s has no embedding", id)
	}

	if s.VecEnabled() {
		if out, err := s.similarViaVec(ctx, anchor, limit); err == nil {
			return out, nil
		} else {
			s.log.Warn("vec knn failed, falling back to scan", zap.Error(err))
		}
	}
	return s.similarViaScan(ctx, anchor, limit)
}

func (s *Store) similarViaVec(ctx context.Context, anchor *model.Opportunity, limit int) ([]SimilarOpportunity, error) {
	// Over-fetch by one: the anchor is its own nearest neighbour.
	rows, err := s.db.QueryContext(ctx,
		`SELECT opportunity_id, distance FROM opportunities_vec
		WHERE embedding MATCH ? AND k = ?`,
		encodeVector(anchor.Embedding), limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SimilarOpportunity
	for rows.Next() {
		var neighbourID string
		var distance float64
		if err := rows.Scan(&neighbourID, &distance); err != nil {
			return nil, err
		}
		if neighbourID == anchor.ID {
			continue
		}
		opp, err := s.GetOpportunity(ctx, neighbourID)
		if err != nil {
			return nil, err
		}
		if opp == nil || !opp.IsActive {
			continue
		}
		sim, ok := embedding.CosineSimilarity(anchor.Embedding, opp.Embedding)
		if !ok {
			continue
		}
		out = append(out, SimilarOpportunity{Opportunity: *opp, Similarity: sim})
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) similarViaScan(ctx context.Context, anchor *model.Opportunity, limit int) ([]SimilarOpportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+oppColumns+` FROM opportunities
		WHERE is_active = 1 AND embedding IS NOT NULL AND id != ?`, anchor.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates, err := scanOpportunities(rows)
	if err != nil {
		return nil, err
	}

	out := make([]SimilarOpportunity, 0, len(candidates))
	for i := range candidates {
		sim, ok := embedding.CosineSimilarity(anchor.Embedding, candidates[i].Embedding)
		if !ok {
			continue
		}
		out = append(out, SimilarOpportunity{Opportunity: candidates[i], Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
