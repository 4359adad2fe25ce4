package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"oppradar/internal/metrics"
	"oppradar/internal/model"
)

// RecordStore is the slice of the persistence layer the indexer needs.
type RecordStore interface {
	// OpportunitiesToEmbed pages through embedding candidates: active rows
	// without a vector, or every active row when force is set.
	OpportunitiesToEmbed(ctx context.Context, force bool, limit, offset int) ([]model.Opportunity, error)
	SaveOpportunityEmbedding(ctx context.Context, id string, vec []float32) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	SaveProfileEmbedding(ctx context.Context, id string, vec []float32) error
}

// Stats summarizes one indexing sweep.
type Stats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Indexer keeps stored records embedded: it synthesizes documents, calls
// the engine in batches, and writes vectors back.
type Indexer struct {
	store  RecordStore
	engine Engine
	log    *zap.Logger
}

// NewIndexer builds an indexer.
func NewIndexer(store RecordStore, engine Engine, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{store: store, engine: engine, log: log}
}

// EmbedOpportunities embeds one batch of records. Records that already
// carry a vector are skipped unless force is set; records whose document
// synthesizes to nothing are skipped. A provider failure fails the whole
// batch; per-record store failures only count against that record.
func (ix *Indexer) EmbedOpportunities(ctx context.Context, opps []model.Opportunity, force bool) (Stats, error) {
	stats := Stats{Total: len(opps)}

	docs := make([]string, 0, len(opps))
	targets := make([]*model.Opportunity, 0, len(opps))
	for i := range opps {
		o := &opps[i]
		if !force && len(o.Embedding) == ix.engine.Dimensions() {
			stats.Skipped++
			continue
		}
		doc := OpportunityDocument(o)
		if doc == "" {
			stats.Skipped++
			continue
		}
		docs = append(docs, doc)
		targets = append(targets, o)
	}
	if len(targets) == 0 {
		return stats, nil
	}

	vecs, err := EmbedMany(ctx, ix.engine, docs)
	if err != nil {
		stats.Failed += len(targets)
		metrics.EmbeddingsGenerated.WithLabelValues(ix.engine.Name(), "failed").
			Add(float64(len(targets)))
		return stats, fmt.Errorf("embed batch of %d: %w", len(targets), err)
	}

	for i, o := range targets {
		if vecs[i] == nil {
			stats.Skipped++
			continue
		}
		if err := ix.store.SaveOpportunityEmbedding(ctx, o.ID, vecs[i]); err != nil {
			stats.Failed++
			ix.log.Warn("save embedding failed",
				zap.String("opportunity_id", o.ID), zap.Error(err))
			continue
		}
		stats.Success++
	}
	metrics.EmbeddingsGenerated.WithLabelValues(ix.engine.Name(), "success").
		Add(float64(stats.Success))

	ix.log.Info("embedded opportunities",
		zap.Int("total", stats.Total),
		zap.Int("success", stats.Success),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// EmbedMissing sweeps the store in batches until no candidates remain.
func (ix *Indexer) EmbedMissing(ctx context.Context, batchSize int, force bool) (Stats, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	var total Stats
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		opps, err := ix.store.OpportunitiesToEmbed(ctx, force, batchSize, offset)
		if err != nil {
			return total, fmt.Errorf("load embedding candidates: %w", err)
		}
		if len(opps) == 0 {
			return total, nil
		}

		stats, err := ix.EmbedOpportunities(ctx, opps, force)
		total.Total += stats.Total
		total.Success += stats.Success
		total.Failed += stats.Failed
		total.Skipped += stats.Skipped
		if err != nil {
			return total, err
		}

		// Without force, embedded rows drop out of the candidate set and
		// the offset stays put. Rows that neither embedded nor failed
		// would repeat forever, so advance past them.
		if force {
			offset += len(opps)
		} else {
			offset += stats.Skipped + stats.Failed
		}
	}
}

// EmbedProfile synthesizes and stores the vector for one profile. Existing
// vectors are kept unless force is set.
func (ix *Indexer) EmbedProfile(ctx context.Context, profileID string, force bool) error {
	p, err := ix.store.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if !force && len(p.Embedding) == ix.engine.Dimensions() {
		return nil
	}

	doc := ProfileDocument(p)
	if doc == "" {
		return &InvalidInputError{Reason: "profile " + profileID + " has no text to embed"}
	}
	vec, err := ix.engine.Embed(ctx, doc)
	if err != nil {
		return err
	}
	return ix.store.SaveProfileEmbedding(ctx, profileID, vec)
}
