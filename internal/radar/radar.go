// Package radar is the core-facing facade: the surface an HTTP layer or the
// CLI talks to. It validates caller input, applies the documented defaults,
// and delegates to the store, the match service, the embedding indexer, and
// the scrape orchestrator.
package radar

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"oppradar/internal/embedding"
	"oppradar/internal/metrics"
	"oppradar/internal/model"
	"oppradar/internal/source"
	"oppradar/internal/store"
)

// Caller-facing limits and defaults.
const (
	MaxListLimit     = 100
	DefaultListLimit = 20

	DefaultMatchLimit   = 50
	DefaultMinScore     = 0.3
	DefaultEmbedBatch   = 50
	DefaultRunHistLimit = 20
)

// Matcher is the match-engine surface the facade needs. *match.Service
// satisfies it.
type Matcher interface {
	ComputeMatches(ctx context.Context, profileID string, limit int, minScore float64) ([]*model.Match, error)
	TopMatches(ctx context.Context, profileID string, limit int) ([]model.Match, error)
}

// Indexer is the embedding surface the facade needs. *embedding.Indexer
// satisfies it.
type Indexer interface {
	EmbedMissing(ctx context.Context, batchSize int, force bool) (embedding.Stats, error)
	EmbedProfile(ctx context.Context, profileID string, force bool) error
}

// Scraper triggers ingestion runs. *scrape.Orchestrator satisfies it.
type Scraper interface {
	RunAll(ctx context.Context) ([]*model.ScraperRun, error)
	RunSource(ctx context.Context, name string) (*model.ScraperRun, error)
}

// Radar bundles the core services behind one API.
type Radar struct {
	store   *store.Store
	matcher Matcher
	indexer Indexer
	scraper Scraper
	log     *zap.Logger
}

// New wires the facade. indexer and scraper may be nil when the deployment
// runs without embeddings or ingestion (the corresponding operations then
// return an invalid-input error).
func New(st *store.Store, matcher Matcher, indexer Indexer, scraper Scraper, log *zap.Logger) *Radar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Radar{store: st, matcher: matcher, indexer: indexer, scraper: scraper, log: log}
}

// ListFilter narrows ListOpportunities. A zero Limit takes the default.
type ListFilter struct {
	Type     string
	Category string
	Search   string
	Skip     int
	Limit    int
}

func invalid(op string, format string, args ...any) error {
	return source.NewError(source.KindInvalidInput, "", op, fmt.Errorf(format, args...))
}

// ListOpportunities returns a page of active opportunities plus the total
// count for the filter.
func (r *Radar) ListOpportunities(ctx context.Context, f ListFilter) ([]model.Opportunity, int, error) {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit < 1 || f.Limit > MaxListLimit {
		return nil, 0, invalid("list opportunities", "limit %d out of range [1,%d]", f.Limit, MaxListLimit)
	}
	if f.Skip < 0 {
		return nil, 0, invalid("list opportunities", "skip %d must be >= 0", f.Skip)
	}
	return r.store.ListOpportunities(ctx, store.ListFilter{
		Type:     f.Type,
		Category: f.Category,
		Search:   f.Search,
		Skip:     f.Skip,
		Limit:    f.Limit,
	})
}

// GetOpportunity returns one record by ID, or nil when absent.
func (r *Radar) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	if id == "" {
		return nil, invalid("get opportunity", "missing id")
	}
	return r.store.GetOpportunity(ctx, id)
}

// ComputeMatches scores the profile against every active opportunity and
// persists the results. Zero limit and minScore take the defaults.
func (r *Radar) ComputeMatches(ctx context.Context, profileID string, limit int, minScore float64) ([]*model.Match, error) {
	if profileID == "" {
		return nil, invalid("compute matches", "missing profile id")
	}
	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	matches, err := r.matcher.ComputeMatches(ctx, profileID, limit, minScore)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		metrics.MatchScores.Observe(m.Score)
	}
	return matches, nil
}

// TopMatches returns the stored ranking for a profile.
func (r *Radar) TopMatches(ctx context.Context, profileID string, limit int) ([]model.Match, error) {
	if profileID == "" {
		return nil, invalid("top matches", "missing profile id")
	}
	return r.matcher.TopMatches(ctx, profileID, limit)
}

// SetMatchStatus records a user decision on a match.
func (r *Radar) SetMatchStatus(ctx context.Context, matchID string, status model.MatchStatus) error {
	if matchID == "" {
		return invalid("set match status", "missing match id")
	}
	switch status {
	case model.MatchPending, model.MatchInterested, model.MatchApplied, model.MatchDismissed:
	default:
		return invalid("set match status", "unknown status %q", status)
	}
	return r.store.SetMatchStatus(ctx, matchID, status)
}

// TriggerScrape runs one source, or every enabled source when name is
// empty. Runs that fail are still returned with their terminal state.
func (r *Radar) TriggerScrape(ctx context.Context, name string) ([]*model.ScraperRun, error) {
	if r.scraper == nil {
		return nil, invalid("trigger scrape", "ingestion not configured")
	}
	if name == "" {
		return r.scraper.RunAll(ctx)
	}
	run, err := r.scraper.RunSource(ctx, name)
	if err != nil {
		return nil, err
	}
	return []*model.ScraperRun{run}, nil
}

// ListScraperRuns returns recent run history, optionally narrowed by source
// name and status.
func (r *Radar) ListScraperRuns(ctx context.Context, name string, status model.RunStatus, limit int) ([]model.ScraperRun, error) {
	if limit <= 0 {
		limit = DefaultRunHistLimit
	}
	return r.store.ListScraperRuns(ctx, name, status, limit)
}

// EmbeddingStats reports vector coverage over the active records.
func (r *Radar) EmbeddingStats(ctx context.Context) (store.EmbeddingStats, error) {
	return r.store.GetEmbeddingStats(ctx)
}

// EmbedMissing backfills vectors for records without one. Zero batchSize
// takes the default.
func (r *Radar) EmbedMissing(ctx context.Context, batchSize int, force bool) (embedding.Stats, error) {
	if r.indexer == nil {
		return embedding.Stats{}, invalid("embed missing", "embedding not configured")
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatch
	}
	return r.indexer.EmbedMissing(ctx, batchSize, force)
}

// EmbedProfile refreshes a profile's vector.
func (r *Radar) EmbedProfile(ctx context.Context, profileID string, force bool) error {
	if r.indexer == nil {
		return invalid("embed profile", "embedding not configured")
	}
	if profileID == "" {
		return invalid("embed profile", "missing profile id")
	}
	return r.indexer.EmbedProfile(ctx, profileID, force)
}

// SimilarOpportunities returns the nearest records by embedding distance.
func (r *Radar) SimilarOpportunities(ctx context.Context, id string, limit int) ([]store.SimilarOpportunity, error) {
	if id == "" {
		return nil, invalid("similar opportunities", "missing id")
	}
	return r.store.SimilarOpportunities(ctx, id, limit)
}
