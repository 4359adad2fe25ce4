package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oppradar/internal/embedding"
	"oppradar/internal/model"
	"oppradar/internal/normalize"
	"oppradar/internal/source"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "radar.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOpportunity(externalID string) *model.Opportunity {
	opp, _ := normalize.Normalize(source.Raw{
		ExternalID:   externalID,
		Title:        "X",
		Description:  "A test opportunity",
		DeadlineText: "Dec 17, 2030",
		Themes:       []string{"AI", "Climate"},
	}, "devpost")
	return &opp
}

func TestUpsertInsertThenUpdatePreservesIdentity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	opp := sampleOpportunity("abc")
	res, err := s.UpsertOpportunity(ctx, opp)
	require.NoError(t, err)
	assert.Equal(t, UpsertInserted, res.Kind)
	firstID, firstCreated, firstUpdated := opp.ID, opp.CreatedAt, opp.UpdatedAt

	// Identical payload again: exactly one row, nothing mutated.
	again := sampleOpportunity("abc")
	res, err = s.UpsertOpportunity(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, UpsertSkipped, res.Kind)
	assert.Equal(t, firstID, res.ID)

	// Changed payload: updated, created_at untouched, updated_at advances.
	s.now = func() time.Time { return firstUpdated.Add(time.Minute) }
	changed := sampleOpportunity("abc")
	changed.Title = "X (extended deadline)"
	res, err = s.UpsertOpportunity(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, UpsertUpdated, res.Kind)
	assert.Equal(t, firstID, changed.ID)
	assert.Equal(t, firstCreated, changed.CreatedAt)
	assert.True(t, !changed.UpdatedAt.Before(firstUpdated))

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM opportunities WHERE source = 'devpost' AND external_id = 'abc'").
		Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertPreservesEmbeddingAcrossUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	opp := sampleOpportunity("keep-vec")
	_, err := s.UpsertOpportunity(ctx, opp)
	require.NoError(t, err)

	vec := make([]float32, embedding.Dimensions)
	vec[0] = 0.25
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, opp.ID, vec))

	changed := sampleOpportunity("keep-vec")
	changed.Description = "rewritten"
	_, err = s.UpsertOpportunity(ctx, changed)
	require.NoError(t, err)

	got, err := s.GetOpportunity(ctx, opp.ID)
	require.NoError(t, err)
	require.Len(t, got.Embedding, embedding.Dimensions)
	assert.Equal(t, float32(0.25), got.Embedding[0])
	assert.Equal(t, "rewritten", got.Description)
}

func TestUpsertRejectsMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.UpsertOpportunity(context.Background(), &model.Opportunity{Title: "nameless"})
	assert.Equal(t, source.KindInvalidInput, source.KindOf(err))
}

func TestListOpportunitiesFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, spec := range []struct {
		id, src, title string
		themes         []string
	}{
		{"h1", "devpost", "Solar Hack", []string{"Climate"}},
		{"h2", "devpost", "Game Jam", []string{"Gaming"}},
		{"g1", "grants_gov", "Climate Research Grant", []string{"Climate"}},
	} {
		opp, _ := normalize.Normalize(source.Raw{
			ExternalID: spec.id, Title: spec.title, Themes: spec.themes,
		}, spec.src)
		_, err := s.UpsertOpportunity(ctx, &opp)
		require.NoError(t, err)
	}

	items, total, err := s.ListOpportunities(ctx, ListFilter{Type: "hackathon"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = s.ListOpportunities(ctx, ListFilter{Category: "climate"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, total, err = s.ListOpportunities(ctx, ListFilter{Search: "grant"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "Climate Research Grant", items[0].Title)

	// Pagination clamps.
	items, total, err = s.ListOpportunities(ctx, ListFilter{Limit: 1, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)
}

func TestExpireDeadlines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	past := sampleOpportunity("past")
	deadline := time.Now().UTC().Add(-48 * time.Hour)
	past.ApplicationDeadline = &deadline
	_, err := s.UpsertOpportunity(ctx, past)
	require.NoError(t, err)

	future := sampleOpportunity("future")
	_, err = s.UpsertOpportunity(ctx, future)
	require.NoError(t, err)

	expired, err := s.ExpireDeadlines(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	got, err := s.GetOpportunity(ctx, past.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestEmbeddingStatsAndCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleOpportunity("a")
	b := sampleOpportunity("b")
	for _, opp := range []*model.Opportunity{a, b} {
		_, err := s.UpsertOpportunity(ctx, opp)
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, a.ID, make([]float32, embedding.Dimensions)))

	stats, err := s.GetEmbeddingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, EmbeddingStats{Total: 2, WithEmbeddings: 1, WithoutEmbeddings: 1}, stats)

	missing, err := s.OpportunitiesToEmbed(ctx, false, 10, 0)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, b.ID, missing[0].ID)

	all, err := s.OpportunitiesToEmbed(ctx, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSimilarOpportunitiesScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := func(dir float32) []float32 {
		v := make([]float32, embedding.Dimensions)
		v[0] = 1
		v[1] = dir
		return v
	}

	anchor := sampleOpportunity("anchor")
	near := sampleOpportunity("near")
	far := sampleOpportunity("far")
	for _, opp := range []*model.Opportunity{anchor, near, far} {
		_, err := s.UpsertOpportunity(ctx, opp)
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, anchor.ID, vec(0)))
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, near.ID, vec(0.1)))
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, far.ID, vec(-50)))

	similar, err := s.SimilarOpportunities(ctx, anchor.ID, 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, near.ID, similar[0].Opportunity.ID)
	assert.Greater(t, similar[0].Similarity, similar[1].Similarity)
}

func TestMatchUpsertPreservesStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &model.Match{
		ProfileID:     "p1",
		OpportunityID: "o1",
		Score:         0.8,
		Breakdown:     map[string]model.FactorScore{"semantic": {Score: 0.9, Weight: 0.35}},
		Eligible:      true,
	}
	require.NoError(t, s.UpsertMatch(ctx, m))
	require.NoError(t, s.SetMatchStatus(ctx, m.ID, model.MatchApplied))

	rescored := &model.Match{ProfileID: "p1", OpportunityID: "o1", Score: 0.4}
	require.NoError(t, s.UpsertMatch(ctx, rescored))

	got, err := s.GetMatch(ctx, "p1", "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.4, got.Score)
	assert.Equal(t, model.MatchApplied, got.Status)
	assert.Equal(t, m.ID, got.ID)
}

func TestTopMatchesExcludesDismissed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	high := &model.Match{ProfileID: "p1", OpportunityID: "o-high", Score: 0.9}
	low := &model.Match{ProfileID: "p1", OpportunityID: "o-low", Score: 0.5}
	gone := &model.Match{ProfileID: "p1", OpportunityID: "o-gone", Score: 0.95}
	for _, m := range []*model.Match{high, low, gone} {
		require.NoError(t, s.UpsertMatch(ctx, m))
	}
	require.NoError(t, s.SetMatchStatus(ctx, gone.ID, model.MatchDismissed))

	top, err := s.TopMatches(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "o-high", top[0].OpportunityID)
}

func TestScraperRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run, err := s.CreateScraperRun(ctx, "devpost")
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, run.Status)

	run.Status = model.RunPartial
	run.OpportunitiesFound = 7
	run.OpportunitiesCreated = 5
	run.OpportunitiesUpdated = 2
	for i := 0; i < 30; i++ {
		run.AppendError("boom")
	}
	require.NoError(t, s.FinalizeScraperRun(ctx, run))

	runs, err := s.ListScraperRuns(ctx, "devpost", "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunPartial, runs[0].Status)
	assert.Equal(t, 7, runs[0].OpportunitiesFound)
	assert.NotNil(t, runs[0].CompletedAt)
	assert.Len(t, runs[0].Errors, model.MaxRunErrors)

	byStatus, err := s.ListScraperRuns(ctx, "", model.RunSuccess, 10)
	require.NoError(t, err)
	assert.Empty(t, byStatus)
}

func TestProfileRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &model.Profile{
		UserID:    "u1",
		Bio:       "builds things",
		TechStack: []string{"Go", "Python"},
		Intents:   []string{"funding"},
		Region:    "Germany",
		IsStudent: true,
	}
	require.NoError(t, s.SaveProfile(ctx, p))
	require.NotEmpty(t, p.ID)
	assert.Equal(t, 1, p.TeamSize) // default applied

	vec := make([]float32, embedding.Dimensions)
	vec[3] = 1
	require.NoError(t, s.SaveProfileEmbedding(ctx, p.ID, vec))

	got, err := s.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.TechStack, got.TechStack)
	assert.Equal(t, "Germany", got.Region)
	assert.True(t, got.IsStudent)
	assert.Equal(t, float32(1), got.Embedding[3])
}
