package match_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oppradar/internal/embedding"
	"oppradar/internal/match"
	"oppradar/internal/model"
	"oppradar/internal/normalize"
	"oppradar/internal/source"
	"oppradar/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "radar.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedOpportunity(t *testing.T, s *store.Store, externalID, sourceName string, deadlineDays int) *model.Opportunity {
	t.Helper()
	deadline := time.Now().UTC().Add(time.Duration(deadlineDays)*24*time.Hour + time.Hour)
	opp, _ := normalize.Normalize(source.Raw{
		ExternalID:   externalID,
		Title:        "Opportunity " + externalID,
		Description:  "Build something useful",
		DeadlineText: deadline.Format("Jan 2, 2006"),
	}, sourceName)
	_, err := s.UpsertOpportunity(context.Background(), &opp)
	require.NoError(t, err)
	return &opp
}

func seedProfile(t *testing.T, s *store.Store) *model.Profile {
	t.Helper()
	p := &model.Profile{
		UserID:    "u1",
		TeamSize:  3,
		Intents:   []string{"funding"},
		TechStack: []string{"Go"},
	}
	require.NoError(t, s.SaveProfile(context.Background(), p))
	return p
}

func TestComputeMatchesPersistsAndOrders(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s)

	grant := seedOpportunity(t, s, "g1", "grants_gov", 10) // intent hit
	hack := seedOpportunity(t, s, "h1", "devpost", 10)     // no intent hit
	seedOpportunity(t, s, "h2", "devpost", -5)             // past deadline drags score

	svc := match.NewService(s, match.NewScorer(), zap.NewNop())
	got, err := svc.ComputeMatches(ctx, profile.ID, 10, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	// Best first, and the grant beats the hackathon on intent fit.
	assert.Equal(t, grant.ID, got[0].OpportunityID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
	for _, m := range got {
		assert.GreaterOrEqual(t, m.Score, 0.3)
		assert.Len(t, m.Breakdown, 5)
	}

	// Persisted rows are visible through the store.
	stored, err := s.GetMatch(ctx, profile.ID, hack.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.MatchPending, stored.Status)
}

func TestComputeMatchesRespectsMinScore(t *testing.T) {
	s := openStore(t)
	profile := seedProfile(t, s)
	seedOpportunity(t, s, "g1", "grants_gov", 10)

	svc := match.NewService(s, match.NewScorer(), zap.NewNop())
	got, err := svc.ComputeMatches(context.Background(), profile.ID, 10, 0.99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecomputeKeepsUserStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s)
	opp := seedOpportunity(t, s, "g1", "grants_gov", 10)

	svc := match.NewService(s, match.NewScorer(), zap.NewNop())
	_, err := svc.ComputeMatches(ctx, profile.ID, 10, 0.3)
	require.NoError(t, err)

	first, err := s.GetMatch(ctx, profile.ID, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NoError(t, s.SetMatchStatus(ctx, first.ID, model.MatchInterested))

	_, err = svc.ComputeMatches(ctx, profile.ID, 10, 0.3)
	require.NoError(t, err)

	second, err := s.GetMatch(ctx, profile.ID, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchInterested, second.Status)
	assert.Equal(t, first.ID, second.ID)
}

func TestComputeMatchesUsesEmbeddings(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	profile := seedProfile(t, s)

	near := seedOpportunity(t, s, "near", "grants_gov", 10)
	far := seedOpportunity(t, s, "far", "grants_gov", 10)

	vec := func(i int) []float32 {
		v := make([]float32, embedding.Dimensions)
		v[i] = 1
		return v
	}
	require.NoError(t, s.SaveProfileEmbedding(ctx, profile.ID, vec(0)))
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, near.ID, vec(0)))
	require.NoError(t, s.SaveOpportunityEmbedding(ctx, far.ID, vec(1)))

	svc := match.NewService(s, match.NewScorer(), zap.NewNop())
	got, err := svc.ComputeMatches(ctx, profile.ID, 10, 0.1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].OpportunityID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestTopMatchesClampsLimit(t *testing.T) {
	s := openStore(t)
	profile := seedProfile(t, s)
	seedOpportunity(t, s, "g1", "grants_gov", 10)

	svc := match.NewService(s, match.NewScorer(), zap.NewNop())
	_, err := svc.ComputeMatches(context.Background(), profile.ID, 10, 0.3)
	require.NoError(t, err)

	top, err := svc.TopMatches(context.Background(), profile.ID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, top)
}
