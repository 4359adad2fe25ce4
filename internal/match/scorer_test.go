package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oppradar/internal/embedding"
	"oppradar/internal/model"
)

func intp(v int) *int { return &v }

func fixedScorer(now time.Time) *Scorer {
	return &Scorer{now: func() time.Time { return now }}
}

func unitVec(i int) []float32 {
	v := make([]float32, embedding.Dimensions)
	v[i] = 1
	return v
}

func TestWeightsSumToOne(t *testing.T) {
	sum := WeightSemantic + WeightEligibility + WeightTime + WeightTeam + WeightIntent
	assert.Equal(t, 1.0, sum)
}

func TestTimeFitTable(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		days int
		want float64
	}{
		{-1, 0.0},
		{0, 0.3},
		{3, 0.3},
		{4, 0.7},
		{7, 0.7},
		{8, 1.0},
		{14, 1.0},
		{15, 0.9},
		{30, 0.9},
		{31, 0.7},
		{60, 0.7},
		{61, 0.5},
		{90, 0.5},
		{91, 0.3},
	}
	for _, tc := range cases {
		// An hour past the day boundary keeps floor division on tc.days.
		deadline := now.Add(time.Duration(tc.days)*24*time.Hour + time.Hour)
		if tc.days < 0 {
			deadline = now.Add(-time.Hour)
		}
		opp := &model.Opportunity{ApplicationDeadline: &deadline}
		assert.Equal(t, tc.want, timeFitScore(opp, now), "days=%d", tc.days)
	}

	assert.Equal(t, 0.7, timeFitScore(&model.Opportunity{}, now), "no deadline")
}

func TestTeamFit(t *testing.T) {
	assert.Equal(t, 1.0, teamFitScore(3, intp(1), intp(5)))
	assert.Equal(t, 1.0, teamFitScore(3, nil, nil))
	assert.InDelta(t, 0.7, teamFitScore(6, intp(1), intp(5)), 1e-9)
	assert.InDelta(t, 0.4, teamFitScore(1, intp(3), intp(5)), 1e-9)
	// Far outside the range the factor bottoms out at zero.
	assert.Equal(t, 0.0, teamFitScore(10, intp(1), intp(5)))
	// Zero team size counts as a solo founder.
	assert.Equal(t, 1.0, teamFitScore(0, intp(1), nil))
}

func TestIntentFit(t *testing.T) {
	assert.Equal(t, 1.0, intentFitScore([]string{"funding", "networking"}, "accelerator"))
	assert.Equal(t, 0.0, intentFitScore([]string{"learning"}, "grant"))
	assert.Equal(t, 0.5, intentFitScore(nil, "hackathon"))
	assert.Equal(t, 0.5, intentFitScore([]string{"funding"}, ""))
	// Unknown intent earns half credit on a substring overlap.
	assert.InDelta(t, 0.5, intentFitScore([]string{"hackathons"}, "hackathon"), 1e-9)
}

func TestSemanticRescaleAndNeutral(t *testing.T) {
	a := unitVec(0)
	assert.Equal(t, 1.0, semanticScore(a, a))
	assert.Equal(t, 0.5, semanticScore(a, unitVec(1)))
	assert.Equal(t, 0.0, semanticScore(a, negate(a)))
	assert.Equal(t, neutralSemantic, semanticScore(nil, a))
	assert.Equal(t, neutralSemantic, semanticScore(a, nil))
}

func negate(v []float32) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = -v[i]
	}
	return out
}

func TestScoreCombinesFactors(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.Add(10*24*time.Hour + time.Hour) // 10 days out -> 1.0

	profile := &model.Profile{
		TeamSize:  3,
		Intents:   []string{"funding"},
		Embedding: unitVec(0),
	}
	opp := &model.Opportunity{
		Type:                model.TypeGrant,
		ApplicationDeadline: &deadline,
		TeamSizeMin:         intp(1),
		TeamSizeMax:         intp(5),
		Embedding:           unitVec(0),
	}

	scored := fixedScorer(now).Score(profile, opp)

	// semantic 1.0, eligibility 1.0 (no constraints), time 1.0, team 1.0,
	// intent 1.0 -> perfect score.
	assert.Equal(t, 1.0, scored.Score)
	assert.True(t, scored.Eligible)
	require.Len(t, scored.Breakdown, 5)
	assert.Equal(t, 1.0, scored.Breakdown[FactorSemantic].Score)
	assert.Equal(t, WeightSemantic, scored.Breakdown[FactorSemantic].Weight)
	assert.Contains(t, scored.MatchReasons, "Strong skill/interest alignment")
	assert.Contains(t, scored.MatchReasons, "Deadline leaves comfortable time to apply")
}

func TestScoreRoundsToThreeDecimals(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	profile := &model.Profile{TeamSize: 1, Intents: []string{"learning"}}
	opp := &model.Opportunity{Type: model.TypeGrant} // intent 0.0, no deadline 0.7

	scored := fixedScorer(now).Score(profile, opp)

	// 0.5*0.35 + 1.0*0.25 + 0.7*0.15 + 1.0*0.10 + 0.0*0.15 = 0.63
	assert.Equal(t, 0.63, scored.Score)
}

func TestScoreStaysInRange(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-30 * 24 * time.Hour)

	profile := &model.Profile{
		TeamSize:  12,
		Intents:   []string{"learning", "equity"},
		Region:    "Germany",
		Embedding: unitVec(0),
	}
	opp := &model.Opportunity{
		Type:                model.TypeGrant,
		ApplicationDeadline: &past,
		TeamSizeMin:         intp(1),
		TeamSizeMax:         intp(2),
		Location:            &model.Location{Country: "US"},
		Embedding:           negate(unitVec(0)),
	}

	scored := fixedScorer(now).Score(profile, opp)
	assert.GreaterOrEqual(t, scored.Score, 0.0)
	assert.LessOrEqual(t, scored.Score, 1.0)
	assert.False(t, scored.Eligible)
	assert.NotEmpty(t, scored.Reasons)
}

func TestScoreUsesStoredEligibilityRules(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	profile := &model.Profile{Region: "Germany", TeamSize: 1}
	opp := &model.Opportunity{
		Type:        model.TypeGrant,
		Eligibility: []byte(`{"mode":"all","rules":[{"kind":"region_in","values":["US"]}]}`),
	}

	scored := fixedScorer(now).Score(profile, opp)
	assert.False(t, scored.Eligible)
	assert.Equal(t, 0.0, scored.Breakdown[FactorEligibility].Score)
	assert.NotEmpty(t, scored.Suggestions)
}

func TestScoreFallsBackOnUnreadableRules(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	profile := &model.Profile{Region: "Germany", TeamSize: 1}
	opp := &model.Opportunity{
		Type:        model.TypeGrant,
		Eligibility: []byte(`{not json`),
	}

	scored := fixedScorer(now).Score(profile, opp)
	assert.True(t, scored.Eligible)
	assert.Contains(t, scored.Reasons[0], "unreadable")
}
