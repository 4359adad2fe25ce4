package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oppradar/internal/model"
	"oppradar/internal/source"
)

func intp(v int) *int { return &v }

func TestRegionMismatchFailsEligibility(t *testing.T) {
	profile := ProfileContext{Region: "Germany", TeamSize: 1, TechStack: []string{"Python"}}
	opp := OpportunityContext{Regions: []string{"US"}, RemoteOK: false}

	result := Evaluate(profile, opp, nil)
	assert.False(t, result.Eligible)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, string(KindRegionIn), result.Checks[0].Kind)
	assert.False(t, result.Checks[0].Passed)
	assert.NotEmpty(t, result.Checks[0].Suggestion)
}

func TestGlobalRegionAlwaysPasses(t *testing.T) {
	profile := ProfileContext{Region: "Kenya"}
	doc := &Doc{Mode: ModeAll, Rules: []Rule{{Kind: KindRegionIn, Values: []string{"Global"}}}}
	result := Evaluate(profile, OpportunityContext{}, doc)
	assert.True(t, result.Eligible)
	assert.Equal(t, 1.0, result.Score)
}

func TestTeamBounds(t *testing.T) {
	profile := ProfileContext{TeamSize: 2}
	opp := OpportunityContext{TeamMin: intp(3), TeamMax: intp(5)}

	result := Evaluate(profile, opp, nil)
	assert.False(t, result.Eligible)
	assert.InDelta(t, 0.5, result.Score, 1e-9) // team_max passes, team_min fails

	profile.TeamSize = 4
	result = Evaluate(profile, opp, nil)
	assert.True(t, result.Eligible)
}

func TestStudentOnly(t *testing.T) {
	opp := OpportunityContext{StudentOnly: true}

	result := Evaluate(ProfileContext{IsStudent: true}, opp, nil)
	assert.True(t, result.Eligible)

	result = Evaluate(ProfileContext{ProfileType: "Student"}, opp, nil)
	assert.True(t, result.Eligible)

	result = Evaluate(ProfileContext{}, opp, nil)
	assert.False(t, result.Eligible)
}

func TestModeAnyNeedsOnePass(t *testing.T) {
	doc := &Doc{Mode: ModeAny, Rules: []Rule{
		{Kind: KindTechAny, Values: []string{"Rust"}},
		{Kind: KindIndustryAny, Values: []string{"Health"}},
	}}
	profile := ProfileContext{TechStack: []string{"Go"}, Industries: []string{"health"}}

	result := Evaluate(profile, OpportunityContext{}, doc)
	assert.True(t, result.Eligible)
	assert.InDelta(t, 0.5, result.Score, 1e-9)
}

func TestCaseInsensitiveSetComparisons(t *testing.T) {
	profile := ProfileContext{TechStack: []string{"python", "GO"}}
	doc := &Doc{Rules: []Rule{
		{Kind: KindTechAll, Values: []string{"Python", "go"}},
	}}
	result := Evaluate(profile, OpportunityContext{}, doc)
	assert.True(t, result.Eligible)
}

func TestUnknownRuleKindPassesWithDiagnostic(t *testing.T) {
	doc := &Doc{Rules: []Rule{{Kind: "quantum_only"}}}
	result := Evaluate(ProfileContext{}, OpportunityContext{}, doc)
	assert.True(t, result.Eligible)
	require.Len(t, result.Checks, 1)
	assert.Contains(t, result.Checks[0].Reason, "quantum_only")
}

func TestNoRulesIsEligibleWithFullScore(t *testing.T) {
	result := Evaluate(ProfileContext{}, OpportunityContext{}, nil)
	assert.True(t, result.Eligible)
	assert.Equal(t, 1.0, result.Score)
}

func TestMonotonicity(t *testing.T) {
	profile := ProfileContext{Region: "US", TeamSize: 2}
	base := &Doc{Mode: ModeAll, Rules: []Rule{
		{Kind: KindRegionIn, Values: []string{"US"}},
	}}
	baseline := Evaluate(profile, OpportunityContext{}, base)

	// Adding a passing rule never lowers the score.
	withPass := &Doc{Mode: ModeAll, Rules: append(append([]Rule{}, base.Rules...),
		Rule{Kind: KindTeamMin, N: 1})}
	improved := Evaluate(profile, OpportunityContext{}, withPass)
	assert.GreaterOrEqual(t, improved.Score, baseline.Score)
	assert.True(t, improved.Eligible)

	// Adding a failing rule in all mode makes the pair ineligible.
	withFail := &Doc{Mode: ModeAll, Rules: append(append([]Rule{}, base.Rules...),
		Rule{Kind: KindTeamMin, N: 10})}
	broken := Evaluate(profile, OpportunityContext{}, withFail)
	assert.False(t, broken.Eligible)
}

func TestParseDoc(t *testing.T) {
	doc, err := ParseDoc([]byte(`{"mode":"any","rules":[{"kind":"region_in","values":["EU"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, ModeAny, doc.Mode)
	require.Len(t, doc.Rules, 1)
	assert.Equal(t, KindRegionIn, doc.Rules[0].Kind)

	_, err = ParseDoc([]byte(`{"mode":"sometimes"}`))
	assert.Equal(t, source.KindInvalidInput, source.KindOf(err))

	_, err = ParseDoc([]byte(`{not json`))
	assert.Equal(t, source.KindInvalidInput, source.KindOf(err))
}

func TestOpportunityContextFromRecord(t *testing.T) {
	opp := &model.Opportunity{
		Format:        model.FormatHybrid,
		Location:      &model.Location{Country: "Germany"},
		TeamSizeMin:   intp(2),
		IsStudentOnly: true,
	}
	ctx := OpportunityContextFrom(opp)
	assert.Equal(t, []string{"Germany"}, ctx.Regions)
	assert.True(t, ctx.RemoteOK)
	assert.True(t, ctx.StudentOnly)

	doc := Synthesize(ctx)
	kinds := make([]Kind, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []Kind{KindRegionIn, KindTeamMin, KindStudentOnly}, kinds)
}
