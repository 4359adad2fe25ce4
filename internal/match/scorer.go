// Package match scores opportunities against profiles and maintains the
// match rows. The scorer combines five weighted factors into one number in
// [0,1] with a per-factor breakdown so every score is explainable.
package match

import (
	"math"
	"strings"
	"time"

	"oppradar/internal/embedding"
	"oppradar/internal/model"
	"oppradar/internal/rules"
)

// Factor weights. They sum to exactly 1.0.
const (
	WeightSemantic    = 0.35
	WeightEligibility = 0.25
	WeightTime        = 0.15
	WeightTeam        = 0.10
	WeightIntent      = 0.15
)

// Factor names as stored in the breakdown.
const (
	FactorSemantic    = "semantic"
	FactorEligibility = "eligibility"
	FactorTime        = "time"
	FactorTeam        = "team"
	FactorIntent      = "intent"
)

// neutralSemantic is used when either vector is missing: no evidence either
// way.
const neutralSemantic = 0.5

// intentCategories maps an intent tag to the opportunity types that serve
// it.
var intentCategories = map[string][]string{
	"funding":    {"grant", "accelerator", "competition"},
	"exposure":   {"hackathon", "competition", "accelerator"},
	"learning":   {"hackathon", "competition"},
	"networking": {"hackathon", "accelerator", "conference"},
	"prizes":     {"hackathon", "competition", "bounty"},
	"equity":     {"accelerator"},
	"mentorship": {"accelerator"},
}

// Scored is one evaluation of a (profile, opportunity) pair.
type Scored struct {
	Score        float64
	Breakdown    map[string]model.FactorScore
	Eligible     bool
	Reasons      []string
	Suggestions  []string
	MatchReasons []string
}

// Scorer evaluates pairs. The clock is injectable for deadline tests.
type Scorer struct {
	now func() time.Time
}

// NewScorer builds a scorer on the wall clock.
func NewScorer() *Scorer {
	return &Scorer{now: func() time.Time { return time.Now().UTC() }}
}

// Score evaluates one pair. Stored eligibility rules take precedence over
// synthesized ones; an unreadable stored document falls back to synthesis
// with a note rather than failing the pair.
func (sc *Scorer) Score(p *model.Profile, o *model.Opportunity) Scored {
	var doc *rules.Doc
	var reasons []string
	if len(o.Eligibility) > 0 {
		parsed, err := rules.ParseDoc(o.Eligibility)
		if err != nil {
			reasons = append(reasons, "Stored eligibility rules unreadable, using record constraints")
		} else {
			doc = parsed
		}
	}
	eval := rules.Evaluate(rules.ProfileContextFrom(p), rules.OpportunityContextFrom(o), doc)

	semantic := semanticScore(p.Embedding, o.Embedding)
	timeFit := timeFitScore(o, sc.now())
	teamFit := teamFitScore(p.TeamSize, o.TeamSizeMin, o.TeamSizeMax)
	intentFit := intentFitScore(p.Intents, string(o.Type))

	breakdown := map[string]model.FactorScore{
		FactorSemantic:    {Score: semantic, Weight: WeightSemantic},
		FactorEligibility: {Score: eval.Score, Weight: WeightEligibility},
		FactorTime:        {Score: timeFit, Weight: WeightTime},
		FactorTeam:        {Score: teamFit, Weight: WeightTeam},
		FactorIntent:      {Score: intentFit, Weight: WeightIntent},
	}

	total := semantic*WeightSemantic +
		eval.Score*WeightEligibility +
		timeFit*WeightTime +
		teamFit*WeightTeam +
		intentFit*WeightIntent

	return Scored{
		Score:        math.Round(total*1000) / 1000,
		Breakdown:    breakdown,
		Eligible:     eval.Eligible,
		Reasons:      append(reasons, eval.Reasons()...),
		Suggestions:  eval.Suggestions(),
		MatchReasons: matchReasons(semantic, eval, timeFit, intentFit),
	}
}

// semanticScore rescales cosine similarity from [-1,1] to [0,1]. Missing or
// zero-norm vectors score neutral.
func semanticScore(a, b []float32) float64 {
	sim, ok := embedding.CosineSimilarity(a, b)
	if !ok {
		return neutralSemantic
	}
	return (sim + 1) / 2
}

// timeFitScore favours deadlines one to two weeks out: enough time to
// prepare, close enough to act on.
func timeFitScore(o *model.Opportunity, now time.Time) float64 {
	d, ok := o.DaysUntilDeadline(now)
	if !ok {
		return 0.7
	}
	switch {
	case d < 0:
		return 0.0
	case d <= 3:
		return 0.3
	case d <= 7:
		return 0.7
	case d <= 14:
		return 1.0
	case d <= 30:
		return 0.9
	case d <= 60:
		return 0.7
	case d <= 90:
		return 0.5
	default:
		return 0.3
	}
}

// teamFitScore is 1 inside the allowed range and decays by 0.3 per person
// of distance outside it. Absent bounds are unbounded on that side.
func teamFitScore(teamSize int, min, max *int) float64 {
	if teamSize <= 0 {
		teamSize = 1
	}
	distance := 0
	if min != nil && teamSize < *min {
		distance = *min - teamSize
	}
	if max != nil && teamSize > *max {
		distance = teamSize - *max
	}
	if distance == 0 {
		return 1.0
	}
	return math.Max(0, 1-0.3*float64(distance))
}

// intentFitScore rewards categories that serve the profile's intents: a
// full point per exact table hit, half a point per substring overlap,
// normalized by intent count. Either side empty is neutral.
func intentFitScore(intents []string, category string) float64 {
	category = strings.ToLower(strings.TrimSpace(category))
	if len(intents) == 0 || category == "" {
		return 0.5
	}

	var exact, substring int
	for _, intent := range intents {
		key := strings.ToLower(strings.TrimSpace(intent))
		if key == "" {
			continue
		}
		if accepted, ok := intentCategories[key]; ok && containsString(accepted, category) {
			exact++
			continue
		}
		if strings.Contains(category, key) || strings.Contains(key, category) {
			substring++
		}
	}
	score := (float64(exact) + 0.5*float64(substring)) / float64(len(intents))
	return math.Min(1, score)
}

func matchReasons(semantic float64, eval rules.EvalResult, timeFit, intentFit float64) []string {
	var out []string
	if semantic > 0.7 {
		out = append(out, "Strong skill/interest alignment")
	}
	if eval.Eligible && len(eval.Checks) > 0 && eval.Score == 1.0 {
		out = append(out, "You meet all eligibility requirements")
	}
	if timeFit >= 0.9 {
		out = append(out, "Deadline leaves comfortable time to apply")
	}
	if intentFit >= 1.0 {
		out = append(out, "Directly serves your stated goals")
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
