// Package rules evaluates eligibility predicates against a
// (profile, opportunity) pair. Rules arrive either as an explicit document
// stored on the record or are synthesized from the record's own
// constraints. All comparisons are case-insensitive.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"oppradar/internal/model"
	"oppradar/internal/source"
)

// Kind names one predicate variant.
type Kind string

const (
	KindRegionIn         Kind = "region_in"
	KindRegionNotIn      Kind = "region_not_in"
	KindTeamMin          Kind = "team_min"
	KindTeamMax          Kind = "team_max"
	KindProfileTypeIn    Kind = "profile_type_in"
	KindProfileTypeNotIn Kind = "profile_type_not_in"
	KindStageIn          Kind = "stage_in"
	KindStageNotIn       Kind = "stage_not_in"
	KindTechAny          Kind = "tech_any"
	KindTechAll          Kind = "tech_all"
	KindIndustryAny      Kind = "industry_any"
	KindStudentOnly      Kind = "student_only"
	KindNotStudentOnly   Kind = "not_student_only"
	KindRemoteOK         Kind = "remote_ok"
)

// Rule is one predicate: a kind plus its payload. Set-valued kinds use
// Values; the team bounds use N.
type Rule struct {
	Kind   Kind     `json:"kind"`
	Values []string `json:"values,omitempty"`
	N      int      `json:"n,omitempty"`
}

// Mode decides how rule outcomes combine.
const (
	ModeAll = "all"
	ModeAny = "any"
)

// Doc is an explicit rules document.
type Doc struct {
	Mode  string `json:"mode"`
	Rules []Rule `json:"rules"`
}

// ParseDoc decodes a stored rules document. Malformed input is an
// invalid-input error for the caller, never a crash.
func ParseDoc(data []byte) (*Doc, error) {
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, source.NewError(source.KindInvalidInput, "", "parse rules", err)
	}
	switch doc.Mode {
	case "", ModeAll:
		doc.Mode = ModeAll
	case ModeAny:
	default:
		return nil, source.NewError(source.KindInvalidInput, "", "parse rules",
			fmt.Errorf("unknown mode %q", doc.Mode))
	}
	return &doc, nil
}

// =============================================================================
// EVALUATION CONTEXTS
// =============================================================================

// ProfileContext is the profile slice the predicates read.
type ProfileContext struct {
	Region      string
	TeamSize    int
	ProfileType string
	Stage       string
	TechStack   []string
	Industries  []string
	IsStudent   bool
	IsRemoteOK  bool
}

// ProfileContextFrom projects a stored profile.
func ProfileContextFrom(p *model.Profile) ProfileContext {
	teamSize := p.TeamSize
	if teamSize <= 0 {
		teamSize = 1
	}
	return ProfileContext{
		Region:      p.Region,
		TeamSize:    teamSize,
		ProfileType: p.ProfileType,
		Stage:       p.Stage,
		TechStack:   p.TechStack,
		Industries:  p.Industries,
		IsStudent:   p.IsStudent,
		IsRemoteOK:  p.IsRemoteOK,
	}
}

// OpportunityContext is the record slice rules are synthesized from and
// evaluated against.
type OpportunityContext struct {
	Regions     []string
	TeamMin     *int
	TeamMax     *int
	StudentOnly bool
	RemoteOK    bool
}

// OpportunityContextFrom projects a stored record: regions come from the
// location, remote friendliness from the format.
func OpportunityContextFrom(o *model.Opportunity) OpportunityContext {
	ctx := OpportunityContext{
		TeamMin:     o.TeamSizeMin,
		TeamMax:     o.TeamSizeMax,
		StudentOnly: o.IsStudentOnly,
		RemoteOK:    o.Format == model.FormatOnline || o.Format == model.FormatHybrid,
	}
	if o.Location != nil {
		if o.Location.Country != "" {
			ctx.Regions = append(ctx.Regions, o.Location.Country)
		} else if o.Location.Region != "" {
			ctx.Regions = append(ctx.Regions, o.Location.Region)
		}
	}
	return ctx
}

// Synthesize derives the implicit rules document from a record's own
// constraints. Remote-friendly records impose no region rule.
func Synthesize(o OpportunityContext) *Doc {
	doc := &Doc{Mode: ModeAll}
	if len(o.Regions) > 0 && !containsFold(o.Regions, "global") {
		doc.Rules = append(doc.Rules, Rule{Kind: KindRegionIn, Values: o.Regions})
	}
	if o.TeamMin != nil {
		doc.Rules = append(doc.Rules, Rule{Kind: KindTeamMin, N: *o.TeamMin})
	}
	if o.TeamMax != nil {
		doc.Rules = append(doc.Rules, Rule{Kind: KindTeamMax, N: *o.TeamMax})
	}
	if o.StudentOnly {
		doc.Rules = append(doc.Rules, Rule{Kind: KindStudentOnly})
	}
	return doc
}

// =============================================================================
// RESULTS
// =============================================================================

// Check is the outcome of one rule.
type Check struct {
	Kind       string `json:"kind"`
	Passed     bool   `json:"passed"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}

// EvalResult is the outcome of a full evaluation.
type EvalResult struct {
	Eligible bool    `json:"eligible"`
	Score    float64 `json:"score"`
	Checks   []Check `json:"checks"`
}

// Reasons collects the reason line of every check.
func (r EvalResult) Reasons() []string {
	out := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		out = append(out, c.Reason)
	}
	return out
}

// Suggestions collects the suggestions of failed checks.
func (r EvalResult) Suggestions() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed && c.Suggestion != "" {
			out = append(out, c.Suggestion)
		}
	}
	return out
}

// Evaluate runs a rules document against the pair. A nil doc synthesizes
// rules from the opportunity context. With no rules at all the pair is
// eligible with score 1.
func Evaluate(p ProfileContext, o OpportunityContext, doc *Doc) EvalResult {
	if doc == nil {
		doc = Synthesize(o)
	}
	mode := doc.Mode
	if mode != ModeAny {
		mode = ModeAll
	}

	result := EvalResult{Checks: make([]Check, 0, len(doc.Rules))}
	passed := 0
	for _, rule := range doc.Rules {
		check := evalRule(rule, p, o)
		if check.Passed {
			passed++
		}
		result.Checks = append(result.Checks, check)
	}

	total := len(result.Checks)
	if total == 0 {
		return EvalResult{Eligible: true, Score: 1.0, Checks: result.Checks}
	}
	result.Score = float64(passed) / float64(total)
	if mode == ModeAny {
		result.Eligible = passed > 0
	} else {
		result.Eligible = passed == total
	}
	return result
}

func evalRule(rule Rule, p ProfileContext, o OpportunityContext) Check {
	check := Check{Kind: string(rule.Kind)}
	switch rule.Kind {
	case KindRegionIn:
		check.Passed = containsFold(rule.Values, "global") || containsFold(rule.Values, p.Region)
		if check.Passed {
			check.Reason = "Region requirement met"
		} else {
			check.Reason = fmt.Sprintf("Open to %s; your region is %s",
				strings.Join(rule.Values, ", "), orUnset(p.Region))
			check.Suggestion = "Look for remote-friendly or global events, or ones in your region"
		}
	case KindRegionNotIn:
		check.Passed = !containsFold(rule.Values, p.Region)
		if check.Passed {
			check.Reason = "Region not excluded"
		} else {
			check.Reason = fmt.Sprintf("Not available in %s", p.Region)
			check.Suggestion = "This opportunity excludes your region"
		}
	case KindTeamMin:
		check.Passed = p.TeamSize >= rule.N
		if check.Passed {
			check.Reason = fmt.Sprintf("Team of %d meets the minimum of %d", p.TeamSize, rule.N)
		} else {
			check.Reason = fmt.Sprintf("Needs a team of at least %d; you have %d", rule.N, p.TeamSize)
			check.Suggestion = fmt.Sprintf("Find %d more teammate(s)", rule.N-p.TeamSize)
		}
	case KindTeamMax:
		check.Passed = p.TeamSize <= rule.N
		if check.Passed {
			check.Reason = fmt.Sprintf("Team of %d is within the cap of %d", p.TeamSize, rule.N)
		} else {
			check.Reason = fmt.Sprintf("Team cap is %d; you have %d", rule.N, p.TeamSize)
			check.Suggestion = fmt.Sprintf("Split into a team of at most %d", rule.N)
		}
	case KindProfileTypeIn:
		check.Passed = len(rule.Values) == 0 || containsFold(rule.Values, p.ProfileType)
		if check.Passed {
			check.Reason = "Profile type accepted"
		} else {
			check.Reason = fmt.Sprintf("Open to %s profiles; yours is %s",
				strings.Join(rule.Values, ", "), orUnset(p.ProfileType))
		}
	case KindProfileTypeNotIn:
		check.Passed = !containsFold(rule.Values, p.ProfileType)
		if check.Passed {
			check.Reason = "Profile type not excluded"
		} else {
			check.Reason = fmt.Sprintf("Not open to %s profiles", p.ProfileType)
		}
	case KindStageIn:
		check.Passed = len(rule.Values) == 0 || containsFold(rule.Values, p.Stage)
		if check.Passed {
			check.Reason = "Stage requirement met"
		} else {
			check.Reason = fmt.Sprintf("Open to stages %s; yours is %s",
				strings.Join(rule.Values, ", "), orUnset(p.Stage))
		}
	case KindStageNotIn:
		check.Passed = !containsFold(rule.Values, p.Stage)
		if check.Passed {
			check.Reason = "Stage not excluded"
		} else {
			check.Reason = fmt.Sprintf("Not open to %s stage", p.Stage)
		}
	case KindTechAny:
		check.Passed = intersectsFold(p.TechStack, rule.Values)
		if check.Passed {
			check.Reason = "Tech stack overlaps the required technologies"
		} else {
			check.Reason = "Requires one of: " + strings.Join(rule.Values, ", ")
			check.Suggestion = "Pick up one of the required technologies or team up with someone who has"
		}
	case KindTechAll:
		check.Passed = containsAllFold(p.TechStack, rule.Values)
		if check.Passed {
			check.Reason = "Tech stack covers all required technologies"
		} else {
			check.Reason = "Requires all of: " + strings.Join(rule.Values, ", ")
			check.Suggestion = "Cover the missing technologies before applying"
		}
	case KindIndustryAny:
		check.Passed = intersectsFold(p.Industries, rule.Values)
		if check.Passed {
			check.Reason = "Industry focus matches"
		} else {
			check.Reason = "Focused on industries: " + strings.Join(rule.Values, ", ")
		}
	case KindStudentOnly:
		check.Passed = p.IsStudent || strings.EqualFold(p.ProfileType, "student")
		if check.Passed {
			check.Reason = "Student requirement met"
		} else {
			check.Reason = "Restricted to students"
			check.Suggestion = "Look for open-entry events instead"
		}
	case KindNotStudentOnly:
		check.Passed = true
		check.Reason = "Open entry"
	case KindRemoteOK:
		check.Passed = o.RemoteOK || p.IsRemoteOK
		if check.Passed {
			check.Reason = "Remote participation works"
		} else {
			check.Reason = "Requires in-person attendance"
			check.Suggestion = "Check the travel requirements before applying"
		}
	default:
		// Forward compatibility: unknown kinds pass with a diagnostic.
		check.Passed = true
		check.Reason = fmt.Sprintf("Unknown rule %q ignored", string(rule.Kind))
	}
	return check
}

func orUnset(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(needle)) {
			return true
		}
	}
	return false
}

func intersectsFold(a, b []string) bool {
	for _, v := range a {
		if containsFold(b, v) {
			return true
		}
	}
	return false
}

// containsAllFold reports whether every element of required appears in
// have; vacuously true for an empty requirement.
func containsAllFold(have, required []string) bool {
	for _, r := range required {
		if !containsFold(have, r) {
			return false
		}
	}
	return true
}
