// Package normalize turns raw adapter records into canonical opportunities.
// Everything here is a pure function of its inputs: no clock, no store, no
// network. Field-level parse failures null the field and never discard the
// record.
package normalize

import (
	"encoding/json"
	"strings"

	"oppradar/internal/model"
	"oppradar/internal/source"
)

// typeBySource fixes the source -> opportunity type mapping. Sources not
// listed here produce TypeOther.
var typeBySource = map[string]model.OpportunityType{
	"devpost":           model.TypeHackathon,
	"mlh":               model.TypeHackathon,
	"ethglobal":         model.TypeHackathon,
	"hackerearth":       model.TypeHackathon,
	"kaggle":            model.TypeCompetition,
	"grants_gov":        model.TypeGrant,
	"sbir":              model.TypeGrant,
	"eu_horizon":        model.TypeGrant,
	"innovate_uk":       model.TypeGrant,
	"opensource_grants": model.TypeGrant,
	"hackerone":         model.TypeBounty,
	"accelerators":      model.TypeAccelerator,
}

// shortDescriptionLimit is the rune budget for the derived summary field.
const shortDescriptionLimit = 200

// TypeForSource resolves the opportunity type for a source name.
func TypeForSource(sourceName string) model.OpportunityType {
	if t, ok := typeBySource[strings.ToLower(sourceName)]; ok {
		return t
	}
	return model.TypeOther
}

// Normalize maps one raw record to the canonical shape. The returned
// warnings name fields that failed to parse; callers log them and move on.
// ID and timestamps are left zero for the persistence gateway to assign.
func Normalize(raw source.Raw, sourceName string) (model.Opportunity, []string) {
	var warnings []string

	opp := model.Opportunity{
		Source:      sourceName,
		ExternalID:  strings.TrimSpace(raw.ExternalID),
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Type:        TypeForSource(sourceName),
		IsActive:    true,
	}

	if raw.IsOnline {
		opp.Format = model.FormatOnline
	} else {
		opp.Format = model.FormatInPerson
	}

	if raw.City != "" || raw.Region != "" || raw.Country != "" {
		opp.Location = &model.Location{
			City:    strings.TrimSpace(raw.City),
			Region:  strings.TrimSpace(raw.Region),
			Country: strings.TrimSpace(raw.Country),
		}
	}

	opp.Links = model.Links{
		Website:      raw.WebsiteURL,
		Registration: raw.RegistrationURL,
		SourcePage:   raw.SourcePageURL,
		Logo:         raw.LogoURL,
		Banner:       raw.BannerURL,
	}

	opp.Themes = DedupeStrings(raw.Themes)
	opp.Technologies = DedupeStrings(raw.Technologies)

	opp.Prizes, opp.TotalPrizeValue, opp.Currency = normalizePrizes(raw, &warnings)

	opp.TeamSizeMin, opp.TeamSizeMax = normalizeTeamBounds(raw.TeamSizeMin, raw.TeamSizeMax)

	normalizeDates(raw, &opp, &warnings)

	opp.IsStudentOnly = raw.StudentOnly

	if opp.ShortDescription == "" && opp.Description != "" {
		opp.ShortDescription = Truncate(opp.Description, shortDescriptionLimit)
	}

	if doc := eligibilityFor(raw); doc != nil {
		opp.Eligibility = doc
	}

	if len(raw.Payload) > 0 {
		opp.RawData = raw.Payload
	} else if data, err := json.Marshal(raw); err == nil {
		opp.RawData = data
	}

	return opp, warnings
}

func normalizePrizes(raw source.Raw, warnings *[]string) ([]model.Prize, *float64, string) {
	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = "USD"
	}

	var prizes []model.Prize
	var total float64
	var anyAmount bool

	for _, rp := range raw.Prizes {
		p := model.Prize{Name: strings.TrimSpace(rp.Name)}
		amount, cur, ok := ParseAmount(rp.AmountText)
		if ok {
			p.Amount = &amount
			if cur == "" {
				cur = strings.ToUpper(strings.TrimSpace(rp.Currency))
			}
			if cur == "" {
				cur = currency
			}
			p.Currency = cur
			// Cross-currency sums are meaningless; only same-currency
			// amounts aggregate.
			if cur == currency {
				total += amount
				anyAmount = true
			}
		} else if rp.AmountText != "" {
			*warnings = append(*warnings, "prize amount unparsed: "+rp.AmountText)
		}
		prizes = append(prizes, p)
	}

	if !anyAmount && raw.TotalPrizeText != "" {
		if amount, cur, ok := ParseAmount(raw.TotalPrizeText); ok {
			total = amount
			anyAmount = true
			if cur != "" {
				currency = cur
			}
		} else {
			*warnings = append(*warnings, "total prize unparsed: "+raw.TotalPrizeText)
		}
	}

	if !anyAmount {
		return prizes, nil, currency
	}
	if total < 0 {
		total = 0
	}
	return prizes, &total, currency
}

func normalizeTeamBounds(min, max *int) (*int, *int) {
	if min != nil && *min <= 0 {
		min = nil
	}
	if max != nil && *max <= 0 {
		max = nil
	}
	// Sources occasionally print bounds reversed; order beats dropping.
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}
	return min, max
}

func normalizeDates(raw source.Raw, opp *model.Opportunity, warnings *[]string) {
	if raw.DeadlineText != "" {
		if dl, _, ok := ParseDateRange(raw.DeadlineText); ok && dl != nil {
			opp.ApplicationDeadline = dl
		} else {
			*warnings = append(*warnings, "deadline unparsed: "+raw.DeadlineText)
		}
	}

	if raw.StartDateText != "" {
		if d, ok := ParseDate(raw.StartDateText); ok {
			opp.EventStartDate = &d
		} else {
			*warnings = append(*warnings, "start date unparsed: "+raw.StartDateText)
		}
	}
	if raw.EndDateText != "" {
		if d, ok := ParseDate(raw.EndDateText); ok {
			opp.EventEndDate = &d
		} else {
			*warnings = append(*warnings, "end date unparsed: "+raw.EndDateText)
		}
	}

	if opp.EventStartDate == nil && opp.EventEndDate == nil && raw.DateRangeText != "" {
		start, end, ok := ParseDateRange(raw.DateRangeText)
		if !ok {
			*warnings = append(*warnings, "date range unparsed: "+raw.DateRangeText)
			return
		}
		opp.EventStartDate = start
		opp.EventEndDate = end
	}
}

// eligibilityFor emits an explicit rules document when the source stated
// constraints that the canonical record cannot carry (regional eligibility).
// Team and student constraints stay on the record itself and are picked up
// by rule synthesis at evaluation time.
func eligibilityFor(raw source.Raw) json.RawMessage {
	regions := DedupeStrings(raw.Regions)
	if len(regions) == 0 {
		return nil
	}
	doc := struct {
		Mode  string `json:"mode"`
		Rules []struct {
			Kind   string   `json:"kind"`
			Values []string `json:"values"`
		} `json:"rules"`
	}{Mode: "all"}
	doc.Rules = append(doc.Rules, struct {
		Kind   string   `json:"kind"`
		Values []string `json:"values"`
	}{Kind: "region_in", Values: regions})
	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	return data
}

// DedupeStrings trims entries and removes case-insensitive duplicates while
// keeping first-seen order. Order matters downstream for display.
func DedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Truncate cuts a string to at most limit runes without splitting a rune.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
