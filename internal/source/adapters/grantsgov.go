package adapters

import (
	"context"
	"fmt"

	"oppradar/internal/source"
)

const (
	grantsGovPageSize          = 25
	grantsGovFallbackThreshold = 5
)

// GrantsGov queries the grants.gov search2 API. Plain JSON over POST, no
// browser needed.
type GrantsGov struct {
	client *source.Client
	base   string
}

func NewGrantsGov(client *source.Client, baseURL string) *GrantsGov {
	if baseURL == "" {
		baseURL = "https://api.grants.gov"
	}
	return &GrantsGov{client: client, base: baseURL}
}

func (g *GrantsGov) SourceName() string { return "grants_gov" }
func (g *GrantsGov) BaseURL() string    { return g.base }

type grantsGovRequest struct {
	Keyword        string `json:"keyword"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
	OppStatuses    string `json:"oppStatuses"`
}

type grantsGovResponse struct {
	Data struct {
		HitCount int `json:"hitCount"`
		OppHits  []struct {
			ID         string `json:"id"`
			Number     string `json:"number"`
			Title      string `json:"title"`
			AgencyName string `json:"agencyName"`
			OpenDate   string `json:"openDate"`
			CloseDate  string `json:"closeDate"`
		} `json:"oppHits"`
	} `json:"data"`
}

func (g *GrantsGov) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	req := grantsGovRequest{
		Rows:           grantsGovPageSize,
		StartRecordNum: (page - 1) * grantsGovPageSize,
		OppStatuses:    "posted",
	}
	var resp grantsGovResponse
	if err := g.client.PostJSON(ctx, g.base+"/v1/api/search2", req, &resp); err != nil {
		if page == 1 {
			result := &source.ScrapeResult{
				Opportunities: append([]source.Raw(nil), grantsGovCurated...),
				Status:        source.StatusPartial,
				Errors:        []string{err.Error()},
			}
			result.MarkFallback()
			return result, nil
		}
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, hit := range resp.Data.OppHits {
		id := hit.Number
		if id == "" {
			id = hit.ID
		}
		if id == "" || hit.Title == "" {
			result.Errors = append(result.Errors, "hit missing id or title")
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, source.Raw{
			ExternalID:    id,
			Title:         hit.Title,
			Description:   fmt.Sprintf("Federal funding opportunity from %s.", hit.AgencyName),
			WebsiteURL:    "https://www.grants.gov/search-results-detail/" + hit.ID,
			SourcePageURL: "https://www.grants.gov/search-grants",
			DeadlineText:  hit.CloseDate,
			StartDateText: hit.OpenDate,
			IsOnline:      true,
			Regions:       []string{"US"},
		})
	}

	if page == 1 {
		merged, usedFallback := source.MergeFallback(result.Opportunities, grantsGovCurated, grantsGovFallbackThreshold)
		result.Opportunities = merged
		if usedFallback {
			result.MarkFallback()
		}
	}
	return result, nil
}

func (g *GrantsGov) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// grantsGovCurated lists recurring federal programs with predictable
// cycles. checked 2026-08.
var grantsGovCurated = []source.Raw{
	{
		ExternalID:    "nsf-sbir-phase-1",
		Title:         "NSF SBIR Phase I",
		Description:   "America's Seed Fund: up to $305,000 for deep tech startups.",
		WebsiteURL:    "https://seedfund.nsf.gov/apply/",
		SourcePageURL: "https://www.grants.gov/search-grants",
		IsOnline:      true,
		TotalPrizeText: "$305,000",
		Regions:       []string{"US"},
	},
	{
		ExternalID:    "nih-r41-sttr",
		Title:         "NIH Small Business Technology Transfer (STTR) R41",
		Description:   "Early-stage biomedical research funding for small businesses partnering with research institutions.",
		WebsiteURL:    "https://grants.nih.gov/grants/funding/sbirsttr_programs.htm",
		SourcePageURL: "https://www.grants.gov/search-grants",
		IsOnline:      true,
		Regions:       []string{"US"},
	},
	{
		ExternalID:    "doe-arpa-e-open",
		Title:         "ARPA-E OPEN Funding Opportunity",
		Description:   "Transformational energy technology R&D funding from the Department of Energy.",
		WebsiteURL:    "https://arpa-e.energy.gov/technologies/open-programs",
		SourcePageURL: "https://www.grants.gov/search-grants",
		IsOnline:      true,
		Regions:       []string{"US"},
	},
	{
		ExternalID:    "usda-rural-business",
		Title:         "USDA Rural Business Development Grants",
		Description:   "Grants supporting small business development in rural communities.",
		WebsiteURL:    "https://www.rd.usda.gov/programs-services/business-programs",
		SourcePageURL: "https://www.grants.gov/search-grants",
		IsOnline:      true,
		Regions:       []string{"US"},
	},
}
