package adapters

import (
	"context"
	"fmt"

	"oppradar/internal/source"
)

const (
	euHorizonPageSize          = 25
	euHorizonFallbackThreshold = 3
)

// EUHorizon queries the EU Funding & Tenders portal search API for open
// Horizon Europe calls.
type EUHorizon struct {
	client *source.Client
	base   string
}

func NewEUHorizon(client *source.Client, baseURL string) *EUHorizon {
	if baseURL == "" {
		baseURL = "https://api.tech.ec.europa.eu"
	}
	return &EUHorizon{client: client, base: baseURL}
}

func (e *EUHorizon) SourceName() string { return "eu_horizon" }
func (e *EUHorizon) BaseURL() string    { return e.base }

type euHorizonRequest struct {
	Query    string `json:"query"`
	PageSize int    `json:"pageSize"`
	Page     int    `json:"pageNumber"`
	Status   string `json:"status"`
}

type euHorizonResponse struct {
	TotalResults int `json:"totalResults"`
	Results      []struct {
		Metadata struct {
			Identifier   string `json:"identifier"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			DeadlineDate string `json:"deadlineDate"`
			StartDate    string `json:"startDate"`
			Status       string `json:"status"`
		} `json:"metadata"`
	} `json:"results"`
}

func (e *EUHorizon) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	req := euHorizonRequest{
		Query:    "HORIZON",
		PageSize: euHorizonPageSize,
		Page:     page,
		Status:   "open",
	}
	var resp euHorizonResponse
	if err := e.client.PostJSON(ctx, e.base+"/search-api/prod/rest/search", req, &resp); err != nil {
		if page == 1 {
			result := &source.ScrapeResult{
				Opportunities: append([]source.Raw(nil), euHorizonCurated...),
				Status:        source.StatusPartial,
				Errors:        []string{err.Error()},
			}
			result.MarkFallback()
			return result, nil
		}
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, r := range resp.Results {
		md := r.Metadata
		if md.Identifier == "" || md.Title == "" {
			result.Errors = append(result.Errors, "call missing identifier or title")
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, source.Raw{
			ExternalID:  md.Identifier,
			Title:       md.Title,
			Description: md.Description,
			WebsiteURL: fmt.Sprintf(
				"https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/opportunities/topic-details/%s",
				md.Identifier),
			SourcePageURL: "https://ec.europa.eu/info/funding-tenders/opportunities/portal",
			DeadlineText:  md.DeadlineDate,
			StartDateText: md.StartDate,
			IsOnline:      true,
			Regions:       []string{"EU"},
		})
	}

	if page == 1 {
		merged, usedFallback := source.MergeFallback(result.Opportunities, euHorizonCurated, euHorizonFallbackThreshold)
		result.Opportunities = merged
		if usedFallback {
			result.MarkFallback()
		}
	}
	return result, nil
}

func (e *EUHorizon) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// euHorizonCurated covers the standing Horizon Europe instruments.
// checked 2026-08.
var euHorizonCurated = []source.Raw{
	{
		ExternalID:     "eic-accelerator",
		Title:          "EIC Accelerator",
		Description:    "European Innovation Council funding for startups and SMEs: grants up to 2.5M EUR plus equity.",
		WebsiteURL:     "https://eic.ec.europa.eu/eic-funding-opportunities/eic-accelerator_en",
		SourcePageURL:  "https://ec.europa.eu/info/funding-tenders/opportunities/portal",
		IsOnline:       true,
		TotalPrizeText: "2,500,000 EUR",
		Currency:       "EUR",
		Regions:        []string{"EU"},
	},
	{
		ExternalID:     "eic-pathfinder",
		Title:          "EIC Pathfinder Open",
		Description:    "Grants for visionary deep tech research beyond the state of the art.",
		WebsiteURL:     "https://eic.ec.europa.eu/eic-funding-opportunities/eic-pathfinder_en",
		SourcePageURL:  "https://ec.europa.eu/info/funding-tenders/opportunities/portal",
		IsOnline:       true,
		TotalPrizeText: "3,000,000 EUR",
		Currency:       "EUR",
		Regions:        []string{"EU"},
	},
	{
		ExternalID:    "eit-digital-venture",
		Title:         "EIT Digital Venture Program",
		Description:   "Support for European deep tech founders building digital ventures.",
		WebsiteURL:    "https://www.eitdigital.eu/venture-program/",
		SourcePageURL: "https://ec.europa.eu/info/funding-tenders/opportunities/portal",
		IsOnline:      true,
		Currency:      "EUR",
		Regions:       []string{"EU"},
	},
}
