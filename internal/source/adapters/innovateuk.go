package adapters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

const innovateUKFallbackThreshold = 3

// InnovateUK scrapes the UK innovation funding service competition search.
// Server-rendered HTML, paginated with a ?page parameter (0-based on the
// site, 1-based here).
type InnovateUK struct {
	client *source.Client
	base   string
}

func NewInnovateUK(client *source.Client, baseURL string) *InnovateUK {
	if baseURL == "" {
		baseURL = "https://apply-for-innovation-funding.service.gov.uk"
	}
	return &InnovateUK{client: client, base: baseURL}
}

func (i *InnovateUK) SourceName() string { return "innovate_uk" }
func (i *InnovateUK) BaseURL() string    { return i.base }

func (i *InnovateUK) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	url := fmt.Sprintf("%s/competition/search?page=%d", i.base, page-1)
	doc, err := i.client.GetHTML(ctx, url)
	if err != nil {
		if page == 1 {
			result := &source.ScrapeResult{
				Opportunities: append([]source.Raw(nil), innovateUKCurated...),
				Status:        source.StatusPartial,
				Errors:        []string{err.Error()},
			}
			result.MarkFallback()
			return result, nil
		}
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, item := range findAll(doc, byClass("li", "competition-result")) {
		raw, err := i.parseResult(item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}

	if page == 1 {
		merged, usedFallback := source.MergeFallback(result.Opportunities, innovateUKCurated, innovateUKFallbackThreshold)
		result.Opportunities = merged
		if usedFallback {
			result.MarkFallback()
		}
	}
	return result, nil
}

func (i *InnovateUK) parseResult(item *html.Node) (source.Raw, error) {
	link := findFirst(item, byTag("a"))
	href := attr(link, "href")
	title := text(link)
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("competition result missing title or link")
	}

	raw := source.Raw{
		ExternalID:    competitionID(href),
		Title:         title,
		Description:   text(findFirst(item, byClass("", "competition-description"))),
		WebsiteURL:    resolveURL(i.base, href),
		SourcePageURL: i.base + "/competition/search",
		DeadlineText:  text(findFirst(item, byClass("", "competition-deadline"))),
		IsOnline:      true,
		Currency:      "GBP",
		Regions:       []string{"UK"},
	}
	if funding := text(findFirst(item, byClass("", "competition-funding"))); funding != "" {
		raw.TotalPrizeText = funding
	}
	return raw, nil
}

func (i *InnovateUK) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// competitionID extracts the numeric id from links shaped like
// /competition/<id>/overview.
func competitionID(href string) string {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	for idx, part := range parts {
		if part == "competition" && idx+1 < len(parts) {
			return parts[idx+1]
		}
	}
	return slugFromURL(href)
}

// innovateUKCurated covers the always-open UK instruments. checked 2026-08.
var innovateUKCurated = []source.Raw{
	{
		ExternalID:     "innovate-uk-smart-grants",
		Title:          "Innovate UK Smart Grants",
		Description:    "Game-changing and commercially viable R&D innovation that can significantly impact the UK economy.",
		WebsiteURL:     "https://apply-for-innovation-funding.service.gov.uk/competition/search",
		SourcePageURL:  "https://apply-for-innovation-funding.service.gov.uk/competition/search",
		IsOnline:       true,
		TotalPrizeText: "£500,000",
		Currency:       "GBP",
		Regions:        []string{"UK"},
	},
	{
		ExternalID:    "innovate-uk-investor-partnerships",
		Title:         "Innovate UK Investor Partnerships",
		Description:   "Grant funding aligned with private investment for high-growth UK businesses.",
		WebsiteURL:    "https://www.ukri.org/councils/innovate-uk/",
		SourcePageURL: "https://apply-for-innovation-funding.service.gov.uk/competition/search",
		IsOnline:      true,
		Currency:      "GBP",
		Regions:       []string{"UK"},
	},
	{
		ExternalID:    "catapult-open-call",
		Title:         "Catapult Network Open Calls",
		Description:   "Collaborative R&D opportunities through the UK Catapult innovation centres.",
		WebsiteURL:    "https://catapult.org.uk/opportunities/",
		SourcePageURL: "https://apply-for-innovation-funding.service.gov.uk/competition/search",
		IsOnline:      true,
		Currency:      "GBP",
		Regions:       []string{"UK"},
	},
}
