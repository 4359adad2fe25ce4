package adapters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// ETHGlobal scrapes the ethglobal.com events page. Single page, no
// pagination.
type ETHGlobal struct {
	fetcher PageFetcher
	base    string
}

func NewETHGlobal(fetcher PageFetcher, baseURL string) *ETHGlobal {
	if baseURL == "" {
		baseURL = "https://ethglobal.com"
	}
	return &ETHGlobal{fetcher: fetcher, base: baseURL}
}

func (e *ETHGlobal) SourceName() string { return "ethglobal" }
func (e *ETHGlobal) BaseURL() string    { return e.base }

func (e *ETHGlobal) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}
	doc, err := e.fetcher.FetchHTML(ctx, e.base+"/events")
	if err != nil {
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, link := range findAll(doc, byTag("a")) {
		href := attr(link, "href")
		if !strings.HasPrefix(href, "/events/") && !strings.Contains(href, e.base+"/events/") {
			continue
		}
		raw, err := e.parseCard(link, href)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}
	return result, nil
}

func (e *ETHGlobal) parseCard(card *html.Node, href string) (source.Raw, error) {
	title := text(findFirst(card, byClass("", "name")))
	if title == "" {
		title = text(findFirst(card, byTag("h3")))
	}
	if title == "" {
		return source.Raw{}, fmt.Errorf("event card %s missing name", href)
	}

	raw := source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		WebsiteURL:    resolveURL(e.base, href),
		SourcePageURL: e.base + "/events",
		DateRangeText: text(findFirst(card, byClass("", "dates"))),
		Technologies:  []string{"Ethereum", "Solidity", "Web3"},
	}

	location := text(findFirst(card, byClass("", "location")))
	if strings.EqualFold(location, "online") || strings.EqualFold(location, "remote") {
		raw.IsOnline = true
	} else if location != "" {
		raw.City = location
	}
	return raw, nil
}

func (e *ETHGlobal) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}
