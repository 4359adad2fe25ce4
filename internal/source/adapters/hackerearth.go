package adapters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// HackerEarth scrapes the hackathon challenge listing. Live and upcoming
// challenges share one page.
type HackerEarth struct {
	fetcher PageFetcher
	base    string
}

func NewHackerEarth(fetcher PageFetcher, baseURL string) *HackerEarth {
	if baseURL == "" {
		baseURL = "https://www.hackerearth.com"
	}
	return &HackerEarth{fetcher: fetcher, base: baseURL}
}

func (h *HackerEarth) SourceName() string { return "hackerearth" }
func (h *HackerEarth) BaseURL() string    { return h.base }

func (h *HackerEarth) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}
	doc, err := h.fetcher.FetchHTML(ctx, h.base+"/challenges/hackathon/")
	if err != nil {
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, card := range findAll(doc, byClass("div", "challenge-card-modern")) {
		raw, err := h.parseCard(card)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}
	return result, nil
}

func (h *HackerEarth) parseCard(card *html.Node) (source.Raw, error) {
	link := findFirst(card, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(card, byClass("", "challenge-name")))
	if title == "" {
		title = text(findFirst(card, byClass("", "challenge-list-title")))
	}
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("challenge card missing name or link")
	}

	raw := source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		Description:   text(findFirst(card, byClass("", "challenge-desc"))),
		WebsiteURL:    resolveURL(h.base, href),
		SourcePageURL: h.base + "/challenges/hackathon/",
		DateRangeText: text(findFirst(card, byClass("", "challenge-list-meta"))),
		// HackerEarth hackathons run online unless the card names a venue.
		IsOnline: true,
	}
	if venue := text(findFirst(card, byClass("", "venue"))); venue != "" {
		raw.IsOnline = false
		raw.City = venue
	}
	if prize := text(findFirst(card, byClass("", "prize"))); prize != "" {
		raw.TotalPrizeText = prize
	}
	for _, tag := range findAll(card, byClass("", "challenge-tag")) {
		raw.Themes = append(raw.Themes, text(tag))
	}
	return raw, nil
}

func (h *HackerEarth) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	if url == "" {
		return nil, nil
	}
	doc, err := h.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	desc := text(findFirst(doc, byClass("div", "challenge-overview")))
	if desc == "" {
		return nil, nil
	}
	return &source.Raw{
		ExternalID:    externalID,
		Title:         strings.TrimSpace(text(findFirst(doc, byTag("h1")))),
		Description:   desc,
		WebsiteURL:    url,
		SourcePageURL: url,
	}, nil
}
