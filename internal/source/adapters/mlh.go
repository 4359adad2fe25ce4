package adapters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// mlhSeason is the season segment in the events URL. Bumped once a year.
const mlhSeason = "2026"

// MLH scrapes the Major League Hacking season calendar. One page, no
// pagination.
type MLH struct {
	fetcher PageFetcher
	base    string
}

func NewMLH(fetcher PageFetcher, baseURL string) *MLH {
	if baseURL == "" {
		baseURL = "https://mlh.io"
	}
	return &MLH{fetcher: fetcher, base: baseURL}
}

func (m *MLH) SourceName() string { return "mlh" }
func (m *MLH) BaseURL() string    { return m.base }

func (m *MLH) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}
	doc, err := m.fetcher.FetchHTML(ctx, fmt.Sprintf("%s/seasons/%s/events", m.base, mlhSeason))
	if err != nil {
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, card := range findAll(doc, byClass("div", "event")) {
		raw, err := m.parseCard(card)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}
	return result, nil
}

func (m *MLH) parseCard(card *html.Node) (source.Raw, error) {
	link := findFirst(card, byClass("a", "event-link"))
	if link == nil {
		link = findFirst(card, byTag("a"))
	}
	href := attr(link, "href")
	title := text(findFirst(card, byClass("", "event-name")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("event card missing name or link")
	}

	raw := source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		WebsiteURL:    resolveURL(m.base, href),
		SourcePageURL: fmt.Sprintf("%s/seasons/%s/events", m.base, mlhSeason),
		DateRangeText: text(findFirst(card, byClass("", "event-date"))),
		// MLH events are student hackathons.
		StudentOnly: true,
	}

	location := text(findFirst(card, byClass("", "event-location")))
	switch {
	case strings.Contains(strings.ToLower(location), "everywhere"),
		strings.EqualFold(location, "online"):
		raw.IsOnline = true
	case location != "":
		if city, country, ok := strings.Cut(location, ","); ok {
			raw.City = strings.TrimSpace(city)
			raw.Country = strings.TrimSpace(country)
		} else {
			raw.City = location
		}
	}

	if logo := findFirst(card, byClass("img", "event-logo")); logo != nil {
		raw.LogoURL = resolveURL(m.base, attr(logo, "src"))
	}
	return raw, nil
}

func (m *MLH) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}
