package adapters

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// Devpost scrapes the devpost.com hackathon listing. The listing renders
// client-side, so this adapter runs through the browser pool.
type Devpost struct {
	fetcher PageFetcher
	base    string
}

// NewDevpost builds the adapter. An empty baseURL targets production.
func NewDevpost(fetcher PageFetcher, baseURL string) *Devpost {
	if baseURL == "" {
		baseURL = "https://devpost.com"
	}
	return &Devpost{fetcher: fetcher, base: baseURL}
}

func (d *Devpost) SourceName() string { return "devpost" }
func (d *Devpost) BaseURL() string    { return d.base }

// ScrapeList fetches one page of hackathon tiles.
func (d *Devpost) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	doc, err := d.fetcher.FetchHTML(ctx, fmt.Sprintf("%s/hackathons?page=%d", d.base, page))
	if err != nil {
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, tile := range findAll(doc, byClass("div", "hackathon-tile")) {
		raw, err := d.parseTile(tile)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}
	return result, nil
}

func (d *Devpost) parseTile(tile *html.Node) (source.Raw, error) {
	link := findFirst(tile, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(tile, byTag("h3")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("tile missing title or link")
	}

	pageURL := resolveURL(d.base, href)
	raw := source.Raw{
		ExternalID:    slugFromURL(pageURL),
		Title:         title,
		WebsiteURL:    pageURL,
		SourcePageURL: pageURL,
		DeadlineText:  text(findFirst(tile, byClass("", "submission-period"))),
	}

	location := text(findFirst(tile, byClass("", "info-with-icon")))
	if strings.EqualFold(location, "online") {
		raw.IsOnline = true
	} else if location != "" {
		raw.City = location
	}

	if prize := text(findFirst(tile, byClass("", "prize-amount"))); prize != "" {
		raw.TotalPrizeText = prize
	}
	for _, theme := range findAll(tile, byClass("", "theme-label")) {
		raw.Themes = append(raw.Themes, text(theme))
	}
	if logo := findFirst(tile, byTag("img")); logo != nil {
		raw.LogoURL = resolveURL(d.base, attr(logo, "src"))
	}
	return raw, nil
}

// ScrapeDetail fetches one hackathon page for the long description.
func (d *Devpost) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	if url == "" {
		return nil, nil
	}
	doc, err := d.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	raw := &source.Raw{
		ExternalID:    externalID,
		Title:         text(findFirst(doc, byTag("h1"))),
		Description:   text(findFirst(doc, byClass("div", "challenge-description"))),
		SourcePageURL: url,
		WebsiteURL:    url,
	}
	if raw.Title == "" {
		return nil, source.NewError(source.KindSourceParse, d.SourceName(), "detail",
			fmt.Errorf("no title on %s", url))
	}
	return raw, nil
}
