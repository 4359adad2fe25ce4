package adapters

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

const acceleratorsFallbackThreshold = 5

// Accelerators scrapes the F6S program directory for open accelerator
// batches. Directory coverage is spotty, so a curated table of the major
// programs does most of the work.
type Accelerators struct {
	fetcher PageFetcher
	base    string
}

func NewAccelerators(fetcher PageFetcher, baseURL string) *Accelerators {
	if baseURL == "" {
		baseURL = "https://www.f6s.com"
	}
	return &Accelerators{fetcher: fetcher, base: baseURL}
}

func (a *Accelerators) SourceName() string { return "accelerators" }
func (a *Accelerators) BaseURL() string    { return a.base }

func (a *Accelerators) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	doc, err := a.fetcher.FetchHTML(ctx, a.base+"/programs")
	if err != nil {
		result.Opportunities = append([]source.Raw(nil), acceleratorsCurated...)
		result.Status = source.StatusPartial
		result.Errors = append(result.Errors, err.Error())
		result.MarkFallback()
		return result, nil
	}

	for _, card := range findAll(doc, byClass("div", "program-card")) {
		raw, err := a.parseCard(card)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}

	merged, usedFallback := source.MergeFallback(result.Opportunities, acceleratorsCurated, acceleratorsFallbackThreshold)
	result.Opportunities = merged
	if usedFallback {
		result.MarkFallback()
	}
	return result, nil
}

func (a *Accelerators) parseCard(card *html.Node) (source.Raw, error) {
	link := findFirst(card, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(card, byClass("", "program-name")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("program card missing name or link")
	}
	return source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		Description:   text(findFirst(card, byClass("", "program-desc"))),
		WebsiteURL:    resolveURL(a.base, href),
		SourcePageURL: a.base + "/programs",
		DeadlineText:  text(findFirst(card, byClass("", "program-deadline"))),
	}, nil
}

func (a *Accelerators) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// acceleratorsCurated lists the flagship programs with rolling or
// batch-based intakes. checked 2026-08.
var acceleratorsCurated = []source.Raw{
	{
		ExternalID:    "y-combinator",
		Title:         "Y Combinator",
		Description:   "Twice-yearly batches with $500K standard deal for early-stage startups.",
		WebsiteURL:    "https://www.ycombinator.com/apply",
		SourcePageURL: "https://www.ycombinator.com",
		IsOnline:      false,
		City:          "San Francisco",
		Country:       "US",
		TeamSizeMin:   intRef(1),
		TeamSizeMax:   intRef(4),
	},
	{
		ExternalID:    "techstars",
		Title:         "Techstars Accelerator",
		Description:   "Three-month mentorship-driven accelerator across 30+ cities.",
		WebsiteURL:    "https://www.techstars.com/accelerators",
		SourcePageURL: "https://www.techstars.com",
		IsOnline:      false,
		City:          "Boulder",
		Country:       "US",
	},
	{
		ExternalID:    "500-global",
		Title:         "500 Global Flagship Accelerator",
		Description:   "Four-month seed program for high-growth startups.",
		WebsiteURL:    "https://500.co/accelerators",
		SourcePageURL: "https://500.co",
		IsOnline:      false,
		City:          "Palo Alto",
		Country:       "US",
	},
	{
		ExternalID:    "entrepreneur-first",
		Title:         "Entrepreneur First",
		Description:   "Talent-first program that funds individuals before they have a team or idea.",
		WebsiteURL:    "https://www.joinef.com",
		SourcePageURL: "https://www.joinef.com",
		IsOnline:      false,
		City:          "London",
		Country:       "UK",
		TeamSizeMin:   intRef(1),
		TeamSizeMax:   intRef(2),
	},
	{
		ExternalID:    "antler",
		Title:         "Antler Residency",
		Description:   "Global early-stage investor running founder residencies in 30 cities.",
		WebsiteURL:    "https://www.antler.co/apply",
		SourcePageURL: "https://www.antler.co",
		IsOnline:      false,
		City:          "Singapore",
		Country:       "Singapore",
	},
	{
		ExternalID:    "seedcamp",
		Title:         "Seedcamp",
		Description:   "Europe's seed fund backing founders at pre-seed and seed.",
		WebsiteURL:    "https://seedcamp.com",
		SourcePageURL: "https://seedcamp.com",
		IsOnline:      false,
		City:          "London",
		Country:       "UK",
		Regions:       []string{"EU", "UK"},
	},
}

func intRef(v int) *int { return &v }
