package adapters

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// hackeroneFallbackThreshold: below this many live entries the curated
// table kicks in.
const hackeroneFallbackThreshold = 5

// HackerOne scrapes the public program directory. The directory is a React
// app, so this adapter runs headless; a curated table of long-running
// programs backs it up when the live page yields too little.
type HackerOne struct {
	fetcher PageFetcher
	base    string
}

func NewHackerOne(fetcher PageFetcher, baseURL string) *HackerOne {
	if baseURL == "" {
		baseURL = "https://hackerone.com"
	}
	return &HackerOne{fetcher: fetcher, base: baseURL}
}

func (h *HackerOne) SourceName() string { return "hackerone" }
func (h *HackerOne) BaseURL() string    { return h.base }

func (h *HackerOne) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	doc, err := h.fetcher.FetchHTML(ctx, h.base+"/directory/programs")
	if err != nil {
		// Curated entries keep the source alive through anti-bot walls;
		// the error is still reported so the breaker sees it.
		result.Opportunities = append([]source.Raw(nil), hackeroneCurated...)
		result.Status = source.StatusPartial
		result.Errors = append(result.Errors, err.Error())
		result.MarkFallback()
		return result, nil
	}

	for _, entry := range findAll(doc, byClass("", "directory-entry")) {
		raw, err := h.parseEntry(entry)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}

	merged, usedFallback := source.MergeFallback(result.Opportunities, hackeroneCurated, hackeroneFallbackThreshold)
	result.Opportunities = merged
	if usedFallback {
		result.MarkFallback()
	}
	return result, nil
}

func (h *HackerOne) parseEntry(entry *html.Node) (source.Raw, error) {
	link := findFirst(entry, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(entry, byClass("", "program-name")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("directory entry missing name or link")
	}

	raw := source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		WebsiteURL:    resolveURL(h.base, href),
		SourcePageURL: h.base + "/directory/programs",
		IsOnline:      true,
	}
	if bounty := text(findFirst(entry, byClass("", "bounty-range"))); bounty != "" {
		raw.TotalPrizeText = bounty
	}
	return raw, nil
}

func (h *HackerOne) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// hackeroneCurated lists long-running public bounty programs.
// checked 2026-08.
var hackeroneCurated = []source.Raw{
	{
		ExternalID:     "github",
		Title:          "GitHub Bug Bounty",
		Description:    "Report security vulnerabilities in GitHub products and services.",
		WebsiteURL:     "https://hackerone.com/github",
		SourcePageURL:  "https://hackerone.com/directory/programs",
		IsOnline:       true,
		TotalPrizeText: "$30,000",
		Technologies:   []string{"Web", "API"},
	},
	{
		ExternalID:     "shopify",
		Title:          "Shopify Bug Bounty",
		Description:    "Find vulnerabilities across Shopify's commerce platform.",
		WebsiteURL:     "https://hackerone.com/shopify",
		SourcePageURL:  "https://hackerone.com/directory/programs",
		IsOnline:       true,
		TotalPrizeText: "$50,000",
		Technologies:   []string{"Web", "GraphQL"},
	},
	{
		ExternalID:     "gitlab",
		Title:          "GitLab Bug Bounty",
		Description:    "Security research across GitLab CE, EE, and gitlab.com.",
		WebsiteURL:     "https://hackerone.com/gitlab",
		SourcePageURL:  "https://hackerone.com/directory/programs",
		IsOnline:       true,
		TotalPrizeText: "$35,000",
		Technologies:   []string{"Ruby", "Web"},
	},
	{
		ExternalID:     "cloudflare",
		Title:          "Cloudflare Public Bug Bounty",
		Description:    "Vulnerabilities in Cloudflare's edge, dashboard, and APIs.",
		WebsiteURL:     "https://hackerone.com/cloudflare",
		SourcePageURL:  "https://hackerone.com/directory/programs",
		IsOnline:       true,
		TotalPrizeText: "$15,000",
		Technologies:   []string{"Networking", "Web"},
	},
	{
		ExternalID:     "internet-bug-bounty",
		Title:          "Internet Bug Bounty",
		Description:    "Rewards for vulnerabilities in core open source infrastructure.",
		WebsiteURL:     "https://hackerone.com/ibb",
		SourcePageURL:  "https://hackerone.com/directory/programs",
		IsOnline:       true,
		TotalPrizeText: "$25,000",
		Technologies:   []string{"Open Source", "C"},
	},
}
