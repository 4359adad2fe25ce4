package adapters

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// The OSS funding landscape has no central listing worth trusting, so the
// curated table is effectively the primary source and the live fetch is a
// bonus.
const ossGrantsFallbackThreshold = 10

// OSSGrants aggregates open source sustainability funds. It scrapes the
// oss.fund directory and always tops up from the curated table.
type OSSGrants struct {
	client *source.Client
	base   string
}

func NewOSSGrants(client *source.Client, baseURL string) *OSSGrants {
	if baseURL == "" {
		baseURL = "https://www.oss.fund"
	}
	return &OSSGrants{client: client, base: baseURL}
}

func (o *OSSGrants) SourceName() string { return "opensource_grants" }
func (o *OSSGrants) BaseURL() string    { return o.base }

func (o *OSSGrants) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	if page >= 2 {
		return &source.ScrapeResult{Status: source.StatusSuccess}, nil
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	doc, err := o.client.GetHTML(ctx, o.base)
	if err != nil {
		result.Opportunities = append([]source.Raw(nil), ossGrantsCurated...)
		result.Status = source.StatusPartial
		result.Errors = append(result.Errors, err.Error())
		result.MarkFallback()
		return result, nil
	}

	for _, card := range findAll(doc, byClass("", "fund-card")) {
		raw, err := o.parseCard(card)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}

	merged, usedFallback := source.MergeFallback(result.Opportunities, ossGrantsCurated, ossGrantsFallbackThreshold)
	result.Opportunities = merged
	if usedFallback {
		result.MarkFallback()
	}
	return result, nil
}

func (o *OSSGrants) parseCard(card *html.Node) (source.Raw, error) {
	link := findFirst(card, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(card, byClass("", "fund-name")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("fund card missing name or link")
	}
	return source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		Description:   text(findFirst(card, byClass("", "fund-desc"))),
		WebsiteURL:    resolveURL(o.base, href),
		SourcePageURL: o.base,
		IsOnline:      true,
		Themes:        []string{"Open Source"},
	}, nil
}

func (o *OSSGrants) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// ossGrantsCurated lists active open source funding programs.
// checked 2026-08.
var ossGrantsCurated = []source.Raw{
	{
		ExternalID:     "sovereign-tech-agency",
		Title:          "Sovereign Tech Agency",
		Description:    "German federal funding for critical open digital infrastructure.",
		WebsiteURL:     "https://www.sovereign.tech/",
		SourcePageURL:  "https://www.oss.fund",
		IsOnline:       true,
		Currency:       "EUR",
		Themes:         []string{"Open Source", "Infrastructure"},
		TotalPrizeText: "500,000 EUR",
	},
	{
		ExternalID:    "nlnet-ngi-zero",
		Title:         "NLnet NGI Zero Commons Fund",
		Description:   "Grants between 5,000 and 50,000 EUR for open internet technology.",
		WebsiteURL:    "https://nlnet.nl/commonsfund/",
		SourcePageURL: "https://www.oss.fund",
		IsOnline:      true,
		Currency:      "EUR",
		Themes:        []string{"Open Source", "Privacy", "Networking"},
		TotalPrizeText: "50,000 EUR",
	},
	{
		ExternalID:    "prototype-fund",
		Title:         "Prototype Fund",
		Description:   "Six-month funding for public interest tech built in Germany.",
		WebsiteURL:    "https://prototypefund.de/en/",
		SourcePageURL: "https://www.oss.fund",
		IsOnline:      true,
		Currency:      "EUR",
		Themes:        []string{"Open Source", "Civic Tech"},
		Regions:       []string{"Germany"},
	},
	{
		ExternalID:    "open-technology-fund",
		Title:         "Open Technology Fund",
		Description:   "Supports open source internet freedom technologies countering censorship and surveillance.",
		WebsiteURL:    "https://www.opentech.fund/",
		SourcePageURL: "https://www.oss.fund",
		IsOnline:      true,
		Themes:        []string{"Open Source", "Internet Freedom"},
	},
	{
		ExternalID:    "github-accelerator",
		Title:         "GitHub Accelerator",
		Description:   "Ten-week program funding open source maintainers to work full time on their projects.",
		WebsiteURL:    "https://accelerator.github.com/",
		SourcePageURL: "https://www.oss.fund",
		IsOnline:      true,
		Themes:        []string{"Open Source"},
	},
}
