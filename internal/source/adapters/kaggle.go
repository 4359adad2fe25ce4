package adapters

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"oppradar/internal/source"
)

// Kaggle scrapes the competitions listing. The list paginates with a
// ?page query parameter.
type Kaggle struct {
	fetcher PageFetcher
	base    string
}

func NewKaggle(fetcher PageFetcher, baseURL string) *Kaggle {
	if baseURL == "" {
		baseURL = "https://www.kaggle.com"
	}
	return &Kaggle{fetcher: fetcher, base: baseURL}
}

func (k *Kaggle) SourceName() string { return "kaggle" }
func (k *Kaggle) BaseURL() string    { return k.base }

func (k *Kaggle) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	doc, err := k.fetcher.FetchHTML(ctx, fmt.Sprintf("%s/competitions?page=%d", k.base, page))
	if err != nil {
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, item := range findAll(doc, byClass("", "competition-item")) {
		raw, err := k.parseItem(item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Status = source.StatusPartial
			continue
		}
		result.Opportunities = append(result.Opportunities, raw)
	}
	return result, nil
}

func (k *Kaggle) parseItem(item *html.Node) (source.Raw, error) {
	link := findFirst(item, byTag("a"))
	href := attr(link, "href")
	title := text(findFirst(item, byClass("", "competition-title")))
	if title == "" || href == "" {
		return source.Raw{}, fmt.Errorf("competition item missing title or link")
	}

	raw := source.Raw{
		ExternalID:    slugFromURL(href),
		Title:         title,
		Description:   text(findFirst(item, byClass("", "competition-subtitle"))),
		WebsiteURL:    resolveURL(k.base, href),
		SourcePageURL: resolveURL(k.base, href),
		DeadlineText:  text(findFirst(item, byClass("", "competition-deadline"))),
		IsOnline:      true,
		Technologies:  []string{"Python", "Machine Learning"},
	}
	if reward := text(findFirst(item, byClass("", "competition-reward"))); reward != "" {
		raw.TotalPrizeText = reward
	}
	for _, tag := range findAll(item, byClass("", "competition-tag")) {
		raw.Themes = append(raw.Themes, text(tag))
	}
	return raw, nil
}

func (k *Kaggle) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}
