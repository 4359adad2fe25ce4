package adapters

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/net/html"

	"oppradar/internal/browser"
	"oppradar/internal/source"
)

// PageFetcher retrieves one URL as a parsed HTML document. The headless
// adapters are written against this so tests can feed them plain HTTP
// fixtures while production runs them through the browser pool.
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (*html.Node, error)
}

// browserFetcher renders pages through the shared headless pool. A
// challenge interstitial surfaces as a blocked_by_anti_bot error so the
// breaker weighs it double.
type browserFetcher struct {
	pool   *browser.Pool
	source string
}

// NewBrowserFetcher wraps the pool for one adapter.
func NewBrowserFetcher(pool *browser.Pool, sourceName string) PageFetcher {
	return &browserFetcher{pool: pool, source: sourceName}
}

func (f *browserFetcher) FetchHTML(ctx context.Context, url string) (*html.Node, error) {
	page, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, source.NewError(source.KindTransientNetwork, f.source, "acquire page", err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, url); err != nil {
		return nil, source.NewError(source.KindTransientNetwork, f.source, "navigate", err)
	}

	challenge, err := page.CheckChallenge(ctx)
	if err != nil {
		return nil, source.NewError(source.KindTransientNetwork, f.source, "inspect page", err)
	}
	if challenge.Blocked {
		return nil, source.NewError(source.KindBlockedByAntiBot, f.source, "navigate",
			fmt.Errorf("challenge page: %v", challenge.Reasons))
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, source.NewError(source.KindTransientNetwork, f.source, "read dom", err)
	}
	doc, err := html.Parse(bytes.NewReader([]byte(markup)))
	if err != nil {
		return nil, source.NewError(source.KindSourceParse, f.source, "parse html", err)
	}
	return doc, nil
}

// clientFetcher adapts the pooled HTTP client to PageFetcher. Used directly
// by tests and as a degraded mode when no browser is available.
type clientFetcher struct {
	client *source.Client
}

// NewClientFetcher builds a PageFetcher over a plain HTTP client.
func NewClientFetcher(client *source.Client) PageFetcher {
	return &clientFetcher{client: client}
}

func (f *clientFetcher) FetchHTML(ctx context.Context, url string) (*html.Node, error) {
	return f.client.GetHTML(ctx, url)
}
