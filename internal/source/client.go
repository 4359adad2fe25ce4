package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultUserAgent is sent on every adapter request. Sources routinely
// reject the Go default agent, so this mimics a current desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// maxResponseBytes caps how much of a listing page is read. Pages past
// this size are truncated, not failed.
const maxResponseBytes = 2 << 20 // 2MB

// Client is the pooled HTTP client one adapter owns. Redirects are
// followed (net/http default) and every request carries the browser
// user-agent and the caller's context.
type Client struct {
	hc        *http.Client
	source    string
	userAgent string
}

// NewClient builds an adapter-owned client. A zero timeout falls back
// to 30 seconds.
func NewClient(sourceName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		source:    sourceName,
		userAgent: DefaultUserAgent,
	}
}

// Get fetches a URL and returns up to maxResponseBytes of the body.
// Failures come back tagged with their taxonomy kind.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// GetHTML fetches a URL and parses the body as an HTML document.
func (c *Client) GetHTML(ctx context.Context, url string) (*html.Node, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindSourceParse, c.source, "parse html", err)
	}
	return doc, nil
}

// GetJSON fetches a URL and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewError(KindSourceParse, c.source, "decode json", err)
	}
	return nil
}

// PostJSON sends a JSON body and decodes the JSON response into v.
// Used by sources whose search endpoints only accept POST.
func (c *Client) PostJSON(ctx context.Context, url string, payload, v any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return NewError(KindInvalidInput, c.source, "encode json", err)
	}
	body, err := c.do(ctx, http.MethodPost, url, "application/json", buf.Bytes())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return NewError(KindSourceParse, c.source, "decode json", err)
	}
	return nil
}

// Head probes a URL for health checks. Any 2xx/3xx counts as reachable.
func (c *Client) Head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return NewError(KindInvalidInput, c.source, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.hc.Do(req)
	if err != nil {
		return NewError(KindTransientNetwork, c.source, "head", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		return c.classifyStatus("head", resp.StatusCode, nil)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, NewError(KindInvalidInput, c.source, "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError(KindTransientNetwork, c.source, "fetch", ctx.Err())
		}
		return nil, NewError(KindTransientNetwork, c.source, "fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewError(KindTransientNetwork, c.source, "read body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus("fetch", resp.StatusCode, body)
	}
	if looksLikeChallenge(body) {
		return nil, NewError(KindBlockedByAntiBot, c.source, "fetch", fmt.Errorf("challenge page served with HTTP 200"))
	}
	return body, nil
}

// classifyStatus maps an HTTP status to the error taxonomy: 429 is rate
// limiting, 403 is an anti-bot wall, remaining 4xx mean the source moved
// or changed (no retry), 5xx are transient.
func (c *Client) classifyStatus(op string, code int, body []byte) error {
	cause := fmt.Errorf("HTTP %d", code)
	switch {
	case code == http.StatusTooManyRequests:
		return NewError(KindRateLimited, c.source, op, cause)
	case code == http.StatusForbidden:
		return NewError(KindBlockedByAntiBot, c.source, op, cause)
	case code >= 500:
		return NewError(KindTransientNetwork, c.source, op, cause)
	case looksLikeChallenge(body):
		return NewError(KindBlockedByAntiBot, c.source, op, cause)
	default:
		return NewError(KindSourceParse, c.source, op, cause)
	}
}

// challengeMarkers are fragments common to interstitial bot checks.
var challengeMarkers = []string{
	"cf-challenge",
	"cf_chl_opt",
	"just a moment...",
	"attention required!",
	"verify you are human",
	"px-captcha",
	"datadome",
}

func looksLikeChallenge(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	probe := body
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	low := strings.ToLower(string(probe))
	for _, marker := range challengeMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}
