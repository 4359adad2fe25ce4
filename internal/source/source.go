// Package source defines the contract between the scrape orchestrator and
// the per-source adapters: the raw record shape, the list/detail operations,
// the shared error taxonomy, and the adapter registry.
package source

import (
	"context"
	"encoding/json"
)

// =============================================================================
// RAW RECORDS
// =============================================================================

// RawPrize is a prize line as the source printed it. AmountText keeps the
// unparsed value ("$10k", "5,000 EUR", "swag"); normalization turns it into
// a number or drops it.
type RawPrize struct {
	Name       string `json:"name,omitempty"`
	AmountText string `json:"amount_text,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// Raw is one listing entry exactly as an adapter saw it. Every field except
// ExternalID and Title is optional; dates are free-form strings and are
// parsed during normalization, never here.
type Raw struct {
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	WebsiteURL      string `json:"website_url,omitempty"`
	RegistrationURL string `json:"registration_url,omitempty"`
	SourcePageURL   string `json:"source_page_url,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
	BannerURL       string `json:"banner_url,omitempty"`

	IsOnline bool   `json:"is_online,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`

	Themes       []string `json:"themes,omitempty"`
	Technologies []string `json:"technologies,omitempty"`

	Prizes         []RawPrize `json:"prizes,omitempty"`
	TotalPrizeText string     `json:"total_prize_text,omitempty"`
	Currency       string     `json:"currency,omitempty"`

	TeamSizeMin *int `json:"team_size_min,omitempty"`
	TeamSizeMax *int `json:"team_size_max,omitempty"`

	// DeadlineText and the event date texts hold whatever the source
	// printed ("Dec 17, 2025", "15 Jan - 20 Feb 2024", ...). DateRangeText
	// is used by sources that publish start and end as one string.
	DeadlineText  string `json:"deadline_text,omitempty"`
	StartDateText string `json:"start_date_text,omitempty"`
	EndDateText   string `json:"end_date_text,omitempty"`
	DateRangeText string `json:"date_range_text,omitempty"`

	StudentOnly bool `json:"student_only,omitempty"`

	// Regions lists eligibility regions when the source states them
	// ("US", "EU", "global"). Feeds the synthesized region rules.
	Regions []string `json:"regions,omitempty"`

	// Payload retains the source's own representation for raw_data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// =============================================================================
// SCRAPE OPERATIONS
// =============================================================================

// ScrapeStatus is the page-level outcome an adapter reports.
type ScrapeStatus string

const (
	StatusSuccess ScrapeStatus = "success"
	StatusPartial ScrapeStatus = "partial"
	StatusFailed  ScrapeStatus = "failed"
)

// ScrapeResult is one page of listing output.
type ScrapeResult struct {
	Opportunities []Raw
	Status        ScrapeStatus
	Errors        []string
	Metadata      map[string]any
}

// MarkFallback records that curated entries were substituted for (or merged
// with) live results on this page.
func (r *ScrapeResult) MarkFallback() {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, 1)
	}
	r.Metadata["fallback"] = true
}

// UsedFallback reports whether the fallback table contributed to the result.
func (r *ScrapeResult) UsedFallback() bool {
	if r == nil || r.Metadata == nil {
		return false
	}
	v, _ := r.Metadata["fallback"].(bool)
	return v
}

// Adapter is one hand-written source integration. Implementations must be
// safe for sequential reuse across runs; the orchestrator never calls the
// same adapter concurrently.
type Adapter interface {
	// SourceName is the registry key and the `source` field on records.
	SourceName() string

	// BaseURL is a reachable URL used by health checks.
	BaseURL() string

	// ScrapeList fetches one 1-based page of listings. An empty
	// Opportunities slice signals the end of pagination. Adapters without
	// natural pagination return an empty result for page >= 2.
	ScrapeList(ctx context.Context, page int) (*ScrapeResult, error)

	// ScrapeDetail fetches one record's detail view. Adapters that do not
	// support detail fetches return (nil, nil).
	ScrapeDetail(ctx context.Context, externalID, url string) (*Raw, error)
}

// =============================================================================
// FALLBACK MERGING
// =============================================================================

// MergeFallback combines live results with a curated table when the live
// count falls below the adapter's threshold. Curated entries lose to live
// entries with the same external id. The returned bool reports whether the
// curated table contributed anything.
func MergeFallback(live []Raw, curated []Raw, threshold int) ([]Raw, bool) {
	if len(live) >= threshold {
		return live, false
	}
	seen := make(map[string]struct{}, len(live))
	for _, r := range live {
		seen[r.ExternalID] = struct{}{}
	}
	merged := live
	used := false
	for _, c := range curated {
		if _, dup := seen[c.ExternalID]; dup {
			continue
		}
		merged = append(merged, c)
		seen[c.ExternalID] = struct{}{}
		used = true
	}
	return merged, used
}
