// Package model defines the canonical records shared across oppradar packages.
// This package exists to break import cycles between the ingestion, storage,
// and matching layers. Types here are plain data with no behaviour beyond
// small derivation helpers.
package model

import (
	"encoding/json"
	"math"
	"time"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// OpportunityType classifies what kind of opportunity a record describes.
type OpportunityType string

const (
	TypeHackathon   OpportunityType = "hackathon"
	TypeCompetition OpportunityType = "competition"
	TypeGrant       OpportunityType = "grant"
	TypeBounty      OpportunityType = "bounty"
	TypeAccelerator OpportunityType = "accelerator"
	TypeOther       OpportunityType = "other"
)

// ParseOpportunityType maps a stored string back to a known variant.
// Unknown values collapse to TypeOther so old rows stay readable.
func ParseOpportunityType(s string) OpportunityType {
	switch OpportunityType(s) {
	case TypeHackathon, TypeCompetition, TypeGrant, TypeBounty, TypeAccelerator:
		return OpportunityType(s)
	default:
		return TypeOther
	}
}

// Format describes how an opportunity is attended.
type Format string

const (
	FormatOnline   Format = "online"
	FormatInPerson Format = "in_person"
	FormatHybrid   Format = "hybrid"
	FormatUnknown  Format = "unknown"
)

// MatchStatus tracks what the user did with a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInterested MatchStatus = "interested"
	MatchApplied    MatchStatus = "applied"
	MatchDismissed  MatchStatus = "dismissed"
)

// RunStatus is the lifecycle state of a scraper run.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// =============================================================================
// OPPORTUNITY
// =============================================================================

// Location is the optional geography of an in-person opportunity.
type Location struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// Links collects the URLs attached to an opportunity.
type Links struct {
	Website      string `json:"website,omitempty"`
	Registration string `json:"registration,omitempty"`
	SourcePage   string `json:"source_page,omitempty"`
	Logo         string `json:"logo,omitempty"`
	Banner       string `json:"banner,omitempty"`
}

// Prize is one prize line item. Amount is nil when the source only
// names the prize ("Best use of X") without a value.
type Prize struct {
	Name     string   `json:"name"`
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

// Opportunity is the canonical record produced by normalization and held
// in the record store. (Source, ExternalID) is the upsert key and unique.
type Opportunity struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`

	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`

	Type   OpportunityType `json:"opportunity_type"`
	Format Format          `json:"format"`

	Location *Location `json:"location,omitempty"`
	Links    Links     `json:"urls"`

	Themes       []string `json:"themes,omitempty"`
	Technologies []string `json:"technologies,omitempty"`

	Prizes          []Prize  `json:"prizes,omitempty"`
	TotalPrizeValue *float64 `json:"total_prize_value,omitempty"`
	Currency        string   `json:"currency,omitempty"`

	TeamSizeMin *int `json:"team_size_min,omitempty"`
	TeamSizeMax *int `json:"team_size_max,omitempty"`

	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
	EventStartDate      *time.Time `json:"event_start_date,omitempty"`
	EventEndDate        *time.Time `json:"event_end_date,omitempty"`

	IsStudentOnly bool `json:"is_student_only"`
	IsActive      bool `json:"is_active"`

	// Embedding is the stored vector for semantic scoring. It is managed
	// by the indexer, never by the upsert path.
	Embedding []float32 `json:"-"`

	// Eligibility optionally carries an explicit rules DSL document for
	// this record; when present it replaces the synthesized rules.
	Eligibility json.RawMessage `json:"eligibility,omitempty"`

	// RawData retains the source payload for debugging.
	RawData json.RawMessage `json:"raw_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the record is active and its deadline, if any,
// has not passed. Derived, never stored.
func (o *Opportunity) IsOpen(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.ApplicationDeadline == nil {
		return true
	}
	return now.Before(*o.ApplicationDeadline)
}

// DaysUntilDeadline returns the whole days from now to the deadline,
// negative when the deadline has passed, and false when there is none.
// Floor division keeps a deadline one hour in the past at day -1, not 0.
func (o *Opportunity) DaysUntilDeadline(now time.Time) (int, bool) {
	if o.ApplicationDeadline == nil {
		return 0, false
	}
	hours := o.ApplicationDeadline.Sub(now).Hours()
	return int(math.Floor(hours / 24)), true
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the matching context for one user. Rows are written by the
// outer service layer; the core reads them and maintains the embedding.
type Profile struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	DisplayName string `json:"display_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
	ProfileType string `json:"profile_type,omitempty"`
	Stage       string `json:"stage,omitempty"`

	TechStack  []string `json:"tech_stack,omitempty"`
	Industries []string `json:"industries,omitempty"`
	Intents    []string `json:"intents,omitempty"`

	TeamSize   int    `json:"team_size"`
	Region     string `json:"region,omitempty"`
	IsStudent  bool   `json:"is_student"`
	IsRemoteOK bool   `json:"is_remote_ok"`

	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// MATCH
// =============================================================================

// FactorScore is one factor's contribution inside a match breakdown.
type FactorScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Match is the scored pairing of a profile and an opportunity.
// (ProfileID, OpportunityID) is unique.
type Match struct {
	ID            string `json:"id"`
	ProfileID     string `json:"profile_id"`
	OpportunityID string `json:"opportunity_id"`

	Score     float64                `json:"score"`
	Breakdown map[string]FactorScore `json:"breakdown"`
	Eligible  bool                   `json:"eligible"`

	Reasons      []string `json:"reasons,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
	MatchReasons []string `json:"match_reasons,omitempty"`

	Status MatchStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// SCRAPER RUN
// =============================================================================

// MaxRunErrors caps the error log carried by one run row.
const MaxRunErrors = 20

// ScraperRun is the audit record for one invocation of a source adapter.
// Immutable once it reaches a terminal status.
type ScraperRun struct {
	ID          string     `json:"id"`
	ScraperName string     `json:"scraper_name"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      RunStatus  `json:"status"`

	OpportunitiesFound   int `json:"opportunities_found"`
	OpportunitiesCreated int `json:"opportunities_created"`
	OpportunitiesUpdated int `json:"opportunities_updated"`

	Errors []string `json:"errors,omitempty"`
}

// AppendError records an error message, dropping anything past the cap.
func (r *ScraperRun) AppendError(msg string) {
	if len(r.Errors) >= MaxRunErrors {
		return
	}
	r.Errors = append(r.Errors, msg)
}
