package adapters

import (
	"context"
	"fmt"

	"oppradar/internal/source"
)

const (
	sbirPageSize          = 25
	sbirFallbackThreshold = 3
)

// SBIR queries the sbir.gov public solicitations API.
type SBIR struct {
	client *source.Client
	base   string
}

func NewSBIR(client *source.Client, baseURL string) *SBIR {
	if baseURL == "" {
		baseURL = "https://api.www.sbir.gov"
	}
	return &SBIR{client: client, base: baseURL}
}

func (s *SBIR) SourceName() string { return "sbir" }
func (s *SBIR) BaseURL() string    { return s.base }

type sbirSolicitation struct {
	SolicitationNumber string `json:"solicitation_number"`
	SolicitationTitle  string `json:"solicitation_title"`
	Agency             string `json:"agency"`
	Program            string `json:"program"`
	OpenDate           string `json:"open_date"`
	CloseDate          string `json:"close_date"`
	SolicitationURL    string `json:"solicitation_agency_url"`
	CurrentStatus      string `json:"current_status"`
}

func (s *SBIR) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	url := fmt.Sprintf("%s/public/api/solicitations?format=json&rows=%d&start=%d",
		s.base, sbirPageSize, (page-1)*sbirPageSize)

	var solicitations []sbirSolicitation
	if err := s.client.GetJSON(ctx, url, &solicitations); err != nil {
		if page == 1 {
			result := &source.ScrapeResult{
				Opportunities: append([]source.Raw(nil), sbirCurated...),
				Status:        source.StatusPartial,
				Errors:        []string{err.Error()},
			}
			result.MarkFallback()
			return result, nil
		}
		return nil, err
	}

	result := &source.ScrapeResult{Status: source.StatusSuccess}
	for _, sol := range solicitations {
		if sol.SolicitationNumber == "" || sol.SolicitationTitle == "" {
			result.Errors = append(result.Errors, "solicitation missing number or title")
			result.Status = source.StatusPartial
			continue
		}
		if sol.CurrentStatus != "" && sol.CurrentStatus != "open" {
			continue
		}
		result.Opportunities = append(result.Opportunities, source.Raw{
			ExternalID:    sol.SolicitationNumber,
			Title:         sol.SolicitationTitle,
			Description:   fmt.Sprintf("%s %s solicitation.", sol.Agency, sol.Program),
			WebsiteURL:    sol.SolicitationURL,
			SourcePageURL: "https://www.sbir.gov/solicitations",
			DeadlineText:  sol.CloseDate,
			StartDateText: sol.OpenDate,
			IsOnline:      true,
			Regions:       []string{"US"},
		})
	}

	if page == 1 {
		merged, usedFallback := source.MergeFallback(result.Opportunities, sbirCurated, sbirFallbackThreshold)
		result.Opportunities = merged
		if usedFallback {
			result.MarkFallback()
		}
	}
	return result, nil
}

func (s *SBIR) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

// sbirCurated covers the agencies with standing annual solicitations.
// checked 2026-08.
var sbirCurated = []source.Raw{
	{
		ExternalID:     "dod-sbir-annual",
		Title:          "DoD SBIR/STTR Broad Agency Announcement",
		Description:    "Department of Defense small business innovation research, three release cycles per year.",
		WebsiteURL:     "https://www.defensesbirsttr.mil/",
		SourcePageURL:  "https://www.sbir.gov/solicitations",
		IsOnline:       true,
		TotalPrizeText: "$1,900,000",
		Regions:        []string{"US"},
	},
	{
		ExternalID:     "nasa-sbir-phase-1",
		Title:          "NASA SBIR Phase I",
		Description:    "Six-month feasibility studies for space technology, up to $150K.",
		WebsiteURL:     "https://sbir.nasa.gov/",
		SourcePageURL:  "https://www.sbir.gov/solicitations",
		IsOnline:       true,
		TotalPrizeText: "$150,000",
		Regions:        []string{"US"},
	},
	{
		ExternalID:    "hhs-sbir-omnibus",
		Title:         "HHS SBIR Omnibus Solicitation",
		Description:   "Health and Human Services small business grants for biomedical innovation.",
		WebsiteURL:    "https://sbir.nih.gov/funding",
		SourcePageURL: "https://www.sbir.gov/solicitations",
		IsOnline:      true,
		Regions:       []string{"US"},
	},
}
