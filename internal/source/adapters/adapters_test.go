package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oppradar/internal/model"
	"oppradar/internal/normalize"
	"oppradar/internal/source"
)

func testClient(name string) *source.Client {
	return source.NewClient(name, 5*time.Second)
}

func TestBuildRegistryRoster(t *testing.T) {
	reg, err := BuildRegistry(Deps{})
	require.NoError(t, err)
	assert.Equal(t, 12, reg.Len())

	for _, name := range []string{
		"devpost", "mlh", "ethglobal", "hackerearth", "kaggle",
		"hackerone", "accelerators",
		"grants_gov", "sbir", "eu_horizon", "innovate_uk", "opensource_grants",
	} {
		a, ok := reg.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, a.SourceName())
		assert.NotEmpty(t, a.BaseURL())
	}
}

// Every curated entry must survive normalization: non-empty key, the type
// its source implies, and no warnings severe enough to drop the record.
func TestCuratedTablesRoundTripNormalization(t *testing.T) {
	tables := map[string][]source.Raw{
		"hackerone":         hackeroneCurated,
		"accelerators":      acceleratorsCurated,
		"grants_gov":        grantsGovCurated,
		"sbir":              sbirCurated,
		"eu_horizon":        euHorizonCurated,
		"innovate_uk":       innovateUKCurated,
		"opensource_grants": ossGrantsCurated,
	}
	wantType := map[string]model.OpportunityType{
		"hackerone":         model.TypeBounty,
		"accelerators":      model.TypeAccelerator,
		"grants_gov":        model.TypeGrant,
		"sbir":              model.TypeGrant,
		"eu_horizon":        model.TypeGrant,
		"innovate_uk":       model.TypeGrant,
		"opensource_grants": model.TypeGrant,
	}

	for sourceName, entries := range tables {
		require.NotEmpty(t, entries, sourceName)
		seen := make(map[string]bool)
		for _, raw := range entries {
			opp, warnings := normalize.Normalize(raw, sourceName)
			assert.NotEmpty(t, opp.ExternalID, "%s: %s", sourceName, raw.Title)
			assert.NotEmpty(t, opp.Title, "%s: %s", sourceName, raw.ExternalID)
			assert.NotEmpty(t, opp.Description, "%s: %s", sourceName, raw.ExternalID)
			assert.NotEmpty(t, opp.Links.Website, "%s: %s", sourceName, raw.ExternalID)
			assert.Equal(t, wantType[sourceName], opp.Type, "%s: %s", sourceName, raw.ExternalID)
			assert.Empty(t, warnings, "%s: %s", sourceName, raw.ExternalID)
			assert.False(t, seen[opp.ExternalID], "%s: duplicate id %s", sourceName, opp.ExternalID)
			seen[opp.ExternalID] = true
		}
	}
}

func TestDevpostParsesListing(t *testing.T) {
	const page = `<html><body>
	<div class="hackathon-tile">
	  <a href="/solar-hack-2026"><h3>Solar Hack 2026</h3></a>
	  <div class="submission-period">Dec 01 - Dec 17, 2026</div>
	  <div class="info-with-icon">Online</div>
	  <span class="prize-amount">$25,000</span>
	  <span class="theme-label">Climate</span>
	  <span class="theme-label">Energy</span>
	  <img src="/logos/solar.png">
	</div>
	<div class="hackathon-tile">
	  <a href="/berlin-ai-jam"><h3>Berlin AI Jam</h3></a>
	  <div class="info-with-icon">Berlin, Germany</div>
	</div>
	<div class="hackathon-tile"><p>broken tile</p></div>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(page))
	}))
	defer srv.Close()

	adapter := NewDevpost(NewClientFetcher(testClient("devpost")), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, result.Opportunities, 2)
	assert.Equal(t, source.StatusPartial, result.Status) // broken tile reported
	require.Len(t, result.Errors, 1)

	first := result.Opportunities[0]
	assert.Equal(t, "solar-hack-2026", first.ExternalID)
	assert.Equal(t, "Solar Hack 2026", first.Title)
	assert.True(t, first.IsOnline)
	assert.Equal(t, "$25,000", first.TotalPrizeText)
	assert.Equal(t, []string{"Climate", "Energy"}, first.Themes)
	assert.Equal(t, srv.URL+"/solar-hack-2026", first.WebsiteURL)

	second := result.Opportunities[1]
	assert.False(t, second.IsOnline)
	assert.Equal(t, "Berlin, Germany", second.City)
}

func TestMLHStopsAfterFirstPage(t *testing.T) {
	adapter := NewMLH(NewClientFetcher(testClient("mlh")), "http://unused.invalid")
	result, err := adapter.ScrapeList(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, result.Opportunities)
	assert.Equal(t, source.StatusSuccess, result.Status)
}

func TestMLHParsesEventCards(t *testing.T) {
	const page = `<html><body>
	<div class="event">
	  <a class="event-link" href="https://hackmit.org"></a>
	  <h3 class="event-name">HackMIT</h3>
	  <p class="event-date">Sep 12 - Sep 14, 2026</p>
	  <div class="event-location">Cambridge, US</div>
	</div>
	<div class="event">
	  <a class="event-link" href="https://globalhack.mlh.io"></a>
	  <h3 class="event-name">Global Hack Week</h3>
	  <div class="event-location">Everywhere, Worldwide</div>
	</div>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	adapter := NewMLH(NewClientFetcher(testClient("mlh")), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 2)

	assert.Equal(t, "Cambridge", result.Opportunities[0].City)
	assert.Equal(t, "US", result.Opportunities[0].Country)
	assert.True(t, result.Opportunities[0].StudentOnly)
	assert.True(t, result.Opportunities[1].IsOnline)
}

func TestGrantsGovParsesSearchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/api/search2", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"hitCount":2,"oppHits":[
			{"id":"358001","number":"NSF-26-501","title":"Clean Energy Research","agencyName":"NSF","openDate":"01/15/2026","closeDate":"12/17/2026"},
			{"id":"358002","number":"","title":"Rural Broadband","agencyName":"USDA","closeDate":"11/01/2026"}
		]}}`))
	}))
	defer srv.Close()

	adapter := NewGrantsGov(testClient("grants_gov"), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Opportunities), 2)
	assert.Equal(t, "NSF-26-501", result.Opportunities[0].ExternalID)
	assert.Equal(t, "12/17/2026", result.Opportunities[0].DeadlineText)
	assert.Equal(t, []string{"US"}, result.Opportunities[0].Regions)
	// Second hit falls back to the numeric id.
	assert.Equal(t, "358002", result.Opportunities[1].ExternalID)
	// Two live hits is under the threshold, so curated entries merged in.
	assert.True(t, result.UsedFallback())
}

func TestGrantsGovFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	adapter := NewGrantsGov(testClient("grants_gov"), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.UsedFallback())
	assert.Equal(t, source.StatusPartial, result.Status)
	assert.Len(t, result.Opportunities, len(grantsGovCurated))
	require.NotEmpty(t, result.Errors)

	// Past page one the failure propagates so the breaker sees it.
	_, err = adapter.ScrapeList(context.Background(), 2)
	require.Error(t, err)
	assert.Equal(t, source.KindTransientNetwork, source.KindOf(err))
}

func TestSBIRSkipsClosedSolicitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"solicitation_number":"N26A-T001","solicitation_title":"Navy STTR","agency":"DOD","program":"STTR","close_date":"2026-10-15","current_status":"open"},
			{"solicitation_number":"OLD-1","solicitation_title":"Closed One","current_status":"closed"}
		]`))
	}))
	defer srv.Close()

	adapter := NewSBIR(testClient("sbir"), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, raw := range result.Opportunities {
		ids[raw.ExternalID] = true
	}
	assert.True(t, ids["N26A-T001"])
	assert.False(t, ids["OLD-1"])
}

func TestEUHorizonParsesSearchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"totalResults":1,"results":[
			{"metadata":{"identifier":"HORIZON-EIC-2026-ACC-01","title":"EIC Accelerator Open","deadlineDate":"2026-10-01","status":"open"}}
		]}`))
	}))
	defer srv.Close()

	adapter := NewEUHorizon(testClient("eu_horizon"), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	require.NotEmpty(t, result.Opportunities)
	assert.Equal(t, "HORIZON-EIC-2026-ACC-01", result.Opportunities[0].ExternalID)
	assert.Equal(t, []string{"EU"}, result.Opportunities[0].Regions)
	assert.True(t, result.UsedFallback()) // one live hit is under threshold
}

func TestInnovateUKParsesCompetitions(t *testing.T) {
	const page = `<html><body><ul>
	<li class="competition-result">
	  <h2><a href="/competition/2041/overview">Smart Grants Autumn 2026</a></h2>
	  <p class="competition-description">R&D funding for UK businesses.</p>
	  <dd class="competition-deadline">17 December 2026</dd>
	  <dd class="competition-funding">£25 million</dd>
	</li>
	</ul></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		w.Write([]byte(page))
	}))
	defer srv.Close()

	adapter := NewInnovateUK(testClient("innovate_uk"), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	require.NotEmpty(t, result.Opportunities)
	first := result.Opportunities[0]
	assert.Equal(t, "2041", first.ExternalID)
	assert.Equal(t, "Smart Grants Autumn 2026", first.Title)
	assert.Equal(t, "17 December 2026", first.DeadlineText)
	assert.Equal(t, "£25 million", first.TotalPrizeText)
	assert.Equal(t, "GBP", first.Currency)
}

func TestHackerOneCuratedOnAntiBotWall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	adapter := NewHackerOne(NewClientFetcher(testClient("hackerone")), srv.URL)
	result, err := adapter.ScrapeList(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.UsedFallback())
	assert.Equal(t, source.StatusPartial, result.Status)
	assert.Len(t, result.Opportunities, len(hackeroneCurated))
}
