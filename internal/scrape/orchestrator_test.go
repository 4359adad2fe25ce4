package scrape

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"oppradar/internal/breaker"
	"oppradar/internal/embedding"
	"oppradar/internal/model"
	"oppradar/internal/source"
	"oppradar/internal/store"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a stats worker in a package init via an
	// indirect dependency; it is not a leak from the code under test.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// fakeAdapter scripts per-page outcomes.
type fakeAdapter struct {
	name     string
	pages    map[int][]source.Raw
	failures map[int][]error // errors returned before the page succeeds
	calls    int
}

func (f *fakeAdapter) SourceName() string { return f.name }
func (f *fakeAdapter) BaseURL() string    { return "https://example.com" }

func (f *fakeAdapter) ScrapeList(ctx context.Context, page int) (*source.ScrapeResult, error) {
	f.calls++
	if errs := f.failures[page]; len(errs) > 0 {
		err := errs[0]
		f.failures[page] = errs[1:]
		return nil, err
	}
	return &source.ScrapeResult{
		Opportunities: f.pages[page],
		Status:        source.StatusSuccess,
	}, nil
}

func (f *fakeAdapter) ScrapeDetail(ctx context.Context, externalID, url string) (*source.Raw, error) {
	return nil, nil
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "radar.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fastOptions() Options {
	return Options{
		MaxPages:     10,
		RequestDelay: time.Millisecond,
		Retry:        breaker.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func newTestOrchestrator(t *testing.T, adapter source.Adapter, st *store.Store, opts Options) (*Orchestrator, *breaker.Group) {
	t.Helper()
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(adapter))
	breakers := breaker.NewGroup(breaker.Settings{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	}, zap.NewNop())
	return New(reg, breakers, st, nil, nil, opts, zap.NewNop()), breakers
}

func TestRunSourceHappyPath(t *testing.T) {
	st := testStore(t)
	adapter := &fakeAdapter{
		name: "devpost",
		pages: map[int][]source.Raw{
			1: {
				{ExternalID: "a", Title: "Hack A", Description: "first"},
				{ExternalID: "b", Title: "Hack B", Description: "second"},
			},
			// page 2 empty: pagination terminates.
		},
	}
	orch, _ := newTestOrchestrator(t, adapter, st, fastOptions())

	run, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 2, run.OpportunitiesFound)
	assert.Equal(t, 2, run.OpportunitiesCreated)
	assert.Zero(t, run.OpportunitiesUpdated)
	assert.Empty(t, run.Errors)
	assert.NotNil(t, run.CompletedAt)

	// Re-scrape of identical data changes nothing.
	run2, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run2.Status)
	assert.Zero(t, run2.OpportunitiesCreated)
	assert.Zero(t, run2.OpportunitiesUpdated)

	items, total, err := st.ListOpportunities(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}

func TestRunSourceOpensBreakerAfterRepeatedFailures(t *testing.T) {
	st := testStore(t)
	transient := source.NewError(source.KindTransientNetwork, "devpost", "fetch",
		fmt.Errorf("connection reset"))
	adapter := &fakeAdapter{
		name: "devpost",
		failures: map[int][]error{
			1: {transient, transient, transient, transient, transient},
		},
		pages: map[int][]source.Raw{
			2: {{ExternalID: "late", Title: "Too Late"}},
		},
	}
	opts := fastOptions()
	opts.Retry.MaxAttempts = 5
	orch, breakers := newTestOrchestrator(t, adapter, st, opts)

	run, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)

	// Five attempts burned on page 1; the breaker opens and the run ends
	// before page 2 is ever fetched.
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Len(t, run.Errors, 5)
	assert.Zero(t, run.OpportunitiesFound)
	assert.Equal(t, 5, adapter.calls)
	assert.Equal(t, breaker.StateOpen, breakers.For("devpost").State())

	// The next run is refused outright while the circuit is open.
	run2, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run2.Status)
	assert.Equal(t, 5, adapter.calls) // no new adapter call
}

func TestRunSourcePartialOnPageErrors(t *testing.T) {
	st := testStore(t)
	transient := source.NewError(source.KindSourceParse, "devpost", "fetch",
		fmt.Errorf("layout changed"))
	adapter := &fakeAdapter{
		name: "devpost",
		pages: map[int][]source.Raw{
			1: {{ExternalID: "a", Title: "Hack A"}},
		},
		failures: map[int][]error{
			2: {transient},
		},
	}
	orch, _ := newTestOrchestrator(t, adapter, st, fastOptions())

	run, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, run.Status)
	assert.Equal(t, 1, run.OpportunitiesCreated)
	assert.NotEmpty(t, run.Errors)
}

func TestRunSourceDisabled(t *testing.T) {
	st := testStore(t)
	adapter := &fakeAdapter{name: "devpost"}
	orch, _ := newTestOrchestrator(t, adapter, st, fastOptions())
	orch.enabled = flags{"devpost": false}

	_, err := orch.RunSource(context.Background(), "devpost")
	assert.ErrorIs(t, err, ErrSourceDisabled)
	assert.Zero(t, adapter.calls)
}

func TestRunSourceUnknown(t *testing.T) {
	st := testStore(t)
	orch, _ := newTestOrchestrator(t, &fakeAdapter{name: "devpost"}, st, fastOptions())
	_, err := orch.RunSource(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

type flags map[string]bool

func (f flags) SourceEnabled(name string) bool { return f[name] }

type captureEmbedder struct {
	mu   sync.Mutex
	seen []string
}

func (c *captureEmbedder) EmbedOpportunities(ctx context.Context, opps []model.Opportunity, force bool) (embedding.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range opps {
		c.seen = append(c.seen, o.ExternalID)
	}
	return embedding.Stats{Total: len(opps), Success: len(opps)}, nil
}

func TestNewRecordsAreQueuedForEmbedding(t *testing.T) {
	st := testStore(t)
	adapter := &fakeAdapter{
		name: "devpost",
		pages: map[int][]source.Raw{
			1: {{ExternalID: "a", Title: "Hack A"}},
		},
	}
	emb := &captureEmbedder{}
	orch, _ := newTestOrchestrator(t, adapter, st, fastOptions())
	orch.embedder = emb

	_, err := orch.RunSource(context.Background(), "devpost")
	require.NoError(t, err)
	orch.Close()

	assert.Equal(t, []string{"a"}, emb.seen)
}

func TestRunAllIsolatesSources(t *testing.T) {
	st := testStore(t)
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(&fakeAdapter{
		name:  "devpost",
		pages: map[int][]source.Raw{1: {{ExternalID: "a", Title: "Hack A"}}},
	}))
	failing := source.NewError(source.KindTransientNetwork, "mlh", "fetch", fmt.Errorf("down"))
	require.NoError(t, reg.Register(&fakeAdapter{
		name:     "mlh",
		failures: map[int][]error{1: {failing, failing, failing}},
	}))

	breakers := breaker.NewGroup(breaker.Settings{FailureThreshold: 5, ResetTimeout: time.Minute}, zap.NewNop())
	orch := New(reg, breakers, st, nil, nil, fastOptions(), zap.NewNop())

	runs, err := orch.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byName := map[string]*model.ScraperRun{}
	for _, r := range runs {
		byName[r.ScraperName] = r
	}
	assert.Equal(t, model.RunSuccess, byName["devpost"].Status)
	assert.Equal(t, model.RunFailed, byName["mlh"].Status)
}
