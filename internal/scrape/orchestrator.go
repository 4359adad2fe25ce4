// Package scrape drives the ingestion pipeline: scheduler, per-source run
// loop, breaker-guarded page fetches, normalization, and the handoff to the
// embedding indexer.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"oppradar/internal/breaker"
	"oppradar/internal/embedding"
	"oppradar/internal/metrics"
	"oppradar/internal/model"
	"oppradar/internal/normalize"
	"oppradar/internal/source"
	"oppradar/internal/store"
)

// ErrSourceDisabled is returned when a run is requested for a source whose
// enable flag is off.
var ErrSourceDisabled = errors.New("source disabled")

// ErrUnknownSource is returned for names not in the registry.
var ErrUnknownSource = errors.New("unknown source")

// sourceConcurrency bounds how many sources scrape in parallel.
const sourceConcurrency = 4

// EnabledFlags answers per-source enable checks. Both the static config and
// the hot-reloading watcher satisfy it.
type EnabledFlags interface {
	SourceEnabled(name string) bool
}

// Embedder receives freshly upserted records. EmbedOpportunities must be
// safe to call from a background goroutine. *embedding.Indexer satisfies it.
type Embedder interface {
	EmbedOpportunities(ctx context.Context, opps []model.Opportunity, force bool) (embedding.Stats, error)
}

// Options tunes the orchestrator.
type Options struct {
	// MaxPages caps the listing pages fetched per source per run.
	MaxPages int
	// RequestDelay is the pause between page fetches within one source.
	RequestDelay time.Duration
	// Retry is applied to every page fetch.
	Retry breaker.RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.RequestDelay <= 0 {
		o.RequestDelay = 2 * time.Second
	}
	return o
}

// Orchestrator owns the per-source run loop.
type Orchestrator struct {
	registry *source.Registry
	breakers *breaker.Group
	store    *store.Store
	enabled  EnabledFlags
	embedder Embedder
	opts     Options
	log      *zap.Logger

	// embedWG tracks background embedding handoffs so Close can drain them.
	embedWG sync.WaitGroup
}

// New wires an orchestrator. embedder may be nil; enabled may be nil to
// treat every source as enabled.
func New(registry *source.Registry, breakers *breaker.Group, st *store.Store,
	enabled EnabledFlags, embedder Embedder, opts Options, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		breakers: breakers,
		store:    st,
		enabled:  enabled,
		embedder: embedder,
		opts:     opts.withDefaults(),
		log:      log,
	}
}

// RunAll scrapes every enabled source, a bounded number in parallel. Each
// source gets its own run row; one source failing never stops the others.
func (o *Orchestrator) RunAll(ctx context.Context) ([]*model.ScraperRun, error) {
	names := o.registry.Names()

	var mu sync.Mutex
	runs := make([]*model.ScraperRun, 0, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sourceConcurrency)
	for _, name := range names {
		g.Go(func() error {
			run, err := o.RunSource(ctx, name)
			if err != nil {
				if errors.Is(err, ErrSourceDisabled) {
					return nil
				}
				o.log.Error("source run failed", zap.String("source", name), zap.Error(err))
				return nil // isolated: other sources keep going
			}
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return runs, err
}

// RunSource executes one full scrape for a source and finalizes its run
// row. The returned run reflects the terminal state.
func (o *Orchestrator) RunSource(ctx context.Context, name string) (*model.ScraperRun, error) {
	adapter, ok := o.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if o.enabled != nil && !o.enabled.SourceEnabled(name) {
		return nil, fmt.Errorf("%w: %s", ErrSourceDisabled, name)
	}

	run, err := o.store.CreateScraperRun(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	started := time.Now()
	b := o.breakers.For(name)
	limiter := rate.NewLimiter(rate.Every(o.opts.RequestDelay), 1)

	var fresh []model.Opportunity
	anyPartial := false

	for page := 1; page <= o.opts.MaxPages; page++ {
		if err := limiter.Wait(ctx); err != nil {
			run.AppendError(err.Error())
			break
		}

		var result *source.ScrapeResult
		attempts, err := breaker.Execute(ctx, b, o.opts.Retry, func(ctx context.Context) error {
			r, err := adapter.ScrapeList(ctx, page)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		for _, a := range attempts {
			run.AppendError(fmt.Sprintf("page %d attempt %d: %v", page, a.Number, a.Err))
			metrics.ScrapeErrors.WithLabelValues(name, string(source.KindOf(a.Err))).Inc()
		}
		metrics.SetBreakerState(name, b.State())
		if err != nil {
			metrics.PagesScraped.WithLabelValues(name, "failed").Inc()
			if errors.Is(err, breaker.ErrOpen) {
				run.AppendError(err.Error())
			}
			break
		}
		metrics.PagesScraped.WithLabelValues(name, "success").Inc()

		if result.Status != source.StatusSuccess {
			anyPartial = true
		}
		for _, msg := range result.Errors {
			run.AppendError(fmt.Sprintf("page %d: %s", page, msg))
		}
		if result.UsedFallback() {
			o.log.Info("fallback table used", zap.String("source", name), zap.Int("page", page))
		}
		if len(result.Opportunities) == 0 {
			break
		}

		run.OpportunitiesFound += len(result.Opportunities)
		fresh = append(fresh, o.persistPage(ctx, name, run, result.Opportunities)...)
	}

	o.finalize(ctx, run, anyPartial)
	metrics.RunDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())

	if o.embedder != nil && len(fresh) > 0 {
		o.queueEmbedding(name, fresh)
	}
	return run, nil
}

// persistPage normalizes and upserts one page of raw records, returning the
// records that were inserted or changed (embedding candidates).
func (o *Orchestrator) persistPage(ctx context.Context, name string, run *model.ScraperRun, raws []source.Raw) []model.Opportunity {
	var fresh []model.Opportunity
	for _, raw := range raws {
		opp, warnings := normalize.Normalize(raw, name)
		for _, w := range warnings {
			o.log.Debug("normalization warning",
				zap.String("source", name),
				zap.String("external_id", raw.ExternalID),
				zap.String("warning", w))
		}

		res, err := o.store.UpsertOpportunity(ctx, &opp)
		if err != nil {
			run.AppendError(fmt.Sprintf("upsert %s: %v", raw.ExternalID, err))
			continue
		}
		metrics.RecordsUpserted.WithLabelValues(name, string(res.Kind)).Inc()
		switch res.Kind {
		case store.UpsertInserted:
			run.OpportunitiesCreated++
			fresh = append(fresh, opp)
		case store.UpsertUpdated:
			run.OpportunitiesUpdated++
			fresh = append(fresh, opp)
		}
	}
	return fresh
}

// finalize settles the run status: success with no errors, partial when
// something was persisted despite errors, failed otherwise.
func (o *Orchestrator) finalize(ctx context.Context, run *model.ScraperRun, anyPartial bool) {
	persisted := run.OpportunitiesCreated + run.OpportunitiesUpdated
	switch {
	case len(run.Errors) == 0 && !anyPartial:
		run.Status = model.RunSuccess
	case persisted > 0 || run.OpportunitiesFound > 0:
		run.Status = model.RunPartial
	default:
		run.Status = model.RunFailed
	}

	if err := o.store.FinalizeScraperRun(ctx, run); err != nil {
		o.log.Error("finalizing run", zap.String("run_id", run.ID), zap.Error(err))
	}
	o.log.Info("scrape run finished",
		zap.String("source", run.ScraperName),
		zap.String("status", string(run.Status)),
		zap.Int("found", run.OpportunitiesFound),
		zap.Int("created", run.OpportunitiesCreated),
		zap.Int("updated", run.OpportunitiesUpdated),
		zap.Int("errors", len(run.Errors)))
}

// queueEmbedding hands new records to the indexer without blocking
// ingestion.
func (o *Orchestrator) queueEmbedding(name string, opps []model.Opportunity) {
	o.embedWG.Add(1)
	go func() {
		defer o.embedWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		stats, err := o.embedder.EmbedOpportunities(ctx, opps, false)
		if err != nil {
			o.log.Warn("embedding queue", zap.String("source", name), zap.Error(err))
			return
		}
		o.log.Info("embedded new records",
			zap.String("source", name),
			zap.Int("ok", stats.Success),
			zap.Int("failed", stats.Failed))
	}()
}

// HealthCheck probes every registered adapter's base URL. The returned map
// has an entry per source; nil means reachable.
func (o *Orchestrator) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, name := range o.registry.Names() {
		adapter, _ := o.registry.Get(name)
		client := source.NewClient(name, 10*time.Second)
		out[name] = client.Head(ctx, adapter.BaseURL())
	}
	return out
}

// BreakerStates snapshots circuit state per source.
func (o *Orchestrator) BreakerStates() map[string]string {
	return o.breakers.States()
}

// Close drains background embedding work.
func (o *Orchestrator) Close() {
	o.embedWG.Wait()
}
