package scrape

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"oppradar/internal/model"
)

// Default cadences for the background jobs.
const (
	defaultHealthInterval = 24 * time.Hour
	defaultSweepInterval  = 6 * time.Hour

	// deadlineWarningWindow is how far ahead the sweep looks for closing
	// opportunities.
	deadlineWarningWindow = 3
)

// Notifier receives deadline warnings from the sweep. Implementations must
// not block; the scheduler calls them inline.
type Notifier interface {
	DeadlineApproaching(opp model.Opportunity, daysLeft int)
}

// SweepStore is the persistence the sweep jobs need. *store.Store
// satisfies it.
type SweepStore interface {
	ActiveOpportunities(ctx context.Context, limit, offset int) ([]model.Opportunity, error)
	Maintenance(ctx context.Context) (int64, error)
}

// SchedulerConfig tunes the job cadences. Zero values take defaults.
type SchedulerConfig struct {
	ScrapeInterval time.Duration
	HealthInterval time.Duration
	SweepInterval  time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.ScrapeInterval <= 0 {
		c.ScrapeInterval = 6 * time.Hour
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = defaultHealthInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	return c
}

// Scheduler runs the periodic jobs: full scrapes, adapter health checks,
// and the deadline sweep.
type Scheduler struct {
	orch     *Orchestrator
	store    SweepStore
	notifier Notifier
	cfg      SchedulerConfig
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler wires the scheduler. notifier may be nil.
func NewScheduler(orch *Orchestrator, st SweepStore, notifier Notifier,
	cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		orch:     orch,
		store:    st,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		log:      log,
	}
}

// Start launches the job loops. The first scrape fires immediately; health
// and sweep wait for their first tick.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runScrape(ctx)
		ticker := time.NewTicker(s.cfg.ScrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runScrape(ctx)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runHealthCheck(ctx)
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runSweep(ctx)
			}
		}
	}()
}

// Stop cancels the loops and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.orch.Close()
}

func (s *Scheduler) runScrape(ctx context.Context) {
	runs, err := s.orch.RunAll(ctx)
	if err != nil {
		s.log.Error("scheduled scrape", zap.Error(err))
		return
	}
	s.log.Info("scheduled scrape complete", zap.Int("sources", len(runs)))
}

func (s *Scheduler) runHealthCheck(ctx context.Context) {
	for name, err := range s.orch.HealthCheck(ctx) {
		if err != nil {
			s.log.Warn("adapter unhealthy", zap.String("source", name), zap.Error(err))
		}
	}
}

// runSweep deactivates expired records and warns about imminent deadlines.
func (s *Scheduler) runSweep(ctx context.Context) {
	expired, err := s.store.Maintenance(ctx)
	if err != nil {
		s.log.Error("maintenance sweep", zap.Error(err))
		return
	}
	if expired > 0 {
		s.log.Info("expired opportunities deactivated", zap.Int64("count", expired))
	}

	if s.notifier == nil {
		return
	}
	now := time.Now().UTC()
	const page = 200
	for offset := 0; ; offset += page {
		opps, err := s.store.ActiveOpportunities(ctx, page, offset)
		if err != nil {
			s.log.Error("deadline sweep", zap.Error(err))
			return
		}
		if len(opps) == 0 {
			return
		}
		for _, opp := range opps {
			d, ok := opp.DaysUntilDeadline(now)
			if ok && d >= 0 && d <= deadlineWarningWindow {
				s.notifier.DeadlineApproaching(opp, d)
			}
		}
		if len(opps) < page {
			return
		}
	}
}
