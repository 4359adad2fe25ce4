// radar is the oppradar CLI: scheduled scraping, embedding backfills, match
// computation, and read access to the aggregated opportunity store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oppradar/internal/breaker"
	"oppradar/internal/browser"
	"oppradar/internal/config"
	"oppradar/internal/embedding"
	"oppradar/internal/logging"
	"oppradar/internal/match"
	"oppradar/internal/metrics"
	"oppradar/internal/radar"
	"oppradar/internal/scrape"
	"oppradar/internal/source/adapters"
	"oppradar/internal/store"
)

var (
	configPath string
	noBrowser  bool
)

var rootCmd = &cobra.Command{
	Use:   "radar",
	Short: "oppradar - opportunity aggregator and matcher",
	Long: `oppradar scrapes hackathons, grants, accelerators, bounty programs and
competitions from a dozen sources, normalizes them into one catalog, and
scores them against builder profiles using embeddings plus eligibility
rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "oppradar.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&noBrowser, "no-browser", false, "skip the headless browser; degrade browser sources to plain HTTP")

	rootCmd.AddCommand(runCmd, scrapeCmd, embedCmd, matchCmd, statsCmd, listCmd, runsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the wired services for one CLI invocation.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	pool    *browser.Pool
	indexer *embedding.Indexer
	orch    *scrape.Orchestrator
	radar   *radar.Radar
	watcher *config.Watcher
	metrics *metrics.Server
}

// appOptions selects which heavyweight collaborators a command needs.
type appOptions struct {
	scraping  bool // browser pool, adapter registry, orchestrator
	embedding bool // embedding engine (requires a provider key)
	watch     bool // config hot-reload + metrics endpoint, for long-running mode
}

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.DatabasePath(), log.Named("store"))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: st}

	if opts.embedding {
		if cfg.Embedding.APIKey == "" {
			a.close()
			return nil, fmt.Errorf("embedding.api_key not set (or OPENAI_API_KEY / GEMINI_API_KEY)")
		}
		engine, err := embedding.NewEngine(embedding.Config{
			Provider: cfg.Embedding.Provider,
			APIKey:   cfg.Embedding.APIKey,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.indexer = embedding.NewIndexer(st, engine, log.Named("embedding"))
	}

	if opts.scraping {
		if !noBrowser {
			a.pool = browser.NewPool(browser.DefaultConfig(), log.Named("browser"))
		}
		registry, err := adapters.BuildRegistry(adapters.Deps{
			Pool:           a.pool,
			RequestTimeout: cfg.RequestTimeout(),
		})
		if err != nil {
			a.close()
			return nil, err
		}

		var enabled scrape.EnabledFlags = cfg
		if opts.watch {
			w, err := config.NewWatcher(configPath, cfg.Scraper.Sources, log.Named("config"))
			if err != nil {
				log.Warn("config watch unavailable", zap.Error(err))
			} else if w != nil {
				a.watcher = w
				enabled = w
			}
		}

		breakers := breaker.NewGroup(breaker.Settings{
			FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
			ResetTimeout:     cfg.ResetTimeout(),
			HalfOpenMaxCalls: uint32(cfg.Breaker.HalfOpenMaxCalls),
		}, log.Named("breaker"))

		var emb scrape.Embedder
		if a.indexer != nil {
			emb = a.indexer
		}
		a.orch = scrape.New(registry, breakers, st, enabled, emb, scrape.Options{
			MaxPages:     cfg.Scraper.MaxPages,
			RequestDelay: cfg.RequestDelay(),
		}, log.Named("scrape"))
	}

	if opts.watch && cfg.Metrics.ListenAddr != "" {
		a.metrics = metrics.NewServer(cfg.Metrics.ListenAddr, log.Named("metrics"))
	}

	matcher := match.NewService(st, match.NewScorer(), log.Named("match"))
	// Assign through locals so a nil *Indexer or *Orchestrator stays a nil
	// interface inside the facade.
	var ix radar.Indexer
	if a.indexer != nil {
		ix = a.indexer
	}
	var sc radar.Scraper
	if a.orch != nil {
		sc = a.orch
	}
	a.radar = radar.New(st, matcher, ix, sc, log.Named("radar"))
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if a.metrics != nil {
		_ = a.metrics.Shutdown(ctx)
	}
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.orch != nil {
		a.orch.Close()
	}
	if a.pool != nil {
		a.pool.Shutdown(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// interruptContext returns a context cancelled on SIGINT/SIGTERM.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
