package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oppradar/internal/config"
	"oppradar/internal/model"
	"oppradar/internal/radar"
	"oppradar/internal/scrape"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the aggregator service: scheduled scrapes, sweeps, metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{scraping: true, embedding: embeddingConfigured(), watch: true})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		if a.metrics != nil {
			a.metrics.Start()
		}
		sched := scrape.NewScheduler(a.orch, a.store, nil, scrape.SchedulerConfig{
			ScrapeInterval: a.cfg.ScrapeInterval(),
		}, a.log.Named("scheduler"))
		sched.Start(ctx)
		a.log.Info("oppradar running",
			zap.Duration("scrape_interval", a.cfg.ScrapeInterval()),
			zap.String("db", a.cfg.Store.DatabasePath()))

		<-ctx.Done()
		a.log.Info("shutting down")
		sched.Stop()
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [source]",
	Short: "Scrape one source, or every enabled source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{scraping: true, embedding: embeddingConfigured()})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		runs, err := a.radar.TriggerScrape(ctx, name)
		if err != nil {
			return err
		}
		for _, run := range runs {
			fmt.Printf("%-20s %-8s found=%-4d created=%-4d updated=%-4d errors=%d\n",
				run.ScraperName, run.Status, run.OpportunitiesFound,
				run.OpportunitiesCreated, run.OpportunitiesUpdated, len(run.Errors))
		}
		return nil
	},
}

var (
	embedBatch   int
	embedForce   bool
	embedProfile string
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for records (or one profile) missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{embedding: true})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		if embedProfile != "" {
			if err := a.radar.EmbedProfile(ctx, embedProfile, embedForce); err != nil {
				return err
			}
			fmt.Printf("profile %s embedded\n", embedProfile)
			return nil
		}

		stats, err := a.radar.EmbedMissing(ctx, embedBatch, embedForce)
		if err != nil {
			return err
		}
		fmt.Printf("embedded %d of %d (failed=%d skipped=%d)\n",
			stats.Success, stats.Total, stats.Failed, stats.Skipped)
		return nil
	},
}

var (
	matchLimit    int
	matchMinScore float64
	matchStored   bool
)

var matchCmd = &cobra.Command{
	Use:   "match <profile-id>",
	Short: "Compute (or show stored) matches for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		profileID := args[0]
		if matchStored {
			matches, err := a.radar.TopMatches(ctx, profileID, matchLimit)
			if err != nil {
				return err
			}
			for i := range matches {
				printMatch(ctx, a, i+1, &matches[i])
			}
			return nil
		}

		matches, err := a.radar.ComputeMatches(ctx, profileID, matchLimit, matchMinScore)
		if err != nil {
			return err
		}
		for i, m := range matches {
			printMatch(ctx, a, i+1, m)
		}
		return nil
	},
}

func printMatch(ctx context.Context, a *app, rank int, m *model.Match) {
	title := m.OpportunityID
	if opp, err := a.radar.GetOpportunity(ctx, m.OpportunityID); err == nil && opp != nil {
		title = opp.Title
	}
	fmt.Printf("%2d. %.3f %-10s %s\n", rank, m.Score, m.Status, title)
	if len(m.MatchReasons) > 0 {
		fmt.Printf("       %s\n", strings.Join(m.MatchReasons, "; "))
	}
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show embedding coverage for the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		stats, err := a.radar.EmbeddingStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("opportunities:       %d\n", stats.Total)
		fmt.Printf("with embeddings:     %d\n", stats.WithEmbeddings)
		fmt.Printf("without embeddings:  %d\n", stats.WithoutEmbeddings)
		return nil
	},
}

var (
	listType     string
	listCategory string
	listSearch   string
	listLimit    int
	listSkip     int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		items, total, err := a.radar.ListOpportunities(ctx, radar.ListFilter{
			Type:     listType,
			Category: listCategory,
			Search:   listSearch,
			Skip:     listSkip,
			Limit:    listLimit,
		})
		if err != nil {
			return err
		}
		for _, opp := range items {
			deadline := "-"
			if opp.ApplicationDeadline != nil {
				deadline = opp.ApplicationDeadline.Format("2006-01-02")
			}
			fmt.Printf("%-12s %-12s %-10s %s\n", opp.Type, opp.Source, deadline, opp.Title)
		}
		fmt.Printf("%d of %d\n", len(items), total)
		return nil
	},
}

var (
	runsSource string
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent scraper run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := interruptContext()
		defer stop()

		runs, err := a.radar.ListScraperRuns(ctx, runsSource, model.RunStatus(runsStatus), runsLimit)
		if err != nil {
			return err
		}
		for _, run := range runs {
			dur := "-"
			if run.CompletedAt != nil {
				dur = run.CompletedAt.Sub(run.StartedAt).Round(time.Second).String()
			}
			fmt.Printf("%s  %-20s %-8s found=%-4d created=%-4d updated=%-4d errors=%-2d %s\n",
				run.StartedAt.Format("2006-01-02 15:04"), run.ScraperName, run.Status,
				run.OpportunitiesFound, run.OpportunitiesCreated, run.OpportunitiesUpdated,
				len(run.Errors), dur)
		}
		return nil
	},
}

// embeddingConfigured reports whether a provider key is available, so
// scraping commands can skip the embedding handoff instead of failing.
func embeddingConfigured() bool {
	cfg, err := config.Load(configPath)
	return err == nil && cfg.Embedding.APIKey != ""
}

func init() {
	embedCmd.Flags().IntVar(&embedBatch, "batch", 0, "batch size (default 50)")
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "re-embed records that already have vectors")
	embedCmd.Flags().StringVar(&embedProfile, "profile", "", "embed one profile instead of the catalog")

	matchCmd.Flags().IntVar(&matchLimit, "limit", 0, "max matches (default 50, stored view 10)")
	matchCmd.Flags().Float64Var(&matchMinScore, "min-score", 0, "score floor (default 0.3)")
	matchCmd.Flags().BoolVar(&matchStored, "stored", false, "show the stored ranking without recomputing")

	listCmd.Flags().StringVar(&listType, "type", "", "filter by opportunity type")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by theme category")
	listCmd.Flags().StringVar(&listSearch, "search", "", "substring search over title and description")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "page size (1-100)")
	listCmd.Flags().IntVar(&listSkip, "skip", 0, "offset into the result set")

	runsCmd.Flags().StringVar(&runsSource, "source", "", "filter by source name")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max rows")
}
