package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/actuaryhelp/casefeed/internal/analyze"
	"github.com/actuaryhelp/casefeed/internal/collect"
	"github.com/actuaryhelp/casefeed/internal/config"
	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/llm"
	"github.com/actuaryhelp/casefeed/internal/platform/observability"
	"github.com/actuaryhelp/casefeed/internal/publish"
	"github.com/actuaryhelp/casefeed/internal/review"
	"github.com/actuaryhelp/casefeed/internal/runs"
	"github.com/actuaryhelp/casefeed/internal/screen"
	"github.com/actuaryhelp/casefeed/internal/storage"
)

const usage = `Usage: pipeline <command>

Stages:
  collect   gather raw items from RSS feeds, websites and model search
  screen    run the three-gate filter over pending items
  analyze   produce bilingual five-layer cases from passed items
  review    re-audit non-rejected cases
  publish   publish today's ready cases

Management:
  status         print publication status and recent runs
  add-source     register a new content source
  source-status  set a source to active, probation or disabled
  migrate        apply database migrations and exit
`

func main() {
	// Setup logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	stage := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	setLogLevel(cfg.LogLevel)

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Connect storage
	db, err := storage.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx, &logger); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if stage == "migrate" {
		logger.Info().Msg("Migrations applied")
		return
	}

	// Start health server
	healthServer := observability.NewServer(db, cfg.HealthPort, &logger)

	go func() {
		logger.Info().Int("port", cfg.HealthPort).Msg("Starting health server")

		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()

	if err := run(ctx, stage, cfg, db, &logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("Pipeline interrupted")
			return
		}

		logger.Fatal().Err(err).Str("stage", stage).Msg("Pipeline stage failed")
	}

	logger.Info().Str("stage", stage).Msg("Pipeline stage finished")
}

func run(ctx context.Context, stage string, cfg *config.Config, db *storage.DB, logger *zerolog.Logger) error {
	tracker := runs.New(db, logger)

	switch stage {
	case "collect":
		llmClient := llm.New(ctx, cfg, logger)
		return tracker.Run(ctx, "collect", collect.New(cfg, db, llmClient, logger).Run)
	case "screen":
		llmClient := llm.New(ctx, cfg, logger)
		return tracker.Run(ctx, "screen", screen.New(cfg, db, llmClient, logger).Run)
	case "analyze":
		llmClient := llm.New(ctx, cfg, logger)
		return tracker.Run(ctx, "analyze", analyze.New(cfg, db, llmClient, logger).Run)
	case "review":
		llmClient := llm.New(ctx, cfg, logger)
		return tracker.Run(ctx, "review", review.New(cfg, db, llmClient, logger).Run)
	case "publish":
		return tracker.Run(ctx, "publish", publish.New(cfg, db, logger).Run)
	case "status":
		return printStatus(ctx, cfg, db, logger)
	case "add-source":
		return addSource(ctx, db, os.Args[2:])
	case "source-status":
		return setSourceStatus(ctx, db, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown stage %q", stage)
	}
}

func addSource(ctx context.Context, db *storage.DB, args []string) error {
	fs := flag.NewFlagSet("add-source", flag.ContinueOnError)
	name := fs.String("name", "", "source name")
	rawURL := fs.String("url", "", "feed or page URL")
	sourceType := fs.String("type", "rss", "rss, website or ai_search")
	language := fs.String("language", "en", "primary content language")
	region := fs.String("region", "global", "region the source covers")
	frequency := fs.String("frequency", "4 hours", "check frequency interval")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" || *rawURL == "" {
		return errors.New("add-source requires -name and -url")
	}

	switch domain.SourceType(*sourceType) {
	case domain.SourceRSS, domain.SourceWebsite, domain.SourceAISearch:
	default:
		return fmt.Errorf("unknown source type %q", *sourceType)
	}

	source := &domain.Source{
		Name:           *name,
		URL:            *rawURL,
		Type:           domain.SourceType(*sourceType),
		Language:       *language,
		Region:         *region,
		QualityScore:   0.5,
		CheckFrequency: *frequency,
		Status:         domain.SourceActive,
	}

	if err := db.InsertSource(ctx, source); err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	fmt.Printf("Added source %s (%s)\n", source.Name, source.ID)

	return nil
}

func setSourceStatus(ctx context.Context, db *storage.DB, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: pipeline source-status <source-id> <active|probation|disabled>")
	}

	status := domain.SourceStatus(args[1])

	switch status {
	case domain.SourceActive, domain.SourceProbation, domain.SourceDisabled:
	default:
		return fmt.Errorf("unknown source status %q", args[1])
	}

	if err := db.UpdateSourceStatus(ctx, args[0], status); err != nil {
		return fmt.Errorf("update source status: %w", err)
	}

	fmt.Printf("Source %s is now %s\n", args[0], status)

	return nil
}

func printStatus(ctx context.Context, cfg *config.Config, db *storage.DB, logger *zerolog.Logger) error {
	status, err := publish.New(cfg, db, logger).Status(ctx)
	if err != nil {
		return err
	}

	counts, err := db.CaseStatusCounts(ctx)
	if err != nil {
		return err
	}

	pending, err := db.CountPendingRawItems(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Published today: %d/%d\n", status.PublishedToday, status.Target)
	fmt.Println("Coverage by cell:")

	for _, cell := range domain.MatrixCells() {
		fmt.Printf("  %-20s %d\n", cell.Key(), status.CoverageByCell[cell.Key()])
	}

	fmt.Println("Cases by status:")

	for _, s := range []domain.CaseStatus{domain.CasePendingSupplement, domain.CaseReady, domain.CasePublished, domain.CaseRejected} {
		fmt.Printf("  %-20s %d\n", string(s), counts[s])
	}

	fmt.Printf("Raw items pending screening: %d\n", pending)

	recent, err := db.RecentPipelineRuns(ctx, 5)
	if err != nil {
		return err
	}

	fmt.Println("Recent runs:")

	for _, run := range recent {
		fmt.Printf("  %-10s %-10s started %s  processed=%d succeeded=%d failed=%d\n",
			run.PipelineName, string(run.Status), run.StartedAt.Format(time.RFC3339),
			run.Stats.Processed, run.Stats.Succeeded, run.Stats.Failed)
	}

	return nil
}

// setLogLevel sets the global log level based on the configuration.
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
