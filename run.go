package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"menuqa/pricevalidator/config"
	"menuqa/pricevalidator/internal/browser"
	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/internal/ingest"
	"menuqa/pricevalidator/internal/reconcile"
	"menuqa/pricevalidator/internal/report"
	"menuqa/pricevalidator/internal/scraper"
	"menuqa/pricevalidator/internal/web"
	"menuqa/pricevalidator/logger"
	apperr "menuqa/pricevalidator/pkg/errors"
	"menuqa/pricevalidator/services/cache"
	"menuqa/pricevalidator/services/jobs"
	"menuqa/pricevalidator/services/publisher"
)

type runOptions struct {
	province    string
	cartCapture bool
	progress    func(string)
	stage       func(int)       // percentage milestones, nil for CLI runs
	console     *report.Console // nil suppresses terminal output
}

type runOutcome struct {
	reportPath      string
	result          *reconcile.Result
	failedLocations int
}

// runCLI executes one validation run from the command line and maps the
// outcome onto the documented exit codes.
func runCLI(parent context.Context, cfg *config.Config, flags *cliFlags) error {
	ctx, stop := signalContext(parent)
	defer stop()

	opts := runOptions{
		province:    flags.province,
		cartCapture: cfg.CartPrices,
		console:     report.NewConsole(os.Stdout),
	}

	outcome, err := executeRun(ctx, cfg, opts)
	if err != nil {
		return exitWith(classifyError(err), err)
	}

	if outcome.failedLocations > 0 || len(outcome.result.Discrepancies) > 0 {
		return exitWith(exitDiscrepancy, nil)
	}
	return nil
}

// executeRun is the full pipeline: load inputs, collect prices, reconcile,
// write the report. Shared by the CLI and the web dashboard.
func executeRun(ctx context.Context, cfg *config.Config, opts runOptions) (*runOutcome, error) {
	startedAt := time.Now()
	stage := opts.stage
	if stage == nil {
		stage = func(int) {}
	}
	stage(5)

	locations, err := loadRunLocations(cfg, opts.province)
	if err != nil {
		return nil, err
	}
	stage(10)
	expected, err := loadRunExpected(cfg)
	if err != nil {
		return nil, err
	}
	stage(15)

	if opts.console != nil {
		opts.console.Banner(cfg.BaseURL, len(locations), len(expected), opts.cartCapture)
	}

	b, err := browser.Launch(cfg.Headless, cfg.PageTimeout, cfg.ActionTimeout)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	defer b.Close()

	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		cacheSvc = cache.NewMemcacheService(cfg.MemcacheAddr)
	}
	var pub publisher.Publisher
	if cfg.RedisAddr != "" {
		redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		defer redisPub.Close()
		pub = redisPub
	}

	orch := scraper.NewOrchestrator(b, scraper.OrchestratorConfig{
		Session: scraper.SessionConfig{
			BaseURL:       cfg.BaseURL,
			MinDelay:      cfg.MinDelay,
			MaxDelay:      cfg.MaxDelay,
			RetryAttempts: cfg.RetryAttempts,
			CaptureCart:   opts.cartCapture,
		},
		Selectors:     scraper.DefaultSelectors(),
		MaxConcurrent: cfg.MaxConcurrent,
		SnapshotDir:   cfg.SnapshotDir,
		Cooldown:      cfg.Cooldown,
	}, cacheSvc, pub, opts.progress)
	stage(20)

	records, failed := orch.Run(ctx, locations)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	stage(80)

	engine := reconcile.NewEngine(cfg.Tolerance)
	result := engine.Compare(expected, records)
	provinces := reconcile.SummaryByProvince(result.Details)

	var cartRows []reconcile.CartRow
	var combined []reconcile.CombinedRow
	if opts.cartCapture {
		cartRows = engine.CompareCart(records)
		combined = engine.CompareThreeWay(expected, records, true)
	}

	reportPath, err := report.NewExcelWriter(cfg.OutputDir).Write(result, provinces, cartRows, combined, report.Timing{
		StartedAt:   startedAt,
		EndedAt:     time.Now(),
		Locations:   len(locations),
		CartCapture: opts.cartCapture,
	})
	if err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}
	stage(90)

	if opts.console != nil {
		opts.console.Summary(result, provinces)
		opts.console.Discrepancies(result.Discrepancies, 20)
		fmt.Println("Report: " + reportPath)
	}
	for _, f := range failed {
		logger.Default.Error().Err(f.Err).Str("location", f.Location.StoreName).Msg("Location not collected")
	}

	return &runOutcome{
		reportPath:      reportPath,
		result:          result,
		failedLocations: len(failed),
	}, nil
}

func loadRunLocations(cfg *config.Config, province string) ([]domain.Location, error) {
	if _, err := os.Stat(cfg.LocationsFile); err != nil {
		return nil, fmt.Errorf("locations file: %w", err)
	}
	locations, err := ingest.LoadLocations(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	locations = ingest.FilterProvince(locations, province)
	if len(locations) == 0 {
		return nil, apperr.NewValidation("no locations match the requested province filter")
	}
	return locations, nil
}

// loadRunExpected prefers the master pricing document when one is
// configured, falling back to the flat workbook.
func loadRunExpected(cfg *config.Config) ([]domain.ExpectedPrice, error) {
	if cfg.MasterFile != "" {
		if _, err := os.Stat(cfg.MasterFile); err != nil {
			return nil, fmt.Errorf("master document: %w", err)
		}
		return ingest.NewMasterParser().Parse(cfg.MasterFile)
	}
	if _, err := os.Stat(cfg.ExpectedFile); err != nil {
		return nil, fmt.Errorf("expected-price workbook: %w", err)
	}
	return ingest.LoadExpectedPrices(cfg.ExpectedFile)
}

// classifyError maps a pipeline failure to an exit code.
func classifyError(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	if errors.Is(err, os.ErrNotExist) {
		return exitMissingInput
	}
	var se *apperr.ScrapeError
	if errors.As(err, &se) {
		switch se.Type {
		case apperr.ErrorTypeValidation, apperr.ErrorTypeConfiguration:
			return exitValidation
		}
	}
	return exitUnexpected
}

// runServer hosts the dashboard until interrupted.
func runServer(parent context.Context, cfg *config.Config, flags *cliFlags) error {
	ctx, stop := signalContext(parent)
	defer stop()

	tracker := jobs.NewTracker(cfg.JobRetention)
	runFn := func(runCtx context.Context, req web.RunRequest, progress web.Progress) (web.RunResult, error) {
		outcome, err := executeRun(runCtx, cfg, runOptions{
			province:    req.Province,
			cartCapture: req.CartCapture || cfg.CartPrices,
			progress:    progress.Step,
			stage:       progress.Percent,
		})
		if err != nil {
			return web.RunResult{}, err
		}
		return web.RunResult{ReportPath: outcome.reportPath, Summary: outcome.result.SummaryLine}, nil
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort),
		Handler: web.NewServer(tracker, runFn).Router(),
	}

	// Periodically collect expired jobs while serving.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracker.Cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Default.Info().Str("addr", srv.Addr).Msg("Dashboard listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return exitWith(exitInterrupted, nil)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitWith(exitUnexpected, err)
		}
	}
	return nil
}
