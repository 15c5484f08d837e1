package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"menuqa/pricevalidator/internal/browser"
	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/logger"
	"menuqa/pricevalidator/services/cache"
	"menuqa/pricevalidator/services/publisher"
)

// LocationError records one failed location. Failures are isolated: they are
// reported here and never abort sibling locations.
type LocationError struct {
	Location domain.Location
	Err      error
}

// OrchestratorConfig carries the run-wide scraping parameters.
type OrchestratorConfig struct {
	Session       SessionConfig
	Selectors     SelectorConfig
	MaxConcurrent int
	SnapshotDir   string

	// Cooldown skips any store scraped within this window. Zero disables it.
	Cooldown time.Duration
}

// Orchestrator runs one session per location with bounded concurrency over a
// single shared browser process and aggregates the collected records.
type Orchestrator struct {
	browser   browser.Browser
	cfg       OrchestratorConfig
	snapshots *Snapshotter
	cacheSvc  cache.CacheService
	pub       publisher.Publisher
	progress  func(string)
	log       *logger.Logger

	// sessionSleep overrides the runners' sleep in tests.
	sessionSleep func(time.Duration)
}

// NewOrchestrator creates an orchestrator. cacheSvc, pub and progress may
// all be nil.
func NewOrchestrator(b browser.Browser, cfg OrchestratorConfig, cacheSvc cache.CacheService, pub publisher.Publisher, progress func(string)) *Orchestrator {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if progress == nil {
		progress = func(string) {}
	}
	return &Orchestrator{
		browser:   b,
		cfg:       cfg,
		snapshots: NewSnapshotter(cfg.SnapshotDir),
		cacheSvc:  cacheSvc,
		pub:       pub,
		progress:  progress,
		log:       logger.ForScraper(),
	}
}

// Run collects prices for every location. The returned records hold all
// successfully scraped locations; failed locations come back separately.
func (o *Orchestrator) Run(ctx context.Context, locations []domain.Location) ([]domain.PriceRecord, []LocationError) {
	if len(locations) == 0 {
		o.log.Warn().Msg("No locations configured")
		return nil, nil
	}

	o.log.Info().Int("location_count", len(locations)).
		Int("max_concurrent", o.cfg.MaxConcurrent).Msg("Starting collection")

	sem := make(chan struct{}, o.cfg.MaxConcurrent)

	var (
		mu      sync.Mutex
		records []domain.PriceRecord
		failed  []LocationError
		wg      sync.WaitGroup
	)

	for _, loc := range locations {
		wg.Add(1)
		go func(loc domain.Location) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			locRecords, err := o.collectLocation(ctx, loc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.log.Error().Err(err).Str("location", loc.StoreName).Msg("Location failed")
				failed = append(failed, LocationError{Location: loc, Err: err})
				return
			}
			records = append(records, locRecords...)
		}(loc)
	}

	wg.Wait()

	o.log.Info().Int("total_prices", len(records)).Int("failed_locations", len(failed)).
		Msg("Collection complete")
	return records, failed
}

func (o *Orchestrator) collectLocation(ctx context.Context, loc domain.Location) ([]domain.PriceRecord, error) {
	if o.onCooldown(loc) {
		o.log.Info().Str("location", loc.StoreName).Msg("Store on cooldown, skipping")
		o.progress(fmt.Sprintf("%s skipped (scraped recently)", loc.StoreName))
		return nil, nil
	}

	page, release, err := o.browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer release()

	runner := NewSessionRunner(page, o.cfg.Session, o.cfg.Selectors, o.snapshots, o.progress)
	if o.sessionSleep != nil {
		runner.sleep = o.sessionSleep
		runner.cart.sleep = o.sessionSleep
	}
	records, err := runner.Collect(ctx, loc)
	if err != nil {
		return nil, err
	}

	o.markScraped(loc)
	o.publishRecords(records)
	return records, nil
}

func (o *Orchestrator) onCooldown(loc domain.Location) bool {
	if o.cacheSvc == nil || o.cfg.Cooldown <= 0 {
		return false
	}
	_, err := o.cacheSvc.Get(cooldownKey(loc))
	return err == nil
}

func (o *Orchestrator) markScraped(loc domain.Location) {
	if o.cacheSvc == nil || o.cfg.Cooldown <= 0 {
		return
	}
	if err := o.cacheSvc.Set(cooldownKey(loc), []byte("1"), o.cfg.Cooldown); err != nil {
		o.log.Warn().Err(err).Str("location", loc.StoreName).Msg("Cooldown mark failed")
	}
}

func cooldownKey(loc domain.Location) string {
	return "cooldown:" + loc.StoreName
}

// publishRecords streams collected records to the optional publisher. A
// publish failure is observational only.
func (o *Orchestrator) publishRecords(records []domain.PriceRecord) {
	if o.pub == nil {
		return
	}
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if err := o.pub.Publish("price_record", data); err != nil {
			o.log.Warn().Err(err).Msg("Record publish failed")
			return
		}
	}
}
