package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"menuqa/pricevalidator/internal/browser"
	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/logger"
	apperr "menuqa/pricevalidator/pkg/errors"
)

// SessionConfig carries the per-run parameters a session needs.
type SessionConfig struct {
	BaseURL       string
	MinDelay      time.Duration
	MaxDelay      time.Duration
	RetryAttempts int
	CaptureCart   bool

	// RenderWait is the fixed pause after category navigation that gives
	// client-side rendering time to finish.
	RenderWait time.Duration
}

// SessionRunner drives one browser page through one store location: select
// the location, then scrape every category in order, optionally confirming
// prices through the cart.
type SessionRunner struct {
	page      browser.Page
	cfg       SessionConfig
	selectors SelectorConfig
	extractor *Extractor
	cart      *CartVerifier
	snapshots *Snapshotter
	progress  func(string)
	log       *logger.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewSessionRunner creates a runner bound to one page. progress may be nil.
func NewSessionRunner(page browser.Page, cfg SessionConfig, selectors SelectorConfig, snapshots *Snapshotter, progress func(string)) *SessionRunner {
	if progress == nil {
		progress = func(string) {}
	}
	if cfg.RenderWait == 0 {
		cfg.RenderWait = 2 * time.Second
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	r := &SessionRunner{
		page:      page,
		cfg:       cfg,
		selectors: selectors,
		extractor: NewExtractor(selectors),
		cart:      NewCartVerifier(page, selectors),
		snapshots: snapshots,
		progress:  progress,
		log:       logger.ForScraper(),
		sleep:     time.Sleep,
	}
	return r
}

// Collect scrapes all categories for one location, retrying the whole
// routine on transient network failures with exponential backoff. Anything
// non-transient propagates immediately.
func (r *SessionRunner) Collect(ctx context.Context, loc domain.Location) ([]domain.PriceRecord, error) {
	r.log = logger.ForSession(loc.StoreName)

	var lastErr error
	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			r.log.Info().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying location")
			r.sleep(backoff)
		}

		records, err := r.collectOnce(ctx, loc)
		if err == nil {
			return records, nil
		}
		if !apperr.Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (r *SessionRunner) collectOnce(ctx context.Context, loc domain.Location) ([]domain.PriceRecord, error) {
	r.log.Info().Str("province", loc.Province).Str("base_url", r.cfg.BaseURL).Msg("Collecting prices")
	r.progress(fmt.Sprintf("%s (%s) - opening browser", loc.StoreName, loc.Province))

	r.jitter()

	if err := r.page.Navigate(r.cfg.BaseURL); err != nil {
		return nil, apperr.NewNetwork(loc.StoreName, "failed to open site root", err)
	}

	r.jitter()

	// Try the store's leading name token first, then the full address. A
	// failed selection is not fatal: the site may already have a usable
	// default location applied.
	query := loc.StoreName
	if fields := strings.Fields(loc.StoreName); len(fields) > 0 {
		query = fields[0]
	}
	if !r.selectLocation(loc, query) && !r.selectLocation(loc, loc.Address) {
		r.log.Error().Msg("Location selection failed")
		r.progress(fmt.Sprintf("Failed to select location: %s", loc.StoreName))
	}

	r.jitter()

	var records []domain.PriceRecord
	total := len(r.selectors.Categories)

	for idx, category := range r.selectors.Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.log.Info().Str("category", NormalizeCategory(category)).
			Str("progress", fmt.Sprintf("%d/%d", idx+1, total)).Msg("Scraping category")
		r.progress(fmt.Sprintf("%s - scraping %s (%d/%d)", loc.StoreName, category, idx+1, total))

		categoryRecords, err := r.scrapeCategory(loc, category)
		if err != nil {
			r.log.Warn().Err(err).Str("category", NormalizeCategory(category)).Msg("Category scrape failed")
			// Hold the request rate even after a failure.
			r.jitter()
			continue
		}

		records = append(records, categoryRecords...)
		r.progress(fmt.Sprintf("%s complete - %d prices found", category, len(categoryRecords)))

		if idx < total-1 {
			r.jitter()
		}
	}

	r.log.Info().Int("price_count", len(records)).Msg("Location collected")
	return records, nil
}

// selectLocation drives the city picker with progressively looser formats of
// query until one attempt completes.
func (r *SessionRunner) selectLocation(loc domain.Location, query string) bool {
	if query == "" {
		return false
	}

	formats := []string{
		query,
		strings.ReplaceAll(query, ",", ""),
	}
	if idx := strings.Index(query, ","); idx >= 0 {
		formats = append(formats, strings.TrimSpace(query[:idx]))
	}

	for _, format := range formats {
		if !r.attemptLocationSelection(format) {
			continue
		}
		if r.verifyLocationSelected(query) {
			r.log.Info().Str("city", query).Str("format_used", format).Msg("Location selected")
			return true
		}
	}

	r.log.Warn().Str("city", query).Int("attempts", len(formats)).Msg("Location selection attempts exhausted")
	r.snapshots.Capture(r.page, "location_fail_"+query, &loc)
	return false
}

func (r *SessionRunner) attemptLocationSelection(city string) bool {
	sel := r.selectors.Location

	// The picker may already be open; a failed trigger click is fine.
	if err := r.page.Click(sel.Trigger); err == nil {
		r.sleep(time.Second)
	}

	if err := r.page.WaitVisible(sel.CityInput, 5*time.Second); err != nil {
		r.log.Warn().Msg("City input not visible")
		return false
	}

	if err := r.page.TypeText(sel.CityInput, city); err != nil {
		return false
	}
	r.sleep(1500 * time.Millisecond)

	if err := r.page.WaitVisible(sel.Suggestion, 5*time.Second); err != nil {
		r.log.Warn().Str("city", city).Msg("No suggestions found")
		return false
	}
	if err := r.page.ClickNth(sel.Suggestion, 0); err != nil {
		return false
	}
	r.sleep(time.Second)

	if err := r.page.Click(sel.SaveButton); err == nil {
		r.sleep(2 * time.Second)
	}

	return true
}

// verifyLocationSelected is deliberately permissive: it only reports false
// when the page positively shows a different city, since the site may apply
// the location without reflecting it anywhere we can read.
func (r *SessionRunner) verifyLocationSelected(city string) bool {
	lower := strings.ToLower(city)

	if text, err := r.page.Text(r.selectors.Location.Trigger); err == nil && text != "" {
		if strings.Contains(strings.ToLower(text), lower) {
			return true
		}
	}

	if url, err := r.page.URL(); err == nil {
		if strings.Contains(strings.ToLower(url), strings.ReplaceAll(lower, " ", "-")) {
			return true
		}
	}

	return true
}

func (r *SessionRunner) scrapeCategory(loc domain.Location, category string) ([]domain.PriceRecord, error) {
	url := r.cfg.BaseURL + r.selectors.CategoryURL(category)
	r.progress("Navigating to " + url)

	if err := r.page.Navigate(url); err != nil {
		// The page may still have rendered partially; extraction decides.
		r.log.Warn().Err(err).Str("url", url).Msg("Page load failed")
	}

	r.sleep(r.cfg.RenderWait)
	r.jitter()
	r.expandGroups()

	html, err := r.page.Content()
	if err != nil {
		return nil, apperr.NewExtraction(loc.StoreName, "failed to capture page markup", err)
	}

	products, err := r.extractor.Extract(html, category)
	if err != nil {
		return nil, apperr.NewExtraction(loc.StoreName, "failed to parse category page", err)
	}

	if len(products) == 0 {
		r.log.Warn().Str("category", category).Str("url", url).Msg("No products found")
		r.progress("No products found for " + category)
		r.snapshots.Capture(r.page, "no_products_"+category, &loc)
		return nil, nil
	}

	r.progress(fmt.Sprintf("Found %d products in %s", len(products), category))

	now := time.Now()
	normalized := NormalizeCategory(category)
	cardSelector := r.selectors.ForCategory(category).ProductCard

	var records []domain.PriceRecord
	for _, product := range products {
		for _, price := range product.Prices {
			records = append(records, domain.PriceRecord{
				Province:     loc.Province,
				StoreName:    loc.StoreName,
				Category:     normalized,
				ProductName:  product.Name,
				Size:         price.Size,
				PricingTier:  loc.PricingTier(),
				Price:        price.Price,
				RawPriceText: price.Raw,
				Source:       domain.SourceMenu,
				ScrapedAt:    now,
			})
		}

		// One cart round-trip per product, first size only, to bound the
		// number of checkout cycles.
		if r.cfg.CaptureCart && len(product.Prices) > 0 {
			size := product.Prices[0].Size
			r.progress("Adding to cart: " + product.Name)
			cartPrice, ok := r.cart.CapturePrice(cardSelector, product.CardIndex, product.Name, size, url)
			if !ok {
				r.progress("Could not get cart price for " + product.Name)
				continue
			}
			r.progress("Cart price: $" + cartPrice.StringFixed(2))
			records = append(records, domain.PriceRecord{
				Province:     loc.Province,
				StoreName:    loc.StoreName,
				Category:     normalized,
				ProductName:  product.Name,
				Size:         size,
				PricingTier:  loc.PricingTier(),
				Price:        cartPrice,
				RawPriceText: "$" + cartPrice.StringFixed(2),
				Source:       domain.SourceCart,
				ScrapedAt:    time.Now(),
			})
		}
	}

	return records, nil
}

// expandGroups clicks open any collapsed product groups so their size and
// price rows make it into the captured markup.
func (r *SessionRunner) expandGroups() {
	clicked := 0
	for _, toggle := range r.selectors.GroupToggles {
		count, err := r.page.Count(toggle)
		if err != nil {
			continue
		}
		for i := 0; i < count; i++ {
			if err := r.page.ClickNth(toggle, i); err == nil {
				clicked++
			}
		}
	}
	if clicked > 0 {
		r.log.Debug().Int("groups", clicked).Msg("Expanded product groups")
		r.sleep(500 * time.Millisecond)
	}
}

// jitter pauses for a random duration inside the configured window to keep
// the request rate bounded and non-uniform.
func (r *SessionRunner) jitter() {
	if r.cfg.MaxDelay <= r.cfg.MinDelay {
		r.sleep(r.cfg.MinDelay)
		return
	}
	window := r.cfg.MaxDelay - r.cfg.MinDelay
	r.sleep(r.cfg.MinDelay + time.Duration(rand.Int63n(int64(window))))
}
