package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"menuqa/pricevalidator/internal/browser"
	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/logger"
)

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Snapshotter writes diagnostic page captures when scraping dead-ends. Each
// capture is a timestamped directory with a full-page screenshot, the raw
// markup and a small JSON descriptor. Purely a debugging aid; every failure
// inside it is logged and swallowed.
type Snapshotter struct {
	dir string
	log *logger.Logger
}

// NewSnapshotter creates a snapshotter rooted at dir. An empty dir disables
// capturing entirely.
func NewSnapshotter(dir string) *Snapshotter {
	return &Snapshotter{
		dir: dir,
		log: logger.ForScraper(),
	}
}

type snapshotState struct {
	URL       string         `json:"url"`
	Context   string         `json:"context"`
	Location  *locationState `json:"location"`
	Timestamp string         `json:"timestamp"`
	PageTitle string         `json:"page_title"`
}

type locationState struct {
	StoreName    string `json:"store_name"`
	Province     string `json:"province"`
	PricingLevel string `json:"pricing_level"`
}

// Capture saves the current page state under a timestamped directory.
func (s *Snapshotter) Capture(page browser.Page, context string, loc *domain.Location) {
	if s == nil || s.dir == "" {
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	dir := filepath.Join(s.dir, timestamp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn().Err(err).Str("context", context).Msg("Snapshot dir creation failed")
		return
	}

	safe := unsafeFilenameRe.ReplaceAllString(context, "_")

	if shot, err := page.Screenshot(); err == nil {
		s.writeFile(filepath.Join(dir, safe+"_screenshot.png"), shot, context)
	} else {
		s.log.Warn().Err(err).Str("context", context).Msg("Screenshot failed")
	}

	if html, err := page.Content(); err == nil {
		s.writeFile(filepath.Join(dir, safe+"_page.html"), []byte(html), context)
	}

	url, _ := page.URL()
	title, _ := page.Title()
	state := snapshotState{
		URL:       url,
		Context:   context,
		Timestamp: timestamp,
		PageTitle: title,
	}
	if loc != nil {
		state.Location = &locationState{
			StoreName:    loc.StoreName,
			Province:     loc.Province,
			PricingLevel: string(loc.PricingTier()),
		}
	}
	if data, err := json.MarshalIndent(state, "", "  "); err == nil {
		s.writeFile(filepath.Join(dir, safe+"_state.json"), data, context)
	}

	s.log.Info().Str("path", dir).Str("context", context).Msg("Diagnostic snapshot saved")
}

func (s *Snapshotter) writeFile(path string, data []byte, context string) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Warn().Err(err).Str("context", context).Str("path", path).Msg("Snapshot write failed")
	}
}
