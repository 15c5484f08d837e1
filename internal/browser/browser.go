package browser

import "time"

// Page is the capability surface the scraper needs from one browser tab.
// Every query helper reports expected absence through its return value, not
// through an error: an error means the browser itself misbehaved.
type Page interface {
	// Navigate loads url and waits for the DOM to be ready.
	Navigate(url string) error

	// URL returns the page's current URL.
	URL() (string, error)

	// Title returns the document title.
	Title() (string, error)

	// Content returns the full page markup.
	Content() (string, error)

	// Count returns how many elements match selector.
	Count(selector string) (int, error)

	// Text returns the inner text of the first match, or "" when absent.
	Text(selector string) (string, error)

	// Exists reports whether at least one element matches selector.
	Exists(selector string) bool

	// Click clicks the first element matching selector.
	Click(selector string) error

	// ClickNth clicks the index-th element matching selector.
	ClickNth(selector string, index int) error

	// ClickWithin clicks the first inner match scoped to the index-th
	// element matching selector.
	ClickWithin(selector string, index int, inner string) error

	// TextWithin returns the inner text of the first inner match scoped to
	// the index-th element matching selector, or "" when absent.
	TextWithin(selector string, index int, inner string) (string, error)

	// TypeText focuses the first match and types text into it.
	TypeText(selector, text string) error

	// WaitVisible waits until selector has a visible match or timeout.
	WaitVisible(selector string, timeout time.Duration) error

	// Screenshot captures a full-page screenshot.
	Screenshot() ([]byte, error)
}

// Browser owns one browser process and hands out isolated pages. Each page
// lives in its own context (cookies, storage); the returned release func
// tears the context down.
type Browser interface {
	NewPage() (Page, func(), error)
	Close() error
}

// BlockedResources are URL patterns every page context refuses to load.
// Images, fonts and tracking beacons add nothing to price extraction and
// dominate page weight.
var BlockedResources = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp",
	"*.woff", "*.woff2", "*.ttf",
	"*analytics*", "*tracking*", "*google-analytics*",
	"*gtag*", "*gtm*", "*facebook*", "*twitter*",
}
