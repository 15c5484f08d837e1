// Package browsertest provides a scripted in-memory implementation of the
// browser capability interface for tests.
package browsertest

import (
	"sync"
	"time"

	"menuqa/pricevalidator/internal/browser"
)

// PageState describes the scripted content of one URL.
type PageState struct {
	Title   string
	Content string
	Texts   map[string]string
	Counts  map[string]int
	Visible map[string]bool
}

// Page is a scripted browser.Page. States maps URLs to page states; lookups
// against the current URL fall through to Default when no entry exists.
type Page struct {
	mu sync.Mutex

	States  map[string]*PageState
	Default *PageState

	CurrentURL string

	// ClickNavigates maps a selector to the URL a click on it lands on,
	// simulating navigation-triggering clicks.
	ClickNavigates map[string]string

	// OnClick, when set, observes every click and may mutate state.
	OnClick func(selector string)

	// ClickErr scripts per-selector click failures, e.g. browser.ErrNoMatch
	// for controls that do not exist.
	ClickErr map[string]error

	NavErr map[string]error

	Clicks    []string
	Typed     []string
	Navigated []string
}

// NewPage returns an empty scripted page.
func NewPage() *Page {
	return &Page{
		States:         map[string]*PageState{},
		Default:        &PageState{},
		ClickNavigates: map[string]string{},
		ClickErr:       map[string]error{},
		NavErr:         map[string]error{},
	}
}

func (p *Page) state() *PageState {
	if s, ok := p.States[p.CurrentURL]; ok {
		return s
	}
	return p.Default
}

// Navigate records every attempt in Navigated, including failed ones, so
// tests can count retries. CurrentURL only changes on success.
func (p *Page) Navigate(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigated = append(p.Navigated, url)
	if err := p.NavErr[url]; err != nil {
		return err
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state().Title, nil
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state().Content, nil
}

func (p *Page) Count(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state().Counts[selector], nil
}

func (p *Page) Text(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state().Texts[selector], nil
}

func (p *Page) Exists(selector string) bool {
	n, _ := p.Count(selector)
	return n > 0
}

func (p *Page) Click(selector string) error {
	return p.ClickNth(selector, 0)
}

func (p *Page) ClickNth(selector string, index int) error {
	p.mu.Lock()
	if err := p.ClickErr[selector]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.Clicks = append(p.Clicks, selector)
	onClick := p.OnClick
	target, navigates := p.ClickNavigates[selector]
	if navigates {
		p.CurrentURL = target
	}
	p.mu.Unlock()

	if onClick != nil {
		onClick(selector)
	}
	return nil
}

func (p *Page) ClickWithin(selector string, index int, inner string) error {
	return p.ClickNth(selector+" "+inner, index)
}

func (p *Page) TextWithin(selector string, index int, inner string) (string, error) {
	return p.Text(selector + " " + inner)
}

func (p *Page) TypeText(selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Typed = append(p.Typed, text)
	return nil
}

func (p *Page) WaitVisible(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state().Visible[selector] {
		return nil
	}
	return browser.ErrNoMatch
}

func (p *Page) Screenshot() ([]byte, error) {
	return []byte("fake-png"), nil
}

// Browser is a scripted browser.Browser. NewPageFunc builds each page; the
// browser tracks how many pages are open at once so tests can assert the
// concurrency bound.
type Browser struct {
	mu sync.Mutex

	NewPageFunc func() *Page

	open    int
	maxOpen int
	closed  bool
}

func (b *Browser) NewPage() (browser.Page, func(), error) {
	b.mu.Lock()
	b.open++
	if b.open > b.maxOpen {
		b.maxOpen = b.open
	}
	b.mu.Unlock()

	var page *Page
	if b.NewPageFunc != nil {
		page = b.NewPageFunc()
	} else {
		page = NewPage()
	}

	release := func() {
		b.mu.Lock()
		b.open--
		b.mu.Unlock()
	}
	return page, release, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// MaxOpen returns the high-water mark of simultaneously open pages.
func (b *Browser) MaxOpen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxOpen
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
