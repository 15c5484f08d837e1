package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ErrNoMatch is returned by interaction helpers when no element matched the
// selector. Callers treat it as expected absence, not a browser failure.
var ErrNoMatch = errors.New("no element matched selector")

// ChromeBrowser drives a single shared Chrome process via chromedp. Pages
// are tabs created from the browser context; the browser's lifecycle is the
// only thing managed centrally.
type ChromeBrowser struct {
	allocCtx     context.Context
	allocCancel  context.CancelFunc
	browserCtx   context.Context
	browserClose context.CancelFunc

	pageTimeout   time.Duration
	actionTimeout time.Duration
}

// Launch starts the browser process. pageTimeout bounds navigations,
// actionTimeout bounds individual DOM interactions.
func Launch(headless bool, pageTimeout, actionTimeout time.Duration) (*ChromeBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserClose := chromedp.NewContext(allocCtx)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserClose()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &ChromeBrowser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserClose:  browserClose,
		pageTimeout:   pageTimeout,
		actionTimeout: actionTimeout,
	}, nil
}

// NewPage opens a fresh tab with resource blocking applied.
func (b *ChromeBrowser) NewPage() (Page, func(), error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)

	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(1280, 720),
		network.Enable(),
		network.SetBlockedURLS(BlockedResources),
	)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &chromePage{
		ctx:           tabCtx,
		pageTimeout:   b.pageTimeout,
		actionTimeout: b.actionTimeout,
	}, cancel, nil
}

// Close tears down the browser process.
func (b *ChromeBrowser) Close() error {
	b.browserClose()
	b.allocCancel()
	return nil
}

type chromePage struct {
	ctx           context.Context
	pageTimeout   time.Duration
	actionTimeout time.Duration
}

func (p *chromePage) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (p *chromePage) Navigate(url string) error {
	return p.run(p.pageTimeout, chromedp.Navigate(url))
}

func (p *chromePage) URL() (string, error) {
	var url string
	err := p.run(p.actionTimeout, chromedp.Location(&url))
	return url, err
}

func (p *chromePage) Title() (string, error) {
	var title string
	err := p.run(p.actionTimeout, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) Content() (string, error) {
	var html string
	err := p.run(p.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Count(selector string) (int, error) {
	var n int
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	err := p.run(p.actionTimeout, chromedp.Evaluate(js, &n))
	return n, err
}

func (p *chromePage) Text(selector string) (string, error) {
	var text string
	js := fmt.Sprintf(
		`(function(){const el=document.querySelector(%q);return el?el.textContent:"";})()`,
		selector)
	err := p.run(p.actionTimeout, chromedp.Evaluate(js, &text))
	return text, err
}

func (p *chromePage) Exists(selector string) bool {
	n, err := p.Count(selector)
	return err == nil && n > 0
}

func (p *chromePage) Click(selector string) error {
	return p.ClickNth(selector, 0)
}

func (p *chromePage) ClickNth(selector string, index int) error {
	var ok bool
	js := fmt.Sprintf(
		`(function(){const list=document.querySelectorAll(%q);if(list.length<=%d)return false;list[%d].click();return true;})()`,
		selector, index, index)
	if err := p.run(p.actionTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrNoMatch
	}
	return nil
}

func (p *chromePage) ClickWithin(selector string, index int, inner string) error {
	var ok bool
	js := fmt.Sprintf(
		`(function(){const list=document.querySelectorAll(%q);if(list.length<=%d)return false;const el=list[%d].querySelector(%q);if(!el)return false;el.click();return true;})()`,
		selector, index, index, inner)
	if err := p.run(p.actionTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return err
	}
	if !ok {
		return ErrNoMatch
	}
	return nil
}

func (p *chromePage) TextWithin(selector string, index int, inner string) (string, error) {
	var text string
	js := fmt.Sprintf(
		`(function(){const list=document.querySelectorAll(%q);if(list.length<=%d)return "";const el=list[%d].querySelector(%q);return el?el.textContent:"";})()`,
		selector, index, index, inner)
	err := p.run(p.actionTimeout, chromedp.Evaluate(js, &text))
	return text, err
}

func (p *chromePage) TypeText(selector, text string) error {
	return p.run(p.actionTimeout,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *chromePage) WaitVisible(selector string, timeout time.Duration) error {
	err := p.run(timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return err
}

func (p *chromePage) Screenshot() ([]byte, error) {
	var buf []byte
	err := p.run(p.pageTimeout, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}
