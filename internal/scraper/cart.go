package scraper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"menuqa/pricevalidator/internal/browser"
	"menuqa/pricevalidator/logger"
)

// CartVerifier drives the add-to-cart side flow for one product and reads
// the confirmed checkout price. Every UI step tries several selector
// patterns in priority order; exhausting all patterns for a required step is
// a soft failure, never fatal.
type CartVerifier struct {
	page      browser.Page
	selectors SelectorConfig
	log       *logger.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewCartVerifier creates a verifier bound to one page.
func NewCartVerifier(page browser.Page, selectors SelectorConfig) *CartVerifier {
	return &CartVerifier{
		page:      page,
		selectors: selectors,
		log:       logger.ForScraper(),
		sleep:     time.Sleep,
	}
}

// CapturePrice runs the full cart round-trip for the product at cardIndex:
// open the customization panel, pick a size and crust, submit, read the cart
// line item, then clear the cart and return to categoryURL. Cleanup runs on
// success and failure alike, a leftover cart item would corrupt every
// following product check on the page.
func (v *CartVerifier) CapturePrice(cardSelector string, cardIndex int, productName, size, categoryURL string) (decimal.Decimal, bool) {
	originalURL, _ := v.page.URL()

	if !v.openProduct(cardSelector, cardIndex) {
		return decimal.Zero, false
	}

	v.selectSize(size)
	v.selectCrust()

	if !v.submitToCart() {
		v.closeModal()
		v.returnTo(originalURL, categoryURL)
		return decimal.Zero, false
	}

	price, found := v.cartPrice(productName)

	v.clearCart()
	v.closeModal()
	v.returnTo(originalURL, categoryURL)

	return price, found
}

// openProduct clicks the Add to Order control inside the product card. The
// site either opens an in-page overlay or navigates to a detail page; the
// URL comparison tells the two apart.
func (v *CartVerifier) openProduct(cardSelector string, cardIndex int) bool {
	before, _ := v.page.URL()

	clicked := false
	for _, pattern := range v.selectors.Cart.AddToOrder {
		if err := v.page.ClickWithin(cardSelector, cardIndex, pattern); err == nil {
			clicked = true
			break
		} else if !errors.Is(err, browser.ErrNoMatch) {
			v.log.Debug().Err(err).Str("pattern", pattern).Msg("Add to Order click failed")
		}
	}
	if !clicked {
		v.log.Debug().Int("index", cardIndex).Msg("Add to Order button not found")
		return false
	}
	v.sleep(500 * time.Millisecond)

	if after, _ := v.page.URL(); after != before {
		// Navigated to a product detail page rather than an overlay.
		v.log.Debug().Str("url", after).Msg("Navigated to product page")
		return true
	}

	// Still on the listing, wait briefly for an overlay and carry on either
	// way. The item may even land in the cart directly.
	for _, pattern := range v.selectors.Cart.ProductModal {
		if err := v.page.WaitVisible(pattern, 2*time.Second); err == nil {
			return true
		}
	}
	return true
}

func (v *CartVerifier) selectSize(size string) {
	v.sleep(300 * time.Millisecond)

	if size != "" {
		pattern := fmt.Sprintf("input[type='radio'][value*='%s']", size)
		if err := v.page.Click(pattern); err == nil {
			v.sleep(300 * time.Millisecond)
			return
		}
	}

	// Fall back to the first available option. No options at all is fine,
	// the product may not come in sizes.
	for _, pattern := range v.selectors.Cart.SizeOption {
		if err := v.page.Click(pattern); err == nil {
			v.sleep(300 * time.Millisecond)
			return
		}
	}
}

func (v *CartVerifier) selectCrust() {
	for _, pattern := range v.selectors.Cart.CrustOption {
		if err := v.page.Click(pattern); err == nil {
			v.sleep(300 * time.Millisecond)
			return
		}
	}
}

func (v *CartVerifier) submitToCart() bool {
	for _, pattern := range v.selectors.Cart.AddToCart {
		if err := v.page.Click(pattern); err == nil {
			v.sleep(time.Second)
			return true
		}
	}
	v.log.Debug().Msg("Add to Cart button not found")
	return false
}

// cartPrice opens the cart if needed and reads the line-item price for
// productName, falling back to the most recent line item when no name
// matches.
func (v *CartVerifier) cartPrice(productName string) (decimal.Decimal, bool) {
	itemSelector, count := v.visibleCartItems()

	if count == 0 {
		for _, opener := range v.selectors.Cart.CartOpeners {
			if err := v.page.Click(opener); err == nil {
				v.sleep(500 * time.Millisecond)
				break
			}
		}
		itemSelector, count = v.visibleCartItems()
	}

	if count == 0 {
		v.log.Debug().Str("product", productName).Msg("Cart price not found")
		return decimal.Zero, false
	}

	for i := 0; i < count; i++ {
		name := v.textWithin(itemSelector, i, v.selectors.Cart.CartItemName)
		if name == "" || !strings.Contains(strings.ToLower(name), strings.ToLower(productName)) {
			continue
		}
		if raw := v.textWithin(itemSelector, i, v.selectors.Cart.CartItemPrice); raw != "" {
			return ParsePrice(raw), true
		}
	}

	// No name match, take the most recently added item.
	if raw := v.textWithin(itemSelector, count-1, v.selectors.Cart.CartItemPrice); raw != "" {
		return ParsePrice(raw), true
	}

	return decimal.Zero, false
}

func (v *CartVerifier) visibleCartItems() (string, int) {
	for _, pattern := range v.selectors.Cart.CartItem {
		if n, err := v.page.Count(pattern); err == nil && n > 0 {
			return pattern, n
		}
	}
	return "", 0
}

func (v *CartVerifier) textWithin(selector string, index int, patterns []string) string {
	for _, pattern := range patterns {
		text, err := v.page.TextWithin(selector, index, pattern)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func (v *CartVerifier) clearCart() {
	for _, pattern := range v.selectors.Cart.ClearCart {
		if err := v.page.Click(pattern); err == nil {
			v.sleep(500 * time.Millisecond)
			return
		}
	}

	// No clear button, remove items one by one. Bounded to avoid looping on
	// a removal control that never disappears.
	for attempts := 0; attempts < 20; attempts++ {
		removed := false
		for _, pattern := range v.selectors.Cart.RemoveItem {
			if err := v.page.Click(pattern); err == nil {
				removed = true
				v.sleep(300 * time.Millisecond)
				break
			}
		}
		if !removed {
			return
		}
	}
}

func (v *CartVerifier) closeModal() {
	for _, pattern := range v.selectors.Cart.CloseModal {
		if err := v.page.Click(pattern); err == nil {
			v.sleep(300 * time.Millisecond)
			return
		}
	}
}

// returnTo navigates back to the category page when the cart flow left it.
func (v *CartVerifier) returnTo(originalURL, categoryURL string) {
	current, err := v.page.URL()
	if err != nil {
		return
	}
	if current == originalURL || strings.HasPrefix(current, categoryURL) {
		return
	}
	if err := v.page.Navigate(categoryURL); err != nil {
		v.log.Warn().Err(err).Str("url", categoryURL).Msg("Failed to return to category")
	}
	v.sleep(500 * time.Millisecond)
}
