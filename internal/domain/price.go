package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tags where an observed price was read from.
type PriceSource string

const (
	// SourceMenu is a price read from a category listing page.
	SourceMenu PriceSource = "menu"
	// SourceCart is a price confirmed through the checkout cart.
	SourceCart PriceSource = "cart"
)

// PriceRecord is one observed price. Records are created once during a
// session and never mutated afterwards.
type PriceRecord struct {
	Province     string          `json:"province"`
	StoreName    string          `json:"store_name"`
	Category     string          `json:"category"`
	ProductName  string          `json:"product_name"`
	Size         string          `json:"size,omitempty"`
	PricingTier  PricingLevel    `json:"pricing_tier"`
	Price        decimal.Decimal `json:"price"`
	RawPriceText string          `json:"raw_price_text"`
	Source       PriceSource     `json:"source"`
	ScrapedAt    time.Time       `json:"scraped_at"`
}

// ExpectedPrice is one row from the expected-price source (spreadsheet or
// master pricing document). Read-only input to reconciliation.
type ExpectedPrice struct {
	Category    string
	ProductName string
	Size        string
	PricingTier PricingLevel
	Province    string
	Price       decimal.Decimal
}

// TierOrProvince returns the pricing tier if present, else the province.
// Reconciliation keys prefer the tier when both sides carry one.
func (e ExpectedPrice) TierOrProvince() string {
	if e.PricingTier != "" {
		return string(e.PricingTier)
	}
	return e.Province
}
