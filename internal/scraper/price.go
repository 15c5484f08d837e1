package scraper

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	dollarPriceRe = regexp.MustCompile(`\$(\d+\.?\d*)`)
	bareNumberRe  = regexp.MustCompile(`(\d+\.?\d*)`)
)

// ParsePrice converts a raw price string into an exact decimal value.
//
// Handles the formats the site produces: "$26.50", "Product Name / $1.25"
// (label format) and "$6.85 8 pc" (quantity suffix). A dollar-prefixed match
// wins; otherwise the last numeric token in the string is taken. Unparseable
// input yields zero, never an error, so a bad price string can't abort a
// category scrape.
func ParsePrice(text string) decimal.Decimal {
	if text == "" {
		return decimal.Zero
	}

	cleaned := strings.ReplaceAll(text, ",", "")

	if m := dollarPriceRe.FindStringSubmatch(cleaned); m != nil {
		if d, err := decimal.NewFromString(m[1]); err == nil {
			return d
		}
	}

	matches := bareNumberRe.FindAllStringSubmatch(cleaned, -1)
	if len(matches) > 0 {
		if d, err := decimal.NewFromString(matches[len(matches)-1][1]); err == nil {
			return d
		}
	}

	return decimal.Zero
}
