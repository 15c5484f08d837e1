package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"menuqa/pricevalidator/logger"
)

// SizedPrice is one size/price pair read from a product card.
type SizedPrice struct {
	Size  string
	Price decimal.Decimal
	Raw   string
}

// Product is one extracted product with all its observed size/price pairs.
// CardIndex is the product's position among the matched cards, used later to
// target the same card for cart interaction.
type Product struct {
	Name      string
	CardIndex int
	Prices    []SizedPrice
}

// Extractor turns captured category-page markup into products. It is
// stateless beyond its selector configuration and can be shared across
// sessions.
type Extractor struct {
	selectors SelectorConfig
	log       *logger.Logger
}

// NewExtractor creates an extractor with the given selector configuration.
func NewExtractor(selectors SelectorConfig) *Extractor {
	return &Extractor{
		selectors: selectors,
		log:       logger.ForScraper(),
	}
}

var bareDecimalRe = regexp.MustCompile(`^\d+\.\d{2}$`)

// Extract parses the page markup for one category and returns all products
// found. A product that cannot be extracted is skipped; it never aborts its
// siblings. An empty result is valid, some categories are store-specific.
func (e *Extractor) Extract(html, category string) ([]Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	set := e.selectors.ForCategory(category)
	cards := doc.Find(set.ProductCard)

	// Category-specific selectors found nothing, retry with the defaults.
	if cards.Length() == 0 {
		if _, hasOverride := e.selectors.PerCategory[category]; hasOverride {
			cards = doc.Find(e.selectors.Default.ProductCard)
			if cards.Length() > 0 {
				set = e.selectors.Default
				e.log.Debug().Str("category", category).Int("count", cards.Length()).
					Msg("Using fallback selectors")
			}
		}
	}

	var products []Product
	cards.Each(func(i int, card *goquery.Selection) {
		text := card.Text()

		// Drinks layout: several size/price pairs concatenated into one blob.
		if strings.Count(text, "Qty:") > 1 {
			products = append(products, e.parseQtyBlob(text, i)...)
			return
		}

		name := e.extractName(card, set)
		if name == "" {
			e.log.Debug().Str("category", category).Int("index", i).Msg("No name found")
			return
		}

		prices := e.extractPrices(card, set)
		if len(prices) == 0 {
			e.log.Debug().Str("category", category).Int("index", i).Msg("No price found")
			return
		}

		products = append(products, Product{
			Name:      name,
			CardIndex: i,
			Prices:    prices,
		})
	})

	return products, nil
}

// extractName finds the product name with layered fallbacks. The site embeds
// marketing copy inside product containers, so candidates are filtered
// through a garbage classifier before being accepted.
func (e *Extractor) extractName(card *goquery.Selection, set SelectorSet) string {
	var name string

	candidates := append([]string{set.ProductName}, e.selectors.NameFallbacks...)
	for _, selector := range candidates {
		if selector == "" {
			continue
		}
		sel := card.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.First().Text())
		if len(text) > 2 {
			name = text
			break
		}
	}

	// A very short name is usually truncated. Scan the card's full text for a
	// longer line that is not a price and not UI chrome.
	if name != "" && len(name) < 5 {
		for _, line := range textLines(card.Text()) {
			if isGarbageLine(line) {
				continue
			}
			if len(line) > len(name) {
				name = line
			}
			break
		}
	}

	// Nothing matched any selector. Take the first full-text line that is not
	// price-shaped, with the garbage filter loosened.
	if name == "" {
		for _, line := range textLines(card.Text()) {
			if isPriceLine(line) {
				continue
			}
			name = line
			break
		}
	}

	return strings.TrimSpace(name)
}

func (e *Extractor) extractPrices(card *goquery.Selection, set SelectorSet) []SizedPrice {
	items := card.Find(e.selectors.PriceListItem)
	if items.Length() > 1 {
		// Multiple sizes: one price per size row.
		var prices []SizedPrice
		items.Each(func(_ int, item *goquery.Selection) {
			var size string
			if label := item.Find(e.selectors.PriceSizeLabel); label.Length() > 0 {
				size = strings.TrimSpace(strings.TrimSuffix(
					strings.TrimSpace(label.First().Text()), ":"))
			}
			value := item.Find(e.selectors.PriceValue)
			if value.Length() == 0 {
				return
			}
			raw := strings.TrimSpace(value.First().Text())
			if raw == "" {
				return
			}
			prices = append(prices, SizedPrice{Size: size, Price: ParsePrice(raw), Raw: raw})
		})
		return prices
	}

	// Single price in a dedicated element.
	if sel := card.Find(set.ProductPrice); sel.Length() > 0 {
		raw := strings.TrimSpace(sel.First().Text())
		if raw != "" {
			return []SizedPrice{{Price: ParsePrice(raw), Raw: raw}}
		}
	}

	// Dips/extras label format: "Product Name / $1.25".
	if sel := card.Find(e.selectors.PriceLabel); sel.Length() > 0 {
		raw := strings.TrimSpace(sel.First().Text())
		if strings.Contains(raw, "$") {
			return []SizedPrice{{Price: ParsePrice(raw), Raw: raw}}
		}
	}

	return nil
}

// parseQtyBlob splits a drinks-layout text blob of repeating
// "Qty:<name> - <size> / $<price>" segments into products.
func (e *Extractor) parseQtyBlob(text string, cardIndex int) []Product {
	var products []Product
	for _, segment := range strings.Split(text, "Qty:") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		matches := dollarPriceRe.FindAllStringSubmatch(segment, -1)
		if len(matches) == 0 {
			continue
		}
		price, err := decimal.NewFromString(matches[len(matches)-1][1])
		if err != nil {
			continue
		}

		name := segment
		if idx := strings.Index(name, " - "); idx >= 0 {
			name = name[:idx]
		} else if idx := strings.Index(name, "/"); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)
		if name == "" || isGarbageLine(name) {
			continue
		}

		products = append(products, Product{
			Name:      name,
			CardIndex: cardIndex,
			Prices: []SizedPrice{{
				Size:  normalizeVolume(extractVolumeToken(segment)),
				Price: price,
				Raw:   segment,
			}},
		})
	}
	return products
}

var volumeTokenRe = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*-?\s*(?:ml|litre|l)\b`)

// volumeCanonical maps cleaned volume tokens to the canonical labels used by
// the expected-price source.
var volumeCanonical = map[string]string{
	"355ml":  "355ml",
	"500ml":  "500ml",
	"591ml":  "591ml",
	"1l":     "1-Litre",
	"1litre": "1-Litre",
	"2l":     "2-Litre",
	"2litre": "2-Litre",
}

func extractVolumeToken(text string) string {
	return volumeTokenRe.FindString(text)
}

// normalizeVolume maps a raw volume token ("591 mL", "2L") to its canonical
// form. Exact match on the cleaned token first, then a prefix/substring
// fallback against the table keys.
func normalizeVolume(token string) string {
	if token == "" {
		return ""
	}
	cleaned := strings.ToLower(token)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	if canonical, ok := volumeCanonical[cleaned]; ok {
		return canonical
	}
	for key, canonical := range volumeCanonical {
		if strings.HasPrefix(cleaned, key) || strings.Contains(key, cleaned) {
			return canonical
		}
	}
	return strings.TrimSpace(token)
}

func textLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

func isPriceLine(line string) bool {
	return strings.HasPrefix(line, "$") || bareDecimalRe.MatchString(line)
}

// isGarbageLine rejects UI chrome, embedded prices and overlong descriptive
// text that would otherwise be mistaken for a product name.
func isGarbageLine(line string) bool {
	if len(line) <= 2 || len(line) > 80 {
		return true
	}
	if isPriceLine(line) {
		return true
	}
	if strings.Contains(line, "Add to Order") || strings.Contains(line, "Add to Cart") {
		return true
	}
	if strings.HasPrefix(line, "Qty:") {
		return true
	}
	return false
}
