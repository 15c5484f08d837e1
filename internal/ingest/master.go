package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/logger"
	apperr "menuqa/pricevalidator/pkg/errors"
)

// pizzaSizes lists the size columns of one pricing-level block on the Pizzas
// sheet, in column order.
var pizzaSizes = [4]string{"Small", "Medium", "Large", "Extra-Large"}

type levelColumns struct {
	level domain.PricingLevel
	cols  []int
}

// Column layout of the master document. Pizzas carries a 4-size block per
// pricing level; Sides and Beverages carry one price column per level.
var (
	pizzaLevelColumns = []levelColumns{
		{domain.PL1, []int{3, 4, 5, 6}},
		{domain.PL2, []int{7, 8, 9, 10}},
		{domain.PL2B, []int{11, 12, 13, 14}},
		{domain.PL3, []int{15, 16, 17, 18}},
		{domain.PL4, []int{19, 20, 21, 22}},
	}
	sidesLevelColumns = []levelColumns{
		{domain.PL1, []int{3}},
		{domain.PL2, []int{4}},
		{domain.PL2B, []int{5}},
		{domain.PL3, []int{6}},
		{domain.PL4, []int{7}},
	}
	beverageLevelColumns = []levelColumns{
		{domain.PL1, []int{2}},
		{domain.PL2, []int{3}},
		{domain.PL2B, []int{4}},
		{domain.PL3, []int{5}},
		{domain.PL4, []int{6}},
	}
)

// sidesCategoryMap translates the Sides sheet's section headings into the
// site's category slugs. Unlisted headings (breads, wings, dips) all land on
// the sides menu page.
var sidesCategoryMap = map[string]string{
	"salads":   "salads",
	"desserts": "dessert",
}

var categorySuffixRe = regexp.MustCompile(`(?i)\s*(pizzas?|items?)\s*$`)

// MasterParser reads the master pricing document (the quarterly checklist
// workbook) and flattens it into expected prices keyed by pricing level.
type MasterParser struct {
	log *logger.Logger
}

func NewMasterParser() *MasterParser {
	return &MasterParser{log: logger.ForIngest()}
}

// Parse extracts expected prices from every recognized sheet. A sheet that
// fails to parse is logged and skipped; the document regularly gains
// presentation-only sheets and a run should survive them.
func (p *MasterParser) Parse(path string) ([]domain.ExpectedPrice, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.NewConfiguration(fmt.Sprintf("master document %s", path), err)
	}
	defer f.Close()

	sheets := map[string]bool{}
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}

	var prices []domain.ExpectedPrice
	for _, sheet := range []struct {
		name  string
		parse func(rows [][]string) []domain.ExpectedPrice
	}{
		{"Pizzas", p.parsePizzas},
		{"Sides", p.parseSides},
		{"Beverages", p.parseBeverages},
	} {
		if !sheets[sheet.name] {
			continue
		}
		rows, err := f.GetRows(sheet.name)
		if err != nil {
			p.log.Warn().Str("sheet", sheet.name).Err(err).Msg("Sheet parse failed")
			continue
		}
		parsed := sheet.parse(rows)
		prices = append(prices, parsed...)
		p.log.Info().Str("sheet", sheet.name).Int("prices", len(parsed)).Msg("Parsed sheet")
	}

	// Dip Pricing holds store-to-level mappings, not per-product prices.
	if sheets["Dip Pricing"] {
		p.log.Debug().Msg("Skipping Dip Pricing sheet")
	}

	p.log.Info().Int("total", len(prices)).Msg("Master document parsed")
	return prices, nil
}

// parsePizzas walks the Pizzas sheet: product name in column 1, then a
// Small/Medium/Large/Extra-Large block per pricing level. Data starts after
// five header rows.
func (p *MasterParser) parsePizzas(rows [][]string) []domain.ExpectedPrice {
	var prices []domain.ExpectedPrice
	for i := 5; i < len(rows); i++ {
		row := rows[i]
		name := cell(row, 1)
		if name == "" {
			continue
		}
		for _, block := range pizzaLevelColumns {
			for sizeIdx, col := range block.cols {
				price, ok := parseMasterPrice(cell(row, col))
				if !ok {
					continue
				}
				prices = append(prices, domain.ExpectedPrice{
					Category:    "pizzas",
					ProductName: name,
					Size:        pizzaSizes[sizeIdx],
					PricingTier: block.level,
					Price:       price,
				})
			}
		}
	}
	return prices
}

// parseSides walks the Sides sheet. The section heading in column 0 carries
// forward until the next heading; sizes sit in column 8 when present.
func (p *MasterParser) parseSides(rows [][]string) []domain.ExpectedPrice {
	var prices []domain.ExpectedPrice
	lastCategory := ""
	for i := 3; i < len(rows); i++ {
		row := rows[i]
		if heading := cell(row, 0); heading != "" {
			lastCategory = cleanCategory(heading)
		}
		name := cell(row, 1)
		if name == "" {
			continue
		}

		category, ok := sidesCategoryMap[strings.ToLower(lastCategory)]
		if !ok {
			category = "sides"
		}
		size := cell(row, 8)

		for _, block := range sidesLevelColumns {
			price, ok := parseMasterPrice(cell(row, block.cols[0]))
			if !ok {
				continue
			}
			prices = append(prices, domain.ExpectedPrice{
				Category:    category,
				ProductName: name,
				Size:        size,
				PricingTier: block.level,
				Price:       price,
			})
		}
	}
	return prices
}

// parseBeverages walks the Beverages sheet. Category headings end with a
// colon and occupy their own row; sizes sit in column 7 when present.
func (p *MasterParser) parseBeverages(rows [][]string) []domain.ExpectedPrice {
	var prices []domain.ExpectedPrice
	for i := 4; i < len(rows); i++ {
		row := rows[i]
		if heading := cell(row, 0); strings.HasSuffix(heading, ":") {
			continue
		}
		name := cell(row, 1)
		if name == "" {
			continue
		}
		size := cell(row, 7)

		for _, block := range beverageLevelColumns {
			price, ok := parseMasterPrice(cell(row, block.cols[0]))
			if !ok {
				continue
			}
			prices = append(prices, domain.ExpectedPrice{
				Category:    "beverages",
				ProductName: name,
				Size:        size,
				PricingTier: block.level,
				Price:       price,
			})
		}
	}
	return prices
}

var masterNumberRe = regexp.MustCompile(`\d+\.?\d*`)

// parseMasterPrice reads one price cell. Blank cells, annotations and zero
// prices all mean "not offered at this level" and are skipped.
func parseMasterPrice(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	m := masterNumberRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(m)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price.Round(2), true
}

// cleanCategory strips decorative suffixes from a section heading.
func cleanCategory(heading string) string {
	return strings.TrimSpace(categorySuffixRe.ReplaceAllString(strings.TrimSpace(heading), ""))
}
