package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"menuqa/pricevalidator/internal/domain"
	apperr "menuqa/pricevalidator/pkg/errors"
)

// expectedProvinces is the accepted province whitelist for the flat workbook.
// Wider than the scrapeable set: the sheet may carry rows for provinces no
// configured store covers.
var expectedProvinces = map[string]bool{
	"BC": true, "AB": true, "SK": true, "MB": true, "ON": true, "QC": true,
	"NB": true, "NS": true, "PE": true, "NL": true, "YT": true, "NT": true,
	"NU": true,
}

// LoadExpectedPrices reads a flat expected-price workbook: one header row
// with at least product_name, category, province and expected_price columns,
// plus optional size and pricing_level. Malformed input is fatal rather than
// skipped, so a typo in the sheet fails the run instead of silently shrinking
// the comparison.
func LoadExpectedPrices(path string) ([]domain.ExpectedPrice, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperr.NewConfiguration(fmt.Sprintf("expected-price workbook %s", path), err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperr.NewConfiguration(fmt.Sprintf("reading sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, apperr.NewValidation(fmt.Sprintf("workbook %s has no header row", path))
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"product_name", "category", "province", "expected_price"} {
		if _, ok := cols[required]; !ok {
			return nil, apperr.NewValidation(fmt.Sprintf("workbook %s is missing column %q", path, required))
		}
	}

	var prices []domain.ExpectedPrice
	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header

		name := cell(row, cols["product_name"])
		category := cell(row, cols["category"])
		province := strings.ToUpper(cell(row, cols["province"]))
		rawPrice := cell(row, cols["expected_price"])

		if name == "" && category == "" && province == "" && rawPrice == "" {
			continue
		}
		if name == "" || category == "" {
			return nil, apperr.NewValidation(fmt.Sprintf("row %d: product_name and category are required", rowNum))
		}
		if !expectedProvinces[province] {
			return nil, apperr.NewValidation(fmt.Sprintf("row %d: invalid province code %q", rowNum, province))
		}

		price, err := parseWorkbookPrice(rawPrice)
		if err != nil {
			return nil, apperr.NewValidation(fmt.Sprintf("row %d: %v", rowNum, err))
		}
		if price.IsNegative() {
			return nil, apperr.NewValidation(fmt.Sprintf("row %d: expected_price %s is negative", rowNum, price))
		}

		exp := domain.ExpectedPrice{
			Category:    strings.ToLower(category),
			ProductName: name,
			Province:    province,
			Price:       price,
		}
		if idx, ok := cols["size"]; ok {
			exp.Size = cell(row, idx)
		}
		if idx, ok := cols["pricing_level"]; ok {
			if tier := cell(row, idx); tier != "" {
				if !domain.ValidPricingLevel(tier) {
					return nil, apperr.NewValidation(fmt.Sprintf("row %d: unknown pricing level %q", rowNum, tier))
				}
				exp.PricingTier = domain.PricingLevel(tier)
			}
		}
		prices = append(prices, exp)
	}

	if len(prices) == 0 {
		return nil, apperr.NewValidation(fmt.Sprintf("workbook %s contains no expected prices", path))
	}
	return prices, nil
}

// cell returns the trimmed value at idx, tolerating excelize's ragged rows.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseWorkbookPrice(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", ""))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty expected_price")
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable expected_price %q", raw)
	}
	return price.Round(2), nil
}
