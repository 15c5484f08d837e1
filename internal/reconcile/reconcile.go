package reconcile

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/logger"
)

// Status classifies one reconciliation row.
type Status string

const (
	StatusPass            Status = "PASS"
	StatusFail            Status = "FAIL"
	StatusMissingExpected Status = "MISSING_EXPECTED"
	StatusMissingActual   Status = "MISSING_ACTUAL"
)

// Row is the outer-join result of one expected price with at most one
// matching menu record.
type Row struct {
	Province    string
	StoreName   string
	Category    string
	ProductName string
	Size        string
	PricingTier string

	Expected    decimal.Decimal
	HasExpected bool
	Actual      decimal.Decimal
	HasActual   bool

	// Difference is actual minus expected, rounded to cents. Only
	// meaningful when both sides are present.
	Difference decimal.Decimal
	Status     Status
}

// Summary holds the aggregate counts for one comparison.
type Summary struct {
	TotalProducts   int
	Passed          int
	Failed          int
	MissingExpected int
	MissingActual   int
	PassRate        string
}

// Result is the full reconciliation output.
type Result struct {
	Summary       Summary
	SummaryLine   string
	Details       []Row
	Discrepancies []Row
}

// CartRow joins one menu record with its cart-confirmed counterpart. Keys
// use the recorded product name, not the normalized form, since both sides
// come from the same scrape.
type CartRow struct {
	Province    string
	StoreName   string
	Category    string
	ProductName string
	Size        string
	PricingTier string

	MenuPrice decimal.Decimal
	HasMenu   bool
	CartPrice decimal.Decimal
	HasCart   bool

	Match bool
}

// CombinedRow is one row of the three-way comparison, based on the menu
// record set. Multiple issues may co-occur; Pass means none did.
type CombinedRow struct {
	Province    string
	StoreName   string
	Category    string
	ProductName string
	Size        string
	PricingTier string

	MenuPrice decimal.Decimal
	Expected  decimal.Decimal
	CartPrice decimal.Decimal

	HasExpected bool
	HasCart     bool

	NoExpectedMatch  bool
	ExpectedMismatch bool
	NoCartMatch      bool
	CartMismatch     bool
	Pass             bool
}

// ProvinceSummary aggregates row outcomes for one province.
type ProvinceSummary struct {
	Province      string
	TotalProducts int
	Passed        int
	Failed        int
	PassRate      string
}

// DefaultFuzzyThreshold is the Jaro-Winkler score two normalized names must
// reach to be treated as the same product when no exact key matches.
const DefaultFuzzyThreshold = 0.95

// Engine merges expected prices against collected records. Tolerance is the
// maximum absolute price difference that still passes.
type Engine struct {
	tolerance      decimal.Decimal
	fuzzyThreshold float64
	log            *logger.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(tolerance decimal.Decimal) *Engine {
	return &Engine{
		tolerance:      tolerance,
		fuzzyThreshold: DefaultFuzzyThreshold,
		log:            logger.ForReconciler(),
	}
}

type actualEntry struct {
	record  domain.PriceRecord
	name    string // normalized
	tierKey string
	matched bool
}

// Compare outer-joins expected prices with menu-sourced records. Every
// expected row appears exactly once in the output; so does every menu record
// with no expected match.
func (e *Engine) Compare(expected []domain.ExpectedPrice, actual []domain.PriceRecord) *Result {
	entries := menuEntries(actual)

	if len(entries) == 0 {
		return e.emptyResult("No actual prices collected")
	}
	if len(expected) == 0 {
		return e.emptyResult("No expected prices provided")
	}

	var rows []Row
	for _, exp := range expected {
		entry := e.findMatch(entries, exp)
		if entry == nil {
			rows = append(rows, Row{
				Province:    exp.Province,
				Category:    exp.Category,
				ProductName: exp.ProductName,
				Size:        exp.Size,
				PricingTier: string(exp.PricingTier),
				Expected:    exp.Price,
				HasExpected: true,
				Status:      StatusMissingActual,
			})
			continue
		}

		entry.matched = true
		rows = append(rows, e.matchedRow(exp, entry.record))
	}

	// Menu records nothing expected claimed.
	for i := range entries {
		if entries[i].matched {
			continue
		}
		rec := entries[i].record
		rows = append(rows, Row{
			Province:    rec.Province,
			StoreName:   rec.StoreName,
			Category:    rec.Category,
			ProductName: rec.ProductName,
			Size:        rec.Size,
			PricingTier: string(rec.PricingTier),
			Actual:      rec.Price,
			HasActual:   true,
			Status:      StatusMissingExpected,
		})
	}

	result := e.buildResult(rows)
	e.log.Info().Int("total", result.Summary.TotalProducts).
		Int("passed", result.Summary.Passed).
		Int("failed", result.Summary.Failed).
		Str("pass_rate", result.Summary.PassRate).
		Msg("Comparison complete")
	return result
}

func menuEntries(records []domain.PriceRecord) []actualEntry {
	var entries []actualEntry
	for _, rec := range records {
		if rec.Source != domain.SourceMenu {
			continue
		}
		entries = append(entries, actualEntry{
			record:  rec,
			name:    NormalizeName(rec.ProductName),
			tierKey: tierKey(string(rec.PricingTier), rec.Province),
		})
	}
	return entries
}

// findMatch locates the first unclaimed menu record for an expected row:
// exact normalized key first, then a fuzzy name pass within the same
// category and tier.
func (e *Engine) findMatch(entries []actualEntry, exp domain.ExpectedPrice) *actualEntry {
	expName := NormalizeName(exp.ProductName)
	expTier := tierKey(string(exp.PricingTier), exp.Province)

	for i := range entries {
		entry := &entries[i]
		if entry.matched || !e.keyCompatible(entry, exp, expTier) {
			continue
		}
		if entry.name == expName {
			return entry
		}
	}

	for i := range entries {
		entry := &entries[i]
		if entry.matched || !e.keyCompatible(entry, exp, expTier) {
			continue
		}
		if namesSimilar(entry.name, expName, e.fuzzyThreshold) {
			return entry
		}
	}

	return nil
}

// keyCompatible checks everything but the product name: category, tier (or
// province when no tier is carried) and size. Size only constrains the match
// when the observed side recorded one.
func (e *Engine) keyCompatible(entry *actualEntry, exp domain.ExpectedPrice, expTier string) bool {
	if entry.record.Category != exp.Category {
		return false
	}
	if entry.tierKey != expTier {
		return false
	}
	if entry.record.Size != "" && exp.Size != "" && entry.record.Size != exp.Size {
		return false
	}
	return true
}

func (e *Engine) matchedRow(exp domain.ExpectedPrice, rec domain.PriceRecord) Row {
	diff := rec.Price.Sub(exp.Price).Round(2)
	status := StatusFail
	if diff.Abs().Cmp(e.tolerance) <= 0 {
		status = StatusPass
	}
	return Row{
		Province:    rec.Province,
		StoreName:   rec.StoreName,
		Category:    rec.Category,
		ProductName: rec.ProductName,
		Size:        rec.Size,
		PricingTier: string(rec.PricingTier),
		Expected:    exp.Price,
		HasExpected: true,
		Actual:      rec.Price,
		HasActual:   true,
		Difference:  diff,
		Status:      status,
	}
}

func (e *Engine) buildResult(rows []Row) *Result {
	summary := Summary{TotalProducts: len(rows)}
	var discrepancies []Row
	for _, row := range rows {
		switch row.Status {
		case StatusPass:
			summary.Passed++
		case StatusFail:
			summary.Failed++
		case StatusMissingExpected:
			summary.MissingExpected++
		case StatusMissingActual:
			summary.MissingActual++
		}
		if row.Status != StatusPass {
			discrepancies = append(discrepancies, row)
		}
	}
	summary.PassRate = passRate(summary.Passed, summary.TotalProducts)

	return &Result{
		Summary: summary,
		SummaryLine: fmt.Sprintf("Pass: %d, Fail: %d, Rate: %s",
			summary.Passed, summary.Failed, summary.PassRate),
		Details:       rows,
		Discrepancies: discrepancies,
	}
}

// emptyResult is the well-formed zero report: a run that collected nothing
// still reports cleanly, with the pass rate as N/A rather than a division
// error.
func (e *Engine) emptyResult(message string) *Result {
	result := e.buildResult(nil)
	result.SummaryLine = message
	e.log.Warn().Msg(message)
	return result
}

// CompareCart joins the menu and cart subsets of one collection run. The
// recorded name is used verbatim: both sides come from the same scrape, so
// normalization would only blur store-level differences.
func (e *Engine) CompareCart(records []domain.PriceRecord) []CartRow {
	type cartKey struct {
		name, store, category, tier, size string
	}

	menu := map[cartKey]domain.PriceRecord{}
	cart := map[cartKey]domain.PriceRecord{}
	var order []cartKey

	for _, rec := range records {
		key := cartKey{
			name:     rec.ProductName,
			store:    rec.StoreName,
			category: rec.Category,
			tier:     tierKey(string(rec.PricingTier), rec.Province),
			size:     rec.Size,
		}
		switch rec.Source {
		case domain.SourceMenu:
			if _, seen := menu[key]; !seen {
				menu[key] = rec
				if _, other := cart[key]; !other {
					order = append(order, key)
				}
			}
		case domain.SourceCart:
			if _, seen := cart[key]; !seen {
				cart[key] = rec
				if _, other := menu[key]; !other {
					order = append(order, key)
				}
			}
		}
	}

	var rows []CartRow
	for _, key := range order {
		menuRec, hasMenu := menu[key]
		cartRec, hasCart := cart[key]

		row := CartRow{
			ProductName: key.name,
			StoreName:   key.store,
			Category:    key.category,
			Size:        key.size,
			HasMenu:     hasMenu,
			HasCart:     hasCart,
		}
		if hasMenu {
			row.Province = menuRec.Province
			row.PricingTier = string(menuRec.PricingTier)
			row.MenuPrice = menuRec.Price
		}
		if hasCart {
			row.Province = cartRec.Province
			row.PricingTier = string(cartRec.PricingTier)
			row.CartPrice = cartRec.Price
		}
		if hasMenu && hasCart {
			diff := cartRec.Price.Sub(menuRec.Price).Round(2)
			row.Match = diff.Abs().Cmp(e.tolerance) <= 0
		}
		rows = append(rows, row)
	}
	return rows
}

// CompareThreeWay starts from the menu set, left-joins expected prices and
// cart prices onto it, and flags every issue a row exhibits. cartActive
// controls whether a missing cart price counts as an issue at all.
func (e *Engine) CompareThreeWay(expected []domain.ExpectedPrice, records []domain.PriceRecord, cartActive bool) []CombinedRow {
	entries := menuEntries(records)

	cartByKey := map[string]domain.PriceRecord{}
	for _, rec := range records {
		if rec.Source != domain.SourceCart {
			continue
		}
		key := combinedKey(NormalizeName(rec.ProductName), rec.StoreName, rec.Category,
			tierKey(string(rec.PricingTier), rec.Province), rec.Size)
		if _, seen := cartByKey[key]; !seen {
			cartByKey[key] = rec
		}
	}

	claimed := make([]bool, len(expected))

	var rows []CombinedRow
	for _, entry := range entries {
		rec := entry.record
		row := CombinedRow{
			Province:    rec.Province,
			StoreName:   rec.StoreName,
			Category:    rec.Category,
			ProductName: rec.ProductName,
			Size:        rec.Size,
			PricingTier: string(rec.PricingTier),
			MenuPrice:   rec.Price,
		}

		if idx := e.findExpected(expected, claimed, entry); idx >= 0 {
			claimed[idx] = true
			row.HasExpected = true
			row.Expected = expected[idx].Price
			diff := rec.Price.Sub(expected[idx].Price).Round(2)
			row.ExpectedMismatch = diff.Abs().Cmp(e.tolerance) > 0
		} else {
			row.NoExpectedMatch = true
		}

		key := combinedKey(entry.name, rec.StoreName, rec.Category, entry.tierKey, rec.Size)
		if cartRec, ok := cartByKey[key]; ok {
			row.HasCart = true
			row.CartPrice = cartRec.Price
			diff := cartRec.Price.Sub(rec.Price).Round(2)
			row.CartMismatch = diff.Abs().Cmp(e.tolerance) > 0
		} else if cartActive {
			row.NoCartMatch = true
		}

		row.Pass = !row.NoExpectedMatch && !row.ExpectedMismatch &&
			!row.NoCartMatch && !row.CartMismatch
		rows = append(rows, row)
	}

	return rows
}

func (e *Engine) findExpected(expected []domain.ExpectedPrice, claimed []bool, entry actualEntry) int {
	for i, exp := range expected {
		if claimed[i] || !e.keyCompatible(&entry, exp, tierKey(string(exp.PricingTier), exp.Province)) {
			continue
		}
		if NormalizeName(exp.ProductName) == entry.name {
			return i
		}
	}
	for i, exp := range expected {
		if claimed[i] || !e.keyCompatible(&entry, exp, tierKey(string(exp.PricingTier), exp.Province)) {
			continue
		}
		if namesSimilar(NormalizeName(exp.ProductName), entry.name, e.fuzzyThreshold) {
			return i
		}
	}
	return -1
}

// SummaryByProvince aggregates details per province, sorted by province code.
func SummaryByProvince(details []Row) []ProvinceSummary {
	byProvince := map[string]*ProvinceSummary{}
	for _, row := range details {
		s, ok := byProvince[row.Province]
		if !ok {
			s = &ProvinceSummary{Province: row.Province}
			byProvince[row.Province] = s
		}
		s.TotalProducts++
		switch row.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		}
	}

	provinces := make([]string, 0, len(byProvince))
	for p := range byProvince {
		provinces = append(provinces, p)
	}
	sort.Strings(provinces)

	summaries := make([]ProvinceSummary, 0, len(provinces))
	for _, p := range provinces {
		s := byProvince[p]
		s.PassRate = passRate(s.Passed, s.TotalProducts)
		summaries = append(summaries, *s)
	}
	return summaries
}

func tierKey(tier, province string) string {
	if tier != "" {
		return tier
	}
	return province
}

// combinedKey includes size: the cart flow only confirms one size per
// product, and that price must never join another size's menu row.
func combinedKey(name, store, category, tier, size string) string {
	return name + "|" + store + "|" + category + "|" + tier + "|" + size
}

// passRate formats a percentage with division-by-zero guarding.
func passRate(passed, total int) string {
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(passed)/float64(total)*100)
}
