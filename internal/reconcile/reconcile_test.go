package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuqa/pricevalidator/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(decimal.RequireFromString("0.01"))
}

func expected(category, name, size string, tier domain.PricingLevel, province, price string) domain.ExpectedPrice {
	return domain.ExpectedPrice{
		Category:    category,
		ProductName: name,
		Size:        size,
		PricingTier: tier,
		Province:    province,
		Price:       decimal.RequireFromString(price),
	}
}

func menuRecord(store, province string, tier domain.PricingLevel, category, name, size, price string) domain.PriceRecord {
	return domain.PriceRecord{
		Province:    province,
		StoreName:   store,
		Category:    category,
		ProductName: name,
		Size:        size,
		PricingTier: tier,
		Price:       decimal.RequireFromString(price),
		Source:      domain.SourceMenu,
	}
}

func cartRecord(store, province string, tier domain.PricingLevel, category, name, size, price string) domain.PriceRecord {
	rec := menuRecord(store, province, tier, category, name, size, price)
	rec.Source = domain.SourceCart
	return rec
}

func TestCompare_ToleranceBoundary(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name   string
		actual string
		want   Status
	}{
		{"exact match", "14.99", StatusPass},
		{"inside tolerance", "15.00", StatusPass},
		{"half cent rounds to tolerance", "14.995", StatusPass},
		{"just outside tolerance", "15.02", StatusFail},
		{"far off", "15.50", StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Compare(
				[]domain.ExpectedPrice{expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99")},
				[]domain.PriceRecord{menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", tt.actual)},
			)
			require.Len(t, result.Details, 1)
			assert.Equal(t, tt.want, result.Details[0].Status)
		})
	}
}

func TestCompare_OuterJoinCompleteness(t *testing.T) {
	engine := newTestEngine()

	result := engine.Compare(
		[]domain.ExpectedPrice{
			expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99"),
			expected("pizzas", "Tropical", "", domain.PL1, "BC", "16.99"),
		},
		[]domain.PriceRecord{
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99"),
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Surprise Special", "", "12.99"),
		},
	)

	// Every expected row and every unmatched actual row appears exactly once.
	require.Len(t, result.Details, 3)

	byName := map[string]Row{}
	for _, row := range result.Details {
		byName[row.ProductName] = row
	}
	assert.Equal(t, StatusPass, byName["Pepperoni"].Status)
	assert.Equal(t, StatusMissingActual, byName["Tropical"].Status)
	assert.Equal(t, StatusMissingExpected, byName["Surprise Special"].Status)

	assert.Equal(t, 1, result.Summary.Passed)
	assert.Equal(t, 1, result.Summary.MissingActual)
	assert.Equal(t, 1, result.Summary.MissingExpected)
	assert.Len(t, result.Discrepancies, 2)
}

func TestCompare_EmptyInputsSafe(t *testing.T) {
	engine := newTestEngine()

	noActual := engine.Compare(
		[]domain.ExpectedPrice{expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99")},
		nil,
	)
	assert.Equal(t, "N/A", noActual.Summary.PassRate)
	assert.Equal(t, "No actual prices collected", noActual.SummaryLine)
	assert.Empty(t, noActual.Details)

	noExpected := engine.Compare(
		nil,
		[]domain.PriceRecord{menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99")},
	)
	assert.Equal(t, "N/A", noExpected.Summary.PassRate)
	assert.Equal(t, "No expected prices provided", noExpected.SummaryLine)
}

func TestCompare_FuzzyNameFallback(t *testing.T) {
	engine := newTestEngine()

	// Site spells the product slightly differently and adds a marketing
	// prefix; same category and tier, so the fuzzy pass claims it.
	result := engine.Compare(
		[]domain.ExpectedPrice{expected("pizzas", "Pepperoni Pizza", "", domain.PL1, "BC", "14.99")},
		[]domain.PriceRecord{menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "NEW Peperoni Pizza", "", "14.99")},
	)

	require.Len(t, result.Details, 1)
	assert.Equal(t, StatusPass, result.Details[0].Status)
}

func TestCompare_TierScopesMatching(t *testing.T) {
	engine := newTestEngine()

	// Same product name on a different tier must not cross-match.
	result := engine.Compare(
		[]domain.ExpectedPrice{expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99")},
		[]domain.PriceRecord{menuRecord("Calgary Centre", "AB", domain.PL2, "pizzas", "Pepperoni", "", "15.99")},
	)

	require.Len(t, result.Details, 2)
	assert.Equal(t, 0, result.Summary.Passed)
	assert.Equal(t, 1, result.Summary.MissingActual)
	assert.Equal(t, 1, result.Summary.MissingExpected)
}

func TestCompare_SizeConstrainsMatching(t *testing.T) {
	engine := newTestEngine()

	result := engine.Compare(
		[]domain.ExpectedPrice{
			expected("pizzas", "Pepperoni", "Medium", domain.PL1, "BC", "14.99"),
			expected("pizzas", "Pepperoni", "Large", domain.PL1, "BC", "19.99"),
		},
		[]domain.PriceRecord{
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Large", "19.99"),
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Medium", "14.99"),
		},
	)

	require.Len(t, result.Details, 2)
	for _, row := range result.Details {
		assert.Equal(t, StatusPass, row.Status, row.Size)
	}
}

func TestCompare_EndToEndScenario(t *testing.T) {
	engine := newTestEngine()

	result := engine.Compare(
		[]domain.ExpectedPrice{
			expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99"),
			expected("pizzas", "Pepperoni", "", domain.PL2, "AB", "15.99"),
		},
		[]domain.PriceRecord{
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99"),
			menuRecord("Calgary Centre", "AB", domain.PL2, "pizzas", "Pepperoni", "", "15.99"),
		},
	)

	assert.Equal(t, 2, result.Summary.Passed)
	assert.Equal(t, 0, result.Summary.Failed)
	assert.Equal(t, "100.0%", result.Summary.PassRate)
}

func TestCompareCart(t *testing.T) {
	engine := newTestEngine()

	rows := engine.CompareCart([]domain.PriceRecord{
		menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Medium", "14.99"),
		cartRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Medium", "14.99"),
		menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Tropical", "Medium", "16.99"),
		cartRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Tropical", "Medium", "18.49"),
		menuRecord("Vancouver Downtown", "BC", domain.PL1, "salads", "Caesar Salad", "", "8.99"),
	})

	require.Len(t, rows, 3)

	byName := map[string]CartRow{}
	for _, row := range rows {
		byName[row.ProductName] = row
	}

	assert.True(t, byName["Pepperoni"].Match)
	assert.False(t, byName["Tropical"].Match)
	assert.True(t, byName["Caesar Salad"].HasMenu)
	assert.False(t, byName["Caesar Salad"].HasCart)
	assert.False(t, byName["Caesar Salad"].Match)
}

func TestCompareThreeWay(t *testing.T) {
	engine := newTestEngine()

	rows := engine.CompareThreeWay(
		[]domain.ExpectedPrice{
			expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99"),
			expected("pizzas", "Tropical", "", domain.PL1, "BC", "16.99"),
		},
		[]domain.PriceRecord{
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99"),
			cartRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99"),
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Tropical", "", "18.49"),
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "salads", "Mystery Salad", "", "9.99"),
		},
		true,
	)

	require.Len(t, rows, 3)

	byName := map[string]CombinedRow{}
	for _, row := range rows {
		byName[row.ProductName] = row
	}

	pepperoni := byName["Pepperoni"]
	assert.True(t, pepperoni.Pass)
	assert.True(t, pepperoni.HasExpected)
	assert.True(t, pepperoni.HasCart)

	tropical := byName["Tropical"]
	assert.False(t, tropical.Pass)
	assert.True(t, tropical.ExpectedMismatch)
	assert.True(t, tropical.NoCartMatch)

	mystery := byName["Mystery Salad"]
	assert.False(t, mystery.Pass)
	assert.True(t, mystery.NoExpectedMatch)
}

func TestCompareThreeWay_SizeScopesCartJoin(t *testing.T) {
	engine := newTestEngine()

	// Only the first discovered size goes through the cart; the Large menu
	// row must not borrow the Medium cart price and report a mismatch.
	rows := engine.CompareThreeWay(
		[]domain.ExpectedPrice{
			expected("pizzas", "Pepperoni", "Medium", domain.PL1, "BC", "14.99"),
			expected("pizzas", "Pepperoni", "Large", domain.PL1, "BC", "19.99"),
		},
		[]domain.PriceRecord{
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Medium", "14.99"),
			menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Large", "19.99"),
			cartRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "Medium", "14.99"),
		},
		true,
	)

	require.Len(t, rows, 2)
	bySize := map[string]CombinedRow{}
	for _, row := range rows {
		bySize[row.Size] = row
	}

	medium := bySize["Medium"]
	assert.True(t, medium.HasCart)
	assert.False(t, medium.CartMismatch)
	assert.True(t, medium.Pass)

	large := bySize["Large"]
	assert.False(t, large.HasCart)
	assert.False(t, large.CartMismatch)
	assert.True(t, large.NoCartMatch)
	assert.False(t, large.ExpectedMismatch)
}

func TestCompareThreeWay_CartInactive(t *testing.T) {
	engine := newTestEngine()

	rows := engine.CompareThreeWay(
		[]domain.ExpectedPrice{expected("pizzas", "Pepperoni", "", domain.PL1, "BC", "14.99")},
		[]domain.PriceRecord{menuRecord("Vancouver Downtown", "BC", domain.PL1, "pizzas", "Pepperoni", "", "14.99")},
		false,
	)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Pass)
	assert.False(t, rows[0].NoCartMatch)
}

func TestSummaryByProvince(t *testing.T) {
	details := []Row{
		{Province: "BC", Status: StatusPass},
		{Province: "BC", Status: StatusFail},
		{Province: "AB", Status: StatusPass},
		{Province: "AB", Status: StatusPass},
	}

	summaries := SummaryByProvince(details)
	require.Len(t, summaries, 2)

	assert.Equal(t, "AB", summaries[0].Province)
	assert.Equal(t, "100.0%", summaries[0].PassRate)
	assert.Equal(t, "BC", summaries[1].Province)
	assert.Equal(t, 1, summaries[1].Passed)
	assert.Equal(t, "50.0%", summaries[1].PassRate)
}
