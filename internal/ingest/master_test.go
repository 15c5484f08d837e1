package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"menuqa/pricevalidator/internal/domain"
)

func writeMasterDocument(t *testing.T, sheets map[string][][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			start, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, start, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func headerRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{""}
	}
	return rows
}

func TestMasterParser_Pizzas(t *testing.T) {
	rows := headerRows(5)
	rows = append(rows, []any{
		"Signature Pizzas", "Pepperoni", "",
		10.99, 14.99, 18.99, 22.99, // PL1 S/M/L/XL
		11.99, 15.99, "", "", // PL2 S/M only
	})
	rows = append(rows, []any{"", "", ""}) // no product name, skipped

	path := writeMasterDocument(t, map[string][][]any{"Pizzas": rows})

	prices, err := NewMasterParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, prices, 6)

	for _, p := range prices {
		assert.Equal(t, "pizzas", p.Category)
		assert.Equal(t, "Pepperoni", p.ProductName)
	}
	assert.Equal(t, domain.ExpectedPrice{
		Category:    "pizzas",
		ProductName: "Pepperoni",
		Size:        "Medium",
		PricingTier: domain.PL1,
		Price:       prices[1].Price,
	}, prices[1])
	assert.Equal(t, "14.99", prices[1].Price.StringFixed(2))

	assert.Equal(t, domain.PL2, prices[4].PricingTier)
	assert.Equal(t, "Small", prices[4].Size)
	assert.Equal(t, "11.99", prices[4].Price.StringFixed(2))
}

func TestMasterParser_SidesCategoryCarryForward(t *testing.T) {
	rows := headerRows(3)
	rows = append(rows,
		[]any{"Salads", "Caesar Salad", "", 8.99, 9.49, 9.49, 9.99, 10.49, "Regular"},
		[]any{"", "Greek Salad", "", 9.99, "", "", "", "", ""},
		[]any{"Desserts", "Chocolate Chunk Cookie", "", 2.49, "", "", "", "", ""},
		[]any{"Breads", "Garlic Toast", "", 5.50, "", "", "", "", ""},
	)

	path := writeMasterDocument(t, map[string][][]any{"Sides": rows})

	prices, err := NewMasterParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, prices, 8)

	byProduct := map[string]domain.ExpectedPrice{}
	for _, p := range prices {
		byProduct[p.ProductName] = p
	}

	assert.Equal(t, "salads", byProduct["Caesar Salad"].Category)
	assert.Equal(t, "Regular", byProduct["Caesar Salad"].Size)
	// Heading carries forward to rows without one.
	assert.Equal(t, "salads", byProduct["Greek Salad"].Category)
	assert.Equal(t, "dessert", byProduct["Chocolate Chunk Cookie"].Category)
	// Unmapped headings land on the sides page.
	assert.Equal(t, "sides", byProduct["Garlic Toast"].Category)
}

func TestMasterParser_Beverages(t *testing.T) {
	rows := headerRows(4)
	rows = append(rows,
		[]any{"Soft Drinks:"},
		[]any{"", "Coca-Cola", 2.99, 3.25, 3.25, 3.49, 3.49, "591ml"},
	)

	path := writeMasterDocument(t, map[string][][]any{"Beverages": rows})

	prices, err := NewMasterParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, prices, 5)

	assert.Equal(t, "beverages", prices[0].Category)
	assert.Equal(t, "Coca-Cola", prices[0].ProductName)
	assert.Equal(t, "591ml", prices[0].Size)
	assert.Equal(t, domain.PL1, prices[0].PricingTier)
	assert.Equal(t, "2.99", prices[0].Price.StringFixed(2))
	assert.Equal(t, domain.PL4, prices[4].PricingTier)
}

func TestMasterParser_SkipsDipPricingSheet(t *testing.T) {
	pizzas := headerRows(5)
	pizzas = append(pizzas, []any{"", "Pepperoni", "", 10.99})

	path := writeMasterDocument(t, map[string][][]any{
		"Pizzas":      pizzas,
		"Dip Pricing": {{"Store", "Level"}, {"Vancouver Downtown", "PL1"}},
	})

	prices, err := NewMasterParser().Parse(path)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "pizzas", prices[0].Category)
}

func TestMasterParser_MissingFile(t *testing.T) {
	_, err := NewMasterParser().Parse(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}

func TestCleanCategory(t *testing.T) {
	assert.Equal(t, "Signature", cleanCategory("Signature Pizzas"))
	assert.Equal(t, "Salads", cleanCategory("Salads"))
	assert.Equal(t, "Dessert", cleanCategory("Dessert Items "))
}
