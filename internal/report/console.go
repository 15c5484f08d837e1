package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"menuqa/pricevalidator/internal/reconcile"
)

// Console renders the run banner and summary tables to a writer, normally
// stdout.
type Console struct {
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Banner prints the run header before collection starts.
func (c *Console) Banner(baseURL string, locations, expected int, cartCapture bool) {
	cart := "off"
	if cartCapture {
		cart = "on"
	}
	fmt.Fprintln(c.out, text.Bold.Sprint("Menu Price Validation"))
	fmt.Fprintf(c.out, "  target:          %s\n", baseURL)
	fmt.Fprintf(c.out, "  locations:       %d\n", locations)
	fmt.Fprintf(c.out, "  expected prices: %d\n", expected)
	fmt.Fprintf(c.out, "  cart capture:    %s\n\n", cart)
}

// Summary prints the aggregate result table and the per-province breakdown.
func (c *Console) Summary(result *reconcile.Result, provinces []reconcile.ProvinceSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total Products", result.Summary.TotalProducts},
		{"Passed", result.Summary.Passed},
		{"Failed", result.Summary.Failed},
		{"Missing Expected", result.Summary.MissingExpected},
		{"Missing Actual", result.Summary.MissingActual},
		{"Pass Rate", result.Summary.PassRate},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(provinces) > 0 {
		p := table.NewWriter()
		p.SetOutputMirror(c.out)
		p.AppendHeader(table.Row{"Province", "Total", "Passed", "Failed", "Pass Rate"})
		for _, s := range provinces {
			p.AppendRow(table.Row{s.Province, s.TotalProducts, s.Passed, s.Failed, s.PassRate})
		}
		p.SetStyle(table.StyleRounded)
		p.Render()
	}

	fmt.Fprintln(c.out, result.SummaryLine)
}

// Discrepancies prints the non-passing rows, capped so a broken run does not
// flood the terminal. The full set is always in the xlsx report.
func (c *Console) Discrepancies(rows []reconcile.Row, limit int) {
	if len(rows) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.AppendHeader(table.Row{"Store", "Category", "Product", "Expected", "Actual", "Status"})

	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, row := range shown {
		expected, actual := "", ""
		if row.HasExpected {
			expected = row.Expected.StringFixed(2)
		}
		if row.HasActual {
			actual = row.Actual.StringFixed(2)
		}
		t.AppendRow(table.Row{row.StoreName, row.Category, row.ProductName, expected, actual, string(row.Status)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(rows) > len(shown) {
		fmt.Fprintf(c.out, "... and %d more (see report)\n", len(rows)-len(shown))
	}
}
