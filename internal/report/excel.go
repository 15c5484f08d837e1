package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"menuqa/pricevalidator/internal/reconcile"
	"menuqa/pricevalidator/logger"
)

// Timing describes one validation run for the Execution Info sheet.
type Timing struct {
	StartedAt   time.Time
	EndedAt     time.Time
	Locations   int
	CartCapture bool
}

func (t Timing) elapsed() time.Duration {
	return t.EndedAt.Sub(t.StartedAt)
}

// ExcelWriter renders a reconciliation result into a timestamped xlsx
// workbook under the output directory.
type ExcelWriter struct {
	dir string
	log *logger.Logger
}

func NewExcelWriter(dir string) *ExcelWriter {
	return &ExcelWriter{dir: dir, log: logger.ForReconciler()}
}

// Write produces the workbook and returns its path. Cart and combined sheets
// appear only when their row sets are non-empty.
func (w *ExcelWriter) Write(
	result *reconcile.Result,
	provinces []reconcile.ProvinceSummary,
	cartRows []reconcile.CartRow,
	combined []reconcile.CombinedRow,
	timing Timing,
) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newSheetStyles(f)
	if err != nil {
		return "", err
	}

	if err := w.writeSummary(f, styles, result); err != nil {
		return "", err
	}
	if err := w.writeExecutionInfo(f, styles, result, timing); err != nil {
		return "", err
	}
	if err := w.writeDetails(f, styles, "Details", result.Details); err != nil {
		return "", err
	}
	if err := w.writeDetails(f, styles, "Discrepancies", result.Discrepancies); err != nil {
		return "", err
	}
	if err := w.writeProvinces(f, styles, provinces); err != nil {
		return "", err
	}
	if len(cartRows) > 0 {
		if err := w.writeCart(f, styles, cartRows); err != nil {
			return "", err
		}
	}
	if len(combined) > 0 {
		if err := w.writeCombined(f, styles, combined); err != nil {
			return "", err
		}
	}

	if idx, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(idx)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("results_%s.xlsx", time.Now().Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving report: %w", err)
	}

	w.log.Info().Str("path", path).Int("rows", len(result.Details)).Msg("Report written")
	return path, nil
}

type sheetStyles struct {
	header int
	pass   int
	fail   int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F81BD"}},
	})
	if err != nil {
		return sheetStyles{}, err
	}
	pass, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
	})
	if err != nil {
		return sheetStyles{}, err
	}
	fail, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
	})
	if err != nil {
		return sheetStyles{}, err
	}
	return sheetStyles{header: header, pass: pass, fail: fail}, nil
}

func addSheet(f *excelize.File, name string) error {
	if name == "Summary" {
		return f.SetSheetName(f.GetSheetName(0), name)
	}
	_, err := f.NewSheet(name)
	return err
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	start, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &values)
}

func writeHeader(f *excelize.File, styles sheetStyles, sheet string, columns []any) error {
	if err := writeRow(f, sheet, 1, columns); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", end, styles.header)
}

func (w *ExcelWriter) writeSummary(f *excelize.File, styles sheetStyles, result *reconcile.Result) error {
	if err := addSheet(f, "Summary"); err != nil {
		return err
	}
	if err := writeHeader(f, styles, "Summary", []any{"Metric", "Value"}); err != nil {
		return err
	}
	rows := [][]any{
		{"Total Products", result.Summary.TotalProducts},
		{"Passed", result.Summary.Passed},
		{"Failed", result.Summary.Failed},
		{"Missing Expected", result.Summary.MissingExpected},
		{"Missing Actual", result.Summary.MissingActual},
		{"Pass Rate", result.Summary.PassRate},
		{"Result", result.SummaryLine},
	}
	for i, row := range rows {
		if err := writeRow(f, "Summary", i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth("Summary", "A", "B", 28)
}

func (w *ExcelWriter) writeExecutionInfo(f *excelize.File, styles sheetStyles, result *reconcile.Result, timing Timing) error {
	if err := addSheet(f, "Execution Info"); err != nil {
		return err
	}
	if err := writeHeader(f, styles, "Execution Info", []any{"Metric", "Value"}); err != nil {
		return err
	}

	elapsed := timing.elapsed()
	avg := time.Duration(0)
	if timing.Locations > 0 {
		avg = elapsed / time.Duration(timing.Locations)
	}
	cart := "NO"
	if timing.CartCapture {
		cart = "YES"
	}

	rows := [][]any{
		{"Start Time", timing.StartedAt.Format(time.RFC3339)},
		{"End Time", timing.EndedAt.Format(time.RFC3339)},
		{"Duration", fmt.Sprintf("%dm %ds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)},
		{"Locations Tested", timing.Locations},
		{"Products Compared", result.Summary.TotalProducts},
		{"Avg Time per Location", avg.Round(time.Second).String()},
		{"Cart Capture Enabled", cart},
	}
	for i, row := range rows {
		if err := writeRow(f, "Execution Info", i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth("Execution Info", "A", "B", 28)
}

func (w *ExcelWriter) writeDetails(f *excelize.File, styles sheetStyles, sheet string, rows []reconcile.Row) error {
	if err := addSheet(f, sheet); err != nil {
		return err
	}
	header := []any{"Province", "Store", "Category", "Product", "Size", "Pricing Tier",
		"Expected", "Actual", "Difference", "Status"}
	if err := writeHeader(f, styles, sheet, header); err != nil {
		return err
	}

	for i, row := range rows {
		rowNum := i + 2
		expected, actual, diff := "", "", ""
		if row.HasExpected {
			expected = row.Expected.StringFixed(2)
		}
		if row.HasActual {
			actual = row.Actual.StringFixed(2)
		}
		if row.HasExpected && row.HasActual {
			diff = row.Difference.StringFixed(2)
		}
		values := []any{row.Province, row.StoreName, row.Category, row.ProductName,
			row.Size, row.PricingTier, expected, actual, diff, string(row.Status)}
		if err := writeRow(f, sheet, rowNum, values); err != nil {
			return err
		}

		statusCell, err := excelize.CoordinatesToCellName(len(header), rowNum)
		if err != nil {
			return err
		}
		switch row.Status {
		case reconcile.StatusPass:
			err = f.SetCellStyle(sheet, statusCell, statusCell, styles.pass)
		case reconcile.StatusFail:
			err = f.SetCellStyle(sheet, statusCell, statusCell, styles.fail)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *ExcelWriter) writeProvinces(f *excelize.File, styles sheetStyles, provinces []reconcile.ProvinceSummary) error {
	if err := addSheet(f, "By Province"); err != nil {
		return err
	}
	if err := writeHeader(f, styles, "By Province", []any{"Province", "Total", "Passed", "Failed", "Pass Rate"}); err != nil {
		return err
	}
	for i, p := range provinces {
		values := []any{p.Province, p.TotalProducts, p.Passed, p.Failed, p.PassRate}
		if err := writeRow(f, "By Province", i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *ExcelWriter) writeCart(f *excelize.File, styles sheetStyles, rows []reconcile.CartRow) error {
	header := []any{"Province", "Store", "Category", "Product", "Size", "Pricing Tier",
		"Menu Price", "Cart Price", "Match"}

	if err := addSheet(f, "Menu vs Cart"); err != nil {
		return err
	}
	if err := writeHeader(f, styles, "Menu vs Cart", header); err != nil {
		return err
	}

	var mismatches []reconcile.CartRow
	for i, row := range rows {
		if err := writeRow(f, "Menu vs Cart", i+2, cartRowValues(row)); err != nil {
			return err
		}
		if !row.Match {
			mismatches = append(mismatches, row)
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	if err := addSheet(f, "Cart Mismatches"); err != nil {
		return err
	}
	if err := writeHeader(f, styles, "Cart Mismatches", header); err != nil {
		return err
	}
	for i, row := range mismatches {
		if err := writeRow(f, "Cart Mismatches", i+2, cartRowValues(row)); err != nil {
			return err
		}
	}
	return nil
}

func cartRowValues(row reconcile.CartRow) []any {
	menu, cart := "", ""
	if row.HasMenu {
		menu = row.MenuPrice.StringFixed(2)
	}
	if row.HasCart {
		cart = row.CartPrice.StringFixed(2)
	}
	return []any{row.Province, row.StoreName, row.Category, row.ProductName,
		row.Size, row.PricingTier, menu, cart, row.Match}
}

func (w *ExcelWriter) writeCombined(f *excelize.File, styles sheetStyles, rows []reconcile.CombinedRow) error {
	if err := addSheet(f, "Price Comparison"); err != nil {
		return err
	}
	header := []any{"Province", "Store", "Category", "Product", "Size", "Pricing Tier",
		"Expected", "Menu Price", "Cart Price", "Issues", "Status"}
	if err := writeHeader(f, styles, "Price Comparison", header); err != nil {
		return err
	}

	for i, row := range rows {
		rowNum := i + 2
		expected, cart := "", ""
		if row.HasExpected {
			expected = row.Expected.StringFixed(2)
		}
		if row.HasCart {
			cart = row.CartPrice.StringFixed(2)
		}
		status := "PASS"
		if !row.Pass {
			status = "FAIL"
		}
		values := []any{row.Province, row.StoreName, row.Category, row.ProductName,
			row.Size, row.PricingTier, expected, row.MenuPrice.StringFixed(2), cart,
			combinedIssues(row), status}
		if err := writeRow(f, "Price Comparison", rowNum, values); err != nil {
			return err
		}

		statusCell, err := excelize.CoordinatesToCellName(len(header), rowNum)
		if err != nil {
			return err
		}
		style := styles.pass
		if !row.Pass {
			style = styles.fail
		}
		if err := f.SetCellStyle("Price Comparison", statusCell, statusCell, style); err != nil {
			return err
		}
	}
	return nil
}

func combinedIssues(row reconcile.CombinedRow) string {
	var issues []string
	if row.NoExpectedMatch {
		issues = append(issues, "no expected match")
	}
	if row.ExpectedMismatch {
		issues = append(issues, "expected mismatch")
	}
	if row.NoCartMatch {
		issues = append(issues, "no cart match")
	}
	if row.CartMismatch {
		issues = append(issues, "cart mismatch")
	}
	return strings.Join(issues, "; ")
}
