package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsole_Summary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	result := sampleResult()
	c.Banner("https://www.panago.com", 2, 10, false)
	c.Summary(result, nil)

	out := buf.String()
	assert.Contains(t, out, "Menu Price Validation")
	assert.Contains(t, out, "locations:       2")
	assert.Contains(t, out, "Pass Rate")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, result.SummaryLine)
}

func TestConsole_Discrepancies(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	result := sampleResult()
	c.Discrepancies(result.Discrepancies, 10)

	out := buf.String()
	assert.Contains(t, out, "Tropical")
	assert.Contains(t, out, "18.49")
	assert.Contains(t, out, "FAIL")
}

func TestConsole_DiscrepanciesCapped(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	rows := sampleResult().Discrepancies
	rows = append(rows, rows[0], rows[0])
	c.Discrepancies(rows, 1)

	assert.Contains(t, buf.String(), "and 2 more")
}

func TestConsole_DiscrepanciesEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Discrepancies(nil, 10)
	assert.Empty(t, buf.String())
}
