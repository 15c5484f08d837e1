package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuqa/pricevalidator/internal/browser/browsertest"
	"menuqa/pricevalidator/internal/domain"
)

func TestSnapshotter_Capture(t *testing.T) {
	dir := t.TempDir()

	page := browsertest.NewPage()
	page.CurrentURL = "https://example.test/menu/beverages"
	page.Default.Title = "Menu - Beverages"
	page.Default.Content = "<html><body>empty</body></html>"

	loc, err := domain.NewLocation("Vancouver Downtown", "1234 Main Street, Vancouver, BC", "BC", "")
	require.NoError(t, err)

	s := NewSnapshotter(dir)
	s.Capture(page, "no_products_beverages", &loc)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	snapDir := filepath.Join(dir, entries[0].Name())
	files, err := os.ReadDir(snapDir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	data, err := os.ReadFile(filepath.Join(snapDir, "no_products_beverages_state.json"))
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, "https://example.test/menu/beverages", state["url"])
	assert.Equal(t, "no_products_beverages", state["context"])
	assert.Equal(t, "Menu - Beverages", state["page_title"])

	location, ok := state["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Vancouver Downtown", location["store_name"])
	assert.Equal(t, "PL1", location["pricing_level"])
}

func TestSnapshotter_DisabledWithoutDir(t *testing.T) {
	s := NewSnapshotter("")
	// Must be a no-op, including on a nil receiver.
	s.Capture(browsertest.NewPage(), "anything", nil)

	var nilSnap *Snapshotter
	nilSnap.Capture(browsertest.NewPage(), "anything", nil)
}
