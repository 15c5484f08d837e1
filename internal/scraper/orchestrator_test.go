package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuqa/pricevalidator/internal/browser/browsertest"
	"menuqa/pricevalidator/internal/domain"
	"menuqa/pricevalidator/services/cache"
	"menuqa/pricevalidator/services/publisher"
)

type capturingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *capturingPublisher) Publish(key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func testLocations(t *testing.T, n int) []domain.Location {
	t.Helper()
	stores := []struct{ name, address, province string }{
		{"Vancouver Downtown", "1234 Main Street, Vancouver, BC", "BC"},
		{"Calgary Centre", "5678 Centre Street, Calgary, AB", "AB"},
		{"Toronto East", "910 Queen Street, Toronto, ON", "ON"},
		{"Winnipeg South", "22 Portage Avenue, Winnipeg, MB", "MB"},
		{"Halifax Harbour", "77 Water Street, Halifax, NS", "NS"},
	}
	require.LessOrEqual(t, n, len(stores))

	locations := make([]domain.Location, 0, n)
	for _, s := range stores[:n] {
		loc, err := domain.NewLocation(s.name, s.address, s.province, "")
		require.NoError(t, err)
		locations = append(locations, loc)
	}
	return locations
}

func newTestOrchestrator(b *browsertest.Browser, maxConcurrent int, cacheSvc cache.CacheService, pub *capturingPublisher) *Orchestrator {
	cfg := OrchestratorConfig{
		Session: SessionConfig{
			BaseURL:       sessionBaseURL,
			RetryAttempts: 1,
			RenderWait:    time.Millisecond,
		},
		Selectors:     DefaultSelectors(),
		MaxConcurrent: maxConcurrent,
	}
	var p publisher.Publisher
	if pub != nil {
		p = pub
	}
	o := NewOrchestrator(b, cfg, cacheSvc, p, nil)
	o.sessionSleep = func(time.Duration) {}
	return o
}

func TestOrchestrator_BoundsConcurrency(t *testing.T) {
	fb := &browsertest.Browser{NewPageFunc: newSessionPage}
	o := newTestOrchestrator(fb, 2, nil, nil)

	locations := testLocations(t, 5)
	records, failed := o.Run(context.Background(), locations)

	assert.Empty(t, failed)
	assert.LessOrEqual(t, fb.MaxOpen(), 2)

	// Every location produced records: 2 sizes x 8 categories each.
	perStore := map[string]int{}
	for _, record := range records {
		perStore[record.StoreName]++
	}
	assert.Len(t, perStore, 5)
	for store, count := range perStore {
		assert.Equal(t, 16, count, store)
	}
}

func TestOrchestrator_IsolatesFailedLocation(t *testing.T) {
	created := 0
	fb := &browsertest.Browser{NewPageFunc: func() *browsertest.Page {
		page := newSessionPage()
		created++
		if created == 1 {
			page.NavErr[sessionBaseURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		return page
	}}
	o := newTestOrchestrator(fb, 1, nil, nil)

	locations := testLocations(t, 3)
	records, failed := o.Run(context.Background(), locations)

	require.Len(t, failed, 1)
	assert.Error(t, failed[0].Err)

	perStore := map[string]bool{}
	for _, record := range records {
		perStore[record.StoreName] = true
	}
	assert.Len(t, perStore, 2)
	assert.NotContains(t, perStore, failed[0].Location.StoreName)
}

func TestOrchestrator_CooldownSkipsRecentStore(t *testing.T) {
	cacheSvc := cache.NewMemoryCacheService()
	require.NoError(t, cacheSvc.Set("cooldown:Vancouver Downtown", []byte("1"), time.Minute))

	fb := &browsertest.Browser{NewPageFunc: newSessionPage}
	o := newTestOrchestrator(fb, 1, cacheSvc, nil)
	o.cfg.Cooldown = time.Minute

	locations := testLocations(t, 2)
	records, failed := o.Run(context.Background(), locations)

	assert.Empty(t, failed)
	for _, record := range records {
		assert.NotEqual(t, "Vancouver Downtown", record.StoreName)
	}
	assert.NotEmpty(t, records)

	// The scraped store is now on cooldown too.
	_, err := cacheSvc.Get("cooldown:Calgary Centre")
	assert.NoError(t, err)
}

func TestOrchestrator_PublishesRecords(t *testing.T) {
	fb := &browsertest.Browser{NewPageFunc: newSessionPage}
	pub := &capturingPublisher{}
	o := newTestOrchestrator(fb, 2, nil, pub)

	records, failed := o.Run(context.Background(), testLocations(t, 2))

	assert.Empty(t, failed)
	assert.Equal(t, len(records), pub.count())
}

func TestOrchestrator_NoLocations(t *testing.T) {
	fb := &browsertest.Browser{NewPageFunc: newSessionPage}
	o := newTestOrchestrator(fb, 2, nil, nil)

	records, failed := o.Run(context.Background(), nil)
	assert.Empty(t, records)
	assert.Empty(t, failed)
}
