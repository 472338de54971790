package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRun(time.Now(), nil)
	m.ObserveRun(time.Now(), errors.New("boom"))
	m.Item(ItemCreated)
	m.Item(ItemCreated)
	m.Item(ItemDuplicate)
	m.SetWatermark("host|user|idealista", 42)
	m.AddRescored(3)
	m.AddRescored(0)

	body := scrape(t, m)
	assert.Contains(t, body, `landscout_ingestion_runs_total{outcome="ok"} 1`)
	assert.Contains(t, body, `landscout_ingestion_runs_total{outcome="error"} 1`)
	assert.Contains(t, body, `landscout_ingestion_items_total{outcome="created"} 2`)
	assert.Contains(t, body, `landscout_ingestion_watermark{scope="host|user|idealista"} 42`)
	assert.Contains(t, body, `landscout_scoring_rescored_lands_total 3`)
	assert.Contains(t, body, `landscout_ingestion_run_duration_seconds_count 2`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Item(ItemFailed)

	assert.Contains(t, scrape(t, m), `landscout_ingestion_items_total{outcome="failed"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveRun(time.Now(), nil)
	m.Item(ItemCreated)
	m.SetWatermark("s", 1)
	m.AddRescored(1)
	m.ScoreFailed()
	assert.NotNil(t, m.Handler())
}
