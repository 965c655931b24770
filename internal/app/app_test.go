package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/batchcrawl/internal/config"
	"github.com/law-makers/batchcrawl/pkg/models"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Batch.ItemDelay = 0
	cfg.HTTP.RateLimitRPS = 0

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestApplication_ProcessesURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>" + r.URL.Path + "</title><body>one two</body>"))
	}))
	defer server.Close()

	a := newTestApp(t)
	p, err := a.NewProcessor(a.NewFetcher(models.FetchOptions{}))
	require.NoError(t, err)
	defer p.Close()

	urls := []string{server.URL + "/a", server.URL + "/bad", server.URL + "/b"}
	pages, err := p.ProcessBatch(context.Background(), urls, "app-test")
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, "/a", pages[0].Title)
	assert.Equal(t, "/b", pages[1].Title)
	assert.Equal(t, "app-test", pages[0].BatchID)
	assert.Equal(t, 2, pages[0].Words)

	m := p.Metrics()
	assert.Equal(t, int64(2), m.TasksCompleted)
	assert.Equal(t, int64(1), m.TasksFailed)

	reg, err := NewRegistry(p, a.Pool)
	require.NoError(t, err)
	n, err := testutil.GatherAndCount(reg, "batchcrawl_batch_tasks_completed_total", "batchcrawl_pool_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := NewLogger(&config.Config{LogLevel: "warn", JSONLog: true}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}
