package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/batchcrawl/internal/cache"
	"github.com/law-makers/batchcrawl/internal/connpool"
	"github.com/law-makers/batchcrawl/internal/reqctx"
	"github.com/law-makers/batchcrawl/internal/retry"
	"github.com/law-makers/batchcrawl/pkg/models"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
  <title> Example Page </title>
  <meta name="description" content="A page for tests">
  <script>var ignored = "these words do not count";</script>
</head>
<body>
  <nav><a href="/home">Home</a></nav>
  <article id="main">
    <h1>Hello world</h1>
    <p>Some <a href="/docs" title="Docs">linked docs</a> here.</p>
    <img src="/logo.png" alt="logo">
  </article>
</body>
</html>`

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testPage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>" + r.Header.Get("X-Run") + "</title>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, opts models.FetchOptions, c cache.Cache[*models.PageSummary]) *Fetcher {
	t.Helper()
	pool := connpool.New(connpool.Options{Timeout: 5 * time.Second})
	t.Cleanup(func() { pool.Close() })
	return New(pool, c, opts, zerolog.Nop())
}

func TestFetch_SummarizesPage(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{}, nil)

	ctx := reqctx.WithBatch(context.Background(), "batch_test", time.Now())
	summary, err := f.Fetch(ctx, server.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, summary.StatusCode)
	assert.Equal(t, "Example Page", summary.Title)
	assert.Equal(t, "A page for tests", summary.Description)
	assert.Equal(t, 2, summary.Links)
	assert.Equal(t, 1, summary.Images)
	// Home Hello world Some linked docs here.
	assert.Equal(t, 7, summary.Words)
	assert.Equal(t, "batch_test", summary.BatchID)
	assert.Equal(t, len(testPage), summary.ContentLength)
	assert.Empty(t, summary.Markdown)
	assert.False(t, summary.Cached)
}

func TestFetch_SelectorAndMarkdown(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{Selector: "#main", Markdown: true}, nil)

	summary, err := f.Fetch(context.Background(), server.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Words)
	assert.Contains(t, summary.Markdown, "# Hello world")
	assert.Contains(t, summary.Markdown, `[linked docs](`+server.URL+`/docs "Docs")`)
	assert.NotContains(t, summary.Markdown, "Home")
}

func TestFetch_NonSuccessStatusIsHTTPError(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{}, nil)

	_, err := f.Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)

	var httpErr retry.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestFetch_RetryDoesNotRepeatClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{}, nil)

	cfg := retry.DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	_, err := retry.Do(context.Background(), cfg, func(ctx context.Context) (*models.PageSummary, error) {
		return f.Fetch(ctx, server.URL+"/missing")
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_InvalidURLIsPermanent(t *testing.T) {
	f := newTestFetcher(t, models.FetchOptions{}, nil)

	_, err := f.Fetch(context.Background(), "ftp://example.com/file")
	require.Error(t, err)

	var perm interface{ Permanent() bool }
	require.True(t, errors.As(err, &perm))
	assert.True(t, perm.Permanent())
}

func TestFetch_NonHTMLSkipsParsing(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{Markdown: true}, nil)

	summary, err := f.Fetch(context.Background(), server.URL+"/json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", summary.ContentType)
	assert.Zero(t, summary.Words)
	assert.Empty(t, summary.Markdown)
}

func TestFetch_CachesSummaries(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	c := cache.NewMemoryCache[*models.PageSummary](10, 0)
	defer c.Close()
	f := newTestFetcher(t, models.FetchOptions{}, c)

	first, err := f.Fetch(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	ctx := reqctx.WithBatch(context.Background(), "second", time.Now())
	second, err := f.Fetch(ctx, server.URL+"/page")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "second", second.BatchID)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, int32(1), hits.Load())

	_, err = f.Fetch(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestFetch_CacheDisabledByNegativeTTL(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	c := cache.NewMemoryCache[*models.PageSummary](10, 0)
	defer c.Close()
	f := newTestFetcher(t, models.FetchOptions{CacheTTL: -1}, c)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), server.URL+"/page")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Zero(t, c.Len())
}

func TestFetch_SendsConfiguredHeaders(t *testing.T) {
	var hits atomic.Int32
	server := newTestServer(t, &hits)
	f := newTestFetcher(t, models.FetchOptions{Headers: map[string]string{"X-Run": "nightly"}}, nil)

	summary, err := f.Fetch(context.Background(), server.URL+"/headers")
	require.NoError(t, err)
	assert.Equal(t, "nightly", summary.Title)
}

func TestToMarkdown(t *testing.T) {
	out, err := ToMarkdown("https://example.com/a/", `<h2 class="x">Title</h2><script>x()</script><p><a href="b">Next</a> <img src="/i.png" alt="i" width="3"></p>`)
	require.NoError(t, err)

	assert.Contains(t, out, "## Title")
	assert.Contains(t, out, "[Next](https://example.com/a/b)")
	assert.Contains(t, out, "![i](/i.png)")
	assert.NotContains(t, out, "x()")
}
