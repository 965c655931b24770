// Package fetch implements the page fetch work function run by the batch
// processor: one GET through the shared connection pool, summarized with
// goquery and optionally converted to Markdown.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/law-makers/batchcrawl/internal/cache"
	"github.com/law-makers/batchcrawl/internal/connpool"
	"github.com/law-makers/batchcrawl/internal/reqctx"
	"github.com/law-makers/batchcrawl/internal/retry"
	urlutil "github.com/law-makers/batchcrawl/internal/utils/url"
	"github.com/law-makers/batchcrawl/pkg/models"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 10 << 20

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Fetcher fetches and summarizes pages. It is safe for concurrent use.
type Fetcher struct {
	pool    *connpool.Pool
	cache   cache.Cache[*models.PageSummary]
	opts    models.FetchOptions
	headers map[string]string
	logger  zerolog.Logger
}

// New creates a Fetcher. A nil cache disables result caching.
func New(pool *connpool.Pool, c cache.Cache[*models.PageSummary], opts models.FetchOptions, logger zerolog.Logger) *Fetcher {
	headers := make(map[string]string, len(defaultHeaders)+len(opts.Headers))
	for k, v := range defaultHeaders {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &Fetcher{
		pool:    pool,
		cache:   c,
		opts:    opts,
		headers: headers,
		logger:  logger.With().Str("component", "fetch").Logger(),
	}
}

// Fetch retrieves rawURL and returns its summary. Non-2xx responses are
// returned as retry.HTTPError so the caller's retry policy can classify them.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.PageSummary, error) {
	if err := urlutil.ValidateURL(rawURL); err != nil {
		return nil, permanentError{err}
	}

	batchID := reqctx.FromContext(ctx).BatchID

	if f.cachingEnabled() {
		if cached, ok := f.cache.Get(rawURL); ok {
			f.logger.Debug().Str("url", rawURL).Msg("Cache hit")
			hit := *cached
			hit.Cached = true
			hit.BatchID = batchID
			return &hit, nil
		}
	}

	start := time.Now()
	resp, err := f.pool.Request(ctx, http.MethodGet, rawURL, nil, f.headers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, retry.NewHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode), rawURL)
	}

	summary := &models.PageSummary{
		URL:           rawURL,
		FinalURL:      resp.Request.URL.String(),
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: len(body),
		BatchID:       batchID,
		FetchedAt:     time.Now(),
		ResponseTime:  time.Since(start).Milliseconds(),
	}

	if isHTML(summary.ContentType) {
		if err := f.summarize(summary, body); err != nil {
			return nil, err
		}
	}

	if f.cachingEnabled() {
		stored := *summary
		if err := f.cache.Set(rawURL, &stored, f.opts.CacheTTL); err != nil {
			f.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache summary")
		}
	}

	f.logger.Debug().
		Str("url", rawURL).
		Str("batch_id", batchID).
		Int("status", summary.StatusCode).
		Int64("response_time_ms", summary.ResponseTime).
		Int("links", summary.Links).
		Msg("Fetch completed")

	return summary, nil
}

func (f *Fetcher) summarize(summary *models.PageSummary, body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return permanentError{fmt.Errorf("failed to parse HTML: %w", err)}
	}

	summary.Title = strings.TrimSpace(doc.Find("title").First().Text())
	summary.Description = metaContent(doc, "description")
	summary.Links = doc.Find("a[href]").Length()
	summary.Images = doc.Find("img[src]").Length()

	root := contentRoot(doc, f.opts.Selector)
	summary.Words = len(strings.Fields(root.Clone().Find("script, style, noscript").Remove().End().Text()))

	if f.opts.Markdown {
		html, err := root.Html()
		if err != nil {
			return permanentError{fmt.Errorf("failed to render content: %w", err)}
		}
		md, err := ToMarkdown(summary.FinalURL, html)
		if err != nil {
			return permanentError{err}
		}
		summary.Markdown = md
	}
	return nil
}

func (f *Fetcher) cachingEnabled() bool {
	return f.cache != nil && f.opts.CacheTTL >= 0
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[property="og:%s"]`, name)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

// contentRoot returns the selector's first match, falling back to body.
func contentRoot(doc *goquery.Document, selector string) *goquery.Selection {
	if selector != "" && selector != "body" {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body").First()
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

// permanentError marks failures a retry cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string   { return e.err.Error() }
func (e permanentError) Unwrap() error   { return e.err }
func (e permanentError) Permanent() bool { return true }
