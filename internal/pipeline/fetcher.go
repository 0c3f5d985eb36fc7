package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/marquee/internal/common"
)

// Fetcher is the shared HTTP substrate for schedule pages, detail pages
// and cover images. A cookie jar is kept per Fetcher so session cookies
// set by a source persist across its pages, and a single rate limiter
// throttles all traffic toward source sites.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	acceptLang  string
	maxBodySize int64
	config      common.FetchConfig
	logger      arbor.ILogger
}

// NewFetcher creates a fetcher from the fetch configuration
func NewFetcher(config common.FetchConfig, logger arbor.ILogger) *Fetcher {
	jar, _ := cookiejar.New(nil)

	limit := rate.Limit(config.RateLimit)
	if config.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Fetcher{
		client: &http.Client{
			Jar: jar,
		},
		limiter:     rate.NewLimiter(limit, 1),
		userAgent:   config.UserAgent,
		acceptLang:  config.AcceptLanguage,
		maxBodySize: config.MaxBodySize,
		config:      config,
		logger:      logger,
	}
}

// get performs a rate-limited GET and returns the body, content type and
// status code. Bodies beyond maxBodySize are truncated.
func (f *Fetcher) get(ctx context.Context, rawURL, accept, referer string, timeout time.Duration) ([]byte, string, int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", 0, fmt.Errorf("rate limiter wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	if f.acceptLang != "" {
		req.Header.Set("Accept-Language", f.acceptLang)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if f.maxBodySize > 0 {
		reader = io.LimitReader(resp.Body, f.maxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}

	return body, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// Document fetches a schedule page and parses it into a goquery document
func (f *Fetcher) Document(ctx context.Context, rawURL, referer string) (*goquery.Document, error) {
	return f.document(ctx, rawURL, referer, f.config.PageTimeoutDuration())
}

// DetailDocument fetches a movie detail page with the shorter detail
// timeout
func (f *Fetcher) DetailDocument(ctx context.Context, rawURL, referer string) (*goquery.Document, error) {
	return f.document(ctx, rawURL, referer, f.config.DetailTimeoutDuration())
}

func (f *Fetcher) document(ctx context.Context, rawURL, referer string, timeout time.Duration) (*goquery.Document, error) {
	body, _, status, err := f.get(ctx, rawURL, "text/html,application/xhtml+xml", referer, timeout)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	f.logger.Debug().
		Str("url", rawURL).
		Int("bytes", len(body)).
		Msg("Fetched document")

	return doc, nil
}

// Bytes fetches a binary resource, typically a cover image, and returns
// the body with its content type
func (f *Fetcher) Bytes(ctx context.Context, rawURL, referer string) ([]byte, string, error) {
	body, contentType, status, err := f.get(ctx, rawURL, "image/avif,image/webp,image/*,*/*;q=0.8", referer, f.config.ImageTimeoutDuration())
	if err != nil {
		return nil, "", err
	}
	if status < 200 || status >= 300 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", rawURL, status)
	}
	return body, contentType, nil
}

// Preflight checks that a source responds at all before a run commits to
// it. Any HTTP response, including an error status, counts as reachable;
// only transport failures are fatal.
func (f *Fetcher) Preflight(ctx context.Context, rawURL string) error {
	_, _, _, err := f.get(ctx, rawURL, "text/html", "", f.config.PageTimeoutDuration())
	if err != nil {
		return fmt.Errorf("source unreachable: %w", err)
	}
	return nil
}
