package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"carsentry/internal/extract"
	"carsentry/pkg/models"
)

const (
	fetchAttempts     = 3
	fetchInitialDelay = 2 * time.Second
	fetchMaxDelay     = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher retrieves the raw HTML of one listing page.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher implements Fetcher with retried plain HTTP requests. Transient
// network and server-side failures are retried with exponential backoff;
// client-side failures are not.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "ja,en;q=0.9")

		resp, err := f.client.Do(req)
		if err != nil {
			return classifyFetchError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
			if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return classifyFetchError(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = fetchInitialDelay
	b.MaxInterval = fetchMaxDelay
	b.Multiplier = 2

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, fetchAttempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// classifyFetchError marks context cancellation as permanent; everything else
// at the transport level (timeouts, resets, DNS) is transient and retried.
func classifyFetchError(err error) error {
	if errors.Is(err, context.Canceled) {
		return backoff.Permanent(err)
	}
	return err
}

// Pipeline walks listing pages through the fast extraction strategy and falls
// back to a scripted browser render when the fast run comes up empty.
type Pipeline struct {
	fetcher   Fetcher
	extractor extract.Extractor
	renderer  extract.Renderer
}

// NewPipeline wires a pipeline. renderer may be nil when rendering is
// disabled; the fallback is then skipped.
func NewPipeline(fetcher Fetcher, extractor extract.Extractor, renderer extract.Renderer) *Pipeline {
	return &Pipeline{fetcher: fetcher, extractor: extractor, renderer: renderer}
}

// Fetch collects listings from pages 1..pageBudget of sourceURL. A page that
// yields zero listings ends the walk ("end of available inventory"). Fetch and
// extraction failures abort the remaining pages but keep what was already
// collected; an overall empty result triggers the rendering fallback once.
// An empty return is a legitimate "nothing found" outcome, never an error.
func (p *Pipeline) Fetch(ctx context.Context, sourceURL string, pageBudget int) []models.Listing {
	var all []models.Listing

	for page := 1; page <= pageBudget; page++ {
		url := PageURL(sourceURL, page)

		html, err := p.fetcher.FetchPage(ctx, url)
		if err != nil {
			slog.Warn("scrape: page fetch failed", "url", url, "error", err)
			break
		}

		listings, err := p.extractor.Extract(html)
		if err != nil {
			slog.Warn("scrape: page extraction failed", "url", url, "error", err)
			break
		}
		if len(listings) == 0 {
			break
		}

		slog.Info("scrape: page extracted", "url", url, "listings", len(listings))
		all = append(all, listings...)
	}

	if len(all) == 0 {
		all = p.renderFallback(ctx, sourceURL, pageBudget)
	}
	return all
}

func (p *Pipeline) renderFallback(ctx context.Context, sourceURL string, pageBudget int) []models.Listing {
	if p.renderer == nil {
		return nil
	}
	slog.Info("scrape: fast strategy found nothing, trying rendered fallback", "source", sourceURL)

	var all []models.Listing
	for page := 1; page <= pageBudget; page++ {
		url := PageURL(sourceURL, page)

		html, err := p.renderer.Render(ctx, url)
		if err != nil {
			slog.Warn("scrape: render failed", "url", url, "error", err)
			break
		}

		listings, err := p.extractor.Extract(html)
		if err != nil {
			slog.Warn("scrape: rendered page extraction failed", "url", url, "error", err)
			break
		}
		if len(listings) == 0 {
			break
		}
		all = append(all, listings...)
	}
	return all
}
