package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

const (
	DefaultFetchRetries = 3
	maxFetchBackoff     = 8 * time.Second
	baseFetchBackoff    = 800 * time.Millisecond
	maxFeedBytes        = 16 << 20
)

// Fetcher retrieves and parses a source feed. Failures are returned as
// *errkind.Error with kind Timeout, HTTP or Parse.
type Fetcher struct {
	httpClient *http.Client
	parser     *Parser
	userAgent  string
	retries    int
	backoff    func(attempt int) time.Duration
}

func NewFetcher(httpClient *http.Client, parser *Parser, userAgent string, retries int) *Fetcher {
	if retries <= 0 {
		retries = DefaultFetchRetries
	}
	return &Fetcher{
		httpClient: httpClient,
		parser:     parser,
		userAgent:  userAgent,
		retries:    retries,
		backoff:    FetchBackoff,
	}
}

// FetchBackoff returns min(8s, 0.8s * 2^attempt).
func FetchBackoff(attempt int) time.Duration {
	d := baseFetchBackoff << uint(attempt)
	if d > maxFetchBackoff || d <= 0 {
		return maxFetchBackoff
	}
	return d
}

func (f *Fetcher) Fetch(ctx context.Context, feedConfig *Config, maxEntries int) ([]Entry, error) {
	limit := maxEntries
	if feedConfig.Settings.MaxItems > 0 && (limit == 0 || feedConfig.Settings.MaxItems < limit) {
		limit = feedConfig.Settings.MaxItems
	}

	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		_, entries, err := f.fetchOnce(ctx, feedConfig, limit)
		if err == nil {
			return entries, nil
		}
		lastErr = err

		slog.Debug("Feed fetch attempt failed", "feed", feedConfig.Name, "attempt", attempt+1, "error", err)

		if attempt == f.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.Timeout, "feed", ctx.Err())
		case <-time.After(f.backoff(attempt)):
		}
	}

	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, feedConfig *Config, limit int) (*Metadata, []Entry, error) {
	timeout := time.Duration(feedConfig.Settings.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := f.download(timeoutCtx, feedConfig.URL)
	if err != nil {
		return nil, nil, err
	}

	metadata, entries, err := f.parser.Run(data, feedConfig.Name, limit)
	if err != nil {
		return nil, nil, errkind.Wrap(errkind.Parse, "feed", err)
	}

	return metadata, entries, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errkind.Wrap(errkind.HTTP, "feed", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if errkind.IsTimeout(err) {
			return nil, errkind.Wrap(errkind.Timeout, "feed", err)
		}
		return nil, errkind.Wrap(errkind.HTTP, "feed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, errkind.New(errkind.HTTP, "feed", fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		if errkind.IsTimeout(err) || errors.Is(err, context.Canceled) {
			return nil, errkind.Wrap(errkind.Timeout, "feed", err)
		}
		return nil, errkind.Wrap(errkind.HTTP, "feed", fmt.Errorf("failed to read response body: %w", err))
	}

	return data, nil
}
