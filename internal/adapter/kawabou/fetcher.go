package kawabou

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

// Feed names used as the "feed" label in logs and metrics.
const (
	FeedSummary = "summary"
	FeedGeo     = "geo"
	FeedDetail  = "detail"
)

// maxBodyBytes bounds a single feed payload.
const maxBodyBytes = 32 << 20

// Fetcher retrieves the raw body of a feed URL. A false result means the
// payload is unavailable for any reason; callers treat it as "no data".
type Fetcher interface {
	Fetch(ctx context.Context, feed, url string) ([]byte, bool)
}

// HTTPFetcher fetches feeds over HTTP, one request at a time, with a minimum
// pause between consecutive requests.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	pause      time.Duration
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewHTTPFetcher creates a fetcher. A zero pause disables pacing.
func NewHTTPFetcher(timeout, pause time.Duration, userAgent string, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		pause:      pause,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch issues a GET and returns the body of a 200 response. Network errors,
// other status codes and unreadable bodies are logged at debug and counted,
// never returned.
func (f *HTTPFetcher) Fetch(ctx context.Context, feed, url string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, false
	}
	defer func() { f.last = f.clock.Now() }()

	start := time.Now()
	body, outcome, err := f.get(ctx, url)
	f.metrics.UpstreamDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
	f.metrics.UpstreamRequests.WithLabelValues(feed, outcome).Inc()
	if err != nil {
		f.logger.Debug("feed unavailable", "feed", feed, "url", url, "error", err)
		return nil, false
	}
	return body, true
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "error", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "error", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "status", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "error", fmt.Errorf("read body: %w", err)
	}
	return body, "ok", nil
}

// wait blocks until the pause since the previous request has elapsed.
func (f *HTTPFetcher) wait(ctx context.Context) error {
	if f.pause <= 0 || f.last.IsZero() {
		return nil
	}
	d := f.last.Add(f.pause).Sub(f.clock.Now())
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.clock.After(d):
		return nil
	}
}
