package kawabou

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/domain"
	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

// Endpoints are the roots of the three Kawabou feeds.
type Endpoints struct {
	Obslist string
	Gjson   string
	Tmlist  string
}

// Client decodes Kawabou feeds into domain payloads.
type Client struct {
	fetcher   Fetcher
	endpoints Endpoints
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates a feed client on top of a fetcher.
func NewClient(fetcher Fetcher, endpoints Endpoints, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		endpoints: Endpoints{
			Obslist: strings.TrimRight(endpoints.Obslist, "/"),
			Gjson:   strings.TrimRight(endpoints.Gjson, "/"),
			Tmlist:  strings.TrimRight(endpoints.Tmlist, "/"),
		},
		metrics: metrics,
		logger:  logger,
	}
}

// NewFromConfig wires the paced HTTP fetcher, the TTL cache and the client.
func NewFromConfig(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Client {
	var f Fetcher = NewHTTPFetcher(cfg.HTTPTimeout, cfg.RequestPause, cfg.UserAgent, clock, metrics, logger)
	f = NewCachedFetcher(f, cfg.FetchCacheSize, cfg.FetchCacheTTL, clock, metrics)
	return NewClient(f, Endpoints{
		Obslist: cfg.ObslistURL,
		Gjson:   cfg.GjsonURL,
		Tmlist:  cfg.TmlistURL,
	}, metrics, logger)
}

// Summary fetches the summary feed of one region, e.g. "3901".
func (c *Client) Summary(ctx context.Context, region string) (domain.SummaryFeed, bool) {
	var feed domain.SummaryFeed
	ok := c.decode(ctx, FeedSummary, fmt.Sprintf("%s/%s.json", c.endpoints.Obslist, region), &feed)
	return feed, ok
}

// Features fetches the geographic feed for a region or town code at a feed
// timestamp such as "20260212/1710".
func (c *Client) Features(ctx context.Context, ts, code string) (domain.FeatureFeed, bool) {
	var feed domain.FeatureFeed
	ok := c.decode(ctx, FeedGeo, fmt.Sprintf("%s/%s/dam/%s.json", c.endpoints.Gjson, ts, code), &feed)
	return feed, ok
}

// Detail fetches the per-station detail feed. It reports false when the
// payload carries no observation.
func (c *Client) Detail(ctx context.Context, ts, stationCode string) (domain.Observation, bool) {
	var feed domain.DetailFeed
	u := fmt.Sprintf("%s/%s/%s.json", c.endpoints.Tmlist, ts, stationCode)
	if !c.decode(ctx, FeedDetail, u, &feed) || feed.Value == nil {
		return domain.Observation{}, false
	}
	return *feed.Value, true
}

func (c *Client) decode(ctx context.Context, feed, url string, v any) bool {
	body, ok := c.fetcher.Fetch(ctx, feed, url)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(feed, "decode").Inc()
		c.logger.Debug("malformed feed payload", "feed", feed, "url", url, "error", err)
		return false
	}
	return true
}
