package kawabou

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

const testUserAgent = "dam-etl-test"

var testTime = time.Date(2026, time.February, 12, 17, 13, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher(pause time.Duration, clock clockwork.Clock, m *observability.Metrics) *HTTPFetcher {
	return NewHTTPFetcher(5*time.Second, pause, testUserAgent, clock, m, discardLogger())
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "/3901.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"prefTwn":[]}`))
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	f := testFetcher(0, clockwork.NewFakeClockAt(testTime), m)

	body, ok := f.Fetch(context.Background(), FeedSummary, srv.URL+"/3901.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"prefTwn":[]}`, string(body))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(FeedSummary, "ok")))
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		m := observability.NewMetricsForTesting()
		f := testFetcher(0, clockwork.NewFakeClockAt(testTime), m)

		body, ok := f.Fetch(context.Background(), FeedGeo, srv.URL+"/x.json")
		assert.False(t, ok, "status %d", status)
		assert.Nil(t, body)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(FeedGeo, "status")))
		srv.Close()
	}
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	u := srv.URL
	srv.Close()

	m := observability.NewMetricsForTesting()
	f := testFetcher(0, clockwork.NewFakeClockAt(testTime), m)

	_, ok := f.Fetch(context.Background(), FeedDetail, u+"/x.json")
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues(FeedDetail, "error")))
}

func TestHTTPFetcher_PausesBetweenRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	clk := clockwork.NewFakeClockAt(testTime)
	f := testFetcher(50*time.Millisecond, clk, observability.NewMetricsForTesting())

	_, ok := f.Fetch(context.Background(), FeedSummary, srv.URL+"/a.json")
	require.True(t, ok)

	done := make(chan bool, 1)
	go func() {
		_, ok := f.Fetch(context.Background(), FeedSummary, srv.URL+"/b.json")
		done <- ok
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), hits.Load(), "second request must wait for the pause")

	clk.Advance(50 * time.Millisecond)
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-ctx.Done():
		t.Fatal("second fetch did not complete")
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestHTTPFetcher_PauseHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	clk := clockwork.NewFakeClockAt(testTime)
	f := testFetcher(time.Minute, clk, observability.NewMetricsForTesting())

	_, ok := f.Fetch(context.Background(), FeedSummary, srv.URL+"/a.json")
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok = f.Fetch(ctx, FeedSummary, srv.URL+"/b.json")
	assert.False(t, ok)
}
