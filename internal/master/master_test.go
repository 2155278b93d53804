package master

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/dam-data-etl/internal/adapter/kawabou"
	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/domain"
	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

var testNow = time.Date(2026, time.February, 12, 17, 13, 0, 0, domain.JST)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })
}

// --- stub source ---

type stubSource struct {
	summaries    map[string]domain.SummaryFeed
	features     map[string]domain.FeatureFeed // keyed by "ts|code"
	summaryCalls []string
	featureCalls []string
}

func (s *stubSource) Summary(_ context.Context, region string) (domain.SummaryFeed, bool) {
	s.summaryCalls = append(s.summaryCalls, region)
	f, ok := s.summaries[region]
	return f, ok
}

func (s *stubSource) Features(_ context.Context, ts, code string) (domain.FeatureFeed, bool) {
	s.featureCalls = append(s.featureCalls, ts)
	f, ok := s.features[ts+"|"+code]
	return f, ok
}

func town(code string, obsTimes ...string) domain.TownSummary {
	ts := domain.TownSummary{TownCode: domain.Text(code)}
	for _, o := range obsTimes {
		ts.Dams = append(ts.Dams, domain.Observation{ObsTime: domain.Text(o)})
	}
	return ts
}

func feature(code, name string) domain.Feature {
	return domain.Feature{Properties: domain.FeatureProperties{
		StationCode: domain.Text(code),
		Name:        domain.Text(name),
	}}
}

var testProbe = Probe{Region: "3901", Town: "3901363", Attempts: 6}

// --- ResolveTimestamp ---

func TestResolveTimestamp_FromSummary(t *testing.T) {
	freezeClock(t)
	src := &stubSource{summaries: map[string]domain.SummaryFeed{
		"3901": {Towns: []domain.TownSummary{town("3901001"), town("3901363", "2026/02/12 17:19", "2026/02/12 16:00")}},
	}}

	ts, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "20260212/1710", ts)
	assert.Empty(t, src.featureCalls)
}

func TestResolveTimestamp_ProbesBackwards(t *testing.T) {
	freezeClock(t)
	src := &stubSource{features: map[string]domain.FeatureFeed{
		"20260212/1650|3901363": {},
	}}

	ts, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "20260212/1650", ts)
	assert.Equal(t, []string{"20260212/1710", "20260212/1700", "20260212/1650"}, src.featureCalls)
}

func TestResolveTimestamp_UnparseableObsTimeFallsBack(t *testing.T) {
	freezeClock(t)
	src := &stubSource{
		summaries: map[string]domain.SummaryFeed{"3901": {Towns: []domain.TownSummary{town("3901363", "--")}}},
		features:  map[string]domain.FeatureFeed{"20260212/1710|3901363": {}},
	}

	ts, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "20260212/1710", ts)
}

func TestResolveTimestamp_SkipsTownWithUnparseableObsTime(t *testing.T) {
	freezeClock(t)
	src := &stubSource{summaries: map[string]domain.SummaryFeed{
		"3901": {Towns: []domain.TownSummary{
			town("3901001", ""),
			town("3901363", "2026/02/12 16:49"),
		}},
	}}

	ts, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "20260212/1640", ts)
	assert.Empty(t, src.featureCalls)
}

func TestResolveTimestamp_NoTimestamp(t *testing.T) {
	freezeClock(t)
	src := &stubSource{}

	_, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.ErrorIs(t, err, ErrNoTimestamp)
	require.Len(t, src.featureCalls, 6)
	assert.Equal(t, "20260212/1620", src.featureCalls[5])
}

func TestResolveTimestamp_CrossesMidnight(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.February, 13, 0, 4, 0, 0, domain.JST)))
	t.Cleanup(func() { domain.SetClock(nil) })
	src := &stubSource{features: map[string]domain.FeatureFeed{"20260212/2350|3901363": {}}}

	ts, err := ResolveTimestamp(context.Background(), src, testProbe, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "20260212/2350", ts)
}

// --- EnumerateTowns ---

func TestEnumerateTowns(t *testing.T) {
	src := &stubSource{summaries: map[string]domain.SummaryFeed{
		"3901": {Towns: []domain.TownSummary{town("3901363", "x"), town("3901001")}},
		"0201": {Towns: []domain.TownSummary{town("0201100", "x"), town("3901363", "x")}},
		"102":  {Towns: []domain.TownSummary{town("0102001", "x"), town("", "x")}},
	}}

	towns, err := EnumerateTowns(context.Background(), src, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"0102001", "0201100", "3901363"}, towns)
	assert.Equal(t, domain.RegionCodes(), src.summaryCalls)
}

func TestEnumerateTowns_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EnumerateTowns(ctx, &stubSource{}, discardLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Builder ---

func testConfig() *config.Config {
	return &config.Config{ProbeRegion: "3901", ProbeTown: "3901363", TimestampProbeAttempts: 6}
}

func TestBuilder_Build(t *testing.T) {
	freezeClock(t)
	src := &stubSource{
		summaries: map[string]domain.SummaryFeed{
			"3901": {Towns: []domain.TownSummary{town("3901363", "2026/02/12 17:10")}},
			"0401": {Towns: []domain.TownSummary{town("0401200", "2026/02/12 17:10")}},
		},
		features: map[string]domain.FeatureFeed{
			"20260212/1710|3901363": {Features: []domain.Feature{
				{Properties: domain.FeatureProperties{
					StationCode: "2255200700004", Name: "早明浦ダム", Kana: "さめうらだむ", River: "吉野川",
					Lat: domain.NumOf(33.76), Lon: domain.NumOf(133.56), PrefCode: "39",
				}},
				feature("", "名無しコード"),
				feature("9999", ""),
			}},
			"20260212/1710|0401200": {Features: []domain.Feature{feature("2046000700001", "栗駒ダム（利水）")}},
		},
	}
	m := observability.NewMetricsForTesting()
	b := NewBuilder(src, testConfig(), m, discardLogger())

	got, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "20260212/1710", got.TimestampUsed)
	assert.Equal(t, "2026-02-12T17:13:00+09:00", got.Updated)
	require.Len(t, got.Stations, 2)

	s := got.Stations["2255200700004"]
	assert.Equal(t, "早明浦ダム", s.Name)
	assert.Equal(t, "さめうらだむ", s.Kana)
	assert.Equal(t, "吉野川", s.River)
	assert.Equal(t, "39", s.PrefCode)
	assert.Equal(t, "3901363", s.TownCode)
	assert.Equal(t, "0401200", got.Stations["2046000700001"].TownCode)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MasterStations))
}

func TestBuilder_BuildFailsWithoutTimestamp(t *testing.T) {
	freezeClock(t)
	b := NewBuilder(&stubSource{}, testConfig(), observability.NewMetricsForTesting(), discardLogger())

	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

// --- end to end over HTTP ---

func TestBuilder_RunWritesMasterFile(t *testing.T) {
	freezeClock(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/obslist/3901.json":
			_, _ = w.Write([]byte(`{"prefTwn":[{"twnCd":"3901363","dam":[{"obsFcd":"2255200700004","obsTime":"2026/02/12 17:10"}]}]}`))
		case "/gjson/20260212/1710/dam/3901363.json":
			_, _ = w.Write([]byte(`{"features":[{"properties":{"obs_fcd":"2255200700004","obs_nm":"早明浦ダム","obs_kana":"さめうらだむ","rvr_nm":"吉野川","lat":33.76,"lon":133.56,"pref_cd":"39"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	client := kawabou.NewClient(
		kawabou.NewHTTPFetcher(5*time.Second, 0, "test", clockwork.NewFakeClockAt(testNow), m, discardLogger()),
		kawabou.Endpoints{Obslist: srv.URL + "/obslist", Gjson: srv.URL + "/gjson", Tmlist: srv.URL + "/tmlist"},
		m, discardLogger(),
	)
	path := filepath.Join(t.TempDir(), "data", "kawabou_dam_master.json")

	b := NewBuilder(client, testConfig(), m, discardLogger())
	require.NoError(t, b.Run(context.Background(), path))

	got, err := jsonfile.LoadMaster(path)
	require.NoError(t, err)
	assert.Equal(t, "20260212/1710", got.TimestampUsed)
	require.Contains(t, got.Stations, "2255200700004")
	assert.Equal(t, "早明浦ダム", got.Stations["2255200700004"].Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("master", "success")))
}

func TestBuilder_RunFailureKeepsPreviousFile(t *testing.T) {
	freezeClock(t)
	path := filepath.Join(t.TempDir(), "master.json")
	prev := domain.MasterFile{TimestampUsed: "20260101/0000", Stations: map[string]domain.Station{"1": {Name: "旧"}}}
	require.NoError(t, jsonfile.SaveMaster(path, prev))

	m := observability.NewMetricsForTesting()
	b := NewBuilder(&stubSource{}, testConfig(), m, discardLogger())
	require.ErrorIs(t, b.Run(context.Background(), path), ErrNoTimestamp)

	got, err := jsonfile.LoadMaster(path)
	require.NoError(t, err)
	assert.Equal(t, "20260101/0000", got.TimestampUsed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("master", "error")))
}
