// Package realtime produces the realtime snapshot: live readings for every
// curated dam, gathered from the Kawabou summary feeds with a geographic
// fallback for stations the summaries omit.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/domain"
	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

const (
	// The fallback pass reads the 5 minute feeds, lagged by one interval so
	// the files have been published.
	fallbackLag  = 5 * time.Minute
	fallbackStep = 5 * time.Minute
)

// Source is the subset of the Kawabou client the realtime fetcher needs.
type Source interface {
	Summary(ctx context.Context, region string) (domain.SummaryFeed, bool)
	Features(ctx context.Context, ts, code string) (domain.FeatureFeed, bool)
	Detail(ctx context.Context, ts, stationCode string) (domain.Observation, bool)
}

// Sink receives a finished snapshot.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, snap domain.Snapshot) error
}

// Fetcher runs one realtime fetch from the input files to the sinks.
type Fetcher struct {
	source      Source
	damsFile    string
	masterFile  string
	aliasesFile string
	output      Sink
	extra       []Sink
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewFetcher creates a realtime fetcher. The output sink is authoritative and
// its failure fails the run; extra sinks are best effort.
func NewFetcher(source Source, cfg *config.Config, output Sink, extra []Sink, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:      source,
		damsFile:    cfg.DamsFile,
		masterFile:  cfg.MasterFile,
		aliasesFile: cfg.NameAliasesFile,
		output:      output,
		extra:       extra,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run performs a full fetch and returns the snapshot that was written.
func (f *Fetcher) Run(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := f.logger.With("run_id", runID)

	snap, err := f.run(ctx, runID, logger)
	f.metrics.RunDuration.WithLabelValues("realtime").Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.Runs.WithLabelValues("realtime", "error").Inc()
		return domain.Snapshot{}, err
	}
	f.metrics.Runs.WithLabelValues("realtime", "success").Inc()
	return snap, nil
}

func (f *Fetcher) run(ctx context.Context, runID string, logger *slog.Logger) (domain.Snapshot, error) {
	master, err := jsonfile.LoadMaster(f.masterFile)
	if err != nil {
		return domain.Snapshot{}, err
	}
	dams, err := jsonfile.LoadDams(f.damsFile)
	if err != nil {
		return domain.Snapshot{}, err
	}
	aliases, err := jsonfile.LoadAliases(f.aliasesFile)
	if err != nil {
		return domain.Snapshot{}, err
	}
	matcher := domain.NewMatcher(domain.NewNameLookup(dams), aliases, domain.DefaultQualifiers)
	logger.Info("inputs loaded", "stations", len(master.Stations), "dams", len(dams))

	readings := make(map[string]domain.Reading)

	primary, err := f.primaryPass(ctx, master, matcher, readings, logger)
	if err != nil {
		return domain.Snapshot{}, err
	}
	logger.Info("primary pass complete", "matched", primary)

	scanned, fallback, err := f.fallbackPass(ctx, matcher, readings)
	if err != nil {
		return domain.Snapshot{}, err
	}
	logger.Info("fallback pass complete", "stations", scanned, "matched", fallback, "total", len(readings))

	snap := domain.Fuse(dams, readings, domain.Now())
	f.recordSnapshot(snap, logger)

	if err := f.output.Write(ctx, runID, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("write %s sink: %w", f.output.Name(), err)
	}
	for _, s := range f.extra {
		if err := s.Write(ctx, runID, snap); err != nil {
			f.metrics.PublishErrors.Inc()
			logger.Error("snapshot sink failed", "sink", s.Name(), "error", err)
		}
	}
	return snap, nil
}

// primaryPass reads every region summary. Each reading is attributed to a
// curated dam through the station name in the master; a later reading for
// the same dam replaces an earlier one.
func (f *Fetcher) primaryPass(ctx context.Context, master domain.MasterFile, matcher *domain.Matcher, readings map[string]domain.Reading, logger *slog.Logger) (int, error) {
	regions := domain.RegionCodes()
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		feed, ok := f.source.Summary(ctx, region)
		if ok {
			for _, town := range feed.Towns {
				for _, obs := range town.Dams {
					station, ok := master.Stations[string(obs.StationCode)]
					if !ok {
						continue
					}
					id, kind, ok := matcher.Match(station.Name)
					if !ok {
						continue
					}
					readings[id] = obs.Reading()
					f.metrics.StationMatches.WithLabelValues("primary", kind.String()).Inc()
				}
			}
		}
		if (i+1)%10 == 0 {
			logger.Info("scanning regions", "scanned", i+1, "total", len(regions))
		}
	}
	return len(readings), nil
}

type geoStation struct {
	code string
	name string
}

// fallbackPass scans the geographic feeds for stations the summaries did not
// cover and reads their detail feeds. Dams that already have a reading are
// never overwritten. It returns the number of stations scanned and matched.
func (f *Fetcher) fallbackPass(ctx context.Context, matcher *domain.Matcher, readings map[string]domain.Reading) (int, int, error) {
	ts := domain.FeedTimestamp(domain.FloorTime(domain.Now().Add(-fallbackLag), fallbackStep))

	stations, err := f.scanStations(ctx, ts)
	if err != nil {
		return 0, 0, err
	}

	matched := 0
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		id, kind, ok := matcher.Match(st.name)
		if !ok {
			continue
		}
		if _, done := readings[id]; done {
			continue
		}
		obs, ok := f.source.Detail(ctx, ts, st.code)
		if !ok {
			continue
		}
		readings[id] = obs.Reading()
		f.metrics.StationMatches.WithLabelValues("fallback", kind.String()).Inc()
		matched++
	}
	return len(stations), matched, nil
}

// scanStations collects named stations from the region geographic feeds in
// first-seen order. A station listed again keeps its position and takes the
// latest name.
func (f *Fetcher) scanStations(ctx context.Context, ts string) ([]geoStation, error) {
	var stations []geoStation
	index := make(map[string]int)
	for _, code := range domain.GeoScanCodes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feed, ok := f.source.Features(ctx, ts, code)
		if !ok {
			continue
		}
		for _, feat := range feed.Features {
			p := feat.Properties
			if p.StationCode == "" || p.Name == "" {
				continue
			}
			sc := string(p.StationCode)
			if i, seen := index[sc]; seen {
				stations[i].name = string(p.Name)
				continue
			}
			index[sc] = len(stations)
			stations = append(stations, geoStation{code: sc, name: string(p.Name)})
		}
	}
	return stations, nil
}

func (f *Fetcher) recordSnapshot(snap domain.Snapshot, logger *slog.Logger) {
	st := snap.Stats()
	f.metrics.SnapshotDams.WithLabelValues("populated").Set(float64(st.Populated))
	f.metrics.SnapshotDams.WithLabelValues("empty").Set(float64(st.Total - st.Populated))
	f.metrics.SnapshotDams.WithLabelValues("approximate").Set(float64(st.Approximate))
	logger.Info("snapshot fused", "dams", st.Total, "populated", st.Populated, "approximate", st.Approximate)
}
