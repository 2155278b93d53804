// Package master builds the station master: the mapping from Kawabou station
// codes to names, locations and town codes.
package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/domain"
	"github.com/couchcryptid/dam-data-etl/internal/observability"
)

// ErrNoTimestamp is returned when no usable feed timestamp can be found.
var ErrNoTimestamp = errors.New("no valid feed timestamp")

const timestampStep = 10 * time.Minute

// Source is the subset of the Kawabou client the master builder needs.
type Source interface {
	Summary(ctx context.Context, region string) (domain.SummaryFeed, bool)
	Features(ctx context.Context, ts, code string) (domain.FeatureFeed, bool)
}

// Probe selects the feeds used to discover the latest published timestamp.
type Probe struct {
	Region   string
	Town     string
	Attempts int
}

// ResolveTimestamp returns the latest geographic feed timestamp, such as
// "20260212/1710". It reads the observation time of the probe region first
// and otherwise walks back from the current time in 10 minute steps, probing
// the geographic feed of the probe town.
func ResolveTimestamp(ctx context.Context, src Source, probe Probe, logger *slog.Logger) (string, error) {
	if feed, ok := src.Summary(ctx, probe.Region); ok {
		if ts, ok := latestObsTime(feed); ok {
			logger.Info("timestamp resolved from summary feed", "region", probe.Region, "timestamp", ts)
			return ts, nil
		}
	}

	t := domain.FloorTime(domain.Now(), timestampStep)
	for i := 0; i < probe.Attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ts := domain.FeedTimestamp(t)
		if _, ok := src.Features(ctx, ts, probe.Town); ok {
			logger.Info("timestamp resolved by probing", "town", probe.Town, "timestamp", ts, "attempt", i+1)
			return ts, nil
		}
		t = t.Add(-timestampStep)
	}
	return "", fmt.Errorf("resolve timestamp after %d probes: %w", probe.Attempts, ErrNoTimestamp)
}

// latestObsTime reads the observation time of the first dam of the first
// town whose time parses. Towns with an unparseable time are skipped.
func latestObsTime(feed domain.SummaryFeed) (string, bool) {
	for _, town := range feed.Towns {
		if len(town.Dams) == 0 {
			continue
		}
		t, err := domain.ParseObsTime(string(town.Dams[0].ObsTime))
		if err != nil {
			continue
		}
		return domain.FeedTimestamp(domain.FloorTime(t, timestampStep)), true
	}
	return "", false
}

// EnumerateTowns returns every town code that lists at least one dam in the
// summary feeds, sorted. Missing or malformed feeds contribute nothing.
func EnumerateTowns(ctx context.Context, src Source, logger *slog.Logger) ([]string, error) {
	regions := domain.RegionCodes()
	seen := make(map[string]struct{})
	for i, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feed, ok := src.Summary(ctx, region)
		if ok {
			for _, town := range feed.Towns {
				if town.TownCode != "" && len(town.Dams) > 0 {
					seen[string(town.TownCode)] = struct{}{}
				}
			}
		}
		if (i+1)%10 == 0 {
			logger.Info("scanning regions", "scanned", i+1, "total", len(regions))
		}
	}

	towns := make([]string, 0, len(seen))
	for code := range seen {
		towns = append(towns, code)
	}
	sort.Strings(towns)
	return towns, nil
}

// Builder assembles a fresh master file from the Kawabou feeds.
type Builder struct {
	source  Source
	probe   Probe
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewBuilder creates a master builder.
func NewBuilder(source Source, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Builder {
	return &Builder{
		source: source,
		probe: Probe{
			Region:   cfg.ProbeRegion,
			Town:     cfg.ProbeTown,
			Attempts: cfg.TimestampProbeAttempts,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Build resolves a timestamp, enumerates towns and collects every station
// that carries both a code and a name. A station seen in several towns keeps
// the last town scanned.
func (b *Builder) Build(ctx context.Context) (domain.MasterFile, error) {
	ts, err := ResolveTimestamp(ctx, b.source, b.probe, b.logger)
	if err != nil {
		return domain.MasterFile{}, err
	}

	towns, err := EnumerateTowns(ctx, b.source, b.logger)
	if err != nil {
		return domain.MasterFile{}, err
	}
	b.logger.Info("towns with dam data found", "towns", len(towns))

	stations := make(map[string]domain.Station)
	for i, town := range towns {
		if err := ctx.Err(); err != nil {
			return domain.MasterFile{}, err
		}
		feed, ok := b.source.Features(ctx, ts, town)
		if ok {
			for _, f := range feed.Features {
				p := f.Properties
				if p.StationCode == "" || p.Name == "" {
					continue
				}
				stations[string(p.StationCode)] = domain.Station{
					Name:     string(p.Name),
					Kana:     string(p.Kana),
					River:    string(p.River),
					Lat:      p.Lat,
					Lon:      p.Lon,
					PrefCode: string(p.PrefCode),
					TownCode: town,
				}
			}
		}
		if (i+1)%20 == 0 {
			b.logger.Info("fetching town features", "processed", i+1, "total", len(towns))
		}
	}

	b.metrics.MasterStations.Set(float64(len(stations)))
	b.logger.Info("master built", "stations", len(stations), "timestamp", ts)

	return domain.MasterFile{
		Updated:       domain.Now().Format(time.RFC3339),
		TimestampUsed: ts,
		Stations:      stations,
	}, nil
}

// Run builds the master and replaces the file at path. The previous file is
// left untouched when the build fails.
func (b *Builder) Run(ctx context.Context, path string) error {
	start := time.Now()
	err := b.run(ctx, path)
	b.metrics.RunDuration.WithLabelValues("master").Observe(time.Since(start).Seconds())
	if err != nil {
		b.metrics.Runs.WithLabelValues("master", "error").Inc()
		return err
	}
	b.metrics.Runs.WithLabelValues("master", "success").Inc()
	return nil
}

func (b *Builder) run(ctx context.Context, path string) error {
	m, err := b.Build(ctx)
	if err != nil {
		return err
	}
	if err := jsonfile.SaveMaster(path, m); err != nil {
		return err
	}
	b.logger.Info("master saved", "path", path)
	return nil
}
