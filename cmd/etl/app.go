package main

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dam-data-etl/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/dam-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/dam-data-etl/internal/adapter/kawabou"
	"github.com/couchcryptid/dam-data-etl/internal/config"
	"github.com/couchcryptid/dam-data-etl/internal/master"
	"github.com/couchcryptid/dam-data-etl/internal/observability"
	"github.com/couchcryptid/dam-data-etl/internal/realtime"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	client  *kawabou.Client
	writer  *kafkaadapter.Writer
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		client:  kawabou.NewFromConfig(cfg, clock, metrics, logger),
	}, nil
}

func (a *app) masterBuilder() *master.Builder {
	return master.NewBuilder(a.client, a.cfg, a.metrics, a.logger)
}

// realtimeFetcher wires the snapshot file as the authoritative sink and Kafka
// as a best-effort one when brokers are configured.
func (a *app) realtimeFetcher() *realtime.Fetcher {
	var extra []realtime.Sink
	if a.cfg.KafkaEnabled() {
		a.writer = kafkaadapter.NewWriter(a.cfg, a.logger)
		extra = append(extra, a.writer)
		a.logger.Info("kafka publishing enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaSnapshotTopic)
	}
	return realtime.NewFetcher(a.client, a.cfg, jsonfile.NewSnapshotStore(a.cfg.RealtimeFile), extra, a.metrics, a.logger)
}

func (a *app) close() {
	if a.writer == nil {
		return
	}
	if err := a.writer.Close(); err != nil {
		a.logger.Error("kafka writer close error", "error", err)
	}
}
