package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Kawabou feed roots.
	ObslistURL string
	GjsonURL   string
	TmlistURL  string

	UserAgent      string
	HTTPTimeout    time.Duration
	RequestPause   time.Duration
	FetchCacheSize int
	FetchCacheTTL  time.Duration

	DamsFile        string
	MasterFile      string
	RealtimeFile    string
	NameAliasesFile string

	ProbeRegion            string
	ProbeTown              string
	TimestampProbeAttempts int

	FetchInterval time.Duration

	// Kafka publication is optional; an empty broker list disables it.
	KafkaBrokers       []string
	KafkaSnapshotTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// KafkaEnabled reports whether snapshots should also be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := parsePositiveDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parsePositiveDuration("FETCH_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("FETCH_CACHE_TTL", "2m")
	if err != nil {
		return nil, err
	}

	pause, err := time.ParseDuration(sharedcfg.EnvOrDefault("REQUEST_PAUSE", "50ms"))
	if err != nil || pause < 0 {
		return nil, errors.New("invalid REQUEST_PAUSE")
	}

	attempts, err := parsePositiveInt("TIMESTAMP_PROBE_ATTEMPTS", 6)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("FETCH_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		ObslistURL: sharedcfg.EnvOrDefault("KAWABOU_OBSLIST_URL", "https://www.river.go.jp/kawabou/file/files/obslist/twninfo/tm/dam"),
		GjsonURL:   sharedcfg.EnvOrDefault("KAWABOU_GJSON_URL", "https://www.river.go.jp/kawabou/file/gjson/obs"),
		TmlistURL:  sharedcfg.EnvOrDefault("KAWABOU_TMLIST_URL", "https://www.river.go.jp/kawabou/file/files/tmlist/dam"),

		UserAgent:      sharedcfg.EnvOrDefault("HTTP_USER_AGENT", defaultUserAgent),
		HTTPTimeout:    httpTimeout,
		RequestPause:   pause,
		FetchCacheSize: cacheSize,
		FetchCacheTTL:  cacheTTL,

		DamsFile:        sharedcfg.EnvOrDefault("DAMS_FILE", "data/dams.json"),
		MasterFile:      sharedcfg.EnvOrDefault("MASTER_FILE", "data/kawabou_dam_master.json"),
		RealtimeFile:    sharedcfg.EnvOrDefault("REALTIME_FILE", "data/realtime.json"),
		NameAliasesFile: os.Getenv("NAME_ALIASES_FILE"),

		ProbeRegion:            sharedcfg.EnvOrDefault("PROBE_REGION", "3901"),
		ProbeTown:              sharedcfg.EnvOrDefault("PROBE_TOWN", "3901363"),
		TimestampProbeAttempts: attempts,

		FetchInterval: fetchInterval,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "dam-realtime-readings"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.ObslistURL == "" || cfg.GjsonURL == "" || cfg.TmlistURL == "" {
		return nil, errors.New("KAWABOU_OBSLIST_URL, KAWABOU_GJSON_URL and KAWABOU_TMLIST_URL are required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
