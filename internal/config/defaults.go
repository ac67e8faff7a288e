// Package config provides configuration loading and defaults for worktrack.
package config

import "time"

// DefaultConfigDir is the default location for worktrack configuration.
const DefaultConfigDir = "~/.config/worktrack"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "worktrack.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. WORKTRACK_COLLECTOR_BASE_URL.
const EnvPrefix = "WORKTRACK"

// Sampler granularities.
const (
	GranularityFine   = "fine"
	GranularityCoarse = "coarse"
)

// DefaultCollector holds the default collector endpoints.
var DefaultCollector = Collector{
	BaseURL:     "http://localhost:8000",
	TrackPath:   "/api/activity/track",
	SummaryPath: "/api/activity/hourly-summary",
	Timeout:     15 * time.Second,
	TimeUnit:    "ms",
	Transport:   "http",
}

// DefaultKafka holds the default Kafka transport settings.
var DefaultKafka = Kafka{
	Topic: "worktrack.activity",
}

// DefaultSampler holds the default tick settings.
var DefaultSampler = Sampler{
	Granularity: GranularityFine,
}

// DefaultIdle holds the default idle detection settings.
var DefaultIdle = Idle{
	Threshold:  5 * time.Minute,
	SystemPoll: 5 * time.Second,
}

// DefaultTransmit holds the default transmission settings.
var DefaultTransmit = Transmit{
	Interval:        5 * time.Minute,
	MaxAttempts:     1,
	InitialBackoff:  2 * time.Second,
	ActivityHistory: 10,
}

// DefaultBucket holds the default aggregation bucket.
var DefaultBucket = Bucket{
	Size: time.Hour,
}

// DefaultAlerts holds the default bucket alert thresholds.
var DefaultAlerts = Alerts{
	LowScore:  40,
	ScoreDrop: 20,
	IdleShare: 0.5,
}

// DefaultLog holds the default logging preferences.
var DefaultLog = Log{
	Level:  "info",
	Format: "text",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
