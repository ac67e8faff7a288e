package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level worktrack configuration.
type Config struct {
	Session   Session   `mapstructure:"session"`
	Collector Collector `mapstructure:"collector"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Sampler   Sampler   `mapstructure:"sampler"`
	Idle      Idle      `mapstructure:"idle"`
	Transmit  Transmit  `mapstructure:"transmit"`
	Bucket    Bucket    `mapstructure:"bucket"`
	Outbox    Outbox    `mapstructure:"outbox"`
	Alerts    Alerts    `mapstructure:"alerts"`
	Store     Store     `mapstructure:"store"`
	Log       Log       `mapstructure:"log"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Output    Output    `mapstructure:"output"`
}

// Session identifies who is being tracked. The token is usually supplied
// through WORKTRACK_SESSION_AUTH_TOKEN rather than the config file.
type Session struct {
	UserID    string `mapstructure:"user_id"`
	TeamID    string `mapstructure:"team_id"`
	AuthToken string `mapstructure:"auth_token"`
}

// Collector describes the remote telemetry collector.
type Collector struct {
	BaseURL     string        `mapstructure:"base_url"`
	TrackPath   string        `mapstructure:"track_path"`
	SummaryPath string        `mapstructure:"summary_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TimeUnit    string        `mapstructure:"time_unit"`
	Transport   string        `mapstructure:"transport"`
}

// Kafka configures the Kafka transport.
type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Sampler configures the tick loop. A non-zero TickInterval overrides the
// granularity preset.
type Sampler struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Granularity  string        `mapstructure:"granularity"`
}

// Idle configures idle detection.
type Idle struct {
	Threshold  time.Duration `mapstructure:"threshold"`
	SystemPoll time.Duration `mapstructure:"system_poll"`
}

// Transmit configures scheduled transmission.
type Transmit struct {
	Interval        time.Duration `mapstructure:"interval"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	ActivityHistory int           `mapstructure:"activity_history"`
}

// Bucket configures aggregation.
type Bucket struct {
	Size time.Duration `mapstructure:"size"`
}

// Outbox toggles local buffering of failed payloads.
type Outbox struct {
	Enabled bool `mapstructure:"enabled"`
}

// Alerts configures desktop notifications for closed buckets.
type Alerts struct {
	Enabled   bool    `mapstructure:"enabled"`
	LowScore  int     `mapstructure:"low_score"`
	ScoreDrop int     `mapstructure:"score_drop"`
	IdleShare float64 `mapstructure:"idle_share"`
}

// Store configures the SQLite journal.
type Store struct {
	Path string `mapstructure:"path"`
}

// Log configures structured logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location),
// applies WORKTRACK_* environment overrides and returns a validated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.user_id", "")
	v.SetDefault("session.team_id", "")
	v.SetDefault("session.auth_token", "")
	v.SetDefault("collector.base_url", DefaultCollector.BaseURL)
	v.SetDefault("collector.track_path", DefaultCollector.TrackPath)
	v.SetDefault("collector.summary_path", DefaultCollector.SummaryPath)
	v.SetDefault("collector.timeout", DefaultCollector.Timeout)
	v.SetDefault("collector.time_unit", DefaultCollector.TimeUnit)
	v.SetDefault("collector.transport", DefaultCollector.Transport)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", DefaultKafka.Topic)
	v.SetDefault("sampler.tick_interval", time.Duration(0))
	v.SetDefault("sampler.granularity", DefaultSampler.Granularity)
	v.SetDefault("idle.threshold", DefaultIdle.Threshold)
	v.SetDefault("idle.system_poll", DefaultIdle.SystemPoll)
	v.SetDefault("transmit.interval", DefaultTransmit.Interval)
	v.SetDefault("transmit.max_attempts", DefaultTransmit.MaxAttempts)
	v.SetDefault("transmit.initial_backoff", DefaultTransmit.InitialBackoff)
	v.SetDefault("transmit.activity_history", DefaultTransmit.ActivityHistory)
	v.SetDefault("bucket.size", DefaultBucket.Size)
	v.SetDefault("outbox.enabled", false)
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.low_score", DefaultAlerts.LowScore)
	v.SetDefault("alerts.score_drop", DefaultAlerts.ScoreDrop)
	v.SetDefault("alerts.idle_share", DefaultAlerts.IdleShare)
	v.SetDefault("store.path", filepath.Join(DefaultConfigDir, DefaultDBName))
	v.SetDefault("log.level", DefaultLog.Level)
	v.SetDefault("log.format", DefaultLog.Format)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)
}

// TickInterval resolves the effective sampler period.
func (c *Config) TickInterval() time.Duration {
	if c.Sampler.TickInterval > 0 {
		return c.Sampler.TickInterval
	}
	if c.Sampler.Granularity == GranularityCoarse {
		return 60 * time.Second
	}
	return 10 * time.Second
}

// Validate checks value ranges that the engine cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	if c.Sampler.TickInterval < 0 {
		errs = append(errs, fmt.Errorf("sampler.tick_interval must be positive, got %s", c.Sampler.TickInterval))
	}
	switch c.Sampler.Granularity {
	case GranularityFine, GranularityCoarse:
	default:
		errs = append(errs, fmt.Errorf("sampler.granularity must be %q or %q, got %q", GranularityFine, GranularityCoarse, c.Sampler.Granularity))
	}
	if c.Idle.Threshold < 0 {
		errs = append(errs, fmt.Errorf("idle.threshold must not be negative, got %s", c.Idle.Threshold))
	}
	if c.Transmit.Interval <= 0 {
		errs = append(errs, fmt.Errorf("transmit.interval must be positive, got %s", c.Transmit.Interval))
	}
	if c.Transmit.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("transmit.max_attempts must be at least 1, got %d", c.Transmit.MaxAttempts))
	}
	if c.Bucket.Size <= 0 || (24*time.Hour)%c.Bucket.Size != 0 {
		errs = append(errs, fmt.Errorf("bucket.size must evenly divide 24h, got %s", c.Bucket.Size))
	}
	if c.Alerts.IdleShare < 0 || c.Alerts.IdleShare > 1 {
		errs = append(errs, fmt.Errorf("alerts.idle_share must be within [0,1], got %g", c.Alerts.IdleShare))
	}
	switch c.Collector.TimeUnit {
	case "ms", "minutes":
	default:
		errs = append(errs, fmt.Errorf("collector.time_unit must be ms or minutes, got %q", c.Collector.TimeUnit))
	}
	switch c.Collector.Transport {
	case "http":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka transport requires kafka.brokers"))
		}
	default:
		errs = append(errs, fmt.Errorf("collector.transport must be http or kafka, got %q", c.Collector.Transport))
	}
	return errors.Join(errs...)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
