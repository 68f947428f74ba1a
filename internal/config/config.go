package config

import (
	"SpectraGuard/internal/core/model"
	"SpectraGuard/internal/engine/features"
	"SpectraGuard/internal/engine/traffic"
	"SpectraGuard/internal/engine/verdict"
	"SpectraGuard/internal/scanner"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TrafficConfig holds the capture analysis settings.
type TrafficConfig struct {
	SynRatioMultiplier float64 `yaml:"syn_ratio_multiplier"`
	SynCountFloor      uint64  `yaml:"syn_count_floor"`
	Window             string  `yaml:"window"`
	MaxPackets         int     `yaml:"max_packets"`
	TopTalkers         int     `yaml:"top_talkers"`
}

// FeaturesConfig holds the byte feature extraction settings.
type FeaturesConfig struct {
	MinStringLength int  `yaml:"min_string_length"`
	MaxStrings      int  `yaml:"max_strings"`
	UTF16           bool `yaml:"utf16"`
}

// ManagerConfig sizes the scan worker pool.
type ManagerConfig struct {
	NumWorkers  int    `yaml:"num_workers"`
	QueueSize   int    `yaml:"queue_size"`
	ScanTimeout string `yaml:"scan_timeout"`
}

// APIConfig holds the API server settings.
type APIConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	// CaptureEnabled gates /pcap/analyze. When false the route answers 503.
	CaptureEnabled bool `yaml:"capture_enabled"`
}

// GobConfig holds the settings for the gob log writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines a single report writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Gob        GobConfig        `yaml:"gob"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// NATSConfig holds the report feed settings.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// AlerterRule defines a single alerting rule. A file report triggers when its
// label ranks at least MinLabel; a traffic report when it carries at least
// MinFindings findings.
type AlerterRule struct {
	Name        string      `yaml:"name"`
	Kind        model.Kind  `yaml:"kind"`
	MinLabel    model.Label `yaml:"min_label"`
	MinFindings int         `yaml:"min_findings"`
}

// AlerterConfig holds the configuration for the alerter.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the configuration for the SMTP email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // Comma-separated list of recipients
}

// GeoIPConfig points at a MaxMind country database. Empty disables enrichment.
type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Scoring  verdict.ScoringConfig `yaml:"scoring"`
	Traffic  TrafficConfig         `yaml:"traffic"`
	Features FeaturesConfig        `yaml:"features"`
	Manager  ManagerConfig         `yaml:"manager"`
	API      APIConfig             `yaml:"api"`
	Writers  []WriterDef           `yaml:"writers"`
	NATS     NATSConfig            `yaml:"nats"`
	Alerter  AlerterConfig         `yaml:"alerter"`
	SMTP     SMTPConfig            `yaml:"smtp"`
	GeoIP    GeoIPConfig           `yaml:"geoip"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Logging  LoggingConfig         `yaml:"logging"`
}

// Default returns a complete configuration with every engine at its stock settings.
func Default() *Config {
	fo := features.DefaultOptions()
	tc := traffic.DefaultConfig()
	return &Config{
		Scoring: verdict.DefaultScoringConfig(),
		Traffic: TrafficConfig{
			SynRatioMultiplier: tc.SynRatioMultiplier,
			SynCountFloor:      tc.SynCountFloor,
			Window:             "0s",
			MaxPackets:         scanner.DefaultOptions().MaxPackets,
			TopTalkers:         tc.TopTalkers,
		},
		Features: FeaturesConfig{
			MinStringLength: fo.MinStringLength,
			MaxStrings:      fo.MaxStrings,
			UTF16:           fo.UTF16,
		},
		Manager: ManagerConfig{
			NumWorkers:  4,
			QueueSize:   64,
			ScanTimeout: "30s",
		},
		API: APIConfig{
			HttpListenAddr: ":8080",
			GrpcListenAddr: ":50051",
			MaxUploadBytes: 32 << 20,
			CaptureEnabled: true,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "spectraguard.reports",
		},
		Alerter: AlerterConfig{
			CheckInterval: "1m",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the configuration from a YAML file over the defaults and validates it.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section. All failures wrap model.ErrInvalidConfig.
func (c *Config) Validate() error {
	opts, err := c.ScannerOptions()
	if err != nil {
		return err
	}
	if _, err := scanner.New(opts); err != nil {
		return err
	}

	if c.Manager.NumWorkers < 1 {
		return invalid("manager.num_workers must be at least 1, got %d", c.Manager.NumWorkers)
	}
	if c.Manager.QueueSize < 0 {
		return invalid("manager.queue_size must not be negative, got %d", c.Manager.QueueSize)
	}
	if _, err := c.Manager.Timeout(); err != nil {
		return err
	}
	if c.API.MaxUploadBytes <= 0 {
		return invalid("api.max_upload_bytes must be positive, got %d", c.API.MaxUploadBytes)
	}

	for i, w := range c.Writers {
		if w.Type == "" {
			return invalid("writers[%d].type must be set", i)
		}
	}
	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		return invalid("nats.url and nats.subject are required when nats is enabled")
	}

	if c.Alerter.Enabled {
		if _, err := c.Alerter.Interval(); err != nil {
			return err
		}
		for i, r := range c.Alerter.Rules {
			switch r.Kind {
			case model.KindFile:
				if r.MinLabel.Rank() == 0 {
					return invalid("alerter.rules[%d] (%s): unknown min_label %q", i, r.Name, r.MinLabel)
				}
			case model.KindTraffic:
				if r.MinFindings < 1 {
					return invalid("alerter.rules[%d] (%s): min_findings must be at least 1", i, r.Name)
				}
			default:
				return invalid("alerter.rules[%d] (%s): unknown kind %q", i, r.Name, r.Kind)
			}
		}
	}
	return nil
}

// ScannerOptions converts the engine sections into scanner.Options.
func (c *Config) ScannerOptions() (scanner.Options, error) {
	window, err := time.ParseDuration(c.Traffic.Window)
	if err != nil {
		return scanner.Options{}, invalid("traffic.window: %v", err)
	}
	return scanner.Options{
		Features: features.Options{
			MinStringLength: c.Features.MinStringLength,
			MaxStrings:      c.Features.MaxStrings,
			UTF16:           c.Features.UTF16,
		},
		Scoring: c.Scoring,
		Traffic: traffic.Config{
			SynRatioMultiplier: c.Traffic.SynRatioMultiplier,
			SynCountFloor:      c.Traffic.SynCountFloor,
			Window:             window,
			TopTalkers:         c.Traffic.TopTalkers,
		},
		MaxPackets: c.Traffic.MaxPackets,
	}, nil
}

// Timeout parses scan_timeout. Zero disables the per-scan deadline.
func (m ManagerConfig) Timeout() (time.Duration, error) {
	if m.ScanTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.ScanTimeout)
	if err != nil || d < 0 {
		return 0, invalid("manager.scan_timeout must be a non-negative duration, got %q", m.ScanTimeout)
	}
	return d, nil
}

// Interval parses check_interval.
func (a AlerterConfig) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(a.CheckInterval)
	if err != nil || d <= 0 {
		return 0, invalid("alerter.check_interval must be a positive duration, got %q", a.CheckInterval)
	}
	return d, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{model.ErrInvalidConfig}, args...)...)
}
