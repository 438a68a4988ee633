// Package config handles configuration loading and validation.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds load generator configuration.
type Config struct {
	RPCURL             string
	Workers            int
	ReportInterval     time.Duration
	RPCTimeout         time.Duration
	CacheSize          int
	MaxRPS             float64 // aggregate cap across workers, 0 = unlimited
	Pattern            string  // rate schedule: constant, ramp or spike
	RampStartRPS       float64
	RampEndRPS         float64
	RampDuration       time.Duration
	SpikeRPS           float64 // MaxRPS is the baseline between spikes
	SpikeDuration      time.Duration
	SpikeInterval      time.Duration
	ListenAddr         string // empty disables the HTTP API
	DatabasePath       string // empty disables sample storage
	CORSAllowedOrigins string // comma-separated, or "*"
	LogLevel           string
}

// CollectorConfig holds metrics collector configuration.
type CollectorConfig struct {
	GethMetricsURL  string
	PrysmMetricsURL string
	RPCURL          string
	PrysmHealthURL  string
	Interval        time.Duration
	Timeout         time.Duration
	OutputDir       string
	LogLevel        string
}

// Defaults
const (
	DefaultRPCURL             = "http://localhost:8565"
	DefaultWorkers            = 10
	DefaultReportInterval     = 5 * time.Second
	DefaultRPCTimeout         = 3 * time.Second
	DefaultCacheSize          = 20
	DefaultCORSAllowedOrigins = "*"
	DefaultLogLevel           = "info"
	DefaultPattern            = PatternConstant
	DefaultRampDuration       = time.Minute
	DefaultSpikeDuration      = 5 * time.Second
	DefaultSpikeInterval      = 30 * time.Second

	DefaultGethMetricsURL  = "http://localhost:6060/debug/metrics/prometheus"
	DefaultPrysmMetricsURL = "http://localhost:5054/metrics"
	DefaultPrysmHealthURL  = "http://localhost:5052/eth/v1/node/health"
	DefaultCollectInterval = 10 * time.Second
	DefaultCollectTimeout  = 5 * time.Second
	DefaultOutputDir       = "csv"
)

// Rate schedules
const (
	PatternConstant = "constant"
	PatternRamp     = "ramp"
	PatternSpike    = "spike"
)

// Load reads load generator configuration from environment variables and args.
// Flags take precedence over environment variables.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		RPCURL:             DefaultRPCURL,
		Workers:            DefaultWorkers,
		ReportInterval:     DefaultReportInterval,
		RPCTimeout:         DefaultRPCTimeout,
		CacheSize:          DefaultCacheSize,
		CORSAllowedOrigins: DefaultCORSAllowedOrigins,
		LogLevel:           DefaultLogLevel,
		Pattern:            DefaultPattern,
		RampDuration:       DefaultRampDuration,
		SpikeDuration:      DefaultSpikeDuration,
		SpikeInterval:      DefaultSpikeInterval,
	}

	// Environment first
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("WORKERS"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("REPORT_INTERVAL"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.ReportInterval = d
		}
	}
	if v := os.Getenv("RPC_TIMEOUT"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.RPCTimeout = d
		}
	}
	if v := os.Getenv("BLOCK_CACHE_SIZE"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("MAX_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MaxRPS = f
		}
	}
	if v := os.Getenv("LOAD_PATTERN"); v != "" {
		cfg.Pattern = v
	}
	if v := os.Getenv("RAMP_START_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RampStartRPS = f
		}
	}
	if v := os.Getenv("RAMP_END_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RampEndRPS = f
		}
	}
	if v := os.Getenv("RAMP_DURATION"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.RampDuration = d
		}
	}
	if v := os.Getenv("SPIKE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SpikeRPS = f
		}
	}
	if v := os.Getenv("SPIKE_DURATION"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.SpikeDuration = d
		}
	}
	if v := os.Getenv("SPIKE_INTERVAL"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.SpikeInterval = d
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs := flag.NewFlagSet("loadgen", flag.ContinueOnError)
	fs.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "Node JSON-RPC URL")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent workers")
	fs.DurationVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "Statistics reporting interval")
	fs.DurationVar(&cfg.RPCTimeout, "timeout", cfg.RPCTimeout, "Per-call RPC timeout")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Blocks cached per worker")
	fs.Float64Var(&cfg.MaxRPS, "max-rps", cfg.MaxRPS, "Maximum iterations per second across all workers (0=unlimited)")
	fs.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "Rate schedule (constant, ramp, spike)")
	fs.Float64Var(&cfg.RampStartRPS, "ramp-start-rps", cfg.RampStartRPS, "Ramp pattern starting rate")
	fs.Float64Var(&cfg.RampEndRPS, "ramp-end-rps", cfg.RampEndRPS, "Ramp pattern final rate")
	fs.DurationVar(&cfg.RampDuration, "ramp-duration", cfg.RampDuration, "Time to ramp from start to end rate")
	fs.Float64Var(&cfg.SpikeRPS, "spike-rps", cfg.SpikeRPS, "Spike pattern rate during spikes (baseline is -max-rps)")
	fs.DurationVar(&cfg.SpikeDuration, "spike-duration", cfg.SpikeDuration, "Length of each spike")
	fs.DurationVar(&cfg.SpikeInterval, "spike-interval", cfg.SpikeInterval, "Time between spike starts")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP API listen address (empty=disabled)")
	fs.StringVar(&cfg.DatabasePath, "database", cfg.DatabasePath, "SQLite database path (empty=disabled)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validateURL("RPC URL", c.RPCURL); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be positive")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max RPS cannot be negative")
	}
	if err := c.validatePattern(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePattern() error {
	switch c.Pattern {
	case PatternConstant, "":
		return nil
	case PatternRamp:
		if c.RampStartRPS < 0 || c.RampEndRPS <= 0 {
			return fmt.Errorf("ramp pattern needs ramp-start-rps >= 0 and ramp-end-rps > 0")
		}
		if c.RampDuration <= 0 {
			return fmt.Errorf("ramp duration must be positive")
		}
		return nil
	case PatternSpike:
		if c.MaxRPS <= 0 || c.SpikeRPS <= 0 {
			return fmt.Errorf("spike pattern needs max-rps (baseline) and spike-rps above 0")
		}
		if c.SpikeDuration <= 0 || c.SpikeDuration >= c.SpikeInterval {
			return fmt.Errorf("spike duration must be positive and shorter than the spike interval")
		}
		return nil
	default:
		return fmt.Errorf("unknown pattern: %s (want constant, ramp or spike)", c.Pattern)
	}
}

// AllowedOrigins splits CORSAllowedOrigins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadCollector reads collector configuration from environment variables and args.
func LoadCollector(args []string) (*CollectorConfig, error) {
	cfg := &CollectorConfig{
		GethMetricsURL:  DefaultGethMetricsURL,
		PrysmMetricsURL: DefaultPrysmMetricsURL,
		RPCURL:          DefaultRPCURL,
		PrysmHealthURL:  DefaultPrysmHealthURL,
		Interval:        DefaultCollectInterval,
		Timeout:         DefaultCollectTimeout,
		OutputDir:       DefaultOutputDir,
		LogLevel:        DefaultLogLevel,
	}

	if v := os.Getenv("GETH_METRICS_URL"); v != "" {
		cfg.GethMetricsURL = v
	}
	if v := os.Getenv("PRYSM_METRICS_URL"); v != "" {
		cfg.PrysmMetricsURL = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("PRYSM_HEALTH_URL"); v != "" {
		cfg.PrysmHealthURL = v
	}
	if v := os.Getenv("COLLECT_INTERVAL"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("COLLECT_TIMEOUT"); v != "" {
		if d, err := parseDurationEnv(v); err == nil {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs := flag.NewFlagSet("collector", flag.ContinueOnError)
	fs.StringVar(&cfg.GethMetricsURL, "geth-metrics", cfg.GethMetricsURL, "Execution client Prometheus metrics URL")
	fs.StringVar(&cfg.PrysmMetricsURL, "prysm-metrics", cfg.PrysmMetricsURL, "Beacon node Prometheus metrics URL")
	fs.StringVar(&cfg.RPCURL, "rpc", cfg.RPCURL, "Execution client JSON-RPC URL")
	fs.StringVar(&cfg.PrysmHealthURL, "prysm-health", cfg.PrysmHealthURL, "Beacon node health URL")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Sampling interval")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for CSV files")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the collector configuration.
func (c *CollectorConfig) Validate() error {
	for _, u := range []struct{ name, value string }{
		{"geth metrics URL", c.GethMetricsURL},
		{"prysm metrics URL", c.PrysmMetricsURL},
		{"RPC URL", c.RPCURL},
		{"prysm health URL", c.PrysmHealthURL},
	} {
		if err := validateURL(u.name, u.value); err != nil {
			return err
		}
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", name, raw)
	}
	return nil
}

// parseIntEnv parses a string environment variable as an integer.
func parseIntEnv(s string) (int, error) {
	return strconv.Atoi(s)
}

// parseDurationEnv accepts a Go duration or a bare number of seconds.
func parseDurationEnv(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs * float64(time.Second)), nil
}
