package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. TARIFFS_BASE_URL.
const EnvPrefix = "TARIFFS"

// Timeouts is the per request class budget table.
type Timeouts struct {
	Basic       time.Duration `mapstructure:"basic"`
	CSV         time.Duration `mapstructure:"csv"`
	Backtest    time.Duration `mapstructure:"backtest"`
	Risk        time.Duration `mapstructure:"risk"`
	Scrape      time.Duration `mapstructure:"scrape"`
	MultiScrape time.Duration `mapstructure:"multi_scrape"`
	Reference   time.Duration `mapstructure:"reference"`
}

// Config holds client configuration.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	Timeouts            Timeouts
	MaxRetries          int
	RetryBackoff        time.Duration
	RetryBackoffMax     time.Duration
	AuthToken           string
	CalculationProvider string
	ZipCode             string
	Headless            bool
	Debug               bool
	RiskDays            int
	ReferenceCacheSize  int
	ReferenceCacheTTL   time.Duration
	OutputFile          string
	OutputFormat        string // csv, json, or dual
	UserAgent           string
	Verbose             bool
	MetricsAddr         string
	OTLPEndpoint        string
}

// DefaultConfig returns defaults matching a locally running calculation engine.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8000/api",
		Timeout: 10 * time.Second,
		Timeouts: Timeouts{
			Basic:       10 * time.Second,
			CSV:         30 * time.Second,
			Backtest:    60 * time.Second,
			Risk:        60 * time.Second,
			Scrape:      120 * time.Second,
			MultiScrape: 180 * time.Second,
			Reference:   10 * time.Second,
		},
		MaxRetries:          1,
		RetryBackoff:        200 * time.Millisecond,
		RetryBackoffMax:     2 * time.Second,
		CalculationProvider: "enbw",
		ZipCode:             "70173",
		Headless:            true,
		RiskDays:            30,
		ReferenceCacheSize:  64,
		ReferenceCacheTTL:   5 * time.Minute,
		OutputFile:          "",
		OutputFormat:        "csv",
		UserAgent:           "tariff-compare/1.0",
		Verbose:             false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	// Scrape-class calls must never fall back to the short default.
	if c.Timeouts.Scrape <= 0 {
		return fmt.Errorf("scrape timeout must be positive")
	}
	if c.Timeouts.MultiScrape <= 0 {
		return fmt.Errorf("multi scrape timeout must be positive")
	}
	for name, d := range map[string]time.Duration{
		"basic":     c.Timeouts.Basic,
		"csv":       c.Timeouts.CSV,
		"backtest":  c.Timeouts.Backtest,
		"risk":      c.Timeouts.Risk,
		"reference": c.Timeouts.Reference,
	} {
		if d < 0 {
			return fmt.Errorf("%s timeout cannot be negative", name)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CalculationProvider == "" {
		return fmt.Errorf("calculation provider cannot be empty")
	}
	if c.RiskDays <= 0 {
		return fmt.Errorf("risk days must be positive")
	}
	if c.ReferenceCacheSize < 0 {
		return fmt.Errorf("reference cache size cannot be negative")
	}
	if c.ReferenceCacheTTL < 0 {
		return fmt.Errorf("reference cache ttl cannot be negative")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// Load builds a Config from defaults, an optional YAML file, a .env file and
// TARIFFS_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		BaseURL: v.GetString("base_url"),
		Timeout: v.GetDuration("timeout"),
		Timeouts: Timeouts{
			Basic:       v.GetDuration("timeouts.basic"),
			CSV:         v.GetDuration("timeouts.csv"),
			Backtest:    v.GetDuration("timeouts.backtest"),
			Risk:        v.GetDuration("timeouts.risk"),
			Scrape:      v.GetDuration("timeouts.scrape"),
			MultiScrape: v.GetDuration("timeouts.multi_scrape"),
			Reference:   v.GetDuration("timeouts.reference"),
		},
		MaxRetries:          v.GetInt("retry.max_retries"),
		RetryBackoff:        v.GetDuration("retry.backoff"),
		RetryBackoffMax:     v.GetDuration("retry.backoff_max"),
		AuthToken:           v.GetString("auth_token"),
		CalculationProvider: v.GetString("calculation_provider"),
		ZipCode:             v.GetString("zip_code"),
		Headless:            v.GetBool("headless"),
		Debug:               v.GetBool("debug"),
		RiskDays:            v.GetInt("risk_days"),
		ReferenceCacheSize:  v.GetInt("reference.cache_size"),
		ReferenceCacheTTL:   v.GetDuration("reference.cache_ttl"),
		OutputFile:          v.GetString("output.file"),
		OutputFormat:        strings.ToLower(v.GetString("output.format")),
		UserAgent:           v.GetString("user_agent"),
		Verbose:             v.GetBool("verbose"),
		MetricsAddr:         v.GetString("metrics_addr"),
		OTLPEndpoint:        v.GetString("otlp_endpoint"),
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("timeouts.basic", d.Timeouts.Basic)
	v.SetDefault("timeouts.csv", d.Timeouts.CSV)
	v.SetDefault("timeouts.backtest", d.Timeouts.Backtest)
	v.SetDefault("timeouts.risk", d.Timeouts.Risk)
	v.SetDefault("timeouts.scrape", d.Timeouts.Scrape)
	v.SetDefault("timeouts.multi_scrape", d.Timeouts.MultiScrape)
	v.SetDefault("timeouts.reference", d.Timeouts.Reference)
	v.SetDefault("retry.max_retries", d.MaxRetries)
	v.SetDefault("retry.backoff", d.RetryBackoff)
	v.SetDefault("retry.backoff_max", d.RetryBackoffMax)
	v.SetDefault("auth_token", d.AuthToken)
	v.SetDefault("calculation_provider", d.CalculationProvider)
	v.SetDefault("zip_code", d.ZipCode)
	v.SetDefault("headless", d.Headless)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("risk_days", d.RiskDays)
	v.SetDefault("reference.cache_size", d.ReferenceCacheSize)
	v.SetDefault("reference.cache_ttl", d.ReferenceCacheTTL)
	v.SetDefault("output.file", d.OutputFile)
	v.SetDefault("output.format", d.OutputFormat)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("otlp_endpoint", d.OTLPEndpoint)
}
