// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	HTTP    HTTPConfig     `mapstructure:"http" yaml:"http"`
	Browser BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Scrape  ScrapeConfig   `mapstructure:"scrape" yaml:"scrape"`
	API     APIConfig      `mapstructure:"api" yaml:"api"`
	Targets []TargetConfig `mapstructure:"targets" yaml:"targets"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// HTTPConfig controls the cookie-bearing session client.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// BrowserConfig controls the scripted-UI login and live-frame extraction.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// SettleDelay is the fixed wait after navigation for client-side
	// widget frameworks (ExtJS) to finish rendering.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// SubmitWait is how long to wait for the post-submit page state.
	SubmitWait time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"`
	// ChallengeInterval and ChallengeTimeout bound the poll loop that waits
	// for a human to resolve a verification challenge.
	ChallengeInterval time.Duration `mapstructure:"challenge_interval" yaml:"challenge_interval"`
	ChallengeTimeout  time.Duration `mapstructure:"challenge_timeout" yaml:"challenge_timeout"`
	// CookieFile is where session cookies are persisted between runs.
	CookieFile string `mapstructure:"cookie_file" yaml:"cookie_file"`
}

// ScrapeConfig controls pacing and output of a scrape run.
type ScrapeConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	MaxConcurrent     int     `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	DataFile          string  `mapstructure:"data_file" yaml:"data_file"`
}

// APIConfig controls the REST facade started by `quayscrape serve`.
type APIConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// TargetConfig describes one named scrape target.
type TargetConfig struct {
	Code      string `mapstructure:"code" yaml:"code"`
	Name      string `mapstructure:"name" yaml:"name"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Kind      string `mapstructure:"kind" yaml:"kind"`
	LoginPath string `mapstructure:"login_path" yaml:"login_path"`
}

// Target kinds. A "form" target logs in with a plain POST of the login
// form; a "browser" target needs a scripted browser because the login UI
// is rendered client-side.
const (
	TargetKindForm    = "form"
	TargetKindBrowser = "browser"
)

// DefaultTargets returns the built-in target table used when the config
// file does not declare its own.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		{Code: "T18", Name: "Seattle Terminal 18", BaseURL: "https://t18.tideworks.com/fc-T18", Kind: TargetKindForm, LoginPath: "default.do"},
		{Code: "LAX", Name: "Los Angeles", BaseURL: "https://www.etslink.com", Kind: TargetKindBrowser},
		{Code: "OAK", Name: "Oakland", BaseURL: "https://www.etslink.com", Kind: TargetKindBrowser},
		{Code: "TIW", Name: "Tacoma", BaseURL: "https://www.etslink.com", Kind: TargetKindBrowser},
	}
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "quayscrape")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "red")
	v.SetDefault("logger.colors.panic", "red")
	v.SetDefault("logger.colors.fatal", "red")

	// HTTP session client
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	// Browser
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.settle_delay", 2*time.Second)
	v.SetDefault("browser.submit_wait", 3*time.Second)
	v.SetDefault("browser.challenge_interval", 2*time.Second)
	v.SetDefault("browser.challenge_timeout", 120*time.Second)
	v.SetDefault("browser.cookie_file", "data/cookies.json")

	// Scrape
	v.SetDefault("scrape.requests_per_second", 1.0)
	v.SetDefault("scrape.burst", 1)
	v.SetDefault("scrape.max_concurrent", 5)
	v.SetDefault("scrape.data_file", "data/scrape_data.json")

	// API
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
}

// Load reads the configuration from the given file (or the default search
// path when empty), merges environment variables and defaults, and
// validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("QUAYSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Targets) == 0 {
		cfg.Targets = DefaultTargets()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Scrape.RequestsPerSecond <= 0 {
		return fmt.Errorf("scrape.requests_per_second must be > 0, got %v", c.Scrape.RequestsPerSecond)
	}
	if c.Scrape.Burst < 1 {
		return fmt.Errorf("scrape.burst must be >= 1, got %d", c.Scrape.Burst)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0, got %v", c.HTTP.Timeout)
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Code == "" || t.BaseURL == "" {
			return fmt.Errorf("target %q: code and base_url are required", t.Code)
		}
		if t.Kind != TargetKindForm && t.Kind != TargetKindBrowser {
			return fmt.Errorf("target %q: unknown kind %q", t.Code, t.Kind)
		}
		if seen[t.Code] {
			return fmt.Errorf("duplicate target code %q", t.Code)
		}
		seen[t.Code] = true
	}
	return nil
}
