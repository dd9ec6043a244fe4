// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. It is resolved once at
// startup and passed explicitly to the components that need it.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Ads     AdsConfig     `mapstructure:"ads" yaml:"ads"`
	Traffic TrafficConfig `mapstructure:"traffic" yaml:"traffic"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser instance driving a session.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ShouldBeHeadful forces a visible window regardless of Headless.
	ShouldBeHeadful   bool    `mapstructure:"should_be_headful" yaml:"should_be_headful"`
	HeadfulPercentage float64 `mapstructure:"headful_percentage" yaml:"headful_percentage"`

	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	DisableGPU      bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`

	LoadCSS   bool `mapstructure:"load_css" yaml:"load_css"`
	LoadFonts bool `mapstructure:"load_fonts" yaml:"load_fonts"`
	LoadMedia bool `mapstructure:"load_media" yaml:"load_media"`

	Locale    string  `mapstructure:"locale" yaml:"locale"`
	Timezone  string  `mapstructure:"timezone" yaml:"timezone"`
	Latitude  float64 `mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`

	Cookies []CookieConfig `mapstructure:"cookies" yaml:"cookies"`
}

// CookieConfig is a cookie seeded into the session's browser context.
type CookieConfig struct {
	Name     string  `mapstructure:"name" yaml:"name" json:"name"`
	Value    string  `mapstructure:"value" yaml:"value" json:"value"`
	Domain   string  `mapstructure:"domain" yaml:"domain" json:"domain"`
	Path     string  `mapstructure:"path" yaml:"path" json:"path"`
	URL      string  `mapstructure:"url" yaml:"url" json:"url"`
	Expires  float64 `mapstructure:"expires" yaml:"expires" json:"expires"`
	HTTPOnly bool    `mapstructure:"http_only" yaml:"http_only" json:"httpOnly"`
	Secure   bool    `mapstructure:"secure" yaml:"secure" json:"secure"`
	SameSite string  `mapstructure:"same_site" yaml:"same_site" json:"sameSite"`
}

// ProxyConfig defines the configuration for an outbound proxy. The host may
// hand it over as a full server URL, as host and port, or as a "host:port"
// string.
type ProxyConfig struct {
	Server      string `mapstructure:"server" yaml:"server"`
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	ProxyString string `mapstructure:"proxy_string" yaml:"proxy_string"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"-"`
}

// Address resolves the proxy server URL, or "" when no proxy is configured.
func (p ProxyConfig) Address() string {
	switch {
	case p.Server != "":
		return p.Server
	case p.Host != "" && p.Port != "":
		return fmt.Sprintf("http://%s:%s", p.Host, p.Port)
	case p.ProxyString != "":
		parts := strings.Split(p.ProxyString, ":")
		if len(parts) >= 2 {
			return fmt.Sprintf("http://%s:%s", parts[0], parts[1])
		}
	}
	return ""
}

// NetworkConfig tunes navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	NavigationRetries int               `mapstructure:"navigation_retries" yaml:"navigation_retries"`
	RetryBaseDelay    time.Duration     `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	Proxy             ProxyConfig       `mapstructure:"proxy" yaml:"proxy"`
}

// SessionConfig describes a single traffic session.
type SessionConfig struct {
	ID         string   `mapstructure:"id" yaml:"id"`
	CampaignID string   `mapstructure:"campaign_id" yaml:"campaign_id"`
	UserEmail  string   `mapstructure:"user_email" yaml:"user_email"`
	URLs       []string `mapstructure:"urls" yaml:"urls"`

	DurationSeconds   int     `mapstructure:"duration_seconds" yaml:"duration_seconds"`
	BounceRate        float64 `mapstructure:"bounce_rate" yaml:"bounce_rate"`
	VisitDurationMin  int     `mapstructure:"visit_duration_min" yaml:"visit_duration_min"`
	VisitDurationMax  int     `mapstructure:"visit_duration_max" yaml:"visit_duration_max"`
	DesktopPercentage float64 `mapstructure:"desktop_percentage" yaml:"desktop_percentage"`
	// Device forces "desktop" or "mobile"; empty means pick by percentage.
	Device              string  `mapstructure:"device" yaml:"device"`
	Scrolling           bool    `mapstructure:"scrolling" yaml:"scrolling"`
	MaxActionsPerMinute float64 `mapstructure:"max_actions_per_minute" yaml:"max_actions_per_minute"`
}

// AdsConfig configures the ad engine.
type AdsConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxPerPage  int           `mapstructure:"max_per_page" yaml:"max_per_page"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	LoadTimeout time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
}

// SocialConfig enables individual social referrers.
type SocialConfig struct {
	Facebook  bool `mapstructure:"facebook" yaml:"facebook" json:"Facebook"`
	Twitter   bool `mapstructure:"twitter" yaml:"twitter" json:"Twitter"`
	Instagram bool `mapstructure:"instagram" yaml:"instagram" json:"Instagram"`
	LinkedIn  bool `mapstructure:"linkedin" yaml:"linkedin" json:"LinkedIn"`
}

// Any reports whether at least one social referrer is enabled.
func (s SocialConfig) Any() bool {
	return s.Facebook || s.Twitter || s.Instagram || s.LinkedIn
}

// TrafficConfig controls how each visit is attributed.
type TrafficConfig struct {
	Organic        float64      `mapstructure:"organic" yaml:"organic"`
	DirectTraffic  float64      `mapstructure:"direct_traffic" yaml:"direct_traffic"`
	SearchEngine   string       `mapstructure:"search_engine" yaml:"search_engine"`
	SearchKeywords string       `mapstructure:"search_keywords" yaml:"search_keywords"`
	Social         SocialConfig `mapstructure:"social" yaml:"social"`
	Custom         string       `mapstructure:"custom" yaml:"custom"`
}

// StoreConfig holds the database connection details.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "trafficsim")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.should_be_headful", false)
	v.SetDefault("browser.headful_percentage", 0)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.load_css", true)
	v.SetDefault("browser.load_fonts", true)
	v.SetDefault("browser.load_media", true)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "America/New_York")
	v.SetDefault("browser.latitude", 40.7128)
	v.SetDefault("browser.longitude", -74.0060)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.navigation_retries", 3)
	v.SetDefault("network.retry_base_delay", "1s")
	v.SetDefault("network.proxy.server", "")
	v.SetDefault("network.proxy.username", "")
	v.SetDefault("network.proxy.password", "")

	// -- Session --
	v.SetDefault("session.id", "")
	v.SetDefault("session.campaign_id", "")
	v.SetDefault("session.user_email", "")
	v.SetDefault("session.device", "")
	v.SetDefault("session.duration_seconds", 60)
	v.SetDefault("session.bounce_rate", 0)
	v.SetDefault("session.visit_duration_min", 30)
	v.SetDefault("session.visit_duration_max", 120)
	v.SetDefault("session.desktop_percentage", 70)
	v.SetDefault("session.scrolling", true)
	v.SetDefault("session.max_actions_per_minute", 0)

	// -- Ads --
	v.SetDefault("ads.enabled", true)
	v.SetDefault("ads.max_per_page", 2)
	v.SetDefault("ads.settle_delay", "2s")
	v.SetDefault("ads.load_timeout", "10s")

	// -- Traffic --
	v.SetDefault("traffic.organic", 0)
	v.SetDefault("traffic.direct_traffic", 0)
	v.SetDefault("traffic.search_engine", "")
	v.SetDefault("traffic.search_keywords", "")
	v.SetDefault("traffic.custom", "")

	// -- Store --
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.url", "")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session configuration invalid: %w", err)
	}
	if c.Ads.MaxPerPage < 0 {
		return fmt.Errorf("ads.max_per_page must not be negative")
	}
	if err := c.Traffic.Validate(); err != nil {
		return fmt.Errorf("traffic configuration invalid: %w", err)
	}
	if c.Store.Enabled && c.Store.URL == "" {
		return fmt.Errorf("store.url is required when store.enabled is set")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	return checkPercentage("headful_percentage", b.HeadfulPercentage)
}

// Validate checks the session settings. URLs and the duration budget are
// left to the session, which reports them in its result.
func (s *SessionConfig) Validate() error {
	if s.VisitDurationMin <= 0 {
		return fmt.Errorf("visit_duration_min must be greater than 0")
	}
	if err := checkPercentage("bounce_rate", s.BounceRate); err != nil {
		return err
	}
	if err := checkPercentage("desktop_percentage", s.DesktopPercentage); err != nil {
		return err
	}
	switch strings.ToLower(s.Device) {
	case "", "desktop", "mobile":
	default:
		return fmt.Errorf("device must be 'desktop' or 'mobile', got %q", s.Device)
	}
	if s.MaxActionsPerMinute < 0 {
		return fmt.Errorf("max_actions_per_minute must not be negative")
	}
	return nil
}

// Validate checks the traffic attribution settings.
func (t *TrafficConfig) Validate() error {
	if err := checkPercentage("organic", t.Organic); err != nil {
		return err
	}
	return checkPercentage("direct_traffic", t.DirectTraffic)
}

func checkPercentage(name string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be between 0 and 100", name)
	}
	return nil
}
