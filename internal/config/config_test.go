// File: internal/config/config_test.go
package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "trafficsim", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.LoadCSS)
	assert.Equal(t, "America/New_York", cfg.Browser.Timezone)
	assert.Equal(t, 30*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, 3, cfg.Network.NavigationRetries)
	assert.Equal(t, 60, cfg.Session.DurationSeconds)
	assert.Equal(t, 30, cfg.Session.VisitDurationMin)
	assert.Equal(t, 70.0, cfg.Session.DesktopPercentage)
	assert.True(t, cfg.Session.Scrolling)
	assert.True(t, cfg.Ads.Enabled)
	assert.Equal(t, 2, cfg.Ads.MaxPerPage)
	assert.Equal(t, 2*time.Second, cfg.Ads.SettleDelay)
	assert.False(t, cfg.Store.Enabled)

	assert.NoError(t, cfg.Validate(), "defaults must be valid")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero visit min", func(c *Config) { c.Session.VisitDurationMin = 0 }, "visit_duration_min must be greater than 0"},
		{"bounce above 100", func(c *Config) { c.Session.BounceRate = 101 }, "bounce_rate must be between 0 and 100"},
		{"negative desktop share", func(c *Config) { c.Session.DesktopPercentage = -1 }, "desktop_percentage must be between 0 and 100"},
		{"unknown device", func(c *Config) { c.Session.Device = "tablet" }, "device must be 'desktop' or 'mobile'"},
		{"negative ad cap", func(c *Config) { c.Ads.MaxPerPage = -1 }, "ads.max_per_page must not be negative"},
		{"organic above 100", func(c *Config) { c.Traffic.Organic = 150 }, "organic must be between 0 and 100"},
		{"headful share", func(c *Config) { c.Browser.HeadfulPercentage = 200 }, "headful_percentage must be between 0 and 100"},
		{"navigation timeout", func(c *Config) { c.Network.NavigationTimeout = 0 }, "network.navigation_timeout must be a positive duration"},
		{"store without url", func(c *Config) { c.Store.Enabled = true }, "store.url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("zero duration left to the session", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Session.DurationSeconds = 0
		cfg.Session.URLs = nil
		assert.NoError(t, cfg.Validate())
	})

	t.Run("mobile device accepted", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Session.Device = "Mobile"
		assert.NoError(t, cfg.Validate())
	})
}

func TestProxyAddress(t *testing.T) {
	assert.Equal(t, "", ProxyConfig{}.Address())
	assert.Equal(t, "http://p.example:3128", ProxyConfig{Server: "http://p.example:3128", Host: "ignored", Port: "1"}.Address())
	assert.Equal(t, "http://10.0.0.1:8080", ProxyConfig{Host: "10.0.0.1", Port: "8080"}.Address())
	assert.Equal(t, "http://10.0.0.2:9000", ProxyConfig{ProxyString: "10.0.0.2:9000:user:pass"}.Address())
	assert.Equal(t, "", ProxyConfig{ProxyString: "nocolon"}.Address())
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
session:
  urls: ["https://example.com"]
  duration_seconds: 90
ads:
  max_per_page: 1
browser:
  cookies:
    - name: consent
      value: "yes"
      domain: example.com
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, []string{"https://example.com"}, cfg.Session.URLs)
		assert.Equal(t, 90, cfg.Session.DurationSeconds)
		assert.Equal(t, 1, cfg.Ads.MaxPerPage)
		require.Len(t, cfg.Browser.Cookies, 1)
		assert.Equal(t, "consent", cfg.Browser.Cookies[0].Name)
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("session.bounce_rate", 120)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "bounce_rate must be between 0 and 100")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("TRAFFICSIM_ADS_MAX_PER_PAGE", "5")

		v := viper.New()
		SetDefaults(v)
		v.SetEnvPrefix("TRAFFICSIM")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Ads.MaxPerPage)
	})
}
