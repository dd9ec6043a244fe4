// File: internal/config/campaign.go
package config

import (
	"fmt"
	"os"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
)

// Campaign is the JSON document the host hands over to start a session.
// Every field is optional; only the ones present override the resolved
// configuration.
type Campaign struct {
	URLs              []string       `json:"urls"`
	DurationSeconds   *int           `json:"duration_seconds"`
	Proxy             *CampaignProxy `json:"proxy"`
	Cookies           []CookieConfig `json:"cookies"`
	Headless          *bool          `json:"headless"`
	ShouldBeHeadful   *bool          `json:"shouldBeHeadful"`
	HeadfulPercentage *float64       `json:"headfulPercentage"`

	SessionID  string `json:"sessionId"`
	CampaignID string `json:"campaignId"`
	UserEmail  string `json:"userEmail"`

	BounceRate        *float64 `json:"bounceRate"`
	DesktopPercentage *float64 `json:"desktopPercentage"`
	Device            string   `json:"device"`
	Scrolling         *bool    `json:"scrolling"`
	VisitDurationMin  *int     `json:"visitDurationMin"`
	VisitDurationMax  *int     `json:"visitDurationMax"`

	Organic        *float64      `json:"organic"`
	DirectTraffic  *float64      `json:"directTraffic"`
	SearchEngine   string        `json:"searchEngine"`
	SearchKeywords string        `json:"searchKeywords"`
	Social         *SocialConfig `json:"social"`
	Custom         string        `json:"custom"`

	LoadCSS   *bool `json:"loadCSS"`
	LoadFonts *bool `json:"loadFonts"`
	LoadMedia *bool `json:"loadMedia"`
}

// CampaignProxy accepts the proxy shapes the host emits. Port may arrive as
// a number or a string.
type CampaignProxy struct {
	Server      string      `json:"server"`
	Host        string      `json:"host"`
	Port        interface{} `json:"port"`
	ProxyString string      `json:"proxyString"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
}

// LoadCampaign reads and decodes a campaign file. A leading "~" is expanded.
func LoadCampaign(path string) (*Campaign, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand campaign path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign file: %w", err)
	}
	return ParseCampaign(data)
}

// ParseCampaign decodes a campaign document.
func ParseCampaign(data []byte) (*Campaign, error) {
	var c Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode campaign: %w", err)
	}
	return &c, nil
}

// Apply overlays the campaign's fields onto cfg.
func (c *Campaign) Apply(cfg *Config) {
	if len(c.URLs) > 0 {
		cfg.Session.URLs = append([]string(nil), c.URLs...)
	}
	setInt(&cfg.Session.DurationSeconds, c.DurationSeconds)
	setString(&cfg.Session.ID, c.SessionID)
	setString(&cfg.Session.CampaignID, c.CampaignID)
	setString(&cfg.Session.UserEmail, c.UserEmail)
	setFloat(&cfg.Session.BounceRate, c.BounceRate)
	setFloat(&cfg.Session.DesktopPercentage, c.DesktopPercentage)
	setString(&cfg.Session.Device, strings.ToLower(c.Device))
	setBool(&cfg.Session.Scrolling, c.Scrolling)
	setInt(&cfg.Session.VisitDurationMin, c.VisitDurationMin)
	setInt(&cfg.Session.VisitDurationMax, c.VisitDurationMax)

	setBool(&cfg.Browser.Headless, c.Headless)
	setBool(&cfg.Browser.ShouldBeHeadful, c.ShouldBeHeadful)
	setFloat(&cfg.Browser.HeadfulPercentage, c.HeadfulPercentage)
	setBool(&cfg.Browser.LoadCSS, c.LoadCSS)
	setBool(&cfg.Browser.LoadFonts, c.LoadFonts)
	setBool(&cfg.Browser.LoadMedia, c.LoadMedia)
	if len(c.Cookies) > 0 {
		cfg.Browser.Cookies = append([]CookieConfig(nil), c.Cookies...)
	}

	if c.Proxy != nil {
		p := ProxyConfig{
			Server:      c.Proxy.Server,
			Host:        c.Proxy.Host,
			ProxyString: c.Proxy.ProxyString,
			Username:    c.Proxy.Username,
			Password:    c.Proxy.Password,
		}
		if c.Proxy.Port != nil {
			p.Port = fmt.Sprint(c.Proxy.Port)
		}
		cfg.Network.Proxy = p
	}

	setFloat(&cfg.Traffic.Organic, c.Organic)
	setFloat(&cfg.Traffic.DirectTraffic, c.DirectTraffic)
	setString(&cfg.Traffic.SearchEngine, c.SearchEngine)
	setString(&cfg.Traffic.SearchKeywords, c.SearchKeywords)
	setString(&cfg.Traffic.Custom, c.Custom)
	if c.Social != nil {
		cfg.Traffic.Social = *c.Social
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
