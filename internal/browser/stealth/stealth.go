package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/device"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string

	Width             int
	Height            int
	DeviceScaleFactor float64
	Mobile            bool
	Touch             bool

	Latitude  float64
	Longitude float64
}

// DefaultPersona provides a realistic default browser profile.
var DefaultPersona = Persona{
	UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Platform:          "Win32",
	Languages:         []string{"en-US", "en"},
	Timezone:          "America/New_York",
	Locale:            "en-US",
	Width:             1366,
	Height:            768,
	DeviceScaleFactor: 1,
	Latitude:          40.7128,
	Longitude:         -74.0060,
}

// FromProfile builds the persona for a device profile and the browser's
// locale settings.
func FromProfile(p device.Profile, b config.BrowserConfig) Persona {
	persona := DefaultPersona
	persona.UserAgent = p.UserAgent
	persona.Platform = p.Platform
	persona.Width, persona.Height = p.Width, p.Height
	persona.DeviceScaleFactor = p.DeviceScaleFactor
	persona.Mobile, persona.Touch = p.Mobile, p.Touch

	if b.Locale != "" {
		persona.Locale = b.Locale
	}
	persona.Languages = languagesFor(persona.Locale)
	if b.Timezone != "" {
		persona.Timezone = b.Timezone
	}
	if b.Latitude != 0 || b.Longitude != 0 {
		persona.Latitude, persona.Longitude = b.Latitude, b.Longitude
	}
	if persona.DeviceScaleFactor <= 0 {
		persona.DeviceScaleFactor = 1
	}
	return persona
}

// languagesFor expands "en-US" to ["en-US", "en"].
func languagesFor(locale string) []string {
	if i := strings.IndexByte(locale, '-'); i > 0 {
		return []string{locale, locale[:i]}
	}
	return []string{locale}
}

// AcceptLanguage renders the persona's languages as an Accept-Language value.
func (p Persona) AcceptLanguage() string {
	if len(p.Languages) == 0 {
		return ""
	}
	parts := []string{p.Languages[0]}
	q := 0.9
	for _, l := range p.Languages[1:] {
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", l, q))
		q -= 0.1
	}
	return strings.Join(parts, ",")
}

// Script returns the evasions script with the persona values it reads
// prepended.
func Script(p Persona) (string, error) {
	vars := map[string]interface{}{
		"platform":  p.Platform,
		"languages": p.Languages,
	}
	if p.Touch {
		vars["maxTouchPoints"] = 5
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("failed to encode persona: %w", err)
	}
	return fmt.Sprintf("const __persona = %s;\n%s", data, evasionsScript), nil
}

// Apply constructs a sequence of Chrome DevTools Protocol actions to make the
// headless browser appear more like a standard, user-operated browser.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("platform", p.Platform),
		zap.Int("width", p.Width),
		zap.Int("height", p.Height),
	)

	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithPlatform(p.Platform).
			WithAcceptLanguage(p.AcceptLanguage()),

		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := Script(p)
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		emulation.SetGeolocationOverride().
			WithLatitude(p.Latitude).
			WithLongitude(p.Longitude).
			WithAccuracy(100),
	}

	if p.Width > 0 && p.Height > 0 {
		tasks = append(tasks,
			emulation.SetDeviceMetricsOverride(int64(p.Width), int64(p.Height), p.DeviceScaleFactor, p.Mobile).
				WithScreenWidth(int64(p.Width)).
				WithScreenHeight(int64(p.Height)),
		)
	}
	if p.Touch {
		tasks = append(tasks, emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5))
	}
	return tasks
}
