// internal/browser/browser_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/trafficsim/internal/config"
)

func TestLaunchFlags(t *testing.T) {
	t.Run("headless defaults", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{}, true, "")
		assert.Equal(t, true, flags["headless"])
		assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
		assert.Equal(t, false, flags["enable-automation"])
		assert.NotContains(t, flags, "no-sandbox")
		assert.NotContains(t, flags, "proxy-server")
		assert.NotContains(t, flags, "disable-gpu")
	})

	t.Run("headful adds window flags", func(t *testing.T) {
		flags := launchFlags(config.BrowserConfig{}, false, "")
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, true, flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-infobars"])
		assert.Equal(t, true, flags["disable-dev-shm-usage"])
	})

	t.Run("proxy, tls and gpu", func(t *testing.T) {
		cfg := config.BrowserConfig{DisableGPU: true, IgnoreTLSErrors: true}
		flags := launchFlags(cfg, true, "http://10.0.0.1:8080")
		assert.Equal(t, "http://10.0.0.1:8080", flags["proxy-server"])
		assert.Equal(t, true, flags["ignore-certificate-errors"])
		assert.Equal(t, true, flags["allow-insecure-localhost"])
		assert.Equal(t, true, flags["disable-gpu"])
	})

	t.Run("custom args override", func(t *testing.T) {
		cfg := config.BrowserConfig{Args: []string{"--lang=de", "--mute-audio", "--disable-features=Translate"}}
		flags := launchFlags(cfg, true, "")
		assert.Equal(t, "de", flags["lang"])
		assert.Equal(t, true, flags["mute-audio"])
		assert.Equal(t, "Translate", flags["disable-features"])
	})
}

func TestAllocatorOptions(t *testing.T) {
	flags := launchFlags(config.BrowserConfig{}, true, "")
	base := AllocatorOptions(config.BrowserConfig{}, true, "", 0, 0)
	assert.Len(t, base, len(chromedp.DefaultExecAllocatorOptions)+len(flags))

	withExtras := AllocatorOptions(config.BrowserConfig{ExecPath: "/usr/bin/chromium"}, true, "", 1366, 768)
	assert.Len(t, withExtras, len(base)+2, "exec path and window size")
}

func TestBlockedTypes(t *testing.T) {
	assert.Empty(t, blockedTypes(config.BrowserConfig{LoadCSS: true, LoadFonts: true, LoadMedia: true}))
	assert.Equal(t, map[network.ResourceType]bool{
		network.ResourceTypeFont:  true,
		network.ResourceTypeMedia: true,
	}, blockedTypes(config.BrowserConfig{LoadCSS: true}))
}

func TestCookieParams(t *testing.T) {
	params := cookieParams([]config.CookieConfig{
		{Name: "sid", Value: "abc", Domain: ".example.com", SameSite: "Lax", Expires: 1893456000, Secure: true},
		{Name: "pref", Value: "dark", URL: "https://example.com/"},
	})
	require.Len(t, params, 2)
	assert.Equal(t, "/", params[0].Path)
	assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1893456000), params[0].Expires.Time().Unix())
	assert.True(t, params[0].Secure)
	assert.Nil(t, params[1].Expires)
	assert.Equal(t, "https://example.com/", params[1].URL)
}

func TestParseArg(t *testing.T) {
	name, value := parseArg("--window-position=0,0")
	assert.Equal(t, "window-position", name)
	assert.Equal(t, "0,0", value)

	name, value = parseArg("  --kiosk ")
	assert.Equal(t, "kiosk", name)
	assert.Equal(t, true, value)
}

func TestIdleTracker(t *testing.T) {
	tr := newIdleTracker()
	tr.start("1")
	tr.start("2")

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.wait(ctx, 20*time.Millisecond), context.DeadlineExceeded)

	tr.done("1")
	tr.done("2")
	tr.done("unknown")
	require.NoError(t, tr.wait(context.Background(), 20*time.Millisecond))
}

func TestCombineContext(t *testing.T) {
	type key struct{}
	parent := context.WithValue(context.Background(), key{}, "target")
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := CombineContext(parent, secondary)
	defer cancel()
	assert.Equal(t, "target", combined.Value(key{}))

	cancelSecondary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context not cancelled by the secondary context")
	}
}

func TestHealth(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("responsive with heap", func(t *testing.T) {
		page := surfacetest.NewPage("https://example.com/")
		page.SetExpr("document.readyState", "complete")
		page.SetExpr(jsHeapUsage, map[string]int64{"used": 10, "total": 20, "limit": 40})

		report := Health(context.Background(), page, now)
		assert.Equal(t, schemas.HealthReport{
			CheckedAt:  now,
			Responsive: true,
			ReadyState: "complete",
			URL:        "https://example.com/",
			Heap:       &schemas.HeapUsage{Used: 10, Total: 20, Limit: 40},
		}, report)
	})

	t.Run("ping fallback", func(t *testing.T) {
		page := surfacetest.NewPage("about:blank")
		page.SetExpr("document.readyState", errors.New("timeout"))
		page.SetExpr("1 + 1", 2)

		report := Health(context.Background(), page, now)
		assert.True(t, report.Responsive)
		assert.Empty(t, report.ReadyState)
		assert.Nil(t, report.Heap)
	})

	t.Run("url fallback", func(t *testing.T) {
		broken := errors.New("target closed")
		page := surfacetest.NewPage("https://example.com/")
		page.SetExpr("document.readyState", broken)
		page.SetExpr("1 + 1", broken)

		report := Health(context.Background(), page, now)
		assert.True(t, report.Responsive, "a page that navigated somewhere still counts")
		assert.Equal(t, "target closed", report.Error)

		blank := surfacetest.NewPage("about:blank")
		blank.SetExpr("document.readyState", broken)
		blank.SetExpr("1 + 1", broken)
		assert.False(t, Health(context.Background(), blank, now).Responsive)
	})
}
