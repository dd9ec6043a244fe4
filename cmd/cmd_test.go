// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface/surfacetest"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/observability"
)

// resetForTest silences the logger and installs fakes for the browser and
// the clock. The originals are restored when the test ends.
func resetForTest(t *testing.T) *surfacetest.Launcher {
	t.Helper()

	origPacer, origLauncher, origSave := newPacer, newLauncher, saveResult
	t.Cleanup(func() {
		newPacer, newLauncher, saveResult = origPacer, origLauncher, origSave
		cfgFile = ""
		observability.ResetForTest()
	})

	cfgFile = ""
	t.Setenv("TRAFFICSIM_SESSION_DURATION_SECONDS", "5")
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	launcher := &surfacetest.Launcher{Browser: &surfacetest.Browser{}}
	newPacer = func() *humanoid.Pacer {
		clock := humanoid.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		return humanoid.NewPacer(clock, rand.New(rand.NewSource(1)))
	}
	newLauncher = func(*config.Config, *humanoid.Pacer, *zap.Logger) surface.Launcher {
		return launcher
	}
	return launcher
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	resetForTest(t)

	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "trafficsim version "+Version+"\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "trafficsim version "+Version+"\n", out)
}

func TestNormalizeTargets(t *testing.T) {
	assert.Equal(t,
		[]string{"https://example.com", "http://plain.example", "https://secure.example/path"},
		normalizeTargets([]string{"example.com", " http://plain.example ", "", "https://secure.example/path"}))
}

func TestRunCommand(t *testing.T) {
	launcher := resetForTest(t)

	out, err := execute(t, "run", "example.com")
	require.NoError(t, err)

	var res schemas.SessionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, []string{"https://example.com"}, res.URLs)
	assert.Equal(t, 1, res.PagesCreated)
	assert.True(t, res.Completed)
	assert.Len(t, launcher.Launches(), 1)
	assert.True(t, launcher.Browser.Closed())
}

func TestRunCommandWithCampaign(t *testing.T) {
	resetForTest(t)
	dir := t.TempDir()

	campaign := filepath.Join(dir, "campaign.json")
	require.NoError(t, os.WriteFile(campaign, []byte(`{
		"urls": ["https://shop.example/"],
		"duration_seconds": 5,
		"sessionId": "host-42",
		"campaignId": "spring",
		"device": "Mobile"
	}`), 0644))
	output := filepath.Join(dir, "result.json")

	out, err := execute(t, "run", "--campaign", campaign, "--output", output)
	require.NoError(t, err)
	assert.Empty(t, out, "stdout stays empty when --output is set")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var res schemas.SessionResult
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, "host-42", res.SessionID)
	assert.Equal(t, "spring", res.CampaignID)
	assert.Equal(t, "Mobile", res.Device)
	assert.Equal(t, []string{"https://shop.example/"}, res.URLs)
}

func TestRunCommandFatalSession(t *testing.T) {
	launcher := resetForTest(t)
	launcher.Err = errors.New("chrome not found")

	out, err := execute(t, "run", "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser initialization failed")

	var res schemas.SessionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), "the result is printed even on failure")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "chrome not found")
}

func TestRunCommandZeroDurationReportsResult(t *testing.T) {
	launcher := resetForTest(t)
	campaign := filepath.Join(t.TempDir(), "campaign.json")
	require.NoError(t, os.WriteFile(campaign, []byte(`{
		"urls": ["https://shop.example/"],
		"duration_seconds": 0
	}`), 0644))

	out, err := execute(t, "run", "--campaign", campaign)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be greater than 0")

	var res schemas.SessionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), "the result is printed for invalid session input")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "duration must be greater than 0")
	assert.Contains(t, res.Errors, res.Error)
	assert.Empty(t, launcher.Launches(), "no browser is launched for invalid input")
}

func TestRunCommandInvalidCampaign(t *testing.T) {
	resetForTest(t)
	campaign := filepath.Join(t.TempDir(), "campaign.json")
	require.NoError(t, os.WriteFile(campaign, []byte(`{"bounceRate": 150}`), 0644))

	_, err := execute(t, "run", "--campaign", campaign, "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounce_rate must be between 0 and 100")
}

func TestRunCommandPersistsWhenStoreEnabled(t *testing.T) {
	resetForTest(t)
	t.Setenv("TRAFFICSIM_STORE_ENABLED", "true")
	t.Setenv("TRAFFICSIM_STORE_URL", "postgres://localhost/trafficsim")

	var saved *schemas.SessionResult
	saveResult = func(ctx context.Context, cfg *config.Config, res *schemas.SessionResult, logger *zap.Logger) error {
		assert.Equal(t, "postgres://localhost/trafficsim", cfg.Store.URL)
		saved = res
		return nil
	}

	_, err := execute(t, "run", "example.com")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Success)
}

func TestCheckCommand(t *testing.T) {
	launcher := resetForTest(t)
	launcher.Browser.NewPageFunc = func() *surfacetest.Page {
		return surfacetest.NewPage("about:blank").SetExpr("document.readyState", "complete")
	}

	out, err := execute(t, "check")
	require.NoError(t, err)

	var report schemas.HealthReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Responsive)
	assert.Equal(t, "complete", report.ReadyState)
	assert.True(t, launcher.Browser.Closed())
}

func TestMissingConfigFile(t *testing.T) {
	resetForTest(t)
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}
