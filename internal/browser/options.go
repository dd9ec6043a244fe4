// internal/browser/options.go
package browser

import (
	"sort"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/trafficsim/internal/config"
)

// launchFlags returns the Chrome command line switches for a launch. Values
// are either bool or string, as chromedp.Flag expects.
func launchFlags(cfg config.BrowserConfig, headless bool, proxy string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                              headless,
		"enable-automation":                     false,
		"disable-blink-features":                "AutomationControlled",
		"disable-extensions":                    true,
		"disable-plugins-discovery":             true,
		"disable-web-security":                  true,
		"disable-features":                      "VizDisplayCompositor",
		"no-first-run":                          true,
		"no-service-autorun":                    true,
		"password-store":                        "basic",
		"use-mock-keychain":                     true,
		"disable-background-timer-throttling":   true,
		"disable-backgrounding-occluded-windows": true,
		"disable-renderer-backgrounding":        true,
		"disable-field-trial-config":            true,
		"disable-ipc-flooding-protection":       true,
	}
	if !headless {
		flags["disable-infobars"] = true
		flags["disable-dev-shm-usage"] = true
		flags["no-sandbox"] = true
	}
	if cfg.DisableGPU {
		flags["disable-gpu"] = true
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	if proxy != "" {
		flags["proxy-server"] = proxy
	}

	// User supplied args win over the defaults.
	for _, arg := range cfg.Args {
		name, value := parseArg(arg)
		if name != "" {
			flags[name] = value
		}
	}
	return flags
}

// parseArg splits "--name=value" into its parts. A bare "--name" is a true
// boolean switch.
func parseArg(arg string) (string, interface{}) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if name, value, found := strings.Cut(arg, "="); found {
		return name, value
	}
	return arg, true
}

// AllocatorOptions builds the exec allocator options for one browser
// process. width and height size the window; zero leaves Chrome's default.
func AllocatorOptions(cfg config.BrowserConfig, headless bool, proxy string, width, height int) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(cfg, headless, proxy)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if width > 0 && height > 0 {
		opts = append(opts, chromedp.WindowSize(width, height))
	}
	return opts
}
