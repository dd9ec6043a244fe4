// internal/device/device.go
package device

import "strings"

// Kind is the device class a session emulates.
type Kind string

const (
	Desktop Kind = "Desktop"
	Mobile  Kind = "Mobile"
)

// Rand is the randomness a device pick needs. *rand.Rand and
// *humanoid.Pacer both satisfy it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Profile is everything the browser needs to impersonate one device.
type Profile struct {
	Kind              Kind
	UserAgent         string
	Platform          string
	Width             int
	Height            int
	DeviceScaleFactor float64
	Mobile            bool
	Touch             bool
}

type viewport struct{ w, h int }

var desktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

var mobileUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Samsung SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Mobile Safari/537.36",
}

var desktopViewports = []viewport{
	{1366, 768}, {1920, 1080}, {1440, 900}, {1536, 864}, {1280, 720}, {1600, 900},
}

var mobileViewports = []viewport{
	{375, 812}, {414, 896}, {390, 844}, {393, 851}, {360, 740}, {412, 915},
}

var mobileScaleFactors = []float64{1, 2, 3}

// Pick resolves the device kind. A forced value ("desktop" or "mobile", any
// case) wins; otherwise desktop is chosen with desktopPercentage odds.
func Pick(forced string, desktopPercentage float64, rnd Rand) Kind {
	switch strings.ToLower(forced) {
	case "desktop":
		return Desktop
	case "mobile":
		return Mobile
	}
	if rnd.Float64()*100 < desktopPercentage {
		return Desktop
	}
	return Mobile
}

// Select draws a concrete profile of the given kind.
func Select(kind Kind, rnd Rand) Profile {
	if kind == Mobile {
		ua := mobileUserAgents[rnd.Intn(len(mobileUserAgents))]
		vp := mobileViewports[rnd.Intn(len(mobileViewports))]
		return Profile{
			Kind:              Mobile,
			UserAgent:         ua,
			Platform:          PlatformFor(ua),
			Width:             vp.w,
			Height:            vp.h,
			DeviceScaleFactor: mobileScaleFactors[rnd.Intn(len(mobileScaleFactors))],
			Mobile:            true,
			Touch:             true,
		}
	}
	ua := desktopUserAgents[rnd.Intn(len(desktopUserAgents))]
	vp := desktopViewports[rnd.Intn(len(desktopViewports))]
	return Profile{
		Kind:              Desktop,
		UserAgent:         ua,
		Platform:          PlatformFor(ua),
		Width:             vp.w,
		Height:            vp.h,
		DeviceScaleFactor: 1,
	}
}

// PlatformFor derives navigator.platform from a user agent so the two never
// contradict each other.
func PlatformFor(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"):
		return "iPhone"
	case strings.Contains(ua, "iPad"):
		return "iPad"
	case strings.Contains(ua, "Android"):
		return "Linux armv8l"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}
