// api/schemas/ads.go
package schemas

import "time"

// Position is an element's bounding box in CSS pixels.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementInfo is the fixed-shape description captured for every ad candidate
// at detection time. When the element could not be described, Error is set
// and only AdType is meaningful.
type ElementInfo struct {
	AdType      string    `json:"adType"`
	Visible     bool      `json:"visible"`
	Enabled     bool      `json:"enabled"`
	TagName     string    `json:"tagName"`
	ClassName   string    `json:"className"`
	ID          string    `json:"id"`
	TextContent string    `json:"textContent"`
	Href        string    `json:"href"`
	Position    *Position `json:"position,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// AdEvent is one entry in the ad reporter's append-only log.
type AdEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	AdType    string      `json:"adType"`
	Selector  string      `json:"selector,omitempty"`
	Element   ElementInfo `json:"elementInfo"`
	URL       string      `json:"pageUrl"`
	Domain    string      `json:"domain"`
	Success   bool        `json:"success,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// DetailedInteractions groups the raw event log by kind.
type DetailedInteractions struct {
	DetectedAds         []AdEvent `json:"detectedAds"`
	ClickedAds          []AdEvent `json:"clickedAds"`
	IgnoredAds          []AdEvent `json:"ignoredAds"`
	FailedInteractions  []AdEvent `json:"failedInteractions"`
	PopupClosures       []AdEvent `json:"popupClosures"`
	IframeInteractions  []AdEvent `json:"iframeInteractions"`
	VideoAdInteractions []AdEvent `json:"videoAdInteractions"`
}

// ClickedAdDetail is the human-readable view of a successful ad click.
type ClickedAdDetail struct {
	AdName       string    `json:"adName"`
	AdType       string    `json:"adType"`
	ClickTime    time.Time `json:"clickTime"`
	Domain       string    `json:"domain"`
	AdText       string    `json:"adText"`
	AdPosition   *Position `json:"adPosition,omitempty"`
	SelectorUsed string    `json:"selectorUsed"`
}

// IgnoredExample is a short sample of an ignored ad.
type IgnoredExample struct {
	AdName string `json:"adName"`
	AdText string `json:"adText"`
}

// IgnoredSummary aggregates ignored ads sharing the same reason.
type IgnoredSummary struct {
	Count    int              `json:"count"`
	AdTypes  []string         `json:"adTypes"`
	Examples []IgnoredExample `json:"examples"`
}

// TypeBreakdown counts outcomes for one ad category.
type TypeBreakdown struct {
	Detected int `json:"detected"`
	Clicked  int `json:"clicked"`
	Ignored  int `json:"ignored"`
	Failed   int `json:"failed"`
}

// SessionSummary is the aggregate section of the ad report.
type SessionSummary struct {
	TotalAdsDetected   int                       `json:"totalAdsDetected"`
	TotalAdsClicked    int                       `json:"totalAdsClicked"`
	TotalAdsIgnored    int                       `json:"totalAdsIgnored"`
	TotalFailedClicks  int                       `json:"totalFailedClicks"`
	ClickSuccessRate   string                    `json:"clickSuccessRate"`
	AdTypesEncountered []string                  `json:"adTypesEncountered"`
	DomainsWithAds     []string                  `json:"domainsWithAds"`
	PopupClosures      int                       `json:"popupClosures"`
	ClickedAdsDetails  []ClickedAdDetail         `json:"clickedAdsDetails"`
	IgnoredAdsSummary  map[string]IgnoredSummary `json:"ignoredAdsSummary"`
	AdTypeBreakdown    map[string]TypeBreakdown  `json:"adTypeBreakdown"`
}

// AdReport is produced once at session end.
type AdReport struct {
	SessionSummary       SessionSummary       `json:"sessionSummary"`
	DetailedInteractions DetailedInteractions `json:"detailedInteractions"`
	Recommendations      []string             `json:"recommendations"`
}
