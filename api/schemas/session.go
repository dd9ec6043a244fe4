// api/schemas/session.go
package schemas

import "time"

// TrafficSource identifies how a page visit was attributed.
type TrafficSource string

const (
	SourceDirect   TrafficSource = "Direct"
	SourceOrganic  TrafficSource = "Organic"
	SourceSocial   TrafficSource = "Social"
	SourceReferral TrafficSource = "Referral"
)

// SessionResult is the record handed back to the host once a session ends.
// It is printed as JSON on stdout and optionally persisted by the store.
type SessionResult struct {
	SessionID  string `json:"sessionId"`
	CampaignID string `json:"campaignId,omitempty"`
	UserEmail  string `json:"userEmail,omitempty"`

	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`
	// EffectiveDuration is the loop budget in seconds after bounce shortening.
	EffectiveDuration float64 `json:"effectiveDuration"`

	Device  string   `json:"device"`
	URLs    []string `json:"urls"`
	Headful bool     `json:"headful"`
	Proxy   string   `json:"proxy,omitempty"`

	Source           TrafficSource `json:"source"`
	SpecificReferrer string        `json:"specificReferrer,omitempty"`

	Visited   bool `json:"visited"`
	Bounced   bool `json:"bounced"`
	Completed bool `json:"completed"`

	PagesCreated      int     `json:"pagesCreated"`
	TotalActions      int     `json:"totalActions"`
	SuccessfulActions int     `json:"successfulActions"`
	SuccessRate       float64 `json:"successRate"`
	AdInteractions    int     `json:"adInteractions"`

	Errors   []string  `json:"errors"`
	AdReport *AdReport `json:"adReport,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
