// api/schemas/health.go
package schemas

import "time"

// HeapUsage mirrors performance.memory in Chromium.
type HeapUsage struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
	Limit int64 `json:"limit"`
}

// HealthReport is the outcome of a page health probe.
type HealthReport struct {
	CheckedAt  time.Time  `json:"checkedAt"`
	Responsive bool       `json:"responsive"`
	ReadyState string     `json:"readyState,omitempty"`
	URL        string     `json:"url,omitempty"`
	Heap       *HeapUsage `json:"heap,omitempty"`
	Error      string     `json:"error,omitempty"`
}
