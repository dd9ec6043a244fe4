// internal/browser/health.go
package browser

import (
	"context"
	"time"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
)

const (
	readyStateTimeout = 2 * time.Second
	pingTimeout       = time.Second
	heapTimeout       = 2 * time.Second

	jsHeapUsage = `(() => {
		if (performance.memory) {
			return {
				used: performance.memory.usedJSHeapSize,
				total: performance.memory.totalJSHeapSize,
				limit: performance.memory.jsHeapSizeLimit
			};
		}
		return null;
	})()`
)

// Health probes whether p still responds to script evaluation and samples
// its JS heap. A page that cannot evaluate anything still counts as
// responsive when it has navigated somewhere real.
func Health(ctx context.Context, p surface.Page, now time.Time) schemas.HealthReport {
	report := schemas.HealthReport{CheckedAt: now, URL: p.URL()}

	var state string
	if err := evaluateWithin(ctx, p, "document.readyState", &state, readyStateTimeout); err == nil {
		report.Responsive = true
		report.ReadyState = state
	} else {
		var sum int
		if perr := evaluateWithin(ctx, p, "1 + 1", &sum, pingTimeout); perr == nil {
			report.Responsive = true
		} else {
			report.Responsive = report.URL != "" && report.URL != "about:blank"
			report.Error = perr.Error()
		}
	}

	var heap *schemas.HeapUsage
	if err := evaluateWithin(ctx, p, jsHeapUsage, &heap, heapTimeout); err == nil && heap != nil {
		report.Heap = heap
	}
	return report
}

func evaluateWithin(ctx context.Context, p surface.Page, expr string, out interface{}, d time.Duration) error {
	evalCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return p.Evaluate(evalCtx, expr, out)
}
