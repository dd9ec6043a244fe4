// internal/browser/network.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/xkilldash9x/trafficsim/internal/config"
)

// networkIdleQuiet is how long a page must go without in-flight requests to
// count as idle.
const networkIdleQuiet = 500 * time.Millisecond

// idleTracker counts in-flight requests of one page.
type idleTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (t *idleTracker) start(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
}

func (t *idleTracker) done(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; ok {
		delete(t.inflight, id)
		t.lastActivity = time.Now()
	}
}

func (t *idleTracker) idleFor() (int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), time.Since(t.lastActivity)
}

// wait polls until there have been no in-flight requests for quiet.
func (t *idleTracker) wait(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(quiet / 2)
	defer ticker.Stop()

	for {
		if n, since := t.idleFor(); n == 0 && since >= quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// blockedTypes lists the resource types a page aborts per the load_*
// switches.
func blockedTypes(cfg config.BrowserConfig) map[network.ResourceType]bool {
	blocked := make(map[network.ResourceType]bool)
	if !cfg.LoadFonts {
		blocked[network.ResourceTypeFont] = true
	}
	if !cfg.LoadCSS {
		blocked[network.ResourceTypeStylesheet] = true
	}
	if !cfg.LoadMedia {
		blocked[network.ResourceTypeMedia] = true
	}
	return blocked
}
