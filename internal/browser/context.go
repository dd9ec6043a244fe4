// internal/browser/context.go
package browser

import "context"

// CombineContext returns a context that inherits values and cancellation from
// parentCtx and is additionally cancelled when secondaryCtx is done. chromedp
// needs the target values of parentCtx while callers bring their own
// deadlines.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
