// internal/traffic/opener.go
package traffic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/config"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
)

// Visit describes how an opened page was attributed.
type Visit struct {
	Source   schemas.TrafficSource
	Referrer string
}

// Opener creates a page per target URL and navigates it under the chosen
// traffic source.
type Opener struct {
	selector   *Selector
	pacer      *humanoid.Pacer
	logger     *zap.Logger
	headers    map[string]string
	retries    int
	baseDelay  time.Duration
	navTimeout time.Duration
}

// NewOpener creates an opener from the traffic and network settings.
func NewOpener(tc config.TrafficConfig, nc config.NetworkConfig, pacer *humanoid.Pacer, logger *zap.Logger) *Opener {
	retries := nc.NavigationRetries
	if retries <= 0 {
		retries = 3
	}
	base := nc.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	timeout := nc.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Opener{
		selector:   NewSelector(tc, pacer),
		pacer:      pacer,
		logger:     logger.Named("traffic"),
		headers:    nc.Headers,
		retries:    retries,
		baseDelay:  base,
		navTimeout: timeout,
	}
}

// Open creates a page in b and navigates it to target. The Referer header is
// installed before the target navigation so the first request carries it.
// On failure the page is closed and nil is returned.
func (o *Opener) Open(ctx context.Context, b surface.Browser, target string) (surface.Page, Visit, error) {
	plan := o.selector.Choose()
	visit := Visit{Source: plan.Source, Referrer: plan.Referrer}
	log := o.logger.With(zap.String("url", target), zap.String("source", string(plan.Source)))

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, visit, fmt.Errorf("failed to create page: %w", err)
	}

	if err := o.open(ctx, page, target, plan, log); err != nil {
		if cerr := page.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Debug("Failed to close page after navigation error.", zap.Error(cerr))
		}
		return nil, visit, err
	}

	log.Info("Page created successfully.", zap.String("referrer", plan.Referrer))
	return page, visit, nil
}

func (o *Opener) open(ctx context.Context, page surface.Page, target string, plan Plan, log *zap.Logger) error {
	if len(o.headers) > 0 {
		if err := page.SetExtraHeaders(ctx, o.headers); err != nil {
			return fmt.Errorf("failed to set headers: %w", err)
		}
	}

	if plan.SearchURL != "" {
		log.Debug("Visiting search results first.", zap.String("search_url", plan.SearchURL))
		if err := o.navigate(ctx, page, plan.SearchURL, log); err != nil {
			// The target visit still goes ahead with the search referrer.
			log.Warn("Search engine hop failed.", zap.Error(err))
		} else if err := o.pacer.Pause(ctx, 2, 4); err != nil {
			return err
		}
	}

	if plan.Referrer != "" {
		headers := make(map[string]string, len(o.headers)+1)
		for k, v := range o.headers {
			headers[k] = v
		}
		headers["Referer"] = plan.Referrer
		if err := page.SetExtraHeaders(ctx, headers); err != nil {
			return fmt.Errorf("failed to set referer: %w", err)
		}
	}

	return o.navigate(ctx, page, target, log)
}

// navigate loads url with up to o.retries attempts. The wait before attempt
// n+1 is base*2^n plus up to one second of jitter.
func (o *Opener) navigate(ctx context.Context, page surface.Page, url string, log *zap.Logger) error {
	var err error
	for attempt := 0; attempt < o.retries; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, o.navTimeout)
		err = page.Goto(navCtx, url)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == o.retries-1 || ctx.Err() != nil {
			break
		}
		delay := o.baseDelay*time.Duration(1<<attempt) + o.pacer.Between(0, 1)
		log.Warn("Navigation attempt failed, retrying.",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := o.pacer.Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}
