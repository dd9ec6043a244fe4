// internal/session/loop.go
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/planner"
)

const tickErrorPause = time.Second

// loop round-robins the pages until the budget is spent. The budget is only
// checked between ticks; a tick in flight always completes.
func (o *Orchestrator) loop(ctx context.Context) {
	start := o.pacer.Now()
	o.logger.Info("Starting interaction loop.",
		zap.Int("pages", len(o.pages)),
		zap.Duration("budget", o.budget))

	for index := 0; ; index++ {
		if ctx.Err() != nil {
			o.logger.Info("Interaction loop cancelled.")
			return
		}
		if o.pacer.Now().Sub(start) >= o.budget {
			return
		}
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
		}

		pc := o.pages[index%len(o.pages)]
		if err := o.tick(ctx, pc); err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("Interaction loop error.", zap.String("url", pc.URL), zap.Error(err))
			o.result.Errors = append(o.result.Errors, fmt.Sprintf("Interaction loop error: %v", err))
			_ = o.pacer.Sleep(ctx, tickErrorPause)
		}
	}
}

// tick runs one pass of the pipeline on pc: analyze, ads, plan, execute,
// learn, then a few opportunistic random clicks.
func (o *Orchestrator) tick(ctx context.Context, pc *PageContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := pc.Page.BringToFront(ctx); err != nil {
		return fmt.Errorf("failed to bring page to front: %w", err)
	}

	snap := pc.Analyzer.Analyze(ctx)

	if o.cfg.Ads.Enabled {
		tally := pc.Ads.DetectAndInteract(ctx)
		if tally.TotalDetected > 0 {
			o.logger.Info("Ad pass finished.",
				zap.Int("detected", tally.TotalDetected),
				zap.Int("interacted", tally.TotalInteracted))
		}
	}

	action := pc.Planner.Decide(snap)
	res := pc.Executor.Execute(ctx, action)
	pc.Planner.RecordResult(action.Type, res.Success)
	o.result.TotalActions++
	if res.Success {
		o.result.SuccessfulActions++
	}

	extra := o.pacer.IntRange(1, 3)
	for i := 0; i < extra; i++ {
		if extraRes := pc.Executor.Execute(ctx, planner.Action{Type: planner.ClickRandom, Count: 1}); !extraRes.Success {
			o.logger.Debug("Extra random click failed.", zap.String("url", pc.URL), zap.String("reason", extraRes.Message))
		}
		o.result.TotalActions++
		if err := o.pacer.Pause(ctx, 1, 3); err != nil {
			return err
		}
	}

	return o.pacer.Pause(ctx, 2, 5)
}
