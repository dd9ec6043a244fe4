// internal/executor/executor.go
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/internal/browser/surface"
	"github.com/xkilldash9x/trafficsim/internal/humanoid"
	"github.com/xkilldash9x/trafficsim/internal/overlay"
	"github.com/xkilldash9x/trafficsim/internal/planner"
)

// MaxAttempts is how often a failing action is tried before giving up.
const MaxAttempts = 3

// Result is the outcome of executing one action.
type Result struct {
	Success bool
	Message string
}

func ok(format string, args ...interface{}) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...interface{}) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// Handler performs one action type once.
type Handler func(ctx context.Context, action planner.Action) Result

// Option configures an Executor.
type Option func(*Executor)

// WithHandler replaces or adds the handler for one action type.
func WithHandler(t planner.ActionType, h Handler) Option {
	return func(e *Executor) {
		e.handlers[t] = h
	}
}

// Executor turns planned actions into page interactions. Errors never
// escape it; every outcome is a Result.
type Executor struct {
	page     surface.Page
	overlays *overlay.Engine
	pacer    *humanoid.Pacer
	logger   *zap.Logger
	handlers map[planner.ActionType]Handler
}

// New creates an executor for page. overlays is the page's overlay engine,
// shared with the analyzer so the closed set is common to both.
func New(page surface.Page, overlays *overlay.Engine, pacer *humanoid.Pacer, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		page:     page,
		overlays: overlays,
		pacer:    pacer,
		logger:   logger.Named("executor"),
		handlers: make(map[planner.ActionType]Handler),
	}
	e.registerHandlers()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[planner.Scroll] = e.scroll
	e.handlers[planner.ClickButton] = e.clickButton
	e.handlers[planner.ClickLink] = e.clickLink
	e.handlers[planner.FillForm] = e.fillForm
	e.handlers[planner.Hover] = e.hover
	e.handlers[planner.NavigateBack] = e.navigateBack
	e.handlers[planner.ClickRandom] = e.clickRandom
	e.handlers[planner.RandomClick] = e.clickRandom
	e.handlers[planner.Idle] = e.idle
}

// Execute runs action with up to MaxAttempts tries. It returns on the first
// success and never panics.
func (e *Executor) Execute(ctx context.Context, action planner.Action) Result {
	h, found := e.handlers[action.Type]
	if !found {
		return fail("Unknown action type: %s", action.Type)
	}
	log := e.logger.With(zap.String("action", string(action.Type)))
	log.Debug("Executing action.")

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		res, panicked := invoke(ctx, h, action)
		if res.Success {
			log.Info("Action successful.", zap.String("message", res.Message))
			return res
		}

		var backoffLo, backoffHi float64
		if panicked {
			log.Error("Action error.", zap.Int("attempt", attempt), zap.String("error", res.Message))
			backoffLo, backoffHi = 1, 2
		} else {
			log.Warn("Action failed.", zap.Int("attempt", attempt), zap.String("message", res.Message))
			backoffLo, backoffHi = 0.5, 1.5
		}
		if attempt == MaxAttempts {
			break
		}
		if err := e.pacer.Pause(ctx, backoffLo, backoffHi); err != nil {
			break
		}
	}
	return fail("Action %s failed after %d attempts", action.Type, MaxAttempts)
}

func invoke(ctx context.Context, h Handler, action planner.Action) (res Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			res = fail("%v", r)
			panicked = true
		}
	}()
	return h(ctx, action), false
}

// waitAfter honors an action's post-success settle time.
func (e *Executor) waitAfter(ctx context.Context, d time.Duration) {
	if d > 0 {
		_ = e.pacer.Sleep(ctx, d)
	}
}
