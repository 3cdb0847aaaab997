package traversal

import (
	"context"
	"time"

	"serpgrab/pkg/collector"
	"serpgrab/pkg/logger"
)

// AdvanceOutcome reports whether an advance step moved to new content
type AdvanceOutcome int

const (
	// Advanced means the cursor moved and another cycle may follow
	Advanced AdvanceOutcome = iota
	// Exhausted means the terminal affordance is absent
	Exhausted
)

// StopPolicy selects the terminal condition of a traversal
type StopPolicy int

const (
	// StopOnAbsence stops when Advance reports Exhausted
	StopOnAbsence StopPolicy = iota
	// StopOnStableSignal stops when Signal after advancing equals the
	// previous signal
	StopOnStableSignal
	// StopOnStableCount stops when an extraction pass adds nothing new
	StopOnStableCount
)

func (p StopPolicy) String() string {
	switch p {
	case StopOnAbsence:
		return "absence"
	case StopOnStableSignal:
		return "stable_signal"
	case StopOnStableCount:
		return "stable_count"
	default:
		return "unknown"
	}
}

// StopReason says why a traversal ended
type StopReason string

const (
	ReasonExhausted    StopReason = "exhausted"
	ReasonStableSignal StopReason = "stable_signal"
	ReasonStableCount  StopReason = "stable_count"
	ReasonMaxCycles    StopReason = "max_cycles"
	ReasonError        StopReason = "error"
	ReasonCancelled    StopReason = "cancelled"
)

// Steps are the closures one traversal drives. Extract may be nil for loops
// that only move the cursor. Signal is only consulted under
// StopOnStableSignal. Ready feeds the Waiter after each advance.
type Steps struct {
	Extract func(ctx context.Context) ([]string, error)
	Advance func(ctx context.Context) (AdvanceOutcome, error)
	Signal  func(ctx context.Context) (int64, error)
	Ready   ReadyFunc
}

// Result is the outcome of one traversal
type Result struct {
	Set    *collector.Set
	Reason StopReason
	Cycles int
	Err    error
}

// Controller runs extract/advance cycles until a terminal condition.
// Errors from any step end the traversal and are logged, never returned.
type Controller struct {
	// Waiter settles after each advance
	Waiter *Waiter
	// ScrollWaiter settles between steps of ScrollToStability
	ScrollWaiter *Waiter
	// MaxCycles caps a traversal; 0 means unbounded
	MaxCycles int
	Logger    logger.Logger
}

// NewController creates a controller
func NewController(settle, scroll *Waiter, maxCycles int, log logger.Logger) *Controller {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Controller{
		Waiter:       settle,
		ScrollWaiter: scroll,
		MaxCycles:    maxCycles,
		Logger:       log,
	}
}

// Run drives steps under policy and returns everything collected
func (c *Controller) Run(ctx context.Context, steps Steps, policy StopPolicy) *collector.Set {
	return c.Traverse(ctx, steps, policy).Set
}

// Traverse is Run with the stop reason and cycle count
func (c *Controller) Traverse(ctx context.Context, steps Steps, policy StopPolicy) Result {
	start := time.Now()
	res := c.traverse(ctx, c.Waiter, steps, policy)

	log := c.log().WithField("policy", policy.String())
	if res.Err != nil {
		log = log.WithError(res.Err)
	}
	logger.LogTraversalStop(log, string(res.Reason), res.Cycles, res.Set.Len(), time.Since(start))
	return res
}

func (c *Controller) traverse(ctx context.Context, waiter *Waiter, steps Steps, policy StopPolicy) Result {
	res := Result{Set: collector.New()}
	stop := func(reason StopReason, err error) Result {
		res.Reason = reason
		res.Err = err
		return res
	}

	var previous int64
	if policy == StopOnStableSignal {
		sig, err := steps.Signal(ctx)
		if err != nil {
			return stop(ReasonError, err)
		}
		previous = sig
	}

	for {
		if err := ctx.Err(); err != nil {
			return stop(ReasonCancelled, err)
		}
		if c.MaxCycles > 0 && res.Cycles >= c.MaxCycles {
			return stop(ReasonMaxCycles, nil)
		}
		res.Cycles++

		if steps.Extract != nil {
			items, err := steps.Extract(ctx)
			if err != nil {
				return stop(ReasonError, err)
			}
			added := res.Set.Add(items)
			if policy == StopOnStableCount && added == 0 {
				return stop(ReasonStableCount, nil)
			}
		}

		outcome, err := steps.Advance(ctx)
		if err != nil {
			return stop(ReasonError, err)
		}
		if outcome == Exhausted {
			return stop(ReasonExhausted, nil)
		}

		waiter.Wait(ctx, steps.Ready)

		if policy == StopOnStableSignal {
			current, err := steps.Signal(ctx)
			if err != nil {
				return stop(ReasonError, err)
			}
			if current == previous {
				return stop(ReasonStableSignal, nil)
			}
			previous = current
		}
	}
}

// ScrollToStability scrolls until the content extent stops changing
func (c *Controller) ScrollToStability(ctx context.Context, scroll func(ctx context.Context) error, extent func(ctx context.Context) (int64, error), ready ReadyFunc) {
	res := c.traverse(ctx, c.ScrollWaiter, Steps{
		Advance: func(ctx context.Context) (AdvanceOutcome, error) {
			if err := scroll(ctx); err != nil {
				return Exhausted, err
			}
			return Advanced, nil
		},
		Signal: extent,
		Ready:  ready,
	}, StopOnStableSignal)

	if res.Err != nil {
		c.log().WithError(res.Err).Warn("Scroll stopped early")
		return
	}
	c.log().DebugWithFields("Scrolled to stability", map[string]interface{}{
		"steps":  res.Cycles,
		"reason": string(res.Reason),
	})
}

// PaginatedSteps drive link collection across result pages
type PaginatedSteps struct {
	// Scroll and Extent feed the per-page scroll-to-stability sub-loop
	Scroll  func(ctx context.Context) error
	Extent  func(ctx context.Context) (int64, error)
	Extract func(ctx context.Context) ([]string, error)
	// HasNext reports whether the next-page control exists; Next activates it
	HasNext func(ctx context.Context) (bool, error)
	Next    func(ctx context.Context) error
	Ready   ReadyFunc
}

// Paginated scrolls each page to stability, extracts, and follows the next
// page control until it is absent
func (c *Controller) Paginated(ctx context.Context, p PaginatedSteps) *collector.Set {
	return c.Run(ctx, Steps{
		Extract: func(ctx context.Context) ([]string, error) {
			c.ScrollToStability(ctx, p.Scroll, p.Extent, p.Ready)
			return p.Extract(ctx)
		},
		Advance: func(ctx context.Context) (AdvanceOutcome, error) {
			ok, err := p.HasNext(ctx)
			if err != nil {
				return Exhausted, err
			}
			if !ok {
				return Exhausted, nil
			}
			if err := p.Next(ctx); err != nil {
				return Exhausted, err
			}
			return Advanced, nil
		},
		Ready: p.Ready,
	}, StopOnAbsence)
}

// InfiniteSteps drive image collection on a scrolling grid
type InfiniteSteps struct {
	Extract func(ctx context.Context) ([]string, error)
	// Scroll moves the viewport by the fixed increment
	Scroll func(ctx context.Context) error
	Ready  ReadyFunc
}

// InfiniteScroll extracts and scrolls until a pass adds no new unique item.
// Growth of the collected set is the stop signal, not page height.
func (c *Controller) InfiniteScroll(ctx context.Context, s InfiniteSteps) *collector.Set {
	return c.Run(ctx, Steps{
		Extract: s.Extract,
		Advance: func(ctx context.Context) (AdvanceOutcome, error) {
			if err := s.Scroll(ctx); err != nil {
				return Exhausted, err
			}
			return Advanced, nil
		},
		Ready: s.Ready,
	}, StopOnStableCount)
}

func (c *Controller) log() logger.Logger {
	if c.Logger == nil {
		return logger.NewNopLogger()
	}
	return c.Logger
}
