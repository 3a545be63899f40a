package form

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
)

// Committer writes values into fields of one Page.
type Committer struct {
	page               Page
	attempts           int
	locatorTimeout     time.Duration
	settleDelay        time.Duration
	calendarContainers string
	logger             *zap.Logger
	metrics            *metrics.Metrics
	sleep              func(context.Context, time.Duration) error
}

// Option customizes a Committer.
type Option func(*Committer)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Committer) { c.metrics = m }
}

// WithSleep replaces the pause between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Committer) { c.sleep = sleep }
}

// NewCommitter binds a committer to page. Zero config values fall back to defaults.
func NewCommitter(page Page, cfg config.FormConfig, logger *zap.Logger, opts ...Option) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Committer{
		page:               page,
		attempts:           cfg.Attempts,
		locatorTimeout:     cfg.LocatorTimeout,
		settleDelay:        cfg.SettleDelay,
		calendarContainers: cfg.CalendarContainers,
		logger:             logger.Named("form"),
		sleep:              sleepCtx,
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	if c.locatorTimeout <= 0 {
		c.locatorTimeout = 6 * time.Second
	}
	if c.calendarContainers == "" {
		c.calendarContainers = config.DefaultCalendarContainers
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CommitField types f.Value into the first locator that accepts input.
func (c *Committer) CommitField(ctx context.Context, f Field) Outcome {
	log := c.logger.With(zap.String("field", f.Name))
	for attempt := 1; attempt <= c.attempts; attempt++ {
		for _, loc := range f.Locators {
			err := c.typeInto(ctx, loc, f.Value)
			if err == nil {
				log.Debug("Field committed", zap.String("locator", loc), zap.Int("attempt", attempt))
				c.metrics.FieldCommit("typed")
				return Committed
			}
			if fatal(ctx, err) {
				log.Warn("Field commit aborted", zap.Error(err))
				return HardFailure
			}
			log.Debug("Locator rejected input", zap.String("locator", loc), zap.Error(err))
		}
		if err := c.pause(ctx); err != nil {
			return HardFailure
		}
	}
	log.Warn("Could not commit field", zap.Int("attempts", c.attempts), zap.Int("locators", len(f.Locators)))
	return SoftFailure
}

func (c *Committer) typeInto(ctx context.Context, loc, value string) error {
	if err := c.page.WaitClickable(ctx, loc, c.locatorTimeout); err != nil {
		return err
	}
	if err := c.page.ScrollIntoView(ctx, loc); err != nil && fatal(ctx, err) {
		return err
	}
	// Focus and clear are best effort; only a failed type rejects the locator.
	if err := c.page.Click(ctx, loc); err != nil && fatal(ctx, err) {
		return err
	}
	if err := c.page.Clear(ctx, loc); err != nil && fatal(ctx, err) {
		return err
	}
	return c.page.Type(ctx, loc, value)
}

// Click clicks the first clickable locator, falling back to a scripted click
// when the natural one is intercepted.
func (c *Committer) Click(ctx context.Context, locators []string, name string) Outcome {
	log := c.logger.With(zap.String("target", name))
	for attempt := 1; attempt <= c.attempts; attempt++ {
		for _, loc := range locators {
			if err := c.page.WaitClickable(ctx, loc, c.locatorTimeout); err != nil {
				if fatal(ctx, err) {
					return HardFailure
				}
				continue
			}
			_ = c.page.ScrollIntoView(ctx, loc)
			err := c.page.Click(ctx, loc)
			if err != nil && !fatal(ctx, err) {
				log.Debug("Natural click failed, using script", zap.String("locator", loc), zap.Error(err))
				err = c.page.ScriptClick(ctx, loc)
			}
			if err == nil {
				log.Debug("Clicked", zap.String("locator", loc))
				return Committed
			}
			if fatal(ctx, err) {
				return HardFailure
			}
		}
		if err := c.pause(ctx); err != nil {
			return HardFailure
		}
	}
	log.Warn("Could not click", zap.Strings("locators", locators))
	return SoftFailure
}

// WaitPresent reports whether any locator appears within timeout. The budget is
// split evenly across locators.
func (c *Committer) WaitPresent(ctx context.Context, locators []string, timeout time.Duration) bool {
	if len(locators) == 0 || timeout <= 0 {
		return false
	}
	per := timeout / time.Duration(len(locators))
	for _, loc := range locators {
		if err := c.page.WaitPresent(ctx, loc, per); err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (c *Committer) pause(ctx context.Context) error {
	if c.settleDelay <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, c.settleDelay)
}

// fatal reports errors that end the attempt rather than the locator.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrPageClosed) || errors.Is(err, context.Canceled)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
