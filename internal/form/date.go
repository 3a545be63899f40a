package form

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// dateState is a stage of the date commit. Each stage either verifies the value
// and stops, or hands over to the next one.
type dateState int

const (
	stateLocated dateState = iota
	stateCleared
	stateInjectedJS
	stateInjectedTyped
	stateCalendarFallback
	stateExhausted
)

func (s dateState) String() string {
	switch s {
	case stateLocated:
		return "located"
	case stateCleared:
		return "cleared"
	case stateInjectedJS:
		return "injected_js"
	case stateInjectedTyped:
		return "injected_typed"
	case stateCalendarFallback:
		return "calendar_fallback"
	default:
		return "exhausted"
	}
}

const (
	backspaceFlood     = 20
	globalCellWait     = time.Second
	maxDayOfMonth      = 31
	dateSeparatorChars = "/-."
)

// CommitDateField writes a date into a widget that may be readonly, reformat its
// input or only accept a calendar pick. A value that already matches is left alone.
func (c *Committer) CommitDateField(ctx context.Context, f Field) Outcome {
	log := c.logger.With(zap.String("field", f.Name), zap.String("target", f.Value))
	for attempt := 1; attempt <= c.attempts; attempt++ {
		for _, loc := range f.Locators {
			tier, err := c.commitDateAt(ctx, loc, f.Value)
			if err != nil {
				if fatal(ctx, err) {
					log.Warn("Date commit aborted", zap.Error(err))
					return HardFailure
				}
				log.Debug("Date locator unavailable", zap.String("locator", loc), zap.Error(err))
				continue
			}
			if tier != "" {
				log.Debug("Date committed", zap.String("locator", loc), zap.String("tier", tier), zap.Int("attempt", attempt))
				c.metrics.FieldCommit(tier)
				return Committed
			}
		}
		if err := c.pause(ctx); err != nil {
			return HardFailure
		}
	}
	log.Warn("Could not commit date", zap.Int("attempts", c.attempts))
	return SoftFailure
}

// commitDateAt runs the state machine for one locator. It returns the tier name on
// a verified match, "" when every tier failed, or an error when the locator could
// not be used at all.
func (c *Committer) commitDateAt(ctx context.Context, loc, target string) (string, error) {
	if err := c.page.WaitClickable(ctx, loc, c.locatorTimeout); err != nil {
		return "", err
	}

	var closed error
	note := func(err error) {
		if closed == nil && errors.Is(err, ErrPageClosed) {
			closed = err
		}
	}
	verify := func() bool {
		v, err := c.page.Value(ctx, loc)
		note(err)
		return err == nil && strings.TrimSpace(v) == target
	}

	for state := stateLocated; state != stateExhausted; {
		c.logger.Debug("Date state", zap.String("locator", loc), zap.Stringer("state", state))
		switch state {
		case stateLocated:
			note(c.page.ScrollIntoView(ctx, loc))
			if verify() {
				return "present", nil
			}
			state = stateCleared

		case stateCleared:
			note(c.page.Click(ctx, loc))
			note(c.page.Clear(ctx, loc))
			note(c.page.ResetValue(ctx, loc))
			note(c.page.PressKeys(ctx, loc, KeySelectAll, KeyDelete))
			flood := make([]Key, backspaceFlood)
			for i := range flood {
				flood[i] = KeyBackspace
			}
			note(c.page.PressKeys(ctx, loc, flood...))
			state = stateInjectedJS

		case stateInjectedJS:
			err := c.page.InjectValue(ctx, loc, target)
			note(err)
			if err == nil && verify() {
				note(c.page.PressKeys(ctx, loc, KeyEnter, KeyTab))
				note(c.page.DispatchCommit(ctx, loc))
				if verify() {
					return "script", nil
				}
			}
			state = stateInjectedTyped

		case stateInjectedTyped:
			note(c.page.Click(ctx, loc))
			err := c.page.Type(ctx, loc, target)
			note(err)
			if err == nil {
				note(c.page.PressKeys(ctx, loc, KeyEnter, KeyTab))
				note(c.page.DispatchCommit(ctx, loc))
				if verify() {
					return "typed", nil
				}
			}
			state = stateCalendarFallback

		case stateCalendarFallback:
			if c.pickFromCalendar(ctx, loc, target, verify, note) {
				return "calendar", nil
			}
			state = stateExhausted
		}

		if closed != nil {
			return "", closed
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return "", nil
}

// pickFromCalendar opens the widget and clicks the target day inside each visible
// calendar container, then falls back to one page-wide search.
func (c *Committer) pickFromCalendar(ctx context.Context, loc, target string, verify func() bool, note func(error)) bool {
	day, ok := DayOfMonth(target)
	if !ok {
		return false
	}
	note(c.page.Click(ctx, loc))
	if err := c.pause(ctx); err != nil {
		return false
	}

	commit := func() bool {
		if !verify() {
			return false
		}
		note(c.page.PressKeys(ctx, loc, KeyTab))
		note(c.page.DispatchCommit(ctx, loc))
		return true
	}

	containers, err := c.page.FindVisible(ctx, c.calendarContainers)
	note(err)
	yielded := false
	for _, container := range containers {
		for _, cellLoc := range DayCellLocators(container, day) {
			cells, err := c.page.FindVisible(ctx, cellLoc)
			note(err)
			for _, cell := range cells {
				yielded = true
				if c.clickCell(ctx, cell, note) && commit() {
					return true
				}
			}
		}
	}
	if yielded || ctx.Err() != nil {
		return false
	}

	for _, cell := range DayCellLocators("", day) {
		if err := c.page.WaitClickable(ctx, cell, globalCellWait); err != nil {
			note(err)
			continue
		}
		if c.clickCell(ctx, cell, note) && commit() {
			return true
		}
	}
	return false
}

func (c *Committer) clickCell(ctx context.Context, cell string, note func(error)) bool {
	err := c.page.Click(ctx, cell)
	if err != nil {
		note(err)
		err = c.page.ScriptClick(ctx, cell)
		note(err)
	}
	return err == nil
}

// DayOfMonth returns the day from the first component of a dd/mm/yyyy style date.
func DayOfMonth(date string) (int, bool) {
	parts := strings.FieldsFunc(strings.TrimSpace(date), func(r rune) bool {
		return strings.ContainsRune(dateSeparatorChars, r)
	})
	if len(parts) == 0 {
		return 0, false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > maxDayOfMonth {
		return 0, false
	}
	return day, true
}

// DayCellLocators lists the cell shapes a calendar may use for day, scoped under
// container, or page-wide when container is empty.
func DayCellLocators(container string, day int) []string {
	prefix := "//"
	if container != "" {
		prefix = container + "//"
	}
	text := strconv.Itoa(day)
	return []string{
		fmt.Sprintf("%std[normalize-space()='%s']", prefix, text),
		fmt.Sprintf("%sbutton[normalize-space()='%s']", prefix, text),
		fmt.Sprintf("%sdiv[contains(@class,'day') and normalize-space()='%s']", prefix, text),
	}
}
