// Package form commits values into browser form fields and reports how each
// commit went as an Outcome instead of an error.
package form

import (
	"context"
	"errors"
	"time"
)

// ErrPageClosed is returned by a Page whose target has gone away.
var ErrPageClosed = errors.New("page closed")

// Key is a keystroke or chord a Page can send to an element.
type Key int

const (
	KeyEnter Key = iota
	KeyTab
	KeyBackspace
	KeyDelete
	// KeySelectAll is Ctrl+A.
	KeySelectAll
)

func (k Key) String() string {
	switch k {
	case KeyEnter:
		return "Enter"
	case KeyTab:
		return "Tab"
	case KeyBackspace:
		return "Backspace"
	case KeyDelete:
		return "Delete"
	case KeySelectAll:
		return "Ctrl+A"
	default:
		return "Unknown"
	}
}

// Page is the browser surface the committer works against. Every method takes an
// XPath locator and re-resolves it; implementations never hand out element handles.
type Page interface {
	WaitClickable(ctx context.Context, locator string, timeout time.Duration) error
	WaitPresent(ctx context.Context, locator string, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, locator string) error
	Click(ctx context.Context, locator string) error
	// ScriptClick dispatches the click from page script, bypassing overlays.
	ScriptClick(ctx context.Context, locator string) error
	Clear(ctx context.Context, locator string) error
	Type(ctx context.Context, locator, text string) error
	PressKeys(ctx context.Context, locator string, keys ...Key) error
	Value(ctx context.Context, locator string) (string, error)
	// ResetValue sets the value to "" from script.
	ResetValue(ctx context.Context, locator string) error
	// InjectValue removes readonly, focuses, sets the value, fires input and
	// change, then blurs.
	InjectValue(ctx context.Context, locator, value string) error
	// DispatchCommit fires input and change without touching the value.
	DispatchCommit(ctx context.Context, locator string) error
	// FindVisible returns one indexed locator per visible match, "(locator)[n]".
	FindVisible(ctx context.Context, locator string) ([]string, error)
}

// Field is a form input addressed by candidate locators tried in order.
type Field struct {
	Name     string
	Locators []string
	Value    string
}

// Outcome is the result of one committer operation.
type Outcome int

const (
	// Committed means the value was written (and, for dates, verified).
	Committed Outcome = iota
	// SoftFailure means every locator and attempt was exhausted.
	SoftFailure
	// HardFailure means the context was cancelled or the page went away.
	HardFailure
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case SoftFailure:
		return "soft_failure"
	case HardFailure:
		return "hard_failure"
	default:
		return "unknown"
	}
}
