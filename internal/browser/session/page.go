package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/form"
)

const (
	// actionTimeout bounds a single DOM action that has no timeout of its own.
	actionTimeout = 10 * time.Second
	dialogBuffer  = 4
)

var errNoElement = errors.New("no element matches locator")

// Page is one browser tab. It implements form.Page.
type Page struct {
	ctx          context.Context
	cancel       context.CancelFunc
	logger       *zap.Logger
	navTimeout   time.Duration
	postLoadWait time.Duration

	dialogs   chan string
	closeOnce sync.Once
}

var _ form.Page = (*Page)(nil)

func newPage(tabCtx context.Context, cancel context.CancelFunc, navTimeout, postLoadWait time.Duration, logger *zap.Logger) *Page {
	p := &Page{
		ctx:          tabCtx,
		cancel:       cancel,
		logger:       logger,
		navTimeout:   navTimeout,
		postLoadWait: postLoadWait,
		dialogs:      make(chan string, dialogBuffer),
	}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if ev, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			// The listener must not block; accepting is a CDP round trip.
			go p.acceptDialog(ev.Type.String(), ev.Message)
		}
	})
	return p
}

func (p *Page) acceptDialog(kind, message string) {
	if err := chromedp.Run(p.ctx, page.HandleJavaScriptDialog(true)); err != nil {
		p.logger.Debug("Could not accept dialog", zap.String("type", kind), zap.Error(err))
		return
	}
	p.logger.Info("Native dialog accepted", zap.String("type", kind), zap.String("message", message))
	select {
	case p.dialogs <- message:
	default:
	}
}

// run executes actions on the tab bounded by ctx and timeout. A dead tab maps to
// form.ErrPageClosed.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return form.ErrPageClosed
	}
	opCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		opCtx, cancelTimeout = context.WithTimeout(opCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(opCtx, actions...)
	switch {
	case err == nil:
		return nil
	case p.ctx.Err() != nil:
		return fmt.Errorf("%w: %v", form.ErrPageClosed, err)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("timed out after %v: %w", timeout, err)
	default:
		return err
	}
}

func evalOpts(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
}

// evalBool runs a script returning true when it found and acted on the element.
func (p *Page) evalBool(ctx context.Context, locator, script string) error {
	var ok bool
	if err := p.run(ctx, actionTimeout, chromedp.Evaluate(script, &ok, evalOpts)); err != nil {
		return fmt.Errorf("script on '%s' failed: %w", locator, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", errNoElement, locator)
	}
	return nil
}

// Navigate loads url and waits out the configured settle period.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Info("Navigating", zap.String("url", url))
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to '%s': %w", url, err)
	}
	if p.postLoadWait > 0 {
		return p.run(ctx, 0, chromedp.Sleep(p.postLoadWait))
	}
	return nil
}

// DismissDialog reports whether a native dialog was accepted within timeout.
// Dialogs are accepted as they open; this only waits for the notification.
func (p *Page) DismissDialog(ctx context.Context, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.dialogs:
		return true, nil
	case <-t.C:
		return false, nil
	case <-p.ctx.Done():
		return false, form.ErrPageClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing tab")
		p.cancel()
	})
	return nil
}

func (p *Page) WaitClickable(ctx context.Context, locator string, timeout time.Duration) error {
	return p.run(ctx, timeout,
		chromedp.WaitVisible(locator, chromedp.BySearch),
		chromedp.WaitEnabled(locator, chromedp.BySearch),
	)
}

func (p *Page) WaitPresent(ctx context.Context, locator string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(locator, chromedp.BySearch))
}

func (p *Page) ScrollIntoView(ctx context.Context, locator string) error {
	return p.run(ctx, actionTimeout, chromedp.ScrollIntoView(locator, chromedp.BySearch))
}

func (p *Page) Click(ctx context.Context, locator string) error {
	return p.run(ctx, actionTimeout, chromedp.Click(locator, chromedp.BySearch, chromedp.NodeVisible))
}

func (p *Page) ScriptClick(ctx context.Context, locator string) error {
	return p.evalBool(ctx, locator, scriptClick(locator))
}

func (p *Page) Clear(ctx context.Context, locator string) error {
	return p.run(ctx, actionTimeout, chromedp.Clear(locator, chromedp.BySearch))
}

func (p *Page) Type(ctx context.Context, locator, text string) error {
	return p.run(ctx, actionTimeout, chromedp.SendKeys(locator, text, chromedp.BySearch))
}

// PressKeys focuses the element and sends each key in order.
func (p *Page) PressKeys(ctx context.Context, locator string, keys ...form.Key) error {
	actions := make([]chromedp.Action, 0, len(keys)+1)
	actions = append(actions, chromedp.Focus(locator, chromedp.BySearch))
	for _, k := range keys {
		actions = append(actions, keyAction(k))
	}
	return p.run(ctx, actionTimeout, actions...)
}

func keyAction(k form.Key) chromedp.Action {
	switch k {
	case form.KeyEnter:
		return chromedp.KeyEvent(kb.Enter)
	case form.KeyTab:
		return chromedp.KeyEvent(kb.Tab)
	case form.KeyBackspace:
		return chromedp.KeyEvent(kb.Backspace)
	case form.KeyDelete:
		return chromedp.KeyEvent(kb.Delete)
	case form.KeySelectAll:
		return chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl))
	default:
		return chromedp.ActionFunc(func(context.Context) error {
			return fmt.Errorf("unsupported key %v", k)
		})
	}
}

func (p *Page) Value(ctx context.Context, locator string) (string, error) {
	var res *string
	if err := p.run(ctx, actionTimeout, chromedp.Evaluate(scriptValue(locator), &res, evalOpts)); err != nil {
		return "", fmt.Errorf("reading value of '%s' failed: %w", locator, err)
	}
	if res == nil {
		return "", fmt.Errorf("%w: %s", errNoElement, locator)
	}
	return *res, nil
}

func (p *Page) ResetValue(ctx context.Context, locator string) error {
	return p.evalBool(ctx, locator, scriptResetValue(locator))
}

func (p *Page) InjectValue(ctx context.Context, locator, value string) error {
	return p.evalBool(ctx, locator, scriptInjectValue(locator, value))
}

func (p *Page) DispatchCommit(ctx context.Context, locator string) error {
	return p.evalBool(ctx, locator, scriptDispatchCommit(locator))
}

func (p *Page) FindVisible(ctx context.Context, locator string) ([]string, error) {
	var idx []int
	if err := p.run(ctx, actionTimeout, chromedp.Evaluate(scriptVisibleIndexes(locator), &idx, evalOpts)); err != nil {
		return nil, fmt.Errorf("searching '%s' failed: %w", locator, err)
	}
	out := make([]string, 0, len(idx))
	for _, n := range idx {
		out = append(out, indexedLocator(locator, n))
	}
	return out, nil
}
