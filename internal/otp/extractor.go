// Package otp retrieves one-time passcodes from a disposable mailbox.
package otp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
)

const (
	// excerptLen is how much of a non-matching message is logged.
	excerptLen = 600
	// waitGrace bounds a wait-for-message call that ignores its own timeout.
	waitGrace = 2 * time.Second
)

// Extractor polls a mailbox through whatever retrieval capabilities its client
// offers and pulls a numeric code out of the first message that carries one.
type Extractor struct {
	caps     mailbox.CapabilitySet
	allowed  mailbox.CapabilitySet
	waiter   mailbox.Waiter
	lister   mailbox.Lister
	getter   mailbox.Getter
	patterns []*regexp.Regexp
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithPatterns replaces the default pattern list.
func WithPatterns(p []*regexp.Regexp) Option {
	return func(e *Extractor) {
		if len(p) > 0 {
			e.patterns = p
		}
	}
}

// WithCapabilities restricts retrieval to the given capabilities. An empty set
// leaves every advertised capability in use.
func WithCapabilities(set mailbox.CapabilitySet) Option {
	return func(e *Extractor) { e.allowed = set }
}

// WithMetrics records fetch and wait metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(e *Extractor) {
		e.now = now
		e.sleep = sleep
	}
}

// NewExtractor queries the client's capabilities once and keeps the typed
// accessors for those it both advertises and implements.
func NewExtractor(client mailbox.Client, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		patterns: defaultCompiled,
		logger:   logger.Named("otp"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}

	if client == nil {
		return e
	}
	advertised := client.Capabilities()
	if !e.allowed.Empty() {
		advertised &= e.allowed
	}
	if advertised.Has(mailbox.CapWaitForMessage) {
		e.waiter, _ = client.(mailbox.Waiter)
	}
	if advertised.Has(mailbox.CapListMessages) {
		e.lister, _ = client.(mailbox.Lister)
	}
	if advertised.Has(mailbox.CapGetMessage) {
		e.getter, _ = client.(mailbox.Getter)
	}
	var usable []mailbox.Capability
	if e.waiter != nil {
		usable = append(usable, mailbox.CapWaitForMessage)
	}
	if e.lister != nil {
		usable = append(usable, mailbox.CapListMessages)
	}
	if e.getter != nil {
		usable = append(usable, mailbox.CapGetMessage)
	}
	e.caps = mailbox.NewCapabilitySet(usable...)
	if e.caps != advertised {
		e.logger.Warn("Mail client advertises capabilities it does not implement",
			zap.Stringer("advertised", advertised), zap.Stringer("usable", e.caps))
	}
	return e
}

// Capabilities returns the retrieval capabilities in use.
func (e *Extractor) Capabilities() mailbox.CapabilitySet { return e.caps }

// Extract polls until timeout elapses. It returns the code and true, or "" and
// false when no message carried a code in time. A non-positive timeout returns
// immediately.
func (e *Extractor) Extract(ctx context.Context, h mailbox.Handle, timeout, pollInterval time.Duration) (string, bool) {
	if timeout <= 0 {
		return "", false
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	start := e.now()
	deadline := start.Add(timeout)
	log := e.logger.With(zap.String("mailbox", h.EmailAddress))
	log.Info("Waiting for OTP", zap.Duration("timeout", timeout), zap.Stringer("capabilities", e.caps))

	for iteration := 1; e.now().Before(deadline); iteration++ {
		if ctx.Err() != nil {
			break
		}
		if msg, ok := e.fetch(ctx, h, pollInterval); ok {
			text := mailbox.Normalize(msg)
			if code, found := Match(e.patterns, text); found {
				log.Info("OTP found", zap.Int("iteration", iteration), zap.Duration("elapsed", e.now().Sub(start)))
				e.metrics.OTPWait(true, e.now().Sub(start))
				return code, true
			}
			log.Debug("Message has no recognizable code", zap.String("excerpt", excerpt(text, excerptLen)))
		}

		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			break
		}
		if err := e.sleep(ctx, minDuration(pollInterval, remaining)); err != nil {
			break
		}
	}

	log.Warn("No OTP before timeout", zap.Duration("timeout", timeout))
	e.metrics.OTPWait(false, e.now().Sub(start))
	return "", false
}

// fetch runs one pass of the capability cascade. Every failure is swallowed.
func (e *Extractor) fetch(ctx context.Context, h mailbox.Handle, pollInterval time.Duration) (mailbox.Message, bool) {
	if e.waiter != nil {
		for _, ref := range h.Candidates() {
			msg, err := e.wait(ctx, ref, pollInterval)
			if err == nil && msg.IsEmpty() {
				err = mailbox.ErrNoMessage
			}
			e.record(mailbox.CapWaitForMessage, err)
			if err == nil {
				return msg, true
			}
		}
	}

	if e.lister != nil && h.ID != "" {
		var msgs []mailbox.Message
		err := guard(func() (err error) {
			msgs, err = e.lister.ListMessages(ctx, h.ID)
			return err
		})
		var latest mailbox.Message
		if err == nil {
			var ok bool
			if latest, ok = mailbox.Latest(msgs); !ok {
				err = mailbox.ErrNoMessage
			}
		}
		e.record(mailbox.CapListMessages, err)
		if err == nil {
			return latest, true
		}
	}

	if e.getter != nil && h.ID != "" {
		var msg mailbox.Message
		err := guard(func() (err error) {
			msg, err = e.getter.GetMessage(ctx, h.ID)
			return err
		})
		if err == nil && msg.IsEmpty() {
			err = mailbox.ErrNoMessage
		}
		e.record(mailbox.CapGetMessage, err)
		if err == nil {
			return msg, true
		}
	}

	return mailbox.Latest(h.Messages)
}

// wait calls the Waiter bounded by pollInterval, retrying once without the
// timeout argument when the client rejects it.
func (e *Extractor) wait(ctx context.Context, ref string, pollInterval time.Duration) (mailbox.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, pollInterval+waitGrace)
	defer cancel()

	var msg mailbox.Message
	err := guard(func() (err error) {
		msg, err = e.waiter.WaitForMessage(callCtx, ref, pollInterval)
		return err
	})
	if errors.Is(err, mailbox.ErrUnsupportedParameter) {
		err = guard(func() (err error) {
			msg, err = e.waiter.WaitForMessage(callCtx, ref, 0)
			return err
		})
	}
	return msg, err
}

func (e *Extractor) record(c mailbox.Capability, err error) {
	if err != nil && !errors.Is(err, mailbox.ErrNoMessage) {
		e.logger.Debug("Retrieval capability failed", zap.Stringer("capability", c), zap.Error(err))
	}
	e.metrics.Fetch(c.String(), err == nil)
}

// guard turns a panic in third-party client code into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mail client panicked: %v", r)
		}
	}()
	return fn()
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

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
