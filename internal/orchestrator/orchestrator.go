// Package orchestrator walks one sign-up attempt at a time through a browser page:
// provision a mailbox, request and enter the OTP, fill the profile steps, submit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/form"
	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/metrics"
	"github.com/xkilldash9x/enroll-cli/internal/profile"
)

// Page is a browser tab scoped to one attempt.
type Page interface {
	form.Page
	Navigate(ctx context.Context, url string) error
	// DismissDialog reports whether a native dialog was dismissed within timeout.
	DismissDialog(ctx context.Context, timeout time.Duration) (bool, error)
	Close() error
}

// PageFactory opens a fresh page per attempt.
type PageFactory interface {
	NewPage(ctx context.Context) (Page, error)
}

// PageFactoryFunc adapts a function to PageFactory.
type PageFactoryFunc func(ctx context.Context) (Page, error)

func (f PageFactoryFunc) NewPage(ctx context.Context) (Page, error) { return f(ctx) }

// CodeSource finds an OTP in a mailbox within timeout.
type CodeSource interface {
	Extract(ctx context.Context, h mailbox.Handle, timeout, pollInterval time.Duration) (string, bool)
}

// CodeSourceFactory builds a CodeSource for the client a mailbox was provisioned with.
type CodeSourceFactory func(client mailbox.Client) CodeSource

// ProfileSource draws one identity per attempt.
type ProfileSource interface {
	Pick() profile.Record
}

// Committer is the subset of form.Committer the flow uses.
type Committer interface {
	CommitField(ctx context.Context, f form.Field) form.Outcome
	CommitDateField(ctx context.Context, f form.Field) form.Outcome
	Click(ctx context.Context, locators []string, name string) form.Outcome
	WaitPresent(ctx context.Context, locators []string, timeout time.Duration) bool
}

// Status is how an attempt ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Result describes one finished attempt.
type Result struct {
	ID     string
	Email  string
	Status Status
	// Err is set when Status is StatusAbandoned.
	Err      error
	Duration time.Duration
}

// Orchestrator runs attempts sequentially. It is not safe for concurrent use; the
// engine gives every instance its own.
type Orchestrator struct {
	flow     config.FlowConfig
	otp      config.OTPConfig
	formCfg  config.FormConfig
	pages    PageFactory
	prov     mailbox.Provisioner
	codes    CodeSourceFactory
	profiles ProfileSource
	logger   *zap.Logger
	metrics  *metrics.Metrics

	newCommitter func(form.Page) Committer
	sleep        func(context.Context, time.Duration) error
	newID        func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSleep replaces waits for backoff and the resend delay.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithCommitterFactory replaces how a committer is bound to each page.
func WithCommitterFactory(fn func(form.Page) Committer) Option {
	return func(o *Orchestrator) { o.newCommitter = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// New wires an orchestrator. The flow's target URL is required.
func New(
	cfg config.Interface,
	pages PageFactory,
	prov mailbox.Provisioner,
	codes CodeSourceFactory,
	profiles ProfileSource,
	logger *zap.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if cfg == nil || pages == nil || prov == nil || codes == nil || profiles == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if err := cfg.Flow().RequireTarget(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		flow:     cfg.Flow(),
		otp:      cfg.OTP(),
		formCfg:  cfg.Form(),
		pages:    pages,
		prov:     prov,
		codes:    codes,
		profiles: profiles,
		logger:   logger.Named("orchestrator"),
		sleep:    sleepCtx,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newCommitter == nil {
		o.newCommitter = func(p form.Page) Committer {
			return form.NewCommitter(p, o.formCfg, logger, form.WithMetrics(o.metrics), form.WithSleep(o.sleep))
		}
	}
	return o, nil
}

// Run performs attempts until flow.max_attempts have finished (0 means no limit)
// or ctx is done. Attempt failures are logged, never returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	limit := o.flow.MaxAttempts
	o.logger.Info("Starting attempts", zap.Int("max_attempts", limit), zap.String("target", o.flow.TargetURL))

	finished, completed := 0, 0
	for limit == 0 || finished < limit {
		if ctx.Err() != nil {
			break
		}
		res, err := o.RunAttempt(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if isRetryable(CodeOf(err)) {
				o.logger.Warn("Attempt could not start, backing off", zap.Error(err), zap.Duration("backoff", o.flow.ProvisionBackoff))
				if o.sleep(ctx, o.flow.ProvisionBackoff) != nil {
					break
				}
				continue
			}
			o.logger.Error("Attempt failed", zap.Error(err))
		}
		finished++
		if res.Status == StatusCompleted {
			completed++
		}
	}

	o.logger.Info("Attempts finished", zap.Int("finished", finished), zap.Int("completed", completed))
	return nil
}

// RunAttempt runs one attempt on a fresh page with a fresh mailbox. Errors are
// returned only when the attempt could not start; everything after that is
// reported in the Result.
func (o *Orchestrator) RunAttempt(ctx context.Context) (Result, error) {
	start := time.Now()
	id := o.newID()
	log := o.logger.With(zap.String("attempt_id", id))

	page, err := o.pages.NewPage(ctx)
	if err != nil {
		return Result{ID: id}, &AttemptError{Code: ErrCodePageUnavailable, Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("Closing page failed", zap.Error(err))
		}
	}()

	prov, err := o.prov.Provision(ctx)
	o.metrics.Provision(err == nil)
	if err != nil {
		return Result{ID: id}, &AttemptError{Code: ErrCodeProvisionFailed, Err: err}
	}
	log = log.With(zap.String("email", prov.Address))
	log.Info("Mailbox provisioned")

	a := &attempt{
		o:         o,
		page:      page,
		committer: o.newCommitter(page),
		codes:     o.codes(prov.Client),
		handle:    prov.Handle,
		email:     prov.Address,
		log:       log,
	}
	res := Result{ID: id, Email: prov.Address, Status: StatusCompleted}
	if err := a.run(ctx); err != nil {
		res.Status = StatusAbandoned
		res.Err = err
		log.Warn("Attempt abandoned", zap.Error(err), zap.String("error_code", string(CodeOf(err))))
	} else {
		log.Info("Attempt completed")
	}
	res.Duration = time.Since(start)
	o.metrics.Attempt(string(res.Status))
	return res, nil
}

// attempt holds the resources scoped to one attempt.
type attempt struct {
	o         *Orchestrator
	page      Page
	committer Committer
	codes     CodeSource
	handle    mailbox.Handle
	email     string
	log       *zap.Logger
}

// decide records the outcome of step and turns an abandon into an error.
func (a *attempt) decide(ctx context.Context, step Step, outcome form.Outcome) (Decision, error) {
	d := Decide(step, outcome)
	a.o.metrics.Step(string(step), outcome.String())
	a.log.Debug("Step finished", zap.String("step", string(step)), zap.Stringer("outcome", outcome), zap.Stringer("decision", d))
	if d != Abandon {
		return d, nil
	}
	code := codeFor(step, outcome)
	if outcome == form.HardFailure && ctx.Err() == nil {
		code = ErrCodePageUnavailable
	}
	return d, &AttemptError{Code: code, Step: step, Err: ctx.Err()}
}

func (a *attempt) proceed(ctx context.Context, step Step, outcome form.Outcome) error {
	_, err := a.decide(ctx, step, outcome)
	return err
}

func (a *attempt) run(ctx context.Context) error {
	flow, otpCfg := a.o.flow, a.o.otp

	if err := a.page.Navigate(ctx, flow.TargetURL); err != nil {
		return &AttemptError{Code: ErrCodeNavigationError, Err: err}
	}

	if len(flow.StartButton) > 0 {
		if err := a.proceed(ctx, StepStart, a.committer.Click(ctx, flow.StartButton, "start")); err != nil {
			return err
		}
	}

	email := form.Field{Name: "Email", Locators: flow.EmailField, Value: a.email}
	if err := a.proceed(ctx, StepEmail, a.committer.CommitField(ctx, email)); err != nil {
		return err
	}
	if err := a.proceed(ctx, StepSendOTP, a.committer.Click(ctx, flow.SendOTPButton, "send otp")); err != nil {
		return err
	}
	if err := a.dismissDialog(ctx); err != nil {
		return err
	}

	record := a.o.profiles.Pick()

	code, ok := a.codes.Extract(ctx, a.handle, otpCfg.FirstWindow, otpCfg.PollInterval)
	if !ok && ctx.Err() == nil {
		a.log.Info("No OTP in first window, extending", zap.Duration("window", otpCfg.SecondWindow))
		code, ok = a.codes.Extract(ctx, a.handle, otpCfg.SecondWindow, otpCfg.PollInterval)
	}
	if err := a.submitCode(ctx, code, ok); err != nil {
		return err
	}

	verified := a.committer.WaitPresent(ctx, flow.PostVerifyMarker, flow.PostVerifyTimeout)
	d, err := a.decide(ctx, StepPostVerify, presence(verified))
	if err != nil {
		return err
	}
	if d == Resend {
		if err := a.resend(ctx); err != nil {
			return err
		}
	}

	return a.fillProfile(ctx, record)
}

// submitCode enters a retrieved code and clicks verify.
func (a *attempt) submitCode(ctx context.Context, code string, found bool) error {
	outcome := presence(found)
	if ctx.Err() != nil {
		outcome = form.HardFailure
	}
	if err := a.proceed(ctx, StepOTP, outcome); err != nil {
		return err
	}
	otp := form.Field{Name: "OTP", Locators: a.o.flow.OTPField, Value: code}
	if err := a.proceed(ctx, StepCommitOTP, a.committer.CommitField(ctx, otp)); err != nil {
		return err
	}
	return a.proceed(ctx, StepVerify, a.committer.Click(ctx, a.o.flow.VerifyButton, "verify"))
}

func (a *attempt) dismissDialog(ctx context.Context) error {
	dismissed, err := a.page.DismissDialog(ctx, a.o.formCfg.DialogTimeout)
	outcome := presence(dismissed)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, form.ErrPageClosed) {
			outcome = form.HardFailure
		} else {
			a.log.Debug("Dialog check failed", zap.Error(err))
		}
	}
	if dismissed {
		a.log.Info("Dialog dismissed after requesting OTP")
	}
	return a.proceed(ctx, StepDialog, outcome)
}

// resend waits out the provider's cooldown, requests a new code once and verifies it.
func (a *attempt) resend(ctx context.Context) error {
	a.log.Info("Verification marker absent, resending OTP", zap.Duration("delay", a.o.flow.ResendDelay))
	if err := a.o.sleep(ctx, a.o.flow.ResendDelay); err != nil {
		return &AttemptError{Code: ErrCodeCancelled, Step: StepResend, Err: err}
	}
	if err := a.proceed(ctx, StepResend, a.committer.Click(ctx, a.o.flow.ResendButton, "resend otp")); err != nil {
		return err
	}
	code, ok := a.codes.Extract(ctx, a.handle, a.o.otp.ResendWindow, a.o.otp.PollInterval)
	return a.submitCode(ctx, code, ok)
}

// fillProfile runs the configured steps with profile placeholders substituted.
func (a *attempt) fillProfile(ctx context.Context, record profile.Record) error {
	r := record.Replacer(a.email)
	for _, s := range a.o.flow.Steps {
		locators := make([]string, len(s.Locators))
		for i, l := range s.Locators {
			locators[i] = r.Replace(l)
		}
		field := form.Field{Name: s.Name, Locators: locators, Value: r.Replace(s.Value)}

		var outcome form.Outcome
		switch strings.ToLower(s.Action) {
		case "date":
			outcome = a.committer.CommitDateField(ctx, field)
		case "click":
			outcome = a.committer.Click(ctx, locators, s.Name)
		default:
			outcome = a.committer.CommitField(ctx, field)
		}

		step := StepProfile
		if s.Required {
			step = StepRequired
		}
		if err := a.proceed(ctx, step, outcome); err != nil {
			var ae *AttemptError
			if errors.As(err, &ae) && ae.Err == nil {
				ae.Err = fmt.Errorf("step %q: %s", s.Name, outcome)
			}
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
