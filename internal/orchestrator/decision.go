package orchestrator

import (
	"github.com/xkilldash9x/enroll-cli/internal/form"
)

// Step names a stage of one attempt.
type Step string

const (
	StepStart      Step = "start"
	StepEmail      Step = "email"
	StepSendOTP    Step = "send_otp"
	StepDialog     Step = "dialog"
	StepOTP        Step = "otp"
	StepCommitOTP  Step = "commit_otp"
	StepVerify     Step = "verify"
	StepPostVerify Step = "post_verify"
	StepResend     Step = "resend"
	// StepProfile is a configured step whose failure is tolerated.
	StepProfile Step = "profile"
	// StepRequired is a configured step marked required, such as submit.
	StepRequired Step = "required"
)

// Decision is what the orchestrator does after a step.
type Decision int

const (
	Proceed Decision = iota
	Resend
	Abandon
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Resend:
		return "resend"
	default:
		return "abandon"
	}
}

// decisions maps a step's outcome to what happens next. Every hard failure
// abandons. Steps not listed abandon on anything but a commit.
var decisions = map[Step]map[form.Outcome]Decision{
	StepStart:      {form.Committed: Proceed, form.SoftFailure: Abandon},
	StepEmail:      {form.Committed: Proceed, form.SoftFailure: Proceed},
	StepSendOTP:    {form.Committed: Proceed, form.SoftFailure: Abandon},
	StepDialog:     {form.Committed: Proceed, form.SoftFailure: Proceed},
	StepOTP:        {form.Committed: Proceed, form.SoftFailure: Abandon},
	StepCommitOTP:  {form.Committed: Proceed, form.SoftFailure: Proceed},
	StepVerify:     {form.Committed: Proceed, form.SoftFailure: Abandon},
	StepPostVerify: {form.Committed: Proceed, form.SoftFailure: Resend},
	StepResend:     {form.Committed: Proceed, form.SoftFailure: Abandon},
	StepProfile:    {form.Committed: Proceed, form.SoftFailure: Proceed},
	StepRequired:   {form.Committed: Proceed, form.SoftFailure: Abandon},
}

// Decide looks up the decision for step and outcome.
func Decide(step Step, outcome form.Outcome) Decision {
	if d, ok := decisions[step][outcome]; ok {
		return d
	}
	return Abandon
}

// presence turns a found/absent check into an outcome.
func presence(found bool) form.Outcome {
	if found {
		return form.Committed
	}
	return form.SoftFailure
}

// codeFor picks the error code recorded when step abandons an attempt.
func codeFor(step Step, outcome form.Outcome) ErrorCode {
	if outcome == form.HardFailure {
		return ErrCodeCancelled
	}
	switch step {
	case StepOTP:
		return ErrCodeOTPNotReceived
	case StepVerify, StepPostVerify, StepResend:
		return ErrCodeVerificationFailed
	default:
		return ErrCodeStepFailed
	}
}
