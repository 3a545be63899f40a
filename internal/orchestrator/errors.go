package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorCode classifies why an attempt ended early.
type ErrorCode string

const (
	ErrCodePageUnavailable    ErrorCode = "PAGE_UNAVAILABLE"
	ErrCodeProvisionFailed    ErrorCode = "PROVISION_FAILED"
	ErrCodeNavigationError    ErrorCode = "NAVIGATION_ERROR"
	ErrCodeStepFailed         ErrorCode = "STEP_FAILED"
	ErrCodeOTPNotReceived     ErrorCode = "OTP_NOT_RECEIVED"
	ErrCodeVerificationFailed ErrorCode = "VERIFICATION_FAILED"
	ErrCodeCancelled          ErrorCode = "CANCELLED"
)

// AttemptError is returned or recorded when an attempt cannot finish.
type AttemptError struct {
	Code ErrorCode
	Step Step
	Err  error
}

func (e *AttemptError) Error() string {
	msg := fmt.Sprintf("attempt failed (%s)", e.Code)
	if e.Step != "" {
		msg += fmt.Sprintf(" at step %s", e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AttemptError) Unwrap() error { return e.Err }

// CodeOf returns the ErrorCode carried by err, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// isRetryable reports failures that happen before an attempt really starts. They
// are retried after a backoff and do not count toward the attempt limit.
func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodePageUnavailable, ErrCodeProvisionFailed:
		return true
	default:
		return false
	}
}
