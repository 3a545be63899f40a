package otp

import (
	"context"
	"time"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
)

// ProbeResult is one capability's view of a mailbox.
type ProbeResult struct {
	Capability mailbox.Capability
	Text       string
	Code       string
	Found      bool
	Err        error
}

// Probe queries every usable capability once, independently of the others, and
// reports what each one returned. It is a diagnostic for provider integrations.
func (e *Extractor) Probe(ctx context.Context, h mailbox.Handle, pollInterval time.Duration) []ProbeResult {
	var out []ProbeResult

	if e.waiter != nil {
		res := ProbeResult{Capability: mailbox.CapWaitForMessage, Err: mailbox.ErrNoMessage}
		for _, ref := range h.Candidates() {
			msg, err := e.wait(ctx, ref, pollInterval)
			if err == nil && msg.IsEmpty() {
				err = mailbox.ErrNoMessage
			}
			if err == nil {
				res = e.describe(mailbox.CapWaitForMessage, msg)
				break
			}
			res.Err = err
		}
		out = append(out, res)
	}

	if e.lister != nil {
		var msgs []mailbox.Message
		err := guard(func() (err error) {
			msgs, err = e.lister.ListMessages(ctx, h.ID)
			return err
		})
		latest, ok := mailbox.Latest(msgs)
		switch {
		case err != nil:
			out = append(out, ProbeResult{Capability: mailbox.CapListMessages, Err: err})
		case !ok:
			out = append(out, ProbeResult{Capability: mailbox.CapListMessages, Err: mailbox.ErrNoMessage})
		default:
			out = append(out, e.describe(mailbox.CapListMessages, latest))
		}
	}

	if e.getter != nil {
		var msg mailbox.Message
		err := guard(func() (err error) {
			msg, err = e.getter.GetMessage(ctx, h.ID)
			return err
		})
		if err == nil && msg.IsEmpty() {
			err = mailbox.ErrNoMessage
		}
		if err != nil {
			out = append(out, ProbeResult{Capability: mailbox.CapGetMessage, Err: err})
		} else {
			out = append(out, e.describe(mailbox.CapGetMessage, msg))
		}
	}
	return out
}

func (e *Extractor) describe(c mailbox.Capability, msg mailbox.Message) ProbeResult {
	text := mailbox.Normalize(msg)
	code, ok := Match(e.patterns, text)
	return ProbeResult{Capability: c, Text: text, Code: code, Found: ok}
}
