package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnsupportedParameter is returned by a Waiter that does not accept a timeout argument.
	// Callers retry once with a zero timeout.
	ErrUnsupportedParameter = errors.New("mailbox: unsupported parameter")
	// ErrNoMessage means nothing has arrived yet. It is not a failure.
	ErrNoMessage = errors.New("mailbox: no message yet")
	// ErrProvision wraps every failure of the account-creation call.
	ErrProvision = errors.New("mailbox: provisioning failed")
)

// Capability is one way a client can retrieve messages.
type Capability uint8

const (
	CapWaitForMessage Capability = 1 << iota
	CapListMessages
	CapGetMessage
)

// CascadeOrder is the order in which retrieval capabilities are tried.
var CascadeOrder = []Capability{CapWaitForMessage, CapListMessages, CapGetMessage}

func (c Capability) String() string {
	switch c {
	case CapWaitForMessage:
		return "wait"
	case CapListMessages:
		return "list"
	case CapGetMessage:
		return "get"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// ParseCapability maps "wait", "list" or "get" to a Capability.
func ParseCapability(name string) (Capability, error) {
	for _, c := range CascadeOrder {
		if strings.EqualFold(strings.TrimSpace(name), c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown mailbox capability %q", name)
}

// CapabilitySet is a bit set of Capability values.
type CapabilitySet uint8

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool { return s&CapabilitySet(c) != 0 }

// Empty reports whether no retrieval capability is available.
func (s CapabilitySet) Empty() bool { return s == 0 }

func (s CapabilitySet) String() string {
	var names []string
	for _, c := range CascadeOrder {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Client is a mailbox retrieval client. It advertises which of Waiter, Lister and
// Getter it implements through Capabilities; callers query this once.
type Client interface {
	Capabilities() CapabilitySet
}

// Waiter blocks until the next message arrives or timeout elapses. A zero timeout
// means "use the provider default".
type Waiter interface {
	WaitForMessage(ctx context.Context, ref string, timeout time.Duration) (Message, error)
}

// Lister returns every message in the mailbox, oldest first.
type Lister interface {
	ListMessages(ctx context.Context, id string) ([]Message, error)
}

// Getter returns the single current message of the mailbox.
type Getter interface {
	GetMessage(ctx context.Context, id string) (Message, error)
}

// Handle identifies a provisioned mailbox.
type Handle struct {
	// Ref is the provider's opaque handle; it may equal ID.
	Ref          string
	ID           string
	EmailAddress string
	ExpiresAt    time.Time
	// Messages holds any messages the provider embedded in the provisioning response.
	Messages []Message
}

// Candidates returns the identifiers to try against a Waiter, in order, without
// empties or duplicates.
func (h Handle) Candidates() []string {
	out := make([]string, 0, 3)
	for _, c := range []string{h.Ref, h.ID, h.EmailAddress} {
		if c == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// Provisioned is the result of a single provisioning call.
type Provisioned struct {
	Address string
	Handle  Handle
	Client  Client
}

// Provisioner creates disposable mailboxes.
type Provisioner interface {
	Provision(ctx context.Context) (Provisioned, error)
}
