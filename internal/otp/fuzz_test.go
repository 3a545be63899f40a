package otp

import (
	"regexp"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
)

var codeShape = regexp.MustCompile(`^[0-9]{4,8}$`)

// buildMessage turns fuzz input into an arbitrarily nested message.
func buildMessage(c *fuzz.ConsumeFuzzer, depth int) (mailbox.Message, error) {
	kind, err := c.GetInt()
	if err != nil {
		return mailbox.Message{}, err
	}
	if depth > 24 {
		kind = 0
	}
	kind &= 0xff
	switch kind % 6 {
	case 0:
		s, err := c.GetString()
		return mailbox.Text(s), err
	case 1:
		b, err := c.GetBytes()
		return mailbox.Bytes(b), err
	case 2, 3:
		n, err := c.GetInt()
		if err != nil {
			return mailbox.Message{}, err
		}
		fields := make([]mailbox.Field, 0, n&3)
		for i := 0; i < n&3; i++ {
			key, err := c.GetString()
			if err != nil {
				return mailbox.Message{}, err
			}
			v, err := buildMessage(c, depth+1)
			if err != nil {
				return mailbox.Message{}, err
			}
			fields = append(fields, mailbox.KV(key, v))
		}
		if kind%6 == 2 {
			return mailbox.Mapping(fields...), nil
		}
		return mailbox.Object(fields...), nil
	case 4:
		n, err := c.GetInt()
		if err != nil {
			return mailbox.Message{}, err
		}
		items := make([]mailbox.Message, 0, n&3)
		for i := 0; i < n&3; i++ {
			v, err := buildMessage(c, depth+1)
			if err != nil {
				return mailbox.Message{}, err
			}
			items = append(items, v)
		}
		return mailbox.Sequence(items...), nil
	default:
		s, err := c.GetString()
		return mailbox.Scalar(s), err
	}
}

func FuzzNormalizeAndMatch(f *testing.F) {
	f.Add([]byte("Your OTP code is: 4821"))
	f.Add([]byte{2, 0, 0, 0, 1, 0, 0, 0, 4, 'b', 'o', 'd', 'y', 0, 0, 0, 0, 6, '1', '2', '3', '4', '5', '6'})
	f.Add([]byte("<p>OTP code is <b>7788</b></p>"))

	f.Fuzz(func(t *testing.T, data []byte) {
		msg, err := buildMessage(fuzz.NewConsumer(data), 0)
		if err != nil {
			return
		}
		text := mailbox.Normalize(msg)
		if code, ok := Match(nil, text); ok && !codeShape.MatchString(code) {
			t.Fatalf("extracted %q from %q, which is not a 4-8 digit code", code, text)
		}
	})
}

func FuzzMatchText(f *testing.F) {
	f.Add("Your OTP code is: 4821. Contact us at 9876543210.")
	f.Add("Use 738291 to sign in")
	f.Add("<html><body>Your One-Time Password <b>123456</b></body></html>")

	f.Fuzz(func(t *testing.T, text string) {
		code, ok := Match(nil, text)
		if ok && !codeShape.MatchString(code) {
			t.Fatalf("extracted %q, which is not a 4-8 digit code", code)
		}
	})
}
