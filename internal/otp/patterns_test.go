package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"specific phrase beats phone number", "Your OTP code is: 4821. Contact us at 9876543210.", "4821", true},
		{"bare digits fallback", "Use 738291 to sign in", "738291", true},
		{"case insensitive", "your otp code is 9090", "9090", true},
		{"one-time password spans lines", "Your One-Time Password\nfor login is below:\n\n 55667788\n", "55667788", true},
		{"one time password with space", "YOUR ONE TIME PASSWORD: 102938", "102938", true},
		{"ten digit run is not a code", "Call 9876543210 now", "", false},
		{"three digits is not a code", "Room 101", "", false},
		{"empty", "", "", false},
		{
			"html visible text beats styled markup",
			`<html><head><style>p{color:#112233}</style></head><body><p>Your OTP code is</p><p><b>4821</b></p></body></html>`,
			"4821",
			true,
		},
		{
			"entities decoded in visible text",
			`<p>Your&nbsp;OTP&nbsp;code&nbsp;is&#58; 6655</p>`,
			"6655",
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Match(nil, tc.text)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

// The bare-digits fallback takes the first 4-8 digit run, which may be a year.
func TestMatch_BareDigitsIsBestEffort(t *testing.T) {
	got, ok := Match(nil, "Sent 2025. Enter 483920 on the page.")
	require.True(t, ok)
	assert.Equal(t, "2025", got)
}

func TestCompilePatterns(t *testing.T) {
	res, err := CompilePatterns([]string{`code:\s*([A-Z0-9]{6})`})
	require.NoError(t, err)
	got, ok := Match(res, "CODE: ab12cd")
	require.True(t, ok)
	assert.Equal(t, "ab12cd", got)

	_, err = CompilePatterns([]string{`[0-9]{6}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no capture group")

	_, err = CompilePatterns([]string{`(`})
	assert.Error(t, err)

	res, err = CompilePatterns(nil)
	require.NoError(t, err)
	assert.Len(t, res, len(DefaultPatterns))
}

func TestVisibleText(t *testing.T) {
	got := VisibleText(`<div>Hello <script>var x = 123456;</script><span>world</span></div>`)
	assert.Equal(t, "Hello world", got)
}
