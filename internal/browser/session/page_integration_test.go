package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/enroll-cli/internal/config"
	"github.com/xkilldash9x/enroll-cli/internal/form"
)

const fixtureHTML = `<!DOCTYPE html>
<html><body>
<input type="email" name="email">
<input type="text" name="dob" readonly>
<button id="send" onclick="alert('OTP sent')">Send OTP</button>
<div id="hidden" style="display:none">hidden</div>
<div class="calendar"><table><tr><td>4</td><td>5</td></tr></table></div>
</body></html>`

func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func newTestPage(t *testing.T) *Page {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	chrome := findChrome()
	if chrome == "" {
		t.Skip("no Chrome binary found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, fixtureHTML)
	}))
	t.Cleanup(srv.Close)

	cfg := config.NewDefaultConfig()
	cfg.BrowserCfg.ExecPath = chrome
	cfg.BrowserCfg.Headless = true
	cfg.NetworkCfg.PostLoadWait = 0

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b, err := NewBrowser(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, p.Navigate(ctx, srv.URL))
	return p
}

func TestPageAgainstChrome(t *testing.T) {
	p := newTestPage(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c := form.NewCommitter(p, config.FormConfig{Attempts: 1, LocatorTimeout: 2 * time.Second}, zaptest.NewLogger(t))

	t.Run("typing", func(t *testing.T) {
		out := c.CommitField(ctx, form.Field{Name: "email", Locators: []string{"//input[@name='email']"}, Value: "box@example.test"})
		assert.Equal(t, form.Committed, out)
		v, err := p.Value(ctx, "//input[@name='email']")
		require.NoError(t, err)
		assert.Equal(t, "box@example.test", v)
	})

	t.Run("readonly date", func(t *testing.T) {
		out := c.CommitDateField(ctx, form.Field{Name: "dob", Locators: []string{"//input[@name='dob']"}, Value: "05/09/2025"})
		assert.Equal(t, form.Committed, out)
	})

	t.Run("visible search", func(t *testing.T) {
		found, err := p.FindVisible(ctx, "//div[@class='calendar']//td")
		require.NoError(t, err)
		assert.Equal(t, []string{"(//div[@class='calendar']//td)[1]", "(//div[@class='calendar']//td)[2]"}, found)

		hidden, err := p.FindVisible(ctx, "//div[@id='hidden']")
		require.NoError(t, err)
		assert.Empty(t, hidden)
	})

	t.Run("dialog", func(t *testing.T) {
		require.NoError(t, p.ScriptClick(ctx, "//button[@id='send']"))
		dismissed, err := p.DismissDialog(ctx, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, dismissed)
	})

	t.Run("missing element", func(t *testing.T) {
		_, err := p.Value(ctx, "//input[@name='absent']")
		assert.ErrorIs(t, err, errNoElement)
	})

	t.Run("closed page", func(t *testing.T) {
		require.NoError(t, p.Close())
		_, err := p.Value(ctx, "//input[@name='email']")
		assert.ErrorIs(t, err, form.ErrPageClosed)
	})
}
