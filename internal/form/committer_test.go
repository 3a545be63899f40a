package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/enroll-cli/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	emailPrimary   = "//input[@type='email']"
	emailSecondary = "//input[@name='email']"
	sendOTP        = "//button[contains(.,'Send OTP')]"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func testFormConfig() config.FormConfig {
	return config.FormConfig{
		Attempts:           3,
		LocatorTimeout:     50 * time.Millisecond,
		SettleDelay:        10 * time.Millisecond,
		DialogTimeout:      time.Second,
		CalendarContainers: config.DefaultCalendarContainers,
	}
}

func newTestCommitter(t *testing.T, page Page) (*Committer, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	return NewCommitter(page, testFormConfig(), zaptest.NewLogger(t), WithSleep(rec.sleep)), rec
}

func TestNewCommitterDefaults(t *testing.T) {
	c := NewCommitter(newFakePage(), config.FormConfig{}, nil)
	assert.Equal(t, 3, c.attempts)
	assert.Equal(t, 6*time.Second, c.locatorTimeout)
	assert.Equal(t, config.DefaultCalendarContainers, c.calendarContainers)
}

func TestCommitField(t *testing.T) {
	t.Run("falls through to the first usable locator", func(t *testing.T) {
		page := newFakePage()
		el := page.add(emailSecondary, &fakeElement{value: "stale"})
		c, _ := newTestCommitter(t, page)

		out := c.CommitField(context.Background(), Field{
			Name:     "email",
			Locators: []string{emailPrimary, emailSecondary},
			Value:    "box@gettestmail.com",
		})

		assert.Equal(t, Committed, out)
		assert.Equal(t, "box@gettestmail.com", el.value)
		assert.Equal(t, 1, page.called("WaitClickable "+emailPrimary))
		assert.Equal(t, 1, page.called("Type "+emailSecondary))
	})

	t.Run("intercepted focus click still types", func(t *testing.T) {
		page := newFakePage()
		el := page.add(emailPrimary, &fakeElement{})
		page.clickErr[emailPrimary] = errors.New("element click intercepted")
		c, _ := newTestCommitter(t, page)

		out := c.CommitField(context.Background(), Field{Name: "email", Locators: []string{emailPrimary}, Value: "box@gettestmail.com"})

		assert.Equal(t, Committed, out)
		assert.Equal(t, "box@gettestmail.com", el.value)
		assert.Equal(t, 1, page.called("Clear "+emailPrimary))
		assert.Equal(t, 1, page.called("Type "+emailPrimary))
	})

	t.Run("exhaustion is a soft failure", func(t *testing.T) {
		page := newFakePage()
		page.add(emailPrimary, &fakeElement{hidden: true})
		c, rec := newTestCommitter(t, page)

		out := c.CommitField(context.Background(), Field{Name: "email", Locators: []string{emailPrimary}, Value: "x"})

		assert.Equal(t, SoftFailure, out)
		assert.Equal(t, 3, page.called("WaitClickable "+emailPrimary))
		assert.Len(t, rec.calls, 3)
	})

	t.Run("closed page is a hard failure", func(t *testing.T) {
		page := newFakePage()
		page.add(emailPrimary, &fakeElement{})
		page.closed = true
		c, _ := newTestCommitter(t, page)

		out := c.CommitField(context.Background(), Field{Name: "email", Locators: []string{emailPrimary}, Value: "x"})
		assert.Equal(t, HardFailure, out)
	})

	t.Run("cancelled context is a hard failure", func(t *testing.T) {
		page := newFakePage()
		c, _ := newTestCommitter(t, page)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out := c.CommitField(ctx, Field{Name: "email", Locators: []string{emailPrimary}, Value: "x"})
		assert.Equal(t, HardFailure, out)
	})
}

func TestClick(t *testing.T) {
	t.Run("natural click", func(t *testing.T) {
		page := newFakePage()
		page.add(sendOTP, &fakeElement{})
		c, _ := newTestCommitter(t, page)

		assert.Equal(t, Committed, c.Click(context.Background(), []string{sendOTP}, "send otp"))
		assert.Zero(t, page.called("ScriptClick "+sendOTP))
	})

	t.Run("intercepted click falls back to script", func(t *testing.T) {
		page := newFakePage()
		page.add(sendOTP, &fakeElement{})
		page.clickErr[sendOTP] = errors.New("element click intercepted")
		c, _ := newTestCommitter(t, page)

		assert.Equal(t, Committed, c.Click(context.Background(), []string{sendOTP}, "send otp"))
		assert.Equal(t, 1, page.called("ScriptClick "+sendOTP))
	})

	t.Run("missing button", func(t *testing.T) {
		page := newFakePage()
		c, _ := newTestCommitter(t, page)
		assert.Equal(t, SoftFailure, c.Click(context.Background(), []string{sendOTP}, "send otp"))
	})
}

func TestWaitPresent(t *testing.T) {
	page := newFakePage()
	page.add("//div[@id='verified']", &fakeElement{})
	c, _ := newTestCommitter(t, page)
	ctx := context.Background()

	assert.True(t, c.WaitPresent(ctx, []string{"//div[@id='missing']", "//div[@id='verified']"}, time.Second))
	assert.False(t, c.WaitPresent(ctx, []string{"//div[@id='missing']"}, time.Second))
	assert.False(t, c.WaitPresent(ctx, nil, time.Second))
	assert.False(t, c.WaitPresent(ctx, []string{"//div[@id='verified']"}, 0))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "soft_failure", SoftFailure.String())
	assert.Equal(t, "hard_failure", HardFailure.String())
	require.Equal(t, "Ctrl+A", KeySelectAll.String())
}
