package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/enroll-cli/internal/form"
)

// MockPage mocks a browser tab: the form.Page surface plus navigation, dialog
// handling and Close.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) DismissDialog(ctx context.Context, timeout time.Duration) (bool, error) {
	args := m.Called(ctx, timeout)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) Close() error {
	return m.Called().Error(0)
}

func (m *MockPage) WaitClickable(ctx context.Context, locator string, timeout time.Duration) error {
	return m.Called(ctx, locator, timeout).Error(0)
}

func (m *MockPage) WaitPresent(ctx context.Context, locator string, timeout time.Duration) error {
	return m.Called(ctx, locator, timeout).Error(0)
}

func (m *MockPage) ScrollIntoView(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) Click(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) ScriptClick(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) Clear(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) Type(ctx context.Context, locator, text string) error {
	return m.Called(ctx, locator, text).Error(0)
}

func (m *MockPage) PressKeys(ctx context.Context, locator string, keys ...form.Key) error {
	return m.Called(ctx, locator, keys).Error(0)
}

func (m *MockPage) Value(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

func (m *MockPage) ResetValue(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) InjectValue(ctx context.Context, locator, value string) error {
	return m.Called(ctx, locator, value).Error(0)
}

func (m *MockPage) DispatchCommit(ctx context.Context, locator string) error {
	return m.Called(ctx, locator).Error(0)
}

func (m *MockPage) FindVisible(ctx context.Context, locator string) ([]string, error) {
	args := m.Called(ctx, locator)
	found, _ := args.Get(0).([]string)
	return found, args.Error(1)
}

// MockCommitter mocks the committer operations the orchestrator drives.
type MockCommitter struct {
	mock.Mock
}

func (m *MockCommitter) CommitField(ctx context.Context, f form.Field) form.Outcome {
	return m.Called(ctx, f).Get(0).(form.Outcome)
}

func (m *MockCommitter) CommitDateField(ctx context.Context, f form.Field) form.Outcome {
	return m.Called(ctx, f).Get(0).(form.Outcome)
}

func (m *MockCommitter) Click(ctx context.Context, locators []string, name string) form.Outcome {
	return m.Called(ctx, locators, name).Get(0).(form.Outcome)
}

func (m *MockCommitter) WaitPresent(ctx context.Context, locators []string, timeout time.Duration) bool {
	return m.Called(ctx, locators, timeout).Bool(0)
}
