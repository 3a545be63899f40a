// File: internal/mocks/mailbox.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
)

// MockMailClient implements every retrieval capability. Which ones the extractor
// uses is decided by what Capabilities returns.
type MockMailClient struct {
	mock.Mock
}

func (m *MockMailClient) Capabilities() mailbox.CapabilitySet {
	args := m.Called()
	return args.Get(0).(mailbox.CapabilitySet)
}

func (m *MockMailClient) WaitForMessage(ctx context.Context, ref string, timeout time.Duration) (mailbox.Message, error) {
	args := m.Called(ctx, ref, timeout)
	return args.Get(0).(mailbox.Message), args.Error(1)
}

func (m *MockMailClient) ListMessages(ctx context.Context, id string) ([]mailbox.Message, error) {
	args := m.Called(ctx, id)
	msgs, _ := args.Get(0).([]mailbox.Message)
	return msgs, args.Error(1)
}

func (m *MockMailClient) GetMessage(ctx context.Context, id string) (mailbox.Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mailbox.Message), args.Error(1)
}

// MockListOnlyClient only knows how to list messages.
type MockListOnlyClient struct {
	mock.Mock
}

func (m *MockListOnlyClient) Capabilities() mailbox.CapabilitySet {
	return mailbox.NewCapabilitySet(mailbox.CapListMessages)
}

func (m *MockListOnlyClient) ListMessages(ctx context.Context, id string) ([]mailbox.Message, error) {
	args := m.Called(ctx, id)
	msgs, _ := args.Get(0).([]mailbox.Message)
	return msgs, args.Error(1)
}

// MockProvisioner mocks mailbox.Provisioner.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context) (mailbox.Provisioned, error) {
	args := m.Called(ctx)
	return args.Get(0).(mailbox.Provisioned), args.Error(1)
}

// MockCodeSource mocks the OTP extractor as the orchestrator sees it.
type MockCodeSource struct {
	mock.Mock
}

func (m *MockCodeSource) Extract(ctx context.Context, h mailbox.Handle, timeout, poll time.Duration) (string, bool) {
	args := m.Called(ctx, h, timeout, poll)
	return args.String(0), args.Bool(1)
}
