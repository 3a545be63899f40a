package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/enroll-cli/internal/mailbox"
	"github.com/xkilldash9x/enroll-cli/internal/mocks"
)

func TestProbe_ReportsEachCapability(t *testing.T) {
	client := new(mocks.MockMailClient)
	client.On("Capabilities").Return(mailbox.NewCapabilitySet(mailbox.CapWaitForMessage, mailbox.CapListMessages, mailbox.CapGetMessage))
	client.On("WaitForMessage", mock.Anything, mock.Anything, time.Second).Return(mailbox.Message{}, mailbox.ErrNoMessage)
	client.On("ListMessages", mock.Anything, "id-1").Return([]mailbox.Message{mailbox.Text("old"), otpMessage}, nil)
	client.On("GetMessage", mock.Anything, "id-1").Return(mailbox.Message{}, errors.New("boom"))

	e := NewExtractor(client, zaptest.NewLogger(t))
	results := e.Probe(context.Background(), handle, time.Second)
	require.Len(t, results, 3)

	assert.Equal(t, mailbox.CapWaitForMessage, results[0].Capability)
	assert.ErrorIs(t, results[0].Err, mailbox.ErrNoMessage)

	assert.Equal(t, mailbox.CapListMessages, results[1].Capability)
	assert.NoError(t, results[1].Err)
	assert.True(t, results[1].Found)
	assert.Equal(t, "4821", results[1].Code)
	assert.Contains(t, results[1].Text, "Your OTP code is")

	assert.Equal(t, mailbox.CapGetMessage, results[2].Capability)
	assert.EqualError(t, results[2].Err, "boom")

	client.AssertNumberOfCalls(t, "WaitForMessage", len(handle.Candidates()))
}

func TestProbe_ListOnlyEmptyMailbox(t *testing.T) {
	client := new(mocks.MockListOnlyClient)
	client.On("ListMessages", mock.Anything, "id-1").Return(nil, nil)

	e := NewExtractor(client, zaptest.NewLogger(t))
	results := e.Probe(context.Background(), handle, time.Second)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, mailbox.ErrNoMessage)
	assert.False(t, results[0].Found)
}
