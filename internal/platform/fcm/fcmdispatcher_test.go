package fcm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobmate-app/go-push-dispatch/internal/platform/fcm"
	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.BatchResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFCMDispatch_Lifecycle(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	msg := notify.Message{
		Title: "Nouveau message",
		Body:  "Alice : Bonjour",
		Data:  map[string]string{"conversation_id": "c-1"},
	}
	regs := []notify.DeviceRegistration{
		{ID: "reg-1", UserID: "u-1", Token: "token-1"},
		{ID: "reg-2", UserID: "u-1", Token: "token-2"},
	}

	t.Run("Happy Path - All Success", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		// Arrange: Return success for both
		mockResponse := &messaging.BatchResponse{
			SuccessCount: 2,
			FailureCount: 0,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: true, MessageID: "msg-2"},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(mockResponse, nil)

		// Act
		outcomes, err := dispatcher.Dispatch(ctx, regs, msg)

		// Assert
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, notify.TokenOutcome{RegistrationID: "reg-1", Outcome: notify.Delivered}, outcomes[0])
		assert.Equal(t, notify.TokenOutcome{RegistrationID: "reg-2", Outcome: notify.Delivered}, outcomes[1])
		mockClient.AssertExpectations(t)
	})

	t.Run("Multicast Payload Carries Platform Hints", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		mockResponse := &messaging.BatchResponse{
			SuccessCount: 2,
			Responses: []*messaging.SendResponse{
				{Success: true}, {Success: true},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(mm *messaging.MulticastMessage) bool {
			return len(mm.Tokens) == 2 &&
				mm.Tokens[0] == "token-1" &&
				mm.Notification.Title == "Nouveau message" &&
				mm.Android.Priority == "high" &&
				mm.Android.Notification.ChannelID == "messages" &&
				mm.APNS.Payload.Aps.Badge != nil && *mm.APNS.Payload.Aps.Badge == 1
		})).Return(mockResponse, nil)

		_, err := dispatcher.Dispatch(ctx, regs, msg)
		require.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Per-Token Failure Classified As Transient", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		// A generic per-token error is retryable, not a prune.
		mockResponse := &messaging.BatchResponse{
			SuccessCount: 1,
			FailureCount: 1,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: false, Error: errors.New("internal server error")},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(mockResponse, nil)

		outcomes, err := dispatcher.Dispatch(ctx, regs, msg)

		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, notify.Delivered, outcomes[0].Outcome)
		assert.Equal(t, notify.TransientFailure, outcomes[1].Outcome)
	})

	t.Run("Transport Failure (Retryable)", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		// Arrange: Whole batch fails (e.g. DNS error)
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(nil, errors.New("network down"))

		// Act
		_, err := dispatcher.Dispatch(ctx, regs, msg)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport failed")
	})

	t.Run("Empty Registration Set Is A No-Op", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, logger)

		outcomes, err := dispatcher.Dispatch(ctx, nil, msg)

		require.NoError(t, err)
		assert.Empty(t, outcomes)
		mockClient.AssertNotCalled(t, "SendEachForMulticast", mock.Anything, mock.Anything)
	})

	// Note: We rely on the Integration Test to verify the specific parsing of
	// IsRegistrationTokenNotRegistered errors, as mocking the internal error types
	// of the Firebase SDK is brittle.
}
