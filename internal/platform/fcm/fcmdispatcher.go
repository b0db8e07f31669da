// Package fcm delivers notifications through the Firebase Cloud Messaging
// HTTP v1 API and classifies per-device outcomes.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Platform delivery hints applied to every message.
const (
	androidPriority = "high"
	androidChannel  = "messages"
	defaultSound    = "default"
)

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies this interface.
func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Dispatch sends one multicast batch covering every registration of the
// recipient. Deliveries are independent: per-token failures come back as
// outcomes, only a whole-batch transport failure is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, regs []notify.DeviceRegistration, msg notify.Message) ([]notify.TokenOutcome, error) {
	if len(regs) == 0 {
		return nil, nil
	}

	tokens := make([]string, len(regs))
	for i, reg := range regs {
		tokens[i] = reg.Token
	}

	badge := 1
	multicast := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			Notification: &messaging.AndroidNotification{
				ChannelID: androidChannel,
				Sound:     defaultSound,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: defaultSound,
					Badge: &badge,
				},
			},
		},
	}

	br, err := d.client.SendEachForMulticast(ctx, multicast)
	if err != nil {
		return nil, fmt.Errorf("fcm transport failed: %w", err)
	}

	outcomes := make([]notify.TokenOutcome, len(regs))
	for idx, resp := range br.Responses {
		outcome := notify.Delivered
		switch {
		case resp.Success:
		case messaging.IsRegistrationTokenNotRegistered(resp.Error), messaging.IsInvalidArgument(resp.Error):
			// The token is gone or garbage. Report it for cleanup.
			outcome = notify.PermanentlyInvalid
		default:
			outcome = notify.TransientFailure
			d.logger.Warn("FCM send failed, keeping registration",
				"token", truncateToken(regs[idx].Token),
				"err", resp.Error,
			)
		}
		outcomes[idx] = notify.TokenOutcome{RegistrationID: regs[idx].ID, Outcome: outcome}
	}

	d.logger.Debug("Multicast complete", "success", br.SuccessCount, "failure", br.FailureCount)
	return outcomes, nil
}

// truncateToken keeps logs diagnosable without exposing full device tokens.
func truncateToken(t string) string {
	if len(t) <= 10 {
		return t
	}
	return t[:10] + "..."
}
