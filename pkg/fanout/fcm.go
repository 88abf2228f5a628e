package fanout

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
)

// MaxBatchSize is the most tokens FCM accepts in one multicast request
const MaxBatchSize = 500

// MulticastSender is the part of the FCM client the pusher needs
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPusher sends silent pushes through Firebase Cloud Messaging
type FCMPusher struct {
	client MulticastSender
	logger zerolog.Logger
}

// NewFCMPusher creates a pusher from a Firebase app
func NewFCMPusher(ctx context.Context, app *firebase.App) (*FCMPusher, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return NewFCMPusherWithSender(client), nil
}

// NewFCMPusherWithSender creates a pusher on an existing sender
func NewFCMPusherWithSender(sender MulticastSender) *FCMPusher {
	return &FCMPusher{
		client: sender,
		logger: log.WithComponent("fcm"),
	}
}

// SilentMessage builds a data-only multicast message that wakes the app in
// the background on both platforms
func SilentMessage(tokens []string, data map[string]string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-push-type": "background",
				"apns-priority":  "5",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{ContentAvailable: true},
			},
		},
	}
}

// Push implements Pusher. Tokens are sent in batches of MaxBatchSize; a
// failed batch marks each of its tokens failed and the last such error is
// returned after every batch has been tried.
func (p *FCMPusher) Push(ctx context.Context, tokens []string, data map[string]string) ([]PushResult, error) {
	results := make([]PushResult, 0, len(tokens))
	var lastErr error

	for i := 0; i < len(tokens); i += MaxBatchSize {
		end := i + MaxBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[i:end]

		resp, err := p.client.SendEachForMulticast(ctx, SilentMessage(batch, data))
		if err != nil {
			p.logger.Warn().Err(err).Int("from", i).Int("to", end-1).Msg("Batch send failed")
			lastErr = err
			for _, token := range batch {
				results = append(results, PushResult{Token: token, Err: err})
			}
			continue
		}

		p.logger.Debug().
			Int("success", resp.SuccessCount).
			Int("failure", resp.FailureCount).
			Msg("Batch sent")

		for idx, token := range batch {
			r := PushResult{Token: token}
			if idx < len(resp.Responses) && resp.Responses[idx] != nil && !resp.Responses[idx].Success {
				r.Err = resp.Responses[idx].Error
				if r.Err == nil {
					r.Err = fmt.Errorf("send to token failed")
				}
				r.Dead = IsDeadToken(r.Err)
			}
			results = append(results, r)
		}
	}
	return results, lastErr
}

// IsDeadToken reports whether FCM rejected a token permanently. An invalid
// argument only counts when FCM blames the registration token; other invalid
// arguments are payload problems and say nothing about the device.
func IsDeadToken(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) {
		return true
	}
	return messaging.IsInvalidArgument(err) &&
		strings.Contains(strings.ToLower(err.Error()), "registration token")
}
