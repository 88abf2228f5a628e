package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/types"
)

// Change is one write to a user's reminder document
type Change struct {
	UserID     string
	ReminderID string
	Before     *types.Reminder
	After      *types.Reminder

	// OriginDeviceID is the device that made the write, when known
	OriginDeviceID string
}

// PushResult is the outcome for one token
type PushResult struct {
	Token string
	Err   error

	// Dead is set when the token is unregistered or invalid and will never
	// accept a message again
	Dead bool
}

// Pusher sends a data-only message to a set of tokens
type Pusher interface {
	Push(ctx context.Context, tokens []string, data map[string]string) ([]PushResult, error)
}

// Fanout wakes a user's devices after a reminder changes
type Fanout struct {
	registry      Registry
	pusher        Pusher
	excludeOrigin bool
	logger        zerolog.Logger
}

// Options configures a Fanout
type Options struct {
	// ExcludeOrigin skips the device that made the write
	ExcludeOrigin bool
}

// New creates a Fanout
func New(registry Registry, pusher Pusher, opts Options) *Fanout {
	return &Fanout{
		registry:      registry,
		pusher:        pusher,
		excludeOrigin: opts.ExcludeOrigin,
		logger:        log.WithComponent("fanout"),
	}
}

// HandleChange classifies the change and sends a silent push to every device
// registered by the user. Registrations whose token is dead are deleted.
func (f *Fanout) HandleChange(ctx context.Context, c Change) (Action, error) {
	action := Classify(c.Before, c.After)
	metrics.ChangesClassified.WithLabelValues(string(action)).Inc()

	logger := f.logger.With().
		Str("user_id", c.UserID).
		Str("reminder_id", c.ReminderID).
		Str("action", string(action)).
		Logger()

	devices, err := f.registry.List(ctx, c.UserID)
	if err != nil {
		return action, fmt.Errorf("failed to list devices: %w", err)
	}

	var tokens []string
	owners := make(map[string][]string)
	for _, d := range devices {
		if d.FCMToken == "" {
			continue
		}
		if f.excludeOrigin && c.OriginDeviceID != "" && d.DeviceID == c.OriginDeviceID {
			continue
		}
		if _, seen := owners[d.FCMToken]; !seen {
			tokens = append(tokens, d.FCMToken)
		}
		owners[d.FCMToken] = append(owners[d.FCMToken], d.DeviceID)
	}
	if len(tokens) == 0 {
		logger.Debug().Msg("No devices to wake")
		return action, nil
	}

	results, pushErr := f.pusher.Push(ctx, tokens, Payload(action, c.ReminderID, c.Before, c.After))

	sent, failed := 0, 0
	for _, r := range results {
		if r.Err == nil {
			sent++
			continue
		}
		failed++
		if !r.Dead {
			logger.Warn().Err(r.Err).Msg("Push failed")
			continue
		}
		for _, deviceID := range owners[r.Token] {
			if err := f.registry.Delete(ctx, c.UserID, deviceID); err != nil {
				logger.Warn().Err(err).Str("device_id", deviceID).Msg("Failed to prune dead device")
				continue
			}
			metrics.DevicesPruned.WithLabelValues("unregistered").Inc()
			logger.Info().Str("device_id", deviceID).Msg("Pruned device with dead token")
		}
	}
	metrics.PushesSent.Add(float64(sent))
	metrics.PushesFailed.Add(float64(failed))

	logger.Debug().Int("sent", sent).Int("failed", failed).Msg("Change fanned out")

	if pushErr != nil {
		return action, fmt.Errorf("failed to push: %w", pushErr)
	}
	return action, nil
}

// SweepStale deletes registrations inactive for types.StaleDeviceAge or
// longer and returns how many were removed
func (f *Fanout) SweepStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := f.registry.ListStale(ctx, now.Add(-types.StaleDeviceAge))
	if err != nil {
		return 0, fmt.Errorf("failed to list stale devices: %w", err)
	}

	removed := 0
	for _, ud := range stale {
		if !ud.Device.IsStale(now) {
			continue
		}
		if err := f.registry.Delete(ctx, ud.UserID, ud.Device.DeviceID); err != nil {
			f.logger.Warn().Err(err).
				Str("user_id", ud.UserID).
				Str("device_id", ud.Device.DeviceID).
				Msg("Failed to delete stale device")
			continue
		}
		removed++
	}
	metrics.DevicesPruned.WithLabelValues("stale").Add(float64(removed))

	f.logger.Info().Int("removed", removed).Msg("Stale device sweep finished")
	return removed, nil
}
