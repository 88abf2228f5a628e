package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/events"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// Replay outcomes, also used as metric labels
const (
	OutcomeApplied   = "applied"
	OutcomeSkipped   = "skipped"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// DrainResult counts intents by outcome
type DrainResult struct {
	Applied   int
	Skipped   int
	Dropped   int
	Failed    int
	Discarded int
}

// Removed is the number of intents taken off the queue
func (r DrainResult) Removed() int {
	return r.Applied + r.Skipped + r.Dropped + r.Discarded
}

// Drainer is the primary process side of the bridge
type Drainer struct {
	group  *shared.Group
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger
}

// NewDrainer creates a drainer replaying into store. broker may be nil.
func NewDrainer(group *shared.Group, store storage.Store, broker *events.Broker) *Drainer {
	return &Drainer{
		group:  group,
		store:  store,
		broker: broker,
		logger: log.WithComponent("drainer"),
	}
}

// DrainPendingIntents empties the extension's intent queue. With the remote
// backend each intent is replayed first; failed intents stay queued for the
// next drain. With the local backend the shared storage write already is the
// source of truth and intents are discarded.
func (d *Drainer) DrainPendingIntents(ctx context.Context) (DrainResult, error) {
	var result DrainResult

	actions, err := d.group.PendingActions()
	if err != nil {
		return result, fmt.Errorf("failed to read pending intents: %w", err)
	}
	if len(actions) == 0 {
		return result, nil
	}

	var remove []string
	if d.store.Backend() != storage.BackendRemote {
		for _, a := range actions {
			remove = append(remove, a.ID)
		}
		result.Discarded = len(actions)
		metrics.IntentsReplayed.WithLabelValues(OutcomeDiscarded).Add(float64(len(actions)))
	} else {
		for _, a := range actions {
			outcome, err := d.replay(ctx, a)
			metrics.IntentsReplayed.WithLabelValues(outcome).Inc()

			logger := d.logger.With().
				Str("reminder_id", a.ReminderID).
				Str("type", string(a.Type)).
				Str("outcome", outcome).
				Logger()

			switch outcome {
			case OutcomeFailed:
				result.Failed++
				logger.Warn().Err(err).Msg("Intent replay failed, keeping it queued")
				continue
			case OutcomeApplied:
				result.Applied++
			case OutcomeSkipped:
				result.Skipped++
			case OutcomeDropped:
				result.Dropped++
				logger.Warn().Err(err).Msg("Dropping intent")
			}
			logger.Debug().Msg("Intent replayed")
			remove = append(remove, a.ID)
		}
	}

	if err := d.group.RemovePendingActions(remove...); err != nil {
		return result, fmt.Errorf("failed to remove drained intents: %w", err)
	}

	d.logger.Info().
		Int("applied", result.Applied).
		Int("skipped", result.Skipped).
		Int("dropped", result.Dropped).
		Int("failed", result.Failed).
		Int("discarded", result.Discarded).
		Msg("Pending intents drained")

	if d.broker != nil {
		d.broker.Publish(&events.Event{
			Type:    events.EventIntentsDrained,
			Message: fmt.Sprintf("%d intents removed, %d failed", result.Removed(), result.Failed),
		})
	}
	return result, nil
}

// replay applies one intent to the store. It is safe to run twice: a
// complete carries the trigger it was based on and is skipped once the
// reminder moved on, and a snooze writes the same instant again. A complete
// without a trigger is skipped when the reminder changed after it was queued.
func (d *Drainer) replay(ctx context.Context, a types.PendingAction) (string, error) {
	switch a.Type {
	case types.ActionComplete:
		if a.BaseTrigger != nil {
			_, applied, err := d.store.CompleteIfTrigger(ctx, a.ReminderID, *a.BaseTrigger)
			if err != nil {
				return failure(err)
			}
			if !applied {
				return OutcomeSkipped, nil
			}
			return OutcomeApplied, nil
		}

		r, err := d.store.Get(ctx, a.ReminderID)
		if err != nil {
			return failure(err)
		}
		if !r.IsActive() {
			return OutcomeSkipped, nil
		}
		// written after the intent was queued, so it already reflects it
		if !a.CreatedAt.IsZero() && !r.UpdatedAt.Before(a.CreatedAt) {
			return OutcomeSkipped, nil
		}
		if _, err := d.store.Complete(ctx, a.ReminderID); err != nil {
			return failure(err)
		}
		return OutcomeApplied, nil

	case types.ActionSnooze:
		if a.SnoozeDate == nil {
			return OutcomeDropped, fmt.Errorf("snooze intent %s has no snooze date", a.ID)
		}
		if _, err := d.store.Snooze(ctx, a.ReminderID, *a.SnoozeDate); err != nil {
			return failure(err)
		}
		return OutcomeApplied, nil

	default:
		return OutcomeDropped, fmt.Errorf("unknown intent type %q", a.Type)
	}
}

// failure keeps the intent queued unless the reminder no longer exists
func failure(err error) (string, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return OutcomeDropped, err
	}
	return OutcomeFailed, err
}

// Mirror copies the remote active set into shared storage so the extension
// can act on reminders while the remote backend is in use
func (d *Drainer) Mirror(set []*types.Reminder) error {
	if d.store.Backend() != storage.BackendRemote {
		return nil
	}
	_, err := d.group.UpdateReminders(func([]*types.Reminder) ([]*types.Reminder, error) {
		out := make([]*types.Reminder, 0, len(set))
		for _, r := range set {
			out = append(out, r.Clone())
		}
		return out, nil
	})
	if err != nil {
		return fmt.Errorf("failed to mirror reminders: %w", err)
	}
	return nil
}
