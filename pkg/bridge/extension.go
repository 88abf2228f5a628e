package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/notify"
	"github.com/cuemby/remindsync/pkg/recurrence"
	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// DefaultSnooze is used when an action carries no snooze duration
const DefaultSnooze = 10 * time.Minute

// Action is a button press on a delivered alert
type Action struct {
	Type       types.ActionType
	ReminderID string
	SnoozeFor  time.Duration
}

// Extension is the notification surface side of the bridge. It only touches
// the shared storage group and its own alert center.
type Extension struct {
	group  *shared.Group
	center notify.AlertCenter
	now    func() time.Time
	logger zerolog.Logger
}

// NewExtension creates an extension bridge. center may be nil when the host
// cannot schedule alerts.
func NewExtension(group *shared.Group, center notify.AlertCenter) *Extension {
	return &Extension{
		group:  group,
		center: center,
		now:    time.Now,
		logger: log.WithComponent("extension"),
	}
}

// CompleteLocally completes the reminder in shared storage: recurring
// reminders advance, one-shot reminders move to completed
func (e *Extension) CompleteLocally(id string) (*types.Reminder, error) {
	r, _, err := e.completeLocally(id)
	return r, err
}

// completeLocally also returns the TriggerDate seen before the change
func (e *Extension) completeLocally(id string) (*types.Reminder, time.Time, error) {
	var result *types.Reminder
	var base time.Time
	_, err := e.group.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		r := find(rs, id)
		if r == nil {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		base = r.TriggerDate
		if r.IsActive() {
			if err := recurrence.Advance(r, e.now()); err != nil {
				return nil, err
			}
		}
		result = r.Clone()
		return rs, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return result, base, nil
}

// SnoozeLocally sets SnoozedUntil in shared storage and schedules an alert
// for until. Alert failures are logged, not returned.
func (e *Extension) SnoozeLocally(ctx context.Context, id string, until time.Time) (*types.Reminder, error) {
	var result *types.Reminder
	_, err := e.group.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		r := find(rs, id)
		if r == nil {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		u := until
		r.SnoozedUntil = &u
		r.UpdatedAt = e.now()
		result = r.Clone()
		return rs, nil
	})
	if err != nil {
		return nil, err
	}

	if e.center != nil {
		e.center.RemovePending(id)
		if err := e.center.Add(ctx, notify.AlertFor(id, result.Title, until)); err != nil {
			metrics.AlertsFailed.Inc()
			e.logger.Warn().
				Err(fmt.Errorf("%w: %v", notify.ErrSchedulingFailed, err)).
				Str("reminder_id", id).
				Msg("Snoozed alert not scheduled")
		} else {
			metrics.AlertsScheduled.Inc()
		}
	}
	return result, nil
}

// EnqueueIntent appends an intent for the primary process. Existing entries
// are never merged or replaced. A complete intent records the reminder's
// current trigger from shared storage when the reminder is there.
func (e *Extension) EnqueueIntent(t types.ActionType, id string, snooze *time.Time) error {
	a := types.PendingAction{Type: t, ReminderID: id, SnoozeDate: snooze}
	if t == types.ActionComplete {
		rs, err := e.group.Reminders()
		if err != nil {
			return fmt.Errorf("failed to read reminder %s: %w", id, err)
		}
		if r := find(rs, id); r != nil {
			base := r.TriggerDate
			a.BaseTrigger = &base
		}
	}
	return e.enqueue(a)
}

func (e *Extension) enqueue(a types.PendingAction) error {
	a.ID = uuid.NewString()
	a.CreatedAt = e.now()
	if err := e.group.AppendPendingAction(a); err != nil {
		return fmt.Errorf("failed to enqueue %s intent: %w", a.Type, err)
	}
	metrics.IntentsEnqueued.WithLabelValues(string(a.Type)).Inc()
	e.logger.Debug().
		Str("reminder_id", a.ReminderID).
		Str("type", string(a.Type)).
		Msg("Intent enqueued")
	return nil
}

// HandleAction applies the action to shared storage and enqueues the matching
// intent. Nothing is enqueued when the local change fails.
func (e *Extension) HandleAction(ctx context.Context, a Action) (*types.Reminder, error) {
	switch a.Type {
	case types.ActionComplete:
		r, base, err := e.completeLocally(a.ReminderID)
		if err != nil {
			return nil, err
		}
		return r, e.enqueue(types.PendingAction{
			Type:        types.ActionComplete,
			ReminderID:  a.ReminderID,
			BaseTrigger: &base,
		})

	case types.ActionSnooze:
		d := a.SnoozeFor
		if d <= 0 {
			d = DefaultSnooze
		}
		until := e.now().Add(d)
		r, err := e.SnoozeLocally(ctx, a.ReminderID, until)
		if err != nil {
			return nil, err
		}
		return r, e.enqueue(types.PendingAction{
			Type:       types.ActionSnooze,
			ReminderID: a.ReminderID,
			SnoozeDate: &until,
		})

	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
}

func find(rs []*types.Reminder, id string) *types.Reminder {
	for _, r := range rs {
		if r.ID == id {
			return r
		}
	}
	return nil
}
