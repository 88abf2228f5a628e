package fanout

import (
	"time"

	"github.com/cuemby/remindsync/pkg/types"
)

// Action is the classified kind of a reminder write
type Action string

const (
	ActionCreated   Action = "created"
	ActionDeleted   Action = "deleted"
	ActionCompleted Action = "completed"
	ActionSnoozed   Action = "snoozed"
	ActionUpdated   Action = "updated"
)

// Push payload keys
const (
	KeyAction         = "action"
	KeyReminderID     = "reminderId"
	KeyTitle          = "title"
	KeyTriggerDate    = "triggerDate"
	KeyNewTriggerDate = "newTriggerDate"
)

// Classify names the change from before to after. Either side may be nil.
func Classify(before, after *types.Reminder) Action {
	switch {
	case before == nil:
		return ActionCreated
	case after == nil:
		return ActionDeleted
	case before.IsActive() && after.Status == types.ReminderStatusCompleted:
		return ActionCompleted
	case !before.TriggerDate.Equal(after.TriggerDate) || !sameInstant(before.SnoozedUntil, after.SnoozedUntil):
		return ActionSnoozed
	default:
		return ActionUpdated
	}
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Payload builds the silent push data for a classified change. Values are
// strings; instants are RFC 3339 in UTC.
func Payload(action Action, reminderID string, before, after *types.Reminder) map[string]string {
	data := map[string]string{
		KeyAction:     string(action),
		KeyReminderID: reminderID,
	}

	latest := after
	if latest == nil {
		latest = before
	}
	if latest != nil && latest.Title != "" {
		data[KeyTitle] = latest.Title
	}
	if after == nil {
		return data
	}

	data[KeyTriggerDate] = formatInstant(after.TriggerDate)
	if action == ActionSnoozed {
		next := after.TriggerDate
		if after.SnoozedUntil != nil && after.SnoozedUntil.After(next) {
			next = *after.SnoozedUntil
		}
		data[KeyNewTriggerDate] = formatInstant(next)
	}
	return data
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
