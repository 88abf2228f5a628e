/*
Package types defines the core data structures shared by every remindsync
component.

# Core Types

Reminders:
  - Reminder: a single reminder with trigger date, optional recurrence and snooze
  - ReminderStatus: active or completed
  - RecurrenceRule: daily, weekly or custom (hour/day/week/month) repetition

Synchronization:
  - DeviceRegistration: a push token registered by one of a user's devices
  - PendingAction: a snooze/complete queued by the notification extension

# Effective Instant

A reminder is due at its effective instant, which is SnoozedUntil when set and
TriggerDate otherwise:

	due := r.Effective()
	if r.IsOverdue(time.Now()) {
		// counted in the badge, never rescheduled as a fresh alert
	}

One-shot reminders move to ReminderStatusCompleted when completed. Recurring
reminders stay active forever; completing them advances TriggerDate (see
package recurrence) and clears SnoozedUntil.

# Serialization

All types serialize to JSON with camelCase keys and RFC 3339 instants. The same
encoding is used by the local store and by the notification extension, so a
record written by one process is read field-for-field by the other.

Weekdays in RecurrenceRule.DaysOfWeek use 1=Sunday ... 7=Saturday; use
WeekdayNumber to convert from time.Weekday.
*/
package types
