/*
Package fanout wakes a user's other devices when one of their reminders
changes on the remote backend.

# Pipeline

	Firestore write ──► Watcher ──► Fanout.HandleChange ──► Pusher (FCM)
	                   (before/after      │
	                    from cache)       └──► Registry (prune dead tokens)

The Watcher listens to the "reminders" collection group across all users and
keeps the last seen version of each document, which gives every write a
before and an after. Classify turns the pair into one action, checked in this
order:

  - created: no before
  - deleted: no after
  - completed: active before, completed after
  - snoozed: TriggerDate or SnoozedUntil changed
  - updated: anything else

HandleChange sends a silent, data-only push to every device registered by the
user, including the one that made the write unless ExcludeOrigin is set. The
payload is informational; receivers re-read the store. Delivery is
best-effort and at-least-once.

# Device Registrations

Registrations live at users/{uid}/devices/{deviceId}. A token that FCM reports
as unregistered or invalid has its registration deleted right away. The
Sweeper runs SweepStale daily and deletes registrations that have not been
active for 30 days.
*/
package fanout
