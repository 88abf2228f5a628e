/*
Package bridge lets an isolated notification surface change reminder state
without network or store access, and lets the primary process catch up later.

# Extension Side

The extension sees only the shared storage group. A button press on a
delivered alert goes through HandleAction, which changes the reminder in
shared storage and appends an intent to the pending queue:

	ext := bridge.NewExtension(group, center)
	ext.HandleAction(ctx, bridge.Action{
		Type:       types.ActionSnooze,
		ReminderID: id,
		SnoozeFor:  15 * time.Minute,
	})

Complete intents carry BaseTrigger, the TriggerDate the extension saw before
advancing. The queue is append-only; duplicates are kept.

# Primary Side

On every foreground the primary process drains the queue before it starts the
store subscription:

	drainer := bridge.NewDrainer(group, store, broker)
	result, err := drainer.DrainPendingIntents(ctx)

With the local backend the shared storage already holds the extension's
changes, so intents are simply discarded. With the remote backend each intent
is replayed:

  - complete: CompleteIfTrigger with BaseTrigger, a no-op once the reminder
    is completed or has advanced past it
  - snooze: writes SnoozedUntil again

Intents that fail stay queued for the next drain. Intents for reminders that
no longer exist are dropped.

While the remote backend is active, Mirror keeps a copy of the active set in
shared storage so the extension has something to act on.
*/
package bridge
