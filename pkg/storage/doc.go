/*
Package storage persists reminders and streams the active set to observers.

Two backends implement the Store interface:

	┌──────────────── REMINDER STORE ────────────────┐
	│                                                 │
	│  LocalStore                RemoteStore          │
	│  - shared.Group (bbolt)    - Firestore          │
	│  - one JSON array          - users/{uid}/       │
	│  - polled for external       reminders/{id}     │
	│    writes                  - snapshot listener  │
	│                                                 │
	└──────────────┬──────────────────┬───────────────┘
	               │                  │
	               ▼                  ▼
	         Subscription       Subscription
	     (full active sets, ordered by effective instant)

Open picks the remote backend when a signed-in user and a Firestore client
are configured, and the local backend otherwise.

# Completion

Complete and CompleteIfTrigger run recurrence.Advance on the stored record:
recurring reminders move to their next trigger after now and stay active,
one-shot reminders become completed. Both clear SnoozedUntil.
CompleteIfTrigger is used when replaying intents queued by the notification
extension; it is a no-op once the reminder already moved on.

# Subscriptions

ObserveActive returns a Subscription that emits the current active set right
away and again after every mutation made through the store, on Refresh, and
when the backend reports an outside change (the bbolt write sequence for the
local backend, a Firestore snapshot for the remote one):

	sub, err := store.ObserveActive(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for set := range sub.Updates() {
		scheduler.ResyncAll(ctx, set)
	}

Each set is sorted by effective instant ascending, ties broken by ID. A
failed re-read is logged and skipped; the previous set stays the last one
delivered. Once Close returns nothing more is sent and the channel is closed.

# Remote Documents

Firestore documents carry the reminder fields in camelCase plus two fields
maintained on every write: effectiveAt, the effective instant used to order
the active query, and lastWriterDeviceId, the device that made the write.
Documents that fail to decode are logged and left out of the active set.

Firestore status codes map to ErrNotFound (NotFound) and ErrNotAuthenticated
(Unauthenticated, PermissionDenied); anything else is wrapped.
*/
package storage
