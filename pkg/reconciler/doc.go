/*
Package reconciler drives the notification scheduler from the reminder store.

The reconciler owns the store subscription. Every emission of the active set
is diffed against the previous one: reminders that dropped out (completed,
deleted, or removed on another device) have their alerts cancelled, then the
scheduler resyncs the whole set. A periodic tick repeats the resync against
the last set so the badge follows reminders as they become overdue.

	rec := reconciler.NewReconciler(store, scheduler, broker)
	if err := rec.Start(ctx); err != nil {
		return err
	}
	defer rec.Stop()

Silent pushes from the fanout service arrive through Wake. Their payload is
informational only; Wake asks the store to re-read and re-emit, and the normal
emission path does the rest.

Start must be called after the extension intent queue has been drained, so the
first emission already reflects replayed snoozes and completions.
*/
package reconciler
