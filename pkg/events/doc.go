/*
Package events is a small in-process pub/sub broker for reminder lifecycle
events.

The daemon publishes alert deliveries, wake signals and intent drains here;
the console printer and the notification scheduler subscribe:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(events.EventAlertDelivered)
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			fmt.Printf("⏰ %s\n", ev.Reminder.Title)
		}
	}()

Delivery is best effort. Publish queues into a 100-event buffer and each
subscriber has its own 50-event buffer; a subscriber whose buffer is full
misses the event. Nothing that must not be lost goes through the broker:
reminder state lives in the store and pending intents in shared storage.
*/
package events
