package notify

import (
	"context"
	"time"
)

// Payload keys carried by every alert
const (
	PayloadReminderID = "reminderId"
	PayloadTitle      = "title"
)

// Alert is a one-shot local notification keyed by reminder ID
type Alert struct {
	ID      string
	Title   string
	FireAt  time.Time
	Payload map[string]string
}

// AlertFor builds the alert for a reminder. The alert ID is the reminder ID.
func AlertFor(id, title string, at time.Time) Alert {
	return Alert{
		ID:     id,
		Title:  title,
		FireAt: at,
		Payload: map[string]string{
			PayloadReminderID: id,
			PayloadTitle:      title,
		},
	}
}

// AlertCenter is the platform alert API the scheduler drives
type AlertCenter interface {
	Add(ctx context.Context, a Alert) error
	RemovePending(ids ...string)
	RemoveDelivered(ids ...string)
	RemoveAllPending()
	Pending() []string
	SetBadge(n int)
}
