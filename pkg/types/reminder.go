package types

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NewReminder creates an active reminder with a fresh ID.
// An empty title falls back to the raw input, capped at MaxTitleLength.
func NewReminder(title, raw string, trigger time.Time, rule *RecurrenceRule, now time.Time) *Reminder {
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(raw)
	}
	if rule != nil && rule.Type == RecurrenceNone {
		rule = nil
	}
	return &Reminder{
		ID:          uuid.NewString(),
		Title:       TruncateTitle(title),
		TriggerDate: trigger,
		Recurrence:  rule,
		Status:      ReminderStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TruncateTitle caps s at MaxTitleLength runes
func TruncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	return string([]rune(s)[:MaxTitleLength])
}
