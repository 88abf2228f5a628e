package types

import (
	"time"
)

// ReminderStatus represents the lifecycle state of a reminder
type ReminderStatus string

const (
	ReminderStatusActive    ReminderStatus = "active"
	ReminderStatusCompleted ReminderStatus = "completed"
)

// MaxTitleLength is the longest title a reminder may carry
const MaxTitleLength = 100

// Reminder is a single user reminder
type Reminder struct {
	ID           string          `json:"id" yaml:"id,omitempty"`
	Title        string          `json:"title" yaml:"title"`
	Notes        string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	TriggerDate  time.Time       `json:"triggerDate" yaml:"triggerDate"`
	Recurrence   *RecurrenceRule `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	Status       ReminderStatus  `json:"status" yaml:"status,omitempty"`
	SnoozedUntil *time.Time      `json:"snoozedUntil,omitempty" yaml:"snoozedUntil,omitempty"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"createdAt,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt" yaml:"updatedAt,omitempty"`
}

// Effective returns the instant the reminder is currently due:
// SnoozedUntil when set, TriggerDate otherwise.
func (r *Reminder) Effective() time.Time {
	if r.SnoozedUntil != nil {
		return *r.SnoozedUntil
	}
	return r.TriggerDate
}

// IsActive reports whether the reminder is still pending
func (r *Reminder) IsActive() bool {
	return r.Status == ReminderStatusActive
}

// IsOverdue reports whether an active reminder's effective instant has passed
func (r *Reminder) IsOverdue(now time.Time) bool {
	return r.IsActive() && r.Effective().Before(now)
}

// IsRecurring returns true if the reminder repeats
func (r *Reminder) IsRecurring() bool {
	return r.Recurrence != nil && r.Recurrence.Type != RecurrenceNone && r.Recurrence.Type != ""
}

// Clone returns a deep copy of the reminder
func (r *Reminder) Clone() *Reminder {
	if r == nil {
		return nil
	}
	c := *r
	if r.SnoozedUntil != nil {
		t := *r.SnoozedUntil
		c.SnoozedUntil = &t
	}
	if r.Recurrence != nil {
		rule := *r.Recurrence
		if r.Recurrence.DaysOfWeek != nil {
			rule.DaysOfWeek = append([]int(nil), r.Recurrence.DaysOfWeek...)
		}
		c.Recurrence = &rule
	}
	return &c
}

// RecurrenceType defines how a reminder repeats
type RecurrenceType string

const (
	RecurrenceNone   RecurrenceType = "none"
	RecurrenceDaily  RecurrenceType = "daily"
	RecurrenceWeekly RecurrenceType = "weekly"
	RecurrenceCustom RecurrenceType = "custom"
)

// RecurrenceUnit is the period unit of a custom recurrence
type RecurrenceUnit string

const (
	UnitHour  RecurrenceUnit = "hour"
	UnitDay   RecurrenceUnit = "day"
	UnitWeek  RecurrenceUnit = "week"
	UnitMonth RecurrenceUnit = "month"
)

// RecurrenceRule describes a repeating schedule
type RecurrenceRule struct {
	Type     RecurrenceType `json:"type" yaml:"type"`
	Interval int            `json:"interval" yaml:"interval,omitempty"`
	Unit     RecurrenceUnit `json:"unit,omitempty" yaml:"unit,omitempty"`

	// DaysOfWeek uses 1=Sunday ... 7=Saturday
	DaysOfWeek []int `json:"daysOfWeek,omitempty" yaml:"daysOfWeek,omitempty"`

	// Active-hours fence for hourly rules, "HH:mm". Advisory only.
	TimeRangeStart string `json:"timeRangeStart,omitempty" yaml:"timeRangeStart,omitempty"`
	TimeRangeEnd   string `json:"timeRangeEnd,omitempty" yaml:"timeRangeEnd,omitempty"`

	// BasedOnCompletion is persisted but the engine always advances from TriggerDate
	BasedOnCompletion bool `json:"basedOnCompletion,omitempty" yaml:"basedOnCompletion,omitempty"`
}

// EffectiveUnit returns the period unit implied by the rule type
func (r RecurrenceRule) EffectiveUnit() RecurrenceUnit {
	switch r.Type {
	case RecurrenceDaily:
		return UnitDay
	case RecurrenceWeekly:
		return UnitWeek
	default:
		return r.Unit
	}
}

// EffectiveInterval returns the interval, treating anything below 1 as 1
func (r RecurrenceRule) EffectiveInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// WeekdayNumber converts a time.Weekday to the 1=Sunday ... 7=Saturday numbering
func WeekdayNumber(wd time.Weekday) int {
	return int(wd) + 1
}

// DeviceRegistration is a push token registered by one of a user's devices
type DeviceRegistration struct {
	DeviceID     string    `json:"deviceId" firestore:"deviceId"`
	FCMToken     string    `json:"fcmToken" firestore:"fcmToken"`
	Platform     Platform  `json:"platform" firestore:"platform"`
	LastActiveAt time.Time `json:"lastActiveAt" firestore:"lastActiveAt"`
}

// Platform identifies a device operating system
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// StaleDeviceAge is how long a registration may stay inactive before it is pruned
const StaleDeviceAge = 30 * 24 * time.Hour

// IsStale reports whether the registration has been inactive for StaleDeviceAge or longer
func (d *DeviceRegistration) IsStale(now time.Time) bool {
	return now.Sub(d.LastActiveAt) >= StaleDeviceAge
}

// ActionType is the kind of state change queued by the notification surface
type ActionType string

const (
	ActionSnooze   ActionType = "snooze"
	ActionComplete ActionType = "complete"
)

// PendingAction is a state change recorded by the notification extension
// that the primary process replays later
type PendingAction struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	ReminderID string     `json:"reminderId"`
	SnoozeDate *time.Time `json:"snoozeDate,omitempty"`

	// BaseTrigger is the TriggerDate observed before a complete was applied.
	// Replay skips recurring reminders that already moved past it.
	BaseTrigger *time.Time `json:"baseTrigger,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
