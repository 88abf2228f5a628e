package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderEffectiveAndOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name          string
		reminder      Reminder
		wantEffective time.Time
		wantOverdue   bool
	}{
		{
			name:          "trigger in past",
			reminder:      Reminder{Status: ReminderStatusActive, TriggerDate: past},
			wantEffective: past,
			wantOverdue:   true,
		},
		{
			name:          "snoozed into future",
			reminder:      Reminder{Status: ReminderStatusActive, TriggerDate: past, SnoozedUntil: &future},
			wantEffective: future,
			wantOverdue:   false,
		},
		{
			name:          "snooze already elapsed",
			reminder:      Reminder{Status: ReminderStatusActive, TriggerDate: future, SnoozedUntil: &past},
			wantEffective: past,
			wantOverdue:   true,
		},
		{
			name:          "completed is never overdue",
			reminder:      Reminder{Status: ReminderStatusCompleted, TriggerDate: past},
			wantEffective: past,
			wantOverdue:   false,
		},
		{
			name:          "exactly now is not overdue",
			reminder:      Reminder{Status: ReminderStatusActive, TriggerDate: now},
			wantEffective: now,
			wantOverdue:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.wantEffective.Equal(tt.reminder.Effective()))
			assert.Equal(t, tt.wantOverdue, tt.reminder.IsOverdue(now))
		})
	}
}

func TestReminderJSONRoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	snooze := time.Date(2025, 3, 10, 9, 30, 15, 123456789, loc)
	original := &Reminder{
		ID:          "8d1f0c8e-5d1b-4a53-9b77-8f0b3f0b2c11",
		Title:       "Water plants",
		Notes:       "balcony first",
		TriggerDate: time.Date(2025, 3, 10, 9, 0, 0, 0, loc),
		Recurrence: &RecurrenceRule{
			Type:              RecurrenceCustom,
			Interval:          2,
			Unit:              UnitHour,
			DaysOfWeek:        []int{2, 4},
			TimeRangeStart:    "08:00",
			TimeRangeEnd:      "22:00",
			BasedOnCompletion: true,
		},
		Status:       ReminderStatusActive,
		SnoozedUntil: &snooze,
		CreatedAt:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Reminder
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Title, decoded.Title)
	assert.Equal(t, original.Notes, decoded.Notes)
	assert.True(t, original.TriggerDate.Equal(decoded.TriggerDate))
	require.NotNil(t, decoded.SnoozedUntil)
	assert.True(t, original.SnoozedUntil.Equal(*decoded.SnoozedUntil))
	assert.Equal(t, *original.Recurrence, *decoded.Recurrence)
	assert.Equal(t, original.Status, decoded.Status)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestReminderJSONFieldNames(t *testing.T) {
	r := Reminder{ID: "a", Title: "t", Status: ReminderStatusActive}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"id", "title", "triggerDate", "status", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, key)
	}
	assert.NotContains(t, raw, "snoozedUntil")
	assert.NotContains(t, raw, "recurrence")
}

func TestReminderClone(t *testing.T) {
	snooze := time.Now()
	r := &Reminder{
		ID:           "a",
		SnoozedUntil: &snooze,
		Recurrence:   &RecurrenceRule{Type: RecurrenceWeekly, DaysOfWeek: []int{2}},
	}
	c := r.Clone()
	c.Recurrence.DaysOfWeek[0] = 7
	*c.SnoozedUntil = snooze.Add(time.Hour)

	assert.Equal(t, 2, r.Recurrence.DaysOfWeek[0])
	assert.True(t, r.SnoozedUntil.Equal(snooze))
	assert.Nil(t, (*Reminder)(nil).Clone())
}

func TestRecurrenceRuleDefaults(t *testing.T) {
	assert.Equal(t, UnitDay, RecurrenceRule{Type: RecurrenceDaily, Unit: UnitMonth}.EffectiveUnit())
	assert.Equal(t, UnitWeek, RecurrenceRule{Type: RecurrenceWeekly}.EffectiveUnit())
	assert.Equal(t, UnitHour, RecurrenceRule{Type: RecurrenceCustom, Unit: UnitHour}.EffectiveUnit())
	assert.Equal(t, 1, RecurrenceRule{Interval: 0}.EffectiveInterval())
	assert.Equal(t, 1, RecurrenceRule{Interval: -3}.EffectiveInterval())
	assert.Equal(t, 4, RecurrenceRule{Interval: 4}.EffectiveInterval())
}

func TestIsRecurring(t *testing.T) {
	assert.False(t, (&Reminder{}).IsRecurring())
	assert.False(t, (&Reminder{Recurrence: &RecurrenceRule{Type: RecurrenceNone}}).IsRecurring())
	assert.False(t, (&Reminder{Recurrence: &RecurrenceRule{}}).IsRecurring())
	assert.True(t, (&Reminder{Recurrence: &RecurrenceRule{Type: RecurrenceDaily}}).IsRecurring())
}

func TestWeekdayNumber(t *testing.T) {
	assert.Equal(t, 1, WeekdayNumber(time.Sunday))
	assert.Equal(t, 2, WeekdayNumber(time.Monday))
	assert.Equal(t, 7, WeekdayNumber(time.Saturday))
}

func TestDeviceRegistrationIsStale(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	fresh := DeviceRegistration{LastActiveAt: now.Add(-29 * 24 * time.Hour)}
	edge := DeviceRegistration{LastActiveAt: now.Add(-30 * 24 * time.Hour)}
	old := DeviceRegistration{LastActiveAt: now.Add(-45 * 24 * time.Hour)}

	assert.False(t, fresh.IsStale(now))
	assert.True(t, edge.IsStale(now))
	assert.True(t, old.IsStale(now))
}

func TestPendingActionRoundTrip(t *testing.T) {
	snooze := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	actions := []PendingAction{
		{ID: "1", Type: ActionSnooze, ReminderID: "r1", SnoozeDate: &snooze, CreatedAt: base},
		{ID: "2", Type: ActionComplete, ReminderID: "r2", BaseTrigger: &base, CreatedAt: base},
	}

	data, err := json.Marshal(actions)
	require.NoError(t, err)

	var decoded []PendingAction
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, ActionSnooze, decoded[0].Type)
	assert.True(t, snooze.Equal(*decoded[0].SnoozeDate))
	assert.Nil(t, decoded[0].BaseTrigger)
	assert.True(t, base.Equal(*decoded[1].BaseTrigger))
}

func TestNewReminder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trigger := now.Add(time.Hour)

	r := NewReminder("  Buy milk ", "buy milk in 1 hour", trigger, nil, now)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Buy milk", r.Title)
	assert.Equal(t, ReminderStatusActive, r.Status)
	assert.True(t, trigger.Equal(r.TriggerDate))
	assert.True(t, now.Equal(r.CreatedAt))
	assert.True(t, now.Equal(r.UpdatedAt))

	other := NewReminder("x", "", trigger, nil, now)
	assert.NotEqual(t, r.ID, other.ID)
}

func TestNewReminderTitleFallback(t *testing.T) {
	now := time.Now()
	long := strings.Repeat("abcdefghij", 15)

	r := NewReminder("", long, now, nil, now)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(r.Title))
	assert.Equal(t, long[:MaxTitleLength], r.Title)

	r = NewReminder("", "  ", now, &RecurrenceRule{Type: RecurrenceNone}, now)
	assert.Empty(t, r.Title)
	assert.Nil(t, r.Recurrence)
}

func TestTruncateTitleRunes(t *testing.T) {
	s := strings.Repeat("喝水", 60)
	got := TruncateTitle(s)
	assert.Equal(t, MaxTitleLength, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
