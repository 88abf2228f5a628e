package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/remindsync/pkg/types"
)

var (
	// ErrNotRecurring is returned for rules that do not repeat
	ErrNotRecurring = errors.New("reminder is not recurring")

	// ErrInvalidRule is returned for custom rules without a usable unit
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// maxPeriod bounds a single rule period so period arithmetic stays within
// time.Duration
const maxPeriod = 100 * 365 * 24 * time.Hour

// approximate lower bounds used to estimate the number of periods to skip
var approxPeriod = map[types.RecurrenceUnit]time.Duration{
	types.UnitHour:  time.Hour,
	types.UnitDay:   24 * time.Hour,
	types.UnitWeek:  7 * 24 * time.Hour,
	types.UnitMonth: 28 * 24 * time.Hour,
}

// NextTrigger returns the first instant reachable from anchor by a whole,
// positive number of rule periods that is strictly after now.
func NextTrigger(anchor time.Time, rule types.RecurrenceRule, now time.Time) (time.Time, error) {
	if rule.Type == types.RecurrenceNone || rule.Type == "" {
		return time.Time{}, ErrNotRecurring
	}

	unit := rule.EffectiveUnit()
	approx, ok := approxPeriod[unit]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unit %q", ErrInvalidRule, unit)
	}
	interval := rule.EffectiveInterval()
	if interval > int(maxPeriod/approx) {
		return time.Time{}, fmt.Errorf("%w: interval %d %s is too long", ErrInvalidRule, interval, unit)
	}

	step := func(k int) time.Time {
		n := k * interval
		switch unit {
		case types.UnitHour:
			return anchor.Add(time.Duration(n) * time.Hour)
		case types.UnitDay:
			return anchor.AddDate(0, 0, n)
		case types.UnitWeek:
			return anchor.AddDate(0, 0, 7*n)
		default:
			return anchor.AddDate(0, n, 0)
		}
	}

	// Jump close to the answer instead of walking one period at a time
	k := 1
	if elapsed := now.Sub(anchor); elapsed > 0 {
		k = int(elapsed/(approx*time.Duration(interval))) + 1
	}
	for k > 1 && step(k-1).After(now) {
		k--
	}
	for !step(k).After(now) {
		k++
	}
	return step(k), nil
}

// Advance applies completion to a reminder. Recurring reminders move their
// TriggerDate to the next occurrence after now; one-shot reminders become
// completed. SnoozedUntil is cleared and UpdatedAt bumped in both cases.
func Advance(r *types.Reminder, now time.Time) error {
	if r.IsRecurring() {
		next, err := NextTrigger(r.TriggerDate, *r.Recurrence, now)
		if err != nil {
			return err
		}
		r.TriggerDate = next
	} else {
		r.Status = types.ReminderStatusCompleted
	}
	r.SnoozedUntil = nil
	r.UpdatedAt = now
	return nil
}
