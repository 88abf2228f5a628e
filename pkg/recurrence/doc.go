// Package recurrence computes the next trigger instant of repeating reminders.
//
// The engine is a pure function of (anchor, rule, now): it adds whole rule
// periods to the anchor until the result is strictly after now. A daily
// reminder left uncompleted for five days therefore jumps straight to the next
// future day rather than to the day after its original trigger.
//
// Hour periods are fixed durations. Day, week and month periods use calendar
// arithmetic in the anchor's location, always measured from the anchor itself,
// so wall-clock time survives DST changes and every result stays an integer
// number of periods away from the anchor.
package recurrence
