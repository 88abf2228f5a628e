// Package notify schedules one local alert per active reminder and tracks the
// alert lifecycle of each reminder:
//
//	unscheduled → scheduled → delivered → completed | snoozed | dismissed
//
// The Scheduler talks to the platform through AlertCenter. TimerCenter is the
// in-process implementation used by the daemon. Alert center failures are
// logged and counted, never returned: a reminder whose alert could not be
// added is still stored and shows up in the next resync.
package notify
