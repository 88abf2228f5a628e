/*
Package log provides structured logging for remindsync using zerolog.

A single global Logger is configured once at startup and component loggers
are derived from it:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: false})

	logger := log.WithComponent("reconciler")
	logger.Info().Int("active", 3).Msg("Active set applied")

Until Init is called Logger is a no-op logger, which keeps library packages
and their tests silent.

# Fields

Helpers attach the identifiers that show up across components:

	log.WithComponent("fanout")     component=fanout
	log.WithReminderID(r.ID)        reminder_id=...
	log.WithUserID(uid)             user_id=...
	log.WithDeviceID(deviceID)      device_id=...

# Output

Console output (the default) is meant for a terminal. JSONOutput switches to
one JSON object per line for log shipping:

	{"level":"info","component":"fanout","time":"2025-03-10T09:00:00Z","message":"Silent push sent"}

Levels are debug, info, warn and error; unknown values fall back to info.
Output defaults to stderr so command output on stdout stays clean.
*/
package log
