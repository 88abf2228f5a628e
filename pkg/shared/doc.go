/*
Package shared implements the storage group that the primary process and the
notification extension both read and write.

The group is a single bbolt file with one bucket, "group", holding two keys:

	reminders                JSON array of types.Reminder
	pendingExtensionActions  JSON array of types.PendingAction

Each key is replaced as a whole inside one write transaction. The database is
opened for every transaction and closed again, so the bbolt file lock is only
held while a transaction runs and the other process can get in between.

The bucket sequence is bumped on every reminder write; watchers poll Sequence
to notice writes made by the other process.
*/
package shared
