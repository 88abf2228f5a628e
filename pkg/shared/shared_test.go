package shared

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/remindsync/pkg/types"
)

func newGroup(t *testing.T) *Group {
	t.Helper()
	g, err := Open(t.TempDir())
	require.NoError(t, err)
	return g
}

func TestOpenCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "group")
	g, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), g.Path())

	reminders, err := g.Reminders()
	require.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestUpdateRemindersRoundTrip(t *testing.T) {
	g := newGroup(t)
	trigger := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	seq1, err := g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		assert.Empty(t, rs)
		return append(rs, &types.Reminder{ID: "a", Title: "A", TriggerDate: trigger, Status: types.ReminderStatusActive}), nil
	})
	require.NoError(t, err)

	seq2, err := g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		require.Len(t, rs, 1)
		rs[0].Title = "A2"
		return rs, nil
	})
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)

	reminders, err := g.Reminders()
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "A2", reminders[0].Title)
	assert.True(t, trigger.Equal(reminders[0].TriggerDate))

	seq, err := g.Sequence()
	require.NoError(t, err)
	assert.Equal(t, seq2, seq)
}

func TestUpdateRemindersErrorLeavesDataUntouched(t *testing.T) {
	g := newGroup(t)
	_, err := g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		return []*types.Reminder{{ID: "a"}}, nil
	})
	require.NoError(t, err)
	before, err := g.Sequence()
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	reminders, err := g.Reminders()
	require.NoError(t, err)
	assert.Len(t, reminders, 1)

	after, err := g.Sequence()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTwoHandlesSeeEachOthersWrites(t *testing.T) {
	dir := t.TempDir()
	primary, err := Open(dir)
	require.NoError(t, err)
	extension, err := Open(dir)
	require.NoError(t, err)

	_, err = primary.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		return []*types.Reminder{{ID: "a", Status: types.ReminderStatusActive}}, nil
	})
	require.NoError(t, err)

	_, err = extension.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		require.Len(t, rs, 1)
		rs[0].Status = types.ReminderStatusCompleted
		return rs, nil
	})
	require.NoError(t, err)

	reminders, err := primary.Reminders()
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, types.ReminderStatusCompleted, reminders[0].Status)
}

func TestPendingActionsQueue(t *testing.T) {
	g := newGroup(t)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	actions, err := g.PendingActions()
	require.NoError(t, err)
	assert.Empty(t, actions)

	for _, a := range []types.PendingAction{
		{ID: "1", Type: types.ActionComplete, ReminderID: "r1", CreatedAt: now},
		{ID: "2", Type: types.ActionSnooze, ReminderID: "r1", CreatedAt: now},
		{ID: "3", Type: types.ActionComplete, ReminderID: "r1", CreatedAt: now},
	} {
		require.NoError(t, g.AppendPendingAction(a))
	}

	actions, err = g.PendingActions()
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{actions[0].ID, actions[1].ID, actions[2].ID})

	require.NoError(t, g.RemovePendingActions("1", "3", "missing"))
	actions, err = g.PendingActions()
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "2", actions[0].ID)

	require.NoError(t, g.RemovePendingActions())
}

func TestLockTimeout(t *testing.T) {
	g := newGroup(t)
	g.SetLockTimeout(50 * time.Millisecond)

	db, err := bolt.Open(g.Path(), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) { return rs, nil })
	assert.ErrorIs(t, err, ErrLocked)
}

func TestCorruptValue(t *testing.T) {
	g := newGroup(t)

	db, err := bolt.Open(g.Path(), 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGroup).Put(keyReminders, []byte("not json"))
	}))
	require.NoError(t, db.Close())

	_, err = g.Reminders()
	assert.Error(t, err)
}

func TestBackup(t *testing.T) {
	g := newGroup(t)
	_, err := g.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		return append(rs, &types.Reminder{ID: "a", Title: "A", Status: types.ReminderStatusActive}), nil
	})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, g.Backup(filepath.Join(dir, FileName)))

	restored, err := Open(dir)
	require.NoError(t, err)
	reminders, err := restored.Reminders()
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "A", reminders[0].Title)
}
