package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/types"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestLocalStore(t *testing.T, now time.Time) (*LocalStore, *shared.Group) {
	t.Helper()
	group, err := shared.Open(t.TempDir())
	require.NoError(t, err)

	s := newLocalStore(group, 20*time.Millisecond, func() time.Time { return now })
	t.Cleanup(func() { _ = s.Close() })
	return s, group
}

func reminder(id string, trigger time.Time) *types.Reminder {
	return &types.Reminder{
		ID:          id,
		Title:       "Reminder " + id,
		TriggerDate: trigger,
		Status:      types.ReminderStatusActive,
	}
}

func ids(rs []*types.Reminder) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func receive(t *testing.T, sub *Subscription) []*types.Reminder {
	t.Helper()
	select {
	case set, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return set
	case <-time.After(2 * time.Second):
		t.Fatal("no emission")
		return nil
	}
}

func TestLocalStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLocalStore(t, base)

	r := reminder("a", base.Add(time.Hour))
	require.NoError(t, s.Create(ctx, r))
	assert.True(t, base.Equal(r.CreatedAt))

	err := s.Create(ctx, reminder("a", base))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Reminder a", got.Title)

	got.Title = "Renamed"
	require.NoError(t, s.Update(ctx, got))
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Update(ctx, reminder("missing", base)), ErrNotFound)
	assert.Equal(t, BackendLocal, s.Backend())
}

func TestLocalStoreCreateRequiresID(t *testing.T) {
	s, _ := newTestLocalStore(t, base)
	assert.ErrorIs(t, s.Create(context.Background(), &types.Reminder{Title: "x"}), ErrInvalidData)
}

func TestLocalStoreCompleteOneShot(t *testing.T) {
	ctx := context.Background()
	now := base.Add(2 * time.Hour)
	s, _ := newTestLocalStore(t, now)

	snooze := base.Add(3 * time.Hour)
	r := reminder("a", base)
	r.SnoozedUntil = &snooze
	require.NoError(t, s.Create(ctx, r))

	done, err := s.Complete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, types.ReminderStatusCompleted, done.Status)
	assert.Nil(t, done.SnoozedUntil)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = s.Complete(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreCompleteOverdueDaily(t *testing.T) {
	ctx := context.Background()
	trigger := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s, _ := newTestLocalStore(t, now)

	r := reminder("daily", trigger)
	r.Recurrence = &types.RecurrenceRule{Type: types.RecurrenceDaily, Interval: 1}
	require.NoError(t, s.Create(ctx, r))

	done, err := s.Complete(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, types.ReminderStatusActive, done.Status)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), done.TriggerDate)
}

func TestLocalStoreCompleteIfTrigger(t *testing.T) {
	ctx := context.Background()
	now := base.Add(time.Hour)
	s, _ := newTestLocalStore(t, now)

	r := reminder("daily", base)
	r.Recurrence = &types.RecurrenceRule{Type: types.RecurrenceDaily, Interval: 1}
	require.NoError(t, s.Create(ctx, r))

	got, applied, err := s.CompleteIfTrigger(ctx, "daily", base)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, base.AddDate(0, 0, 1), got.TriggerDate)

	got, applied, err = s.CompleteIfTrigger(ctx, "daily", base)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, base.AddDate(0, 0, 1), got.TriggerDate)
}

func TestLocalStoreSnooze(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLocalStore(t, base)
	require.NoError(t, s.Create(ctx, reminder("a", base)))

	until := base.Add(10 * time.Minute)
	got, err := s.Snooze(ctx, "a", until)
	require.NoError(t, err)
	require.NotNil(t, got.SnoozedUntil)
	assert.True(t, until.Equal(*got.SnoozedUntil))
	assert.True(t, until.Equal(got.Effective()))

	_, err = s.Snooze(ctx, "missing", until)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreListActiveOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLocalStore(t, base)

	snoozed := reminder("snoozed", base)
	later := base.Add(3 * time.Hour)
	snoozed.SnoozedUntil = &later

	for _, r := range []*types.Reminder{
		reminder("c", base.Add(2*time.Hour)),
		reminder("b", base.Add(time.Hour)),
		reminder("a", base.Add(time.Hour)),
		snoozed,
	} {
		require.NoError(t, s.Create(ctx, r))
	}
	completed := reminder("done", base)
	completed.Status = types.ReminderStatusCompleted
	require.NoError(t, s.Create(ctx, completed))

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "snoozed"}, ids(active))
}

func TestLocalStoreObserveActive(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLocalStore(t, base)
	require.NoError(t, s.Create(ctx, reminder("a", base)))

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	defer sub.Close()

	assert.Equal(t, []string{"a"}, ids(receive(t, sub)))

	require.NoError(t, s.Create(ctx, reminder("b", base.Add(time.Hour))))
	assert.Equal(t, []string{"a", "b"}, ids(receive(t, sub)))

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, []string{"b"}, ids(receive(t, sub)))

	s.Refresh()
	assert.Equal(t, []string{"b"}, ids(receive(t, sub)))
}

func TestLocalStoreObservesExternalWrites(t *testing.T) {
	ctx := context.Background()
	s, group := newTestLocalStore(t, base)

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))

	// another process writing to the same group
	other, err := shared.Open(dirOf(group))
	require.NoError(t, err)
	_, err = other.UpdateReminders(func(rs []*types.Reminder) ([]*types.Reminder, error) {
		return append(rs, reminder("ext", base)), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ext"}, ids(receive(t, sub)))
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLocalStore(t, base)

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	receive(t, sub)

	sub.Close()
	require.NoError(t, s.Create(ctx, reminder("a", base)))

	_, ok := <-sub.Updates()
	assert.False(t, ok)

	// closing twice is fine
	sub.Close()
}

func TestSubscriptionContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestLocalStore(t, base)

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	receive(t, sub)

	cancel()
	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestSubscriptionKeepsLastSetOnError(t *testing.T) {
	ctx := context.Background()
	s, group := newTestLocalStore(t, base)
	require.NoError(t, s.Create(ctx, reminder("a", base)))

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, []string{"a"}, ids(receive(t, sub)))

	// hold the file lock so the re-read fails
	group.SetLockTimeout(10 * time.Millisecond)
	lock := lockGroup(t, group)
	s.Refresh()
	select {
	case set := <-sub.Updates():
		t.Fatalf("unexpected emission %v", ids(set))
	case <-time.After(200 * time.Millisecond):
	}
	lock()

	group.SetLockTimeout(shared.DefaultLockTimeout)
	s.Refresh()
	assert.Equal(t, []string{"a"}, ids(receive(t, sub)))
}

func TestLocalStoreClose(t *testing.T) {
	group, err := shared.Open(t.TempDir())
	require.NoError(t, err)
	s := NewLocalStore(group)

	sub, err := s.ObserveActive(context.Background())
	require.NoError(t, err)
	receive(t, sub)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := <-sub.Updates()
	assert.False(t, ok)

	_, err = s.ObserveActive(context.Background())
	assert.Error(t, err)
}
