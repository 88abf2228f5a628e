package storage

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/remindsync/pkg/types"
)

func TestDocumentRoundTrip(t *testing.T) {
	snooze := base.Add(30 * time.Minute)
	r := &types.Reminder{
		ID:          "a",
		Title:       "Water plants",
		Notes:       "balcony",
		TriggerDate: base,
		Recurrence: &types.RecurrenceRule{
			Type:       types.RecurrenceWeekly,
			Interval:   1,
			Unit:       types.UnitWeek,
			DaysOfWeek: []int{2, 5},
		},
		Status:       types.ReminderStatusActive,
		SnoozedUntil: &snooze,
		CreatedAt:    base.Add(-time.Hour),
		UpdatedAt:    base.Add(-time.Minute),
	}

	doc := ToDocument(r, "device-1")
	assert.True(t, snooze.Equal(doc.EffectiveAt))
	assert.Equal(t, "device-1", doc.LastWriterDeviceID)
	assert.Equal(t, "active", doc.Status)

	back, err := doc.Reminder()
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestDocumentEffectiveAtWithoutSnooze(t *testing.T) {
	doc := ToDocument(reminder("a", base), "")
	assert.True(t, base.Equal(doc.EffectiveAt))
	assert.Nil(t, doc.SnoozedUntil)
	assert.Nil(t, doc.Recurrence)
}

func TestDocumentReminderInvalid(t *testing.T) {
	_, err := RemoteDocument{Status: "active"}.Reminder()
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = RemoteDocument{ID: "a", Status: "archived"}.Reminder()
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "no doc"), ErrNotFound},
		{"unauthenticated", status.Error(codes.Unauthenticated, "no token"), ErrNotAuthenticated},
		{"permission denied", status.Error(codes.PermissionDenied, "rules"), ErrNotAuthenticated},
		{"sentinel passes through", ErrInvalidData, ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, mapError(nil))

	unavailable := status.Error(codes.Unavailable, "backend down")
	err := mapError(unavailable)
	assert.ErrorIs(t, err, unavailable)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrNotAuthenticated))
}

func TestNewRemoteStoreRequiresIdentity(t *testing.T) {
	_, err := NewRemoteStore(nil, "uid", "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestOpenSelectsBackend(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)

	s, _ := newTestLocalStore(t, base)
	store, err := Open(Options{Group: s.group, UserID: "uid"})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, BackendLocal, store.Backend())
}

// newEmulatorStore returns a RemoteStore against the Firestore emulator
func newEmulatorStore(t *testing.T) *RemoteStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "remindsync-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRemoteStore(client, "user-"+uuid.NewString(), "device-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRemoteStoreEmulator(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond).UTC()
	s.now = func() time.Time { return now }

	daily := reminder("daily", now.Add(-5*24*time.Hour))
	daily.Recurrence = &types.RecurrenceRule{Type: types.RecurrenceDaily, Interval: 1}
	oneShot := reminder("one", now.Add(time.Hour))

	require.NoError(t, s.Create(ctx, daily))
	require.NoError(t, s.Create(ctx, oneShot))
	assert.ErrorIs(t, s.Create(ctx, reminder("one", now)), ErrAlreadyExists)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "one"}, ids(active))

	got, applied, err := s.CompleteIfTrigger(ctx, "daily", daily.TriggerDate)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, got.TriggerDate.After(now))

	_, applied, err = s.CompleteIfTrigger(ctx, "daily", daily.TriggerDate)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = s.Complete(ctx, "one")
	require.NoError(t, err)
	active, err = s.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily"}, ids(active))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoteStoreObserveEmulator(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()

	sub, err := s.ObserveActive(ctx)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))

	require.NoError(t, s.Create(ctx, reminder("a", time.Now().Add(time.Hour))))
	require.Eventually(t, func() bool {
		select {
		case set := <-sub.Updates():
			return len(set) == 1 && set[0].ID == "a"
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}

type scriptedIterator struct {
	ctx  context.Context
	errs []error
}

func (it *scriptedIterator) Next() (*firestore.QuerySnapshot, error) {
	if len(it.errs) == 0 {
		<-it.ctx.Done()
		return nil, status.Error(codes.Canceled, "listener stopped")
	}
	err := it.errs[0]
	it.errs = it.errs[1:]
	return nil, err
}

func (it *scriptedIterator) Stop() {}

func TestListenReopensAfterError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opens int32
	open := func(ctx context.Context) snapshotIterator {
		if atomic.AddInt32(&opens, 1) == 1 {
			return &scriptedIterator{ctx: ctx, errs: []error{status.Error(codes.FailedPrecondition, "index required")}}
		}
		return &scriptedIterator{ctx: ctx, errs: []error{nil, nil}}
	}

	var changes int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		listen(ctx, open, func() { atomic.AddInt32(&changes, 1) }, time.Millisecond, 10*time.Millisecond, zerolog.Nop())
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&changes) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opens))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listen did not return after cancel")
	}
}

func TestListenStopsOnCancelWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	open := func(ctx context.Context) snapshotIterator {
		return &scriptedIterator{ctx: ctx, errs: []error{errors.New("unavailable")}}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		listen(ctx, open, func() {}, time.Hour, time.Hour, zerolog.Nop())
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listen did not return after cancel")
	}
}
