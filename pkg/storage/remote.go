package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/recurrence"
	"github.com/cuemby/remindsync/pkg/types"
)

// Firestore layout
const (
	UsersCollection     = "users"
	RemindersCollection = "reminders"
)

// remoteRule is the Firestore shape of types.RecurrenceRule
type remoteRule struct {
	Type              string `firestore:"type"`
	Interval          int    `firestore:"interval"`
	Unit              string `firestore:"unit,omitempty"`
	DaysOfWeek        []int  `firestore:"daysOfWeek,omitempty"`
	TimeRangeStart    string `firestore:"timeRangeStart,omitempty"`
	TimeRangeEnd      string `firestore:"timeRangeEnd,omitempty"`
	BasedOnCompletion bool   `firestore:"basedOnCompletion"`
}

// RemoteDocument is the Firestore shape of a reminder. EffectiveAt is
// denormalized on every write so the active query can order by it.
type RemoteDocument struct {
	ID                 string      `firestore:"id"`
	Title              string      `firestore:"title"`
	Notes              string      `firestore:"notes,omitempty"`
	TriggerDate        time.Time   `firestore:"triggerDate"`
	Recurrence         *remoteRule `firestore:"recurrence"`
	Status             string      `firestore:"status"`
	SnoozedUntil       *time.Time  `firestore:"snoozedUntil"`
	EffectiveAt        time.Time   `firestore:"effectiveAt"`
	CreatedAt          time.Time   `firestore:"createdAt"`
	UpdatedAt          time.Time   `firestore:"updatedAt"`
	LastWriterDeviceID string      `firestore:"lastWriterDeviceId,omitempty"`
}

// ToDocument converts a reminder into its Firestore shape
func ToDocument(r *types.Reminder, deviceID string) RemoteDocument {
	doc := RemoteDocument{
		ID:                 r.ID,
		Title:              r.Title,
		Notes:              r.Notes,
		TriggerDate:        r.TriggerDate,
		Status:             string(r.Status),
		EffectiveAt:        r.Effective(),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		LastWriterDeviceID: deviceID,
	}
	if r.SnoozedUntil != nil {
		t := *r.SnoozedUntil
		doc.SnoozedUntil = &t
	}
	if rule := r.Recurrence; rule != nil {
		doc.Recurrence = &remoteRule{
			Type:              string(rule.Type),
			Interval:          rule.Interval,
			Unit:              string(rule.Unit),
			DaysOfWeek:        rule.DaysOfWeek,
			TimeRangeStart:    rule.TimeRangeStart,
			TimeRangeEnd:      rule.TimeRangeEnd,
			BasedOnCompletion: rule.BasedOnCompletion,
		}
	}
	return doc
}

// Reminder converts the document back into a reminder
func (d RemoteDocument) Reminder() (*types.Reminder, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidData)
	}
	st := types.ReminderStatus(d.Status)
	if st != types.ReminderStatusActive && st != types.ReminderStatusCompleted {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidData, d.Status)
	}

	r := &types.Reminder{
		ID:          d.ID,
		Title:       d.Title,
		Notes:       d.Notes,
		TriggerDate: d.TriggerDate,
		Status:      st,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.SnoozedUntil != nil {
		t := *d.SnoozedUntil
		r.SnoozedUntil = &t
	}
	if rule := d.Recurrence; rule != nil {
		r.Recurrence = &types.RecurrenceRule{
			Type:              types.RecurrenceType(rule.Type),
			Interval:          rule.Interval,
			Unit:              types.RecurrenceUnit(rule.Unit),
			DaysOfWeek:        rule.DaysOfWeek,
			TimeRangeStart:    rule.TimeRangeStart,
			TimeRangeEnd:      rule.TimeRangeEnd,
			BasedOnCompletion: rule.BasedOnCompletion,
		}
	}
	return r, nil
}

// DecodeSnapshot converts a Firestore document snapshot into a reminder
func DecodeSnapshot(snap *firestore.DocumentSnapshot) (*types.Reminder, error) {
	var doc RemoteDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if doc.ID == "" {
		doc.ID = snap.Ref.ID
	}
	return doc.Reminder()
}

// RemoteStore implements Store on Firestore under users/{uid}/reminders
type RemoteStore struct {
	client   *firestore.Client
	userID   string
	deviceID string
	now      func() time.Time
	logger   zerolog.Logger
	subs     subscribers
}

// NewRemoteStore creates a store for the signed-in user. deviceID is stamped
// on every write as lastWriterDeviceId.
func NewRemoteStore(client *firestore.Client, userID, deviceID string) (*RemoteStore, error) {
	if client == nil || userID == "" {
		return nil, ErrNotAuthenticated
	}
	return &RemoteStore{
		client:   client,
		userID:   userID,
		deviceID: deviceID,
		now:      time.Now,
		logger:   log.WithComponent("remote-store").With().Str("user_id", userID).Logger(),
	}, nil
}

func (s *RemoteStore) collection() *firestore.CollectionRef {
	return s.client.Collection(UsersCollection).Doc(s.userID).Collection(RemindersCollection)
}

func (s *RemoteStore) activeQuery() firestore.Query {
	return s.collection().
		Where("status", "==", string(types.ReminderStatusActive)).
		OrderBy("effectiveAt", firestore.Asc)
}

// Backend implements Store
func (s *RemoteStore) Backend() Backend {
	return BackendRemote
}

// Close stops every open subscription. The Firestore client is owned by the caller.
func (s *RemoteStore) Close() error {
	s.subs.closeAll()
	return nil
}

// Create implements Store
func (s *RemoteStore) Create(ctx context.Context, r *types.Reminder) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: reminder without id", ErrInvalidData)
	}
	now := s.now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	if r.Status == "" {
		r.Status = types.ReminderStatusActive
	}

	return s.record("create", func() error {
		_, err := s.collection().Doc(r.ID).Create(ctx, ToDocument(r, s.deviceID))
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
		}
		return mapError(err)
	})
}

// Get implements Store
func (s *RemoteStore) Get(ctx context.Context, id string) (*types.Reminder, error) {
	snap, err := s.collection().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return DecodeSnapshot(snap)
}

// Update implements Store
func (s *RemoteStore) Update(ctx context.Context, r *types.Reminder) error {
	r.UpdatedAt = s.now()
	return s.record("update", func() error {
		return s.transact(ctx, r.ID, func(current *types.Reminder) (*types.Reminder, error) {
			return r, nil
		})
	})
}

// Complete implements Store
func (s *RemoteStore) Complete(ctx context.Context, id string) (*types.Reminder, error) {
	r, _, err := s.complete(ctx, id, nil)
	return r, err
}

// CompleteIfTrigger implements Store
func (s *RemoteStore) CompleteIfTrigger(ctx context.Context, id string, expected time.Time) (*types.Reminder, bool, error) {
	return s.complete(ctx, id, &expected)
}

func (s *RemoteStore) complete(ctx context.Context, id string, expected *time.Time) (*types.Reminder, bool, error) {
	var result *types.Reminder
	applied := false
	err := s.record("complete", func() error {
		return s.transact(ctx, id, func(r *types.Reminder) (*types.Reminder, error) {
			// transactions may retry; reset per attempt
			applied = false
			result = r.Clone()
			if expected != nil && (!r.IsActive() || !r.TriggerDate.Equal(*expected)) {
				return nil, nil
			}
			if err := recurrence.Advance(r, s.now()); err != nil {
				return nil, err
			}
			applied = true
			result = r.Clone()
			return r, nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

// Snooze implements Store
func (s *RemoteStore) Snooze(ctx context.Context, id string, until time.Time) (*types.Reminder, error) {
	var result *types.Reminder
	err := s.record("snooze", func() error {
		return s.transact(ctx, id, func(r *types.Reminder) (*types.Reminder, error) {
			u := until
			r.SnoozedUntil = &u
			r.UpdatedAt = s.now()
			result = r.Clone()
			return r, nil
		})
	})
	return result, err
}

// Delete implements Store
func (s *RemoteStore) Delete(ctx context.Context, id string) error {
	return s.record("delete", func() error {
		_, err := s.collection().Doc(id).Delete(ctx)
		return mapError(err)
	})
}

// ListActive implements Store. Malformed documents are logged and skipped.
func (s *RemoteStore) ListActive(ctx context.Context) ([]*types.Reminder, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, string(BackendRemote), "list_active")

	snaps, err := s.activeQuery().Documents(ctx).GetAll()
	if err != nil {
		return nil, mapError(err)
	}

	reminders := make([]*types.Reminder, 0, len(snaps))
	for _, snap := range snaps {
		r, err := DecodeSnapshot(snap)
		if err != nil {
			s.logger.Warn().Err(err).Str("reminder_id", snap.Ref.ID).Msg("Skipping malformed reminder document")
			continue
		}
		reminders = append(reminders, r)
	}
	SortActive(reminders)
	return reminders, nil
}

// Listener retry bounds
const (
	listenRetryMin = time.Second
	listenRetryMax = time.Minute
)

// snapshotIterator is the part of firestore.QuerySnapshotIterator the
// listener uses
type snapshotIterator interface {
	Next() (*firestore.QuerySnapshot, error)
	Stop()
}

// ObserveActive implements Store. A Firestore snapshot listener triggers a
// re-read of the active set on every remote change. A failed listener is
// re-opened with backoff; the subscription keeps its last set meanwhile.
func (s *RemoteStore) ObserveActive(ctx context.Context) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := s.subs.add(ctx, s.ListActive, s.logger)

	open := func(ctx context.Context) snapshotIterator {
		return s.activeQuery().Snapshots(ctx)
	}
	go func() {
		defer cancel()
		listen(ctx, open, sub.trigger, listenRetryMin, listenRetryMax, s.logger)
	}()

	go func() {
		select {
		case <-sub.exited:
			cancel()
		case <-ctx.Done():
		}
	}()

	return sub, nil
}

// listen runs snapshot listeners until ctx ends, calling onChange for every
// snapshot and re-opening the listener after an error
func listen(ctx context.Context, open func(context.Context) snapshotIterator, onChange func(), minDelay, maxDelay time.Duration, logger zerolog.Logger) {
	delay := minDelay
	for {
		it := open(ctx)
		var err error
		for {
			if _, err = it.Next(); err != nil {
				break
			}
			delay = minDelay
			onChange()
		}
		it.Stop()

		if ctx.Err() != nil {
			return
		}
		logger.Warn().Err(mapError(err)).Dur("retry_in", delay).Msg("Active reminder listener failed, keeping last set")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Refresh implements Store
func (s *RemoteStore) Refresh() {
	s.subs.notify()
}

// transact reads id, passes it to fn and writes back what fn returns.
// A nil result skips the write.
func (s *RemoteStore) transact(ctx context.Context, id string, fn func(*types.Reminder) (*types.Reminder, error)) error {
	ref := s.collection().Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := DecodeSnapshot(snap)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		return tx.Set(ref, ToDocument(next, s.deviceID))
	})
	return mapError(err)
}

func (s *RemoteStore) record(op string, fn func() error) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, string(BackendRemote), op)

	if err := fn(); err != nil {
		return err
	}
	metrics.ReminderOperations.WithLabelValues(string(BackendRemote), op).Inc()
	s.subs.notify()
	return nil
}

// mapError converts Firestore status codes into store sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrInvalidData) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	default:
		return fmt.Errorf("firestore: %w", err)
	}
}
