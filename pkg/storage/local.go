package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/recurrence"
	"github.com/cuemby/remindsync/pkg/shared"
	"github.com/cuemby/remindsync/pkg/types"
)

// DefaultWatchInterval is how often LocalStore checks for writes made by
// another process
const DefaultWatchInterval = time.Second

// LocalStore implements Store on the shared storage group. Every read goes to
// disk; nothing is cached between calls.
type LocalStore struct {
	group  *shared.Group
	now    func() time.Time
	logger zerolog.Logger
	subs   subscribers

	mu       sync.Mutex
	lastSeq  uint64
	interval time.Duration
	stopCh   chan struct{}
	stopped  chan struct{}
	closed   bool
}

// NewLocalStore creates a store over group and starts watching it for
// external writes
func NewLocalStore(group *shared.Group) *LocalStore {
	return newLocalStore(group, DefaultWatchInterval, time.Now)
}

func newLocalStore(group *shared.Group, interval time.Duration, now func() time.Time) *LocalStore {
	s := &LocalStore{
		group:    group,
		now:      now,
		logger:   log.WithComponent("local-store"),
		interval: interval,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if seq, err := group.Sequence(); err == nil {
		s.lastSeq = seq
	}
	go s.watch()
	return s
}

// Backend implements Store
func (s *LocalStore) Backend() Backend {
	return BackendLocal
}

// Close stops the watcher and every open subscription
func (s *LocalStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopCh)
	s.mu.Unlock()

	<-s.stopped
	s.subs.closeAll()
	return nil
}

// Create stores a new reminder
func (s *LocalStore) Create(ctx context.Context, r *types.Reminder) error {
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

	return s.mutate("create", func(rs []*types.Reminder) ([]*types.Reminder, error) {
		if indexOf(rs, r.ID) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
		}
		return append(rs, r.Clone()), nil
	})
}

// Get reads one reminder
func (s *LocalStore) Get(ctx context.Context, id string) (*types.Reminder, error) {
	rs, err := s.group.Reminders()
	if err != nil {
		return nil, err
	}
	i := indexOf(rs, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rs[i], nil
}

// Update replaces an existing reminder
func (s *LocalStore) Update(ctx context.Context, r *types.Reminder) error {
	r.UpdatedAt = s.now()
	return s.mutate("update", func(rs []*types.Reminder) ([]*types.Reminder, error) {
		i := indexOf(rs, r.ID)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.ID)
		}
		rs[i] = r.Clone()
		return rs, nil
	})
}

// Complete advances a recurring reminder or completes a one-shot one
func (s *LocalStore) Complete(ctx context.Context, id string) (*types.Reminder, error) {
	r, _, err := s.complete(id, nil)
	return r, err
}

// CompleteIfTrigger implements Store
func (s *LocalStore) CompleteIfTrigger(ctx context.Context, id string, expected time.Time) (*types.Reminder, bool, error) {
	return s.complete(id, &expected)
}

func (s *LocalStore) complete(id string, expected *time.Time) (*types.Reminder, bool, error) {
	var result *types.Reminder
	applied := false
	err := s.mutate("complete", func(rs []*types.Reminder) ([]*types.Reminder, error) {
		i := indexOf(rs, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r := rs[i]
		if expected != nil && (!r.IsActive() || !r.TriggerDate.Equal(*expected)) {
			result = r.Clone()
			return rs, nil
		}
		if err := recurrence.Advance(r, s.now()); err != nil {
			return nil, err
		}
		applied = true
		result = r.Clone()
		return rs, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

// Snooze sets SnoozedUntil
func (s *LocalStore) Snooze(ctx context.Context, id string, until time.Time) (*types.Reminder, error) {
	var result *types.Reminder
	err := s.mutate("snooze", func(rs []*types.Reminder) ([]*types.Reminder, error) {
		i := indexOf(rs, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		u := until
		rs[i].SnoozedUntil = &u
		rs[i].UpdatedAt = s.now()
		result = rs[i].Clone()
		return rs, nil
	})
	return result, err
}

// Delete removes a reminder. Unknown IDs are ignored.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	return s.mutate("delete", func(rs []*types.Reminder) ([]*types.Reminder, error) {
		i := indexOf(rs, id)
		if i < 0 {
			return rs, nil
		}
		return append(rs[:i], rs[i+1:]...), nil
	})
}

// ListActive returns active reminders ordered by effective instant
func (s *LocalStore) ListActive(ctx context.Context) ([]*types.Reminder, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, string(BackendLocal), "list_active")

	rs, err := s.group.Reminders()
	if err != nil {
		return nil, err
	}
	return filterActive(rs), nil
}

// ObserveActive implements Store
func (s *LocalStore) ObserveActive(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("store is closed")
	}
	return s.subs.add(ctx, s.ListActive, s.logger), nil
}

// Refresh implements Store
func (s *LocalStore) Refresh() {
	s.subs.notify()
}

func (s *LocalStore) mutate(op string, fn func([]*types.Reminder) ([]*types.Reminder, error)) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StoreOperationDuration, string(BackendLocal), op)

	// held across the write so the watcher never mistakes it for an external one
	s.mu.Lock()
	seq, err := s.group.UpdateReminders(fn)
	if err == nil {
		s.lastSeq = seq
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	metrics.ReminderOperations.WithLabelValues(string(BackendLocal), op).Inc()
	s.subs.notify()
	return nil
}

// watch polls the group's write sequence and re-emits on writes made by
// another process
func (s *LocalStore) watch() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			seq, err := s.group.Sequence()
			changed := err == nil && seq > s.lastSeq
			if changed {
				s.lastSeq = seq
			}
			s.mu.Unlock()

			if err != nil {
				s.logger.Debug().Err(err).Msg("Failed to read shared storage sequence")
				continue
			}

			if changed {
				s.logger.Debug().Uint64("sequence", seq).Msg("External write detected")
				s.subs.notify()
			}
		case <-s.stopCh:
			return
		}
	}
}

func indexOf(rs []*types.Reminder, id string) int {
	for i, r := range rs {
		if r.ID == id {
			return i
		}
	}
	return -1
}
