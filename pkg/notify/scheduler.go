package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/metrics"
	"github.com/cuemby/remindsync/pkg/types"
)

// ErrSchedulingFailed wraps alert center failures. They are logged, never returned.
var ErrSchedulingFailed = errors.New("failed to schedule alert")

// State is the lifecycle of one reminder's alert
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateScheduled   State = "scheduled"
	StateDelivered   State = "delivered"
	StateCompleted   State = "completed"
	StateSnoozed     State = "snoozed"
	StateDismissed   State = "dismissed"
)

// Snoozer persists a snooze through the active store
type Snoozer interface {
	Snooze(ctx context.Context, id string, until time.Time) (*types.Reminder, error)
}

// Scheduler keeps the alert center in step with reminders
type Scheduler struct {
	center AlertCenter
	store  Snoozer
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.Mutex
	states map[string]State
	badge  int
}

// NewScheduler creates a scheduler. store may be nil when snoozes are not persisted.
func NewScheduler(center AlertCenter, store Snoozer) *Scheduler {
	return &Scheduler{
		center: center,
		store:  store,
		now:    time.Now,
		logger: log.WithComponent("notify"),
		states: make(map[string]State),
	}
}

// ScheduleOrReschedule cancels any alert for r and adds a new one when its
// effective instant is still ahead
func (s *Scheduler) ScheduleOrReschedule(ctx context.Context, r *types.Reminder) {
	s.Cancel(r.ID)
	s.schedule(ctx, r)
}

func (s *Scheduler) schedule(ctx context.Context, r *types.Reminder) {
	at := r.Effective()
	if !r.IsActive() || !at.After(s.now()) {
		return
	}

	if err := s.center.Add(ctx, AlertFor(r.ID, r.Title, at)); err != nil {
		metrics.AlertsFailed.Inc()
		s.logger.Warn().
			Err(fmt.Errorf("%w: %v", ErrSchedulingFailed, err)).
			Str("reminder_id", r.ID).
			Msg("Alert not scheduled")
		return
	}

	metrics.AlertsScheduled.Inc()
	s.setState(r.ID, StateScheduled)
}

// Cancel removes pending and delivered alerts for id. Unknown IDs are fine.
func (s *Scheduler) Cancel(id string) {
	s.center.RemovePending(id)
	s.center.RemoveDelivered(id)

	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
}

// Snooze moves the alert for id to minutes from now and persists SnoozedUntil
func (s *Scheduler) Snooze(ctx context.Context, id, title string, minutes int) error {
	until := s.now().Add(time.Duration(minutes) * time.Minute)
	s.Cancel(id)

	if err := s.center.Add(ctx, AlertFor(id, title, until)); err != nil {
		metrics.AlertsFailed.Inc()
		s.logger.Warn().
			Err(fmt.Errorf("%w: %v", ErrSchedulingFailed, err)).
			Str("reminder_id", id).
			Msg("Snoozed alert not scheduled")
	} else {
		metrics.AlertsScheduled.Inc()
	}
	s.setState(id, StateSnoozed)

	if s.store == nil {
		return nil
	}
	if _, err := s.store.Snooze(ctx, id, until); err != nil {
		return fmt.Errorf("failed to persist snooze: %w", err)
	}
	return nil
}

// ResyncAll clears every pending alert, schedules each active reminder and
// recomputes the badge as the number of overdue reminders
func (s *Scheduler) ResyncAll(ctx context.Context, active []*types.Reminder) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	s.center.RemoveAllPending()

	s.mu.Lock()
	for id, st := range s.states {
		if st == StateScheduled || st == StateSnoozed {
			delete(s.states, id)
		}
	}
	s.mu.Unlock()

	now := s.now()
	overdue := 0
	for _, r := range active {
		if r.IsOverdue(now) {
			overdue++
			continue
		}
		s.schedule(ctx, r)
	}

	s.mu.Lock()
	s.badge = overdue
	s.mu.Unlock()

	s.center.SetBadge(overdue)
	metrics.BadgeCount.Set(float64(overdue))
	metrics.ReconciliationCycles.Inc()

	s.logger.Debug().
		Int("active", len(active)).
		Int("overdue", overdue).
		Msg("Alerts resynced")
}

// Badge returns the badge computed by the last ResyncAll
func (s *Scheduler) Badge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badge
}

// State returns the alert state of id
func (s *Scheduler) State(id string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[id]; ok {
		return st
	}
	return StateUnscheduled
}

// MarkDelivered records that the alert for id was shown
func (s *Scheduler) MarkDelivered(id string) {
	metrics.AlertsDelivered.Inc()
	s.setState(id, StateDelivered)
}

// MarkCompleted records that the user completed id from its alert
func (s *Scheduler) MarkCompleted(id string) {
	s.center.RemoveDelivered(id)
	s.setState(id, StateCompleted)
}

// MarkDismissed records that the user dismissed the alert for id
func (s *Scheduler) MarkDismissed(id string) {
	s.center.RemoveDelivered(id)
	s.setState(id, StateDismissed)
}

func (s *Scheduler) setState(id string, st State) {
	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()
}
