package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/events"
	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/notify"
	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// DefaultInterval is the periodic resync interval. It keeps the badge fresh
// as reminders become overdue without any store change.
const DefaultInterval = time.Minute

// Wake payload keys sent by the fanout service
const (
	PayloadAction     = "action"
	PayloadReminderID = "reminderId"
)

// Reconciler keeps the notification scheduler in step with the store's
// active set
type Reconciler struct {
	store     storage.Store
	scheduler *notify.Scheduler
	broker    *events.Broker
	interval  time.Duration
	logger    zerolog.Logger

	mu        sync.RWMutex
	known     map[string]bool
	last      []*types.Reminder
	observers []func([]*types.Reminder)

	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// NewReconciler creates a new reconciler. broker may be nil.
func NewReconciler(store storage.Store, scheduler *notify.Scheduler, broker *events.Broker) *Reconciler {
	return &Reconciler{
		store:     store,
		scheduler: scheduler,
		broker:    broker,
		interval:  DefaultInterval,
		logger:    log.WithComponent("reconciler"),
		known:     make(map[string]bool),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetInterval changes the periodic resync interval. Call before Start.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// OnUpdate registers fn to receive every active set after it has been
// applied. Call before Start.
func (r *Reconciler) OnUpdate(fn func([]*types.Reminder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Start subscribes to the store and begins the reconciliation loop. Pending
// extension intents must be drained before calling Start.
func (r *Reconciler) Start(ctx context.Context) error {
	sub, err := r.store.ObserveActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to observe active reminders: %w", err)
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	go r.run(ctx, sub)
	return nil
}

// Stop stops the reconciler and waits for the loop to exit
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.RLock()
	started := r.started
	r.mu.RUnlock()
	if started {
		<-r.done
	}
}

// run is the main reconciliation loop. If the subscription ends while the
// loop is still running, the last set stays scheduled and a new
// subscription is attempted on every resync tick.
func (r *Reconciler) run(ctx context.Context, sub *storage.Subscription) {
	defer close(r.done)
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	updates := sub.Updates()
	for {
		select {
		case set, ok := <-updates:
			if !ok {
				r.logger.Error().Msg("Active reminder subscription closed, keeping last set")
				sub.Close()
				sub, updates = nil, nil
				continue
			}
			r.apply(ctx, set)
		case <-ticker.C:
			if sub == nil && ctx.Err() == nil {
				sub, updates = r.resubscribe(ctx)
			}
			r.resync(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) resubscribe(ctx context.Context) (*storage.Subscription, <-chan []*types.Reminder) {
	sub, err := r.store.ObserveActive(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to re-observe active reminders")
		return nil, nil
	}
	r.logger.Info().Msg("Active reminder subscription restored")
	return sub, sub.Updates()
}

// apply cancels alerts for reminders that left the active set, then resyncs
// everything against the new set
func (r *Reconciler) apply(ctx context.Context, set []*types.Reminder) {
	next := make(map[string]bool, len(set))
	for _, rem := range set {
		next[rem.ID] = true
	}

	r.mu.Lock()
	var dropped []string
	for id := range r.known {
		if !next[id] {
			dropped = append(dropped, id)
		}
	}
	r.known = next
	r.last = set
	observers := r.observers
	r.mu.Unlock()

	for _, id := range dropped {
		r.scheduler.Cancel(id)
	}
	if len(dropped) > 0 {
		r.logger.Debug().Strs("ids", dropped).Msg("Cancelled alerts for inactive reminders")
	}

	r.scheduler.ResyncAll(ctx, set)

	for _, fn := range observers {
		fn(set)
	}
}

func (r *Reconciler) resync(ctx context.Context) {
	r.mu.RLock()
	set := r.last
	r.mu.RUnlock()

	r.scheduler.ResyncAll(ctx, set)
}

// Wake handles a silent push. The payload only says something changed; the
// store is re-read rather than trusting any field in it.
func (r *Reconciler) Wake(ctx context.Context, payload map[string]string) {
	if ctx.Err() != nil {
		return
	}

	r.logger.Info().
		Str("action", payload[PayloadAction]).
		Str("reminder_id", payload[PayloadReminderID]).
		Msg("Wake signal received")

	if r.broker != nil {
		r.broker.Publish(&events.Event{
			Type:       events.EventWake,
			ReminderID: payload[PayloadReminderID],
			Message:    payload[PayloadAction],
			Metadata:   payload,
		})
	}

	r.store.Refresh()
}

// Active returns the last active set received from the store
func (r *Reconciler) Active() []*types.Reminder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*types.Reminder(nil), r.last...)
}
