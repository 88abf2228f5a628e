package storage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/remindsync/pkg/types"
)

type loadFunc func(ctx context.Context) ([]*types.Reminder, error)

// Subscription streams full active sets. Values arrive in order on a single
// goroutine; once Close returns or the context ends nothing more is delivered
// and the channel is closed.
type Subscription struct {
	ch      chan []*types.Reminder
	refresh chan struct{}
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
	onClose func()
}

func newSubscription(ctx context.Context, load loadFunc, logger zerolog.Logger, onClose func()) *Subscription {
	s := &Subscription{
		ch:      make(chan []*types.Reminder),
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		onClose: onClose,
	}
	go s.run(ctx, load, logger)
	return s
}

// Updates returns the channel of active sets
func (s *Subscription) Updates() <-chan []*types.Reminder {
	return s.ch
}

// Close stops the subscription and waits for its goroutine to exit
func (s *Subscription) Close() {
	s.shutdown()
	<-s.exited
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// trigger asks for a re-read; pending triggers coalesce
func (s *Subscription) trigger() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, load loadFunc, logger zerolog.Logger) {
	defer close(s.exited)
	defer s.shutdown()
	defer close(s.ch)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		set, err := load(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to re-read active reminders, keeping last set")
		} else {
			select {
			case s.ch <- set:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-s.refresh:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// subscribers is the set of open subscriptions of one store
type subscribers struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func (h *subscribers) add(ctx context.Context, load loadFunc, logger zerolog.Logger) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[*Subscription]struct{})
	}

	var s *Subscription
	s = newSubscription(ctx, load, logger, func() { h.remove(s) })
	h.subs[s] = struct{}{}
	return s
}

func (h *subscribers) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}

func (h *subscribers) notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		s.trigger()
	}
}

func (h *subscribers) closeAll() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
