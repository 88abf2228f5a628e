package metrics

import (
	"context"
	"time"

	"github.com/cuemby/remindsync/pkg/types"
)

// ActiveLister is the part of the reminder store the collector reads
type ActiveLister interface {
	ListActive(ctx context.Context) ([]*types.Reminder, error)
}

// Collector periodically samples the reminder store into gauges
type Collector struct {
	store    ActiveLister
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store ActiveLister) *Collector {
	return &Collector{
		store:    store,
		interval: 15 * time.Second,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	reminders, err := c.store.ListActive(ctx)
	if err != nil {
		return
	}

	now := c.now()
	overdue := 0
	for _, r := range reminders {
		if r.IsOverdue(now) {
			overdue++
		}
	}

	RemindersActive.Set(float64(len(reminders)))
	RemindersOverdue.Set(float64(overdue))
}
