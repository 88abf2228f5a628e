package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DeliveryHandler is called, outside any lock, when an alert fires
type DeliveryHandler func(Alert)

// TimerCenter is an in-process AlertCenter with one time.Timer per pending alert
type TimerCenter struct {
	handler DeliveryHandler

	mu        sync.Mutex
	pending   map[string]*pendingAlert
	delivered map[string]Alert
	badge     int
	stopped   bool
}

type pendingAlert struct {
	alert Alert
	timer *time.Timer
}

// NewTimerCenter creates a center that hands fired alerts to handler
func NewTimerCenter(handler DeliveryHandler) *TimerCenter {
	return &TimerCenter{
		handler:   handler,
		pending:   make(map[string]*pendingAlert),
		delivered: make(map[string]Alert),
	}
}

// Add implements AlertCenter. An alert with the same ID replaces the old one.
func (c *TimerCenter) Add(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return fmt.Errorf("alert center stopped")
	}
	if old, ok := c.pending[a.ID]; ok {
		old.timer.Stop()
	}

	p := &pendingAlert{alert: a}
	p.timer = time.AfterFunc(time.Until(a.FireAt), func() { c.fire(p) })
	c.pending[a.ID] = p
	return nil
}

func (c *TimerCenter) fire(p *pendingAlert) {
	c.mu.Lock()
	// a replaced or removed alert must not fire
	if cur, ok := c.pending[p.alert.ID]; !ok || cur != p || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, p.alert.ID)
	c.delivered[p.alert.ID] = p.alert
	c.mu.Unlock()

	if c.handler != nil {
		c.handler(p.alert)
	}
}

// RemovePending implements AlertCenter
func (c *TimerCenter) RemovePending(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if p, ok := c.pending[id]; ok {
			p.timer.Stop()
			delete(c.pending, id)
		}
	}
}

// RemoveDelivered implements AlertCenter
func (c *TimerCenter) RemoveDelivered(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.delivered, id)
	}
}

// RemoveAllPending implements AlertCenter
func (c *TimerCenter) RemoveAllPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}

// Pending implements AlertCenter
func (c *TimerCenter) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.pending)
}

// Delivered returns the IDs of alerts that fired and were not removed
func (c *TimerCenter) Delivered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.delivered)
}

// PendingAlert returns the pending alert for id
func (c *TimerCenter) PendingAlert(id string) (Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return Alert{}, false
	}
	return p.alert, true
}

// SetBadge implements AlertCenter
func (c *TimerCenter) SetBadge(n int) {
	c.mu.Lock()
	c.badge = n
	c.mu.Unlock()
}

// Badge returns the last badge set
func (c *TimerCenter) Badge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.badge
}

// Stop cancels every timer; later Adds fail
func (c *TimerCenter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
