package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cuemby/remindsync/pkg/types"
)

var (
	// ErrNotFound is returned when a reminder does not exist
	ErrNotFound = errors.New("reminder not found")

	// ErrNotAuthenticated is returned by the remote backend without a usable identity
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidData marks a stored record that could not be decoded
	ErrInvalidData = errors.New("invalid reminder data")

	// ErrAlreadyExists is returned by Create for a reused ID
	ErrAlreadyExists = errors.New("reminder already exists")
)

// Backend identifies where reminders are persisted
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

// Store defines the interface for reminder storage
type Store interface {
	// Mutations
	Create(ctx context.Context, r *types.Reminder) error
	Get(ctx context.Context, id string) (*types.Reminder, error)
	Update(ctx context.Context, r *types.Reminder) error
	Complete(ctx context.Context, id string) (*types.Reminder, error)
	Snooze(ctx context.Context, id string, until time.Time) (*types.Reminder, error)
	Delete(ctx context.Context, id string) error

	// CompleteIfTrigger completes the reminder only while it is active and its
	// TriggerDate still equals expected. applied is false when it was skipped.
	CompleteIfTrigger(ctx context.Context, id string, expected time.Time) (r *types.Reminder, applied bool, err error)

	// Queries
	ListActive(ctx context.Context) ([]*types.Reminder, error)
	ObserveActive(ctx context.Context) (*Subscription, error)

	// Refresh makes every open subscription re-read and re-emit
	Refresh()

	// Utility
	Backend() Backend
	Close() error
}

// SortActive orders reminders by effective instant ascending, ties by ID
func SortActive(reminders []*types.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		ei, ej := reminders[i].Effective(), reminders[j].Effective()
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return reminders[i].ID < reminders[j].ID
	})
}

func filterActive(reminders []*types.Reminder) []*types.Reminder {
	active := make([]*types.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	SortActive(active)
	return active
}
