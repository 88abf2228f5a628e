package fanout

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// ChangeHandler receives changes in the order the watcher sees them
type ChangeHandler func(ctx context.Context, c Change)

type cached struct {
	reminder *types.Reminder
	origin   string
}

// Watcher listens to every user's reminders collection and turns document
// writes into before/after changes. The first snapshot only fills the cache.
type Watcher struct {
	client  *firestore.Client
	handler ChangeHandler
	logger  zerolog.Logger

	cache  map[string]cached
	seeded bool
}

// NewWatcher creates a watcher on client
func NewWatcher(client *firestore.Client, handler ChangeHandler) *Watcher {
	return &Watcher{
		client:  client,
		handler: handler,
		logger:  log.WithComponent("watcher"),
		cache:   make(map[string]cached),
	}
}

// Run blocks until ctx is done or the listener fails
func (w *Watcher) Run(ctx context.Context) error {
	it := w.client.CollectionGroup(storage.RemindersCollection).Snapshots(ctx)
	defer it.Stop()

	w.logger.Info().Msg("Watching reminder writes")
	for {
		qs, err := it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("reminder listener failed: %w", err)
		}

		for _, ch := range qs.Changes {
			userID := ""
			if user := ch.Doc.Ref.Parent.Parent; user != nil {
				userID = user.ID
			}

			var doc *storage.RemoteDocument
			if ch.Kind != firestore.DocumentRemoved {
				var d storage.RemoteDocument
				if err := ch.Doc.DataTo(&d); err != nil {
					w.logger.Warn().Err(err).Str("path", ch.Doc.Ref.Path).Msg("Skipping undecodable reminder")
					continue
				}
				if d.ID == "" {
					d.ID = ch.Doc.Ref.ID
				}
				doc = &d
			}

			if c, ok := w.observe(ch.Doc.Ref.Path, userID, ch.Doc.Ref.ID, doc); ok {
				w.handler(ctx, c)
			}
		}
		w.seeded = true
	}
}

// observe updates the cache for one document and returns the change to fan
// out. doc is nil for a removal.
func (w *Watcher) observe(path, userID, reminderID string, doc *storage.RemoteDocument) (Change, bool) {
	prev, hadPrev := w.cache[path]

	var after *types.Reminder
	origin := ""
	if doc != nil {
		r, err := doc.Reminder()
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Skipping malformed reminder")
			return Change{}, false
		}
		after = r
		origin = doc.LastWriterDeviceID
		w.cache[path] = cached{reminder: r, origin: origin}
	} else {
		delete(w.cache, path)
	}

	if !w.seeded || userID == "" {
		return Change{}, false
	}
	if doc == nil && !hadPrev {
		return Change{}, false
	}

	c := Change{
		UserID:         userID,
		ReminderID:     reminderID,
		After:          after,
		OriginDeviceID: origin,
	}
	if hadPrev {
		c.Before = prev.reminder
	}
	return c, true
}
