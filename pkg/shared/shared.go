package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/remindsync/pkg/types"
)

var (
	bucketGroup = []byte("group")

	keyReminders      = []byte("reminders")
	keyPendingActions = []byte("pendingExtensionActions")
)

// FileName is the name of the group database inside its directory
const FileName = "group.db"

// DefaultLockTimeout is how long a transaction waits for the other process
// to release the file lock
const DefaultLockTimeout = 5 * time.Second

// ErrLocked is returned when the file lock could not be acquired in time
var ErrLocked = errors.New("shared storage is locked by another process")

// Group is a storage container shared between the primary process and the
// notification extension. The database is opened for each transaction and
// closed right after, so neither process holds the lock while idle.
type Group struct {
	path    string
	timeout atomic.Int64
}

// Open creates the group directory and database if needed
func Open(dir string) (*Group, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create group directory: %w", err)
	}

	g := &Group{path: filepath.Join(dir, FileName)}
	g.timeout.Store(int64(DefaultLockTimeout))

	err := g.update(func(b *bolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Path returns the database file path
func (g *Group) Path() string {
	return g.path
}

// SetLockTimeout changes how long transactions wait for the file lock
func (g *Group) SetLockTimeout(d time.Duration) {
	g.timeout.Store(int64(d))
}

func (g *Group) open(readOnly bool) (*bolt.DB, error) {
	db, err := bolt.Open(g.path, 0600, &bolt.Options{Timeout: time.Duration(g.timeout.Load()), ReadOnly: readOnly})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to open shared storage: %w", err)
	}
	return db, nil
}

func (g *Group) update(fn func(b *bolt.Bucket) error) error {
	db, err := g.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketGroup)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketGroup, err)
		}
		return fn(b)
	})
}

func (g *Group) view(fn func(b *bolt.Bucket) error) error {
	db, err := g.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketGroup)
		if b == nil {
			return fn(nil)
		}
		return fn(b)
	})
}

// Reminders reads the full reminder array
func (g *Group) Reminders() ([]*types.Reminder, error) {
	var reminders []*types.Reminder
	err := g.view(func(b *bolt.Bucket) error {
		var err error
		reminders, err = decodeReminders(b)
		return err
	})
	return reminders, err
}

// UpdateReminders runs fn over the current reminder array inside one write
// transaction and stores whatever it returns. The write sequence is bumped
// and returned.
func (g *Group) UpdateReminders(fn func([]*types.Reminder) ([]*types.Reminder, error)) (uint64, error) {
	var seq uint64
	err := g.update(func(b *bolt.Bucket) error {
		current, err := decodeReminders(b)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if next == nil {
			next = []*types.Reminder{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		if err := b.Put(keyReminders, data); err != nil {
			return err
		}

		seq, err = b.NextSequence()
		return err
	})
	return seq, err
}

// Sequence returns the write sequence of the reminder array. It changes on
// every UpdateReminders call from any process.
func (g *Group) Sequence() (uint64, error) {
	var seq uint64
	err := g.view(func(b *bolt.Bucket) error {
		if b != nil {
			seq = b.Sequence()
		}
		return nil
	})
	return seq, err
}

// PendingActions reads the queued intents in append order
func (g *Group) PendingActions() ([]types.PendingAction, error) {
	var actions []types.PendingAction
	err := g.view(func(b *bolt.Bucket) error {
		var err error
		actions, err = decodeActions(b)
		return err
	})
	return actions, err
}

// AppendPendingAction adds an intent to the end of the queue. Duplicates are kept.
func (g *Group) AppendPendingAction(a types.PendingAction) error {
	return g.update(func(b *bolt.Bucket) error {
		actions, err := decodeActions(b)
		if err != nil {
			return err
		}
		return putActions(b, append(actions, a))
	})
}

// RemovePendingActions drops the intents with the given IDs and keeps the rest,
// including anything appended since they were read
func (g *Group) RemovePendingActions(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	return g.update(func(b *bolt.Bucket) error {
		actions, err := decodeActions(b)
		if err != nil {
			return err
		}
		kept := actions[:0]
		for _, a := range actions {
			if !drop[a.ID] {
				kept = append(kept, a)
			}
		}
		return putActions(b, kept)
	})
}

func decodeReminders(b *bolt.Bucket) ([]*types.Reminder, error) {
	if b == nil {
		return nil, nil
	}
	data := b.Get(keyReminders)
	if data == nil {
		return nil, nil
	}
	var reminders []*types.Reminder
	if err := json.Unmarshal(data, &reminders); err != nil {
		return nil, fmt.Errorf("failed to decode reminders: %w", err)
	}
	return reminders, nil
}

func decodeActions(b *bolt.Bucket) ([]types.PendingAction, error) {
	if b == nil {
		return nil, nil
	}
	data := b.Get(keyPendingActions)
	if data == nil {
		return nil, nil
	}
	var actions []types.PendingAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("failed to decode pending actions: %w", err)
	}
	return actions, nil
}

func putActions(b *bolt.Bucket, actions []types.PendingAction) error {
	if actions == nil {
		actions = []types.PendingAction{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	return b.Put(keyPendingActions, data)
}

// Backup writes a consistent copy of the group database to path
func (g *Group) Backup(path string) error {
	db, err := g.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(path, 0600)
	}); err != nil {
		return fmt.Errorf("failed to back up shared storage: %w", err)
	}
	return nil
}
