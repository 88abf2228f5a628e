package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cuemby/remindsync/pkg/storage"
	"github.com/cuemby/remindsync/pkg/types"
)

// DevicesCollection holds registrations under users/{uid}
const DevicesCollection = "devices"

// ErrInvalidDevice is returned for a registration without id or token
var ErrInvalidDevice = errors.New("invalid device registration")

// UserDevice is a registration together with its owner
type UserDevice struct {
	UserID string
	Device types.DeviceRegistration
}

// Registry stores device registrations per user
type Registry interface {
	List(ctx context.Context, userID string) ([]types.DeviceRegistration, error)
	Upsert(ctx context.Context, userID string, d types.DeviceRegistration) error
	Delete(ctx context.Context, userID, deviceID string) error

	// ListStale returns registrations last active at or before cutoff
	ListStale(ctx context.Context, cutoff time.Time) ([]UserDevice, error)
}

func validate(userID string, d types.DeviceRegistration) error {
	if userID == "" || d.DeviceID == "" || d.FCMToken == "" {
		return ErrInvalidDevice
	}
	return nil
}

// FirestoreRegistry keeps registrations at users/{uid}/devices/{deviceId}
type FirestoreRegistry struct {
	client *firestore.Client
}

// NewFirestoreRegistry creates a registry on client
func NewFirestoreRegistry(client *firestore.Client) *FirestoreRegistry {
	return &FirestoreRegistry{client: client}
}

func (r *FirestoreRegistry) devices(userID string) *firestore.CollectionRef {
	return r.client.Collection(storage.UsersCollection).Doc(userID).Collection(DevicesCollection)
}

// List implements Registry
func (r *FirestoreRegistry) List(ctx context.Context, userID string) ([]types.DeviceRegistration, error) {
	snaps, err := r.devices(userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}

	out := make([]types.DeviceRegistration, 0, len(snaps))
	for _, snap := range snaps {
		var d types.DeviceRegistration
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		if d.DeviceID == "" {
			d.DeviceID = snap.Ref.ID
		}
		out = append(out, d)
	}
	return out, nil
}

// Upsert implements Registry
func (r *FirestoreRegistry) Upsert(ctx context.Context, userID string, d types.DeviceRegistration) error {
	if err := validate(userID, d); err != nil {
		return err
	}
	if _, err := r.devices(userID).Doc(d.DeviceID).Set(ctx, d); err != nil {
		return fmt.Errorf("firestore: %w", err)
	}
	return nil
}

// Delete implements Registry. Deleting a missing registration is not an error.
func (r *FirestoreRegistry) Delete(ctx context.Context, userID, deviceID string) error {
	_, err := r.devices(userID).Doc(deviceID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore: %w", err)
	}
	return nil
}

// ListStale implements Registry with a collection group query over every
// user's devices
func (r *FirestoreRegistry) ListStale(ctx context.Context, cutoff time.Time) ([]UserDevice, error) {
	snaps, err := r.client.CollectionGroup(DevicesCollection).
		Where("lastActiveAt", "<=", cutoff).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("firestore: %w", err)
	}

	var out []UserDevice
	for _, snap := range snaps {
		user := snap.Ref.Parent.Parent
		if user == nil {
			continue
		}
		var d types.DeviceRegistration
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		if d.DeviceID == "" {
			d.DeviceID = snap.Ref.ID
		}
		out = append(out, UserDevice{UserID: user.ID, Device: d})
	}
	return out, nil
}

// MemoryRegistry is an in-process Registry for tests and dry runs
type MemoryRegistry struct {
	mu    sync.RWMutex
	users map[string]map[string]types.DeviceRegistration
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{users: make(map[string]map[string]types.DeviceRegistration)}
}

// List implements Registry, ordered by device ID
func (r *MemoryRegistry) List(ctx context.Context, userID string) ([]types.DeviceRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := r.users[userID]
	out := make([]types.DeviceRegistration, 0, len(devices))
	for _, d := range devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

// Upsert implements Registry
func (r *MemoryRegistry) Upsert(ctx context.Context, userID string, d types.DeviceRegistration) error {
	if err := validate(userID, d); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[userID] == nil {
		r.users[userID] = make(map[string]types.DeviceRegistration)
	}
	r.users[userID][d.DeviceID] = d
	return nil
}

// Delete implements Registry
func (r *MemoryRegistry) Delete(ctx context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users[userID], deviceID)
	return nil
}

// ListStale implements Registry
func (r *MemoryRegistry) ListStale(ctx context.Context, cutoff time.Time) ([]UserDevice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []UserDevice
	for userID, devices := range r.users {
		for _, d := range devices {
			if !d.LastActiveAt.After(cutoff) {
				out = append(out, UserDevice{UserID: userID, Device: d})
			}
		}
	}
	return out, nil
}
