package storage

import (
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/cuemby/remindsync/pkg/log"
	"github.com/cuemby/remindsync/pkg/shared"
)

// Options selects and configures a backend
type Options struct {
	// Group is the shared storage group used by the local backend
	Group *shared.Group

	// Firestore and UserID enable the remote backend
	Firestore *firestore.Client
	UserID    string
	DeviceID  string
}

// Open returns the remote backend when a signed-in identity and a Firestore
// client are configured, and the local backend otherwise
func Open(opts Options) (Store, error) {
	if opts.Firestore != nil && opts.UserID != "" {
		log.Logger.Info().
			Str("backend", string(BackendRemote)).
			Str("user_id", opts.UserID).
			Msg("Opening reminder store")
		return NewRemoteStore(opts.Firestore, opts.UserID, opts.DeviceID)
	}

	if opts.Group == nil {
		return nil, fmt.Errorf("shared storage group is required for the local backend")
	}
	log.Logger.Info().
		Str("backend", string(BackendLocal)).
		Str("path", opts.Group.Path()).
		Msg("Opening reminder store")
	return NewLocalStore(opts.Group), nil
}
