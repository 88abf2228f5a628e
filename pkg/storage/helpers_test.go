package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/remindsync/pkg/shared"
)

func dirOf(g *shared.Group) string {
	return filepath.Dir(g.Path())
}

// lockGroup opens the group file for writing and holds its lock until the
// returned func is called
func lockGroup(t *testing.T, g *shared.Group) func() {
	t.Helper()
	db, err := bolt.Open(g.Path(), 0600, nil)
	require.NoError(t, err)
	return func() { _ = db.Close() }
}
