// Package accounts persists directory snapshots: users, groups, memberships
// and group key versions.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
)

type Repository interface {
	// Save replaces the stored directory with snap.
	Save(ctx context.Context, snap directory.Snapshot) error
	// Load returns the stored directory, empty if nothing was saved yet.
	Load(ctx context.Context) (directory.Snapshot, error)
}
