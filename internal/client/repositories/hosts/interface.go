// Package hosts stores the fingerprints pinned for message service
// addresses.
package hosts

import (
	"context"
)

type Repository interface {
	// Get returns "" when address has no pinned fingerprint.
	Get(ctx context.Context, address string) (string, error)
	Set(ctx context.Context, address, fingerprint string) error
	Delete(ctx context.Context, address string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
