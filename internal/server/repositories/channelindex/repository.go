// Package channelindex persists the message service's channel and message
// index. Message bodies are not part of it; they stay in the BlobStore.
package channelindex

import (
	"context"

	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
)

type Repository interface {
	Save(ctx context.Context, snap channels.Snapshot) error
	Load(ctx context.Context) (channels.Snapshot, error)
}
