// Package repomanager wires the snapshot repositories to a storage backend:
// Postgres (with goose migrations) when a DSN is configured, process memory
// otherwise.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophgroups/internal/dbx"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/channelindex"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	ChannelIndex(db dbx.DBTX) channelindex.Repository
}
