package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/dbx"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/channelindex"
)

// Backend saves and loads whole store snapshots. With a database each call
// runs in its own transaction, so a snapshot is written or read atomically.
type Backend struct {
	db      *sql.DB
	manager RepositoryManager

	accounts accounts.Repository
	index    channelindex.Repository
}

// openDB is a seam for tests.
var openDB = dbx.Open

// NewBackend connects to dsn and migrates the schema. An empty dsn selects
// in-memory repositories.
func NewBackend(ctx context.Context, dsn string) (*Backend, error) {
	if dsn == "" {
		return NewMemoryBackend(), nil
	}
	db, err := openDB(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	b := newDBBackend(db, NewPostgresRepositoryManager())
	if err := b.manager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return b, nil
}

func NewMemoryBackend() *Backend {
	return &Backend{
		accounts: accounts.NewMemoryRepository(),
		index:    channelindex.NewMemoryRepository(),
	}
}

func newDBBackend(db *sql.DB, m RepositoryManager) *Backend {
	return &Backend{db: db, manager: m}
}

// Persistent reports whether snapshots outlive the process.
func (b *Backend) Persistent() bool {
	return b.db != nil
}

func (b *Backend) SaveDirectory(ctx context.Context, snap directory.Snapshot) error {
	if b.db == nil {
		return b.accounts.Save(ctx, snap)
	}
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return b.manager.Accounts(tx).Save(ctx, snap)
	})
}

func (b *Backend) LoadDirectory(ctx context.Context) (snap directory.Snapshot, err error) {
	if b.db == nil {
		return b.accounts.Load(ctx)
	}
	err = dbx.WithTx(ctx, b.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		snap, err = b.manager.Accounts(tx).Load(ctx)
		return err
	})
	return snap, err
}

func (b *Backend) SaveChannels(ctx context.Context, snap channels.Snapshot) error {
	if b.db == nil {
		return b.index.Save(ctx, snap)
	}
	return dbx.WithTx(ctx, b.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return b.manager.ChannelIndex(tx).Save(ctx, snap)
	})
}

func (b *Backend) LoadChannels(ctx context.Context) (snap channels.Snapshot, err error) {
	if b.db == nil {
		return b.index.Load(ctx)
	}
	err = dbx.WithTx(ctx, b.db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx dbx.DBTX) error {
		snap, err = b.manager.ChannelIndex(tx).Load(ctx)
		return err
	})
	return snap, err
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
