package dbx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSnapshotDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE users (name TEXT PRIMARY KEY, salt BLOB NOT NULL)`)
	require.NoError(t, err)
	return db
}

func userCount(t *testing.T, db DBTX) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&n))
	return n
}

// replaceUsers mimics a snapshot save: wipe the table, then insert everything.
func replaceUsers(ctx context.Context, tx DBTX, names ...string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return err
	}
	for _, n := range names {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users(name, salt) VALUES (?, ?)`, n, []byte("salt")); err != nil {
			return err
		}
	}
	return nil
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "no-such-driver", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open no-such-driver")
}

func TestWithTx_CommitsWholeSnapshot(t *testing.T) {
	db := openSnapshotDB(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return replaceUsers(ctx, tx, "admin", "alice", "bob")
	}))
	assert.Equal(t, 3, userCount(t, db))
}

func TestWithTx_FailedSaveKeepsPreviousSnapshot(t *testing.T) {
	db := openSnapshotDB(t)
	ctx := context.Background()
	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return replaceUsers(ctx, tx, "admin")
	}))

	// duplicate primary key fails halfway through
	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return replaceUsers(ctx, tx, "alice", "alice")
	})
	require.Error(t, err)

	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM users`).Scan(&name))
	assert.Equal(t, "admin", name)
	assert.Equal(t, 1, userCount(t, db))
}

func TestWithTx_ReturnsFnError(t *testing.T) {
	db := openSnapshotDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, replaceUsers(ctx, tx, "alice"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, userCount(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openSnapshotDB(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		assert.Equal(t, 0, userCount(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, replaceUsers(ctx, tx, "alice"))
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := openSnapshotDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
}
