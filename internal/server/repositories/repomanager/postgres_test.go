package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophgroups/internal/server/repositories/channelindex"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager()

	if _, ok := m.Accounts(db).(*accounts.PostgresRepository); !ok {
		t.Fatal("Accounts() is not a Postgres repository")
	}
	if _, ok := m.ChannelIndex(db).(*channelindex.PostgresRepository); !ok {
		t.Fatal("ChannelIndex() is not a Postgres repository")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewBackend_EmptyDSNIsMemory(t *testing.T) {
	b, err := NewBackend(context.Background(), "")
	require.NoError(t, err)
	defer b.Close()
	assert.False(t, b.Persistent())

	ctx := context.Background()
	dir := directory.Snapshot{Users: []directory.UserRecord{{Name: "alice", Key: []byte("k"), Salt: []byte("s")}}}
	require.NoError(t, b.SaveDirectory(ctx, dir))
	got, err := b.LoadDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	idx := channels.Snapshot{Channels: []channels.ChannelRecord{{Group: "G1", Name: "general", Owner: "alice"}}}
	require.NoError(t, b.SaveChannels(ctx, idx))
	gotIdx, err := b.LoadChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, idx, gotIdx)
}

func TestNewBackend_OpenError(t *testing.T) {
	orig := openDB
	openDB = func(ctx context.Context, driver, dsn string) (*sql.DB, error) {
		return nil, errors.New("refused")
	}
	defer func() { openDB = orig }()

	_, err := NewBackend(context.Background(), "postgres://nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db init error: refused")
}

func TestNewBackend_MigrationError(t *testing.T) {
	db, mock := newDB(t)
	mock.ExpectClose()

	origOpen, origUp := openDB, gooseUpContext
	openDB = func(ctx context.Context, driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, nil
	}
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("bad schema")
	}
	defer func() { openDB, gooseUpContext = origOpen, origUp }()

	_, err := NewBackend(context.Background(), "postgres://db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations: bad schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_SaveDirectoryCommits(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	b := newDBBackend(db, NewPostgresRepositoryManager())
	assert.True(t, b.Persistent())

	mock.ExpectBegin()
	for _, table := range []string{"group_keys", "group_members", "groups", "users"} {
		mock.ExpectExec(`^DELETE\s+FROM\s+` + table + `$`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	require.NoError(t, b.SaveDirectory(context.Background(), directory.Snapshot{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_SaveChannelsRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	b := newDBBackend(db, NewPostgresRepositoryManager())

	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE\s+FROM\s+messages$`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := b.SaveChannels(context.Background(), channels.Snapshot{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_LoadChannels(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()
	b := newDBBackend(db, NewPostgresRepositoryManager())

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM\s+channels`).WillReturnRows(sqlmock.NewRows([]string{"group_name", "name", "owner"}).
		AddRow("G1", "general", "alice"))
	mock.ExpectQuery(`FROM\s+messages`).WillReturnRows(sqlmock.NewRows(
		[]string{"locator", "group_name", "channel_name", "owner", "key_version", "iv", "length"}))
	mock.ExpectCommit()

	got, err := b.LoadChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Channels, 1)
	assert.Equal(t, "alice", got.Channels[0].Owner)
	require.NoError(t, mock.ExpectationsWereMet())
}
