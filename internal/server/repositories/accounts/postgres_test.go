package accounts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	qUsers   = `(?s)^SELECT\s+username,\s*key,\s*salt\s+FROM\s+users\s+ORDER\s+BY\s+username\s*$`
	qGroups  = `(?s)^SELECT\s+name,\s*owner\s+FROM\s+groups\s+ORDER\s+BY\s+name\s*$`
	qMembers = `(?s)^SELECT\s+group_name,\s*username\s+FROM\s+group_members\s+ORDER\s+BY\s+group_name,\s*position\s*$`
	qKeys    = `(?s)^SELECT\s+group_name,\s*version,\s*key\s+FROM\s+group_keys\s+ORDER\s+BY\s+group_name,\s*version\s*$`
)

func sampleSnapshot() directory.Snapshot {
	return directory.Snapshot{
		Users: []directory.UserRecord{
			{Name: "alice", Key: []byte("ka"), Salt: []byte("sa")},
			{Name: "bob", Key: []byte("kb"), Salt: []byte("sb")},
		},
		Groups: []directory.GroupRecord{
			{Name: "G1", Owner: "alice", Members: []string{"alice", "bob"}, Keys: [][]byte{[]byte("k0"), []byte("k1")}},
		},
	}
}

func TestSave_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	for _, table := range []string{"group_keys", "group_members", "groups", "users"} {
		mock.ExpectExec(`^DELETE\s+FROM\s+` + table + `$`).WillReturnResult(sqlmock.NewResult(0, 3))
	}
	insUser := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*key,\s*salt\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	mock.ExpectExec(insUser).WithArgs("alice", []byte("ka"), []byte("sa")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insUser).WithArgs("bob", []byte("kb"), []byte("sb")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+groups\s*\(name,\s*owner\)`).WithArgs("G1", "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	insMember := `(?s)^INSERT\s+INTO\s+group_members\s*\(group_name,\s*username,\s*position\)`
	mock.ExpectExec(insMember).WithArgs("G1", "alice", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insMember).WithArgs("G1", "bob", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	insKey := `(?s)^INSERT\s+INTO\s+group_keys\s*\(group_name,\s*version,\s*key\)`
	mock.ExpectExec(insKey).WithArgs("G1", 0, []byte("k0")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insKey).WithArgs("G1", 1, []byte("k1")).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+group_keys$`).WillReturnError(errors.New("db down"))

	err := repo.Save(context.Background(), sampleSnapshot())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestLoad_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsers).WillReturnRows(sqlmock.NewRows([]string{"username", "key", "salt"}).
		AddRow("alice", []byte("ka"), []byte("sa")).
		AddRow("bob", []byte("kb"), []byte("sb")))
	mock.ExpectQuery(qGroups).WillReturnRows(sqlmock.NewRows([]string{"name", "owner"}).
		AddRow("G1", "alice"))
	mock.ExpectQuery(qMembers).WillReturnRows(sqlmock.NewRows([]string{"group_name", "username"}).
		AddRow("G1", "alice").
		AddRow("G1", "bob"))
	mock.ExpectQuery(qKeys).WillReturnRows(sqlmock.NewRows([]string{"group_name", "version", "key"}).
		AddRow("G1", 0, []byte("k0")).
		AddRow("G1", 1, []byte("k1")))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsers).WillReturnRows(sqlmock.NewRows([]string{"username", "key", "salt"}))
	mock.ExpectQuery(qGroups).WillReturnRows(sqlmock.NewRows([]string{"name", "owner"}))
	mock.ExpectQuery(qMembers).WillReturnRows(sqlmock.NewRows([]string{"group_name", "username"}))
	mock.ExpectQuery(qKeys).WillReturnRows(sqlmock.NewRows([]string{"group_name", "version", "key"}))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Users)
	assert.Empty(t, got.Groups)
}

func TestLoad_KeyGap(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsers).WillReturnRows(sqlmock.NewRows([]string{"username", "key", "salt"}).
		AddRow("alice", []byte("ka"), []byte("sa")))
	mock.ExpectQuery(qGroups).WillReturnRows(sqlmock.NewRows([]string{"name", "owner"}).
		AddRow("G1", "alice"))
	mock.ExpectQuery(qMembers).WillReturnRows(sqlmock.NewRows([]string{"group_name", "username"}).
		AddRow("G1", "alice"))
	mock.ExpectQuery(qKeys).WillReturnRows(sqlmock.NewRows([]string{"group_name", "version", "key"}).
		AddRow("G1", 0, []byte("k0")).
		AddRow("G1", 2, []byte("k2")))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, directory.ErrCorruptSnapshot)
}

func TestLoad_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsers).WillReturnError(errors.New("db down"))

	_, err := repo.Load(context.Background())
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMemoryRepository_IsolatesCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Users)

	snap := sampleSnapshot()
	require.NoError(t, repo.Save(ctx, snap))
	snap.Groups[0].Keys[0][0] = 'X'
	snap.Users[0].Name = "mallory"

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleSnapshot(), got)
}
