package accounts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/dbx"
	"github.com/dmitrijs2005/gophgroups/internal/server/directory"
)

// PostgresRepository stores snapshots in the tables of the 00001 migration.
// Save must run inside a transaction so a reader never sees half a snapshot.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, snap directory.Snapshot) error {
	for _, table := range []string{"group_keys", "group_members", "groups", "users"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	for _, u := range snap.Users {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO users (username, key, salt) VALUES ($1, $2, $3)`,
			u.Name, u.Key, u.Salt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	for _, g := range snap.Groups {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO groups (name, owner) VALUES ($1, $2)`, g.Name, g.Owner); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for i, m := range g.Members {
			if _, err := r.db.ExecContext(ctx,
				`INSERT INTO group_members (group_name, username, position) VALUES ($1, $2, $3)`,
				g.Name, m, i); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		for v, k := range g.Keys {
			if _, err := r.db.ExecContext(ctx,
				`INSERT INTO group_keys (group_name, version, key) VALUES ($1, $2, $3)`,
				g.Name, v, k); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context) (directory.Snapshot, error) {
	var snap directory.Snapshot

	users, err := r.db.QueryContext(ctx, `SELECT username, key, salt FROM users ORDER BY username`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer users.Close()
	for users.Next() {
		var u directory.UserRecord
		if err := users.Scan(&u.Name, &u.Key, &u.Salt); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		snap.Users = append(snap.Users, u)
	}
	if err := users.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	groups, err := r.db.QueryContext(ctx, `SELECT name, owner FROM groups ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer groups.Close()
	index := make(map[string]int)
	for groups.Next() {
		var g directory.GroupRecord
		if err := groups.Scan(&g.Name, &g.Owner); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		index[g.Name] = len(snap.Groups)
		snap.Groups = append(snap.Groups, g)
	}
	if err := groups.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	members, err := r.db.QueryContext(ctx,
		`SELECT group_name, username FROM group_members ORDER BY group_name, position`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer members.Close()
	for members.Next() {
		var group, username string
		if err := members.Scan(&group, &username); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		i, ok := index[group]
		if !ok {
			return snap, fmt.Errorf("%w: member of unknown group %q", directory.ErrCorruptSnapshot, group)
		}
		snap.Groups[i].Members = append(snap.Groups[i].Members, username)
	}
	if err := members.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	keys, err := r.db.QueryContext(ctx,
		`SELECT group_name, version, key FROM group_keys ORDER BY group_name, version`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer keys.Close()
	for keys.Next() {
		var (
			group   string
			version int
			key     []byte
		)
		if err := keys.Scan(&group, &version, &key); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		i, ok := index[group]
		if !ok {
			return snap, fmt.Errorf("%w: key of unknown group %q", directory.ErrCorruptSnapshot, group)
		}
		if version != len(snap.Groups[i].Keys) {
			return snap, fmt.Errorf("%w: group %q key version %d out of order", directory.ErrCorruptSnapshot, group, version)
		}
		snap.Groups[i].Keys = append(snap.Groups[i].Keys, key)
	}
	if err := keys.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	return snap, nil
}
