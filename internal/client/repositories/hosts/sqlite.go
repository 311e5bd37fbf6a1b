package hosts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, address string) (string, error) {
	var fp string
	err := r.db.QueryRowContext(ctx, `SELECT fingerprint FROM hosts WHERE address = ?`, address).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get host[%s]: %w", address, err)
	}
	return fp, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, address, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hosts (address, fingerprint) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET fingerprint = excluded.fingerprint, pinned_at = CURRENT_TIMESTAMP
	`, address, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to set host[%s]: %w", address, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM hosts WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("failed to delete host[%s]: %w", address, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM hosts`)
	if err != nil {
		return fmt.Errorf("failed to clear hosts: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT address, fingerprint FROM hosts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var address, fp string
		if err := rows.Scan(&address, &fp); err != nil {
			return nil, fmt.Errorf("failed to scan host row: %w", err)
		}
		result[address] = fp
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate host rows: %w", err)
	}

	return result, nil
}
