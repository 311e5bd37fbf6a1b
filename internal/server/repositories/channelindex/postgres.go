package channelindex

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophgroups/internal/dbx"
	"github.com/dmitrijs2005/gophgroups/internal/server/channels"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save replaces the stored index with snap. Run it inside dbx.WithTx.
func (r *PostgresRepository) Save(ctx context.Context, snap channels.Snapshot) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM channels`); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, c := range snap.Channels {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO channels (group_name, name, owner) VALUES ($1, $2, $3)`,
			c.Group, c.Name, c.Owner); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for i, m := range c.Messages {
			_, err := r.db.ExecContext(ctx, `
				INSERT INTO messages (locator, group_name, channel_name, owner, key_version, iv, length, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				m.Locator, c.Group, c.Name, m.Owner, m.KeyVersion, m.IV, m.Length, i)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context) (channels.Snapshot, error) {
	var snap channels.Snapshot

	rows, err := r.db.QueryContext(ctx, `SELECT group_name, name, owner FROM channels ORDER BY group_name, name`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	index := make(map[[2]string]int)
	for rows.Next() {
		var c channels.ChannelRecord
		if err := rows.Scan(&c.Group, &c.Name, &c.Owner); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		index[[2]string{c.Group, c.Name}] = len(snap.Channels)
		snap.Channels = append(snap.Channels, c)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	msgs, err := r.db.QueryContext(ctx, `
		SELECT locator, group_name, channel_name, owner, key_version, iv, length
		FROM messages
		ORDER BY group_name, channel_name, position`)
	if err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}
	defer msgs.Close()
	for msgs.Next() {
		var m channels.Message
		if err := msgs.Scan(&m.Locator, &m.Group, &m.Channel, &m.Owner, &m.KeyVersion, &m.IV, &m.Length); err != nil {
			return snap, fmt.Errorf("db error: %w", err)
		}
		i, ok := index[[2]string{m.Group, m.Channel}]
		if !ok {
			return snap, fmt.Errorf("%w: message %q in unknown channel %s/%s", channels.ErrCorruptSnapshot, m.Locator, m.Group, m.Channel)
		}
		snap.Channels[i].Messages = append(snap.Channels[i].Messages, m)
	}
	if err := msgs.Err(); err != nil {
		return snap, fmt.Errorf("db error: %w", err)
	}

	return snap, nil
}
