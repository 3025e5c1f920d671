package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/devyljin/jintranet-back/internal/models"
	"github.com/devyljin/jintranet-back/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChannelRepo struct{ db *pgxpool.Pool }

func NewChannelRepo(db *pgxpool.Pool) repository.ChannelRepository { return &ChannelRepo{db: db} }

// ListRoots returns channels with no parent. Children and messages are not
// loaded here; the detail view fetches one channel with its relations.
func (r *ChannelRepo) ListRoots(ctx context.Context) ([]models.ChatChannel, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, visibility, status, COALESCE(parent_id::text, ''), created_at, updated_at
		FROM chat_channels
		WHERE parent_id IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChannels(rows)
}

// Get loads one channel with its direct sub-channels and messages.
func (r *ChannelRepo) Get(ctx context.Context, id string) (*models.ChatChannel, error) {
	var ch models.ChatChannel
	err := r.db.QueryRow(ctx, `
		SELECT id, name, visibility, status, COALESCE(parent_id::text, ''), created_at, updated_at
		FROM chat_channels WHERE id = $1
	`, id).Scan(&ch.ID, &ch.Name, &ch.Visibility, &ch.Status, &ch.ParentID, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	subRows, err := r.db.Query(ctx, `
		SELECT id, name, visibility, status, COALESCE(parent_id::text, ''), created_at, updated_at
		FROM chat_channels
		WHERE parent_id = $1
		ORDER BY created_at ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()
	if ch.SubChannels, err = scanChannels(subRows); err != nil {
		return nil, err
	}

	msgRows, err := r.db.Query(ctx, `
		SELECT id, channel_id, content, COALESCE(sub_channel_id::text, ''), created_at
		FROM chat_messages
		WHERE channel_id = $1
		ORDER BY created_at ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m models.ChatMessage
		if err := msgRows.Scan(&m.ID, &m.ChannelID, &m.Content, &m.SubChannelID, &m.CreatedAt); err != nil {
			return nil, err
		}
		ch.Messages = append(ch.Messages, m)
	}
	return &ch, msgRows.Err()
}

// Create inserts a channel. The parent reference is written once here and
// never reassigned, which keeps the tree acyclic.
func (r *ChannelRepo) Create(ctx context.Context, ch *models.ChatChannel) error {
	now := time.Now()
	err := r.db.QueryRow(ctx, `
		INSERT INTO chat_channels (name, visibility, status, parent_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`,
		ch.Name, ch.Visibility, ch.Status, nullIfEmpty(ch.ParentID), now, now,
	).Scan(&ch.ID, &ch.CreatedAt, &ch.UpdatedAt)
	return err
}

// Delete removes a channel; chat_messages rows cascade via FK.
func (r *ChannelRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM chat_channels WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ChannelRepo) AddMessage(ctx context.Context, channelID, content string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (channel_id, content)
		VALUES ($1,$2)
		RETURNING id, channel_id, content, created_at
	`, channelID, content).Scan(&m.ID, &m.ChannelID, &m.Content, &m.CreatedAt)
	return &m, err
}

func scanChannels(rows pgx.Rows) ([]models.ChatChannel, error) {
	var out []models.ChatChannel
	for rows.Next() {
		var ch models.ChatChannel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Visibility, &ch.Status, &ch.ParentID, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
