package repository

import (
	"context"
	"database/sql"
	"errors"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

const chatColumns = `id, is_group, group_name, group_admin, created_at, updated_at`

func scanChat(row rowScanner) (*model.Chat, error) {
	chat := &model.Chat{}
	var admin uuid.NullUUID
	err := row.Scan(
		&chat.ID,
		&chat.IsGroup,
		&chat.GroupName,
		&admin,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if admin.Valid {
		chat.GroupAdmin = &admin.UUID
	}
	return chat, nil
}

// Create inserts the chat and its participants in one transaction. A second
// direct chat for the same pair fails with ErrDuplicate.
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var directKey sql.NullString
	if !chat.IsGroup && len(chat.Participants) == 2 {
		directKey = sql.NullString{String: model.DirectKey(chat.Participants[0], chat.Participants[1]), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, group_name, group_admin, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, chat.ID, chat.IsGroup, chat.GroupName, chat.GroupAdmin, directKey, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return translate(err)
	}

	for _, userID := range chat.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`, chat.ID, userID)
		if err != nil {
			return translate(err)
		}
	}

	return tx.Commit()
}

func (r *ChatRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Chat, error) {
	chat, err := scanChat(r.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	if err := r.loadDetails(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// FindDirect returns the direct chat between a and b.
func (r *ChatRepository) FindDirect(ctx context.Context, a, b uuid.UUID) (*model.Chat, error) {
	chat, err := scanChat(r.db.QueryRowContext(ctx,
		`SELECT `+chatColumns+` FROM chats WHERE direct_key = $1`, model.DirectKey(a, b)))
	if err != nil {
		return nil, translate(err)
	}
	if err := r.loadDetails(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// ListByParticipant returns the user's chats, most recently active first.
func (r *ChatRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]model.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.is_group, c.group_name, c.group_admin, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_participants p ON p.chat_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	var chats []*model.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		chats = append(chats, chat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Chat, 0, len(chats))
	for _, chat := range chats {
		if err := r.loadDetails(ctx, chat); err != nil {
			return nil, err
		}
		out = append(out, *chat)
	}
	return out, nil
}

// AddMessage stores msg and bumps the chat's activity time together.
func (r *ChatRepository) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = $1 WHERE id = $2`, msg.CreatedAt, msg.ChatID)
	if err != nil {
		return err
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, chat_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return translate(err)
	}

	return tx.Commit()
}

// Messages returns up to limit of the chat's latest messages, oldest first.
func (r *ChatRepository) Messages(ctx context.Context, chatID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at FROM (
			SELECT id, chat_id, sender_id, content, created_at
			FROM chat_messages WHERE chat_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest ORDER BY created_at ASC
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *ChatRepository) loadDetails(ctx context.Context, chat *model.Chat) error {
	ids, err := queryIDs(ctx, r.db,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id`, chat.ID)
	if err != nil {
		return err
	}
	chat.Participants = ids
	if chat.Participants == nil {
		chat.Participants = []uuid.UUID{}
	}

	var m model.ChatMessage
	err = r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, sender_id, content, created_at
		FROM chat_messages WHERE chat_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, chat.ID).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		chat.LastMessage = &m
	}
	return nil
}
