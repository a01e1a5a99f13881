package repository

import (
	"context"
	"database/sql"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, sender_id, type, entity_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.SenderID,
		n.Type,
		n.EntityID,
		n.Message,
		n.IsRead,
		n.CreatedAt,
	)
	return translate(err)
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, recipient_id, sender_id, type, entity_id, message, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var sender uuid.NullUUID
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&sender,
			&n.Type,
			&n.EntityID,
			&n.Message,
			&n.IsRead,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if sender.Valid {
			n.SenderID = &sender.UUID
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`
	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	return count, err
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *NotificationRepository) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)`, messageID).Scan(&exists)
	return exists, err
}

func (r *NotificationRepository) MarkMessageProcessed(ctx context.Context, messageID string) error {
	query := `
		INSERT INTO processed_messages (message_id, processed_at) VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, messageID, time.Now())
	return err
}
