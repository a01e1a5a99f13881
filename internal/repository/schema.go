package repository

import (
	"context"
	"database/sql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		contact_email VARCHAR(255) NOT NULL DEFAULT '',
		contact_phone VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(20) NOT NULL,
		department_id UUID REFERENCES departments(id) ON DELETE SET NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
	`CREATE TABLE IF NOT EXISTS issues (
		id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(100) NOT NULL,
		images TEXT[] NOT NULL DEFAULT '{}',
		location_lat DOUBLE PRECISION,
		location_lng DOUBLE PRECISION,
		status VARCHAR(20) NOT NULL DEFAULT 'Pending',
		reported_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		assigned_to UUID REFERENCES users(id) ON DELETE SET NULL,
		assigned_by UUID REFERENCES users(id) ON DELETE SET NULL,
		assigned_at TIMESTAMPTZ,
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_reported_by ON issues(reported_by)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_assigned_to ON issues(assigned_to)`,
	`CREATE TABLE IF NOT EXISTS issue_comments (
		id UUID PRIMARY KEY,
		issue_id UUID NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		posted_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS polls (
		id UUID PRIMARY KEY,
		question TEXT NOT NULL,
		image TEXT,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		deadline TIMESTAMPTZ NOT NULL,
		total_votes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS poll_options (
		id UUID PRIMARY KEY,
		poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		votes INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS poll_votes (
		poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		option_id UUID NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (poll_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id UUID PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		files TEXT[] NOT NULL DEFAULT '{}',
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		department_id UUID NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
		related_issues UUID[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		sender_id UUID REFERENCES users(id) ON DELETE SET NULL,
		type VARCHAR(20) NOT NULL,
		entity_id UUID NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		group_name VARCHAR(255) NOT NULL DEFAULT '',
		group_admin UUID REFERENCES users(id) ON DELETE SET NULL,
		direct_key VARCHAR(80) UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id UUID PRIMARY KEY,
		chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(chat_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS processed_messages (
		message_id VARCHAR(255) PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// CreateSchema creates every table the API needs. Statements are idempotent.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
