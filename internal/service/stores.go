package service

import (
	"context"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
)

// The store interfaces below are satisfied by the Postgres repositories and
// by the in-memory stores in testutil.

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	List(ctx context.Context, excludeID uuid.UUID) ([]model.User, error)
	ListActiveIDsByRoles(ctx context.Context, roles ...model.Role) ([]uuid.UUID, error)
	ListIDsByDepartment(ctx context.Context, departmentID uuid.UUID) ([]uuid.UUID, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role model.Role, departmentID *uuid.UUID) error
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int, error)
}

type DepartmentStore interface {
	Create(ctx context.Context, dept *model.Department) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Department, error)
	List(ctx context.Context) ([]model.Department, error)
}

type IssueStore interface {
	Create(ctx context.Context, issue *model.Issue) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Issue, error)
	List(ctx context.Context, filter model.IssueFilter) ([]model.Issue, error)
	// Mutate applies fn to the issue under a row lock and writes the result
	// back in the same transaction. Nothing is written when fn fails.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*model.Issue) error) (*model.Issue, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddComment(ctx context.Context, comment *model.Comment) error
	Missing(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	CountUnresolved(ctx context.Context) (int, error)
	CountByReporter(ctx context.Context, userID uuid.UUID, status *model.IssueStatus) (int, error)
}

type PollStore interface {
	Create(ctx context.Context, poll *model.Poll) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Poll, error)
	List(ctx context.Context, activeAt *time.Time) ([]model.Poll, error)
	Update(ctx context.Context, poll *model.Poll) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountActive(ctx context.Context, now time.Time) (int, error)
	// Mutate applies fn to the poll under a per-poll lock and persists the
	// result atomically. Nothing is persisted when fn fails.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*model.Poll) error) (*model.Poll, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) error
}

type ReportStore interface {
	Create(ctx context.Context, report *model.Report) error
	List(ctx context.Context, departmentID *uuid.UUID) ([]model.Report, error)
	Count(ctx context.Context) (int, error)
}

type ChatStore interface {
	Create(ctx context.Context, chat *model.Chat) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Chat, error)
	FindDirect(ctx context.Context, a, b uuid.UUID) (*model.Chat, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]model.Chat, error)
	AddMessage(ctx context.Context, msg *model.ChatMessage) error
	Messages(ctx context.Context, chatID uuid.UUID, limit int) ([]model.ChatMessage, error)
}
