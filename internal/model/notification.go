package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationIssue      NotificationType = "issue"
	NotificationPoll       NotificationType = "poll"
	NotificationReport     NotificationType = "report"
	NotificationMessage    NotificationType = "message"
	NotificationAssignment NotificationType = "assignment"
	NotificationStatus     NotificationType = "status"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationIssue, NotificationPoll, NotificationReport,
		NotificationMessage, NotificationAssignment, NotificationStatus:
		return true
	}
	return false
}

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	SenderID    *uuid.UUID       `json:"sender_id,omitempty"`
	Type        NotificationType `json:"type"`
	EntityID    uuid.UUID        `json:"entity_id"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationEvent is what a state change wants to tell its audience.
type NotificationEvent struct {
	Type     NotificationType `json:"type"`
	SenderID *uuid.UUID       `json:"sender_id,omitempty"`
	EntityID uuid.UUID        `json:"entity_id"`
	Message  string           `json:"message"`
}

// Audience is the recipient group of an event: explicit users plus every
// member of the listed roles.
type Audience struct {
	UserIDs []uuid.UUID `json:"user_ids,omitempty"`
	Roles   []Role      `json:"roles,omitempty"`
}

func Users(ids ...uuid.UUID) Audience { return Audience{UserIDs: ids} }

func Roles(roles ...Role) Audience { return Audience{Roles: roles} }

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
