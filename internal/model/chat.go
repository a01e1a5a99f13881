package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Chat is a direct conversation between two users or a named group with an
// admin. Messages are read by polling; nothing is pushed.
type Chat struct {
	ID           uuid.UUID    `json:"id"`
	IsGroup      bool         `json:"is_group_chat"`
	GroupName    string       `json:"group_name,omitempty"`
	GroupAdmin   *uuid.UUID   `json:"group_admin,omitempty"`
	Participants []uuid.UUID  `json:"participants"`
	LastMessage  *ChatMessage `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectKey identifies the one direct chat a pair of users may share,
// independent of who opened it.
func DirectKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// Request/Response DTOs
type CreateChatRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type CreateGroupChatRequest struct {
	Name  string      `json:"name" binding:"required"`
	Users []uuid.UUID `json:"users" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ChatListResponse struct {
	Chats []Chat `json:"chats"`
	Total int    `json:"total"`
}

type ChatMessagesResponse struct {
	Messages []ChatMessage `json:"messages"`
	Total    int           `json:"total"`
}
