package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
)

const chatHistoryLimit = 100

type ChatService struct {
	notifying
	chats ChatStore
	users UserStore
	now   func() time.Time
}

func NewChatService(chats ChatStore, users UserStore, notifier Notifier, logger *slog.Logger) *ChatService {
	return &ChatService{
		notifying: notifying{notifier: notifier, logger: logger},
		chats:     chats,
		users:     users,
		now:       time.Now,
	}
}

func (s *ChatService) List(ctx context.Context, user *model.User) ([]model.Chat, error) {
	return s.chats.ListByParticipant(ctx, user.ID)
}

// OpenDirect returns the direct chat between user and otherID, creating it on
// first use. created reports whether a new chat was made.
func (s *ChatService) OpenDirect(ctx context.Context, user *model.User, otherID uuid.UUID) (chat *model.Chat, created bool, err error) {
	if otherID == user.ID {
		return nil, false, invalidInput("cannot open a chat with yourself")
	}
	if err := s.checkUsers(ctx, otherID); err != nil {
		return nil, false, err
	}

	chat, err = s.chats.FindDirect(ctx, user.ID, otherID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	now := s.now()
	chat = &model.Chat{
		ID:           uuid.New(),
		Participants: []uuid.UUID{user.ID, otherID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, err
		}
		// Opened concurrently by the other side.
		chat, err = s.chats.FindDirect(ctx, user.ID, otherID)
		if err != nil {
			return nil, false, err
		}
		return chat, false, nil
	}
	return chat, true, nil
}

// CreateGroup starts a named chat with user as its admin. At least two other
// members are required.
func (s *ChatService) CreateGroup(ctx context.Context, user *model.User, req *model.CreateGroupChatRequest) (*model.Chat, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidInput("group name is required")
	}

	seen := map[uuid.UUID]bool{user.ID: true}
	members := []uuid.UUID{}
	for _, id := range req.Users {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) < 2 {
		return nil, invalidInput("a group chat needs at least two other members")
	}
	if err := s.checkUsers(ctx, members...); err != nil {
		return nil, err
	}

	now := s.now()
	chat := &model.Chat{
		ID:           uuid.New(),
		IsGroup:      true,
		GroupName:    name,
		GroupAdmin:   &user.ID,
		Participants: append([]uuid.UUID{user.ID}, members...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// Send posts a message and notifies the other participants.
func (s *ChatService) Send(ctx context.Context, user *model.User, chatID uuid.UUID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidInput("message content is required")
	}

	chat, err := s.member(ctx, user, chatID)
	if err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		SenderID:  user.ID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.chats.AddMessage(ctx, msg); err != nil {
		return nil, chatErr(err)
	}

	text := "New message from " + user.Username
	if chat.IsGroup {
		text += " in " + chat.GroupName
	}
	s.notify(ctx, model.NotificationEvent{
		Type:     model.NotificationMessage,
		SenderID: &user.ID,
		EntityID: chat.ID,
		Message:  text,
	}, model.Users(chat.Participants...))

	return msg, nil
}

// Messages returns the latest messages of a chat the user takes part in.
func (s *ChatService) Messages(ctx context.Context, user *model.User, chatID uuid.UUID) ([]model.ChatMessage, error) {
	if _, err := s.member(ctx, user, chatID); err != nil {
		return nil, err
	}
	return s.chats.Messages(ctx, chatID, chatHistoryLimit)
}

func (s *ChatService) member(ctx context.Context, user *model.User, chatID uuid.UUID) (*model.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, chatErr(err)
	}
	if !chat.HasParticipant(user.ID) {
		return nil, forbidden("not a participant of this chat")
	}
	return chat, nil
}

// checkUsers requires every id to name an active user.
func (s *ChatService) checkUsers(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		u, err := s.users.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
			return invalidReference("user not found: " + id.String())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func chatErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("chat")
	}
	return err
}
