package service

import (
	"context"
	"errors"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const notificationPageSize = 50

type NotificationService struct {
	notifications NotificationStore
}

func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns the newest notifications of user with the unread count.
func (s *NotificationService) List(ctx context.Context, user *model.User) (*model.NotificationListResponse, error) {
	resp := &model.NotificationListResponse{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resp.Notifications, err = s.notifications.ListByRecipient(gctx, user.ID, notificationPageSize)
		return err
	})
	g.Go(func() error {
		var err error
		resp.UnreadCount, err = s.notifications.UnreadCount(gctx, user.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, user *model.User, id uuid.UUID) error {
	err := s.notifications.MarkAsRead(ctx, id, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("notification")
	}
	return err
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, user *model.User) error {
	return s.notifications.MarkAllAsRead(ctx, user.ID)
}
