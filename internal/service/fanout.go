package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"smartcity/internal/model"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Notifier delivers an event to every member of an audience.
type Notifier interface {
	Notify(ctx context.Context, event model.NotificationEvent, audience model.Audience) error
}

type FanOutResult struct {
	Delivered int
	Failed    int
}

const fanOutConcurrency = 8

// FanOut writes one notification per recipient. A failed write is logged
// and counted but does not undo or stop the others.
type FanOut struct {
	users         UserStore
	notifications NotificationStore
	logger        *slog.Logger
}

func NewFanOut(users UserStore, notifications NotificationStore, logger *slog.Logger) *FanOut {
	return &FanOut{users: users, notifications: notifications, logger: logger}
}

func (f *FanOut) Notify(ctx context.Context, event model.NotificationEvent, audience model.Audience) error {
	_, err := f.Deliver(ctx, event, audience)
	return err
}

// Deliver resolves the audience and creates the notifications. Only a
// failure to resolve the audience is returned as an error.
func (f *FanOut) Deliver(ctx context.Context, event model.NotificationEvent, audience model.Audience) (FanOutResult, error) {
	recipients, err := f.resolve(ctx, event, audience)
	if err != nil {
		return FanOutResult{}, err
	}

	var delivered, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutConcurrency)
	for _, recipient := range recipients {
		recipient := recipient
		g.Go(func() error {
			n := &model.Notification{
				ID:          uuid.New(),
				RecipientID: recipient,
				SenderID:    event.SenderID,
				Type:        event.Type,
				EntityID:    event.EntityID,
				Message:     event.Message,
				CreatedAt:   time.Now(),
			}
			if err := f.notifications.Create(gctx, n); err != nil {
				failed.Add(1)
				f.logger.Warn("notification write failed",
					"recipient", recipient, "type", event.Type, "entity", event.EntityID, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := FanOutResult{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	if result.Failed > 0 {
		f.logger.Warn("notification fan-out partially failed",
			"type", event.Type, "delivered", result.Delivered, "failed", result.Failed)
	}
	return result, nil
}

// resolve expands roles into users, removes duplicates and the sender.
func (f *FanOut) resolve(ctx context.Context, event model.NotificationEvent, audience model.Audience) ([]uuid.UUID, error) {
	ids := append([]uuid.UUID(nil), audience.UserIDs...)
	if len(audience.Roles) > 0 {
		members, err := f.users.ListActiveIDsByRoles(ctx, audience.Roles...)
		if err != nil {
			return nil, err
		}
		ids = append(ids, members...)
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if event.SenderID != nil && id == *event.SenderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// notifying is embedded by services that emit events. Delivery problems are
// logged and never fail the calling operation.
type notifying struct {
	notifier Notifier
	logger   *slog.Logger
}

func (n notifying) notify(ctx context.Context, event model.NotificationEvent, audience model.Audience) {
	if err := n.notifier.Notify(ctx, event, audience); err != nil {
		n.logger.Error("failed to send notifications", "type", event.Type, "entity", event.EntityID, "error", err)
	}
}
