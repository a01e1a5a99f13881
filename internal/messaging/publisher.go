package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/google/uuid"
)

// Message is the wire body of a queued notification event.
type Message struct {
	Event       model.NotificationEvent `json:"event"`
	Audience    model.Audience          `json:"audience"`
	PublishedAt time.Time               `json:"published_at"`
}

func Encode(event model.NotificationEvent, audience model.Audience) ([]byte, error) {
	return json.Marshal(Message{Event: event, Audience: audience, PublishedAt: time.Now().UTC()})
}

func Decode(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode notification message: %w", err)
	}
	if !msg.Event.Type.Valid() {
		return nil, fmt.Errorf("decode notification message: unknown type %q", msg.Event.Type)
	}
	return &msg, nil
}

func RoutingKey(t model.NotificationType) string {
	return RoutingKeyPrefix + string(t)
}

type broker interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Publisher queues notification events on RabbitMQ. When the broker is
// unreachable the event is delivered in-process instead.
type Publisher struct {
	broker   broker
	fallback service.Notifier
	logger   *slog.Logger
}

func NewPublisher(broker broker, fallback service.Notifier, logger *slog.Logger) *Publisher {
	return &Publisher{broker: broker, fallback: fallback, logger: logger}
}

func (p *Publisher) Notify(ctx context.Context, event model.NotificationEvent, audience model.Audience) error {
	body, err := Encode(event, audience)
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	if err := p.broker.Publish(ctx, RoutingKey(event.Type), messageID, body); err != nil {
		p.logger.Warn("publish failed, delivering in-process",
			"type", event.Type, "entity", event.EntityID, "error", err)
		return p.fallback.Notify(ctx, event, audience)
	}
	return nil
}
