package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/service"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetryAttempts = 3
	initialDelay     = 1 * time.Second
	maxDelay         = 30 * time.Second
	resubscribeDelay = 5 * time.Second
)

type deliverySource interface {
	ConsumeQueue(queueName string) (<-chan amqp.Delivery, error)
}

type deliverer interface {
	Deliver(ctx context.Context, event model.NotificationEvent, audience model.Audience) (service.FanOutResult, error)
}

// ProcessedStore remembers message ids so redelivered messages are not
// fanned out twice.
type ProcessedStore interface {
	IsMessageProcessed(ctx context.Context, messageID string) (bool, error)
	MarkMessageProcessed(ctx context.Context, messageID string) error
}

// Consumer drains the notifications queue into the fan-out.
type Consumer struct {
	source    deliverySource
	fanout    deliverer
	processed ProcessedStore
	logger    *slog.Logger
	delay     time.Duration
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewConsumer(source deliverySource, fanout deliverer, processed ProcessedStore, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:    source,
		fanout:    fanout,
		processed: processed,
		logger:    logger,
		delay:     initialDelay,
		done:      make(chan struct{}),
	}
}

func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consumeQueue(QueueNotifications)
	c.logger.Info("notification consumer started", "queue", QueueNotifications)
}

func (c *Consumer) Stop() {
	close(c.done)
	c.wg.Wait()
	c.logger.Info("notification consumer stopped")
}

func (c *Consumer) consumeQueue(queueName string) {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		msgs, err := c.source.ConsumeQueue(queueName)
		if err != nil {
			c.logger.Warn("consume failed", "queue", queueName, "error", err, "retry_in", resubscribeDelay)
			select {
			case <-c.done:
				return
			case <-time.After(resubscribeDelay):
			}
			continue
		}

		c.processQueue(queueName, msgs)
	}
}

func (c *Consumer) processQueue(queueName string, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("delivery channel closed, resubscribing", "queue", queueName)
				return
			}
			c.processMessage(context.Background(), msg)
		}
	}
}

// processMessage acks a message once its audience has been resolved and
// written, and dead-letters it after the retries are exhausted. Malformed
// bodies are dead-lettered immediately.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	messageID := msg.MessageId
	if messageID == "" {
		messageID = fmt.Sprintf("%x", msg.Body[:min(32, len(msg.Body))])
	}

	processed, err := c.processed.IsMessageProcessed(ctx, messageID)
	if err != nil {
		c.logger.Warn("idempotency check failed", "message_id", messageID, "error", err)
	}
	if processed {
		c.logger.Debug("message already processed", "message_id", messageID)
		_ = msg.Ack(false)
		return
	}

	m, err := Decode(msg.Body)
	if err != nil {
		c.logger.Error("dropping malformed message", "message_id", messageID, "error", err)
		_ = msg.Nack(false, false)
		return
	}

	var result service.FanOutResult
	err = retry.Do(
		func() error {
			var err error
			result, err = c.fanout.Deliver(ctx, m.Event, m.Audience)
			return err
		},
		retry.Attempts(maxRetryAttempts),
		retry.Delay(c.delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("delivery retry", "message_id", messageID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		c.logger.Error("delivery failed, sending to DLQ", "message_id", messageID, "error", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := c.processed.MarkMessageProcessed(ctx, messageID); err != nil {
		c.logger.Warn("mark processed failed", "message_id", messageID, "error", err)
	}

	c.logger.Debug("notifications delivered",
		"message_id", messageID, "type", m.Event.Type, "delivered", result.Delivered, "failed", result.Failed)
	_ = msg.Ack(false)
}
