package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "smartcity.notifications"
	DLXExchangeName = "smartcity.notifications.dlx"

	QueueNotifications    = "queue.notifications"
	QueueNotificationsDLQ = "queue.notifications.dlq"

	// Events are published as notification.<type>.
	RoutingKeyPrefix    = "notification."
	routingKeyPattern   = "notification.*"
	dlqRoutingKey       = "dlq.notifications"
	dlqMessageTTLMillis = int64(86400000)
	reconnectDelay      = 5 * time.Second
	prefetchCount       = 10
	publishTimeout      = 5 * time.Second
)

var ErrChannelUnavailable = errors.New("rabbitmq channel not available")

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	logger  *slog.Logger
	mu      sync.RWMutex
	done    chan struct{}
}

func NewRabbitMQ(host, port, user, password string, logger *slog.Logger) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, host, port)

	rmq := &RabbitMQ{
		url:    url,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	go rmq.handleReconnect()

	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := openChannel(conn, conn.Channel)
	if err != nil {
		return err
	}
	r.conn, r.channel = conn, ch

	r.logger.Info("rabbitmq connected", "exchange", ExchangeName, "queue", QueueNotifications)
	return nil
}

// declarer is the part of *amqp.Channel used to set up the topology.
type declarer interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// openChannel opens a channel and declares the topology on it. conn is
// closed when either step fails.
func openChannel[C declarer](conn io.Closer, open func() (C, error)) (C, error) {
	ch, err := open()
	if err != nil {
		conn.Close()
		return ch, fmt.Errorf("channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		conn.Close()
		return ch, err
	}
	return ch, nil
}

func declareTopology(ch declarer) error {
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	for _, name := range []string{ExchangeName, DLXExchangeName} {
		err := ch.ExchangeDeclare(
			name,
			"topic",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("exchange declare %s: %w", name, err)
		}
	}

	_, err := ch.QueueDeclare(
		QueueNotificationsDLQ,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": dlqMessageTTLMillis},
	)
	if err != nil {
		return fmt.Errorf("dlq declare: %w", err)
	}
	if err := ch.QueueBind(QueueNotificationsDLQ, dlqRoutingKey, DLXExchangeName, false, nil); err != nil {
		return fmt.Errorf("dlq bind: %w", err)
	}

	_, err = ch.QueueDeclare(
		QueueNotifications,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    DLXExchangeName,
			"x-dead-letter-routing-key": dlqRoutingKey,
		},
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(QueueNotifications, routingKeyPattern, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueueNotifications, err)
	}
	return nil
}

func (r *RabbitMQ) handleReconnect() {
	for {
		r.mu.RLock()
		closed := r.conn.NotifyClose(make(chan *amqp.Error, 1))
		r.mu.RUnlock()

		select {
		case <-r.done:
			return
		case err := <-closed:
			if err != nil {
				r.logger.Warn("rabbitmq disconnected", "error", err)
			}

			r.mu.Lock()
			for {
				select {
				case <-r.done:
					r.mu.Unlock()
					return
				default:
				}
				if err := r.connect(); err != nil {
					r.logger.Warn("rabbitmq reconnect failed", "error", err, "retry_in", reconnectDelay)
					time.Sleep(reconnectDelay)
					continue
				}
				break
			}
			r.mu.Unlock()
		}
	}
}

// Publish sends a persistent JSON message to the notifications exchange.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil || r.channel.IsClosed() {
		return ErrChannelUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return r.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (r *RabbitMQ) ConsumeQueue(queueName string) (<-chan amqp.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil {
		return nil, ErrChannelUnavailable
	}

	msgs, err := r.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}

	return msgs, nil
}

func (r *RabbitMQ) Close() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
