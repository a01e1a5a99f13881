package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/service"
	"smartcity/internal/testutil"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type ackRecorder struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeued = requeue
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type fakeBroker struct {
	err       error
	published []string
	bodies    [][]byte
}

func (b *fakeBroker) Publish(_ context.Context, routingKey, messageID string, body []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, routingKey)
	b.bodies = append(b.bodies, body)
	return nil
}

type failingDeliverer struct {
	calls int
}

func (d *failingDeliverer) Deliver(context.Context, model.NotificationEvent, model.Audience) (service.FanOutResult, error) {
	d.calls++
	return service.FanOutResult{}, errors.New("database unavailable")
}

func delivery(t *testing.T, ack amqp.Acknowledger, id string, event model.NotificationEvent, audience model.Audience) amqp.Delivery {
	t.Helper()
	body, err := Encode(event, audience)
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{Acknowledger: ack, MessageId: id, Body: body}
}

func TestEncodeDecode(t *testing.T) {
	sender := uuid.New()
	event := model.NotificationEvent{Type: model.NotificationPoll, SenderID: &sender, EntityID: uuid.New(), Message: "New poll available: Parks"}

	body, err := Encode(event, model.Roles(model.RoleCitizen))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Decode(body)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Event.Message != event.Message || *msg.Event.SenderID != sender {
		t.Errorf("Unexpected event %+v", msg.Event)
	}
	if len(msg.Audience.Roles) != 1 || msg.Audience.Roles[0] != model.RoleCitizen {
		t.Errorf("Unexpected audience %+v", msg.Audience)
	}

	if _, err := Decode([]byte(`{"event":{"type":"gossip"}}`)); err == nil {
		t.Error("Expected unknown type to be rejected")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Expected malformed body to be rejected")
	}
}

func TestPublisherRoutesByType(t *testing.T) {
	broker := &fakeBroker{}
	fallback := &testutil.Notifier{}
	p := NewPublisher(broker, fallback, testutil.Logger())

	event := model.NotificationEvent{Type: model.NotificationStatus, EntityID: uuid.New(), Message: "updated"}
	if err := p.Notify(context.Background(), event, model.Users(uuid.New())); err != nil {
		t.Fatal(err)
	}
	if len(broker.published) != 1 || broker.published[0] != "notification.status" {
		t.Errorf("Unexpected routing keys %v", broker.published)
	}
	if len(fallback.Events()) != 0 {
		t.Error("Expected no in-process delivery")
	}
}

func TestPublisherFallsBackWhenBrokerDown(t *testing.T) {
	broker := &fakeBroker{err: ErrChannelUnavailable}
	fallback := &testutil.Notifier{}
	p := NewPublisher(broker, fallback, testutil.Logger())

	event := model.NotificationEvent{Type: model.NotificationIssue, EntityID: uuid.New(), Message: "New issue reported: Pothole"}
	if err := p.Notify(context.Background(), event, model.Roles(model.RoleAdmin)); err != nil {
		t.Fatal(err)
	}
	if got := fallback.Events(); len(got) != 1 || got[0].Event.EntityID != event.EntityID {
		t.Errorf("Expected fallback delivery, got %+v", got)
	}
}

func TestConsumerDeliversOnce(t *testing.T) {
	stores := testutil.NewStores()
	fanout := service.NewFanOut(stores.Users, stores.Notifications, testutil.Logger())
	c := NewConsumer(nil, fanout, stores.Notifications, testutil.Logger())

	citizen := testutil.CreateUser(t, stores.Users, "resident", model.RoleCitizen, nil)
	event := model.NotificationEvent{Type: model.NotificationPoll, EntityID: uuid.New(), Message: "New poll available: Library hours"}

	ack := &ackRecorder{}
	msg := delivery(t, ack, "msg-1", event, model.Roles(model.RoleCitizen))
	c.processMessage(context.Background(), msg)
	c.processMessage(context.Background(), msg)

	if ack.acks != 2 || ack.nacks != 0 {
		t.Errorf("Expected 2 acks, got acks=%d nacks=%d", ack.acks, ack.nacks)
	}
	if got := stores.Notifications.For(citizen.ID); len(got) != 1 {
		t.Errorf("Expected redelivery to be ignored, got %d notifications", len(got))
	}
}

func TestConsumerDeadLettersAfterRetries(t *testing.T) {
	stores := testutil.NewStores()
	d := &failingDeliverer{}
	c := NewConsumer(nil, d, stores.Notifications, testutil.Logger())
	c.delay = time.Millisecond

	ack := &ackRecorder{}
	event := model.NotificationEvent{Type: model.NotificationReport, EntityID: uuid.New(), Message: "report"}
	c.processMessage(context.Background(), delivery(t, ack, "msg-2", event, model.Roles(model.RoleAdmin)))

	if d.calls != maxRetryAttempts {
		t.Errorf("Expected %d attempts, got %d", maxRetryAttempts, d.calls)
	}
	if ack.nacks != 1 || ack.requeued || ack.acks != 0 {
		t.Errorf("Expected a single nack without requeue, got acks=%d nacks=%d requeue=%v", ack.acks, ack.nacks, ack.requeued)
	}
	if done, _ := stores.Notifications.IsMessageProcessed(context.Background(), "msg-2"); done {
		t.Error("Expected failed message not marked processed")
	}
}

func TestConsumerRejectsMalformedBody(t *testing.T) {
	stores := testutil.NewStores()
	d := &failingDeliverer{}
	c := NewConsumer(nil, d, stores.Notifications, testutil.Logger())

	ack := &ackRecorder{}
	c.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, MessageId: "bad", Body: []byte("{")})

	if d.calls != 0 || ack.nacks != 1 {
		t.Errorf("Expected immediate dead-letter, got calls=%d nacks=%d", d.calls, ack.nacks)
	}
}

type fakeChannel struct {
	failOn string
	calls  []string
}

func (f *fakeChannel) step(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New(name + " refused")
	}
	return nil
}

func (f *fakeChannel) Qos(int, int, bool) error { return f.step("qos") }

func (f *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	return f.step("exchange " + name)
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: name}, f.step("queue " + name)
}

func (f *fakeChannel) QueueBind(name, _, _ string, _ bool, _ amqp.Table) error {
	return f.step("bind " + name)
}

type closeCounter struct{ closed int }

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestOpenChannelDeclaresTopology(t *testing.T) {
	conn := &closeCounter{}
	ch := &fakeChannel{}
	if _, err := openChannel(conn, func() (*fakeChannel, error) { return ch, nil }); err != nil {
		t.Fatal(err)
	}
	if conn.closed != 0 {
		t.Error("Expected connection kept open")
	}
	want := []string{
		"qos",
		"exchange " + ExchangeName,
		"exchange " + DLXExchangeName,
		"queue " + QueueNotificationsDLQ,
		"bind " + QueueNotificationsDLQ,
		"queue " + QueueNotifications,
		"bind " + QueueNotifications,
	}
	if len(ch.calls) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ch.calls)
	}
	for i := range want {
		if ch.calls[i] != want[i] {
			t.Errorf("Step %d: expected %q, got %q", i, want[i], ch.calls[i])
		}
	}
}

func TestOpenChannelClosesConnectionOnFailure(t *testing.T) {
	testCases := []string{
		"qos",
		"exchange " + DLXExchangeName,
		"queue " + QueueNotificationsDLQ,
		"bind " + QueueNotifications,
	}
	for _, failOn := range testCases {
		t.Run(failOn, func(t *testing.T) {
			conn := &closeCounter{}
			ch := &fakeChannel{failOn: failOn}
			if _, err := openChannel(conn, func() (*fakeChannel, error) { return ch, nil }); err == nil {
				t.Fatal("Expected setup error")
			}
			if conn.closed != 1 {
				t.Errorf("Expected connection closed once, got %d", conn.closed)
			}
		})
	}

	t.Run("channel", func(t *testing.T) {
		conn := &closeCounter{}
		_, err := openChannel(conn, func() (*fakeChannel, error) { return nil, errors.New("channel refused") })
		if err == nil || conn.closed != 1 {
			t.Errorf("Expected error and closed connection, got err=%v closed=%d", err, conn.closed)
		}
	})
}
