package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	published  []published
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_DeclaresQueue(t *testing.T) {
	ch := &fakeChannel{}
	_, err := newAMQPPublisher(ch, "auth.security")
	require.NoError(t, err)
	assert.Equal(t, []string{"auth.security"}, ch.declared)
}

func TestAMQPPublisher_DeclareError(t *testing.T) {
	_, err := newAMQPPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "auth.security")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue declare failed")
}

func TestAMQPPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "auth.security")
	require.NoError(t, err)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ev := SecurityEvent{
		Type:        TypeRefreshReuse,
		UserID:      "u1",
		FamilyID:    "f1",
		Reason:      "already_consumed",
		RevokedRows: 1,
		OccurredAt:  fixed,
	}
	require.NoError(t, p.PublishSecurityEvent(context.Background(), ev))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "", got.exchange)
	assert.Equal(t, "auth.security", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, TypeRefreshReuse, got.msg.Type)
	assert.Equal(t, fixed, got.msg.Timestamp)

	var decoded SecurityEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "auth.security")
	require.NoError(t, err)
	ch.publishErr = errors.New("channel closed")

	err = p.PublishSecurityEvent(context.Background(), SecurityEvent{Type: TypeSignOutMismatch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish failed")
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "q")
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishSecurityEvent(context.Background(), SecurityEvent{}))
}
