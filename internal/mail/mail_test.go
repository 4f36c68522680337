package mail

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.channel = channel
	f.data = data
	f.attrs = attrs
	return "msg-1", f.err
}

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestCodeMessage(t *testing.T) {
	msg, err := CodeMessage("ada@example.com", "123456", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your verification code", msg.Subject)
	assert.Contains(t, msg.Body, "123456")
	assert.Contains(t, msg.Body, "10 minutes")
}

func TestQueueSender_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sender := NewQueueSender(pub)

	msg := Message{To: "ada@example.com", Subject: "hi", Body: "hello"}
	require.NoError(t, sender.Send(context.Background(), msg))

	assert.Equal(t, Channel, pub.channel)
	assert.Equal(t, "mail", pub.attrs["kind"])

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, msg, decoded)
}

func TestQueueSender_PublishError(t *testing.T) {
	sender := NewQueueSender(&fakePublisher{err: errors.New("broker down")})

	err := sender.Send(context.Background(), Message{To: "ada@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestWorkerHandler(t *testing.T) {
	t.Run("delivers decoded message", func(t *testing.T) {
		sender := &recordingSender{}
		handler := WorkerHandler(sender)

		data, _ := json.Marshal(Message{To: "ada@example.com", Subject: "s", Body: "b"})
		require.NoError(t, handler(context.Background(), mq.Message{ID: "1", Data: data}))
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "ada@example.com", sender.sent[0].To)
	})

	t.Run("drops malformed payloads", func(t *testing.T) {
		sender := &recordingSender{}
		handler := WorkerHandler(sender)

		assert.NoError(t, handler(context.Background(), mq.Message{Data: []byte("{not json")}))
		assert.NoError(t, handler(context.Background(), mq.Message{Data: []byte(`{"subject":"no recipient"}`)}))
		assert.Empty(t, sender.sent)
	})

	t.Run("surfaces delivery errors for redelivery", func(t *testing.T) {
		sender := &recordingSender{err: errors.New("smtp timeout")}
		handler := WorkerHandler(sender)

		data, _ := json.Marshal(Message{To: "ada@example.com"})
		assert.Error(t, handler(context.Background(), mq.Message{Data: data}))
	})
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(log.Discard())
	assert.NoError(t, sender.Send(context.Background(), Message{To: "ada@example.com", Subject: "s"}))
}
