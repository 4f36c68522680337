package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	published []string
	handler   Handler
	closed    bool
}

func (f *fakeBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("channel is required")
	}
	f.published = append(f.published, channel)
	return "id-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	f.handler = handler
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestMQ_DelegatesToBackend(t *testing.T) {
	backend := &fakeBackend{}
	q := New(backend, log.Discard())

	id, err := q.Publish(context.Background(), "mail.outbound", []byte(`{}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, []string{"mail.outbound"}, backend.published)

	_, err = q.Publish(context.Background(), "", nil, nil)
	assert.Error(t, err)

	failing := errors.New("smtp down")
	require.NoError(t, q.Subscribe(context.Background(), "mail.outbound", func(context.Context, Message) error {
		return failing
	}))
	assert.ErrorIs(t, backend.handler(context.Background(), Message{ID: "m"}), failing)

	require.NoError(t, q.Close())
	assert.True(t, backend.closed)
}

func TestOpen_Disabled(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: config.MQBackendNone}, log.Discard())
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"}, log.Discard())
	assert.Error(t, err)
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{
		"kind":        "mail",
		"raw":         []byte("bytes"),
		attemptHeader: int32(3),
	})
	assert.Equal(t, "mail", attrs["kind"])
	assert.Equal(t, "bytes", attrs["raw"])
	assert.Equal(t, 3, attemptOf(attrs))
}

func TestAttemptOf_DefaultsToFirst(t *testing.T) {
	assert.Equal(t, 1, attemptOf(nil))
	assert.Equal(t, 1, attemptOf(map[string]string{attemptHeader: "zero"}))

	headers := attributesToHeaders(map[string]string{"kind": "mail"}, 2)
	assert.Equal(t, "2", headers[attemptHeader])
	assert.Equal(t, "mail", headers["kind"])
}
