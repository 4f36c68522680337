package mail

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moneytrail/apiserver/internal/mq"
)

// Channel is the broker channel outbound mail is published to.
const Channel = "mail.outbound"

// Publisher is the subset of mq.MQ the queue sender needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// QueueSender hands messages to the broker for the mail worker to deliver.
type QueueSender struct {
	publisher Publisher
}

func NewQueueSender(publisher Publisher) *QueueSender {
	return &QueueSender{publisher: publisher}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}
	if _, err := q.publisher.Publish(ctx, Channel, data, map[string]string{"kind": "mail"}); err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

// WorkerHandler decodes queued messages and delivers them with sender.
// Malformed payloads are dropped rather than redelivered forever.
func WorkerHandler(sender Sender) mq.Handler {
	return func(ctx context.Context, m mq.Message) error {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil || msg.To == "" {
			return nil
		}
		return sender.Send(ctx, msg)
	}
}
