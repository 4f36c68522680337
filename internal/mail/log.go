package mail

import (
	"context"

	"github.com/moneytrail/apiserver/internal/log"
)

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{logger: logger.WithComponent(log.ComponentMail)}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "mail not sent, no smtp relay configured",
		log.FieldMailTo, msg.To,
		log.FieldMailSubject, msg.Subject,
		"body", msg.Body,
	)
	return nil
}
