// Package mail delivers transactional email such as registration codes.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var codeTemplate = template.Must(template.New("code").Parse(`Hello,

Your MoneyTrail verification code is {{.Code}}.

It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.
`))

// CodeMessage renders the registration code email.
func CodeMessage(to, code string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Minutes())}
	if err := codeTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render code email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Your verification code",
		Body:    buf.String(),
	}, nil
}
