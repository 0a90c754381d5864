package cms

import (
	"github.com/comfortablynumb/pmp-unit-test/internal/observability"
	"go.uber.org/zap"
)

// Message is an outgoing email
type Message struct {
	To      []string
	Subject string
	Body    string
	Headers map[string]string
}

// Mailer delivers messages. Send reports whether delivery succeeded.
type Mailer interface {
	Send(msg *Message) bool
}

// DefaultMailer logs messages instead of delivering them.
type DefaultMailer struct{}

// Send implements Mailer
func (m *DefaultMailer) Send(msg *Message) bool {
	observability.Debug("mail not delivered, no transport configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return false
}

// Mail sends a message through the active mailer.
func (e *Env) Mail(to []string, subject, body string, headers map[string]string) bool {
	msg := &Message{To: to, Subject: subject, Body: body, Headers: headers}
	return e.Mailer().Send(msg)
}
