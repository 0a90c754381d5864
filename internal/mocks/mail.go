package mocks

import (
	"sync"

	"github.com/comfortablynumb/pmp-unit-test/internal/cms"
	"github.com/comfortablynumb/pmp-unit-test/internal/mocker"
)

const ServiceMail = "mail"

// Mail replaces the site mailer, answering every send with a fixed result
// and keeping the messages for inspection.
type Mail struct {
	env       *cms.Env
	mu        sync.Mutex
	result    bool
	previous  cms.Mailer
	installed bool
	sent      []*cms.Message
}

// NewMail creates a mail mocker
func NewMail(env *cms.Env) *Mail {
	return &Mail{env: env}
}

// ProvideService implements mocker.Mocker
func (m *Mail) ProvideService() string {
	return ServiceMail
}

// Mock implements mocker.Caller. The argument is the send result, either a
// bool or a map with a "send" key; it defaults to false.
func (m *Mail) Mock(args ...any) (any, error) {
	result := false
	switch a := mocker.Arg[any](args, 0, nil).(type) {
	case bool:
		result = a
	case map[string]any:
		result = truthy(a["send"])
	case map[string]bool:
		result = a["send"]
	}

	m.mu.Lock()
	m.result = result
	if !m.installed {
		m.previous = m.env.Mailer()
		m.installed = true
	}
	m.mu.Unlock()

	m.env.SetMailer(m)
	return m, nil
}

// Send implements cms.Mailer
func (m *Mail) Send(msg *cms.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.result
}

// Sent returns the messages sent since the last reset
func (m *Mail) Sent() []*cms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*cms.Message(nil), m.sent...)
}

// Reset puts the original mailer back
func (m *Mail) Reset() {
	m.mu.Lock()
	previous, installed := m.previous, m.installed
	m.previous = nil
	m.installed = false
	m.result = false
	m.sent = nil
	m.mu.Unlock()

	if installed {
		m.env.SetMailer(previous)
	}
}

// Dispatch implements mocker.Dispatcher
func (m *Mail) Dispatch(method string, args ...any) (any, error) {
	if method == "sent" {
		return m.Sent(), nil
	}
	return nil, mocker.UnknownMethod(ServiceMail, method)
}
