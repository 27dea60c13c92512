package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/PsiTechC/apex/internal/ports"
)

// CaptureMailer records every message handed to Send. When Fail is set
// the send is refused instead.
type CaptureMailer struct {
	mu   sync.Mutex
	sent []ports.Mail
	Fail bool
}

func (m *CaptureMailer) Send(_ context.Context, msg ports.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return errors.New("send refused")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *CaptureMailer) Sent() []ports.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Mail(nil), m.sent...)
}
