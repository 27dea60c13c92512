package mail

import (
	"context"
	"log/slog"

	"github.com/PsiTechC/apex/internal/ports"
)

// NopMailer logs instead of sending. Used when SMTP is not configured,
// so local runs still show what would have gone out.
type NopMailer struct {
	Log *slog.Logger
}

func (m NopMailer) Send(_ context.Context, msg ports.Mail) error {
	if m.Log != nil {
		m.Log.Info("mail suppressed", "to", msg.To, "subject", msg.Subject)
	}
	return nil
}
