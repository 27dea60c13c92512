package training

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Result reports how a Broadcast call went per recipient.
type Result struct {
	TestID  string
	Queued  []string
	Skipped []string
}

// Service sends security-training invitations to lists of recipients
// pasted as raw CSV text.
type Service struct {
	mail    ports.MailQueue
	baseURL string
	log     *slog.Logger
}

func New(mail ports.MailQueue, baseURL string, log *slog.Logger) *Service {
	return &Service{mail: mail, baseURL: baseURL, log: log}
}

// Broadcast extracts every address from the pasted text, allocates one
// test id for the batch and queues an invitation per recipient. A
// recipient whose mail cannot be queued is skipped, not fatal.
func (s *Service) Broadcast(ctx context.Context, csvText string) (Result, error) {
	recipients := emailPattern.FindAllString(csvText, -1)
	if len(recipients) == 0 {
		return Result{}, domain.Validationf("no email addresses found in the provided text")
	}

	res := Result{TestID: uuid.NewString()}
	seen := make(map[string]bool, len(recipients))
	for _, to := range recipients {
		to = strings.ToLower(to)
		if seen[to] {
			continue
		}
		seen[to] = true

		link := fmt.Sprintf("%s?email=%s&testId=%s", s.baseURL, url.QueryEscape(to), res.TestID)
		body := fmt.Sprintf(
			"Hello,\n\nYou have been invited to complete a security awareness training.\n\n"+
				"Start here: %s\n", link)
		err := s.mail.Enqueue(ctx, ports.Mail{
			To:      to,
			Subject: "Security Awareness Training Invitation",
			Text:    body,
		})
		if err != nil {
			s.log.Error("queue training invitation", "to", to, "error", err)
			res.Skipped = append(res.Skipped, to)
			continue
		}
		res.Queued = append(res.Queued, to)
	}
	s.log.Info("training invitations queued",
		"testId", res.TestID, "queued", len(res.Queued), "skipped", len(res.Skipped))
	return res, nil
}
