package ports

import "context"

// MailJob is a claimed outbound-mail job.
type MailJob struct {
	ID   string
	Mail Mail
}

// MailJobRepository supports claiming and resolving queued mail jobs.
// Delivery is single-attempt: a failed job is marked failed and left
// for manual inspection, not retried.
type MailJobRepository interface {
	MailQueue
	ClaimNext(ctx context.Context) (job MailJob, found bool, err error)
	MarkSent(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}
