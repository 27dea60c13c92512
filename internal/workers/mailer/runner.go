package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/PsiTechC/apex/internal/ports"
)

// Run starts worker goroutines that claim queued mail jobs and deliver
// them. Delivery is single-attempt: a failed send marks the job failed
// and moves on. The dispatcher drains the queue on every poll tick and
// stops when ctx is cancelled.
func Run(ctx context.Context, repo ports.MailJobRepository, mailer ports.Mailer, concurrency int, pollInterval time.Duration, log *slog.Logger) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.MailJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Error("mail job claim", "error", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := mailer.Send(ctx, job.Mail); err != nil {
					_ = repo.MarkFailed(ctx, job.ID, err.Error())
					log.Error("mail send failed", "worker", idx, "job", job.ID, "to", job.Mail.To, "error", err)
					continue
				}
				if err := repo.MarkSent(ctx, job.ID); err != nil {
					log.Error("mark mail sent", "worker", idx, "job", job.ID, "error", err)
				}
			}
		}(i)
	}
}
