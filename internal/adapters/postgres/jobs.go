package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/PsiTechC/apex/internal/ports"
)

func (db *DB) Enqueue(ctx context.Context, m ports.Mail) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO mail_jobs (recipient, subject, text_body, html_body)
		VALUES ($1,$2,$3,$4)`, m.To, m.Subject, m.Text, m.HTML)
	return err
}

// ClaimNext selects the next queued mail job using SKIP LOCKED and marks
// it sending, so multiple workers never claim the same job.
func (db *DB) ClaimNext(ctx context.Context) (job ports.MailJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, recipient, subject, text_body, html_body FROM mail_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.Mail.To, &job.Mail.Subject, &job.Mail.Text, &job.Mail.HTML)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE mail_jobs SET status='sending', started_at=now() WHERE id=$1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkSent(ctx context.Context, jobID string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE mail_jobs SET status='sent', finished_at=now() WHERE id=$1`, jobID)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE mail_jobs SET status='failed', finished_at=now(), last_error=$2 WHERE id=$1`,
		jobID, reason)
	return err
}
