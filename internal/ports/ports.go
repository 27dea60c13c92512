package ports

import (
	"context"
	"io"
)

// BlobStore persists evidence documents. Keys are the convention-encoded
// file names; Put returns the public URL recorded in assignment and
// audit rows.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) (url string, err error)
	Get(ctx context.Context, key string, w io.Writer) error
}

// Mail is one outbound message.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer performs the actual delivery. Implementations live in
// internal/adapters/mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// MailQueue accepts messages for best-effort background delivery.
// Enqueue failures are logged by callers but never fail the business
// operation that produced the mail.
type MailQueue interface {
	Enqueue(ctx context.Context, m Mail) error
}
