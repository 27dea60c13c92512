package mailer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PsiTechC/apex/internal/ports"
	"github.com/PsiTechC/apex/internal/testutil"
	"github.com/PsiTechC/apex/internal/workers/mailer"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunDeliversQueuedMail(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := testutil.NewStore()
	capture := &testutil.CaptureMailer{}
	for _, to := range []string{"a@x.test", "b@x.test", "c@x.test"} {
		require.NoError(t, store.Enqueue(ctx, ports.Mail{To: to, Subject: "hi"}))
	}

	mailer.Run(ctx, store, capture, 2, 10*time.Millisecond, testLog)

	deadline := time.After(2 * time.Second)
	for len(capture.Sent()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 deliveries, got %d", len(capture.Sent()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Len(t, capture.Sent(), 3)

	// Queue is drained.
	_, found, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRunMarksFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := testutil.NewStore()
	capture := &testutil.CaptureMailer{Fail: true}
	require.NoError(t, store.Enqueue(ctx, ports.Mail{To: "a@x.test", Subject: "hi"}))

	mailer.Run(ctx, store, capture, 1, 10*time.Millisecond, testLog)

	// A failed job is resolved, not retried: no delivery, and the job
	// never returns to the queue.
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, capture.Sent())
	_, found, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
